package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"opencampus/api/internal/model"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `
	id, email, password_hash, first_name, last_name, role, active,
	failed_attempts, lock_until, two_factor_secret, last_login_at, last_login_ip,
	created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.Active,
		&user.FailedAttempts,
		&user.LockUntil,
		&user.TwoFactorSecret,
		&user.LastLoginAt,
		&user.LastLoginIP,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, active, failed_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9)
	`, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role, user.Active, user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context, limit int) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UserUpdate carries the mutable profile fields. Role is deliberately absent;
// role changes go through UpdateUserRole only.
type UserUpdate struct {
	Email        *string
	FirstName    *string
	LastName     *string
	PasswordHash *string
	Active       *bool
}

func (s *Store) UpdateUser(ctx context.Context, userID string, update UserUpdate) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET email = COALESCE($2, email),
		    first_name = COALESCE($3, first_name),
		    last_name = COALESCE($4, last_name),
		    password_hash = COALESCE($5, password_hash),
		    active = COALESCE($6, active),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		userID, update.Email, update.FirstName, update.LastName, update.PasswordHash, update.Active)
	return scanUser(row)
}

func (s *Store) UpdateUserRole(ctx context.Context, userID string, role model.Role) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, userID, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) SetTwoFactorSecret(ctx context.Context, userID string, secret *string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET two_factor_secret = $2, updated_at = now() WHERE id = $1`, userID, secret)
	return err
}

func (s *Store) DeleteUser(ctx context.Context, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RecordLoginFailure bumps the failed-attempt counter and, once it reaches the
// threshold, arms the lock, all in one statement so concurrent attempts cannot
// split the update.
func (s *Store) RecordLoginFailure(ctx context.Context, userID string, threshold int, lockUntil time.Time) (int, bool, error) {
	var attempts int
	var lock *time.Time
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET failed_attempts = failed_attempts + 1,
		    lock_until = CASE WHEN failed_attempts + 1 >= $2 THEN $3 ELSE lock_until END,
		    updated_at = now()
		WHERE id = $1
		RETURNING failed_attempts, lock_until
	`, userID, threshold, lockUntil)
	if err := row.Scan(&attempts, &lock); err != nil {
		return 0, false, err
	}
	return attempts, lock != nil && lock.After(time.Now().UTC()), nil
}

func (s *Store) ResetLoginState(ctx context.Context, userID string, loginAt time.Time, ip *string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET failed_attempts = 0,
		    lock_until = NULL,
		    last_login_at = $2,
		    last_login_ip = $3,
		    updated_at = now()
		WHERE id = $1
	`, userID, loginAt, ip)
	return err
}

func (s *Store) CreateSessionRecord(ctx context.Context, record model.SessionRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_records (id, user_id, token_hash, issued_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, record.ID, record.UserID, record.TokenHash, record.IssuedAt, record.IPAddress, record.UserAgent)
	return err
}

func (s *Store) ListSessionRecords(ctx context.Context, userID string, limit int) ([]model.SessionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, token_hash, issued_at, ip_address, user_agent
		FROM session_records
		WHERE user_id = $1
		ORDER BY issued_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.SessionRecord
	for rows.Next() {
		var record model.SessionRecord
		if err := rows.Scan(&record.ID, &record.UserID, &record.TokenHash, &record.IssuedAt, &record.IPAddress, &record.UserAgent); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) AppendSecurityEvent(ctx context.Context, event model.SecurityEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO security_events (id, user_id, kind, success, detail, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.ID, event.UserID, event.Kind, event.Success, event.Detail, event.IPAddress, event.UserAgent, event.CreatedAt)
	return err
}

func (s *Store) ListSecurityEvents(ctx context.Context, userID string, limit int) ([]model.SecurityEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, kind, success, detail, ip_address, user_agent, created_at
		FROM security_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.SecurityEvent
	for rows.Next() {
		var event model.SecurityEvent
		if err := rows.Scan(&event.ID, &event.UserID, &event.Kind, &event.Success, &event.Detail, &event.IPAddress, &event.UserAgent, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
