package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pquerna/otp/totp"

	"opencampus/api/internal/auth"
	"opencampus/api/internal/crypto"
	"opencampus/api/internal/model"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
}

type twoFactorRequest struct {
	Token string `json:"token"`
	Code  string `json:"code"`
}

type userSummary struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Role        model.Role `json:"role"`
	Active      bool       `json:"active"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func summarize(user model.User) userSummary {
	return userSummary{
		ID:          user.ID,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Role:        user.Role,
		Active:      user.Active,
		LastLoginAt: user.LastLoginAt,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body.")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Missing required fields.")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeServerError(w)
		return
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         model.RoleStudent,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, codeDuplicateEmail, "An account with this email already exists.")
			return
		}
		writeServerError(w)
		return
	}

	writeData(w, http.StatusCreated, summarize(user))
}

// handleLogin covers students, teachers and admins. The identity lockout
// applies here; the origin throttle does not, it guards the admin path only.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body.")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Email and password are required.")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, codeInvalidCredentials, "Invalid email or password.")
			return
		}
		writeServerError(w)
		return
	}

	s.authenticate(w, r, user, req, model.EventLogin, false)
}

// handleAdminLogin is the throttled variant: origin rate limit first, then the
// same credential checks restricted to the admin role.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	origin := clientIP(r)
	decision, err := s.limiter.Allow(r.Context(), origin)
	if err != nil {
		writeServerError(w)
		return
	}
	if !decision.Allowed {
		writeError(w, http.StatusTooManyRequests, codeRateLimited,
			fmt.Sprintf("Too many login attempts. Try again in %s.", formatWait(decision.RetryAfter)))
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body.")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Email and password are required.")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Same message as a wrong password so the response does not
			// reveal whether the email exists.
			writeError(w, http.StatusUnauthorized, codeInvalidCredentials, "Invalid email or password.")
			return
		}
		writeServerError(w)
		return
	}

	if user.Role != model.RoleAdmin {
		s.logSecurityEvent(r, user.ID, model.EventPrivilegeDenied, false, "non-admin attempted admin login")
		writeError(w, http.StatusForbidden, codeInsufficientRole, "Administrator privileges required.")
		return
	}

	s.authenticate(w, r, user, req, model.EventAdminLogin, true)
}

// authenticate runs the shared tail of the login state machine:
// LockCheck → PasswordCheck → [TwoFactorCheck] → Success.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, user model.User, req loginRequest, eventKind string, throttled bool) {
	now := time.Now().UTC()

	if !user.Active {
		writeError(w, http.StatusUnauthorized, codeAccountDeactivated, "Account is deactivated.")
		return
	}

	// Locked accounts are rejected before any hashing work so the response
	// carries no timing signal about the password.
	if user.Locked(now) {
		writeError(w, http.StatusLocked, codeAccountLocked,
			fmt.Sprintf("Account locked. Try again in %s.", formatWait(user.LockUntil.Sub(now))))
		return
	}

	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		attempts, locked, err := s.store.RecordLoginFailure(r.Context(), user.ID, s.cfg.LockoutThreshold, now.Add(s.cfg.LockoutDuration))
		if err != nil {
			writeServerError(w)
			return
		}
		s.logSecurityEvent(r, user.ID, eventKind, false, "wrong password")
		if locked {
			s.logSecurityEvent(r, user.ID, model.EventLockout, false, "threshold reached")
		}
		remaining := s.cfg.LockoutThreshold - attempts
		if remaining < 0 {
			remaining = 0
		}
		writeError(w, http.StatusUnauthorized, codeInvalidCredentials,
			fmt.Sprintf("Invalid email or password. %d attempts remaining.", remaining))
		return
	}

	if user.TwoFactorSecret != nil {
		if req.Code == "" {
			token, err := auth.NewTwoFactorToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.TwoFactorTokenTTL, user.ID, user.Role)
			if err != nil {
				writeServerError(w)
				return
			}
			writeJSON(w, http.StatusOK, envelope{
				Success: true,
				Message: "Two-factor code required.",
				Code:    codeTwoFactorRequired,
				Data:    map[string]string{"twoFactorToken": token},
			})
			return
		}
		if !totp.Validate(req.Code, *user.TwoFactorSecret) {
			s.logSecurityEvent(r, user.ID, model.EventTwoFactor, false, "invalid code")
			writeError(w, http.StatusUnauthorized, codeInvalidTwoFactorCode, "Invalid two-factor code.")
			return
		}
	}

	s.finishLogin(w, r, user, eventKind, throttled)
}

// handleAdminTwoFactor completes a login that stopped at the 2FA step. The
// intermediate token is scope-limited and useless anywhere else.
func (s *Server) handleAdminTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req twoFactorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body.")
		return
	}
	if req.Token == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Token and code are required.")
		return
	}

	claims, err := auth.ParseToken(s.cfg.JWTSecret, req.Token)
	if err != nil || claims.Scope != auth.ScopeTwoFactor {
		writeError(w, http.StatusUnauthorized, codeInvalidToken, "Invalid or expired token.")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, codeUserNotFound, "User no longer exists.")
			return
		}
		writeServerError(w)
		return
	}
	if !user.Active {
		writeError(w, http.StatusUnauthorized, codeAccountDeactivated, "Account is deactivated.")
		return
	}
	if user.TwoFactorSecret == nil || !totp.Validate(req.Code, *user.TwoFactorSecret) {
		s.logSecurityEvent(r, user.ID, model.EventTwoFactor, false, "invalid code")
		writeError(w, http.StatusUnauthorized, codeInvalidTwoFactorCode, "Invalid two-factor code.")
		return
	}

	s.finishLogin(w, r, user, model.EventAdminLogin, true)
}

// finishLogin performs the success bookkeeping: counters reset, throttle
// cleared, token issued, session and security records appended.
func (s *Server) finishLogin(w http.ResponseWriter, r *http.Request, user model.User, eventKind string, throttled bool) {
	now := time.Now().UTC()
	origin := clientIP(r)

	var ip *string
	if origin != "" {
		ip = &origin
	}
	if err := s.store.ResetLoginState(r.Context(), user.ID, now, ip); err != nil {
		writeServerError(w)
		return
	}
	if throttled {
		_ = s.limiter.Clear(r.Context(), origin)
	}

	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, user.ID, user.Role)
	if err != nil {
		writeServerError(w)
		return
	}

	record := model.SessionRecord{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: crypto.HashToken(token),
		IssuedAt:  now,
		IPAddress: ip,
	}
	if agent := r.UserAgent(); agent != "" {
		record.UserAgent = &agent
	}
	_ = s.store.CreateSessionRecord(r.Context(), record)
	s.logSecurityEvent(r, user.ID, eventKind, true, "")

	user.FailedAttempts = 0
	user.LockUntil = nil
	user.LastLoginAt = &now
	writeData(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  summarize(user),
	})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeNoToken, "Access denied. No token provided.")
		return
	}
	writeData(w, http.StatusOK, summarize(identity))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeNoToken, "Access denied. No token provided.")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body.")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Current and new password are required.")
		return
	}

	// The middleware strips the hash, so reload the full record.
	user, err := s.store.GetUserByID(r.Context(), identity.ID)
	if err != nil {
		writeServerError(w)
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		writeError(w, http.StatusUnauthorized, codeInvalidCredentials, "Current password is incorrect.")
		return
	}

	hash, err := crypto.HashPassword(req.NewPassword)
	if err != nil {
		writeServerError(w)
		return
	}
	if _, err := s.store.UpdateUser(r.Context(), user.ID, userUpdateWithHash(hash)); err != nil {
		writeServerError(w)
		return
	}

	s.logSecurityEvent(r, user.ID, model.EventPasswordChange, true, "")
	writeMessage(w, http.StatusOK, "Password updated.")
}

func (s *Server) logSecurityEvent(r *http.Request, userID, kind string, success bool, detail string) {
	event := model.SecurityEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Success:   success,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if origin := clientIP(r); origin != "" {
		event.IPAddress = &origin
	}
	if agent := r.UserAgent(); agent != "" {
		event.UserAgent = &agent
	}
	_ = s.store.AppendSecurityEvent(r.Context(), event)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// formatWait rounds a remaining wait to whole seconds, never below one, so
// messages cannot tell the user to wait "0s" while the limit is still in
// force.
func formatWait(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Second
	}
	return d.Round(time.Second)
}
