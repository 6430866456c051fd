package model

import "time"

// Role is the closed set of account types. Authorization decisions key off
// this value; anything outside the set is rejected at the door.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return Role(raw), true
	default:
		return "", false
	}
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         Role
	Active       bool

	// Security bookkeeping. FailedAttempts and LockUntil move together in a
	// single statement; a LockUntil in the future rejects logins outright.
	FailedAttempts  int
	LockUntil       *time.Time
	TwoFactorSecret *string
	LastLoginAt     *time.Time
	LastLoginIP     *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Locked reports whether the account is under an active lockout.
func (u User) Locked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// SessionRecord is an audit entry written on every successful login. It is
// never consulted during token verification.
type SessionRecord struct {
	ID        string
	UserID    string
	TokenHash string
	IssuedAt  time.Time
	IPAddress *string
	UserAgent *string
}

type SecurityEvent struct {
	ID        string
	UserID    string
	Kind      string
	Success   bool
	Detail    string
	IPAddress *string
	UserAgent *string
	CreatedAt time.Time
}

const (
	EventLogin           = "login"
	EventAdminLogin      = "admin_login"
	EventPrivilegeDenied = "privilege_denied"
	EventLockout         = "lockout"
	EventTwoFactor       = "two_factor"
	EventPasswordChange  = "password_change"
)

type Course struct {
	ID          string
	Code        string
	Title       string
	Description string
	TeacherID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Enrollment struct {
	CourseID   string
	StudentID  string
	EnrolledAt time.Time
}

type Grade struct {
	ID        string
	CourseID  string
	StudentID string
	Title     string
	Score     float64
	MaxScore  float64
	GradedBy  string
	GradedAt  time.Time
}
