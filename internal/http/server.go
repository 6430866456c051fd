package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"opencampus/api/internal/config"
	"opencampus/api/internal/model"
	"opencampus/api/internal/ratelimit"
)

type Server struct {
	cfg     config.Config
	store   Store
	limiter ratelimit.Limiter
}

func NewServer(cfg config.Config, store Store, limiter ratelimit.Limiter) *Server {
	return &Server{cfg: cfg, store: store, limiter: limiter}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/admin/login", s.handleAdminLogin)
	r.Post("/auth/admin/2fa", s.handleAdminTwoFactor)
	r.With(s.requireAuth).Get("/auth/me", s.handleGetMe)
	r.With(s.requireAuth).Put("/auth/password", s.handleChangePassword)
	r.With(s.requireAuth, s.requireRole(model.RoleAdmin)).Post("/auth/2fa/enroll", s.handleEnrollTwoFactor)
	r.With(s.requireAuth, s.requireRole(model.RoleAdmin)).Delete("/auth/2fa", s.handleDisableTwoFactor)

	r.Route("/users", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.With(s.requireRole(model.RoleAdmin)).Get("/", s.handleListUsers)
		r.With(s.requireRole(model.RoleAdmin)).Post("/", s.handleCreateUser)
		r.Get("/{userID}", s.handleGetUser)
		r.Patch("/{userID}", s.handleUpdateUser)
		r.With(s.requireRole(model.RoleAdmin)).Put("/{userID}/role", s.handleUpdateUserRole)
		r.With(s.requireRole(model.RoleAdmin)).Delete("/{userID}", s.handleDeleteUser)
		r.Get("/{userID}/sessions", s.handleListSessions)
		r.Get("/{userID}/security-events", s.handleListSecurityEvents)
	})

	r.Route("/courses", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.handleListCourses)
		r.With(s.requireRole(model.RoleTeacher, model.RoleAdmin)).Post("/", s.handleCreateCourse)
		r.Get("/{courseID}", s.handleGetCourse)
		r.Patch("/{courseID}", s.handleUpdateCourse)
		r.Delete("/{courseID}", s.handleDeleteCourse)
		r.Post("/{courseID}/enroll", s.handleEnroll)
		r.Delete("/{courseID}/enroll/{studentID}", s.handleUnenroll)
		r.Get("/{courseID}/students", s.handleListCourseStudents)
		r.Get("/{courseID}/grades", s.handleListCourseGrades)
		r.Post("/{courseID}/grades", s.handleCreateGrade)
	})

	r.Route("/grades", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/me", s.handleListMyGrades)
		r.Get("/student/{studentID}", s.handleListStudentGrades)
		r.Patch("/{gradeID}", s.handleUpdateGrade)
		r.Delete("/{gradeID}", s.handleDeleteGrade)
	})

	r.With(s.requireAuth).Get("/dashboard", s.handleDashboard)

	return r
}

// Response envelope shared by every endpoint.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// Error codes surfaced in the envelope's "code" field.
const (
	codeNoToken              = "NO_TOKEN"
	codeInvalidToken         = "INVALID_TOKEN"
	codeUserNotFound         = "USER_NOT_FOUND"
	codeAccountDeactivated   = "ACCOUNT_DEACTIVATED"
	codeInsufficientRole     = "INSUFFICIENT_ROLE"
	codeAccessDenied         = "ACCESS_DENIED"
	codeInvalidCredentials   = "INVALID_CREDENTIALS"
	codeAccountLocked        = "ACCOUNT_LOCKED"
	codeRateLimited          = "RATE_LIMITED"
	codeTwoFactorRequired    = "TWO_FACTOR_REQUIRED"
	codeInvalidTwoFactorCode = "INVALID_TWO_FACTOR_CODE"
	codeInvalidRequest       = "INVALID_REQUEST"
	codeNotFound             = "NOT_FOUND"
	codeDuplicateEmail       = "DUPLICATE_EMAIL"
	codeServerError          = "SERVER_ERROR"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: true, Message: message})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message, Code: code})
}

func writeServerError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, codeServerError, "Something went wrong.")
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}

func queryLimit(r *http.Request, fallback int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
