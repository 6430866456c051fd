package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"opencampus/api/internal/crypto"
	"opencampus/api/internal/model"
	"opencampus/api/internal/repository"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context(), queryLimit(r, 100))
	if err != nil {
		writeServerError(w)
		return
	}

	summaries := make([]userSummary, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, summarize(user))
	}
	writeData(w, http.StatusOK, summaries)
}

type createUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body.")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Missing required fields.")
		return
	}
	role, ok := model.ParseRole(strings.TrimSpace(strings.ToLower(req.Role)))
	if !ok {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Unknown role.")
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
		Role:         role,
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

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	userID := chi.URLParam(r, "userID")
	if !canAccessUser(identity, userID) {
		writeError(w, http.StatusForbidden, codeAccessDenied, "You can only access your own account.")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "User not found.")
			return
		}
		writeServerError(w)
		return
	}
	writeData(w, http.StatusOK, summarize(user))
}

type updateUserRequest struct {
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Password  *string `json:"password,omitempty"`
	Active    *bool   `json:"active,omitempty"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	userID := chi.URLParam(r, "userID")

	isPrivileged := identity.Role == model.RoleAdmin
	if !canAccessUser(identity, userID) {
		writeError(w, http.StatusForbidden, codeAccessDenied, "You can only update your own account.")
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body.")
		return
	}

	// Email and active-flag changes are privileged; role changes have their
	// own admin-only endpoint so this path can never touch the role.
	update := repository.UserUpdate{}
	if req.Email != nil && isPrivileged {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		if email != "" {
			update.Email = &email
		}
	}
	if req.Active != nil && isPrivileged {
		update.Active = req.Active
	}
	if req.FirstName != nil {
		first := strings.TrimSpace(*req.FirstName)
		if first != "" {
			update.FirstName = &first
		}
	}
	if req.LastName != nil {
		last := strings.TrimSpace(*req.LastName)
		if last != "" {
			update.LastName = &last
		}
	}
	if req.Password != nil && strings.TrimSpace(*req.Password) != "" {
		hash, err := crypto.HashPassword(*req.Password)
		if err != nil {
			writeServerError(w)
			return
		}
		update.PasswordHash = &hash
	}

	user, err := s.store.UpdateUser(r.Context(), userID, update)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "User not found.")
			return
		}
		writeServerError(w)
		return
	}
	writeData(w, http.StatusOK, summarize(user))
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body.")
		return
	}
	role, ok := model.ParseRole(strings.TrimSpace(strings.ToLower(req.Role)))
	if !ok {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Unknown role.")
		return
	}

	if err := s.store.UpdateUserRole(r.Context(), userID, role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, codeNotFound, "User not found.")
			return
		}
		writeServerError(w)
		return
	}
	writeMessage(w, http.StatusOK, "Role updated.")
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	deleted, err := s.store.DeleteUser(r.Context(), userID)
	if err != nil {
		writeServerError(w)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, codeNotFound, "User not found.")
		return
	}
	writeMessage(w, http.StatusOK, "User deleted.")
}

type sessionSummary struct {
	ID        string    `json:"id"`
	IssuedAt  time.Time `json:"issuedAt"`
	IPAddress *string   `json:"ipAddress,omitempty"`
	UserAgent *string   `json:"userAgent,omitempty"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	userID := chi.URLParam(r, "userID")
	if !canAccessUser(identity, userID) {
		writeError(w, http.StatusForbidden, codeAccessDenied, "You can only view your own sessions.")
		return
	}

	records, err := s.store.ListSessionRecords(r.Context(), userID, queryLimit(r, 20))
	if err != nil {
		writeServerError(w)
		return
	}

	// Token hashes stay server-side.
	summaries := make([]sessionSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, sessionSummary{
			ID:        record.ID,
			IssuedAt:  record.IssuedAt,
			IPAddress: record.IPAddress,
			UserAgent: record.UserAgent,
		})
	}
	writeData(w, http.StatusOK, summaries)
}

type securityEventSummary struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Success   bool      `json:"success"`
	Detail    string    `json:"detail,omitempty"`
	IPAddress *string   `json:"ipAddress,omitempty"`
	UserAgent *string   `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Server) handleListSecurityEvents(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	userID := chi.URLParam(r, "userID")
	if !canAccessUser(identity, userID) {
		writeError(w, http.StatusForbidden, codeAccessDenied, "You can only view your own security events.")
		return
	}

	events, err := s.store.ListSecurityEvents(r.Context(), userID, queryLimit(r, 50))
	if err != nil {
		writeServerError(w)
		return
	}

	summaries := make([]securityEventSummary, 0, len(events))
	for _, event := range events {
		summaries = append(summaries, securityEventSummary{
			ID:        event.ID,
			Kind:      event.Kind,
			Success:   event.Success,
			Detail:    event.Detail,
			IPAddress: event.IPAddress,
			UserAgent: event.UserAgent,
			CreatedAt: event.CreatedAt,
		})
	}
	writeData(w, http.StatusOK, summaries)
}

func userUpdateWithHash(hash string) repository.UserUpdate {
	return repository.UserUpdate{PasswordHash: &hash}
}
