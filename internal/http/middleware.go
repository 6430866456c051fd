package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"

	"opencampus/api/internal/auth"
	"opencampus/api/internal/model"
)

type identityKey struct{}

// requireAuth is the single chokepoint for protected routes: it extracts the
// bearer token, verifies it, loads the identity and attaches it to the request
// context. Role decisions happen downstream in requireRole and the ownership
// helpers.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, codeNoToken, "Access denied. No token provided.")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, token)
		if err != nil || claims.Scope != "" {
			// A pending-2FA token only opens the 2FA completion endpoint.
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

		user.PasswordHash = ""
		ctx := context.WithValue(r.Context(), identityKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFromContext(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(identityKey{}).(model.User)
	return user, ok
}

// requireRole rejects any identity whose role is not in the allow-list.
func (s *Server) requireRole(roles ...model.Role) func(http.Handler) http.Handler {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := identityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, codeNoToken, "Access denied. No token provided.")
				return
			}
			if _, ok := allowed[identity.Role]; !ok {
				writeError(w, http.StatusForbidden, codeInsufficientRole, "You do not have permission to perform this action.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// canAccessUser implements the ownership policy: admins pass unconditionally,
// everyone else only for their own record.
func canAccessUser(identity model.User, targetID string) bool {
	return identity.Role == model.RoleAdmin || identity.ID == targetID
}

// canManageCourse is the teacher-of-record variant of the ownership policy.
func canManageCourse(identity model.User, course model.Course) bool {
	return identity.Role == model.RoleAdmin ||
		(identity.Role == model.RoleTeacher && course.TeacherID == identity.ID)
}
