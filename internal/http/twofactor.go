package http

import (
	"net/http"

	"github.com/pquerna/otp/totp"

	"opencampus/api/internal/crypto"
	"opencampus/api/internal/model"
)

// handleEnrollTwoFactor generates a TOTP secret for the calling admin and
// stores it. From the next login on, the admin path demands a code.
func (s *Server) handleEnrollTwoFactor(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.cfg.JWTIssuer,
		AccountName: identity.Email,
	})
	if err != nil {
		writeServerError(w)
		return
	}

	secret := key.Secret()
	if err := s.store.SetTwoFactorSecret(r.Context(), identity.ID, &secret); err != nil {
		writeServerError(w)
		return
	}

	s.logSecurityEvent(r, identity.ID, model.EventTwoFactor, true, "enrolled")
	writeData(w, http.StatusOK, map[string]string{
		"secret":     secret,
		"otpauthUrl": key.URL(),
	})
}

type disableTwoFactorRequest struct {
	Password string `json:"password"`
}

// handleDisableTwoFactor removes the enrolled secret. The current password is
// required so a hijacked session cannot silently strip the second factor.
func (s *Server) handleDisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	var req disableTwoFactorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body.")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Password is required.")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), identity.ID)
	if err != nil {
		writeServerError(w)
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, codeInvalidCredentials, "Password is incorrect.")
		return
	}

	if err := s.store.SetTwoFactorSecret(r.Context(), identity.ID, nil); err != nil {
		writeServerError(w)
		return
	}

	s.logSecurityEvent(r, identity.ID, model.EventTwoFactor, true, "disabled")
	writeMessage(w, http.StatusOK, "Two-factor authentication disabled.")
}
