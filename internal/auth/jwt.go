package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"opencampus/api/internal/model"
)

// ScopeTwoFactor marks the short-lived token handed out between a correct
// password and a verified second factor. It is accepted only by the 2FA
// completion endpoint.
const ScopeTwoFactor = "2fa"

type Claims struct {
	UserID string     `json:"user_id"`
	Role   model.Role `json:"role"`
	Scope  string     `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

func NewAccessToken(secret, issuer string, ttl time.Duration, userID string, role model.Role) (string, error) {
	return sign(secret, issuer, ttl, Claims{UserID: userID, Role: role})
}

func NewTwoFactorToken(secret, issuer string, ttl time.Duration, userID string, role model.Role) (string, error) {
	return sign(secret, issuer, ttl, Claims{UserID: userID, Role: role, Scope: ScopeTwoFactor})
}

func sign(secret, issuer string, ttl time.Duration, claims Claims) (string, error) {
	now := time.Now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
