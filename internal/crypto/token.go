package crypto

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashToken produces the digest stored in session audit records; the raw
// token never touches the database.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
