package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/flowplane/flowplane/internal/domain"
)

// TokenPrefix is the fixed prefix of every bearer string (spec.md §4.2).
const TokenPrefix = "fp_pat_"

const secretByteLen = 32

// GenerateSecret returns a fresh, URL-safe random secret half for a new
// or rotated token.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretByteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FormatBearer renders the full bearer string for a token id and secret.
func FormatBearer(id, secret string) string {
	return fmt.Sprintf("%s%s.%s", TokenPrefix, id, secret)
}

// ParseBearer implements spec.md §4.2 step 1: strip an optional
// "Bearer " prefix, require the fp_pat_ prefix, and split on "." into
// id/secret.
func ParseBearer(raw string) (id, secret string, err error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "Bearer ")
	if !strings.HasPrefix(raw, TokenPrefix) {
		return "", "", domain.Unauthenticated("bearer token missing %q prefix", TokenPrefix)
	}
	rest := strings.TrimPrefix(raw, TokenPrefix)
	idx := strings.IndexByte(rest, '.')
	if idx < 0 || idx == 0 || idx == len(rest)-1 {
		return "", "", domain.Unauthenticated("malformed bearer token")
	}
	return rest[:idx], rest[idx+1:], nil
}
