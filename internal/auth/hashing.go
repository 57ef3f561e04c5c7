// Package auth implements personal-access-token authentication and
// scope-based authorization: hashing, bearer-token framing, the
// Authenticate/Authorize service, and the expired-token sweeper.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters are a fixed constant per spec.md §4.2 / §9: 768
// KiB memory, 1 iteration, 1 lane (parallelism), 32-byte output. These
// are intentionally not configurable to avoid silent weakening.
const (
	argonMemoryKiB  = 768
	argonIterations = 1
	argonLanes      = 1
	argonKeyLen     = 32
	argonSaltLen    = 16
)

// HashSecret returns an encoded Argon2id hash of secret, in the form
// "$argon2id$v=19$m=768,t=1,p=1$<salt>$<hash>" (base64 raw encoding),
// suitable for storage as PersonalAccessToken.SecretHash.
func HashSecret(secret string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	hash := argon2.IDKey([]byte(secret), salt, argonIterations, argonMemoryKiB, argonLanes, argonKeyLen)
	return encode(salt, hash), nil
}

// VerifySecret reports whether secret matches encodedHash. Comparison
// uses constant time equality to avoid timing side channels.
func VerifySecret(secret, encodedHash string) bool {
	salt, hash, ok := decode(encodedHash)
	if !ok {
		return false
	}
	candidate := argon2.IDKey([]byte(secret), salt, argonIterations, argonMemoryKiB, argonLanes, uint32(len(hash)))
	return subtle.ConstantTimeCompare(candidate, hash) == 1
}

func encode(salt, hash []byte) string {
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemoryKiB, argonIterations, argonLanes,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

func decode(encoded string) (salt, hash []byte, ok bool) {
	parts := strings.Split(encoded, "$")
	// parts[0] == "", [1]=argon2id, [2]=v=19, [3]=m=...,t=...,p=..., [4]=salt, [5]=hash
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, false
	}
	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, false
	}
	return salt, hash, true
}
