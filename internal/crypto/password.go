package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"

	"github.com/genvault/genvault/internal/models"
)

// argon2Version is the Argon2 spec version embedded in PHC strings.
const argon2Version = 19

// HashPassword produces a self-contained PHC-style verification string:
//
//	$argon2id$v=19$m=<KiB>,t=<iters>,p=<threads>$b64(salt)$b64(digest)
//
// Every parameter needed to reproduce the digest is embedded, so
// verification needs no out-of-band configuration. The salt is independent
// of the vault KDF salt; the digest never doubles as key material.
func HashPassword(password string, params models.KDFParams) (string, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}
	return hashWithSalt(password, salt, params)
}

func hashWithSalt(password string, salt []byte, params models.KDFParams) (string, error) {
	if err := checkParams(params); err != nil {
		return "", err
	}

	normalized := norm.NFKC.String(password)
	digest := argon2.IDKey([]byte(normalized), salt,
		params.Time, params.MemoryKiB, params.Threads, params.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		params.MemoryKiB, params.Time, params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	), nil
}

// VerifyPassword checks password against an encoded hash string. It accepts
// the current argon2id format and the legacy pbkdf2-sha256 format it
// superseded, detected structurally by their PHC prefix. Unknown or
// malformed strings verify as false, never as an error. Digest comparison
// is constant time.
func VerifyPassword(encoded, password string) bool {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return verifyArgon2id(encoded, password)
	case strings.HasPrefix(encoded, "$pbkdf2-sha256$"):
		return verifyLegacyPBKDF2(encoded, password)
	default:
		return false
	}
}

func verifyArgon2id(encoded, password string) bool {
	parts := strings.Split(encoded, "$")
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, digest
	if len(parts) != 6 {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2Version {
		return false
	}

	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	normalized := norm.NFKC.String(password)
	got := argon2.IDKey([]byte(normalized), salt, t, m, p, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// verifyLegacyPBKDF2 handles hashes written before the argon2id migration:
//
//	$pbkdf2-sha256$i=<iterations>$b64(salt)$b64(digest)
func verifyLegacyPBKDF2(encoded, password string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 {
		return false
	}

	var iterations int
	if _, err := fmt.Sscanf(parts[2], "i=%d", &iterations); err != nil || iterations < 1 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}

	got := pbkdf2.Key([]byte(password), salt, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// LegacyPBKDF2Hash builds a legacy-format hash string. Kept for fixtures
// and migration tests; new hashes always use HashPassword.
func LegacyPBKDF2Hash(password string, salt []byte, iterations int) string {
	digest := pbkdf2.Key([]byte(password), salt, iterations, KeySize, sha256.New)
	return fmt.Sprintf("$pbkdf2-sha256$i=%d$%s$%s",
		iterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	)
}
