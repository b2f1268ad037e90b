package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/text/unicode/norm"

	"github.com/genvault/genvault/internal/models"
)

const (
	// KeySize is the symmetric key length (AES-256).
	KeySize = 32

	// MinSaltSize is the minimum accepted KDF salt length.
	MinSaltSize = 16

	// SaltSize is the salt length generated for new vaults.
	SaltSize = 16
)

// DefaultKDFParams are the Argon2id parameters for newly created vaults.
// Changing them never affects existing vaults: headers carry their own
// parameters.
var DefaultKDFParams = models.KDFParams{
	Time:      3,
	MemoryKiB: 64 * 1024,
	Threads:   4,
	KeyLen:    KeySize,
}

// MinKDFParams is the floor below which the engine refuses to derive.
// A header carrying weaker parameters is treated as tampered rather than
// silently honored.
var MinKDFParams = models.KDFParams{
	Time:      1,
	MemoryKiB: 8 * 1024,
	Threads:   1,
	KeyLen:    KeySize,
}

// DeriveKey derives symmetric key material from a master password and salt
// using Argon2id. Deterministic for fixed inputs. The password is NFKC
// normalized first so the same passphrase typed on different platforms
// derives the same key.
func DeriveKey(password string, salt []byte, params models.KDFParams) ([]byte, error) {
	if len(salt) < MinSaltSize {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d",
			models.ErrInvalidSalt, MinSaltSize, len(salt))
	}

	if err := checkParams(params); err != nil {
		return nil, err
	}

	normalized := norm.NFKC.String(password)

	key := argon2.IDKey([]byte(normalized), salt,
		params.Time, params.MemoryKiB, params.Threads, params.KeyLen)
	return key, nil
}

// GenerateSalt returns a fresh random salt from the OS CSPRNG. Salts are
// never derived from vault IDs or any other public value.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrKDFUnavailable, err)
	}
	return salt, nil
}

// GenerateKey returns a fresh random 32-byte key (used for DEKs).
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrKDFUnavailable, err)
	}
	return key, nil
}

func checkParams(p models.KDFParams) error {
	if p.Time < MinKDFParams.Time ||
		p.MemoryKiB < MinKDFParams.MemoryKiB ||
		p.Threads < MinKDFParams.Threads ||
		p.KeyLen != KeySize {
		return fmt.Errorf("%w: parameters below minimum floor", models.ErrKDFUnavailable)
	}
	return nil
}
