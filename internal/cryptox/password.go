// Package cryptox holds the hashing primitives used for credentials:
// password hashes (Argon2id or bcrypt) and SHA-256 digests of opaque tokens.
package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Supported hasher names.
const (
	HasherArgon2id = "argon2id"
	HasherBcrypt   = "bcrypt"
)

// ErrUnknownHashFormat is returned when a stored hash is in no format we
// can verify.
var ErrUnknownHashFormat = errors.New("unknown password hash format")

// Argon2id parameters, same cost as used for master-key derivation.
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16
)

// PasswordHasher hashes new passwords with one algorithm and verifies
// stored hashes produced by any supported algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(encoded, password string) (bool, error)
}

type passwordHasher struct {
	primary    string
	bcryptCost int
}

// NewPasswordHasher returns a hasher that produces hashes with the named
// algorithm ("argon2id" or "bcrypt"). An empty name selects argon2id.
func NewPasswordHasher(name string) (PasswordHasher, error) {
	switch name {
	case "", HasherArgon2id:
		return &passwordHasher{primary: HasherArgon2id, bcryptCost: bcrypt.DefaultCost}, nil
	case HasherBcrypt:
		return &passwordHasher{primary: HasherBcrypt, bcryptCost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("unsupported password hasher %q", name)
	}
}

func (h *passwordHasher) Hash(password string) (string, error) {
	if h.primary == HasherBcrypt {
		b, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return hashArgon2id(password)
}

// Verify compares password against encoded in constant time. A malformed
// or unsupported hash is an error, a mismatch is (false, nil).
func (h *passwordHasher) Verify(encoded, password string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return verifyArgon2id(encoded, password)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, ErrUnknownHashFormat
	}
}

func hashArgon2id(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// verifyArgon2id parses a PHC string:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
func verifyArgon2id(encoded, password string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false, ErrUnknownHashFormat
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrUnknownHashFormat
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, ErrUnknownHashFormat
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrUnknownHashFormat
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, ErrUnknownHashFormat
	}

	got := argon2.IDKey([]byte(password), salt, iterations, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
