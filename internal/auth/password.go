package auth

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

// Supported digest algorithms.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// DefaultBcryptCost is the bcrypt cost the service has always used.
const DefaultBcryptCost = 10

// Argon2id parameters, OWASP 2025 recommendation.
const (
	argonTime    = 3         // iterations
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 1         // parallelism
	argonKeyLen  = 32        // output hash length
	argonSaltLen = 16        // salt length
)

// ErrMalformedDigest is returned when a stored digest cannot be parsed.
var ErrMalformedDigest = errors.New("malformed password digest")

// Hasher produces and checks self-contained salted password digests.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) (bool, error)
}

// HashConfig selects the algorithm used for new digests.
type HashConfig struct {
	// Algorithm is "bcrypt" (default) or "argon2id".
	Algorithm string

	// BcryptCost is the bcrypt work factor; zero means DefaultBcryptCost.
	BcryptCost int
}

// PasswordHasher implements Hasher. New digests use the configured algorithm;
// Verify accepts digests from either algorithm so a deployment can switch
// without invalidating stored credentials.
type PasswordHasher struct {
	algorithm  string
	bcryptCost int
}

// NewPasswordHasher builds a hasher with its cost fixed for its lifetime.
func NewPasswordHasher(cfg HashConfig) (*PasswordHasher, error) {
	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = AlgorithmBcrypt
	}
	if algorithm != AlgorithmBcrypt && algorithm != AlgorithmArgon2id {
		return nil, fmt.Errorf("unsupported password algorithm: %q", algorithm)
	}

	cost := cfg.BcryptCost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	return &PasswordHasher{algorithm: algorithm, bcryptCost: cost}, nil
}

// Hash returns a new salted digest of secret.
func (h *PasswordHasher) Hash(secret string) (string, error) {
	if h.algorithm == AlgorithmArgon2id {
		return hashArgon2id(secret)
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether secret matches digest. A mismatch is (false, nil);
// an unreadable digest is an error.
func (h *PasswordHasher) Verify(secret, digest string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return verifyArgon2id(secret, digest)
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrMalformedDigest, err)
	default:
		return false, ErrMalformedDigest
	}
}

// hashArgon2id returns the PHC string $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>.
func hashArgon2id(secret string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyArgon2id(secret, encoded string) (bool, error) {
	salt, hash, params, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(secret), salt, params.time, params.memory, params.threads, uint32(len(hash))) //nolint:gosec // G115: hash length always fits uint32

	return subtle.ConstantTimeCompare(hash, candidate) == 1, nil
}

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

// decodePHC parses an Argon2id PHC string into its components.
func decodePHC(encoded string) (salt, hash []byte, params argonParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		return nil, nil, params, fmt.Errorf("%w: expected 6 PHC segments", ErrMalformedDigest)
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, params, fmt.Errorf("%w: parsing version: %w", ErrMalformedDigest, err)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &params.threads); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, params, fmt.Errorf("%w: parsing parameters: %w", ErrMalformedDigest, err)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, fmt.Errorf("%w: decoding salt: %w", ErrMalformedDigest, err)
	}

	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, params, fmt.Errorf("%w: decoding hash: %w", ErrMalformedDigest, err)
	}

	// argon2.IDKey panics on a zero key length or thread count.
	switch {
	case version != argon2.Version:
		return nil, nil, params, fmt.Errorf("%w: unsupported argon2 version %d", ErrMalformedDigest, version)
	case params.time == 0 || params.memory == 0 || params.threads == 0:
		return nil, nil, params, fmt.Errorf("%w: zero cost parameter", ErrMalformedDigest)
	case len(salt) == 0 || len(hash) == 0:
		return nil, nil, params, fmt.Errorf("%w: empty salt or hash", ErrMalformedDigest)
	}

	return salt, hash, params, nil
}
