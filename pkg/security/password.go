// Package security hashes account passwords with Argon2id. Hashes use the
// PHC string layout so the parameters travel with each stored value.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/radarprecios/radarprecios-backend/pkg/config"
	"golang.org/x/crypto/argon2"
)

const (
	argonID      = "argon2id"
	argonVersion = argon2.Version

	// MinPasswordLength is the shortest password accepted for new accounts.
	MinPasswordLength = 8
)

var (
	ErrInvalidHash   = errors.New("invalid argon2id hash")
	ErrEmptyPassword = errors.New("password cannot be empty")
)

var b64 = base64.RawStdEncoding

type argonCost struct {
	memoryKB uint32
	passes   uint32
	lanes    uint8
	saltLen  uint32
	keyLen   uint32
}

func costFromConfig(cfg config.PasswordConfig) argonCost {
	return argonCost{
		memoryKB: uint32(bounded(cfg.ArgonMemoryKB, 8, 512*1024)),
		passes:   uint32(bounded(cfg.ArgonTime, 1, 10)),
		lanes:    uint8(bounded(cfg.ArgonParallelism, 1, 255)),
		saltLen:  uint32(bounded(cfg.ArgonSaltLen, 8, 64)),
		keyLen:   uint32(bounded(cfg.ArgonKeyLen, 16, 64)),
	}
}

func (c argonCost) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, c.passes, c.memoryKB, c.lanes, c.keyLen)
}

func (c argonCost) encode(salt, key []byte) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argonID, argonVersion, c.memoryKB, c.passes, c.lanes, b64.EncodeToString(salt), b64.EncodeToString(key))
}

// parseHash splits "$argon2id$v=19$m=..,t=..,p=..$salt$key".
func parseHash(encoded string) (argonCost, []byte, []byte, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != argonID {
		return argonCost{}, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argonVersion {
		return argonCost{}, nil, nil, ErrInvalidHash
	}

	var cost argonCost
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &cost.memoryKB, &cost.passes, &cost.lanes); err != nil {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	if cost.passes == 0 || cost.lanes == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}

	salt, err := b64.DecodeString(fields[4])
	if err != nil || len(salt) == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	cost.saltLen = uint32(len(salt))
	cost.keyLen = uint32(len(key))
	return cost, salt, key, nil
}

// HashPassword derives a fresh salted Argon2id hash for password.
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	cost := costFromConfig(cfg)
	salt := make([]byte, cost.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return cost.encode(salt, cost.derive(password, salt)), nil
}

// VerifyPassword reports whether password produces the stored hash. A
// malformed hash is an error, a mismatch is not.
func VerifyPassword(password, encoded string) (bool, error) {
	cost, salt, want, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	got := cost.derive(password, salt)
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

// BurnVerify spends the same work as a real verification so unknown emails
// and wrong passwords take similar time.
func BurnVerify(password string, cfg config.PasswordConfig) {
	cost := costFromConfig(cfg)
	_ = cost.derive(password, make([]byte, cost.saltLen))
}

// CheckPasswordPolicy returns a user-facing reason when password is too weak.
func CheckPasswordPolicy(password string) error {
	if strings.TrimSpace(password) == "" {
		return errors.New("password cannot be blank")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("password must have at least %d characters", MinPasswordLength)
	}
	return nil
}

func bounded(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
