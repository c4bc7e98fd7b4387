package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrMalformedHash is returned when a stored password hash cannot be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

// Argon2Params tunes the Argon2id cost. Stored hashes carry their own
// parameters, so changing these only affects new passwords.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

// DefaultArgon2Params are used for user passwords.
var DefaultArgon2Params = Argon2Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  32,
	SaltLen: 16,
}

// Argon2HashService implements ports.HashService using Argon2id.
type Argon2HashService struct {
	params Argon2Params
}

// NewArgon2HashService creates a hash service with the given cost.
func NewArgon2HashService(params Argon2Params) *Argon2HashService {
	return &Argon2HashService{params: params}
}

// Hash returns the PHC-style encoding
// $argon2id$v=19$m=<mem>,t=<time>,p=<threads>$<salt>$<key>.
func (s *Argon2HashService) Hash(password string) (string, error) {
	salt := make([]byte, s.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	p := s.params
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. A malformed encoding is
// an error, a mismatch is not.
func (s *Argon2HashService) Verify(password, encoded string) (bool, error) {
	stored, err := parseArgon2(encoded)
	if err != nil {
		return false, err
	}

	p := stored.params
	key := argon2.IDKey([]byte(password), stored.salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(stored.key, key) == 1, nil
}

type argon2Hash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func parseArgon2(encoded string) (*argon2Hash, error) {
	// Leading "$" yields an empty first field.
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return nil, fmt.Errorf("%w: want 6 fields, got %d", ErrMalformedHash, len(fields))
	}
	if fields[1] != "argon2id" {
		return nil, fmt.Errorf("%w: algorithm %q", ErrMalformedHash, fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("%w: version: %w", ErrMalformedHash, err)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: version %d", ErrMalformedHash, version)
	}

	h := &argon2Hash{}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.params.Memory, &h.params.Time, &h.params.Threads); err != nil {
		return nil, fmt.Errorf("%w: params: %w", ErrMalformedHash, err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return nil, fmt.Errorf("%w: salt: %w", ErrMalformedHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return nil, fmt.Errorf("%w: key: %w", ErrMalformedHash, err)
	}
	if len(h.key) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrMalformedHash)
	}
	h.params.KeyLen = uint32(len(h.key))
	h.params.SaltLen = uint32(len(h.salt))
	return h, nil
}
