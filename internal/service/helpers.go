package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"cryptosim/internal/core/domain"
	"cryptosim/pkg/apperror"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// normalizePage clamps pagination input to sane bounds.
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// storeError maps a repository failure onto the application error taxonomy.
func storeError(op string, err error) error {
	err = fmt.Errorf("%s: %w", op, err)
	if errors.Is(err, domain.ErrLockTimeout) {
		return apperror.ErrLockTimeout(err)
	}
	return apperror.ErrDatabaseError(err)
}

// randomBytes reads n bytes from the OS CSPRNG.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// randomHex returns 2n hex characters of crypto randomness.
func randomHex(n int) (string, error) {
	b, err := randomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
