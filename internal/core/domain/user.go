package domain

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	// MarketUsername owns the exchange wallet used for welcome credits and market trades.
	MarketUsername = "market"
	// MarketWalletName is the name of the market account's only wallet.
	MarketWalletName = "Exchange"
	// DefaultWalletName is the wallet created for every new user.
	DefaultWalletName = "Default"

	minPasswordLength = 8
	maxUsernameLength = 150
)

// User is a registered account holder.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsStaff      bool      `json:"is_staff"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValidateUsername rejects empty, oversized and reserved usernames.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return errors.New("username is required")
	case len(username) > maxUsernameLength:
		return errors.New("username is too long")
	case strings.EqualFold(username, MarketUsername):
		return errors.New("username is reserved")
	}
	return nil
}

// ValidatePassword enforces the password policy: at least 8 characters with
// an uppercase letter, a lowercase letter, a digit and a symbol.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return errors.New("password must be at least 8 characters long")
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	switch {
	case !upper:
		return errors.New("password must contain an uppercase letter")
	case !lower:
		return errors.New("password must contain a lowercase letter")
	case !digit:
		return errors.New("password must contain a digit")
	case !symbol:
		return errors.New("password must contain a symbol")
	}
	return nil
}
