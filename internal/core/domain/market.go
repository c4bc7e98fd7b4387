package domain

import (
	"fmt"
	"strings"
)

// PayMethod is how a market buy or sell is settled off-ledger.
type PayMethod string

const (
	PayMethodBank PayMethod = "BANK"
	PayMethodCard PayMethod = "CARD"
	PayMethodP2P  PayMethod = "P2P"
)

// ParsePayMethod defaults to BANK when empty.
func ParsePayMethod(s string) (PayMethod, error) {
	switch m := PayMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case "":
		return PayMethodBank, nil
	case PayMethodBank, PayMethodCard, PayMethodP2P:
		return m, nil
	}
	return "", fmt.Errorf("unsupported payment method %q", s)
}
