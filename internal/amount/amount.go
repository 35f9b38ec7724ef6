// Package amount converts between BTC decimal strings and satoshi.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/ggonzalez94/btcops/internal/errors"
)

// Decimals is the number of fractional digits of one BTC.
const Decimals = 8

var ErrInvalidAmount = errors.New("invalid amount")

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

var maxBaseUnits = new(big.Int).SetUint64(^uint64(0))

// ToBaseUnits parses a display amount such as "0.01" into satoshi. Inputs with
// more than eight fractional digits are rejected rather than rounded.
func ToBaseUnits(display string) (uint64, error) {
	v := strings.TrimSpace(display)
	if v == "" {
		return 0, invalid("amount is required")
	}
	if !decimalPattern.MatchString(v) {
		return 0, invalid(fmt.Sprintf("amount %q must be in decimal form like 0.01", display))
	}

	parts := strings.SplitN(v, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > Decimals {
		return 0, invalid(fmt.Sprintf("amount %q exceeds %d decimal places", display, Decimals))
	}

	fracPart += strings.Repeat("0", Decimals-len(fracPart))
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return 0, nil
	}
	n, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return 0, invalid(fmt.Sprintf("amount %q is not a number", display))
	}
	if n.Cmp(maxBaseUnits) > 0 {
		return 0, invalid(fmt.Sprintf("amount %q is out of range", display))
	}
	return n.Uint64(), nil
}

// ToDisplay formats satoshi as a canonical decimal BTC string.
func ToDisplay(base uint64) string {
	s := new(big.Int).SetUint64(base).String()
	if len(s) <= Decimals {
		s = strings.Repeat("0", Decimals-len(s)+1) + s
	}
	intPart := s[:len(s)-Decimals]
	fracPart := strings.TrimRight(s[len(s)-Decimals:], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

func invalid(message string) error {
	return clierr.Wrap(clierr.CodeInvalidAmount, message, ErrInvalidAmount)
}
