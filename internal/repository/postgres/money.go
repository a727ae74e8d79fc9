package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cassiomorais/courts/internal/domain/reservation"
)

// numericToAmount converts a NUMERIC(12,2) column read as text into an Amount
// without going through float64. Digits past the cents are rounded half up.
func numericToAmount(s, currency string) (reservation.Amount, error) {
	s = strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" || !allDigits(whole) || !allDigits(frac) {
		return reservation.Amount{}, fmt.Errorf("invalid numeric %q", s)
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return reservation.Amount{}, fmt.Errorf("parse numeric %q: %w", s, err)
	}

	padded := frac + "00"
	cents, _ := strconv.ParseInt(padded[:2], 10, 64)
	if len(frac) > 2 && frac[2] >= '5' {
		cents++
	}

	return reservation.Amount{
		ValueCents: units*100 + cents,
		Currency:   strings.TrimSpace(currency),
	}, nil
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
