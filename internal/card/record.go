package card

import "strings"

const (
	minNumberLen = 13
	maxNumberLen = 19
)

// Record is one card observation: the number, its network and the MMYY expiry.
type Record struct {
	Number  string  `json:"number"`
	Network Network `json:"network"`
	Expiry  string  `json:"expiry"` // MMYY, empty when not found
}

// Valid reports whether the record carries a number of plausible length.
// An empty expiry is fine.
func (r Record) Valid() bool {
	return len(r.Number) >= minNumberLen && len(r.Number) <= maxNumberLen
}

// Masked returns the number with everything but the last four digits hidden.
func (r Record) Masked() string {
	if len(r.Number) <= 4 {
		return r.Number
	}
	return strings.Repeat("*", len(r.Number)-4) + r.Number[len(r.Number)-4:]
}
