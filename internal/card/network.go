package card

import "strings"

// Network is the issuing scheme of a card number
type Network string

const (
	Visa       Network = "Visa"
	MasterCard Network = "MasterCard"
	Amex       Network = "Amex"
	Unknown    Network = "Unknown"
)

// networkLengths lists the accepted number lengths per network.
// Unknown falls back to the generic bound.
var networkLengths = map[Network][]int{
	Visa:       {13, 16, 19},
	MasterCard: {16},
	Amex:       {15},
}

// Classify maps a digit string to a network by its leading digits.
func Classify(number string) Network {
	switch {
	case strings.HasPrefix(number, "34"), strings.HasPrefix(number, "37"):
		return Amex
	case strings.HasPrefix(number, "4"):
		return Visa
	case strings.HasPrefix(number, "5"):
		return MasterCard
	default:
		return Unknown
	}
}

// ValidNumber reports whether number is all digits and has a length its
// network accepts. The network rule wins over the generic 13-19 bound.
func ValidNumber(number string) bool {
	if len(number) < minNumberLen || len(number) > maxNumberLen || !isDigits(number) {
		return false
	}
	lengths, ok := networkLengths[Classify(number)]
	if !ok {
		return true
	}
	for _, l := range lengths {
		if len(number) == l {
			return true
		}
	}
	return false
}

// Luhn reports whether the trailing check digit of number is consistent
// with the rest of it.
func Luhn(number string) bool {
	if number == "" || !isDigits(number) {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
