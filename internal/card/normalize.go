package card

import "strings"

// ocrDigits maps characters OCR commonly confuses with digits. Every value
// is a digit and no digit is a key, so Normalize is idempotent.
var ocrDigits = map[rune]rune{
	'O': '0', 'o': '0', 'Q': '0', 'D': '0',
	'I': '1', 'l': '1', 'i': '1', '|': '1',
	'Z': '2', 'z': '2',
	'S': '5', 's': '5',
	'G': '6', 'b': '6',
	'B': '8',
	'g': '9', 'q': '9',
}

// digitLike is the regexp class matching digits and their look-alikes
const digitLike = `[0-9OoQDIliZzSsGbBgq]`

// Normalize repairs OCR letter/digit confusions without changing length.
func Normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if d, ok := ocrDigits[r]; ok {
			return d
		}
		return r
	}, s)
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
