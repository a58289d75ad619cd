package card

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Expiry year window used to tell a printed date apart from a group of card
// digits when there is no keyword to anchor on.
const (
	minDateYear = 20
	maxDateYear = 50
)

var (
	anchorRE      = regexp.MustCompile(`DATE|VALID|THRU|EXP`)
	expiryNoiseRE = regexp.MustCompile(`[^A-Z0-9/\- ]`)
	slashDateRE   = regexp.MustCompile(`(?:^|[^0-9])([0-9]{1,2})[/-]([0-9]{4}|[0-9]{2})(?:[^0-9]|$)`)
	fourDigitsRE  = regexp.MustCompile(`(?:^|[^0-9])([0-9]{4})(?:[^0-9]|$)`)
	bareSlashRE   = regexp.MustCompile(`^([0-9]{1,2})[/-]([0-9]{2})$`)
)

// ResolveYear expands a two digit year into a calendar year. Years up to
// twenty past the current one land in this century, the rest in the last.
func ResolveYear(twoDigit int, now time.Time) int {
	year := now.Year()
	century := year - year%100
	if twoDigit <= year%100+20 {
		return century + twoDigit
	}
	return century - 100 + twoDigit
}

// ExtractExpiry returns the best MMYY guess for a frame, or "" when none of
// the fragments holds a usable date.
func ExtractExpiry(fragments []string, now time.Time) string {
	for _, f := range fragments {
		if mmyy := anchoredExpiry(f, now); mmyy != "" {
			return mmyy
		}
	}

	for _, f := range fragments {
		t := Normalize(strings.TrimSpace(f))
		if len(t) != 4 || !isDigits(t) {
			continue
		}
		if plausibleDate(t) {
			return t
		}
	}

	for _, f := range fragments {
		m := bareSlashRE.FindStringSubmatch(Normalize(strings.TrimSpace(f)))
		if m == nil {
			continue
		}
		month := m[1]
		if len(month) == 1 {
			month = "0" + month
		}
		if mmyy := month + m[2]; plausibleDate(mmyy) {
			return mmyy
		}
	}
	return ""
}

// anchoredExpiry looks for a date after a DATE/VALID/THRU/EXP keyword. The
// text after the last keyword is tried first so "VALID FROM .. VALID THRU .."
// yields the THRU date. Failing that, a slash date anywhere in the fragment is
// used.
func anchoredExpiry(fragment string, now time.Time) string {
	cleaned := expiryNoiseRE.ReplaceAllString(strings.ToUpper(fragment), "")
	anchors := anchorRE.FindAllStringIndex(cleaned, -1)
	for i := len(anchors) - 1; i >= 0; i-- {
		tail := Normalize(cleaned[anchors[i][1]:])

		if m := slashDateRE.FindStringSubmatch(tail); m != nil {
			if mmyy, ok := slashToMMYY(m[1], m[2], now); ok {
				return mmyy
			}
		}
		if m := fourDigitsRE.FindStringSubmatch(tail); m != nil {
			if validMonth(m[1][:2]) {
				return m[1]
			}
		}
	}

	// A date printed ahead of its label still counts once a label is present.
	if len(anchors) > 0 {
		if m := slashDateRE.FindStringSubmatch(Normalize(cleaned)); m != nil {
			if mmyy, ok := slashToMMYY(m[1], m[2], now); ok {
				return mmyy
			}
		}
	}
	return ""
}

func slashToMMYY(month, year string, now time.Time) (string, bool) {
	if len(month) == 1 {
		month = "0" + month
	}
	if !validMonth(month) {
		return "", false
	}
	if len(year) == 2 {
		yy, err := strconv.Atoi(year)
		if err != nil {
			return "", false
		}
		year = strconv.Itoa(ResolveYear(yy, now))
	}
	return month + year[len(year)-2:], true
}

func validMonth(mm string) bool {
	m, err := strconv.Atoi(mm)
	return err == nil && m >= 1 && m <= 12
}

// plausibleDate reports whether a 4 digit MMYY token reads as a printed
// expiry: a real month and a year inside the date window.
func plausibleDate(mmyy string) bool {
	if len(mmyy) != 4 || !validMonth(mmyy[:2]) {
		return false
	}
	yy, err := strconv.Atoi(mmyy[2:])
	return err == nil && yy >= minDateYear && yy <= maxDateYear
}
