package card

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	anchoredDateRE = regexp.MustCompile(`(?i)\b(?:DATE|VALID|THRU|EXP)[A-Z ]*:?\s*[0-9]{1,2}\s*[/-]\s*[0-9]{2}(?:[0-9]{2})?\b`)
	cvcRE          = regexp.MustCompile(`(?i)\bCV[CV]2?\s*:?\s*[0-9]{3,4}\b`)
	fourRunRE      = regexp.MustCompile(`\b` + digitLike + `{4}\b`)
)

// groupPatterns are the printed digit layouts tried by the delimited scan,
// in priority order.
var groupPatterns = []*regexp.Regexp{
	groupPattern(4, 4, 4, 4),
	groupPattern(4, 6, 5),
	groupPattern(4, 4, 4),
	groupPattern(4, 4),
}

// extraGroupPatterns are only tried on a fragment none of groupPatterns
// matched.
var extraGroupPatterns = []*regexp.Regexp{
	groupPattern(4, 6, 4),
}

func groupPattern(sizes ...int) *regexp.Regexp {
	parts := make([]string, len(sizes))
	for i, n := range sizes {
		parts[i] = "(" + digitLike + "{" + strconv.Itoa(n) + "})"
	}
	return regexp.MustCompile(`\b` + strings.Join(parts, `[ -]`) + `\b`)
}

// numberStrategy turns the trimmed fragments of a frame into a card number
// candidate, or "" when it finds nothing network-valid.
type numberStrategy struct {
	name string
	scan func(fragments []string) string
}

// numberStrategies run in order; the first non-empty result wins.
var numberStrategies = []numberStrategy{
	{name: "contiguous", scan: scanContiguous},
	{name: "delimited", scan: scanDelimited},
	{name: "assembled", scan: scanAssembled},
}

// ExtractNumber returns the best card number guess for a frame. expiry is the
// frame's MMYY guess; text that matches it is not used as a number source.
func ExtractNumber(fragments []string, expiry string) string {
	number, _ := extractNumber(fragments, expiry)
	return number
}

// extractNumber also reports which strategy produced the number.
func extractNumber(fragments []string, expiry string) (string, string) {
	trimmed := stripDateNoise(fragments, expiry)
	for _, s := range numberStrategies {
		if n := s.scan(trimmed); n != "" {
			return n, s.name
		}
	}
	return "", ""
}

// stripDateNoise removes expiry and CVC text from a working copy of the
// fragments and drops the ones left empty.
func stripDateNoise(fragments []string, expiry string) []string {
	var expiryForms []*regexp.Regexp
	if len(expiry) == 4 && isDigits(expiry) {
		mm, yy := strings.TrimPrefix(expiry[:2], "0"), expiry[2:]
		expiryForms = []*regexp.Regexp{
			regexp.MustCompile(`\b0?` + mm + `\s*[/-]\s*(?:[0-9]{2})?` + yy + `\b`),
			regexp.MustCompile(`(?m)^\s*` + expiry + `\s*$`),
		}
	}

	out := make([]string, 0, len(fragments))
	for _, f := range fragments {
		f = anchoredDateRE.ReplaceAllString(f, "")
		for _, re := range expiryForms {
			f = re.ReplaceAllString(f, "")
		}
		f = cvcRE.ReplaceAllString(f, "CVC")
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// scanContiguous accepts a fragment that is nothing but the card number.
func scanContiguous(fragments []string) string {
	for _, f := range fragments {
		if n := Normalize(f); ValidNumber(n) {
			return n
		}
	}
	return ""
}

// scanDelimited accepts a number printed in hyphen or space separated groups.
// Only the first layout that matches a fragment is considered for it.
func scanDelimited(fragments []string) string {
	for _, f := range fragments {
		n, matched := matchGroups(f, groupPatterns)
		if !matched {
			n, _ = matchGroups(f, extraGroupPatterns)
		}
		if n != "" {
			return n
		}
	}
	return ""
}

// matchGroups joins the groups of the first layout matching f. It reports
// whether any layout matched, and returns "" unless the joined digits are a
// valid number.
func matchGroups(f string, layouts []*regexp.Regexp) (string, bool) {
	for _, re := range layouts {
		m := re.FindStringSubmatch(f)
		if m == nil {
			continue
		}
		if n := Normalize(strings.Join(m[1:], "")); ValidNumber(n) {
			return n, true
		}
		return "", true
	}
	return "", false
}

// scanAssembled stitches a number together from 4 digit runs spread across
// fragments and lines, skipping runs that look like dates or phone numbers.
func scanAssembled(fragments []string) string {
	var runs []string
	seen := make(map[string]bool)
	for _, f := range fragments {
		for _, line := range strings.FieldsFunc(f, func(r rune) bool { return r == '\n' || r == '\r' }) {
			upper := strings.ToUpper(line)
			phoneLine := strings.Contains(line, "-") || strings.Contains(upper, "PHONE") || strings.Contains(upper, "TEL")
			for _, raw := range fourRunRE.FindAllString(line, -1) {
				if len(digitsOnly(raw)) < 3 {
					continue
				}
				run := Normalize(raw)
				if !isDigits(run) || dateShaped(run) || phoneShaped(run, phoneLine) || seen[run] {
					continue
				}
				seen[run] = true
				runs = append(runs, run)
			}
		}
	}

	switch len(runs) {
	case 4:
		if n := strings.Join(runs, ""); ValidNumber(n) {
			return n
		}
	case 3:
		// Twelve digits never clear the length bound on their own.
		if n := strings.Join(runs, ""); len(n) >= minNumberLen && len(n) <= maxNumberLen {
			return n
		}
	}
	return ""
}

// dateShaped reports whether a 4 digit run reads as MMYY inside the date window.
func dateShaped(run string) bool {
	return plausibleDate(run)
}

// phoneShaped reports whether a run looks like part of a telephone number.
func phoneShaped(run string, phoneLine bool) bool {
	return phoneLine && (strings.HasPrefix(run, "15") || strings.HasPrefix(run, "16"))
}
