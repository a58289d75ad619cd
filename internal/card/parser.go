package card

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Parser turns one frame's OCR fragments into a card record. The bool is
// false when the frame did not yield a valid record.
type Parser interface {
	Parse(fragments []string) (Record, bool)
}

// Parser names accepted by NewParser
const (
	ParserText  = "text"
	ParserFixed = "fixed"
)

// NewParser builds the parser registered under name. requireChecksum only
// applies to the text parser.
func NewParser(name string, clock TimeSource, requireChecksum bool) (Parser, error) {
	if clock == nil {
		clock = systemClock{}
	}
	switch name {
	case ParserText, "":
		return NewTextParserWithClock(clock, requireChecksum), nil
	case ParserFixed:
		return &FixedParser{clock: clock}, nil
	default:
		return nil, fmt.Errorf("unknown parser %q (want %q or %q)", name, ParserText, ParserFixed)
	}
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// TextParser is the full extraction pipeline: keyword and positional expiry
// search, then contiguous, delimited and assembled number scans.
type TextParser struct {
	clock           TimeSource
	requireChecksum bool
}

// NewTextParser creates a TextParser using the system clock. With
// requireChecksum set, numbers failing the Luhn check are discarded.
func NewTextParser(requireChecksum bool) *TextParser {
	return NewTextParserWithClock(systemClock{}, requireChecksum)
}

// NewTextParserWithClock creates a TextParser with a custom clock for testing
func NewTextParserWithClock(clock TimeSource, requireChecksum bool) *TextParser {
	return &TextParser{clock: clock, requireChecksum: requireChecksum}
}

// Parse implements Parser
func (p *TextParser) Parse(fragments []string) (Record, bool) {
	expiry := ExtractExpiry(fragments, p.clock.Now())
	number := ExtractNumber(fragments, expiry)
	if p.requireChecksum && !Luhn(number) {
		number = ""
	}
	r := Record{Number: number, Network: Classify(number), Expiry: expiry}
	return r, r.Valid()
}

var fixedNumberRE = regexp.MustCompile(`\b([0-9]{4})[ -]?([0-9]{4})[ -]?([0-9]{4})[ -]?([0-9]{4})\b`)

// FixedParser only recognises 16 digit numbers, printed either solid or in
// four groups of four. It shares the expiry search with TextParser.
type FixedParser struct {
	clock TimeSource
}

// Parse implements Parser
func (p *FixedParser) Parse(fragments []string) (Record, bool) {
	r := Record{Network: Unknown, Expiry: ExtractExpiry(fragments, p.clock.Now())}
	for _, f := range fragments {
		m := fixedNumberRE.FindStringSubmatch(Normalize(f))
		if m == nil {
			continue
		}
		if n := strings.Join(m[1:], ""); ValidNumber(n) {
			r.Number = n
			r.Network = Classify(n)
			break
		}
	}
	return r, r.Valid()
}
