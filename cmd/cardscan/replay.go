package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/zombor/cardscan/internal/card"
)

// replayLine is one recorded frame: {"fragments": ["...", "..."]}
type replayLine struct {
	Fragments []string `json:"fragments"`
}

func replayFrames(path, parserName string, tryCount int, requireLuhn bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening replay file: %w", err)
	}
	defer f.Close()

	parser, err := card.NewParser(parserName, nil, requireLuhn)
	if err != nil {
		return err
	}
	return replay(f, os.Stdout, card.NewEngine(parser, tryCount))
}

// replay feeds each recorded frame through the engine and writes every
// stabilised card as one JSON line. Blank lines are skipped.
func replay(r io.Reader, w io.Writer, engine *card.Engine) error {
	enc := json.NewEncoder(w)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lineNo := 0
	frames := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var frame replayLine
		if err := json.Unmarshal([]byte(line), &frame); err != nil {
			return fmt.Errorf("decoding frame on line %d: %w", lineNo, err)
		}
		frames++

		record, done := engine.ProcessFrame(frame.Fragments)
		if !done {
			continue
		}
		slog.Debug("Card stabilised", "line", lineNo, "number", record.Masked())
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("writing card: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading replay file: %w", err)
	}

	slog.Info("Replay finished", "frames", frames, "pending", engine.Pending())
	return nil
}
