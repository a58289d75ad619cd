package session

import (
	"time"

	"github.com/zombor/cardscan/internal/card"
)

// Status is the lifecycle state of a scan session
type Status string

const (
	StatusScanning Status = "scanning"
	StatusComplete Status = "complete"
)

// Session tracks one card being scanned over a series of frames. Only the
// masked number is ever stored.
type Session struct {
	ID        string    `json:"id"`
	TryCount  int       `json:"try_count"`
	Status    Status    `json:"status"`
	Frames    int       `json:"frames"`  // frames run through the parser
	Dropped   int       `json:"dropped"` // frames skipped as busy or throttled
	Samples   int       `json:"samples"` // valid samples currently buffered
	Result    *Summary  `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary describes a completed scan without exposing the card number
type Summary struct {
	MaskedNumber string       `json:"masked_number"`
	Network      card.Network `json:"network"`
	HasExpiry    bool         `json:"has_expiry"`
	CompletedAt  time.Time    `json:"completed_at"`
}

// FrameStatus says what happened to a submitted frame
type FrameStatus string

const (
	FrameAccumulating FrameStatus = "accumulating"
	FrameComplete     FrameStatus = "complete"
)

// FrameResult is returned for every processed frame. Card is only set on the
// frame that completes the session.
type FrameResult struct {
	Status   FrameStatus  `json:"status"`
	Samples  int          `json:"samples"`
	TryCount int          `json:"try_count"`
	Card     *card.Record `json:"card,omitempty"`
}
