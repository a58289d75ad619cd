package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/zombor/cardscan/internal/card"
	"github.com/zombor/cardscan/internal/scanning"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionComplete = errors.New("session already complete")
	ErrFrameBusy       = errors.New("previous frame still processing")
	ErrFrameThrottled  = errors.New("frame submitted too soon")
	ErrInvalidTryCount = errors.New("try count must be at least 1")
	ErrNoRecognizer    = errors.New("no recognizer configured")
	ErrRecognition     = errors.New("recognizing frame")
)

// IDGenerator generates unique IDs for sessions
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Config holds the scanning settings shared by all sessions
type Config struct {
	TryCount        int           // valid frames needed per card, default for new sessions
	Parser          string        // card.ParserText or card.ParserFixed
	RequireChecksum bool          // reject numbers failing the Luhn check
	FrameInterval   time.Duration // minimum spacing between frames of one session, 0 disables
}

// liveSession is the in-memory half of a session: the engine with its sample
// buffer, which never leaves the process.
type liveSession struct {
	mu      sync.Mutex
	engine  *card.Engine
	limiter *rate.Limiter
	dropped atomic.Int64 // busy drops not yet written to the DB
}

// Service runs scan sessions. Frames of one session are processed one at a
// time; a frame arriving while another is in flight is dropped.
type Service struct {
	db          DB
	recognizer  scanning.Recognizer
	config      Config
	idGenerator IDGenerator
	timeSource  TimeSource

	mu   sync.Mutex
	live map[string]*liveSession
}

// NewService creates a new Service with default ID generator and time source.
// recognizer may be nil when only text frames are submitted.
func NewService(db DB, recognizer scanning.Recognizer, config Config) *Service {
	return NewServiceWithDeps(db, recognizer, config, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, recognizer scanning.Recognizer, config Config, idGen IDGenerator, timeSrc TimeSource) *Service {
	if config.TryCount < 1 {
		config.TryCount = 1
	}
	return &Service{
		db:          db,
		recognizer:  recognizer,
		config:      config,
		idGenerator: idGen,
		timeSource:  timeSrc,
		live:        make(map[string]*liveSession),
	}
}

// CreateSession starts a new scan. A tryCount of zero uses the configured default.
func (s *Service) CreateSession(tryCount int) (*Session, error) {
	if tryCount < 0 {
		return nil, ErrInvalidTryCount
	}
	if tryCount == 0 {
		tryCount = s.config.TryCount
	}

	now := s.timeSource.Now()
	session := &Session{
		ID:        s.idGenerator.Generate(),
		TryCount:  tryCount,
		Status:    StatusScanning,
		CreatedAt: now,
		UpdatedAt: now,
	}

	live, err := s.newLiveSession(tryCount)
	if err != nil {
		return nil, err
	}
	if err := s.db.SaveSession(session); err != nil {
		return nil, fmt.Errorf("saving session to database: %w", err)
	}

	s.mu.Lock()
	s.live[session.ID] = live
	s.mu.Unlock()

	slog.Info("Session started", "session", session.ID, "try_count", tryCount)
	return session, nil
}

func (s *Service) newLiveSession(tryCount int) (*liveSession, error) {
	parser, err := card.NewParser(s.config.Parser, s.timeSource, s.config.RequireChecksum)
	if err != nil {
		return nil, fmt.Errorf("creating parser: %w", err)
	}
	live := &liveSession{engine: card.NewEngine(parser, tryCount)}
	if s.config.FrameInterval > 0 {
		live.limiter = rate.NewLimiter(rate.Every(s.config.FrameInterval), 1)
	}
	return live, nil
}

// liveSession returns the engine for a scanning session, rebuilding it with an
// empty buffer if the process restarted since the session was created.
func (s *Service) liveSession(id string) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if live, ok := s.live[id]; ok {
		return live, nil
	}

	session, err := s.db.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	if session.Status == StatusComplete {
		return nil, ErrSessionComplete
	}

	live, err := s.newLiveSession(session.TryCount)
	if err != nil {
		return nil, err
	}
	s.live[id] = live
	slog.Warn("Resumed session with empty sample buffer", "session", id)
	return live, nil
}

// SubmitFrame runs one frame's OCR text regions through the session's engine
func (s *Service) SubmitFrame(id string, fragments []string) (*FrameResult, error) {
	return s.submit(id, func() ([]string, error) {
		return fragments, nil
	})
}

// SubmitImage recognizes the text regions of an image frame and submits them
func (s *Service) SubmitImage(id string, data []byte, contentType string) (*FrameResult, error) {
	if s.recognizer == nil {
		return nil, ErrNoRecognizer
	}
	return s.submit(id, func() ([]string, error) {
		fragments, err := s.recognizer.Recognize(data, contentType)
		if err != nil {
			slog.Error("Failed to recognize frame",
				"session", id,
				"content_type", contentType,
				"file_size", len(data),
				"error", err,
			)
			return nil, fmt.Errorf("%w: %w", ErrRecognition, err)
		}
		return fragments, nil
	})
}

// submit serialises frames per session. Every DB write for a session happens
// while its frame lock is held.
func (s *Service) submit(id string, read func() ([]string, error)) (*FrameResult, error) {
	live, err := s.liveSession(id)
	if err != nil {
		return nil, err
	}

	if !live.mu.TryLock() {
		live.dropped.Add(1)
		return nil, ErrFrameBusy
	}
	defer live.mu.Unlock()

	session, err := s.db.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	if session.Status == StatusComplete {
		return nil, ErrSessionComplete
	}

	now := s.timeSource.Now()
	session.Dropped += int(live.dropped.Swap(0))
	session.UpdatedAt = now

	if live.limiter != nil && !live.limiter.AllowN(now, 1) {
		session.Dropped++
		if err := s.db.SaveSession(session); err != nil {
			return nil, fmt.Errorf("saving session to database: %w", err)
		}
		return nil, ErrFrameThrottled
	}

	fragments, err := read()
	if err != nil {
		return nil, err
	}

	record, done := live.engine.ProcessFrame(fragments)
	session.Frames++
	session.Samples = live.engine.Pending()

	result := &FrameResult{
		Status:   FrameAccumulating,
		Samples:  session.Samples,
		TryCount: session.TryCount,
	}
	if done {
		session.Status = StatusComplete
		session.Result = &Summary{
			MaskedNumber: record.Masked(),
			Network:      record.Network,
			HasExpiry:    record.Expiry != "",
			CompletedAt:  now,
		}
		result.Status = FrameComplete
		result.Samples = session.TryCount
		result.Card = &record
	}

	if err := s.db.SaveSession(session); err != nil {
		return nil, fmt.Errorf("saving session to database: %w", err)
	}

	if done {
		// Only forget the engine once the completed session is stored.
		s.mu.Lock()
		delete(s.live, id)
		s.mu.Unlock()

		slog.Info("Card stabilised",
			"session", id,
			"number", record.Masked(),
			"network", record.Network,
			"frames", session.Frames,
		)
	}
	return result, nil
}

// GetSession retrieves a session by ID
func (s *Service) GetSession(id string) (*Session, error) {
	session, err := s.db.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return session, nil
}

// ListSessions returns all sessions
func (s *Service) ListSessions() ([]*Session, error) {
	sessions, err := s.db.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession abandons a session and drops its buffered samples
func (s *Service) DeleteSession(id string) error {
	if _, err := s.db.GetSession(id); err != nil {
		return fmt.Errorf("getting session for deletion: %w", err)
	}

	s.mu.Lock()
	delete(s.live, id)
	s.mu.Unlock()

	if err := s.db.DeleteSession(id); err != nil {
		return fmt.Errorf("deleting session from database: %w", err)
	}
	return nil
}
