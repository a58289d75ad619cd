package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/cardscan/internal/card"
	"github.com/zombor/cardscan/internal/scanning"
	"github.com/zombor/cardscan/internal/session"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("cardscan")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		dbPath         = fs.StringLong("db", "cardscan.db", "Database file path")
		tryCount       = fs.IntLong("try-count", 3, "Valid frames collected before a card is reported")
		parserName     = fs.StringLong("parser", card.ParserText, "Frame parser: 'text' or 'fixed'")
		requireLuhn    = fs.BoolLong("require-luhn", "Reject card numbers that fail the Luhn checksum")
		frameInterval  = fs.DurationLong("frame-interval", 0, "Minimum spacing between frames of one session (0 disables)")
		recognizerType = fs.StringLong("recognizer", "none", "Image recognizer: 'none', 'gemini', 'ollama' or 'tesseract'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		tesseractLang  = fs.StringLong("tesseract-lang", "eng", "Comma separated Tesseract languages")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		replayFile     = fs.StringLong("replay", "", "Replay a JSON-lines frame file and print stabilised cards instead of serving")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("CARDSCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *tryCount < 1 {
		slog.Error("Invalid try count", "try_count", *tryCount, "valid", ">= 1")
		os.Exit(1)
	}
	if _, err := card.NewParser(*parserName, nil, *requireLuhn); err != nil {
		slog.Error("Invalid parser", "parser", *parserName, "valid", "text or fixed")
		os.Exit(1)
	}

	if *replayFile != "" {
		if err := replayFrames(*replayFile, *parserName, *tryCount, *requireLuhn); err != nil {
			slog.Error("Replay failed", "file", *replayFile, "error", err)
			os.Exit(1)
		}
		return
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := session.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize recognizer based on type
	var recognizer scanning.Recognizer
	switch *recognizerType {
	case "none":
		slog.Info("No recognizer configured, image frames are disabled")
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini recognizer...", "model", *geminiModel)
		recognizer, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama recognizer...", "url", *ollamaURL, "model", *ollamaModel)
		recognizer, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	case "tesseract":
		slog.Info("Initializing Tesseract recognizer...", "languages", *tesseractLang)
		recognizer = scanning.NewTesseract(strings.Split(*tesseractLang, ",")...)
	default:
		slog.Error("Invalid recognizer type", "type", *recognizerType, "valid", "none, gemini, ollama or tesseract")
		os.Exit(1)
	}
	if recognizer != nil {
		defer recognizer.Close()
	}

	// Initialize service
	sessionService := session.NewService(db, recognizer, session.Config{
		TryCount:        *tryCount,
		Parser:          *parserName,
		RequireChecksum: *requireLuhn,
		FrameInterval:   *frameInterval,
	})

	// Initialize server
	basicAuth := session.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := session.NewServer(sessionService, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started",
		"address", fmt.Sprintf("http://localhost%s", addr),
		"try_count", *tryCount,
		"parser", *parserName,
		"frame_interval", frameInterval.Round(time.Millisecond),
	)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
