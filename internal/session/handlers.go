package session

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

// maxFrameSize bounds an uploaded camera frame
const maxFrameSize = int64(20 << 20)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// jsonError writes {"error": message} with the given status
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// frameError maps a frame submission error to a status code
func frameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		jsonError(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, ErrSessionComplete):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrFrameBusy):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrFrameThrottled):
		jsonError(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, ErrNoRecognizer):
		jsonError(w, err.Error(), http.StatusNotImplemented)
	case errors.Is(err, ErrRecognition):
		jsonError(w, err.Error(), http.StatusBadGateway)
	default:
		slog.Error("Error processing frame", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleHealth reports that the process is up
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// handleCreateSession starts a scan session
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TryCount int `json:"try_count"`
	}
	// An empty body means "use the default try count"
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := s.service.CreateSession(req.TryCount)
	if err != nil {
		if errors.Is(err, ErrInvalidTryCount) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("Error creating session", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// handleListSessions returns all sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions()
	if err != nil {
		slog.Error("Error listing sessions", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if sessions == nil {
		sessions = []*Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleGetSession returns a single session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Session ID required", http.StatusBadRequest)
		return
	}
	session, err := s.service.GetSession(id)
	if err != nil {
		corsError(w, "Session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleDeleteSession abandons a session
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Session ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteSession(id); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			corsError(w, "Session not found", http.StatusNotFound)
			return
		}
		corsError(w, "Error deleting session", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSubmitFrame accepts the OCR text regions of one frame
func (s *Server) handleSubmitFrame(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Fragments []string `json:"fragments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.service.SubmitFrame(id, req.Fragments)
	if err != nil {
		frameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSubmitImage accepts a camera frame and runs it through the recognizer
func (s *Server) handleSubmitImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := r.ParseMultipartForm(maxFrameSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "No frame provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > maxFrameSize {
		jsonError(w, "Frame is too large. Maximum size is 20MB.", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading frame data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading frame. Please try again.", http.StatusInternalServerError)
		return
	}

	result, err := s.service.SubmitImage(id, data, frameContentType(header.Header.Get("Content-Type"), header.Filename))
	if err != nil {
		frameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// frameContentType falls back to the file extension when the upload carries
// no usable MIME type
func frameContentType(contentType, filename string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}
