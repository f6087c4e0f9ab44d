package api

import (
	"net/http"
	"time"

	"avatardock/internal/journal"
	"avatardock/internal/supervisor"
)

// Server exposes the shell's control surface to the UI layer.
type Server struct {
	sup          *supervisor.Supervisor
	journal      *journal.Journal
	backendURL   string
	logPath      string
	logTailBytes int
	httpClient   *http.Client
}

func NewServer(sup *supervisor.Supervisor, j *journal.Journal, backendURL, logPath string, logTailBytes int) *Server {
	return &Server{
		sup:          sup,
		journal:      j,
		backendURL:   backendURL,
		logPath:      logPath,
		logTailBytes: logTailBytes,
		httpClient: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}
