package api

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// StatusHandler returns the supervisor snapshot for the settings panel.
func (s *Server) StatusHandler(c *gin.Context) {
	snap := s.sup.Snapshot()
	c.JSON(http.StatusOK, BackendStatus{
		State:         snap.State.String(),
		Reachable:     s.sup.IsBackendReachable(),
		DeploymentDir: snap.DeploymentDir,
		Variant:       snap.Variant.String(),
		Pid:           snap.Pid,
		LastNotice:    snap.LastNotice,
	})
}

// StartHandler kicks off a start attempt in the background. StartIfNeeded
// can block for minutes, so the HTTP request only acknowledges; the UI
// follows progress through the readiness endpoints.
func (s *Server) StartHandler(c *gin.Context) {
	go s.sup.StartIfNeeded()
	c.JSON(http.StatusAccepted, gin.H{"state": s.sup.State().String()})
}

// StopHandler tears the backend down.
func (s *Server) StopHandler(c *gin.Context) {
	s.sup.Stop()
	c.JSON(http.StatusOK, gin.H{"state": s.sup.State().String()})
}

// LogTailHandler returns the bounded tail of the backend log, the same text
// failure dialogs show.
func (s *Server) LogTailHandler(c *gin.Context) {
	data, err := os.ReadFile(s.logPath)
	if err != nil {
		c.JSON(http.StatusOK, LogTail{Path: s.logPath})
		return
	}
	if len(data) > s.logTailBytes {
		data = data[len(data)-s.logTailBytes:]
	}
	c.JSON(http.StatusOK, LogTail{Path: s.logPath, Bytes: len(data), Tail: string(data)})
}

// JournalHandler lists recent lifecycle events.
func (s *Server) JournalHandler(c *gin.Context) {
	entries, err := s.journal.Recent(50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": entries})
}
