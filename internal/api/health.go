package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheckHandler reports the shell's own health.
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"service": "avatardock",
	})
}

// ReadinessHandler is the UI layer's backend readiness probe. The supervisor
// owns the verdict: its state plus one TCP probe, never an independent
// poller. 200 when the backend accepts connections, 503 otherwise.
func (s *Server) ReadinessHandler(c *gin.Context) {
	state := s.sup.State()
	ready := s.sup.IsBackendReachable()
	code := http.StatusServiceUnavailable
	if ready {
		code = http.StatusOK
	}
	c.JSON(code, gin.H{
		"ready": ready,
		"state": state.String(),
	})
}

// ReadyHTTPHandler performs the looser HTTP-level readiness check the UI
// uses for its splash screen: any HTTP response from the backend, a 404
// included, counts as ready, so the check does not depend on backend routes.
func (s *Server) ReadyHTTPHandler(c *gin.Context) {
	resp, err := s.httpClient.Get(s.backendURL + "/")
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	resp.Body.Close()
	c.JSON(http.StatusOK, gin.H{"ready": true, "backend_status": resp.StatusCode})
}
