package supervisor

import (
	"net"
	"strconv"
)

// backendAddr is the loopback endpoint the backend is contracted to listen on.
func (s *Supervisor) backendAddr() string {
	return net.JoinHostPort(s.cfg.BackendHost, strconv.Itoa(s.cfg.BackendPort))
}

// IsBackendReachable does a bare TCP connect-and-close against the backend
// port. Connect success, refusal and timeout all resolve within the probe
// timeout; any failure reads as "not reachable".
func (s *Supervisor) IsBackendReachable() bool {
	conn, err := s.sys.dial("tcp", s.backendAddr(), s.cfg.ProbeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
