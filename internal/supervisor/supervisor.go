// Package supervisor owns the backend lifecycle: locating the payload,
// staging it into a writable directory, launching the right variant,
// health-checking it into service and tearing it down again.
package supervisor

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Config pins everything the supervisor needs from the environment. Resolved
// once by the caller; the supervisor itself never reads globals.
type Config struct {
	BackendHost string
	BackendPort int

	// OverrideDir is the operator-pinned deployment directory
	// (AVATARDOCK_BACKEND_DIR). Disables staging when set.
	OverrideDir string
	// ResourceRoot is where a packaged install keeps its bundled payload;
	// empty in development.
	ResourceRoot string
	// StagedDir is the writable per-user deployment directory used by
	// packaged installs.
	StagedDir string
	// LogPath is the append-mode backend log file.
	LogPath string

	// EnvHint names the override variable for remediation messages.
	EnvHint string

	ProbeTimeout  time.Duration
	PollInterval  time.Duration
	StartDeadline time.Duration
	LogTailBytes  int
}

// Recorder receives lifecycle events for the diagnostics journal.
type Recorder interface {
	Record(event, detail string)
}

// Notifier surfaces a user-facing failure dialog. Never called on the happy
// path.
type Notifier func(title, detail string)

// Supervisor manages at most one backend child process. All public entry
// points are safe for concurrent use and never propagate errors; failures
// end in a state update plus a notice.
type Supervisor struct {
	cfg     Config
	sys     sysops
	journal Recorder
	notify  Notifier

	deployOnce sync.Once
	deployDir  string

	mu          sync.Mutex
	state       State
	inflight    bool // a StartIfNeeded is running; duplicates return early
	proc        procHandle
	lastVariant Variant
	lastNotice  string
}

func New(cfg Config, journal Recorder, notify Notifier) *Supervisor {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 250 * time.Millisecond
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.StartDeadline <= 0 {
		cfg.StartDeadline = 3 * time.Minute
	}
	if cfg.LogTailBytes <= 0 {
		cfg.LogTailBytes = 4000
	}
	return &Supervisor{cfg: cfg, sys: defaultSysops(), journal: journal, notify: notify}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status is a point-in-time snapshot for the API layer.
type Status struct {
	State         State
	DeploymentDir string
	Variant       Variant
	Pid           int
	LastNotice    string
}

func (s *Supervisor) Snapshot() Status {
	s.mu.Lock()
	st := Status{
		State:      s.state,
		Variant:    s.lastVariant,
		LastNotice: s.lastNotice,
	}
	if s.proc != nil {
		st.Pid = s.proc.Pid()
	}
	s.mu.Unlock()
	st.DeploymentDir = s.deploymentDir()
	return st
}

// DeploymentDir exposes the resolved directory (stable for the process
// lifetime).
func (s *Supervisor) DeploymentDir() string {
	return s.deploymentDir()
}

// StartIfNeeded brings the backend up if it is not already up. Idempotent:
// while Starting or Running (or with another StartIfNeeded in flight) it
// returns immediately without spawning. It blocks until the backend is
// healthy, a failure is certain, or the start deadline passes, and never
// returns an error; failures are reported through the Notifier and leave the
// state Stopped.
func (s *Supervisor) StartIfNeeded() {
	s.mu.Lock()
	if s.inflight || s.state != Stopped {
		s.mu.Unlock()
		return
	}
	s.inflight = true
	held := s.proc
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inflight = false
		s.mu.Unlock()
	}()

	// Somebody already listens on our port: a dev server, another shell, or
	// a previous child that finished its first-run setup. Adopt it instead
	// of spawning a second backend.
	if s.IsBackendReachable() {
		s.mu.Lock()
		s.state = Running
		s.lastNotice = ""
		s.mu.Unlock()
		s.record("adopted", "backend already listening on "+s.backendAddr())
		return
	}

	if held != nil {
		// A previous attempt's child is alive but not healthy yet (first
		// run can download for a long time). Never hold a second handle.
		s.record("start-skipped", fmt.Sprintf("previous backend pid=%d still initializing", held.Pid()))
		return
	}

	if err := s.ensurePayloadStaged(); err != nil {
		title := "Backend update failed"
		if errors.Is(err, errBundleMissing) {
			title = "Backend installation broken"
		}
		s.fail(title, err.Error())
		return
	}

	dir := s.deploymentDir()
	if !s.dirExists(dir) {
		s.fail("Backend not found",
			fmt.Sprintf("no backend at %s; set %s to point at a backend checkout", dir, s.cfg.EnvHint))
		return
	}

	s.mu.Lock()
	s.state = Starting
	s.mu.Unlock()
	s.record("starting", "deployment dir "+dir)

	logw, err := s.openBackendLog()
	if err != nil {
		s.failStopped("Backend log unavailable", fmt.Sprintf("cannot open %s: %v", s.cfg.LogPath, err))
		return
	}

	c := s.selectVariant(dir)
	spec := s.buildLaunchSpec(dir, c)
	proc, err := s.sys.spawn(spec, logw)
	if err != nil {
		s.failStopped("Backend failed to start",
			s.failureNarrative(fmt.Sprintf("could not launch %s backend: %v", c.Variant, err)))
		return
	}

	s.mu.Lock()
	s.proc = proc
	s.lastVariant = c.Variant
	s.mu.Unlock()
	s.record("spawned", fmt.Sprintf("variant=%s pid=%d", c.Variant, proc.Pid()))

	s.awaitHealthy(proc)
}

// awaitHealthy polls reachability until success, recorded child exit, or the
// start deadline. The long deadline is deliberate: first run may download
// large model assets.
func (s *Supervisor) awaitHealthy(proc procHandle) {
	deadline := s.sys.now().Add(s.cfg.StartDeadline)
	for {
		// Stop during startup disowns the handle; the exit that follows
		// is expected and gets no dialog.
		s.mu.Lock()
		disowned := s.proc != proc
		s.mu.Unlock()
		if disowned {
			return
		}

		if s.IsBackendReachable() {
			s.mu.Lock()
			s.state = Running
			s.lastNotice = ""
			s.mu.Unlock()
			s.record("running", "backend healthy on "+s.backendAddr())
			go s.watchProcess(proc)
			return
		}

		select {
		case st := <-proc.Done():
			s.clearProc(proc)
			s.failStopped("Backend exited during startup",
				s.failureNarrative(fmt.Sprintf("backend exited before becoming healthy: code=%d%s",
					st.Code, signalSuffix(st.Signal))))
			return
		default:
		}

		if s.sys.now().After(deadline) {
			// Leave the child running: it may still be mid-download, and a
			// later StartIfNeeded will adopt it once the port opens. The
			// handle stays held so no second child gets spawned.
			s.failStopped("Backend start timed out", s.timeoutNarrative())
			go s.watchProcess(proc)
			return
		}
		s.sys.sleep(s.cfg.PollInterval)
	}
}

// watchProcess observes the child for exit, clearing the handle so a later
// StartIfNeeded can spawn again.
func (s *Supervisor) watchProcess(proc procHandle) {
	st := <-proc.Done()
	s.mu.Lock()
	if s.proc != proc {
		// Stop already disowned this handle.
		s.mu.Unlock()
		return
	}
	s.proc = nil
	s.state = Stopped
	s.mu.Unlock()
	s.record("exited", fmt.Sprintf("backend exited: code=%d%s", st.Code, signalSuffix(st.Signal)))
}

// Stop resets the state machine first so a subsequent start is not blocked
// on teardown, then best-effort kills the process tree. Never raises; a
// teardown failure is not actionable by the user.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	proc := s.proc
	s.proc = nil
	s.state = Stopped
	s.mu.Unlock()

	if proc == nil {
		return
	}
	s.record("stopping", fmt.Sprintf("terminating backend pid=%d", proc.Pid()))
	if err := proc.Terminate(); err != nil {
		s.record("stop-error", err.Error())
	}
}

func (s *Supervisor) openBackendLog() (io.Writer, error) {
	if err := s.sys.mkdirAll(filepath.Dir(s.cfg.LogPath), 0755); err != nil {
		return nil, err
	}
	return s.sys.openLog(s.cfg.LogPath)
}

func (s *Supervisor) clearProc(proc procHandle) {
	s.mu.Lock()
	if s.proc == proc {
		s.proc = nil
	}
	s.mu.Unlock()
}

// fail reports a failure from a still-Stopped state.
func (s *Supervisor) fail(title, detail string) {
	s.mu.Lock()
	s.lastNotice = detail
	s.mu.Unlock()
	s.record("failed", title+": "+detail)
	if s.notify != nil {
		s.notify(title, detail)
	}
}

// failStopped resets Starting back to Stopped, then reports.
func (s *Supervisor) failStopped(title, detail string) {
	s.mu.Lock()
	s.state = Stopped
	s.lastNotice = detail
	s.mu.Unlock()
	s.record("failed", title+": "+detail)
	if s.notify != nil {
		s.notify(title, detail)
	}
}

// failureNarrative appends a bounded tail of the backend log to a failure
// message so the dialog shows what the backend last said.
func (s *Supervisor) failureNarrative(lead string) string {
	var b strings.Builder
	b.WriteString(lead)
	if tail := s.readLogTail(s.cfg.LogTailBytes); tail != "" {
		b.WriteString("\n\nRecent backend log:\n")
		b.WriteString(tail)
	}
	return b.String()
}

// timeoutNarrative distinguishes "still downloading first-run assets" from a
// generic hang, based on what the backend last logged.
func (s *Supervisor) timeoutNarrative() string {
	tail := s.readLogTail(s.cfg.LogTailBytes)
	if strings.Contains(strings.ToLower(tail), "download") {
		return fmt.Sprintf("backend did not become healthy within %s; it appears to still be downloading large model assets, leave it running and try again in a few minutes\n\nRecent backend log:\n%s",
			s.cfg.StartDeadline, tail)
	}
	if tail != "" {
		return fmt.Sprintf("backend did not become healthy within %s\n\nRecent backend log:\n%s", s.cfg.StartDeadline, tail)
	}
	return fmt.Sprintf("backend did not become healthy within %s", s.cfg.StartDeadline)
}

func (s *Supervisor) record(event, detail string) {
	if s.journal != nil {
		s.journal.Record(event, detail)
	}
}

func signalSuffix(sig string) string {
	if sig == "" {
		return ""
	}
	return " signal=" + sig
}
