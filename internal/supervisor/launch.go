package supervisor

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// buildLaunchSpec turns the selected variant into a concrete command line.
// The deployment directory is always the working directory so the backend
// finds its own config and assets.
func (s *Supervisor) buildLaunchSpec(dir string, c candidate) launchSpec {
	env := s.sys.environ()

	switch c.Variant {
	case VariantExecutable:
		// Co-located shared libraries must resolve next to the binary.
		env = appendPath(env, dir)
		return launchSpec{Variant: c.Variant, Path: c.Path, Dir: dir, Env: env}

	case VariantInterpreter:
		// Point the embedded interpreter at the payload and keep user-local
		// site packages out of its module path.
		env = append(env,
			"PYTHONPATH="+dir,
			"PYTHONNOUSERSITE=1",
			"PYTHONUNBUFFERED=1",
		)
		return launchSpec{Variant: c.Variant, Path: c.Path, Args: []string{c.Script}, Dir: dir, Env: env}

	default:
		shell, flag := platformShell()
		run := fmt.Sprintf("cd %s && uv run %s", shellQuote(dir), entryScript)
		return launchSpec{Variant: VariantDev, Path: shell, Args: []string{flag, run}, Dir: dir, Env: env}
	}
}

func platformShell() (shell, flag string) {
	if goos == "windows" {
		return "cmd", "/C"
	}
	return "/bin/sh", "-c"
}

func shellQuote(path string) string {
	if goos == "windows" {
		return `"` + path + `"`
	}
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

// appendPath prepends dir to the PATH entry in env, adding one if absent.
func appendPath(env []string, dir string) []string {
	key := "PATH"
	if goos == "windows" {
		key = "Path"
	}
	for i, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.EqualFold(k, "PATH") {
			env[i] = k + "=" + dir + string(os.PathListSeparator) + v
			return env
		}
	}
	return append(env, key+"="+dir)
}

// osProc is the production procHandle: a detached child plus a watch
// goroutine that reports its exit exactly once.
type osProc struct {
	pid  int
	done chan exitStatus
}

func (p *osProc) Pid() int                { return p.pid }
func (p *osProc) Done() <-chan exitStatus { return p.done }
func (p *osProc) Terminate() error        { return terminateTree(p.pid) }

// spawnBackend starts the child detached with stdout/stderr appended to the
// backend log. Platform specifics (process group, Job Object semantics) live
// in newLaunchCmd.
func spawnBackend(spec launchSpec, logw io.Writer) (procHandle, error) {
	cmd := newLaunchCmd(spec, logw)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &osProc{pid: cmd.Process.Pid, done: make(chan exitStatus, 1)}
	go func() {
		st := waitStatus(cmd.Wait())
		if c, ok := logw.(io.Closer); ok {
			c.Close()
		}
		p.done <- st
	}()
	return p, nil
}

// waitStatus normalizes cmd.Wait results into an exitStatus.
func waitStatus(err error) exitStatus {
	if err == nil {
		return exitStatus{Code: 0}
	}
	st := exitStatus{Code: -1}
	if ee, ok := err.(*exec.ExitError); ok {
		st.Code = ee.ExitCode()
		if sig := exitSignal(ee); sig != "" {
			st.Signal = sig
		}
	}
	return st
}

// readLogTail returns up to maxBytes from the end of the backend log, for
// failure dialogs. Best effort; missing or unreadable logs yield "".
func (s *Supervisor) readLogTail(maxBytes int) string {
	data, err := s.sys.readFile(s.cfg.LogPath)
	if err != nil {
		return ""
	}
	if len(data) > maxBytes {
		data = data[len(data)-maxBytes:]
	}
	return strings.TrimSpace(string(data))
}
