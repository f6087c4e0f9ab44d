//go:build !windows

package supervisor

import (
	"io"
	"os/exec"
	"syscall"
)

// newLaunchCmd builds the child command with its own process group so the
// whole backend tree can be signaled at once, and so the child survives the
// shell exiting. No Pdeathsig: the backend is allowed to outlive the parent;
// Stop is the only sanctioned teardown.
func newLaunchCmd(spec launchSpec, logw io.Writer) *exec.Cmd {
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdout = logw
	cmd.Stderr = logw
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// terminateTree signals the whole process group, falling back to the single
// process when the group signal fails.
func terminateTree(pid int) error {
	if err := syscall.Kill(-pid, syscall.SIGTERM); err == nil {
		return nil
	}
	return syscall.Kill(pid, syscall.SIGTERM)
}

func exitSignal(ee *exec.ExitError) string {
	if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ws.Signal().String()
	}
	return ""
}
