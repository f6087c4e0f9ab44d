//go:build windows

package supervisor

import (
	"io"
	"os/exec"
	"strconv"
	"syscall"
)

// newLaunchCmd builds the child command in a new process group, detached
// from the shell's console, so it can outlive the parent and still be torn
// down as a tree.
func newLaunchCmd(spec launchSpec, logw io.Writer) *exec.Cmd {
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdout = logw
	cmd.Stderr = logw
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
	return cmd
}

// terminateTree kills the process and its descendants. Windows has no group
// signal usable from a detached parent; taskkill /T walks the tree for us.
func terminateTree(pid int) error {
	return exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).Run()
}

func exitSignal(ee *exec.ExitError) string {
	// Windows exits carry no signal.
	_ = ee
	return ""
}
