package supervisor

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"time"
)

// exitStatus is what the watch goroutine reports when the child exits.
type exitStatus struct {
	Code   int
	Signal string
}

// procHandle is the supervisor's view of a spawned backend process.
type procHandle interface {
	Pid() int
	// Done yields exactly one exitStatus when the process exits.
	Done() <-chan exitStatus
	// Terminate best-effort kills the whole process tree.
	Terminate() error
}

// launchSpec describes one concrete way to start the backend.
type launchSpec struct {
	Variant Variant
	Path    string
	Args    []string
	Dir     string
	Env     []string
}

// sysops holds the supervisor's touchpoints with the OS. Tests replace
// individual fields; production uses defaultSysops.
type sysops struct {
	environ   func() []string
	stat      func(path string) (os.FileInfo, error)
	readFile  func(path string) ([]byte, error)
	writeFile func(path string, data []byte, perm os.FileMode) error
	removeAll func(path string) error
	mkdirAll  func(path string, perm os.FileMode) error
	copyTree  func(src, dst string) error
	extract   func(archive, dst string) error
	openLog   func(path string) (io.WriteCloser, error)
	dial      func(network, addr string, timeout time.Duration) (net.Conn, error)
	sleep     func(d time.Duration)
	now       func() time.Time
	spawn     func(spec launchSpec, logw io.Writer) (procHandle, error)
	execDir   func() (string, error)
	getwd     func() (string, error)
}

func defaultSysops() sysops {
	return sysops{
		environ:   os.Environ,
		stat:      os.Stat,
		readFile:  os.ReadFile,
		writeFile: os.WriteFile,
		removeAll: os.RemoveAll,
		mkdirAll:  os.MkdirAll,
		copyTree:  copyDir,
		extract:   extractArchive,
		openLog:   openAppendLog,
		dial:      net.DialTimeout,
		sleep:     time.Sleep,
		now:       time.Now,
		spawn:     spawnBackend,
		execDir:   executableDir,
		getwd:     os.Getwd,
	}
}

func openAppendLog(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
}

func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}
