package supervisor

import (
	"errors"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// fakeWorld backs the sysops fields so supervisor logic runs without disk,
// network or processes.
type fakeWorld struct {
	mu sync.Mutex

	dirs  map[string]bool
	files map[string]string

	removed   []string
	copies    [][2]string
	extracted [][2]string
	copyErr   error // fails the next copyTree call, then clears

	reachable      bool
	reachableAfter int // if > 0, dial succeeds once this many sleeps happened
	spawned        []launchSpec
	spawnErr       error
	nextProc       *fakeProc
	execDir        string
	workDir        string
	now            time.Time
	sleeps         int
	logOpenErr     error
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		dirs:    map[string]bool{},
		files:   map[string]string{},
		execDir: filepath.Join("/opt", "avatardock"),
		workDir: filepath.Join("/home", "user"),
		now:     time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}
}

func (w *fakeWorld) addDir(path string) { w.dirs[path] = true }

func (w *fakeWorld) addFile(path, content string) {
	w.files[path] = content
	for d := filepath.Dir(path); d != "." && d != string(filepath.Separator); d = filepath.Dir(d) {
		w.dirs[d] = true
	}
}

func (w *fakeWorld) sysops() sysops {
	return sysops{
		environ: func() []string { return []string{"PATH=/usr/bin", "HOME=/home/user"} },
		stat: func(path string) (os.FileInfo, error) {
			w.mu.Lock()
			defer w.mu.Unlock()
			if w.dirs[path] {
				return fakeInfo{name: filepath.Base(path), dir: true}, nil
			}
			if _, ok := w.files[path]; ok {
				return fakeInfo{name: filepath.Base(path)}, nil
			}
			return nil, os.ErrNotExist
		},
		readFile: func(path string) ([]byte, error) {
			w.mu.Lock()
			defer w.mu.Unlock()
			if content, ok := w.files[path]; ok {
				return []byte(content), nil
			}
			return nil, os.ErrNotExist
		},
		writeFile: func(path string, data []byte, _ os.FileMode) error {
			w.mu.Lock()
			defer w.mu.Unlock()
			w.files[path] = string(data)
			return nil
		},
		removeAll: func(path string) error {
			w.mu.Lock()
			defer w.mu.Unlock()
			w.removed = append(w.removed, path)
			delete(w.dirs, path)
			prefix := path + string(filepath.Separator)
			for p := range w.dirs {
				if strings.HasPrefix(p, prefix) {
					delete(w.dirs, p)
				}
			}
			for p := range w.files {
				if strings.HasPrefix(p, prefix) {
					delete(w.files, p)
				}
			}
			return nil
		},
		mkdirAll: func(path string, _ os.FileMode) error {
			w.mu.Lock()
			defer w.mu.Unlock()
			w.dirs[path] = true
			return nil
		},
		copyTree: func(src, dst string) error {
			w.mu.Lock()
			defer w.mu.Unlock()
			w.copies = append(w.copies, [2]string{src, dst})
			// Even a failed copy leaves a partial tree behind.
			w.dirs[dst] = true
			if w.copyErr != nil {
				err := w.copyErr
				w.copyErr = nil
				return err
			}
			return nil
		},
		extract: func(archive, dst string) error {
			w.mu.Lock()
			defer w.mu.Unlock()
			w.extracted = append(w.extracted, [2]string{archive, dst})
			w.dirs[dst] = true
			return nil
		},
		openLog: func(string) (io.WriteCloser, error) {
			if w.logOpenErr != nil {
				return nil, w.logOpenErr
			}
			return nopWriteCloser{}, nil
		},
		dial: func(_, _ string, _ time.Duration) (net.Conn, error) {
			w.mu.Lock()
			defer w.mu.Unlock()
			if w.reachable || (w.reachableAfter > 0 && w.sleeps >= w.reachableAfter) {
				return fakeConn{}, nil
			}
			return nil, errors.New("connection refused")
		},
		sleep: func(d time.Duration) {
			w.mu.Lock()
			defer w.mu.Unlock()
			w.sleeps++
			w.now = w.now.Add(d)
		},
		now: func() time.Time {
			w.mu.Lock()
			defer w.mu.Unlock()
			return w.now
		},
		spawn: func(spec launchSpec, _ io.Writer) (procHandle, error) {
			w.mu.Lock()
			defer w.mu.Unlock()
			w.spawned = append(w.spawned, spec)
			if w.spawnErr != nil {
				return nil, w.spawnErr
			}
			if w.nextProc == nil {
				w.nextProc = newFakeProc(4242)
			}
			return w.nextProc, nil
		},
		execDir: func() (string, error) { return w.execDir, nil },
		getwd:   func() (string, error) { return w.workDir, nil },
	}
}

func (w *fakeWorld) setReachable(v bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reachable = v
}

// setReachableAfterSleeps makes dial succeed once the poll loop has slept n
// times in total, so health transitions happen at a deterministic iteration.
func (w *fakeWorld) setReachableAfterSleeps(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reachableAfter = n
}

func (w *fakeWorld) sleepCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sleeps
}

func (w *fakeWorld) spawnCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.spawned)
}

// fakeProc is a controllable procHandle.
type fakeProc struct {
	pid        int
	done       chan exitStatus
	mu         sync.Mutex
	terminated bool
}

func newFakeProc(pid int) *fakeProc {
	return &fakeProc{pid: pid, done: make(chan exitStatus, 1)}
}

func (p *fakeProc) Pid() int                { return p.pid }
func (p *fakeProc) Done() <-chan exitStatus { return p.done }

func (p *fakeProc) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated = true
	return nil
}

func (p *fakeProc) exit(st exitStatus) { p.done <- st }

func (p *fakeProc) wasTerminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

type fakeInfo struct {
	name string
	dir  bool
}

func (f fakeInfo) Name() string       { return f.name }
func (f fakeInfo) Size() int64        { return 0 }
func (f fakeInfo) Mode() fs.FileMode  { return 0644 }
func (f fakeInfo) ModTime() time.Time { return time.Time{} }
func (f fakeInfo) IsDir() bool        { return f.dir }
func (f fakeInfo) Sys() any           { return nil }

type fakeConn struct{}

func (fakeConn) Read([]byte) (int, error)           { return 0, io.EOF }
func (fakeConn) Write(b []byte) (int, error)        { return len(b), nil }
func (fakeConn) Close() error                       { return nil }
func (fakeConn) LocalAddr() net.Addr                { return &net.TCPAddr{} }
func (fakeConn) RemoteAddr() net.Addr               { return &net.TCPAddr{} }
func (fakeConn) SetDeadline(time.Time) error        { return nil }
func (fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (fakeConn) SetWriteDeadline(t time.Time) error { return nil }

type nopWriteCloser struct{}

func (nopWriteCloser) Write(b []byte) (int, error) { return len(b), nil }
func (nopWriteCloser) Close() error                { return nil }
