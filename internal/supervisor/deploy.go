package supervisor

import (
	"path/filepath"
	"runtime"
)

// Deployment directory contract. The backend payload is recognized by these
// names at the directory root.
const (
	execBaseName = "avatar-backend"
	entryScript  = "run_server.py"
	buildIDFile  = "backend-build-id.txt"
)

// goos is split out so variant tests can exercise both platforms.
var goos = runtime.GOOS

func execFileName() string {
	if goos == "windows" {
		return execBaseName + ".exe"
	}
	return execBaseName
}

func interpreterPath(dir string) string {
	if goos == "windows" {
		return filepath.Join(dir, "python", "python.exe")
	}
	return filepath.Join(dir, "python", "bin", "python3")
}

// devSiblingNames are the checkout guesses tried in dev mode, relative to
// both the executable's directory and the working directory.
var devSiblingNames = []string{"avatar-backend", "backend"}

// deploymentDir resolves the backend directory once per process lifetime:
// explicit override first (used as-is, the operator is trusted), then the
// staged per-user directory for packaged installs, then sibling checkout
// guesses for development. Always returns a path; the last guess doubles as
// the default when nothing exists yet.
func (s *Supervisor) deploymentDir() string {
	s.deployOnce.Do(func() {
		s.deployDir = s.resolveDeploymentDir()
	})
	return s.deployDir
}

func (s *Supervisor) resolveDeploymentDir() string {
	if s.cfg.OverrideDir != "" {
		return s.cfg.OverrideDir
	}
	if s.packaged() {
		return s.cfg.StagedDir
	}

	var candidates []string
	if exeDir, err := s.sys.execDir(); err == nil {
		for _, name := range devSiblingNames {
			candidates = append(candidates, filepath.Join(exeDir, "..", name))
		}
	}
	if wd, err := s.sys.getwd(); err == nil {
		for _, name := range devSiblingNames {
			candidates = append(candidates, filepath.Join(wd, name))
		}
	}
	if len(candidates) == 0 {
		return devSiblingNames[len(devSiblingNames)-1]
	}
	for _, c := range candidates {
		if s.dirExists(c) {
			return c
		}
	}
	return candidates[len(candidates)-1]
}

// packaged reports whether a bundled payload ships with this install.
func (s *Supervisor) packaged() bool {
	return s.cfg.ResourceRoot != ""
}

func (s *Supervisor) dirExists(path string) bool {
	info, err := s.sys.stat(path)
	return err == nil && info.IsDir()
}

func (s *Supervisor) fileExists(path string) bool {
	info, err := s.sys.stat(path)
	return err == nil && !info.IsDir()
}

// candidate pairs a launch variant with the file that must exist for it.
type candidate struct {
	Variant Variant
	Path    string // executable or interpreter binary; empty for dev fallback
	Script  string // entry script, interpreter variant only
}

// executableCandidates lists launch options in fixed priority order:
// compiled executable, embedded interpreter, dev fallback. Pure function of
// the deployment directory and platform.
func executableCandidates(dir string) []candidate {
	return []candidate{
		{Variant: VariantExecutable, Path: filepath.Join(dir, execFileName())},
		{Variant: VariantInterpreter, Path: interpreterPath(dir), Script: filepath.Join(dir, entryScript)},
		{Variant: VariantDev},
	}
}

// selectVariant re-probes the deployment directory on every start attempt so
// an upgraded payload changes the variant without a restart of the shell.
func (s *Supervisor) selectVariant(dir string) candidate {
	for _, c := range executableCandidates(dir) {
		switch c.Variant {
		case VariantExecutable:
			if s.fileExists(c.Path) {
				return c
			}
		case VariantInterpreter:
			if s.fileExists(c.Path) && s.fileExists(c.Script) {
				return c
			}
		case VariantDev:
			return c
		}
	}
	return candidate{Variant: VariantDev}
}
