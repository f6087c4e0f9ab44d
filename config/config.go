package config

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Core configuration (environment variables)
var (
	DataRoot   string // per-user data root
	HTTPPort   string // shell control/UI port
	BackendDir string // AVATARDOCK_BACKEND_DIR override; pins the deployment dir and disables staging
)

// Derived paths (based on DataRoot)
var (
	LogDir      string // $DATA_ROOT/log
	ShellLog    string // $DATA_ROOT/log/avatardock.log
	BackendLog  string // $DATA_ROOT/log/backend.log
	JournalPath string // $DATA_ROOT/journal.db
	StagedDir   string // $DATA_ROOT/backend (staged payload in packaged mode)
	Overrides   string // $DATA_ROOT/avatardock.yaml
)

// Backend contract
var (
	BackendHost   = "127.0.0.1"
	BackendPort   = 12393
	ProbeTimeout  = 250 * time.Millisecond
	PollInterval  = 1 * time.Second
	StartDeadline = 3 * time.Minute
	LogTailBytes  = 4000
)

// EnvBackendDir is the override variable name, surfaced in remediation hints.
const EnvBackendDir = "AVATARDOCK_BACKEND_DIR"

func init() {
	DataRoot = getEnv("AVATARDOCK_DATA_ROOT", defaultDataRoot())
	HTTPPort = getEnv("AVATARDOCK_HTTP_PORT", "61090")
	BackendDir = os.Getenv(EnvBackendDir)

	LogDir = filepath.Join(DataRoot, "log")
	ShellLog = filepath.Join(LogDir, "avatardock.log")
	BackendLog = filepath.Join(LogDir, "backend.log")
	JournalPath = filepath.Join(DataRoot, "journal.db")
	StagedDir = filepath.Join(DataRoot, "backend")
	Overrides = filepath.Join(DataRoot, "avatardock.yaml")

	loadOverrides(Overrides)
}

// overridesFile is the optional avatardock.yaml at the data root.
// Only tunables live here; paths stay derived from DataRoot.
type overridesFile struct {
	BackendHost     string `yaml:"backend_host"`
	BackendPort     int    `yaml:"backend_port"`
	HTTPPort        string `yaml:"http_port"`
	StartDeadlineS  int    `yaml:"start_deadline_seconds"`
	PollIntervalMS  int    `yaml:"poll_interval_ms"`
	ProbeTimeoutMS  int    `yaml:"probe_timeout_ms"`
	LogTailBytesMax int    `yaml:"log_tail_bytes"`
}

func loadOverrides(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // optional file
	}
	var o overridesFile
	if err := yaml.Unmarshal(data, &o); err != nil {
		log.Printf("Warning: ignoring malformed %s: %v", path, err)
		return
	}
	if o.BackendHost != "" {
		BackendHost = o.BackendHost
	}
	if o.BackendPort > 0 {
		BackendPort = o.BackendPort
	}
	if o.HTTPPort != "" {
		HTTPPort = o.HTTPPort
	}
	if o.StartDeadlineS > 0 {
		StartDeadline = time.Duration(o.StartDeadlineS) * time.Second
	}
	if o.PollIntervalMS > 0 {
		PollInterval = time.Duration(o.PollIntervalMS) * time.Millisecond
	}
	if o.ProbeTimeoutMS > 0 {
		ProbeTimeout = time.Duration(o.ProbeTimeoutMS) * time.Millisecond
	}
	if o.LogTailBytesMax > 0 {
		LogTailBytes = o.LogTailBytesMax
	}
}

// defaultDataRoot returns the per-user writable location used by packaged
// installs: %APPDATA%\avatardock on Windows, ~/Library/Application Support
// on macOS, XDG data dir otherwise.
func defaultDataRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "avatardock")
		}
		return filepath.Join(home, "AppData", "Roaming", "avatardock")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "avatardock")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "avatardock")
		}
		return filepath.Join(home, ".local", "share", "avatardock")
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
