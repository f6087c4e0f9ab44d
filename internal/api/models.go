package api

// BackendStatus is the UI-facing snapshot of the supervised backend.
type BackendStatus struct {
	State         string `json:"state"`
	Reachable     bool   `json:"reachable"`
	DeploymentDir string `json:"deployment_dir"`
	Variant       string `json:"variant"`
	Pid           int    `json:"pid,omitempty"`
	LastNotice    string `json:"last_notice,omitempty"`
}

// LogTail is a bounded read from the end of the backend log.
type LogTail struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
	Tail  string `json:"tail"`
}
