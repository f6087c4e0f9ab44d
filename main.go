package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"avatardock/config"
	"avatardock/internal/api"
	"avatardock/internal/gateway"
	"avatardock/internal/journal"
	"avatardock/internal/supervisor"

	"github.com/gin-gonic/gin"
	_ "github.com/glebarez/go-sqlite" // register the sqlite driver
)

func main() {
	initDirectories()
	initLogging()

	log.Println("Starting avatardock...")

	j, err := journal.Open(config.JournalPath)
	if err != nil {
		log.Printf("Warning: lifecycle journal unavailable: %v", err)
		j = nil
	}

	sup := supervisor.New(supervisor.Config{
		BackendHost:   config.BackendHost,
		BackendPort:   config.BackendPort,
		OverrideDir:   config.BackendDir,
		ResourceRoot:  resourceRoot(),
		StagedDir:     config.StagedDir,
		LogPath:       config.BackendLog,
		EnvHint:       config.EnvBackendDir,
		ProbeTimeout:  config.ProbeTimeout,
		PollInterval:  config.PollInterval,
		StartDeadline: config.StartDeadline,
		LogTailBytes:  config.LogTailBytes,
	}, j, notifyUser)

	// Bring the backend up before the UI needs it. The UI polls readiness
	// while this runs, so the control surface starts in parallel.
	go sup.StartIfNeeded()

	srvErrCh := make(chan error, 1)
	go func() {
		if err := runService(sup, j); err != nil && err != http.ErrServerClosed {
			srvErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v. Shutting down...", sig)
	case err := <-srvErrCh:
		log.Printf("Service error: %v. Shutting down...", err)
	}

	sup.Stop()
	if err := j.Close(); err != nil {
		log.Printf("Warning: journal close: %v", err)
	}

	<-time.After(500 * time.Millisecond)
	log.Println("avatardock exit.")
}

func initDirectories() {
	dirs := []string{
		config.DataRoot,
		config.LogDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("Warning: failed to create directory %s: %v", dir, err)
		}
	}
}

func initLogging() {
	logFile, err := os.OpenFile(config.ShellLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Printf("Warning: failed to open log file: %v, using stdout", err)
		return
	}

	log.SetOutput(logFile)
	gin.DefaultWriter = logFile
	gin.DefaultErrorWriter = logFile
}

// resourceRoot locates the bundled payload directory a packaged install
// ships next to the shell executable. Empty in development, which switches
// the supervisor to sibling-checkout resolution.
func resourceRoot() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	root := filepath.Join(filepath.Dir(exe), "resources")
	if info, err := os.Stat(root); err == nil && info.IsDir() {
		return root
	}
	return ""
}

// notifyUser surfaces a fatal startup notice. The UI shows these as dialogs;
// the shell also keeps them in its own log.
func notifyUser(title, detail string) {
	log.Printf("[Notice] %s: %s", title, detail)
}

func runService(sup *supervisor.Supervisor, j *journal.Journal) error {
	backendURL := fmt.Sprintf("http://%s:%d", config.BackendHost, config.BackendPort)

	gw, err := gateway.New(backendURL, "/backend/app", func() bool {
		return sup.State() == supervisor.Running
	})
	if err != nil {
		return fmt.Errorf("gateway setup: %w", err)
	}

	server := api.NewServer(sup, j, backendURL, config.BackendLog, config.LogTailBytes)

	r := gin.Default()
	r.GET("/health", api.HealthCheckHandler)
	r.GET("/backend/ready", server.ReadinessHandler)
	r.GET("/backend/ready/http", server.ReadyHTTPHandler)
	r.GET("/backend/status", server.StatusHandler)
	r.POST("/backend/start", server.StartHandler)
	r.POST("/backend/stop", server.StopHandler)
	r.GET("/backend/log", server.LogTailHandler)
	r.GET("/backend/journal", server.JournalHandler)

	// Everything under /backend/app is proxied to the backend itself.
	r.Any("/backend/app/*path", func(c *gin.Context) {
		gw.ServeHTTP(c.Writer, c.Request)
	})

	addr := "127.0.0.1:" + config.HTTPPort
	log.Printf("Control surface listening on %s", addr)
	return (&http.Server{Addr: addr, Handler: r}).ListenAndServe()
}
