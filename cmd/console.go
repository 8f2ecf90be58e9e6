package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cybershield-india/evidence-console/internal/api"
	"github.com/cybershield-india/evidence-console/internal/bus"
	"github.com/cybershield-india/evidence-console/internal/complaint"
	"github.com/cybershield-india/evidence-console/internal/footprint"
	"github.com/cybershield-india/evidence-console/internal/intake"
	"github.com/cybershield-india/evidence-console/internal/registry"
	"github.com/cybershield-india/evidence-console/internal/report"
	"github.com/cybershield-india/evidence-console/internal/store"
	"github.com/cybershield-india/evidence-console/internal/ui"
	"github.com/cybershield-india/evidence-console/internal/verify"
	"github.com/cybershield-india/evidence-console/internal/workflow"
	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
)

var forceTUI bool

func init() {
	rootCmd.Flags().BoolVar(&forceTUI, "force-tui", false, "Force the console even in unsupported terminals")
}

func runConsole(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()

	// Logs go to file, errors still visible on terminal
	var out io.Writer = os.Stderr
	if logFile := setupFileLogger(); logFile != nil {
		out = io.MultiWriter(logFile, &errorFilterWriter{os.Stderr})
		defer logFile.Close()
	}
	logger := newLogger(out, "console")
	logger.Println("Starting Evidence Console")

	if !forceTUI {
		w, h, ok := canInitializeTUI()
		if !ok {
			if needsPseudoTTY() {
				logger.Println("No TTY available, using script command for pseudo-TTY...")
				return runWithPseudoTTY(args)
			}
			return fmt.Errorf("this terminal cannot run the console (TERM=%q); retry with --force-tui", os.Getenv("TERM"))
		}
		logger.Printf("Terminal: TERM=%s size=%dx%d", os.Getenv("TERM"), w, h)
	}

	baseDir := getWorkingDir()
	journalPath := resolvePathRelativeToBase(baseDir, config.Database.Path)
	logger.Printf("Using custody journal at %s", journalPath)
	journal, err := store.NewStore(journalPath)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer journal.Close()

	activity := bus.NewBus(config.Redis.URL, newLogger(out, "bus"))
	defer activity.Close()

	client := api.NewClient(api.Options{
		BaseURL: config.API.BaseURL,
		Timeout: config.API.Timeout,
		Logger:  newLogger(out, "api"),
		Debug:   strings.EqualFold(config.Log.Level, "debug"),
	})
	reg := registry.New(client, registry.Options{
		DefaultLimit: config.API.ListLimit,
		MaxLimit:     config.API.MaxListLimit,
		Logger:       newLogger(out, "registry"),
	})
	reportsDir := resolvePathRelativeToBase(baseDir, config.Reports.Dir)

	ctl := workflow.New(workflow.Deps{
		Analyzer:   client,
		Registry:   reg,
		Verifier:   verify.New(reg, newLogger(out, "verify")),
		Footprints: footprint.New(client, newLogger(out, "footprint")),
		Reports:    report.NewFetcher(client, reportsDir, report.SystemOpener{}, newLogger(out, "report")),
		Journal:    journal,
		Bus:        activity,
		Drafter:    complaint.Drafter{Location: time.Local},
		Logger:     newLogger(out, "workflow"),
		Actor:      config.Actor,
	})

	svcCtx, svcCancel := context.WithCancel(ctx)
	defer svcCancel()

	var tui *ui.UI
	watcher := intake.NewWatcher(intake.WatchOptions{
		Dir:    resolvePathRelativeToBase(baseDir, config.Intake.Dir),
		Logger: newLogger(out, "intake"),
		OnChange: func(files []intake.Media) {
			if tui != nil {
				tui.MediaChanged(files)
			}
		},
	})
	if err := watcher.Rescan(); err != nil {
		logger.Printf("Intake folder not readable yet: %v", err)
	}

	tui = ui.NewUI(svcCtx, ui.Options{
		Controller:   ctl,
		Media:        watcher,
		Custody:      journal,
		Activity:     activity,
		ExplorerBase: config.Explorer.BaseURL,
		Theme:        config.UI.Theme,
		Logger:       newLogger(out, "UI"),
	})

	go func() {
		if err := watcher.Run(svcCtx); err != nil && svcCtx.Err() == nil {
			logger.Printf("Intake watcher error: %v", err)
		}
	}()

	mon := &monitor{
		journal: journal,
		bus:     activity,
		client:  client,
		logger:  newLogger(out, "monitor"),
	}
	mon.Start(svcCtx)
	defer mon.Stop()

	if err := tui.Start(svcCtx); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Println("Console exited, stopping background services...")
	svcCancel()
	logger.Println("Evidence Console stopped")
	return nil
}

func newLogger(w io.Writer, component string) *log.Logger {
	return log.New(w, "["+component+"] ", log.LstdFlags)
}

// canInitializeTUI tests if tcell can actually be initialized
func canInitializeTUI() (int, int, bool) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return 0, 0, false
	}
	if err := screen.Init(); err != nil {
		return 0, 0, false
	}
	w, h := screen.Size()
	// Clean up immediately
	screen.Fini()
	return w, h, true
}

// getExecutableDir returns the directory of the running executable.
// Falls back to current directory on error.
func getExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// getWorkingDir returns the current working directory.
// Falls back to executable directory if os.Getwd fails.
func getWorkingDir() string {
	if wd, err := os.Getwd(); err == nil && wd != "" {
		return wd
	}
	return getExecutableDir()
}

// resolvePathRelativeToBase resolves a possibly relative path against a base directory.
// Absolute paths are returned unchanged.
func resolvePathRelativeToBase(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	p = strings.TrimPrefix(p, "./")
	return filepath.Join(base, p)
}

// monitor periodically checks the activity bus and logs usage counters.
type monitor struct {
	journal *store.Store
	bus     bus.Bus
	client  *api.Client
	logger  *log.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (m *monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(2)
	go m.every(ctx, 30*time.Second, m.healthCheck)
	go m.every(ctx, 5*time.Minute, m.collectMetrics)
}

func (m *monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *monitor) every(ctx context.Context, d time.Duration, fn func(context.Context)) {
	defer m.wg.Done()
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (m *monitor) healthCheck(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := m.bus.HealthCheck(ctx); err != nil {
		m.logger.Printf("Redis health check failed: %v", err)
	}
}

func (m *monitor) collectMetrics(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if stats, err := m.bus.GetStats(ctx); err != nil {
		m.logger.Printf("Failed to get bus stats: %v", err)
	} else {
		m.logger.Printf("Bus stats: %+v", stats)
	}

	cm := m.client.Metrics()
	m.logger.Printf("API calls: %d ok, %d failed, last at %s", cm.CallsSuccess, cm.CallsError, cm.LastActivity.Format(time.RFC3339))

	if n, err := m.journal.CountEntries(ctx); err != nil {
		m.logger.Printf("Failed to count custody entries: %v", err)
	} else {
		m.logger.Printf("Custody journal: %d entries", n)
	}
}

// needsPseudoTTY checks if we need to use script command for pseudo-TTY
func needsPseudoTTY() bool {
	if file, err := os.OpenFile("/dev/tty", os.O_RDWR, 0); err == nil {
		file.Close()
		return false
	}
	return true
}

// runWithPseudoTTY re-executes the console under script(1) with --force-tui.
func runWithPseudoTTY(args []string) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cmdArgs := append([]string(nil), args...)
	hasForceTUI := false
	for _, arg := range args {
		if arg == "--force-tui" {
			hasForceTUI = true
			break
		}
	}
	if !hasForceTUI {
		cmdArgs = append(cmdArgs, "--force-tui")
	}

	quoted := make([]string, len(cmdArgs))
	for i, arg := range cmdArgs {
		quoted[i] = fmt.Sprintf(`"%s"`, arg)
	}
	fullCmd := fmt.Sprintf(`TERM=%s "%s" %s`, os.Getenv("TERM"), executable, strings.Join(quoted, " "))

	scriptCmd := exec.Command("script", "-qec", fullCmd, "/dev/null")
	scriptCmd.Stdin = os.Stdin
	scriptCmd.Stdout = os.Stdout
	scriptCmd.Stderr = os.Stderr
	scriptCmd.Env = os.Environ()
	return scriptCmd.Run()
}

// setupFileLogger opens logs/evidence-console.log under the working directory.
func setupFileLogger() *os.File {
	logDir := filepath.Join(getWorkingDir(), "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil
	}
	logFile, err := os.OpenFile(filepath.Join(logDir, "evidence-console.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil
	}
	return logFile
}

// errorFilterWriter only writes error messages to the underlying writer
type errorFilterWriter struct {
	writer io.Writer
}

func (w *errorFilterWriter) Write(p []byte) (n int, err error) {
	lc := strings.ToLower(string(p))

	// Registry and footprint misses degrade to empty views; keep them off the terminal.
	if strings.Contains(lc, "not found") {
		return len(p), nil
	}
	if strings.Contains(lc, "error") ||
		strings.Contains(lc, "failed") ||
		strings.Contains(lc, "panic") {
		return w.writer.Write(p)
	}
	return len(p), nil
}
