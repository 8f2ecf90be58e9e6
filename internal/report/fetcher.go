// Package report downloads the forensic report of a case and hands it to the
// platform's document viewer. The document is never parsed.
package report

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cybershield-india/evidence-console/internal/casefile"
)

// Source streams a case's report document.
type Source interface {
	GetReport(ctx context.Context, caseID string, w io.Writer) (int64, error)
}

// Opener displays a downloaded document.
type Opener interface {
	Open(path string) error
}

// SystemOpener launches the desktop's default viewer.
type SystemOpener struct{}

// Open starts the viewer without waiting for it to exit.
func (SystemOpener) Open(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// NoopOpener leaves the file on disk.
type NoopOpener struct{}

func (NoopOpener) Open(string) error { return nil }

// Fetcher saves reports under Dir.
type Fetcher struct {
	src    Source
	dir    string
	opener Opener
	logger *log.Logger
}

// NewFetcher creates a Fetcher. A nil opener only saves the file.
func NewFetcher(src Source, dir string, opener Opener, logger *log.Logger) *Fetcher {
	if dir == "" {
		dir = "reports"
	}
	if opener == nil {
		opener = NoopOpener{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Fetcher{src: src, dir: dir, opener: opener, logger: logger}
}

// FileName is the on-disk name of a case's report.
func FileName(caseID string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, caseID)
	return safe + "_forensic_report.pdf"
}

// Fetch downloads the report for caseID and opens it. A failed open still
// returns the saved path along with the error.
func (f *Fetcher) Fetch(ctx context.Context, caseID string) (string, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return "", fmt.Errorf("%w: report requires a case id", casefile.ErrGuard)
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}

	final := filepath.Join(f.dir, FileName(caseID))
	tmp, err := os.CreateTemp(f.dir, ".report-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	n, err := f.src.GetReport(ctx, caseID, tmp)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("fetch report %s: %w", caseID, err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("save report: %w", err)
	}
	f.logger.Printf("Saved report for %s (%d bytes) to %s", caseID, n, final)

	if err := f.opener.Open(final); err != nil {
		return final, err
	}
	return final, nil
}
