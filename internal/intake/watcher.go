package intake

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchOptions controls the drop folder watcher.
type WatchOptions struct {
	Dir      string
	Logger   *log.Logger
	// Settle delays a rescan after a burst of events so half-written files are
	// not offered.
	Settle   time.Duration
	// OnChange receives the folder contents after every rescan.
	OnChange func([]Media)
}

// Watcher keeps a live list of the media in a drop folder.
type Watcher struct {
	opts WatchOptions

	mu    sync.RWMutex
	files []Media
}

// NewWatcher creates a watcher for opts.Dir. The directory is created if missing.
func NewWatcher(opts WatchOptions) *Watcher {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Settle <= 0 {
		opts.Settle = 250 * time.Millisecond
	}
	return &Watcher{opts: opts}
}

// Files returns the most recent folder listing.
func (w *Watcher) Files() []Media {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Media(nil), w.files...)
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.opts.Dir }

// Rescan reads the folder and publishes the result.
func (w *Watcher) Rescan() error {
	files, err := Scan(w.opts.Dir)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.files = files
	w.mu.Unlock()
	if w.opts.OnChange != nil {
		w.opts.OnChange(append([]Media(nil), files...))
	}
	return nil
}

// Run scans once, then rescans on every relevant change until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("create intake dir: %w", err)
	}
	if err := w.Rescan(); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("watch add: %w", err)
	}
	w.opts.Logger.Printf("Watching intake directory: %s", w.opts.Dir)

	settle := time.NewTimer(w.opts.Settle)
	settle.Stop()

	for {
		select {
		case <-ctx.Done():
			settle.Stop()
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if _, supported := Classify(filepath.Base(ev.Name)); !supported {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			settle.Reset(w.opts.Settle)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Printf("watch error: %v", err)
		case <-settle.C:
			if err := w.Rescan(); err != nil {
				w.opts.Logger.Printf("rescan %s: %v", w.opts.Dir, err)
			}
		}
	}
}

// Names returns the file names of a listing, sorted.
func Names(files []Media) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name)
	}
	sort.Strings(out)
	return out
}
