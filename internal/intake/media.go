// Package intake finds media the investigator can submit for analysis: single
// files picked by path and a watched drop folder.
package intake

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cybershield-india/evidence-console/internal/casefile"
)

// MaxFileSize is the largest upload the analysis service accepts.
const MaxFileSize = 50 << 20

var (
	// ErrUnsupported marks a file whose extension is neither image nor video.
	ErrUnsupported = errors.New("unsupported media type")
	// ErrTooLarge marks a file above MaxFileSize.
	ErrTooLarge = errors.New("file too large")
)

var extensions = map[string]casefile.MediaType{
	".jpg":  casefile.MediaImage,
	".jpeg": casefile.MediaImage,
	".png":  casefile.MediaImage,
	".gif":  casefile.MediaImage,
	".bmp":  casefile.MediaImage,
	".webp": casefile.MediaImage,
	".mp4":  casefile.MediaVideo,
	".avi":  casefile.MediaVideo,
	".mov":  casefile.MediaVideo,
	".mkv":  casefile.MediaVideo,
	".webm": casefile.MediaVideo,
}

// Classify returns the media type implied by name's extension.
func Classify(name string) (casefile.MediaType, bool) {
	t, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return t, ok
}

// Extensions lists the supported extensions in sorted order.
func Extensions() []string {
	out := make([]string, 0, len(extensions))
	for ext := range extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Media is a local file ready for submission.
type Media struct {
	Name string
	Path string
	Type casefile.MediaType
	Size int64
}

// Open validates the file at path and describes it.
func Open(path string) (Media, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Media{}, errors.New("no file selected")
	}
	name := filepath.Base(path)
	t, ok := Classify(name)
	if !ok {
		return Media{}, fmt.Errorf("%s: %w (supported: %s)", name, ErrUnsupported, strings.Join(Extensions(), " "))
	}
	st, err := os.Stat(path)
	if err != nil {
		return Media{}, fmt.Errorf("stat %s: %w", name, err)
	}
	if st.IsDir() {
		return Media{}, fmt.Errorf("%s is a directory", name)
	}
	if st.Size() > MaxFileSize {
		return Media{}, fmt.Errorf("%s: %w (%d MiB max)", name, ErrTooLarge, MaxFileSize>>20)
	}
	return Media{Name: name, Path: path, Type: t, Size: st.Size()}, nil
}

// Reader opens the media content for upload.
func (m Media) Reader() (io.ReadCloser, error) {
	f, err := os.Open(m.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", m.Name, err)
	}
	return f, nil
}

// Scan lists the supported media directly inside dir, sorted by name. Files that
// fail validation are skipped.
func Scan(dir string) ([]Media, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	out := make([]Media, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := Classify(e.Name()); !ok {
			continue
		}
		m, err := Open(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
