package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cybershield-india/evidence-console/internal/casefile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	body string
	err  error
}

func (f fakeSource) GetReport(ctx context.Context, caseID string, w io.Writer) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := io.WriteString(w, f.body)
	return int64(n), err
}

type recordingOpener struct {
	paths []string
	err   error
}

func (r *recordingOpener) Open(path string) error {
	r.paths = append(r.paths, path)
	return r.err
}

func TestFetchSavesAndOpens(t *testing.T) {
	dir := t.TempDir()
	op := &recordingOpener{}
	f := NewFetcher(fakeSource{body: "%PDF-1.7 bytes"}, dir, op, nil)

	path, err := f.Fetch(context.Background(), "CASE-1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "CASE-1_forensic_report.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 bytes", string(data))
	assert.Equal(t, []string{path}, op.paths)
}

func TestFetchNotFoundLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	op := &recordingOpener{}
	f := NewFetcher(fakeSource{err: fmt.Errorf("%w: report", casefile.ErrNotFound)}, dir, op, nil)

	_, err := f.Fetch(context.Background(), "CASE-404")
	assert.ErrorIs(t, err, casefile.ErrNotFound)
	assert.Empty(t, op.paths)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchOpenFailureKeepsPath(t *testing.T) {
	op := &recordingOpener{err: errors.New("no viewer")}
	f := NewFetcher(fakeSource{body: "x"}, t.TempDir(), op, nil)

	path, err := f.Fetch(context.Background(), "CASE-2")
	assert.Error(t, err)
	assert.FileExists(t, path)
}

func TestFetchRequiresCaseID(t *testing.T) {
	f := NewFetcher(fakeSource{body: "x"}, t.TempDir(), nil, nil)
	_, err := f.Fetch(context.Background(), "")
	assert.ErrorIs(t, err, casefile.ErrGuard)
}

func TestFileNameSanitizes(t *testing.T) {
	assert.Equal(t, "a_b_forensic_report.pdf", FileName("a/b"))
	assert.Equal(t, "CASE-1_forensic_report.pdf", FileName("CASE-1"))
}
