package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cybershield-india/evidence-console/internal/casefile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/detect/analyze", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("X-Request-ID") == "" {
			http.Error(w, "missing request id", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, `{"detail":"file field missing"}`, http.StatusBadRequest)
			return
		}
		defer file.Close()
		body, _ := io.ReadAll(file)
		if header.Filename == "notes.txt" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"Unsupported file type"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"case_id":"CASE-1","filename":"` + header.Filename + `","media_type":"image","timestamp":"2026-01-01T00:00:00","detection":{"is_ai_generated":true,"confidence":0.9},"size":` + strconv.Itoa(len(body)) + `}`))
	})

	mux.HandleFunc("/api/detect/cases", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cases":[],"limit":"` + r.URL.Query().Get("limit") + `"}`))
	})

	mux.HandleFunc("/api/detect/footprint/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/detect/footprint/")
		switch id {
		case "CASE-1":
			_, _ = w.Write([]byte(`{"case_id":"CASE-1"}`))
		case "boom":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Footprint not found"}`))
		}
	})

	mux.HandleFunc("/api/detect/report/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/CASE-1") {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4 fake"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Report not found"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPostMediaUploadsMultipart(t *testing.T) {
	srv := newBackend(t)
	c := NewClient(Options{BaseURL: srv.URL + "/api/detect/"})

	raw, err := c.PostMedia(context.Background(), "photo.png", bytes.NewReader([]byte("pixels")))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"filename":"photo.png"`)
	assert.Contains(t, string(raw), `"size":6`)

	m := c.Metrics()
	assert.Equal(t, int64(1), m.CallsSuccess)
	assert.False(t, m.LastActivity.IsZero())
}

func TestPostMediaRejectionIsValidation(t *testing.T) {
	srv := newBackend(t)
	c := NewClient(Options{BaseURL: srv.URL + "/api/detect"})

	_, err := c.PostMedia(context.Background(), "notes.txt", strings.NewReader("hello"))
	require.Error(t, err)
	assert.ErrorIs(t, err, casefile.ErrValidation)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, "Unsupported file type", se.Detail)
	assert.Equal(t, int64(1), c.Metrics().CallsError)
}

func TestPostMediaRequiresFilename(t *testing.T) {
	c := NewClient(Options{})
	_, err := c.PostMedia(context.Background(), " ", strings.NewReader(""))
	assert.Error(t, err)
}

func TestUnreachableBackendIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(Options{BaseURL: base, Timeout: time.Second})
	_, err := c.GetCases(context.Background(), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, casefile.ErrNetwork)
}

func TestGetCasesPassesLimit(t *testing.T) {
	srv := newBackend(t)
	c := NewClient(Options{BaseURL: srv.URL + "/api/detect"})

	raw, err := c.GetCases(context.Background(), 25)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"limit":"25"`)

	raw, err = c.GetCases(context.Background(), 0)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"limit":""`)
}

func TestGetFootprintStatusMapping(t *testing.T) {
	srv := newBackend(t)
	c := NewClient(Options{BaseURL: srv.URL + "/api/detect"})
	ctx := context.Background()

	raw, err := c.GetFootprint(ctx, "CASE-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"case_id":"CASE-1"}`, string(raw))

	_, err = c.GetFootprint(ctx, "missing")
	assert.ErrorIs(t, err, casefile.ErrNotFound)
	assert.Contains(t, err.Error(), "Footprint not found")

	_, err = c.GetFootprint(ctx, "boom")
	assert.ErrorIs(t, err, casefile.ErrNetwork)
}

func TestGetReportStreamsBody(t *testing.T) {
	srv := newBackend(t)
	c := NewClient(Options{BaseURL: srv.URL + "/api/detect"})

	var buf bytes.Buffer
	n, err := c.GetReport(context.Background(), "CASE-1", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.True(t, strings.HasPrefix(buf.String(), "%PDF"))

	_, err = c.GetReport(context.Background(), "CASE-404", &buf)
	assert.ErrorIs(t, err, casefile.ErrNotFound)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Options{})
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}
