// Package api is the HTTP transport to the detection backend: the analysis,
// case registry, footprint and report endpoints. It returns raw payloads; decoding
// and normalization belong to the consuming components.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cybershield-india/evidence-console/internal/casefile"
	"github.com/google/uuid"
)

// DefaultBaseURL is the detection backend's route prefix in a local deployment.
const DefaultBaseURL = "http://localhost:8000/api/detect"

// maxErrorBody caps how much of an error response is read for the message.
const maxErrorBody = 4096

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	Logger     *log.Logger
	// Debug logs every request line and status.
	Debug      bool
	// HTTPClient overrides the tuned default client (tests).
	HTTPClient *http.Client
}

// Metrics counts calls made through the client.
type Metrics struct {
	CallsSuccess int64
	CallsError   int64
	LastActivity time.Time
}

// Client talks to the detection backend.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *log.Logger
	debug      bool

	mu      sync.RWMutex
	metrics Metrics
}

// NewClient builds a client with a pooled transport.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "evidence-console/1.0"
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	hc := opts.HTTPClient
	if hc == nil {
		tr := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     30 * time.Second,
		}
		hc = &http.Client{Timeout: opts.Timeout, Transport: tr}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		httpClient: hc,
		logger:     opts.Logger,
		debug:      opts.Debug,
	}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Metrics returns a copy of the call counters.
func (c *Client) Metrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metrics
}

func (c *Client) recordCall(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.metrics.CallsSuccess++
	} else {
		c.metrics.CallsError++
	}
	c.metrics.LastActivity = time.Now()
}

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Code   int
	Detail string
	kind   error
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d", e.Code)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Detail)
}

// Unwrap exposes the workflow error kind for errors.Is.
func (e *StatusError) Unwrap() error { return e.kind }

// statusKind maps an HTTP status to a workflow error kind. A 5xx means the
// service could not produce an answer, which the workflow treats like an
// unreachable service.
func statusKind(code int) error {
	switch {
	case code == http.StatusNotFound:
		return casefile.ErrNotFound
	case code >= 500:
		return casefile.ErrNetwork
	default:
		return casefile.ErrValidation
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordCall(false)
		c.logger.Printf("%s %s failed after %s: %v", method, path, time.Since(start).Round(time.Millisecond), err)
		return nil, fmt.Errorf("%w: %s %s: %w", casefile.ErrNetwork, method, path, err)
	}
	if c.debug {
		c.logger.Printf("%s %s -> %d in %s (request %s)", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond), requestID)
	}

	if resp.StatusCode >= 300 {
		c.recordCall(false)
		defer resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Detail: readDetail(resp.Body), kind: statusKind(resp.StatusCode)}
	}
	c.recordCall(true)
	return resp, nil
}

// readDetail extracts FastAPI's {"detail": "..."} message, or the raw body.
func readDetail(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var payload struct {
		Detail interface{} `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(payload.Detail); err == nil {
			return string(b)
		}
	}
	return strings.TrimSpace(string(data))
}

func (c *Client) readAll(resp *http.Response, what string) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", casefile.ErrNetwork, what, err)
	}
	return data, nil
}

// PostMedia uploads a media file for analysis and returns the raw verdict payload.
func (c *Client) PostMedia(ctx context.Context, filename string, media io.Reader) ([]byte, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, errors.New("post media: empty filename")
	}
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, media)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	resp, err := c.do(ctx, http.MethodPost, "/analyze", pr, mw.FormDataContentType())
	// Unblock the writer goroutine if the request ended before the body was drained.
	pr.Close()
	if err != nil {
		return nil, err
	}
	return c.readAll(resp, "analysis response")
}

// GetCases fetches the raw case listing. limit <= 0 lets the server choose.
func (c *Client) GetCases(ctx context.Context, limit int) ([]byte, error) {
	path := "/cases"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	return c.readAll(resp, "case listing")
}

// GetFootprint fetches the raw footprint bundle for a case.
func (c *Client) GetFootprint(ctx context.Context, caseID string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/footprint/"+url.PathEscape(caseID), nil, "")
	if err != nil {
		return nil, err
	}
	return c.readAll(resp, "footprint")
}

// GetReport streams the binary report for a case into w and returns the byte count.
func (c *Client) GetReport(ctx context.Context, caseID string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, "/report/"+url.PathEscape(caseID), nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: read report: %w", casefile.ErrNetwork, err)
	}
	return n, nil
}
