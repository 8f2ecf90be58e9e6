// Package registry lists previously analyzed cases and searches the most recent
// listing.
//
// Search runs client-side over whatever the last listing returned. The server
// caps listings, so a case older than the cap is never found by SearchCases even
// though it exists; this is a known limitation of the registry API.
package registry

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cybershield-india/evidence-console/internal/casefile"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultLimit matches the registry service's own default page size.
	DefaultLimit = 100
	// DefaultMaxLimit is the largest count the client will ever request.
	DefaultMaxLimit = 500
)

// Source fetches a raw listing payload from the case registry service.
type Source interface {
	GetCases(ctx context.Context, limit int) ([]byte, error)
}

// Options configures a Client.
type Options struct {
	DefaultLimit int
	MaxLimit     int
	Logger       *log.Logger
}

// Client is the case registry client. Failures never surface as errors from
// ListCases; they leave an empty listing and a sticky error readable with Err.
type Client struct {
	src          Source
	defaultLimit int
	maxLimit     int
	logger       *log.Logger

	group singleflight.Group

	mu        sync.RWMutex
	latest    []casefile.CaseRecord
	lastErr   error
	fetchedAt time.Time
}

// New creates a registry client over src.
func New(src Source, opts Options) *Client {
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = DefaultMaxLimit
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = opts.MaxLimit
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Client{
		src:          src,
		defaultLimit: opts.DefaultLimit,
		maxLimit:     opts.MaxLimit,
		logger:       opts.Logger,
	}
}

// CapLimit resolves the count actually requested from the server.
func (c *Client) CapLimit(limit int) int {
	if limit <= 0 {
		return c.defaultLimit
	}
	if limit > c.maxLimit {
		return c.maxLimit
	}
	return limit
}

// MaxLimit returns the largest count the client requests.
func (c *Client) MaxLimit() int { return c.maxLimit }

// Fetch performs one listing request without touching the remembered listing or
// the sticky error. Concurrent fetches for the same limit share one request.
func (c *Client) Fetch(ctx context.Context, limit int) ([]casefile.CaseRecord, error) {
	limit = c.CapLimit(limit)
	v, err, shared := c.group.Do(fmt.Sprintf("cases:%d", limit), func() (interface{}, error) {
		raw, err := c.src.GetCases(ctx, limit)
		if err != nil {
			return nil, err
		}
		return casefile.DecodeListing(raw)
	})
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	if shared {
		c.logger.Printf("listing (limit %d) shared with a concurrent request", limit)
	}
	return cloneAll(v.([]casefile.CaseRecord)), nil
}

// ListCases fetches up to limit cases in server order and remembers the result
// for SearchCases. On failure it returns an empty listing and sets Err.
func (c *Client) ListCases(ctx context.Context, limit int) []casefile.CaseRecord {
	listing, err := c.Fetch(ctx, limit)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Printf("Failed to list cases: %v", err)
		c.lastErr = err
		c.latest = nil
		return []casefile.CaseRecord{}
	}
	c.lastErr = nil
	c.latest = listing
	c.fetchedAt = time.Now()
	return cloneAll(listing)
}

// Err returns the error of the most recent ListCases, or nil after a success.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Latest returns a copy of the most recently fetched listing.
func (c *Client) Latest() []casefile.CaseRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneAll(c.latest)
}

// FetchedAt reports when the remembered listing was fetched.
func (c *Client) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

// SearchCases returns the cases of the latest listing whose case id or filename
// contains query, ignoring case. An empty query matches everything.
func (c *Client) SearchCases(query string) []casefile.CaseRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Filter(c.latest, query)
}

// Filter applies the SearchCases match to an arbitrary listing.
func Filter(listing []casefile.CaseRecord, query string) []casefile.CaseRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]casefile.CaseRecord, 0, len(listing))
	for _, rec := range listing {
		if q == "" ||
			strings.Contains(strings.ToLower(rec.CaseID), q) ||
			strings.Contains(strings.ToLower(rec.Filename), q) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

func cloneAll(in []casefile.CaseRecord) []casefile.CaseRecord {
	out := make([]casefile.CaseRecord, len(in))
	for i, rec := range in {
		out[i] = rec.Clone()
	}
	return out
}
