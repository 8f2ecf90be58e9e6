// Package verify resolves a case id or blockchain transaction hash to the case
// record it identifies.
package verify

import (
	"context"
	"io"
	"log"
	"strings"

	"github.com/cybershield-india/evidence-console/internal/casefile"
)

// DefaultExplorerBase is the block explorer the integrity proofs are anchored on.
const DefaultExplorerBase = "https://sepolia.etherscan.io"

// Status is the result of a lookup.
type Status int

const (
	NotFound Status = iota
	Found
)

func (s Status) String() string {
	if s == Found {
		return "found"
	}
	return "not_found"
}

// Outcome is the result of one verification. Err is set when the registry could
// not be read; the status is then NotFound.
type Outcome struct {
	Query  string
	Status Status
	Record *casefile.CaseRecord
	Err    error
}

// Found reports whether the query resolved to a record.
func (o Outcome) Found() bool { return o.Status == Found }

// Lookup matches query exactly against each record's case id or blockchain tx.
// A record without a tx never matches on tx. The first match in listing order wins.
func Lookup(listing []casefile.CaseRecord, query string) Outcome {
	q := strings.TrimSpace(query)
	out := Outcome{Query: q, Status: NotFound}
	if q == "" {
		return out
	}
	for _, rec := range listing {
		if rec.CaseID == q || (rec.BlockchainTx != "" && rec.BlockchainTx == q) {
			found := rec.Clone()
			out.Status = Found
			out.Record = &found
			return out
		}
	}
	return out
}

// Fetcher reads a fresh listing of up to limit cases.
type Fetcher interface {
	Fetch(ctx context.Context, limit int) ([]casefile.CaseRecord, error)
	MaxLimit() int
}

// Verifier resolves queries against a freshly fetched listing.
type Verifier struct {
	fetcher Fetcher
	logger  *log.Logger
}

// New creates a Verifier. A nil logger discards output.
func New(fetcher Fetcher, logger *log.Logger) *Verifier {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Verifier{fetcher: fetcher, logger: logger}
}

// Verify fetches the largest listing the registry allows and looks query up in
// it. An empty query resolves to NotFound without a fetch.
func (v *Verifier) Verify(ctx context.Context, query string) Outcome {
	q := strings.TrimSpace(query)
	if q == "" {
		return Outcome{Status: NotFound}
	}
	listing, err := v.fetcher.Fetch(ctx, v.fetcher.MaxLimit())
	if err != nil {
		v.logger.Printf("verify %q: %v", q, err)
		return Outcome{Query: q, Status: NotFound, Err: err}
	}
	return Lookup(listing, q)
}

// ExplorerURL links a transaction on the block explorer at base. It returns ""
// when tx is empty.
func ExplorerURL(base, tx string) string {
	tx = strings.TrimSpace(tx)
	if tx == "" {
		return ""
	}
	if base == "" {
		base = DefaultExplorerBase
	}
	return strings.TrimRight(base, "/") + "/tx/" + tx
}
