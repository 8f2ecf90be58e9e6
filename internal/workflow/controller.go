// Package workflow drives the console: it owns the current view and the active
// case record, gates transitions on data availability and coordinates the
// analysis, registry, verification, footprint, complaint and report components.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/cybershield-india/evidence-console/internal/bus"
	"github.com/cybershield-india/evidence-console/internal/casefile"
	"github.com/cybershield-india/evidence-console/internal/complaint"
	"github.com/cybershield-india/evidence-console/internal/intake"
	"github.com/cybershield-india/evidence-console/internal/registry"
	"github.com/cybershield-india/evidence-console/internal/store"
	"github.com/cybershield-india/evidence-console/internal/verify"
)

// User-visible analysis failure messages.
const (
	MsgBackendDown    = "Analysis failed. Backend not responding."
	MsgBadResult      = "Analysis failed. The service returned an unreadable result."
	MsgUnreadableFile = "Analysis failed. The selected file could not be read."
)

// ErrAnalysisInFlight rejects a submission while another one is outstanding.
var ErrAnalysisInFlight = errors.New("an analysis is already in progress")

// Analyzer submits media to the analysis service.
type Analyzer interface {
	PostMedia(ctx context.Context, filename string, media io.Reader) ([]byte, error)
}

// Registry lists and searches recorded cases.
type Registry interface {
	ListCases(ctx context.Context, limit int) []casefile.CaseRecord
	SearchCases(query string) []casefile.CaseRecord
	Err() error
}

// Verifier resolves a case id or transaction hash.
type Verifier interface {
	Verify(ctx context.Context, query string) verify.Outcome
}

// FootprintLoader fetches a case's footprint bundle.
type FootprintLoader interface {
	Fetch(ctx context.Context, caseID string) (*casefile.Footprint, error)
}

// ReportFetcher downloads a case's report and returns the saved path.
type ReportFetcher interface {
	Fetch(ctx context.Context, caseID string) (string, error)
}

// Journal records investigator actions.
type Journal interface {
	AddEntry(ctx context.Context, e store.Entry) (store.Entry, error)
}

// Deps wires the controller to its collaborators. Journal and Bus are optional.
type Deps struct {
	Analyzer   Analyzer
	Registry   Registry
	Verifier   Verifier
	Footprints FootprintLoader
	Reports    ReportFetcher
	Journal    Journal
	Bus        bus.Bus
	Drafter    complaint.Drafter
	Logger     *log.Logger
	// Actor is recorded on every journal entry.
	Actor      string
	// Now defaults to time.Now.
	Now        func() time.Time
}

// FootprintView is what the footprint view renders. Err is set when the bundle
// could not be loaded; Kind names its error kind.
type FootprintView struct {
	CaseID    string
	Footprint *casefile.Footprint
	Err       error
	Kind      string
}

// Controller is the navigation state machine. It is safe for concurrent use.
type Controller struct {
	deps   Deps
	logger *log.Logger
	seq    *sequencer

	mu       sync.Mutex
	state    State
	inflight int

	notifyMu sync.Mutex
	subsMu   sync.Mutex
	subs     map[int]func(State)
	nextSub  int
}

// New creates a controller on the home view.
func New(deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Actor == "" {
		deps.Actor = "investigator"
	}
	return &Controller{
		deps:   deps,
		logger: deps.Logger,
		seq:    newSequencer(),
		state:  State{View: Home},
		subs:   make(map[int]func(State)),
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe registers fn to receive a snapshot after every state change.
// Callbacks are serialized and must not block.
func (c *Controller) Subscribe(fn func(State)) (cancel func()) {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()
	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	snap := c.Snapshot()

	c.subsMu.Lock()
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range fns {
		fn(snap.clone())
	}
}

// Navigate moves to view. caseID, when given, keys the footprint view. A
// transition whose precondition fails is a silent no-op and returns false.
func (c *Controller) Navigate(view View, caseID ...string) bool {
	explicit := ""
	if len(caseID) > 0 {
		explicit = caseID[0]
	}
	c.mu.Lock()
	ok := c.transitionLocked(view, explicit)
	c.mu.Unlock()
	if ok {
		c.notify()
	}
	return ok
}

func (c *Controller) transitionLocked(view View, caseID string) bool {
	g, known := guards[view]
	if !known {
		return false
	}
	id, ok := g(&c.state, caseID)
	if !ok {
		c.logger.Printf("transition to %s refused from %s", view, c.state.View)
		return false
	}
	c.state.View = view
	c.state.ActiveCaseID = id
	c.state.Error = ""
	return true
}

func (c *Controller) begin() {
	c.inflight++
	c.state.Busy = true
}

func (c *Controller) end() {
	c.inflight--
	c.state.Busy = c.inflight > 0
}

// Analyze submits media and, on success, adopts the returned record and lands
// on the results view. On failure the view is left unchanged and Error carries
// a user-visible message. A second submission while one is outstanding is
// rejected with ErrAnalysisInFlight.
func (c *Controller) Analyze(ctx context.Context, media intake.Media) error {
	c.mu.Lock()
	if c.state.Analyzing {
		c.mu.Unlock()
		return ErrAnalysisInFlight
	}
	c.state.Analyzing = true
	c.state.Error = ""
	c.begin()
	ticket := c.seq.issue()
	c.mu.Unlock()
	c.notify()

	resp, err := c.submit(ctx, media)

	c.seq.apply(ticket, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.state.Analyzing = false
		c.end()
		if err != nil {
			c.state.Error = analysisMessage(err)
			return
		}
		rec := resp.Record.Clone()
		c.state.Record = &rec
		c.state.ActiveCaseID = rec.CaseID
		c.state.View = Results
		c.state.Version++
		c.state.Error = ""
	})
	c.notify()

	if err != nil {
		c.logger.Printf("analysis of %s failed (%s): %v", media.Name, casefile.Kind(err), err)
		c.record(ctx, "", store.ActionAnalysisFailed, map[string]string{
			"filename": media.Name,
			"kind":     casefile.Kind(err),
		})
		return err
	}
	c.record(ctx, resp.Record.CaseID, store.ActionAnalysisSubmitted, map[string]string{
		"filename":          media.Name,
		"verdict":           resp.Record.Detection.Verdict(),
		"confidence":        strconv.Itoa(resp.Record.Detection.Percent()),
		"duplicate":         strconv.FormatBool(resp.Duplicate),
		"blockchain_status": resp.Record.BlockchainStatus(),
	})
	return nil
}

func (c *Controller) submit(ctx context.Context, media intake.Media) (casefile.Response, error) {
	r, err := media.Reader()
	if err != nil {
		return casefile.Response{}, err
	}
	defer r.Close()
	raw, err := c.deps.Analyzer.PostMedia(ctx, media.Name, r)
	if err != nil {
		return casefile.Response{}, err
	}
	return casefile.NormalizeResponse(raw)
}

func analysisMessage(err error) string {
	switch {
	case errors.Is(err, casefile.ErrNetwork), errors.Is(err, casefile.ErrNotFound):
		return MsgBackendDown
	case errors.Is(err, casefile.ErrValidation):
		return MsgBadResult
	default:
		return MsgUnreadableFile
	}
}

// Open adopts a registry snapshot as the active record and lands on results.
func (c *Controller) Open(rec casefile.CaseRecord) bool {
	if rec.CaseID == "" {
		return false
	}
	c.mu.Lock()
	cp := rec.Clone()
	c.state.Record = &cp
	c.state.ActiveCaseID = cp.CaseID
	c.state.View = Results
	c.state.Version++
	c.state.Error = ""
	c.mu.Unlock()
	c.notify()
	c.record(context.Background(), rec.CaseID, store.ActionCaseOpened, nil)
	return true
}

// EnterFootprint moves to the footprint view and fetches the bundle for caseID,
// or for the active record when caseID is empty. A bundle for the active
// record's case is attached to it. The second result is false when the
// transition was refused.
func (c *Controller) EnterFootprint(ctx context.Context, caseID string) (FootprintView, bool) {
	c.mu.Lock()
	if !c.transitionLocked(Footprint, caseID) {
		c.mu.Unlock()
		return FootprintView{}, false
	}
	id := c.state.ActiveCaseID
	c.begin()
	ticket := c.seq.issue()
	c.mu.Unlock()
	c.notify()

	fp, err := c.deps.Footprints.Fetch(ctx, id)

	c.seq.apply(ticket, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.end()
		if err != nil || c.state.Record == nil || c.state.Record.CaseID != id {
			return
		}
		extended, attachErr := c.state.Record.WithFootprint(*fp)
		if attachErr != nil {
			c.logger.Printf("footprint for %s not attached: %v", id, attachErr)
			return
		}
		c.state.Record = &extended
		c.state.Version++
	})
	c.notify()

	view := FootprintView{CaseID: id, Err: err, Kind: casefile.Kind(err)}
	if err != nil {
		c.logger.Printf("footprint %s unavailable (%s): %v", id, view.Kind, err)
		return view, true
	}
	cp := fp.Clone()
	view.Footprint = &cp
	c.record(ctx, id, store.ActionFootprintViewed, map[string]string{
		"gps":  strconv.FormatBool(fp.HasGPS()),
		"exif": strconv.FormatBool(fp.HasEXIF()),
	})
	return view, true
}

// DraftComplaint moves to the complaint view and renders the complaint for the
// active record. It fails with a guard error when there is no active record and
// with complaint.ErrNotAIGenerated for authentic media.
func (c *Controller) DraftComplaint() (complaint.Draft, error) {
	c.mu.Lock()
	if !c.transitionLocked(Complaint, "") {
		c.mu.Unlock()
		return complaint.Draft{}, fmt.Errorf("%w: no active case to draft a complaint for", casefile.ErrGuard)
	}
	rec := c.state.Record.Clone()
	c.mu.Unlock()
	c.notify()

	draft, err := c.deps.Drafter.Draft(rec)
	if err != nil {
		return complaint.Draft{}, err
	}
	c.record(context.Background(), rec.CaseID, store.ActionComplaintDrafted, map[string]string{
		"risk_score": strconv.Itoa(draft.RiskScore),
	})
	return draft, nil
}

// Verify resolves query to a case. It never changes the navigation state.
func (c *Controller) Verify(ctx context.Context, query string) verify.Outcome {
	out := c.deps.Verifier.Verify(ctx, query)
	if out.Query == "" {
		return out
	}
	details := map[string]string{"query": out.Query, "result": out.Status.String()}
	caseID := ""
	if out.Record != nil {
		caseID = out.Record.CaseID
	}
	c.record(ctx, caseID, store.ActionVerifyLookup, details)
	return out
}

// Dashboard lists recent cases and summarizes them.
func (c *Controller) Dashboard(ctx context.Context) registry.Dashboard {
	listing := c.deps.Registry.ListCases(ctx, 0)
	return registry.BuildDashboard(listing, c.deps.Registry.Err(), c.deps.Now())
}

// Search filters the most recent listing.
func (c *Controller) Search(query string) []casefile.CaseRecord {
	return c.deps.Registry.SearchCases(query)
}

// FetchReport downloads the report for caseID, or for the active case when
// caseID is empty, and returns the saved path.
func (c *Controller) FetchReport(ctx context.Context, caseID string) (string, error) {
	c.mu.Lock()
	if caseID == "" {
		caseID = c.state.ActiveCaseID
	}
	if caseID == "" {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: no case selected for the report", casefile.ErrGuard)
	}
	c.begin()
	c.mu.Unlock()
	c.notify()

	path, err := c.deps.Reports.Fetch(ctx, caseID)

	c.mu.Lock()
	c.end()
	c.mu.Unlock()
	c.notify()

	if err != nil && path == "" {
		c.logger.Printf("report %s unavailable (%s): %v", caseID, casefile.Kind(err), err)
		return "", err
	}
	c.record(ctx, caseID, store.ActionReportFetched, map[string]string{"path": path})
	return path, err
}

// record writes an entry to the journal and the bus. Failures are logged only.
func (c *Controller) record(ctx context.Context, caseID, action string, details map[string]string) {
	now := c.deps.Now()
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if c.deps.Journal != nil {
		if _, err := c.deps.Journal.AddEntry(ctx, store.Entry{
			CaseID:    caseID,
			Action:    action,
			Actor:     c.deps.Actor,
			Details:   details,
			Timestamp: now,
		}); err != nil {
			c.logger.Printf("journal %s: %v", action, err)
		}
	}
	if c.deps.Bus != nil {
		if err := c.deps.Bus.PublishActivity(ctx, bus.ActivityMessage{
			CaseID:    caseID,
			Action:    action,
			Actor:     c.deps.Actor,
			Details:   details,
			Timestamp: now.Unix(),
		}); err != nil {
			c.logger.Printf("publish %s: %v", action, err)
		}
	}
}
