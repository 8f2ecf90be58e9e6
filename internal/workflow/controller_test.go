package workflow

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cybershield-india/evidence-console/internal/bus"
	"github.com/cybershield-india/evidence-console/internal/casefile"
	"github.com/cybershield-india/evidence-console/internal/complaint"
	"github.com/cybershield-india/evidence-console/internal/intake"
	"github.com/cybershield-india/evidence-console/internal/store"
	"github.com/cybershield-india/evidence-console/internal/verify"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAnalyzer answers per filename. A filename with a gate blocks until the
// gate is closed.
type fakeAnalyzer struct {
	mu      sync.Mutex
	payload map[string]string
	err     map[string]error
	gates   map[string]chan struct{}
	started chan string
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{
		payload: map[string]string{},
		err:     map[string]error{},
		gates:   map[string]chan struct{}{},
		started: make(chan string, 16),
	}
}

func (f *fakeAnalyzer) PostMedia(ctx context.Context, filename string, media io.Reader) ([]byte, error) {
	_, _ = io.Copy(io.Discard, media)
	f.started <- filename
	f.mu.Lock()
	gate := f.gates[filename]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err[filename]; err != nil {
		return nil, err
	}
	return []byte(f.payload[filename]), nil
}

type fakeRegistry struct {
	listing []casefile.CaseRecord
	err     error
}

func (f *fakeRegistry) ListCases(ctx context.Context, limit int) []casefile.CaseRecord {
	if f.err != nil {
		return []casefile.CaseRecord{}
	}
	return f.listing
}

func (f *fakeRegistry) SearchCases(query string) []casefile.CaseRecord {
	return f.listing
}

func (f *fakeRegistry) Err() error { return f.err }

type listingVerifier struct{ listing []casefile.CaseRecord }

func (v listingVerifier) Verify(ctx context.Context, query string) verify.Outcome {
	return verify.Lookup(v.listing, query)
}

type fakeFootprints struct {
	mu    sync.Mutex
	byID  map[string]*casefile.Footprint
	calls []string
}

func (f *fakeFootprints) Fetch(ctx context.Context, caseID string) (*casefile.Footprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, caseID)
	fp, ok := f.byID[caseID]
	if !ok {
		return nil, fmt.Errorf("%w: footprint %s", casefile.ErrNotFound, caseID)
	}
	cp := fp.Clone()
	return &cp, nil
}

type fakeReports struct{ fetched []string }

func (f *fakeReports) Fetch(ctx context.Context, caseID string) (string, error) {
	f.fetched = append(f.fetched, caseID)
	return "/tmp/" + caseID + "_forensic_report.pdf", nil
}

type memJournal struct {
	mu      sync.Mutex
	entries []store.Entry
}

func (j *memJournal) AddEntry(ctx context.Context, e store.Entry) (store.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return e, nil
}

func (j *memJournal) actions() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, 0, len(j.entries))
	for _, e := range j.entries {
		out = append(out, e.Action)
	}
	return out
}

type harness struct {
	ctl        *Controller
	analyzer   *fakeAnalyzer
	registry   *fakeRegistry
	footprints *fakeFootprints
	reports    *fakeReports
	journal    *memJournal
	dir        string
}

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	listing := []casefile.CaseRecord{
		{CaseID: "CASE-A", Filename: "a.png", MediaType: casefile.MediaImage, Timestamp: fixedNow, Detection: casefile.Detection{IsAIGenerated: true, Confidence: 0.92}, BlockchainTx: "txHashX"},
		{CaseID: "CASE-B", Filename: "b.mp4", MediaType: casefile.MediaVideo, Timestamp: fixedNow.Add(-48 * time.Hour), Detection: casefile.Detection{Confidence: 0.1}},
	}
	h := &harness{
		analyzer:   newFakeAnalyzer(),
		registry:   &fakeRegistry{listing: listing},
		footprints: &fakeFootprints{byID: map[string]*casefile.Footprint{}},
		reports:    &fakeReports{},
		journal:    &memJournal{},
		dir:        t.TempDir(),
	}
	h.ctl = New(Deps{
		Analyzer:   h.analyzer,
		Registry:   h.registry,
		Verifier:   listingVerifier{listing: listing},
		Footprints: h.footprints,
		Reports:    h.reports,
		Journal:    h.journal,
		Bus:        bus.NewNullBus(nil),
		Drafter:    complaint.Drafter{Location: time.UTC},
		Now:        func() time.Time { return fixedNow },
	})
	return h
}

func (h *harness) media(t *testing.T, name, payload string) intake.Media {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, []byte("bytes"), 0o644))
	h.analyzer.mu.Lock()
	h.analyzer.payload[name] = payload
	h.analyzer.mu.Unlock()
	m, err := intake.Open(path)
	require.NoError(t, err)
	return m
}

func verdictPayload(caseID, filename string, ai bool, confidence float64) string {
	return fmt.Sprintf(`{"case_id":%q,"filename":%q,"media_type":"image","timestamp":"2026-10-14T11:00:00","detection":{"is_ai_generated":%t,"confidence":%v},"blockchain_tx":"0xfeed","duplicate":false}`,
		caseID, filename, ai, confidence)
}

func TestResultsGuardIsNoOpWithoutRecord(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.ctl.Navigate(Results))
	s := h.ctl.Snapshot()
	assert.Equal(t, Home, s.View)
	assert.Nil(t, s.Record)

	assert.False(t, h.ctl.Navigate(Complaint))
	assert.False(t, h.ctl.Navigate(Footprint))
	assert.False(t, h.ctl.Navigate(View("settings")))
	assert.Equal(t, Home, h.ctl.Snapshot().View)
}

func TestUnguardedViewsAlwaysSucceed(t *testing.T) {
	h := newHarness(t)
	for _, v := range []View{Upload, Dashboard, Reports, Verify, Home} {
		assert.True(t, h.ctl.Navigate(v), v)
		assert.Equal(t, v, h.ctl.Snapshot().View)
	}
}

func TestFootprintAcceptsExplicitCaseID(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.ctl.Navigate(Footprint, "CASE-B"))
	s := h.ctl.Snapshot()
	assert.Equal(t, Footprint, s.View)
	assert.Equal(t, "CASE-B", s.ActiveCaseID)
}

func TestAnalyzeSuccessLandsOnResults(t *testing.T) {
	h := newHarness(t)
	h.ctl.Navigate(Upload)
	m := h.media(t, "photo.png", verdictPayload("CASE-1", "photo.png", true, 0.92))

	require.NoError(t, h.ctl.Analyze(context.Background(), m))

	s := h.ctl.Snapshot()
	assert.Equal(t, Results, s.View)
	assert.Equal(t, "CASE-1", s.ActiveCaseID)
	require.NotNil(t, s.Record)
	assert.Equal(t, 92, s.Record.Detection.Percent())
	assert.Equal(t, uint64(1), s.Version)
	assert.False(t, s.Busy)
	assert.False(t, s.Analyzing)
	assert.Empty(t, s.Error)
	assert.Equal(t, []string{store.ActionAnalysisSubmitted}, h.journal.actions())
}

func TestAnalyzeNetworkFailureKeepsView(t *testing.T) {
	h := newHarness(t)
	h.ctl.Navigate(Upload)
	m := h.media(t, "photo.png", "")
	h.analyzer.err["photo.png"] = fmt.Errorf("%w: connection refused", casefile.ErrNetwork)

	err := h.ctl.Analyze(context.Background(), m)
	assert.ErrorIs(t, err, casefile.ErrNetwork)

	s := h.ctl.Snapshot()
	assert.Equal(t, Upload, s.View)
	assert.Nil(t, s.Record)
	assert.Equal(t, MsgBackendDown, s.Error)
	assert.False(t, s.Busy)
	assert.Equal(t, []string{store.ActionAnalysisFailed}, h.journal.actions())

	// The message is cleared by the next successful transition.
	require.True(t, h.ctl.Navigate(Home))
	assert.Empty(t, h.ctl.Snapshot().Error)
}

func TestAnalyzeMalformedResultSetsMessage(t *testing.T) {
	h := newHarness(t)
	h.ctl.Navigate(Upload)
	m := h.media(t, "photo.png", `{"case_id":"CASE-1","detection":{"is_ai_generated":true,"confidence":1.7}}`)

	err := h.ctl.Analyze(context.Background(), m)
	assert.ErrorIs(t, err, casefile.ErrValidation)
	s := h.ctl.Snapshot()
	assert.Equal(t, MsgBadResult, s.Error)
	assert.Equal(t, Upload, s.View)
}

func TestAnalyzeClearsPreviousErrorOnAttempt(t *testing.T) {
	h := newHarness(t)
	h.ctl.Navigate(Upload)
	bad := h.media(t, "bad.png", "")
	h.analyzer.err["bad.png"] = fmt.Errorf("%w: timeout", casefile.ErrNetwork)
	_ = h.ctl.Analyze(context.Background(), bad)
	require.NotEmpty(t, h.ctl.Snapshot().Error)

	good := h.media(t, "good.png", verdictPayload("CASE-2", "good.png", false, 0.3))
	gate := make(chan struct{})
	h.analyzer.mu.Lock()
	h.analyzer.gates["good.png"] = gate
	h.analyzer.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- h.ctl.Analyze(context.Background(), good) }()
	<-h.analyzer.started // bad.png
	<-h.analyzer.started // good.png

	s := h.ctl.Snapshot()
	assert.Empty(t, s.Error)
	assert.True(t, s.Busy)
	close(gate)
	require.NoError(t, <-done)
}

func TestDoubleSubmissionIsRejected(t *testing.T) {
	h := newHarness(t)
	first := h.media(t, "first.png", verdictPayload("CASE-1", "first.png", true, 0.9))
	second := h.media(t, "second.png", verdictPayload("CASE-2", "second.png", true, 0.8))
	gate := make(chan struct{})
	h.analyzer.gates["first.png"] = gate

	done := make(chan error, 1)
	go func() { done <- h.ctl.Analyze(context.Background(), first) }()
	assert.Equal(t, "first.png", <-h.analyzer.started)

	err := h.ctl.Analyze(context.Background(), second)
	assert.ErrorIs(t, err, ErrAnalysisInFlight)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, "CASE-1", h.ctl.Snapshot().ActiveCaseID)
}

func TestResponsesApplyInIssuanceOrder(t *testing.T) {
	h := newHarness(t)
	recA := h.registry.listing[0]
	require.True(t, h.ctl.Open(recA))
	h.footprints.byID["CASE-A"] = &casefile.Footprint{CaseID: "CASE-A", RiskScore: 70}

	m := h.media(t, "new.png", verdictPayload("CASE-N", "new.png", true, 0.95))
	gate := make(chan struct{})
	h.analyzer.gates["new.png"] = gate

	analyzed := make(chan error, 1)
	go func() { analyzed <- h.ctl.Analyze(context.Background(), m) }()
	<-h.analyzer.started

	// Issued second; its fetch resolves first but must wait for the analysis.
	footprinted := make(chan FootprintView, 1)
	go func() {
		v, _ := h.ctl.EnterFootprint(context.Background(), "")
		footprinted <- v
	}()

	select {
	case <-footprinted:
		t.Fatal("footprint applied before the earlier analysis")
	case <-time.After(100 * time.Millisecond):
	}

	close(gate)
	require.NoError(t, <-analyzed)
	view := <-footprinted
	assert.Equal(t, "CASE-A", view.CaseID)
	require.NotNil(t, view.Footprint)

	s := h.ctl.Snapshot()
	require.NotNil(t, s.Record)
	assert.Equal(t, "CASE-N", s.Record.CaseID)
	// The bundle belonged to the previous record, so it was not attached.
	assert.Nil(t, s.Record.Footprint)
	assert.False(t, s.Busy)
}

func TestEnterFootprintAttachesWithoutChangingRecord(t *testing.T) {
	h := newHarness(t)
	recA := h.registry.listing[0]
	require.True(t, h.ctl.Open(recA))
	before := h.ctl.Snapshot()

	h.footprints.byID["CASE-A"] = &casefile.Footprint{
		CaseID:             "CASE-A",
		GPS:                &casefile.GPS{Coordinates: "1, 2"},
		BehavioralPatterns: []string{"GAN-style texture blending"},
	}
	view, ok := h.ctl.EnterFootprint(context.Background(), "")
	require.True(t, ok)
	require.NoError(t, view.Err)
	assert.True(t, view.Footprint.HasGPS())

	after := h.ctl.Snapshot()
	assert.Equal(t, Footprint, after.View)
	assert.Equal(t, before.Version+1, after.Version)
	require.NotNil(t, after.Record.Footprint)

	stripped := *after.Record
	stripped.Footprint = nil
	if diff := cmp.Diff(*before.Record, stripped); diff != "" {
		t.Fatalf("footprint changed other record fields (-before +after):\n%s", diff)
	}
}

func TestEnterFootprintRefetchesAndDegrades(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.ctl.Open(h.registry.listing[0]))

	view, ok := h.ctl.EnterFootprint(context.Background(), "")
	require.True(t, ok)
	assert.ErrorIs(t, view.Err, casefile.ErrNotFound)
	assert.Equal(t, "not_found", view.Kind)
	assert.Nil(t, view.Footprint)
	assert.Nil(t, h.ctl.Snapshot().Record.Footprint)

	_, _ = h.ctl.EnterFootprint(context.Background(), "")
	assert.Equal(t, []string{"CASE-A", "CASE-A"}, h.footprints.calls)
}

func TestEnterFootprintRefusedWithoutCase(t *testing.T) {
	h := newHarness(t)
	_, ok := h.ctl.EnterFootprint(context.Background(), "")
	assert.False(t, ok)
	assert.Empty(t, h.footprints.calls)
}

func TestDraftComplaint(t *testing.T) {
	h := newHarness(t)

	_, err := h.ctl.DraftComplaint()
	assert.ErrorIs(t, err, casefile.ErrGuard)
	assert.Equal(t, Home, h.ctl.Snapshot().View)

	require.True(t, h.ctl.Open(h.registry.listing[1]))
	_, err = h.ctl.DraftComplaint()
	assert.ErrorIs(t, err, complaint.ErrNotAIGenerated)

	require.True(t, h.ctl.Open(h.registry.listing[0]))
	draft, err := h.ctl.DraftComplaint()
	require.NoError(t, err)
	assert.Equal(t, Complaint, h.ctl.Snapshot().View)
	assert.Equal(t, 92, draft.RiskScore)
	assert.Contains(t, h.journal.actions(), store.ActionComplaintDrafted)
}

func TestVerifyDoesNotNavigate(t *testing.T) {
	h := newHarness(t)
	h.ctl.Navigate(Verify)

	out := h.ctl.Verify(context.Background(), "txHashX")
	require.True(t, out.Found())
	assert.Equal(t, "CASE-A", out.Record.CaseID)

	out = h.ctl.Verify(context.Background(), "nope")
	assert.Equal(t, verify.NotFound, out.Status)

	s := h.ctl.Snapshot()
	assert.Equal(t, Verify, s.View)
	assert.Nil(t, s.Record)
	assert.Equal(t, []string{store.ActionVerifyLookup, store.ActionVerifyLookup}, h.journal.actions())
}

func TestDashboard(t *testing.T) {
	h := newHarness(t)
	d := h.ctl.Dashboard(context.Background())
	assert.NoError(t, d.Err)
	assert.Equal(t, 2, d.Summary.Total)
	assert.Equal(t, 1, d.Summary.AIDetected)
	assert.Equal(t, 50, d.Summary.AIPercent)
	assert.Equal(t, 1, d.Summary.TodayScans)

	h.registry.err = fmt.Errorf("%w: down", casefile.ErrNetwork)
	d = h.ctl.Dashboard(context.Background())
	assert.ErrorIs(t, d.Err, casefile.ErrNetwork)
	assert.Empty(t, d.Listing)
	assert.Zero(t, d.Summary.Total)
}

func TestOpenAdoptsSnapshot(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.ctl.Open(casefile.CaseRecord{}))

	rec := h.registry.listing[1]
	require.True(t, h.ctl.Open(rec))
	s := h.ctl.Snapshot()
	assert.Equal(t, Results, s.View)
	assert.Equal(t, "CASE-B", s.ActiveCaseID)

	rec.Filename = "changed"
	assert.Equal(t, "b.mp4", h.ctl.Snapshot().Record.Filename)
}

func TestSnapshotIsACopy(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.ctl.Open(h.registry.listing[0]))
	s := h.ctl.Snapshot()
	s.Record.Filename = "tampered"
	assert.Equal(t, "a.png", h.ctl.Snapshot().Record.Filename)
}

func TestSubscribeReceivesChanges(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	var views []View
	cancel := h.ctl.Subscribe(func(s State) {
		mu.Lock()
		views = append(views, s.View)
		mu.Unlock()
	})

	h.ctl.Navigate(Upload)
	h.ctl.Navigate(Results) // refused, no notification
	h.ctl.Navigate(Dashboard)
	cancel()
	h.ctl.Navigate(Home)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []View{Upload, Dashboard}, views)
}

func TestFetchReportUsesActiveCase(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctl.FetchReport(context.Background(), "")
	assert.ErrorIs(t, err, casefile.ErrGuard)

	require.True(t, h.ctl.Open(h.registry.listing[0]))
	path, err := h.ctl.FetchReport(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, path, "CASE-A_forensic_report.pdf")

	_, err = h.ctl.FetchReport(context.Background(), "CASE-B")
	require.NoError(t, err)
	assert.Equal(t, []string{"CASE-A", "CASE-B"}, h.reports.fetched)
	assert.False(t, h.ctl.Snapshot().Busy)
}

func TestViewValid(t *testing.T) {
	for _, v := range Views {
		assert.True(t, v.Valid(), v)
	}
	assert.False(t, View("settings").Valid())
}
