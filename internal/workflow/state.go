package workflow

import "github.com/cybershield-india/evidence-console/internal/casefile"

// View names a screen of the console.
type View string

const (
	Home      View = "home"
	Upload    View = "upload"
	Results   View = "results"
	Footprint View = "footprint"
	Complaint View = "complaint"
	Dashboard View = "dashboard"
	Reports   View = "reports"
	Verify    View = "verify"
)

// Views lists every view in menu order.
var Views = []View{Home, Upload, Results, Footprint, Complaint, Dashboard, Reports, Verify}

// Valid reports whether v is a known view.
func (v View) Valid() bool {
	_, ok := guards[v]
	return ok
}

// State is a snapshot of the navigation state. Record is a private copy.
type State struct {
	View         View
	ActiveCaseID string
	Record       *casefile.CaseRecord
	// Version increases each time the owned record changes.
	Version      uint64
	// Busy is set while any request issued by the controller is outstanding.
	Busy         bool
	// Analyzing is set while an analysis upload is outstanding.
	Analyzing    bool
	Error        string
}

func (s State) clone() State {
	out := s
	if s.Record != nil {
		rec := s.Record.Clone()
		out.Record = &rec
	}
	return out
}

// guard checks a transition's precondition against the current state. It
// returns the case id the target view will be keyed by.
type guard func(s *State, caseID string) (string, bool)

var guards = map[View]guard{
	Home:      keepCase,
	Upload:    keepCase,
	Dashboard: keepCase,
	Reports:   keepCase,
	Verify:    keepCase,
	Results:   requireRecord,
	Complaint: requireRecord,
	Footprint: explicitOrRecord,
}

func keepCase(s *State, _ string) (string, bool) {
	return s.ActiveCaseID, true
}

func requireRecord(s *State, _ string) (string, bool) {
	if s.Record == nil {
		return "", false
	}
	return s.Record.CaseID, true
}

func explicitOrRecord(s *State, caseID string) (string, bool) {
	if caseID != "" {
		return caseID, true
	}
	if s.Record != nil {
		return s.Record.CaseID, true
	}
	return "", false
}
