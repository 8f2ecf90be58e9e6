package registry

import (
	"math"
	"time"

	"github.com/cybershield-india/evidence-console/internal/casefile"
)

// RecentCount is how many cases the reports view offers.
const RecentCount = 3

// Summary holds the dashboard counters for a listing.
type Summary struct {
	Total      int
	AIDetected int
	// AIPercent is AIDetected as a rounded share of Total, 0 for an empty listing.
	AIPercent  int
	TodayScans int
}

// Summarize computes dashboard counters. "Today" is the calendar day of now in
// now's location.
func Summarize(listing []casefile.CaseRecord, now time.Time) Summary {
	s := Summary{Total: len(listing)}
	y, m, d := now.Date()
	loc := now.Location()
	for _, rec := range listing {
		if rec.Detection.IsAIGenerated {
			s.AIDetected++
		}
		ry, rm, rd := rec.Timestamp.In(loc).Date()
		if ry == y && rm == m && rd == d {
			s.TodayScans++
		}
	}
	if s.Total > 0 {
		s.AIPercent = int(math.Round(float64(s.AIDetected) / float64(s.Total) * 100))
	}
	return s
}

// Recent returns the first n cases of a listing, which the service orders
// newest first. n <= 0 uses RecentCount.
func Recent(listing []casefile.CaseRecord, n int) []casefile.CaseRecord {
	if n <= 0 {
		n = RecentCount
	}
	if n > len(listing) {
		n = len(listing)
	}
	return cloneAll(listing[:n])
}

// Dashboard is one rendering of the registry for the dashboard and reports views.
type Dashboard struct {
	Listing []casefile.CaseRecord
	Summary Summary
	Recent  []casefile.CaseRecord
	// Err is the registry's sticky error; Listing is empty when it is set.
	Err     error
}

// BuildDashboard assembles a Dashboard from a listing.
func BuildDashboard(listing []casefile.CaseRecord, err error, now time.Time) Dashboard {
	return Dashboard{
		Listing: cloneAll(listing),
		Summary: Summarize(listing, now),
		Recent:  Recent(listing, RecentCount),
		Err:     err,
	}
}
