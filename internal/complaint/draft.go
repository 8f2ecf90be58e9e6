// Package complaint renders a cyber crime complaint from a case record.
package complaint

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cybershield-india/evidence-console/internal/casefile"
)

const (
	Category  = "Online Fraud / Deepfake / Identity Misuse"
	Location  = "Social Media / Messaging Platform"
	PortalURL = "https://cybercrime.gov.in"

	// MinRiskScore is the floor applied to every drafted complaint.
	MinRiskScore = 85
)

// ErrNotAIGenerated is returned for records whose media was judged authentic.
var ErrNotAIGenerated = fmt.Errorf("%w: complaint requires AI-generated media", casefile.ErrGuard)

// Evidence lists the attachments every complaint refers to.
var Evidence = []string{
	"Uploaded media file",
	"CyberShield forensic verification report (PDF)",
	"Blockchain integrity proof where applicable",
}

const descriptionTemplate = "I am reporting a cyber crime involving digitally manipulated media detected by CyberShield India's AI forensic system.\n\n" +
	"The uploaded content has been verified as AI-generated with %d%% confidence and presents high risk of fraud, impersonation and online deception.\n\n" +
	"Forensic evidence including the original media and analysis report is attached for verification.\n\n" +
	"Kindly register this complaint and initiate appropriate legal action."

// Draft is the rendered complaint ready to paste into the portal.
type Draft struct {
	CaseID      string
	Category    string
	Date        string
	Time        string
	Location    string
	Description string
	RiskScore   int
	Confidence  int
	PortalURL   string
	Evidence    []string
}

// Drafter renders complaints. The zero value renders dates in time.Local.
type Drafter struct {
	Location *time.Location
}

// Draft renders the complaint for rec. The output depends only on rec and the
// drafter's location.
func (d Drafter) Draft(rec casefile.CaseRecord) (Draft, error) {
	if !rec.Detection.IsAIGenerated {
		return Draft{}, ErrNotAIGenerated
	}
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	ts := rec.Timestamp.In(loc)
	pct := rec.Detection.Percent()
	return Draft{
		CaseID:      rec.CaseID,
		Category:    Category,
		Date:        ts.Format("2006-01-02"),
		Time:        ts.Format("15:04:05"),
		Location:    Location,
		Description: fmt.Sprintf(descriptionTemplate, pct),
		RiskScore:   RiskScore(rec.Detection.Confidence),
		Confidence:  pct,
		PortalURL:   PortalURL,
		Evidence:    append([]string(nil), Evidence...),
	}, nil
}

// RiskScore is the confidence percentage floored at MinRiskScore.
func RiskScore(confidence float64) int {
	score := int(math.Round(confidence * 100))
	if score < MinRiskScore {
		return MinRiskScore
	}
	return score
}

// IsNotAIGenerated reports whether err came from drafting an authentic record.
func IsNotAIGenerated(err error) bool {
	return errors.Is(err, ErrNotAIGenerated)
}
