package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cybershield-india/evidence-console/internal/bus"
	"github.com/cybershield-india/evidence-console/internal/casefile"
	"github.com/cybershield-india/evidence-console/internal/complaint"
	"github.com/cybershield-india/evidence-console/internal/registry"
	"github.com/cybershield-india/evidence-console/internal/store"
	"github.com/cybershield-india/evidence-console/internal/verify"
	"github.com/cybershield-india/evidence-console/internal/workflow"
	"github.com/rivo/tview"
)

const timeLayout = "2006-01-02 15:04:05"

func esc(s string) string { return tview.Escape(s) }

func verdictTag(th Theme, d casefile.Detection) string {
	if d.IsAIGenerated {
		return th.TagError
	}
	return th.TagSuccess
}

func field(b *strings.Builder, th Theme, label, value string) {
	fmt.Fprintf(b, "[%s]%-18s[-] %s\n", th.TagMuted, label, value)
}

func renderHome(th Theme) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]CyberShield India[-::-]  AI authenticity forensics\n\n", th.TagAccent)
	b.WriteString("Submit an image or video for analysis, review the verdict and its\n")
	b.WriteString("blockchain anchor, inspect the digital footprint and draft a complaint\n")
	b.WriteString("for the national cyber crime portal.\n\n")
	for _, k := range []struct{ key, label string }{
		{"u", "Upload media"},
		{"r", "Analysis results"},
		{"f", "Digital footprint"},
		{"c", "Draft complaint"},
		{"d", "Case dashboard"},
		{"p", "Reports"},
		{"v", "Verify a case or transaction"},
		{"o", "Fetch report for the active case"},
		{"t", "Cycle theme"},
		{"?", "Help"},
		{"q", "Quit"},
	} {
		fmt.Fprintf(&b, "  [%s]%s[-]  %s\n", th.TagAccent, k.key, k.label)
	}
	return b.String()
}

func renderResults(th Theme, rec *casefile.CaseRecord, explorerBase string, entries []store.Entry) string {
	if rec == nil {
		return fmt.Sprintf("[%s]No case loaded.[-]", th.TagMuted)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]%s[-::-]  %d%% confidence\n\n", verdictTag(th, rec.Detection), rec.Detection.Verdict(), rec.Detection.Percent())
	field(&b, th, "Case ID", esc(rec.CaseID))
	field(&b, th, "File", esc(rec.Filename))
	field(&b, th, "Media type", string(rec.MediaType))
	field(&b, th, "Analyzed", rec.Timestamp.Local().Format(timeLayout))
	if rec.Anchored() {
		field(&b, th, "Blockchain", fmt.Sprintf("[%s]anchored[-] %s", th.TagSuccess, esc(rec.BlockchainTx)))
		field(&b, th, "Explorer", esc(verify.ExplorerURL(explorerBase, rec.BlockchainTx)))
	} else {
		field(&b, th, "Blockchain", fmt.Sprintf("[%s]pending[-]", th.TagWarning))
	}
	if rec.Footprint != nil {
		field(&b, th, "Footprint", fmt.Sprintf("attached (risk %d)", rec.Footprint.RiskScore))
	}
	if len(entries) > 0 {
		fmt.Fprintf(&b, "\n[%s::b]Custody log[-::-]\n", th.TagAccent)
		b.WriteString(renderEntries(th, entries))
	}
	return b.String()
}

func renderEntries(th Theme, entries []store.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s]%s[-] %-20s %s\n", th.TagMuted, e.Timestamp.Local().Format(timeLayout), e.Action, esc(e.Actor))
	}
	return b.String()
}

func renderFootprint(th Theme, fv workflow.FootprintView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]Digital footprint[-::-]  %s\n\n", th.TagAccent, esc(fv.CaseID))
	if fv.Err != nil {
		msg := "Footprint could not be loaded."
		switch fv.Kind {
		case "not_found":
			msg = "No footprint has been recorded for this case."
		case "network":
			msg = "Footprint service not responding."
		}
		fmt.Fprintf(&b, "[%s]%s[-]\n", th.TagError, msg)
		return b.String()
	}
	if fv.Footprint == nil {
		fmt.Fprintf(&b, "[%s]Loading...[-]\n", th.TagMuted)
		return b.String()
	}
	fp := fv.Footprint

	fmt.Fprintf(&b, "[%s]File[-]\n", th.TagAccent)
	field(&b, th, "Name", esc(fp.FileInfo.Name))
	if fp.FileInfo.SizeBytes > 0 {
		field(&b, th, "Size", fmt.Sprintf("%.2f MB", float64(fp.FileInfo.SizeBytes)/(1<<20)))
	}
	if fp.FileInfo.Format != "" {
		field(&b, th, "Format", esc(fp.FileInfo.Format))
	}
	if fp.FileInfo.MimeType != "" {
		field(&b, th, "MIME type", esc(fp.FileInfo.MimeType))
	}
	if fp.FileInfo.SHA256 != "" {
		field(&b, th, "SHA-256", esc(fp.FileInfo.SHA256))
	}
	if fp.FileInfo.Created != "" {
		field(&b, th, "Created", esc(fp.FileInfo.Created))
	}

	fmt.Fprintf(&b, "\n[%s]Location[-]\n", th.TagAccent)
	if fp.GPS != nil {
		coords := fp.GPS.Coordinates
		if coords == "" {
			coords = fmt.Sprintf("%.4f, %.4f", fp.GPS.Latitude, fp.GPS.Longitude)
		}
		field(&b, th, "Coordinates", esc(coords))
		if fp.GPS.MapsURL != "" {
			field(&b, th, "Map", esc(fp.GPS.MapsURL))
		}
	} else {
		fmt.Fprintf(&b, "[%s]No GPS data embedded.[-]\n", th.TagMuted)
	}

	fmt.Fprintf(&b, "\n[%s]EXIF[-]\n", th.TagAccent)
	if fp.HasEXIF() {
		keys := make([]string, 0, len(fp.EXIF))
		for k := range fp.EXIF {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			field(&b, th, esc(k), esc(fp.EXIF[k]))
		}
	} else {
		fmt.Fprintf(&b, "[%s]No EXIF metadata found.[-]\n", th.TagMuted)
	}

	fmt.Fprintf(&b, "\n[%s]Network indicators[-]\n", th.TagAccent)
	field(&b, th, "Risk score", fmt.Sprintf("%d", fp.RiskScore))
	for _, ind := range fp.RiskIndicators {
		fmt.Fprintf(&b, "  [%s]![-] %s\n", th.TagWarning, esc(ind))
	}
	for _, p := range fp.BehavioralPatterns {
		fmt.Fprintf(&b, "  - %s\n", esc(p))
	}
	return b.String()
}

func renderComplaint(th Theme, d complaint.Draft, err error) string {
	if err != nil {
		if complaint.IsNotAIGenerated(err) {
			return fmt.Sprintf("[%s]This media was judged authentic. A complaint can only be drafted for AI-generated media.[-]", th.TagWarning)
		}
		return fmt.Sprintf("[%s]%s[-]", th.TagError, esc(err.Error()))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]Cyber crime complaint[-::-]\n\n", th.TagAccent)
	field(&b, th, "Case ID", esc(d.CaseID))
	field(&b, th, "Category", d.Category)
	field(&b, th, "Incident date", d.Date)
	field(&b, th, "Incident time", d.Time)
	field(&b, th, "Location", d.Location)
	field(&b, th, "Risk score", fmt.Sprintf("[%s]%d/100[-]", th.TagError, d.RiskScore))
	fmt.Fprintf(&b, "\n%s\n\n", d.Description)
	fmt.Fprintf(&b, "[%s]Evidence[-]\n", th.TagAccent)
	for _, e := range d.Evidence {
		fmt.Fprintf(&b, "  - %s\n", e)
	}
	fmt.Fprintf(&b, "\nFile at [%s]%s[-]\n", th.TagAccent, d.PortalURL)
	return b.String()
}

func renderSummary(th Theme, s registry.Summary, err error) string {
	if err != nil {
		return fmt.Sprintf("[%s]Case registry unavailable: %s[-]", th.TagError, esc(err.Error()))
	}
	return fmt.Sprintf("[%s]Total[-] %d   [%s]AI detected[-] %d (%d%%)   [%s]Today[-] %d",
		th.TagMuted, s.Total,
		th.TagMuted, s.AIDetected, s.AIPercent,
		th.TagMuted, s.TodayScans)
}

func renderVerify(th Theme, out verify.Outcome, explorerBase string) string {
	if out.Query == "" {
		return fmt.Sprintf("[%s]Enter a case ID or blockchain transaction hash.[-]", th.TagMuted)
	}
	var b strings.Builder
	if !out.Found() {
		fmt.Fprintf(&b, "[%s::b]Not found[-::-]  no recorded case matches %q\n", th.TagError, esc(out.Query))
		if out.Err != nil {
			fmt.Fprintf(&b, "[%s]Registry unavailable: %s[-]\n", th.TagMuted, esc(out.Err.Error()))
		}
		return b.String()
	}
	rec := out.Record
	fmt.Fprintf(&b, "[%s::b]Verified[-::-]  case is on record\n\n", th.TagSuccess)
	field(&b, th, "Case ID", esc(rec.CaseID))
	field(&b, th, "File", esc(rec.Filename))
	field(&b, th, "Verdict", fmt.Sprintf("[%s]%s[-] (%d%%)", verdictTag(th, rec.Detection), rec.Detection.Verdict(), rec.Detection.Percent()))
	field(&b, th, "Analyzed", rec.Timestamp.Local().Format(timeLayout))
	if rec.Anchored() {
		field(&b, th, "Transaction", esc(rec.BlockchainTx))
		field(&b, th, "Explorer", esc(verify.ExplorerURL(explorerBase, rec.BlockchainTx)))
	} else {
		field(&b, th, "Blockchain", fmt.Sprintf("[%s]pending[-]", th.TagWarning))
	}
	return b.String()
}

func renderActivity(th Theme, msgs []bus.ActivityMessage) string {
	if len(msgs) == 0 {
		return fmt.Sprintf("[%s]No shared activity.[-]", th.TagMuted)
	}
	var b strings.Builder
	for _, m := range msgs {
		ts := time.Unix(m.Timestamp, 0).Local().Format(timeLayout)
		fmt.Fprintf(&b, "[%s]%s[-] %-20s %s %s\n", th.TagMuted, ts, m.Action, esc(m.Actor), esc(m.CaseID))
	}
	return b.String()
}

// caseRow is the dashboard table row for rec.
func caseRow(rec casefile.CaseRecord) []string {
	return []string{
		rec.CaseID,
		rec.Filename,
		string(rec.MediaType),
		rec.Detection.Verdict(),
		fmt.Sprintf("%d%%", rec.Detection.Percent()),
		rec.BlockchainStatus(),
		rec.Timestamp.Local().Format(timeLayout),
	}
}

var caseColumns = []string{"Case ID", "File", "Type", "Verdict", "Confidence", "Blockchain", "Analyzed"}
