package ui

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cybershield-india/evidence-console/internal/casefile"
	"github.com/cybershield-india/evidence-console/internal/complaint"
	"github.com/cybershield-india/evidence-console/internal/intake"
	"github.com/cybershield-india/evidence-console/internal/store"
	"github.com/cybershield-india/evidence-console/internal/verify"
	"github.com/cybershield-india/evidence-console/internal/workflow"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

var verifyPrompt = verify.Outcome{}

func (ui *UI) showUpload() {
	ui.ctl.Navigate(workflow.Upload)
	if ui.media != nil {
		ui.fillUploads(ui.media.Files())
	}
}

func (ui *UI) fillUploads(files []intake.Media) {
	ui.mu.Lock()
	ui.mediaFiles = append([]intake.Media(nil), files...)
	ui.mu.Unlock()

	ui.uploadList.Clear()
	if len(files) == 0 {
		dir := "the intake folder"
		if ui.media != nil && ui.media.Dir() != "" {
			dir = ui.media.Dir()
		}
		ui.uploadList.AddItem(fmt.Sprintf("[%s]No media found[-]", ui.theme.TagMuted), "Drop images or videos into "+esc(dir), 0, nil)
		return
	}
	for _, m := range files {
		ui.uploadList.AddItem(esc(m.Name), fmt.Sprintf("%s, %.2f MB", m.Type, float64(m.Size)/(1<<20)), 0, nil)
	}
}

func (ui *UI) analyzePath(path string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	m, err := intake.Open(path)
	if err != nil {
		switch {
		case errors.Is(err, intake.ErrUnsupported):
			ui.setStatus("[%s]Unsupported file type. Accepted: %s[-]", ui.theme.TagWarning, strings.Join(intake.Extensions(), " "))
		case errors.Is(err, intake.ErrTooLarge):
			ui.setStatus("[%s]File exceeds the %d MB upload limit[-]", ui.theme.TagWarning, intake.MaxFileSize>>20)
		default:
			ui.statusForError("Cannot read file", err)
		}
		return
	}
	ui.analyze(m)
}

func (ui *UI) analyze(m intake.Media) {
	ui.setStatus("[%s]Analyzing %s...[-]", ui.theme.TagAccent, esc(m.Name))
	ui.goAsync(func() {
		err := ui.ctl.Analyze(ui.ctx, m)
		switch {
		case errors.Is(err, workflow.ErrAnalysisInFlight):
			ui.setStatus("[%s]An analysis is already running[-]", ui.theme.TagWarning)
		case err != nil:
			// The controller's error message reaches the status bar through sync.
			ui.logger.Printf("analyze %s: %v", m.Path, err)
		default:
			ui.setStatus("[%s]Analysis of %s complete[-]", ui.theme.TagSuccess, esc(m.Name))
		}
	})
}

func (ui *UI) showResults() {
	if !ui.ctl.Navigate(workflow.Results) {
		ui.setStatus("[%s]No case loaded. Analyze media or open a case from the dashboard.[-]", ui.theme.TagWarning)
	}
}

// showRecord shows rec at once and fills in its custody log when read.
func (ui *UI) showRecord(rec *casefile.CaseRecord) {
	ui.resultsView.SetText(renderResults(ui.theme, rec, ui.explorerBase, nil))
	ui.resultsView.ScrollToBeginning()
	if rec == nil || ui.custody == nil {
		return
	}
	cp := rec.Clone()
	ui.goAsync(func() {
		entries, err := ui.custody.GetEntries(ui.ctx, cp.CaseID, custodyLimit)
		if err != nil {
			ui.logger.Printf("custody log %s: %v", cp.CaseID, err)
			return
		}
		ui.queue(func() {
			if s := ui.ctl.Snapshot(); s.Record == nil || s.Record.CaseID != cp.CaseID {
				return
			}
			ui.resultsView.SetText(renderResults(ui.theme, &cp, ui.explorerBase, entries))
		})
	})
}

func (ui *UI) showFootprint(caseID string) {
	ui.footprintView.SetText(fmt.Sprintf("[%s]Loading footprint...[-]", ui.theme.TagMuted))
	ui.goAsync(func() {
		fv, ok := ui.ctl.EnterFootprint(ui.ctx, caseID)
		if !ok {
			ui.setStatus("[%s]No case selected for the footprint view[-]", ui.theme.TagWarning)
			return
		}
		ui.queue(func() {
			ui.footprintView.SetText(renderFootprint(ui.theme, fv))
			ui.footprintView.ScrollToBeginning()
		})
	})
}

func (ui *UI) draftComplaint() {
	d, err := ui.ctl.DraftComplaint()
	switch {
	case err == nil:
		ui.setStatus("[%s]Complaint drafted. File it at %s[-]", ui.theme.TagSuccess, d.PortalURL)
	case complaint.IsNotAIGenerated(err):
	case errors.Is(err, casefile.ErrGuard):
		ui.setStatus("[%s]No case loaded. Analyze media before drafting a complaint.[-]", ui.theme.TagWarning)
		return
	default:
		ui.statusForError("Complaint", err)
		return
	}
	ui.complaintView.SetText(renderComplaint(ui.theme, d, err))
	ui.complaintView.ScrollToBeginning()
}

func (ui *UI) showDashboard() {
	ui.ctl.Navigate(workflow.Dashboard)
	ui.summaryView.SetText(fmt.Sprintf("[%s]Loading cases...[-]", ui.theme.TagMuted))
	ui.goAsync(func() {
		d := ui.ctl.Dashboard(ui.ctx)
		activity := ui.recentActivity()
		ui.queue(func() {
			query := ui.searchInput.GetText()
			ui.summaryView.SetText(renderSummary(ui.theme, d.Summary, d.Err))
			if strings.TrimSpace(query) != "" {
				ui.fillTable(ui.ctl.Search(query))
			} else {
				ui.fillTable(d.Listing)
			}
			if activity != "" {
				ui.activityView.SetText(activity)
			}
		})
	})
}

func (ui *UI) recentActivity() string {
	if ui.activity == nil {
		return ""
	}
	msgs, err := ui.activity.RecentActivity(ui.ctx, activityLimit)
	if err != nil {
		ui.logger.Printf("recent activity: %v", err)
		return ""
	}
	return renderActivity(ui.theme, msgs)
}

func (ui *UI) fillTable(rows []casefile.CaseRecord) {
	ui.mu.Lock()
	ui.tableRows = rows
	ui.mu.Unlock()

	ui.caseTable.Clear()
	for col, h := range caseColumns {
		ui.caseTable.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(ui.theme.TableHeader).
			SetBackgroundColor(ui.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}
	for i, rec := range rows {
		for col, text := range caseRow(rec) {
			color := ui.theme.TableRow
			switch {
			case col == 3 && rec.Detection.IsAIGenerated:
				color = ui.theme.VerdictAI
			case col == 3:
				color = ui.theme.VerdictAuthentic
			case col >= 4:
				color = ui.theme.TableRowMuted
			}
			ui.caseTable.SetCell(i+1, col, tview.NewTableCell(esc(text)).SetTextColor(color).SetExpansion(1))
		}
	}
	if len(rows) > 0 {
		ui.caseTable.Select(1, 0)
	}
}

func (ui *UI) openRow(row int) {
	ui.mu.Lock()
	var rec *casefile.CaseRecord
	if row >= 1 && row <= len(ui.tableRows) {
		cp := ui.tableRows[row-1].Clone()
		rec = &cp
	}
	ui.mu.Unlock()
	if rec != nil {
		ui.ctl.Open(*rec)
	}
}

func (ui *UI) showReports() {
	ui.ctl.Navigate(workflow.Reports)
	ui.goAsync(func() {
		d := ui.ctl.Dashboard(ui.ctx)
		ui.queue(func() {
			ui.reportList.Clear()
			if d.Err != nil {
				ui.reportList.AddItem(fmt.Sprintf("[%s]Case registry unavailable[-]", ui.theme.TagError), esc(d.Err.Error()), 0, nil)
				return
			}
			if len(d.Recent) == 0 {
				ui.reportList.AddItem(fmt.Sprintf("[%s]No cases yet[-]", ui.theme.TagMuted), "", 0, nil)
				return
			}
			for _, rec := range d.Recent {
				id := rec.CaseID
				ui.reportList.AddItem(esc(rec.CaseID+"  "+rec.Filename),
					fmt.Sprintf("%s %d%%, %s", rec.Detection.Verdict(), rec.Detection.Percent(), rec.Timestamp.Local().Format(timeLayout)),
					0, func() { ui.fetchReport(id) })
			}
		})
	})
}

func (ui *UI) fetchReport(caseID string) {
	ui.setStatus("[%s]Fetching report...[-]", ui.theme.TagAccent)
	ui.goAsync(func() {
		path, err := ui.ctl.FetchReport(ui.ctx, caseID)
		switch {
		case err != nil && path == "":
			if errors.Is(err, casefile.ErrNotFound) {
				ui.setStatus("[%s]No report has been generated for this case yet[-]", ui.theme.TagWarning)
				return
			}
			ui.statusForError("Report", err)
		case err != nil:
			ui.setStatus("[%s]Report saved to %s (could not open a viewer)[-]", ui.theme.TagWarning, esc(filepath.Base(path)))
		default:
			ui.setStatus("[%s]Report saved to %s[-]", ui.theme.TagSuccess, esc(path))
		}
	})
}

func (ui *UI) showVerify() {
	ui.ctl.Navigate(workflow.Verify)
	ui.app.SetFocus(ui.verifyInput)
}

func (ui *UI) runVerify(query string) {
	ui.verifyResult.SetText(fmt.Sprintf("[%s]Checking the registry...[-]", ui.theme.TagMuted))
	ui.goAsync(func() {
		out := ui.ctl.Verify(ui.ctx, query)
		ui.queue(func() {
			ui.verifyResult.SetText(renderVerify(ui.theme, out, ui.explorerBase))
		})
	})
}

var _ CustodyLog = (*store.Store)(nil)
