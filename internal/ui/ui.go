// Package ui is the terminal front end of the evidence console. It renders the
// workflow controller's state and turns keys into controller operations.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cybershield-india/evidence-console/internal/bus"
	"github.com/cybershield-india/evidence-console/internal/casefile"
	"github.com/cybershield-india/evidence-console/internal/intake"
	"github.com/cybershield-india/evidence-console/internal/store"
	"github.com/cybershield-india/evidence-console/internal/workflow"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const (
	custodyLimit  = 10
	activityLimit = 8
)

// MediaSource lists the media waiting in the intake folder.
type MediaSource interface {
	Files() []intake.Media
	Dir() string
}

// CustodyLog reads the custody journal of a case.
type CustodyLog interface {
	GetEntries(ctx context.Context, caseID string, limit int) ([]store.Entry, error)
}

// ActivityFeed reads activity shared by other consoles.
type ActivityFeed interface {
	RecentActivity(ctx context.Context, n int64) ([]bus.ActivityMessage, error)
}

// Options wires the UI. Only Controller is required.
type Options struct {
	Controller   *workflow.Controller
	Media        MediaSource
	Custody      CustodyLog
	Activity     ActivityFeed
	ExplorerBase string
	Theme        string
	Logger       *log.Logger
}

// UI represents the terminal user interface
type UI struct {
	app          *tview.Application
	ctl          *workflow.Controller
	media        MediaSource
	custody      CustodyLog
	activity     ActivityFeed
	explorerBase string
	logger       *log.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool

	theme        Theme
	themeName    string
	hasTrueColor bool

	root      *tview.Flex
	header    *tview.TextView
	pages     *tview.Pages
	statusBar *tview.TextView

	homeView      *tview.TextView
	uploadList    *tview.List
	uploadPath    *tview.InputField
	resultsView   *tview.TextView
	footprintView *tview.TextView
	complaintView *tview.TextView
	summaryView   *tview.TextView
	searchInput   *tview.InputField
	caseTable     *tview.Table
	activityView  *tview.TextView
	reportList    *tview.List
	verifyInput   *tview.InputField
	verifyResult  *tview.TextView

	helpActive  bool
	lastFocus   tview.Primitive
	unsubscribe func()

	mu           sync.Mutex
	shown        workflow.View
	shownVersion uint64
	tableRows    []casefile.CaseRecord
	mediaFiles   []intake.Media
}

// NewUI creates a new UI instance
func NewUI(ctx context.Context, opts Options) *UI {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	uiCtx, cancel := context.WithCancel(ctx)

	ui := &UI{
		app:          tview.NewApplication(),
		ctl:          opts.Controller,
		media:        opts.Media,
		custody:      opts.Custody,
		activity:     opts.Activity,
		explorerBase: opts.ExplorerBase,
		logger:       logger,
		ctx:          uiCtx,
		cancel:       cancel,
		hasTrueColor: detectTrueColor(),
	}
	ui.theme, ui.themeName = themeByName(opts.Theme)

	ui.setupLayout()
	ui.setupKeybindings()
	ui.applyTheme()

	ui.unsubscribe = ui.ctl.Subscribe(func(s workflow.State) {
		ui.queue(func() { ui.sync(s) })
	})
	ui.sync(ui.ctl.Snapshot())
	return ui
}

// Start runs the application until ctx is cancelled or the user quits.
func (ui *UI) Start(ctx context.Context) error {
	ui.logger.Println("Starting TUI application")

	go func() {
		select {
		case <-ctx.Done():
			ui.logger.Println("External context cancelled, stopping TUI")
		case <-ui.ctx.Done():
			ui.logger.Println("UI context cancelled, stopping TUI")
		}
		ui.cancel()
		ui.app.Stop()
	}()

	ui.startRedrawHeartbeat()
	ui.setStatusDirect("[%s]Ready[-]", ui.theme.TagSuccess)

	ui.running.Store(true)
	err := ui.app.Run()
	ui.running.Store(false)
	ui.logger.Printf("app.Run() returned with error: %v", err)
	return err
}

// Stop stops the application.
func (ui *UI) Stop() {
	ui.logger.Println("Stopping TUI application")
	ui.running.Store(false)
	if ui.unsubscribe != nil {
		ui.unsubscribe()
	}
	ui.cancel()
	ui.app.Stop()
}

// MediaChanged refreshes the upload list. It is safe to call from any goroutine.
func (ui *UI) MediaChanged(files []intake.Media) {
	ui.queue(func() { ui.fillUploads(files) })
}

func (ui *UI) setupLayout() {
	ui.header = tview.NewTextView().SetDynamicColors(true)
	ui.statusBar = tview.NewTextView().SetDynamicColors(true)

	ui.homeView = newTextPane(" Home ")
	ui.homeView.SetText(renderHome(ui.theme))

	ui.uploadList = tview.NewList().ShowSecondaryText(true)
	ui.uploadList.SetBorder(true).SetTitle(" Intake folder ").SetTitleAlign(tview.AlignLeft)
	ui.uploadList.SetSelectedFunc(func(i int, _, _ string, _ rune) {
		ui.mu.Lock()
		var m *intake.Media
		if i >= 0 && i < len(ui.mediaFiles) {
			cp := ui.mediaFiles[i]
			m = &cp
		}
		ui.mu.Unlock()
		if m != nil {
			ui.analyze(*m)
		}
	})
	ui.uploadPath = tview.NewInputField().SetLabel("File path: ")
	ui.uploadPath.SetBorder(true).SetTitle(" Analyze a file ").SetTitleAlign(tview.AlignLeft)
	ui.uploadPath.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			ui.analyzePath(ui.uploadPath.GetText())
		}
	})
	uploadPage := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.uploadList, 0, 1, true).
		AddItem(ui.uploadPath, 3, 0, false)

	ui.resultsView = newTextPane(" Analysis results ")
	ui.footprintView = newTextPane(" Digital footprint ")
	ui.complaintView = newTextPane(" Complaint ")

	ui.summaryView = tview.NewTextView().SetDynamicColors(true)
	ui.summaryView.SetBorder(true).SetTitle(" Overview ").SetTitleAlign(tview.AlignLeft)
	ui.searchInput = tview.NewInputField().SetLabel("Search: ")
	ui.searchInput.SetChangedFunc(func(text string) { ui.fillTable(ui.ctl.Search(text)) })
	ui.searchInput.SetDoneFunc(func(tcell.Key) { ui.app.SetFocus(ui.caseTable) })
	ui.caseTable = tview.NewTable().SetSelectable(true, false).SetFixed(1, 0)
	ui.caseTable.SetBorder(true).SetTitle(" Cases ").SetTitleAlign(tview.AlignLeft)
	ui.caseTable.SetSelectedFunc(func(row, _ int) { ui.openRow(row) })
	ui.activityView = newTextPane(" Activity ")
	dashboardPage := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.summaryView, 3, 0, false).
		AddItem(ui.searchInput, 1, 0, false).
		AddItem(ui.caseTable, 0, 2, true).
		AddItem(ui.activityView, 0, 1, false)

	ui.reportList = tview.NewList().ShowSecondaryText(true)
	ui.reportList.SetBorder(true).SetTitle(" Recent reports ").SetTitleAlign(tview.AlignLeft)

	ui.verifyInput = tview.NewInputField().SetLabel("Case ID or tx hash: ")
	ui.verifyInput.SetBorder(true).SetTitle(" Verify ").SetTitleAlign(tview.AlignLeft)
	ui.verifyInput.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			ui.runVerify(ui.verifyInput.GetText())
		}
	})
	ui.verifyResult = newTextPane(" Result ")
	ui.verifyResult.SetText(renderVerify(ui.theme, verifyPrompt, ui.explorerBase))
	verifyPage := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.verifyInput, 3, 0, true).
		AddItem(ui.verifyResult, 0, 1, false)

	ui.pages = tview.NewPages().
		AddPage(string(workflow.Home), ui.homeView, true, true).
		AddPage(string(workflow.Upload), uploadPage, true, false).
		AddPage(string(workflow.Results), ui.resultsView, true, false).
		AddPage(string(workflow.Footprint), ui.footprintView, true, false).
		AddPage(string(workflow.Complaint), ui.complaintView, true, false).
		AddPage(string(workflow.Dashboard), dashboardPage, true, false).
		AddPage(string(workflow.Reports), ui.reportList, true, false).
		AddPage(string(workflow.Verify), verifyPage, true, false)

	ui.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.header, 1, 0, false).
		AddItem(ui.pages, 0, 1, true).
		AddItem(ui.statusBar, 1, 0, false)
	ui.app.SetRoot(ui.root, true)
	ui.app.SetFocus(ui.homeView)
}

func newTextPane(title string) *tview.TextView {
	tv := tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(true)
	tv.SetBorder(true).SetTitle(title).SetTitleAlign(tview.AlignLeft)
	return tv
}

// primary is the widget that takes focus when view is shown.
func (ui *UI) primary(view workflow.View) tview.Primitive {
	switch view {
	case workflow.Upload:
		return ui.uploadList
	case workflow.Results:
		return ui.resultsView
	case workflow.Footprint:
		return ui.footprintView
	case workflow.Complaint:
		return ui.complaintView
	case workflow.Dashboard:
		return ui.caseTable
	case workflow.Reports:
		return ui.reportList
	case workflow.Verify:
		return ui.verifyInput
	default:
		return ui.homeView
	}
}

func (ui *UI) setupKeybindings() {
	ui.app.SetInputCapture(ui.handleKey)
}

func (ui *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() == tcell.KeyCtrlC {
		ui.Stop()
		return nil
	}
	if ui.isDialogActive() {
		if event.Key() == tcell.KeyEsc && !ui.helpActive {
			ui.app.SetFocus(ui.secondary(ui.currentView()))
			return nil
		}
		return event
	}

	switch event.Key() {
	case tcell.KeyEsc:
		ui.ctl.Navigate(workflow.Home)
		return nil
	case tcell.KeyTab:
		ui.cycleFocus()
		return nil
	case tcell.KeyRune:
	default:
		return event
	}

	switch event.Rune() {
	case 'h':
		ui.ctl.Navigate(workflow.Home)
	case 'u':
		ui.showUpload()
	case 'r':
		ui.showResults()
	case 'f':
		ui.showFootprint("")
	case 'c':
		ui.draftComplaint()
	case 'd':
		ui.showDashboard()
	case 'p':
		ui.showReports()
	case 'v':
		ui.showVerify()
	case 'o':
		ui.fetchReport("")
	case '/':
		if ui.currentView() == workflow.Dashboard {
			ui.app.SetFocus(ui.searchInput)
		}
	case 't':
		ui.cycleTheme()
	case '?':
		ui.showHelp()
	case 'q':
		ui.Stop()
	default:
		return event
	}
	return nil
}

// secondary is where Esc leaves focus when it leaves an input field.
func (ui *UI) secondary(view workflow.View) tview.Primitive {
	switch view {
	case workflow.Verify:
		return ui.verifyResult
	case workflow.Dashboard:
		return ui.caseTable
	case workflow.Upload:
		return ui.uploadList
	default:
		return ui.primary(view)
	}
}

func (ui *UI) cycleFocus() {
	var ring []tview.Primitive
	switch ui.currentView() {
	case workflow.Upload:
		ring = []tview.Primitive{ui.uploadList, ui.uploadPath}
	case workflow.Dashboard:
		ring = []tview.Primitive{ui.caseTable, ui.searchInput, ui.activityView}
	case workflow.Verify:
		ring = []tview.Primitive{ui.verifyInput, ui.verifyResult}
	default:
		return
	}
	focused := ui.app.GetFocus()
	for i, p := range ring {
		if p == focused {
			ui.app.SetFocus(ring[(i+1)%len(ring)])
			return
		}
	}
	ui.app.SetFocus(ring[0])
}

func (ui *UI) currentView() workflow.View {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	return ui.shown
}

// sync renders a controller snapshot. It runs on the UI goroutine.
func (ui *UI) sync(s workflow.State) {
	ui.mu.Lock()
	changedView := s.View != ui.shown
	changedRecord := s.Version != ui.shownVersion
	ui.shown = s.View
	ui.shownVersion = s.Version
	ui.mu.Unlock()

	ui.header.SetText(ui.buildHeader(s))
	if changedView {
		ui.pages.SwitchToPage(string(s.View))
		if !ui.helpActive {
			ui.app.SetFocus(ui.primary(s.View))
		}
	}
	if s.View == workflow.Results && (changedView || changedRecord) {
		ui.showRecord(s.Record)
	}
	if s.Error != "" {
		ui.setStatusDirect("[%s]%s[-]", ui.theme.TagError, esc(s.Error))
	}
}

func (ui *UI) buildHeader(s workflow.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, " [%s::b]CyberShield India[-::-] [%s]|[-] %s", ui.theme.TagAccent, ui.theme.TagMuted, strings.Title(string(s.View)))
	if s.ActiveCaseID != "" {
		fmt.Fprintf(&b, " [%s]|[-] case %s", ui.theme.TagMuted, esc(s.ActiveCaseID))
	}
	if s.Analyzing {
		fmt.Fprintf(&b, " [%s]| analyzing...[-]", ui.theme.TagWarning)
	} else if s.Busy {
		fmt.Fprintf(&b, " [%s]| working...[-]", ui.theme.TagWarning)
	}
	return b.String()
}

// queue runs fn on the UI goroutine, or inline when the app is not running.
func (ui *UI) queue(fn func()) {
	if ui.running.Load() {
		ui.app.QueueUpdateDraw(fn)
		return
	}
	fn()
}

// goAsync runs a blocking operation off the UI goroutine, or inline when the
// app is not running.
func (ui *UI) goAsync(fn func()) {
	if ui.running.Load() {
		go fn()
		return
	}
	fn()
}

func (ui *UI) startRedrawHeartbeat() {
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ui.ctx.Done():
				return
			case <-ticker.C:
				if ui.running.Load() {
					// Non-blocking repaint request to avoid re-entrancy
					ui.app.QueueUpdate(func() {})
				}
			}
		}
	}()
}

func (ui *UI) isDialogActive() bool {
	if ui.helpActive {
		return true
	}
	focused := ui.app.GetFocus()
	if focused == nil {
		return false
	}
	switch focused.(type) {
	case *tview.Form,
		*tview.Modal,
		*tview.InputField,
		*tview.TextArea,
		*tview.DropDown,
		*tview.Button:
		return true
	default:
		return false
	}
}

func (ui *UI) showModal(title, text string) {
	modal := tview.NewModal()
	modal.SetText(text)
	modal.SetTitle(fmt.Sprintf(" %s ", title))
	modal.AddButtons([]string{"Close"})

	modal.SetBackgroundColor(ui.theme.Surface)
	modal.SetTextColor(ui.theme.TextPrimary)
	modal.SetBorderColor(ui.theme.FocusBorder)
	modal.SetButtonBackgroundColor(ui.theme.SelectionBg)
	modal.SetButtonTextColor(ui.theme.SelectionFg)

	modal.SetDoneFunc(func(int, string) { ui.restoreMainLayout() })
	modal.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc, tcell.KeyEnter, tcell.KeyRune:
			ui.restoreMainLayout()
			return nil
		}
		return event
	})

	ui.helpActive = true
	ui.lastFocus = ui.app.GetFocus()
	ui.app.SetRoot(modal, true)
	ui.app.SetFocus(modal)
}

func (ui *UI) restoreMainLayout() {
	ui.helpActive = false
	ui.app.SetRoot(ui.root, true)
	target := ui.lastFocus
	if target == nil {
		target = ui.primary(ui.currentView())
	}
	ui.app.SetFocus(target)
}

func (ui *UI) showHelp() {
	ui.showModal("Help", strings.Join([]string{
		"h  Home            u  Upload media",
		"r  Results         f  Digital footprint",
		"c  Complaint       d  Dashboard",
		"p  Reports         v  Verify",
		"o  Fetch report    /  Search cases",
		"t  Theme           Tab  Next pane",
		"Esc  Home / leave input",
		"q  Quit",
		"",
		"Press any key to close",
	}, "\n"))
}

func (ui *UI) setStatus(format string, args ...interface{}) {
	text := ui.statusText(format, args...)
	if ui.running.Load() {
		ui.app.QueueUpdateDraw(func() { ui.statusBar.SetText(text) })
		return
	}
	ui.statusBar.SetText(text)
}

func (ui *UI) setStatusDirect(format string, args ...interface{}) {
	ui.statusBar.SetText(ui.statusText(format, args...))
}

func (ui *UI) statusText(format string, args ...interface{}) string {
	return fmt.Sprintf("[%s]%s[-] [%s]|[-] %s [%s]| ? help  q quit[-]",
		ui.theme.TagMuted, time.Now().Format("15:04:05"),
		ui.theme.TagMuted,
		fmt.Sprintf(format, args...),
		ui.theme.TagMuted)
}

func (ui *UI) applyTheme() {
	ui.logger.Printf("Applying theme: %s", ui.themeName)
	tview.Styles.PrimitiveBackgroundColor = ui.theme.Surface
	tview.Styles.ContrastBackgroundColor = ui.theme.SelectionBg
	tview.Styles.PrimaryTextColor = ui.theme.TextPrimary
	tview.Styles.BorderColor = ui.theme.Border
	tview.Styles.TitleColor = ui.theme.Header

	for _, tv := range []*tview.TextView{ui.homeView, ui.resultsView, ui.footprintView, ui.complaintView, ui.summaryView, ui.activityView, ui.verifyResult} {
		tv.SetTextColor(ui.theme.TextPrimary)
		tv.SetBackgroundColor(ui.theme.Surface)
		tv.SetBorderColor(ui.theme.Border)
		tv.SetTitleColor(ui.theme.Header)
	}
	for _, l := range []*tview.List{ui.uploadList, ui.reportList} {
		l.SetMainTextColor(ui.theme.TextPrimary)
		l.SetSecondaryTextColor(ui.theme.TextMuted)
		l.SetSelectedTextColor(ui.theme.SelectionFg)
		l.SetSelectedBackgroundColor(ui.theme.SelectionBg)
		l.SetBorderColor(ui.theme.Border)
		l.SetBackgroundColor(ui.theme.Surface)
		l.SetTitleColor(ui.theme.Header)
	}
	for _, in := range []*tview.InputField{ui.uploadPath, ui.searchInput, ui.verifyInput} {
		in.SetFieldBackgroundColor(ui.theme.SelectionBg)
		in.SetFieldTextColor(ui.theme.TextPrimary)
		in.SetLabelColor(ui.theme.Accent)
		in.SetBackgroundColor(ui.theme.Surface)
		in.SetBorderColor(ui.theme.FocusBorder)
	}
	ui.caseTable.SetSelectedStyle(tcell.StyleDefault.Background(ui.theme.SelectionBg).Foreground(ui.theme.SelectionFg))
	ui.caseTable.SetBorderColor(ui.theme.Border)
	ui.caseTable.SetBackgroundColor(ui.theme.Surface)

	ui.header.SetBackgroundColor(ui.theme.Surface)
	ui.header.SetTextColor(ui.theme.TextPrimary)
	ui.statusBar.SetBackgroundColor(ui.theme.Surface)
	ui.statusBar.SetTextColor(ui.theme.TextPrimary)

	ui.homeView.SetText(renderHome(ui.theme))
}

func (ui *UI) cycleTheme() {
	ui.setTheme(nextThemeName(ui.themeName))
}

func (ui *UI) setTheme(name string) {
	ui.theme, ui.themeName = themeByName(name)
	ui.applyTheme()
	ui.header.SetText(ui.buildHeader(ui.ctl.Snapshot()))
	ui.setStatusDirect("[%s]Theme: %s[-]", ui.theme.TagAccent, ui.themeName)
}

// statusForError maps an operation error to a status line.
func (ui *UI) statusForError(what string, err error) {
	tag := ui.theme.TagError
	if errors.Is(err, casefile.ErrGuard) {
		tag = ui.theme.TagWarning
	}
	ui.setStatus("[%s]%s: %s[-]", tag, what, esc(err.Error()))
}
