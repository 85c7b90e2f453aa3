package ui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/hatchly/internal/app"
	"github.com/desertthunder/hatchly/internal/capture"
	"github.com/desertthunder/hatchly/internal/shared"
	"github.com/desertthunder/hatchly/internal/tasks"
)

// Model represents the TUI application state.
//
// Everything the screens show comes from the last [app.Snapshot]; the Model itself only owns
// widgets (lists, forms) and the transient notice line.
type Model struct {
	ctx      context.Context
	app      *app.App
	notices  *Notifier
	exporter *tasks.HistoryExporter
	captures chan capture.Status

	snap    app.Snapshot
	view    app.View
	width   int
	height  int
	pending int

	menu      list.Model
	prawnList list.Model
	locList   list.Model
	recList   list.Model
	form      *form // the view's own form: sign in, register, change password
	prompt    *form // a one-off question asked over the current view
	signup    bool
	fieldErrs *shared.ValidationError
	notice    *app.Notice

	ExportFormat string
	ExportDir    string
	progressChan chan tasks.ProgressUpdate
	exportDone   chan Msg
	progress     tasks.ProgressUpdate
	exporting    bool
	export       *tasks.ExportResult
	exportErr    error

	help help.Model
	keys keyMap
}

// NewModel creates a TUI over a. notices should be the [app.Notifier] a was created with; exporter
// may be nil, which disables history export.
func NewModel(ctx context.Context, a *app.App, notices *Notifier, exporter *tasks.HistoryExporter) *Model {
	m := &Model{
		ctx:       ctx,
		app:       a,
		notices:   notices,
		exporter:  exporter,
		captures:  make(chan capture.Status, 16),
		menu:      newList("Menu", dashboardMenu()),
		prawnList: newList("Prawns", nil),
		locList:   newList("Locations", nil),
		recList:   newList("Predictions", nil),
		help:      help.New(),
		keys:      newKeyMap(),
	}

	a.Camera().Observe(func(s capture.Status) {
		select {
		case m.captures <- s:
		default:
		}
	})

	m.refresh()
	return m
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	return l
}

// Init restores the persisted session and starts listening for notices and camera transitions.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.do(m.app.Restore), m.waitForNotice(), m.waitForCapture())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgActionDone:
			if m.pending > 0 {
				m.pending--
			}
			err, _ := msg.data.(error)
			m.refresh()
			return m, m.afterAction(err)

		case MsgNotice:
			n := msg.data.(app.Notice)
			m.notice = &n
			return m, m.waitForNotice()

		case MsgCaptureStatus:
			m.refresh()
			return m, m.waitForCapture()

		case MsgProgressUpdate:
			m.progress = msg.data.(tasks.ProgressUpdate)
			return m, m.waitForProgress()

		case MsgExportComplete:
			done := msg.data.(struct {
				result *tasks.ExportResult
				err    error
			})
			m.exporting = false
			m.export = done.result
			m.exportErr = done.err
			m.progressChan = nil
			return m, nil
		}
	}

	return m.updateLists(msg)
}

// refresh re-reads the App and rebuilds the widgets of a newly entered view.
func (m *Model) refresh() {
	m.snap = m.app.Snapshot()
	if m.snap.View != m.view {
		m.view = m.snap.View
		m.prompt = nil
		m.fieldErrs = nil
		m.enter()
	}
	m.setItems()
}

func (m *Model) enter() {
	m.form = nil
	switch m.view {
	case app.ViewAuth:
		m.form = m.authForm()
	case app.ViewRegisterPrawn:
		m.form = newForm("", func(v []string) tea.Cmd {
			return m.do(func(ctx context.Context) error {
				_, err := m.app.RegisterPrawn(ctx, v[0], parseID(v[1]))
				return err
			})
		}, "Name", "Location ID")
		if len(m.snap.Locations) > 0 {
			m.form.with(1, strconv.FormatInt(m.snap.Locations[0].ID, 10))
		}
	case app.ViewChangePassword:
		m.form = newForm("", func(v []string) tea.Cmd {
			return m.do(func(ctx context.Context) error {
				return m.app.ChangePassword(ctx, v[0], v[1], v[2])
			})
		}, "Current password", "New password", "Confirm new password").masked(0).masked(1).masked(2)
	case app.ViewDashboard:
		m.menu.Select(0)
	}
}

func (m *Model) authForm() *form {
	if m.signup {
		return newForm("Create an account", func(v []string) tea.Cmd {
			return m.do(func(ctx context.Context) error { return m.app.Signup(ctx, v[0], v[1], v[2]) })
		}, "Name", "Email", "Password").masked(2)
	}
	return newForm("Sign in", func(v []string) tea.Cmd {
		return m.do(func(ctx context.Context) error { return m.app.Login(ctx, v[0], v[1]) })
	}, "Email", "Password").masked(1)
}

func (m *Model) setItems() {
	prawns := make([]list.Item, len(m.snap.Prawns))
	for i, p := range m.snap.Prawns {
		prawns[i] = prawnItem{prawn: p}
	}
	m.prawnList.SetItems(prawns)
	m.prawnList.Title = "Prawns"
	if name := m.locationName(m.snap.LocationFilter); name != "" {
		m.prawnList.Title = fmt.Sprintf("Prawns in %s", name)
	}

	counts := map[int64]int{}
	for _, p := range m.snap.AllPrawns {
		counts[p.LocationID]++
	}
	locations := make([]list.Item, len(m.snap.Locations))
	for i, l := range m.snap.Locations {
		locations[i] = locationItem{location: l, prawns: counts[l.ID]}
	}
	m.locList.SetItems(locations)

	records := make([]list.Item, len(m.snap.Records))
	for i, r := range m.snap.Records {
		records[i] = recordItem{record: r}
	}
	m.recList.SetItems(records)
	if m.snap.Selected != nil {
		m.recList.Title = fmt.Sprintf("Predictions for %s", m.snap.Selected.Name)
	}
}

func (m *Model) locationName(id int64) string {
	for _, l := range m.snap.Locations {
		if l.ID == id {
			return l.Name
		}
	}
	return ""
}

// afterAction handles the follow-ups an operation can ask of the TUI.
func (m *Model) afterAction(err error) tea.Cmd {
	var (
		verr     *shared.ValidationError
		reassign *app.ReassignmentRequiredError
	)
	switch {
	case errors.As(err, &verr):
		m.fieldErrs = verr
	case errors.As(err, &reassign):
		m.askReassign(reassign)
	case err == nil:
		m.fieldErrs = nil
	}

	if m.view == app.ViewImageSelection && m.app.TakePickerRequest() {
		m.askUpload()
	}
	return nil
}

func (m *Model) resize() {
	w, h := m.width-4, m.height-12
	if h < 5 {
		h = 5
	}
	m.menu.SetSize(w, h)
	m.prawnList.SetSize(w, h)
	m.locList.SetSize(w, h)
	m.recList.SetSize(w, h)
	m.help.Width = m.width
}

// do runs fn against the App as a command and reports back with [MsgActionDone].
func (m *Model) do(fn func(context.Context) error) tea.Cmd {
	m.pending++
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg(fn(ctx))
	}
}

func (m *Model) show(v app.View) tea.Cmd {
	return m.do(func(ctx context.Context) error { return m.app.Show(ctx, v) })
}

func (m *Model) waitForNotice() tea.Cmd {
	if m.notices == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case n := <-m.notices.ch:
			return noticeMsg(n)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) waitForCapture() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-m.captures:
			return captureStatusMsg(s)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) startExport() tea.Cmd {
	if m.exporter == nil || m.exporting || m.snap.Session == nil {
		return nil
	}

	m.exporting = true
	m.export = nil
	m.exportErr = nil
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.exportDone = make(chan Msg, 1)

	prog, done := m.progressChan, m.exportDone
	userID := m.snap.Session.UserID
	opts := tasks.ExportOpts{Format: m.ExportFormat, OutputDir: m.ExportDir}

	go func() {
		result, err := m.exporter.Export(m.ctx, prog, userID, opts)
		close(prog)
		done <- exportCompleteMsg(result, err)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	prog, done := m.progressChan, m.exportDone
	if prog == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-prog
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case app.ViewDashboard:
		m.menu, cmd = m.menu.Update(msg)
	case app.ViewSelectPrawn:
		m.prawnList, cmd = m.prawnList.Update(msg)
	case app.ViewLocationSetup:
		m.locList, cmd = m.locList.Update(msg)
	case app.ViewHistory:
		m.recList, cmd = m.recList.Update(msg)
	}
	return m, cmd
}

// parseID reads a numeric ID, returning 0 (never a valid ID) for anything else so the App's
// validation reports it against the field.
func parseID(s string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "#")), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())

	switch m.view {
	case app.ViewAuth, app.ViewRegisterPrawn, app.ViewChangePassword:
		b.WriteString(m.renderForm())
	case app.ViewDashboard:
		b.WriteString(m.renderDashboard())
	case app.ViewSelectPrawn:
		b.WriteString(m.prawnList.View())
	case app.ViewLocationSetup:
		b.WriteString(m.locList.View())
	case app.ViewImageSelection:
		b.WriteString(m.renderImageSelection())
	case app.ViewCapture:
		b.WriteString(m.renderCapture())
	case app.ViewPredict:
		b.WriteString(m.renderPredict())
	case app.ViewHistory:
		b.WriteString(m.renderHistory())
	}

	if m.prompt != nil {
		b.WriteString("\n\n")
		b.WriteString(m.prompt.View())
	}
	if errs := m.renderFieldErrors(); errs != "" {
		b.WriteString("\n")
		b.WriteString(errs)
	}

	b.WriteString("\n\n")
	if m.notice != nil {
		line := m.notice.Title
		if m.notice.Message != "" {
			line = fmt.Sprintf("%s: %s", line, m.notice.Message)
		}
		b.WriteString(styles.notice(m.notice.Level).Render(line))
		b.WriteString("\n")
	}
	if m.pending > 0 || m.snap.Loading {
		b.WriteString(styles.help.Render("Working..."))
		b.WriteString("\n")
	}
	b.WriteString(m.help.ShortHelpView(m.helpKeys()))
	return b.String()
}

func (m *Model) renderHeader() string {
	title := styles.title.Render(fmt.Sprintf("Hatchly • %s", m.view.Title()))
	if m.snap.Session == nil {
		return title + "\n"
	}

	parts := []string{m.snap.Session.Email}
	if m.snap.Selected != nil {
		parts = append(parts, fmt.Sprintf("prawn: %s (%s)", m.snap.Selected.Name, m.snap.Selected.LocationLabel()))
	}

	crumbs := make([]string, len(m.snap.History))
	for i, v := range m.snap.History {
		crumbs[i] = v.Title()
	}

	return fmt.Sprintf("%s\n%s\n%s\n\n", title,
		styles.label.Render(strings.Join(parts, " • ")),
		styles.help.Render(strings.Join(crumbs, " › ")))
}

func (m *Model) renderFieldErrors() string {
	if m.fieldErrs == nil || len(m.fieldErrs.Fields) == 0 {
		return ""
	}
	names := make([]string, 0, len(m.fieldErrs.Fields))
	for name := range m.fieldErrs.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = styles.err.Render(fmt.Sprintf("✗ %s: %s", strings.ReplaceAll(name, "_", " "), m.fieldErrs.Fields[name]))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) helpKeys() []key.Binding {
	k := m.keys
	quit := key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit"))
	if m.prompt != nil {
		return []key.Binding{k.enter, k.next, k.back}
	}

	switch m.view {
	case app.ViewAuth:
		return []key.Binding{k.next, k.enter, k.signup, quit}
	case app.ViewRegisterPrawn, app.ViewChangePassword:
		return []key.Binding{k.next, k.enter, k.back, quit}
	case app.ViewDashboard:
		return []key.Binding{k.enter, k.history, k.quit}
	case app.ViewSelectPrawn:
		return []key.Binding{k.enter, k.add, k.rename, k.move, k.remove, k.filter, k.back}
	case app.ViewLocationSetup:
		return []key.Binding{k.add, k.rename, k.remove, k.back}
	case app.ViewImageSelection:
		return []key.Binding{k.upload, k.local, k.remote, k.back}
	case app.ViewCapture:
		if m.snap.Capture.State == capture.Captured {
			use := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "use photo"))
			return []key.Binding{use, k.retry, k.back}
		}
		return []key.Binding{k.capture, k.local, k.remote, k.back}
	case app.ViewPredict:
		bindings := []key.Binding{}
		if m.snap.CanSubmit {
			bindings = append(bindings, key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "predict")))
		}
		if m.snap.CanRetry {
			bindings = append(bindings, k.retry, k.history)
		}
		if m.snap.CanTryAgain {
			bindings = append(bindings, k.again)
		}
		return append(bindings, k.back)
	case app.ViewHistory:
		return []key.Binding{k.remove, k.export, k.back}
	default:
		return k.ShortHelp()
	}
}
