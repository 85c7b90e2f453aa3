package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/hatchly/internal/app"
	"github.com/desertthunder/hatchly/internal/capture"
	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/shared"
)

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.prompt != nil {
		if key.Matches(msg, m.keys.back) {
			m.prompt = nil
			return m, nil
		}
		return m, m.prompt.Update(msg)
	}

	if key.Matches(msg, m.keys.back) {
		if m.view == app.ViewAuth {
			return m, nil
		}
		return m, m.do(m.app.Back)
	}

	if m.form != nil {
		if m.view == app.ViewAuth && key.Matches(msg, m.keys.signup) {
			m.signup = !m.signup
			m.fieldErrs = nil
			m.form = m.authForm()
			return m, nil
		}
		return m, m.form.Update(msg)
	}

	if key.Matches(msg, m.keys.quit) {
		return m, tea.Quit
	}

	switch m.view {
	case app.ViewDashboard:
		return m.handleDashboardKeys(msg)
	case app.ViewSelectPrawn:
		return m.handlePrawnKeys(msg)
	case app.ViewLocationSetup:
		return m.handleLocationKeys(msg)
	case app.ViewImageSelection:
		return m.handleImageSelectionKeys(msg)
	case app.ViewCapture:
		return m.handleCaptureKeys(msg)
	case app.ViewPredict:
		return m.handlePredictKeys(msg)
	case app.ViewHistory:
		return m.handleHistoryKeys(msg)
	}
	return m, nil
}

func (m *Model) handleDashboardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.enter):
		item, ok := m.menu.SelectedItem().(menuItem)
		if !ok {
			return m, nil
		}
		if item.view == "" {
			return m, m.do(m.app.Logout)
		}
		return m, m.show(item.view)
	case key.Matches(msg, m.keys.history):
		return m, m.show(app.ViewHistory)
	}

	var cmd tea.Cmd
	m.menu, cmd = m.menu.Update(msg)
	return m, cmd
}

func (m *Model) selectedPrawn() (models.Prawn, bool) {
	item, ok := m.prawnList.SelectedItem().(prawnItem)
	return item.prawn, ok
}

func (m *Model) handlePrawnKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.add):
		return m, m.show(app.ViewRegisterPrawn)

	case key.Matches(msg, m.keys.filter):
		m.app.FilterPrawns(m.nextFilter())
		m.refresh()
		m.prawnList.Select(0)
		return m, nil

	case key.Matches(msg, m.keys.enter):
		if p, ok := m.selectedPrawn(); ok {
			return m, m.do(func(ctx context.Context) error { return m.app.SelectPrawn(ctx, p) })
		}
		return m, nil

	case key.Matches(msg, m.keys.rename):
		if p, ok := m.selectedPrawn(); ok {
			m.prompt = newForm(fmt.Sprintf("Rename %s", p.Name), func(v []string) tea.Cmd {
				m.prompt = nil
				return m.do(func(ctx context.Context) error { return m.app.RenamePrawn(ctx, p.ID, v[0]) })
			}, "New name").with(0, p.Name)
		}
		return m, nil

	case key.Matches(msg, m.keys.move):
		if p, ok := m.selectedPrawn(); ok {
			m.prompt = newForm(fmt.Sprintf("Transfer %s from %s (%s)", p.Name, p.LocationLabel(), m.locationChoices()), func(v []string) tea.Cmd {
				m.prompt = nil
				return m.do(func(ctx context.Context) error { return m.app.TransferPrawn(ctx, p.ID, parseID(v[0])) })
			}, "Location ID")
		}
		return m, nil

	case key.Matches(msg, m.keys.remove):
		if p, ok := m.selectedPrawn(); ok {
			m.prompt = newForm(fmt.Sprintf("Delete %s and its predictions? Enter your password to confirm", p.Name), func(v []string) tea.Cmd {
				m.prompt = nil
				return m.do(func(ctx context.Context) error { return m.app.DeletePrawn(ctx, p.ID, v[0]) })
			}, "Password").masked(0)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.prawnList, cmd = m.prawnList.Update(msg)
	return m, cmd
}

// nextFilter cycles the location filter: all, then each location in order.
func (m *Model) nextFilter() int64 {
	locations := m.snap.Locations
	if m.snap.LocationFilter == 0 {
		if len(locations) == 0 {
			return 0
		}
		return locations[0].ID
	}
	for i, l := range locations {
		if l.ID == m.snap.LocationFilter && i+1 < len(locations) {
			return locations[i+1].ID
		}
	}
	return 0
}

func (m *Model) locationChoices() string {
	choices := make([]string, len(m.snap.Locations))
	for i, l := range m.snap.Locations {
		choices[i] = fmt.Sprintf("#%d %s", l.ID, l.Name)
	}
	return strings.Join(choices, ", ")
}

func (m *Model) handleLocationKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	item, selected := m.locList.SelectedItem().(locationItem)

	switch {
	case key.Matches(msg, m.keys.add):
		m.prompt = newForm("Add location", func(v []string) tea.Cmd {
			m.prompt = nil
			return m.do(func(ctx context.Context) error {
				_, err := m.app.AddLocation(ctx, v[0])
				return err
			})
		}, "Name")
		return m, nil

	case key.Matches(msg, m.keys.rename):
		if selected {
			l := item.location
			m.prompt = newForm(fmt.Sprintf("Rename %s", l.Name), func(v []string) tea.Cmd {
				m.prompt = nil
				return m.do(func(ctx context.Context) error { return m.app.RenameLocation(ctx, l.ID, v[0]) })
			}, "New name").with(0, l.Name)
		}
		return m, nil

	case key.Matches(msg, m.keys.remove):
		if selected {
			id := item.location.ID
			return m, m.do(func(ctx context.Context) error { return m.app.DeleteLocation(ctx, id) })
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.locList, cmd = m.locList.Update(msg)
	return m, cmd
}

// askReassign follows a refused location delete with the question of where its prawns go.
func (m *Model) askReassign(e *app.ReassignmentRequiredError) {
	from := e.Location
	others := make([]string, 0, len(m.snap.Locations))
	for _, l := range m.snap.Locations {
		if l.ID != from.ID {
			others = append(others, fmt.Sprintf("#%d %s", l.ID, l.Name))
		}
	}

	title := fmt.Sprintf("%s has %d prawns. Move them to (%s) and delete %s", from.Name, len(e.Prawns), strings.Join(others, ", "), from.Name)
	m.prompt = newForm(title, func(v []string) tea.Cmd {
		m.prompt = nil
		return m.do(func(ctx context.Context) error {
			return m.app.ReassignAndDeleteLocation(ctx, from.ID, parseID(v[0]))
		})
	}, "Location ID")
}

func (m *Model) askUpload() {
	m.prompt = newForm("Upload an egg image (png, jpg or gif)", func(v []string) tea.Cmd {
		m.prompt = nil
		return m.do(func(ctx context.Context) error { return m.app.Upload(ctx, v[0]) })
	}, "Path")
}

// startCamera opens the capture view on the chosen camera.
func (m *Model) startCamera(remote bool) tea.Cmd {
	return m.do(func(ctx context.Context) error {
		if m.app.CurrentView() != app.ViewCapture {
			if err := m.app.Show(ctx, app.ViewCapture); err != nil {
				return err
			}
			if m.app.CurrentView() != app.ViewCapture {
				return nil
			}
		}
		if remote {
			return m.app.StartRemoteCamera(ctx)
		}
		return m.app.StartLocalCamera(ctx)
	})
}

func (m *Model) handleImageSelectionKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.upload):
		m.askUpload()
	case key.Matches(msg, m.keys.local):
		return m, m.startCamera(false)
	case key.Matches(msg, m.keys.remote):
		return m, m.startCamera(true)
	}
	return m, nil
}

func (m *Model) handleCaptureKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	state := m.snap.Capture.State
	switch {
	case state == capture.Captured && key.Matches(msg, m.keys.enter):
		return m, m.do(m.app.CaptureImage)
	case state == capture.Captured && key.Matches(msg, m.keys.retry):
		return m, m.do(m.app.RetryCapture)
	case state.Live() && key.Matches(msg, m.keys.capture):
		return m, m.do(m.app.CaptureImage)
	case state != capture.Loading && key.Matches(msg, m.keys.local):
		return m, m.startCamera(false)
	case state != capture.Loading && key.Matches(msg, m.keys.remote):
		return m, m.startCamera(true)
	}
	return m, nil
}

func (m *Model) handlePredictKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case m.snap.CanSubmit && key.Matches(msg, m.keys.enter):
		return m, m.do(func(ctx context.Context) error {
			_, err := m.app.Submit(ctx)
			return err
		})
	case m.snap.CanRetry && key.Matches(msg, m.keys.retry):
		return m, m.do(m.app.Retry)
	case m.snap.CanRetry && key.Matches(msg, m.keys.history):
		return m, m.show(app.ViewHistory)
	case m.snap.CanTryAgain && key.Matches(msg, m.keys.again):
		return m, m.do(m.app.TryAgain)
	}
	return m, nil
}

func (m *Model) handleHistoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.remove):
		if item, ok := m.recList.SelectedItem().(recordItem); ok {
			id := item.record.ID
			return m, m.do(func(ctx context.Context) error { return m.app.DeleteRecord(ctx, id) })
		}
		return m, nil
	case key.Matches(msg, m.keys.export):
		return m, m.startExport()
	}

	var cmd tea.Cmd
	m.recList, cmd = m.recList.Update(msg)
	return m, cmd
}

func (m *Model) renderForm() string {
	if m.form == nil {
		return ""
	}
	s := m.form.View()
	if m.view == app.ViewRegisterPrawn && len(m.snap.Locations) > 0 {
		s += styles.help.Render("Locations: " + m.locationChoices())
	}
	return s
}

func (m *Model) renderDashboard() string {
	var b strings.Builder
	if d := m.snap.Dashboard; d != nil {
		fmt.Fprintf(&b, "%s  %s  %s\n",
			styles.active.Render(fmt.Sprintf("%d prawns", d.TotalPrawns)),
			styles.active.Render(fmt.Sprintf("%d predictions", d.TotalPredictions)),
			styles.ok.Render(fmt.Sprintf("%d hatching soon", d.UpcomingCount)))

		for i, u := range d.UpcomingHatches {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "  • %s (%s): %d days\n", u.PrawnName, u.LocationName, u.DaysUntilHatch)
		}
		b.WriteString("\n")
	}
	b.WriteString(m.menu.View())
	return b.String()
}

func (m *Model) renderImageSelection() string {
	lines := []string{
		"How would you like to provide the egg image?",
		"",
		"  u  upload an image file",
		"  l  use the camera on this machine",
	}
	if m.app.Camera().HasRemote() {
		lines = append(lines, "  m  use the networked camera")
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderCapture() string {
	st := m.snap.Capture
	var line string
	switch st.State {
	case capture.Placeholder:
		line = "Camera off. Press l for the local camera or m for the networked camera."
	case capture.Loading:
		line = "Starting camera..."
	case capture.LiveLocal:
		line = styles.ok.Render("● Live (local camera)") + "  press space to capture"
	case capture.LiveRemote:
		line = styles.ok.Render("● Live (networked camera)") + "  press space to capture"
		if st.StreamURL != "" {
			line += "\n" + styles.help.Render(st.StreamURL)
		}
	case capture.Captured:
		line = "Photo taken. Press enter to use it or r to retake."
		if st.Image != nil {
			line += "\n" + styles.help.Render(describeImage(st.Image))
		}
	}
	if st.Err != nil {
		line += "\n" + styles.warn.Render(st.Err.Error())
	}
	return line
}

func describeImage(img *models.CapturedImage) string {
	return fmt.Sprintf("%s image %s, %s, captured %s", img.Source, shared.Truncate(img.ID, 8),
		imageSize(img.Data), img.CapturedAt.Format("15:04:05"))
}

func imageSize(data string) string {
	n := len(data)
	if i := strings.IndexByte(data, ','); i >= 0 {
		n = (len(data) - i - 1) * 3 / 4
	}
	if n >= 1<<20 {
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	}
	return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
}

func (m *Model) renderPredict() string {
	var b strings.Builder
	if m.snap.Image == nil {
		return "No image selected."
	}
	b.WriteString(describeImage(m.snap.Image))
	b.WriteString("\n\n")

	switch {
	case m.snap.Submitting:
		b.WriteString("Analyzing image...")
	case m.snap.Prediction != nil:
		p := m.snap.Prediction
		b.WriteString(styles.ok.Render(p.Summary()))
		fmt.Fprintf(&b, "\nExpected hatch date: %s", shared.FormatDate(p.HatchDate(time.Now())))
	case m.snap.CanTryAgain:
		b.WriteString(styles.warn.Render("The prediction failed. Press t to try another image."))
	default:
		b.WriteString("Press enter to predict the hatch date.")
	}
	return b.String()
}

func (m *Model) renderHistory() string {
	var b strings.Builder
	if len(m.snap.Records) == 0 && !m.snap.Loading {
		b.WriteString("No predictions yet.\n")
	} else {
		b.WriteString(m.recList.View())
	}

	switch {
	case m.exporting:
		fmt.Fprintf(&b, "\n%s", m.progress.Message)
	case m.exportErr != nil:
		fmt.Fprintf(&b, "\n%s", styles.err.Render(fmt.Sprintf("Export failed: %v", m.exportErr)))
	case m.export != nil:
		fmt.Fprintf(&b, "\n%s", styles.ok.Render(fmt.Sprintf("✓ Exported %d prawns (%d predictions) to %s",
			m.export.SuccessfulExports, m.export.TotalRecords, m.export.OutputDirectory)))
		if m.export.FailedExports > 0 {
			fmt.Fprintf(&b, "\n%s", styles.warn.Render(fmt.Sprintf("%d prawns failed, see %s", m.export.FailedExports, m.export.ManifestPath)))
		}
	}
	return b.String()
}
