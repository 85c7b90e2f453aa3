package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/hatchly/internal/app"
	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/shared"
)

var (
	_ list.Item = menuItem{}
	_ list.Item = prawnItem{}
	_ list.Item = locationItem{}
	_ list.Item = recordItem{}
)

// menuItem is a dashboard entry. An empty view means log out.
type menuItem struct {
	label string
	desc  string
	view  app.View
}

func (i menuItem) FilterValue() string { return i.label }
func (i menuItem) Title() string       { return i.label }
func (i menuItem) Description() string { return i.desc }

func dashboardMenu() []list.Item {
	return []list.Item{
		menuItem{"Select prawn", "Pick a prawn to predict for", app.ViewSelectPrawn},
		menuItem{"Register prawn", "Add a new prawn", app.ViewRegisterPrawn},
		menuItem{"Locations", "Manage tanks and hatcheries", app.ViewLocationSetup},
		menuItem{"Prediction", "Capture or upload an egg image", app.ViewImageSelection},
		menuItem{"History", "Predictions for the selected prawn", app.ViewHistory},
		menuItem{"Change password", "Update your account password", app.ViewChangePassword},
		menuItem{"Log out", "End this session", ""},
	}
}

// prawnItem wraps [models.Prawn] to implement [list.Item].
type prawnItem struct {
	prawn models.Prawn
}

func (i prawnItem) FilterValue() string { return i.prawn.Name }
func (i prawnItem) Title() string       { return i.prawn.Name }
func (i prawnItem) Description() string {
	desc := i.prawn.LocationLabel()
	if i.prawn.CreatedAt != "" {
		desc = fmt.Sprintf("%s • added %s", desc, shared.FormatTimestamp(i.prawn.CreatedAt))
	}
	return desc
}

// locationItem wraps [models.Location] to implement [list.Item].
type locationItem struct {
	location models.Location
	prawns   int
}

func (i locationItem) FilterValue() string { return i.location.Name }
func (i locationItem) Title() string       { return i.location.Name }
func (i locationItem) Description() string {
	if i.prawns == 0 {
		return fmt.Sprintf("#%d", i.location.ID)
	}
	return fmt.Sprintf("#%d • %d prawns", i.location.ID, i.prawns)
}

// recordItem wraps [models.PredictionRecord] to implement [list.Item].
type recordItem struct {
	record models.PredictionRecord
}

func (i recordItem) FilterValue() string { return i.record.CreatedAt }
func (i recordItem) Title() string       { return shared.FormatTimestamp(i.record.CreatedAt) }
func (i recordItem) Description() string {
	desc := fmt.Sprintf("%d days until hatch • %.1f%% confidence", i.record.PredictedDays, i.record.Confidence)
	if i.record.CurrentDay != nil {
		desc = fmt.Sprintf("%s • day %d/%d", desc, *i.record.CurrentDay, models.IncubationCycleLength)
	}
	return desc
}
