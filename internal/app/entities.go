package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/shared"
)

// ReassignmentRequiredError is returned when a location cannot be deleted because prawns still live there.
type ReassignmentRequiredError struct {
	Location models.Location
	Prawns   []models.Prawn
}

func (e *ReassignmentRequiredError) Error() string {
	return fmt.Sprintf("%v: location %q has %d prawns", shared.ErrReassignmentRequired, e.Location.Name, len(e.Prawns))
}

func (e *ReassignmentRequiredError) Unwrap() error {
	return shared.ErrReassignmentRequired
}

func filterPrawns(prawns []models.Prawn, locationID int64) []models.Prawn {
	filtered := make([]models.Prawn, 0, len(prawns))
	for _, p := range prawns {
		if locationID == 0 || p.LocationID == locationID {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// load fetches data for generation gen and applies it only if no other view was shown meanwhile.
func load[T any](ctx context.Context, a *App, gen uint64, title string, fetch func(context.Context) (T, error), apply func(T)) error {
	if !a.begin(gen) {
		return nil
	}
	v, err := fetch(ctx)
	if err != nil {
		a.commit(gen, nil)
		return a.report(title, err)
	}
	if !a.commit(gen, func() { apply(v) }) {
		a.logger.Debug("discarding stale result", "op", title)
	}
	return nil
}

func (a *App) prawns(ctx context.Context) ([]models.Prawn, error) {
	userID, err := a.userID()
	if err != nil {
		return nil, err
	}
	return a.backend.ListPrawns(ctx, userID)
}

func (a *App) loadPrawns(ctx context.Context, gen uint64) error {
	return load(ctx, a, gen, "Load prawns", a.prawns, func(p []models.Prawn) { a.data.prawns = p })
}

func (a *App) loadLocations(ctx context.Context, gen uint64) error {
	return load(ctx, a, gen, "Load locations", a.backend.ListLocations, func(l []models.Location) { a.data.locations = l })
}

func (a *App) loadDashboard(ctx context.Context, gen uint64) error {
	fetch := func(ctx context.Context) (*models.DashboardSummary, error) {
		userID, err := a.userID()
		if err != nil {
			return nil, err
		}
		return a.backend.DashboardSummary(ctx, userID)
	}
	return load(ctx, a, gen, "Load dashboard", fetch, func(d *models.DashboardSummary) { a.data.dashboard = d })
}

func (a *App) loadHistory(ctx context.Context, gen uint64) error {
	return load(ctx, a, gen, "Load history", a.records, func(r []models.PredictionRecord) { a.data.records = r })
}

func (a *App) records(ctx context.Context) ([]models.PredictionRecord, error) {
	a.mu.Lock()
	var userID, prawnID int64
	if a.session != nil {
		userID = a.session.UserID
	}
	if a.selected != nil {
		prawnID = a.selected.ID
	}
	a.mu.Unlock()

	switch {
	case userID == 0:
		return nil, shared.ErrNotAuthenticated
	case prawnID == 0:
		return nil, shared.ErrNoSelection
	}
	return a.backend.ListPredictionRecords(ctx, userID, prawnID)
}

// Prawns fetches the user's prawns and keeps them for filtering.
func (a *App) Prawns(ctx context.Context) ([]models.Prawn, error) {
	prawns, err := a.prawns(ctx)
	if err != nil {
		return nil, a.report("Load prawns", err)
	}
	a.mu.Lock()
	a.data.prawns = prawns
	a.mu.Unlock()
	return prawns, nil
}

// FilterPrawns narrows the loaded prawns to one location without refetching. Zero shows all.
func (a *App) FilterPrawns(locationID int64) []models.Prawn {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data.locationFilter = locationID
	return filterPrawns(a.data.prawns, locationID)
}

// Locations fetches every location.
func (a *App) Locations(ctx context.Context) ([]models.Location, error) {
	locations, err := a.backend.ListLocations(ctx)
	if err != nil {
		return nil, a.report("Load locations", err)
	}
	a.mu.Lock()
	a.data.locations = locations
	a.mu.Unlock()
	return locations, nil
}

// Dashboard fetches the aggregate summary for the dashboard view.
func (a *App) Dashboard(ctx context.Context) (*models.DashboardSummary, error) {
	if err := a.loadDashboard(ctx, a.currentGeneration()); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return clonePtr(a.data.dashboard), nil
}

// PredictionHistory lists the saved predictions for the selected prawn.
func (a *App) PredictionHistory(ctx context.Context) ([]models.PredictionRecord, error) {
	records, err := a.records(ctx)
	if err != nil {
		return nil, a.report("Load history", err)
	}
	a.mu.Lock()
	a.data.records = records
	a.mu.Unlock()
	return records, nil
}

// RegisterPrawn creates a prawn at a location and returns to the selection view.
func (a *App) RegisterPrawn(ctx context.Context, name string, locationID int64) (*models.Prawn, error) {
	name = strings.TrimSpace(name)
	v := shared.NewValidationError()
	if name == "" {
		v.Add("name", "Prawn name is required")
	}
	if locationID <= 0 {
		v.Add("location", "Please select a location")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	userID, err := a.userID()
	if err != nil {
		return nil, a.report("Register prawn", err)
	}
	p, err := a.backend.SavePrawn(ctx, userID, name, locationID)
	if err != nil {
		return nil, a.report("Register prawn", err)
	}

	a.logger.Info("prawn registered", "prawn_id", p.ID, "name", p.Name)
	a.notify(LevelSuccess, "Prawn registered", fmt.Sprintf("%s was added.", p.Name))
	return p, a.Show(ctx, ViewSelectPrawn)
}

// RenamePrawn changes a prawn's name.
func (a *App) RenamePrawn(ctx context.Context, prawnID int64, name string) error {
	name = strings.TrimSpace(name)
	if err := shared.ValidateName("name", name); err != nil {
		return err
	}
	if err := a.backend.RenamePrawn(ctx, prawnID, name); err != nil {
		return a.report("Rename prawn", err)
	}

	a.updateSelected(prawnID, func(p *models.Prawn) { p.Name = name })
	a.notify(LevelSuccess, "Prawn renamed", fmt.Sprintf("Renamed to %s.", name))
	return a.reloadPrawns(ctx)
}

// TransferPrawn moves a prawn to another location.
func (a *App) TransferPrawn(ctx context.Context, prawnID, locationID int64) error {
	if locationID <= 0 {
		v := shared.NewValidationError()
		v.Add("location", "Please select a location")
		return v
	}
	if err := a.backend.TransferPrawn(ctx, prawnID, locationID); err != nil {
		return a.report("Transfer prawn", err)
	}

	name := a.locationName(locationID)
	a.updateSelected(prawnID, func(p *models.Prawn) {
		p.LocationID = locationID
		p.LocationName = name
	})
	a.notify(LevelSuccess, "Prawn transferred", fmt.Sprintf("Moved to %s.", name))
	return a.reloadPrawns(ctx)
}

// DeletePrawn removes a prawn after the user re-enters their password.
func (a *App) DeletePrawn(ctx context.Context, prawnID int64, password string) error {
	if password == "" {
		v := shared.NewValidationError()
		v.Add("password", "Password is required to delete a prawn")
		return v
	}
	userID, err := a.userID()
	if err != nil {
		return a.report("Delete prawn", err)
	}
	if err := a.backend.DeletePrawn(ctx, userID, prawnID, password); err != nil {
		return a.report("Delete prawn", err)
	}

	a.mu.Lock()
	wasSelected := a.selected != nil && a.selected.ID == prawnID
	if wasSelected {
		a.selected = nil
		a.image = nil
		a.prediction = nil
	}
	a.mu.Unlock()
	if wasSelected {
		a.forget(append(imageKeys(), models.KeySelectedPrawn)...)
	}

	a.logger.Info("prawn deleted", "prawn_id", prawnID)
	a.notify(LevelSuccess, "Prawn deleted", "The prawn and its history were removed.")
	return a.reloadPrawns(ctx)
}

func (a *App) reloadPrawns(ctx context.Context) error {
	return a.loadPrawns(ctx, a.currentGeneration())
}

func (a *App) reloadLocations(ctx context.Context) error {
	return a.loadLocations(ctx, a.currentGeneration())
}

// updateSelected applies fn to the selected prawn if it is prawnID and persists the result.
func (a *App) updateSelected(prawnID int64, fn func(*models.Prawn)) {
	a.mu.Lock()
	if a.selected == nil || a.selected.ID != prawnID {
		a.mu.Unlock()
		return
	}
	fn(a.selected)
	p := *a.selected
	a.mu.Unlock()

	a.persistJSON(models.KeySelectedPrawn, p)
}

func (a *App) locationName(id int64) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, l := range a.data.locations {
		if l.ID == id {
			return l.Name
		}
	}
	return ""
}

// AddLocation creates a location.
func (a *App) AddLocation(ctx context.Context, name string) (*models.Location, error) {
	name = strings.TrimSpace(name)
	if err := shared.ValidateName("name", name); err != nil {
		return nil, err
	}
	l, err := a.backend.SaveLocation(ctx, name)
	if err != nil {
		return nil, a.report("Add location", err)
	}

	a.notify(LevelSuccess, "Location added", fmt.Sprintf("%s was added.", l.Name))
	return l, a.reloadLocations(ctx)
}

// RenameLocation changes a location's name.
func (a *App) RenameLocation(ctx context.Context, locationID int64, name string) error {
	name = strings.TrimSpace(name)
	if err := shared.ValidateName("name", name); err != nil {
		return err
	}
	if err := a.backend.RenameLocation(ctx, locationID, name); err != nil {
		return a.report("Rename location", err)
	}

	a.mu.Lock()
	if a.selected != nil && a.selected.LocationID == locationID {
		a.selected.LocationName = name
	}
	a.mu.Unlock()

	a.notify(LevelSuccess, "Location renamed", fmt.Sprintf("Renamed to %s.", name))
	return a.reloadLocations(ctx)
}

// prawnsAt returns the location and the user's prawns assigned to it.
func (a *App) prawnsAt(ctx context.Context, locationID int64) (models.Location, []models.Prawn, error) {
	locations, err := a.backend.ListLocations(ctx)
	if err != nil {
		return models.Location{}, nil, err
	}
	a.mu.Lock()
	a.data.locations = locations
	a.mu.Unlock()

	loc := models.Location{ID: locationID}
	found := false
	for _, l := range locations {
		if l.ID == locationID {
			loc, found = l, true
			break
		}
	}
	if !found {
		return loc, nil, fmt.Errorf("%w: location %d not found", shared.ErrInvalidArgument, locationID)
	}

	prawns, err := a.prawns(ctx)
	if err != nil {
		return loc, nil, err
	}
	return loc, filterPrawns(prawns, locationID), nil
}

// DeleteLocation removes an empty location.
//
// When prawns are still assigned it returns a [*ReassignmentRequiredError] listing them and
// deletes nothing; see [App.ReassignAndDeleteLocation].
func (a *App) DeleteLocation(ctx context.Context, locationID int64) error {
	loc, assigned, err := a.prawnsAt(ctx, locationID)
	if err != nil {
		return a.report("Delete location", err)
	}
	if len(assigned) > 0 {
		a.notify(LevelWarning, "Location in use",
			fmt.Sprintf("%d prawns at %s must be moved to another location first.", len(assigned), loc.Name))
		return &ReassignmentRequiredError{Location: loc, Prawns: assigned}
	}

	if err := a.backend.DeleteLocation(ctx, locationID); err != nil {
		return a.report("Delete location", err)
	}
	a.notify(LevelSuccess, "Location deleted", fmt.Sprintf("%s was removed.", loc.Name))
	return a.reloadLocations(ctx)
}

// ReassignAndDeleteLocation moves every prawn at from to to, then deletes from.
//
// A failed transfer stops the operation with from intact.
func (a *App) ReassignAndDeleteLocation(ctx context.Context, from, to int64) error {
	if to <= 0 || to == from {
		v := shared.NewValidationError()
		v.Add("location", "Choose a different location to move prawns to")
		return v
	}

	loc, assigned, err := a.prawnsAt(ctx, from)
	if err != nil {
		return a.report("Delete location", err)
	}
	target := a.locationName(to)

	for _, p := range assigned {
		if err := a.backend.TransferPrawn(ctx, p.ID, to); err != nil {
			return a.report("Delete location", fmt.Errorf("moving %s: %w", p.Name, err))
		}
		a.updateSelected(p.ID, func(sel *models.Prawn) {
			sel.LocationID = to
			sel.LocationName = target
		})
	}
	a.logger.Info("prawns reassigned", "from", from, "to", to, "count", len(assigned))

	if err := a.backend.DeleteLocation(ctx, from); err != nil {
		return a.report("Delete location", err)
	}

	a.notify(LevelSuccess, "Location deleted",
		fmt.Sprintf("%s was removed and %d prawns were moved.", loc.Name, len(assigned)))
	if err := a.reloadLocations(ctx); err != nil {
		return err
	}
	return a.reloadPrawns(ctx)
}

// DeleteRecord removes a saved prediction from the selected prawn's history.
func (a *App) DeleteRecord(ctx context.Context, recordID int64) error {
	if err := a.backend.DeletePredictionRecord(ctx, recordID); err != nil {
		return a.report("Delete prediction", err)
	}

	a.mu.Lock()
	kept := a.data.records[:0:0]
	for _, r := range a.data.records {
		if r.ID != recordID {
			kept = append(kept, r)
		}
	}
	a.data.records = kept
	a.mu.Unlock()

	a.notify(LevelSuccess, "Prediction deleted", "The prediction was removed from history.")
	return nil
}
