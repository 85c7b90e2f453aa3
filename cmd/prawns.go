package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/hatchly/internal/app"
	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/shared"
)

func prawnRows(prawns []models.Prawn, selected *models.Prawn) [][]string {
	rows := make([][]string, len(prawns))
	for i, p := range prawns {
		marker := ""
		if selected != nil && selected.ID == p.ID {
			marker = "●"
		}
		rows[i] = []string{marker, strconv.FormatInt(p.ID, 10), p.Name, p.LocationLabel(), shared.FormatTimestamp(p.CreatedAt)}
	}
	return rows
}

// PrawnsList prints the user's prawns, optionally filtered by location.
func (r *Runner) PrawnsList(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.session(ctx); err != nil {
		return err
	}

	prawns, err := r.app.Prawns(ctx)
	if err != nil {
		return err
	}
	if loc := cmd.Int64("location"); loc > 0 {
		prawns = r.app.FilterPrawns(loc)
	}

	if cmd.Bool("json") {
		return r.writeJSON(prawns, cmd.Bool("pretty"))
	}
	if len(prawns) == 0 {
		return r.writePlain("No prawns registered yet. Add one with 'hatchly prawns add'.\n")
	}
	return r.writeTable([]string{"", "ID", "Name", "Location", "Added"}, prawnRows(prawns, r.app.Selected()))
}

// PrawnsAdd registers a prawn.
func (r *Runner) PrawnsAdd(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.session(ctx); err != nil {
		return err
	}

	p, err := r.app.RegisterPrawn(ctx, cmd.String("name"), cmd.Int64("location"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Registered %s (#%d) at %s\n", p.Name, p.ID, p.LocationLabel())
}

// PrawnsRename renames a prawn.
func (r *Runner) PrawnsRename(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.session(ctx); err != nil {
		return err
	}
	if err := r.app.RenamePrawn(ctx, cmd.Int64("id"), cmd.String("name")); err != nil {
		return err
	}
	return r.writePlain("✓ Prawn #%d renamed to %s\n", cmd.Int64("id"), cmd.String("name"))
}

// PrawnsTransfer moves a prawn to another location.
func (r *Runner) PrawnsTransfer(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.session(ctx); err != nil {
		return err
	}
	if err := r.app.TransferPrawn(ctx, cmd.Int64("id"), cmd.Int64("location")); err != nil {
		return err
	}
	return r.writePlain("✓ Prawn #%d moved to location #%d\n", cmd.Int64("id"), cmd.Int64("location"))
}

// PrawnsDelete deletes a prawn after confirming the account password.
func (r *Runner) PrawnsDelete(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.session(ctx); err != nil {
		return err
	}

	password, err := r.flagOrPrompt(cmd, "password", "Password")
	if err != nil {
		return err
	}
	if err := r.app.DeletePrawn(ctx, cmd.Int64("id"), password); err != nil {
		return err
	}
	return r.writePlain("✓ Prawn #%d deleted\n", cmd.Int64("id"))
}

// PrawnsSelect makes a prawn the target of predict and history commands.
func (r *Runner) PrawnsSelect(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.session(ctx); err != nil {
		return err
	}

	p, err := r.selectPrawn(ctx, cmd.Int64("id"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Selected %s (#%d, %s)\n", p.Name, p.ID, p.LocationLabel())
}

// LocationsList prints every location with the number of the user's prawns there.
func (r *Runner) LocationsList(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.session(ctx); err != nil {
		return err
	}

	locations, err := r.app.Locations(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(locations, cmd.Bool("pretty"))
	}
	if len(locations) == 0 {
		return r.writePlain("No locations yet. Add one with 'hatchly locations add'.\n")
	}

	prawns, err := r.app.Prawns(ctx)
	if err != nil {
		return err
	}
	counts := map[int64]int{}
	for _, p := range prawns {
		counts[p.LocationID]++
	}

	rows := make([][]string, len(locations))
	for i, l := range locations {
		rows[i] = []string{strconv.FormatInt(l.ID, 10), l.Name, strconv.Itoa(counts[l.ID])}
	}
	return r.writeTable([]string{"ID", "Name", "Prawns"}, rows)
}

// LocationsAdd adds a location.
func (r *Runner) LocationsAdd(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.session(ctx); err != nil {
		return err
	}

	l, err := r.app.AddLocation(ctx, cmd.String("name"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Added location %s (#%d)\n", l.Name, l.ID)
}

// LocationsRename renames a location.
func (r *Runner) LocationsRename(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.session(ctx); err != nil {
		return err
	}
	if err := r.app.RenameLocation(ctx, cmd.Int64("id"), cmd.String("name")); err != nil {
		return err
	}
	return r.writePlain("✓ Location #%d renamed to %s\n", cmd.Int64("id"), cmd.String("name"))
}

// LocationsDelete deletes a location. A location with prawns needs --reassign-to.
func (r *Runner) LocationsDelete(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.session(ctx); err != nil {
		return err
	}

	id := cmd.Int64("id")
	if to := cmd.Int64("reassign-to"); to > 0 {
		if err := r.app.ReassignAndDeleteLocation(ctx, id, to); err != nil {
			return err
		}
		return r.writePlain("✓ Prawns moved to location #%d and location #%d deleted\n", to, id)
	}

	err := r.app.DeleteLocation(ctx, id)
	var reassign *app.ReassignmentRequiredError
	if errors.As(err, &reassign) {
		r.writePlain("%s still has %d prawns:\n", reassign.Location.Name, len(reassign.Prawns))
		for _, p := range reassign.Prawns {
			r.writePlain("  • %s (#%d)\n", p.Name, p.ID)
		}
		r.writePlain("Run again with --reassign-to LOCATION_ID to move them first.\n")
		return fmt.Errorf("location #%d not deleted: %w", id, err)
	}
	if err != nil {
		return err
	}
	return r.writePlain("✓ Location #%d deleted\n", id)
}
