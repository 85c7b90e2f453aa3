package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/hatchly/internal/app"
	"github.com/desertthunder/hatchly/internal/shared"
)

// Predict uploads or captures an egg image for the selected prawn and prints the predicted hatch date.
func (r *Runner) Predict(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.session(ctx); err != nil {
		return err
	}

	prawn, err := r.selectPrawn(ctx, cmd.Int64("prawn"))
	if err != nil {
		return err
	}

	file, camera := cmd.String("file"), strings.ToLower(cmd.String("camera"))
	switch {
	case file != "" && camera != "":
		return fmt.Errorf("%w: use either --file or --camera", shared.ErrInvalidArgument)
	case file != "":
		if err := r.app.Upload(ctx, file); err != nil {
			return err
		}
	case camera == "local" || camera == "remote":
		if err := r.captureImage(ctx, camera == "remote"); err != nil {
			return err
		}
	case camera != "":
		return fmt.Errorf("%w: camera must be local or remote, got %q", shared.ErrInvalidArgument, camera)
	default:
		return fmt.Errorf("%w: --file or --camera", shared.ErrMissingArgument)
	}

	result, err := r.app.Submit(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"prawn":      prawn,
			"prediction": result,
			"hatch_date": shared.FormatDate(result.HatchDate(time.Now())),
		}, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Prediction Result")
	r.writePlain("Prawn: %s (#%d)\n", prawn.Name, prawn.ID)
	r.writePlain("Result: %s\n", result.Summary())
	r.writePlain("Expected hatch date: %s\n", shared.FormatDate(result.HatchDate(time.Now())))
	return nil
}

// captureImage opens a camera, takes a still and confirms it in one go.
func (r *Runner) captureImage(ctx context.Context, remote bool) error {
	if err := r.app.Show(ctx, app.ViewCapture); err != nil {
		return err
	}

	start := r.app.StartLocalCamera
	if remote {
		start = r.app.StartRemoteCamera
	}
	if err := start(ctx); err != nil {
		return err
	}

	r.logger.Info("capturing image", "source", r.app.Camera().Status().Source)
	if err := r.app.CaptureImage(ctx); err != nil {
		return err
	}
	return r.app.CaptureImage(ctx)
}
