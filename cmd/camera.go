package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/hatchly/internal/capture"
	"github.com/desertthunder/hatchly/internal/shared"
)

var openBrowser = shared.OpenBrowser

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// CameraStatus reports whether the networked camera is online.
func (r *Runner) CameraStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}

	status, err := r.backend.CameraStatus(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	if !status.Online {
		return r.writePlain("✗ Camera offline\n")
	}
	r.writePlain("✓ Camera online\n")
	if status.StreamURL != "" {
		r.writePlain("Stream: %s\n", status.StreamURL)
	}
	return nil
}

// CameraCapture saves one still from the networked camera.
func (r *Runner) CameraCapture(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}

	frame, err := r.backend.CaptureFrame(ctx)
	if err != nil {
		return err
	}
	data, mediaType, err := capture.DecodeDataURL(frame)
	if err != nil {
		return err
	}

	path := cmd.String("output")
	if filepath.Ext(path) == "" {
		path += imageExtensions[mediaType]
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}

	r.logger.Debug("saved camera frame", "path", path, "type", mediaType, "bytes", len(data))
	return r.writePlain("✓ Saved %s (%d KB)\n", path, len(data)/1024)
}

// CameraStream opens the live feed of the networked camera in the browser.
func (r *Runner) CameraStream(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}

	status, err := r.backend.CameraStatus(ctx)
	if err != nil {
		return err
	}
	if !status.Online {
		return shared.ErrRemoteCameraOffline
	}

	url := status.StreamURL
	if url == "" {
		url = r.config.Server.BaseURL + "/api/camera/stream"
	}
	r.writePlain("Opening %s\n", url)
	return openBrowser(url)
}
