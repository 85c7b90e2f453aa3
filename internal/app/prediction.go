package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/hatchly/internal/capture"
	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/services"
	"github.com/desertthunder/hatchly/internal/shared"
)

// UseImage hands img to the prediction view, replacing any previous image and result.
func (a *App) UseImage(ctx context.Context, img *models.CapturedImage) error {
	if img == nil {
		return shared.ErrNoImage
	}

	a.mu.Lock()
	if a.selected == nil {
		a.mu.Unlock()
		return a.Show(ctx, ViewSelectPrawn)
	}
	a.image = clonePtr(img)
	a.prediction = nil
	a.predictFailed = false
	a.mu.Unlock()

	a.forget(models.PredictionKeys...)
	a.persistImage(img)
	a.logger.Debug("image ready", "image_id", img.ID, "source", img.Source)
	return a.Show(ctx, ViewPredict)
}

// Upload reads an image file and uses it.
func (a *App) Upload(ctx context.Context, path string) error {
	img, err := capture.FromFile(path)
	if err != nil {
		return a.report("Upload", err)
	}
	return a.UseImage(ctx, img)
}

// StartLocalCamera switches the capture view to the local camera.
func (a *App) StartLocalCamera(ctx context.Context) error {
	return a.report("Camera", a.camera.UseLocal(ctx))
}

// StartRemoteCamera switches the capture view to the networked camera.
func (a *App) StartRemoteCamera(ctx context.Context) error {
	return a.report("Remote camera", a.camera.UseRemote(ctx))
}

// CaptureImage presses the capture control. Once an image is confirmed it moves on to prediction.
func (a *App) CaptureImage(ctx context.Context) error {
	img, confirmed, err := a.camera.Capture(ctx)
	if err != nil {
		return a.report("Capture", err)
	}
	if !confirmed {
		return nil
	}
	return a.UseImage(ctx, img)
}

// RetryCapture discards the still and reacquires its camera.
func (a *App) RetryCapture(ctx context.Context) error {
	return a.report("Camera", a.camera.Retry(ctx))
}

// Submit asks the backend for a prediction on the current image.
//
// At most one result exists per image: resubmitting an image that already has one returns the
// stored result without a request, and a submit while another is in flight fails with
// [shared.ErrBusy]. A failure to save the result to history is logged only.
func (a *App) Submit(ctx context.Context) (*models.PredictionResult, error) {
	a.mu.Lock()
	img := clonePtr(a.image)
	switch {
	case img == nil:
		a.mu.Unlock()
		return nil, shared.ErrNoImage
	case a.selected == nil:
		a.mu.Unlock()
		return nil, shared.ErrNoSelection
	case a.prediction != nil && a.prediction.ImageID == img.ID:
		res := clonePtr(a.prediction)
		a.mu.Unlock()
		return res, nil
	case a.submitting:
		a.mu.Unlock()
		return nil, shared.ErrBusy
	}
	a.submitting = true
	a.predictFailed = false
	prawn := *a.selected
	var userID int64
	if a.session != nil {
		userID = a.session.UserID
	}
	a.mu.Unlock()

	a.logger.Info("submitting image", "image_id", img.ID, "prawn_id", prawn.ID)
	res, err := a.backend.Predict(ctx, img.Data)

	a.mu.Lock()
	a.submitting = false
	if a.image == nil || a.image.ID != img.ID {
		a.mu.Unlock()
		a.logger.Debug("discarding prediction for replaced image", "image_id", img.ID)
		return nil, fmt.Errorf("%w: image replaced during submission", shared.ErrCaptureCancelled)
	}
	if err != nil {
		a.predictFailed = true
		a.mu.Unlock()
		return nil, a.predictionFailed(err)
	}
	res.ImageID = img.ID
	a.prediction = clonePtr(res)
	a.mu.Unlock()

	a.persistPrediction(res)
	a.notify(LevelSuccess, "Prediction complete", res.Summary())

	record := models.PredictionRecordInput{
		UserID:        userID,
		PrawnID:       prawn.ID,
		PrawnName:     prawn.Name,
		ImageData:     img.Data,
		PredictedDays: res.DaysUntilHatch,
		Confidence:    res.Confidence,
		CurrentDay:    res.CurrentDay,
	}
	if err := a.backend.SavePredictionRecord(ctx, record); err != nil {
		a.logger.Warn("failed to save prediction to history", "prawn_id", prawn.ID, "error", err)
	}
	return res, nil
}

func (a *App) predictionFailed(err error) error {
	var perr *services.PredictionError
	if !errors.As(err, &perr) {
		return a.report("Prediction failed", err)
	}

	title := "Prediction failed"
	if perr.NoSubjectDetected {
		title = "No prawn eggs detected"
	}
	a.logger.Warn(title, "error", err)
	a.notify(LevelWarning, title, perr.Message)
	return err
}

// Retry drops the image and its result and returns to the image source view.
func (a *App) Retry(ctx context.Context) error {
	a.mu.Lock()
	a.image = nil
	a.prediction = nil
	a.predictFailed = false
	a.mu.Unlock()

	a.forget(imageKeys()...)
	return a.Show(ctx, ViewImageSelection)
}

// TryAgain follows a failed prediction back to where the image came from: the capture view for
// camera images, the file picker for uploads.
func (a *App) TryAgain(ctx context.Context) error {
	a.mu.Lock()
	source := models.SourceUpload
	if a.image != nil {
		source = a.image.Source
	}
	a.predictFailed = false
	a.pickerRequested = source == models.SourceUpload
	a.mu.Unlock()

	if source == models.SourceCamera {
		return a.Show(ctx, ViewCapture)
	}
	return a.Show(ctx, ViewImageSelection)
}

// TakePickerRequest reports and clears a pending request to reopen the file picker.
func (a *App) TakePickerRequest() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	requested := a.pickerRequested
	a.pickerRequested = false
	return requested
}
