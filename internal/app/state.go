package app

import (
	"encoding/json"
	"strconv"

	"github.com/desertthunder/hatchly/internal/models"
)

// persist writes a single key. Store failures are logged: persisted state only helps a later restore.
func (a *App) persist(key, value string) {
	if a.store == nil {
		return
	}
	if err := a.store.Set(key, value); err != nil {
		a.logger.Warn("failed to persist state", "key", key, "error", err)
	}
}

func (a *App) persistJSON(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		a.logger.Warn("failed to encode state", "key", key, "error", err)
		return
	}
	a.persist(key, string(data))
}

// imageKeys hold the captured image and the prediction made from it.
func imageKeys() []string {
	return append(append([]string{}, models.ImageKeys...), models.PredictionKeys...)
}

// selectionKeys is everything tied to a signed-in user except identity and cookies.
func selectionKeys() []string {
	return append(imageKeys(), models.KeyCurrentView, models.KeySelectedPrawn)
}

func (a *App) forget(keys ...string) {
	if a.store == nil || len(keys) == 0 {
		return
	}
	if err := a.store.Delete(keys...); err != nil {
		a.logger.Warn("failed to remove state", "keys", keys, "error", err)
	}
}

func (a *App) lookup(key string) (string, bool) {
	if a.store == nil {
		return "", false
	}
	v, ok, err := a.store.Get(key)
	if err != nil {
		a.logger.Warn("failed to read state", "key", key, "error", err)
		return "", false
	}
	return v, ok && v != ""
}

func (a *App) persistSession(s *models.Session) {
	a.persist(models.KeyUserID, strconv.FormatInt(s.UserID, 10))
	a.persist(models.KeyUserEmail, s.Email)
	a.persist(models.KeyUserName, s.DisplayName)
}

// persistedSession reads the remembered identity. It returns nil when none is stored.
func (a *App) persistedSession() *models.Session {
	raw, ok := a.lookup(models.KeyUserID)
	if !ok {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		a.logger.Warn("ignoring malformed persisted user id", "value", raw)
		return nil
	}

	email, _ := a.lookup(models.KeyUserEmail)
	name, _ := a.lookup(models.KeyUserName)
	return &models.Session{UserID: id, Email: email, DisplayName: name, Authenticated: true}
}

func (a *App) persistedPrawn() *models.Prawn {
	raw, ok := a.lookup(models.KeySelectedPrawn)
	if !ok {
		return nil
	}
	var p models.Prawn
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.ID == 0 {
		a.logger.Warn("ignoring malformed persisted prawn", "error", err)
		return nil
	}
	return &p
}

func (a *App) persistImage(img *models.CapturedImage) {
	a.persistJSON(models.KeyCapturedImage, img)
	a.persist(models.KeyImageSource, string(img.Source))
}

func (a *App) persistedImage() *models.CapturedImage {
	raw, ok := a.lookup(models.KeyCapturedImage)
	if !ok {
		return nil
	}
	var img models.CapturedImage
	if err := json.Unmarshal([]byte(raw), &img); err != nil || img.Data == "" {
		a.logger.Warn("ignoring malformed persisted image", "error", err)
		return nil
	}
	if src, ok := a.lookup(models.KeyImageSource); ok {
		img.Source = models.ImageSource(src)
	}
	if !img.Source.Valid() {
		img.Source = models.SourceUpload
	}
	return &img
}

func (a *App) persistPrediction(r *models.PredictionResult) {
	a.persist(models.KeyPredictionImageID, r.ImageID)
	a.persist(models.KeyPredictionDays, strconv.Itoa(r.DaysUntilHatch))
	a.persist(models.KeyPredictionConf, strconv.FormatFloat(r.Confidence, 'f', -1, 64))
	if r.CurrentDay != nil {
		a.persist(models.KeyPredictionDay, strconv.Itoa(*r.CurrentDay))
	} else {
		a.forget(models.KeyPredictionDay)
	}
}

func (a *App) persistedPrediction() *models.PredictionResult {
	rawDays, ok := a.lookup(models.KeyPredictionDays)
	if !ok {
		return nil
	}
	days, err := strconv.Atoi(rawDays)
	if err != nil {
		return nil
	}

	r := &models.PredictionResult{DaysUntilHatch: days}
	r.ImageID, _ = a.lookup(models.KeyPredictionImageID)
	if raw, ok := a.lookup(models.KeyPredictionConf); ok {
		r.Confidence, _ = strconv.ParseFloat(raw, 64)
	}
	if raw, ok := a.lookup(models.KeyPredictionDay); ok {
		if day, err := strconv.Atoi(raw); err == nil {
			r.CurrentDay = &day
		}
	}
	return r
}

// restoreImage fills the in-memory image and prediction from the store when absent.
//
// A persisted prediction is only adopted for the image it was produced from.
func (a *App) restoreImage() {
	a.mu.Lock()
	needImage := a.image == nil
	needPrediction := a.prediction == nil
	a.mu.Unlock()

	var img *models.CapturedImage
	if needImage {
		img = a.persistedImage()
	}
	var pred *models.PredictionResult
	if needPrediction {
		pred = a.persistedPrediction()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if img != nil && a.image == nil {
		a.image = img
	}
	if pred != nil && a.prediction == nil && a.image != nil && (pred.ImageID == "" || pred.ImageID == a.image.ID) {
		a.prediction = pred
	}
}
