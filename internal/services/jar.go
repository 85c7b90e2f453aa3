package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/desertthunder/hatchly/internal/models"
)

// storedCookie is the persisted form of a session cookie.
type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Path  string `json:"path,omitempty"`
}

// StateJar is an [http.CookieJar] whose cookies for the backend host survive restarts.
//
// Cookies are mirrored into the store under [models.KeySessionCookies] whenever the backend sets them.
type StateJar struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	store   models.StateStore
	backend *url.URL
}

// NewStateJar creates a jar for baseURL and loads any cookies persisted for it.
func NewStateJar(baseURL string, store models.StateStore) (*StateJar, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	j := &StateJar{jar: jar, store: store, backend: u}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *StateJar) load() error {
	raw, ok, err := j.store.Get(models.KeySessionCookies)
	if err != nil || !ok || raw == "" {
		return err
	}

	var stored []storedCookie
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return j.store.Delete(models.KeySessionCookies)
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path})
	}
	j.jar.SetCookies(j.backend, cookies)
	return nil
}

func (j *StateJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)
	if u.Host != j.backend.Host {
		return
	}
	_ = j.persist()
}

func (j *StateJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

func (j *StateJar) persist() error {
	current := j.jar.Cookies(j.backend)
	if len(current) == 0 {
		return j.store.Delete(models.KeySessionCookies)
	}

	stored := make([]storedCookie, len(current))
	for i, c := range current {
		stored[i] = storedCookie{Name: c.Name, Value: c.Value, Path: "/"}
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return j.store.Set(models.KeySessionCookies, string(data))
}

// Clear drops every cookie, in memory and persisted.
func (j *StateJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	j.jar = jar
	return j.store.Delete(models.KeySessionCookies)
}

var _ http.CookieJar = (*StateJar)(nil)
