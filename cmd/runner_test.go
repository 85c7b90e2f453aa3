package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/hatchly/internal/repositories"
	"github.com/desertthunder/hatchly/internal/services"
	"github.com/desertthunder/hatchly/internal/shared"
	tu "github.com/desertthunder/hatchly/internal/testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func newTestBackend(t *testing.T) *httptest.Server {
	t.Helper()

	reply := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(body))
		}
	}

	frame := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", reply(`{"success":true,"user_id":7,"email":"ana@example.com","name":"Ana"}`))
	mux.HandleFunc("/api/logout", reply(`{"success":true}`))
	mux.HandleFunc("/api/check_session", reply(`{"valid":true}`))
	mux.HandleFunc("/api/dashboard_summary", reply(`{"success":true,"total_prawns":2,"total_predictions":3,"upcoming_count":1,
		"upcoming_hatches":[{"prawn_id":10,"prawn_name":"Pink","location_name":"Tank A","days_until_hatch":4}]}`))
	mux.HandleFunc("/api/get_locations", reply(`{"success":true,"locations":[{"id":1,"name":"Tank A"},{"id":2,"name":"Tank B"}]}`))
	mux.HandleFunc("/api/get_prawns", reply(`{"success":true,"prawns":[
		{"id":10,"name":"Pink","location_id":1,"location_name":"Tank A"},
		{"id":11,"name":"Blue","location_id":2,"location_name":"Tank B"}]}`))
	mux.HandleFunc("/api/save_prawn", reply(`{"success":true,"prawn":{"id":12,"name":"Gold","location_id":2,"location_name":"Tank B"}}`))
	mux.HandleFunc("/api/get_predictions", reply(`{"success":true,"predictions":[
		{"id":20,"prawn_id":10,"predicted_days":4,"confidence":91.5,"created_at":"2025-03-01 09:00:00"}]}`))
	mux.HandleFunc("/api/delete_prediction", reply(`{"success":true}`))
	mux.HandleFunc("/api/predict", reply(`{"success":true,"days_until_hatch":5,"confidence":88.5}`))
	mux.HandleFunc("/api/save_prediction", reply(`{"success":true}`))
	mux.HandleFunc("/api/camera/status", reply(`{"success":true,"camera_online":true,"camera_url":"/api/camera/stream"}`))
	mux.HandleFunc("/api/camera/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Write([]byte("--frame\r\n"))
	})
	mux.HandleFunc("/api/camera/capture", reply(`{"success":true,"image":"`+frame+`"}`))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestRunner(t *testing.T, runs *repositories.ExportRunRepository) (*Runner, *bytes.Buffer) {
	t.Helper()
	server := newTestBackend(t)

	config := shared.DefaultConfig()
	config.Server.BaseURL = server.URL
	config.Camera.RemoteEnabled = true

	output := &bytes.Buffer{}
	opts := RunnerOpts{
		Config:  config,
		Output:  output,
		Input:   strings.NewReader(""),
		Store:   tu.NewMemoryStore(),
		Backend: services.NewHatchlyService(server.URL, server.Client()),
	}
	if runs != nil {
		opts.Runs = runs
	}

	runner := NewRunner(opts)
	t.Cleanup(runner.Close)
	return runner, output
}

func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	root := &cli.Command{Name: "hatchly", Commands: r.register(), Writer: r.output}
	return root.Run(context.Background(), append([]string{"hatchly"}, args...))
}

func login(t *testing.T, r *Runner) {
	t.Helper()
	if err := run(t, r, "auth", "login", "--email", "ana@example.com", "--password", "secret1"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			store := tu.NewMemoryStore()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/tmp/hatchly.toml",
				Logger:     logger,
				Output:     output,
				Store:      store,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.store != store {
				t.Error("expected store to be set")
			}
			if runner.configPath != "/tmp/hatchly.toml" {
				t.Errorf("expected configPath to be set, got %q", runner.configPath)
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to stdout")
			}
			if runner.app != nil {
				t.Error("expected app to be built lazily")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: tu.NewLimitedWriter(1, 0, &bytes.Buffer{})})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writeTable", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writeTable([]string{"ID", "Name"}, [][]string{{"10", "Pink"}}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, want := range []string{"ID", "Name", "10", "Pink"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("expected table to contain %q, got:\n%s", want, output.String())
			}
		}
	})

	t.Run("readLine", func(t *testing.T) {
		t.Run("reads one line", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Input: strings.NewReader("hunter2\nrest\n")})

			line, err := runner.readLine("Password")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if line != "hunter2" {
				t.Errorf("expected 'hunter2', got %q", line)
			}
		})

		t.Run("fails on empty input", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Input: strings.NewReader("")})

			if _, err := runner.readLine("Password"); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}

		for _, want := range []string{"setup", "auth", "prawns", "locations", "predict", "history", "dashboard", "camera", "tui"} {
			if !names[want] {
				t.Errorf("expected %q to be registered", want)
			}
		}
	})
}

func TestCommands(t *testing.T) {
	t.Run("auth", func(t *testing.T) {
		t.Run("login prints the signed in user", func(t *testing.T) {
			runner, output := newTestRunner(t, nil)
			login(t, runner)

			if !strings.Contains(output.String(), "✓ Signed in as Ana (ana@example.com)") {
				t.Errorf("unexpected output: %s", output.String())
			}
		})

		t.Run("login with an invalid email is a validation error", func(t *testing.T) {
			runner, _ := newTestRunner(t, nil)

			err := run(t, runner, "auth", "login", "--email", "ana", "--password", "secret1")
			var verr *shared.ValidationError
			if !errors.As(err, &verr) || !verr.Has("email") {
				t.Errorf("expected email validation error, got %v", err)
			}
		})

		t.Run("commands require a session", func(t *testing.T) {
			runner, _ := newTestRunner(t, nil)

			if err := run(t, runner, "prawns", "list"); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})

		t.Run("status as JSON", func(t *testing.T) {
			runner, output := newTestRunner(t, nil)
			login(t, runner)
			output.Reset()

			if err := run(t, runner, "auth", "status", "--json", "--pretty=false"); err != nil {
				t.Fatalf("status failed: %v", err)
			}
			if !strings.Contains(output.String(), `"authenticated":true`) {
				t.Errorf("expected authenticated status, got %s", output.String())
			}
		})

		t.Run("logout", func(t *testing.T) {
			runner, output := newTestRunner(t, nil)
			login(t, runner)

			if err := run(t, runner, "auth", "logout"); err != nil {
				t.Fatalf("logout failed: %v", err)
			}
			if !strings.Contains(output.String(), "✓ Signed out") {
				t.Errorf("unexpected output: %s", output.String())
			}
			if runner.app.Session() != nil {
				t.Error("expected session to be cleared")
			}
		})
	})

	t.Run("prawns", func(t *testing.T) {
		t.Run("list filters by location", func(t *testing.T) {
			runner, output := newTestRunner(t, nil)
			login(t, runner)
			output.Reset()

			if err := run(t, runner, "prawns", "list", "--location", "2"); err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if !strings.Contains(output.String(), "Blue") || strings.Contains(output.String(), "Pink") {
				t.Errorf("expected only Blue, got:\n%s", output.String())
			}
		})

		t.Run("select remembers the prawn", func(t *testing.T) {
			runner, output := newTestRunner(t, nil)
			login(t, runner)

			if err := run(t, runner, "prawns", "select", "--id", "10"); err != nil {
				t.Fatalf("select failed: %v", err)
			}
			if !strings.Contains(output.String(), "✓ Selected Pink (#10, Tank A)") {
				t.Errorf("unexpected output: %s", output.String())
			}
			if p := runner.app.Selected(); p == nil || p.ID != 10 {
				t.Errorf("expected prawn 10 selected, got %+v", p)
			}
		})

		t.Run("select unknown prawn", func(t *testing.T) {
			runner, _ := newTestRunner(t, nil)
			login(t, runner)

			if err := run(t, runner, "prawns", "select", "--id", "99"); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})

		t.Run("add registers a prawn", func(t *testing.T) {
			runner, output := newTestRunner(t, nil)
			login(t, runner)

			if err := run(t, runner, "prawns", "add", "--name", "Gold", "--location", "2"); err != nil {
				t.Fatalf("add failed: %v", err)
			}
			if !strings.Contains(output.String(), "✓ Registered Gold (#12)") {
				t.Errorf("unexpected output: %s", output.String())
			}
		})
	})

	t.Run("locations", func(t *testing.T) {
		t.Run("list counts prawns", func(t *testing.T) {
			runner, output := newTestRunner(t, nil)
			login(t, runner)
			output.Reset()

			if err := run(t, runner, "locations", "list"); err != nil {
				t.Fatalf("list failed: %v", err)
			}
			for _, want := range []string{"Tank A", "Tank B", "Prawns"} {
				if !strings.Contains(output.String(), want) {
					t.Errorf("expected %q in output:\n%s", want, output.String())
				}
			}
		})

		t.Run("delete in use requires reassignment", func(t *testing.T) {
			runner, output := newTestRunner(t, nil)
			login(t, runner)

			err := run(t, runner, "locations", "delete", "--id", "1")
			if !errors.Is(err, shared.ErrReassignmentRequired) {
				t.Fatalf("expected ErrReassignmentRequired, got %v", err)
			}
			if !strings.Contains(output.String(), "Pink (#10)") || !strings.Contains(output.String(), "--reassign-to") {
				t.Errorf("expected the prawns and a hint, got:\n%s", output.String())
			}
		})
	})

	t.Run("predict", func(t *testing.T) {
		t.Run("uploads a file for the selected prawn", func(t *testing.T) {
			runner, output := newTestRunner(t, nil)
			login(t, runner)

			path := filepath.Join(t.TempDir(), "egg.png")
			if err := os.WriteFile(path, pngHeader, 0644); err != nil {
				t.Fatal(err)
			}

			if err := run(t, runner, "predict", "--prawn", "10", "--file", path); err != nil {
				t.Fatalf("predict failed: %v", err)
			}
			if !strings.Contains(output.String(), "5 days until hatch (88.5% confidence)") {
				t.Errorf("unexpected output: %s", output.String())
			}
			if !strings.Contains(output.String(), "Expected hatch date:") {
				t.Errorf("expected a hatch date, got: %s", output.String())
			}
		})

		t.Run("captures from the remote camera", func(t *testing.T) {
			runner, output := newTestRunner(t, nil)
			login(t, runner)
			output.Reset()

			if err := run(t, runner, "predict", "--prawn", "10", "--camera", "remote", "--json", "--pretty=false"); err != nil {
				t.Fatalf("predict failed: %v", err)
			}
			if !strings.Contains(output.String(), `"days_until_hatch":5`) {
				t.Errorf("unexpected output: %s", output.String())
			}
		})

		t.Run("requires a selected prawn", func(t *testing.T) {
			runner, _ := newTestRunner(t, nil)
			login(t, runner)

			if err := run(t, runner, "predict", "--file", "egg.png"); !errors.Is(err, shared.ErrNoSelection) {
				t.Errorf("expected ErrNoSelection, got %v", err)
			}
		})

		t.Run("rejects an unknown camera", func(t *testing.T) {
			runner, _ := newTestRunner(t, nil)
			login(t, runner)

			if err := run(t, runner, "predict", "--prawn", "10", "--camera", "webcam"); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	})

	t.Run("history", func(t *testing.T) {
		t.Run("list", func(t *testing.T) {
			runner, output := newTestRunner(t, nil)
			login(t, runner)

			if err := run(t, runner, "history", "list", "--prawn", "10"); err != nil {
				t.Fatalf("history failed: %v", err)
			}
			if !strings.Contains(output.String(), "Predictions for Pink (#10)") || !strings.Contains(output.String(), "91.5%") {
				t.Errorf("unexpected output:\n%s", output.String())
			}
		})

		t.Run("list since a date", func(t *testing.T) {
			runner, output := newTestRunner(t, nil)
			login(t, runner)

			output.Reset()
			if err := run(t, runner, "history", "list", "--prawn", "10", "--since", "March 1, 2025"); err != nil {
				t.Fatalf("history failed: %v", err)
			}
			if !strings.Contains(output.String(), "91.5%") {
				t.Errorf("expected the record from that day, got:\n%s", output.String())
			}

			output.Reset()
			if err := run(t, runner, "history", "list", "--prawn", "10", "--since", "3/2/2025"); err != nil {
				t.Fatalf("history failed: %v", err)
			}
			if !strings.Contains(output.String(), "No predictions for Pink since 2025-03-02.") {
				t.Errorf("expected an empty listing, got:\n%s", output.String())
			}

			if err := run(t, runner, "history", "list", "--prawn", "10", "--since", "soon"); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})

		t.Run("export records a run", func(t *testing.T) {
			db, err := shared.NewDatabase(":memory:")
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { db.Close() })
			shared.ConfigureDatabase(db, 1, 1)
			if err := shared.RunMigrations(db); err != nil {
				t.Fatal(err)
			}

			runner, output := newTestRunner(t, repositories.NewExportRunRepository(db))
			login(t, runner)
			dir := filepath.Join(t.TempDir(), "export")

			if err := run(t, runner, "history", "export", "--format", "csv", "--output", dir, "--rate-limit", "100"); err != nil {
				t.Fatalf("export failed: %v", err)
			}
			if !strings.Contains(output.String(), "Export Complete!") || !strings.Contains(output.String(), "Prawns: 2/2 exported") {
				t.Errorf("unexpected output:\n%s", output.String())
			}
			tu.AssertFileExists(t, filepath.Join(dir, "export_manifest.json"))

			output.Reset()
			if err := run(t, runner, "history", "runs"); err != nil {
				t.Fatalf("runs failed: %v", err)
			}
			if !strings.Contains(output.String(), "csv") {
				t.Errorf("expected the csv export to be listed, got:\n%s", output.String())
			}
		})
	})

	t.Run("dashboard", func(t *testing.T) {
		runner, output := newTestRunner(t, nil)
		login(t, runner)
		output.Reset()

		if err := run(t, runner, "dashboard"); err != nil {
			t.Fatalf("dashboard failed: %v", err)
		}
		for _, want := range []string{"Prawns: 2", "Predictions: 3", "Upcoming hatches: 1", "Pink", "Tank A"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("expected %q in output:\n%s", want, output.String())
			}
		}
	})

	t.Run("camera", func(t *testing.T) {
		t.Run("status", func(t *testing.T) {
			runner, output := newTestRunner(t, nil)

			if err := run(t, runner, "camera", "status"); err != nil {
				t.Fatalf("status failed: %v", err)
			}
			if !strings.Contains(output.String(), "✓ Camera online") {
				t.Errorf("unexpected output: %s", output.String())
			}
		})

		t.Run("capture adds the extension", func(t *testing.T) {
			runner, _ := newTestRunner(t, nil)
			base := filepath.Join(t.TempDir(), "frames", "egg")

			if err := run(t, runner, "camera", "capture", "--output", base); err != nil {
				t.Fatalf("capture failed: %v", err)
			}
			if got := tu.MustReadFile(t, base+".png"); got != string(pngHeader) {
				t.Errorf("unexpected frame contents %q", got)
			}
		})

		t.Run("stream opens the browser", func(t *testing.T) {
			runner, _ := newTestRunner(t, nil)

			var opened string
			original := openBrowser
			openBrowser = func(url string) error { opened = url; return nil }
			t.Cleanup(func() { openBrowser = original })

			if err := run(t, runner, "camera", "stream"); err != nil {
				t.Fatalf("stream failed: %v", err)
			}
			if opened != runner.config.Server.BaseURL+"/api/camera/stream" {
				t.Errorf("unexpected url %q", opened)
			}
		})
	})
}
