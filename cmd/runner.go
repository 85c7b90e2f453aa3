package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/hatchly/internal/app"
	"github.com/desertthunder/hatchly/internal/capture"
	"github.com/desertthunder/hatchly/internal/formatter"
	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/repositories"
	"github.com/desertthunder/hatchly/internal/services"
	"github.com/desertthunder/hatchly/internal/shared"
	"github.com/desertthunder/hatchly/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The state database, backend client and [app.App] are built on first use so that commands like
// setup run without a reachable backend.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	input      *bufio.Reader

	db       *sql.DB
	store    models.StateStore
	backend  services.Backend
	runs     tasks.RunRecorder
	camera   *capture.Controller
	notifier app.Notifier
	app      *app.App
	exporter *tasks.HistoryExporter
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Store, Backend, Runs, Camera and Notifier replace the ones built from Config.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader

	Store    models.StateStore
	Backend  services.Backend
	Runs     tasks.RunRecorder
	Camera   *capture.Controller
	Notifier app.Notifier
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      bufio.NewReader(opts.Input),
		store:      opts.Store,
		backend:    opts.Backend,
		runs:       opts.Runs,
		camera:     opts.Camera,
		notifier:   opts.Notifier,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, prawnsCommand, locationsCommand, predictCommand, historyCommand,
		dashboardCommand, cameraCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// connect builds the state store, backend client and App.
func (r *Runner) connect() error {
	if r.app != nil {
		return nil
	}

	if r.store == nil {
		db, err := shared.OpenStateDatabase(r.config.Database)
		if err != nil {
			return fmt.Errorf("failed to open state database: %w", err)
		}
		r.db = db
		r.store = repositories.NewStateRepository(db)
		if r.runs == nil {
			r.runs = repositories.NewExportRunRepository(db)
		}
	}

	if r.backend == nil {
		backend, err := r.newBackend()
		if err != nil {
			return err
		}
		r.backend = backend
	}

	if r.camera == nil {
		r.camera = r.newCamera()
	}

	r.app = app.New(app.Options{
		Backend:      r.backend,
		Store:        r.store,
		Camera:       r.camera,
		Notifier:     r.notifier,
		Logger:       shared.WithLogger(r.logger, "component", "app"),
		BackCooldown: r.config.Navigation.BackCooldown(),
	})
	r.exporter = tasks.NewHistoryExporter(r.backend, r.runs, shared.WithLogger(r.logger, "component", "export"))
	return nil
}

func (r *Runner) newBackend() (services.Backend, error) {
	jar, err := services.NewStateJar(r.config.Server.BaseURL, r.store)
	if err != nil {
		return nil, fmt.Errorf("failed to load session cookies: %w", err)
	}

	svc := services.NewHatchlyService(r.config.Server.BaseURL, &http.Client{
		Timeout: r.config.Server.Timeout(),
		Jar:     jar,
	})
	svc.Use(
		services.RequestIDMiddleware(),
		services.LoggingMiddleware(r.logger),
		services.AuthFailureMiddleware(func(*http.Request) { r.invalidate() }),
	)

	return services.NewCachingBackend(svc, r.config.Cache.TTL()), nil
}

func (r *Runner) newCamera() *capture.Controller {
	var local capture.LocalCamera
	if cam, err := capture.NewExecCamera(r.config.Camera.CaptureCommand, r.config.Camera.CaptureTimeout()); err != nil {
		r.logger.Debug("local camera disabled", "error", err)
	} else {
		local = cam
	}

	var remote capture.RemoteCamera
	if r.config.Camera.RemoteEnabled {
		remote = r.backend
	}
	return capture.NewController(local, remote, shared.WithLogger(r.logger, "component", "camera"))
}

func (r *Runner) invalidate() {
	if r.app != nil {
		r.app.Invalidate()
	}
}

// Close releases the camera and the state database.
func (r *Runner) Close() {
	if r.camera != nil {
		r.camera.Reset()
	}
	if r.db != nil {
		r.db.Close()
		r.db = nil
	}
}

// session restores the persisted session and fails when nobody is signed in.
func (r *Runner) session(ctx context.Context) (*models.Session, error) {
	if err := r.connect(); err != nil {
		return nil, err
	}
	if err := r.app.Restore(ctx); err != nil {
		return nil, err
	}

	sess := r.app.Session()
	if sess == nil {
		return nil, fmt.Errorf("%w: run 'hatchly auth login' first", shared.ErrNotAuthenticated)
	}
	return sess, nil
}

// selectPrawn selects id when given, otherwise requires a previously selected prawn.
func (r *Runner) selectPrawn(ctx context.Context, id int64) (*models.Prawn, error) {
	if id > 0 {
		if err := r.app.SelectPrawnByID(ctx, id); err != nil {
			return nil, err
		}
	}
	p := r.app.Selected()
	if p == nil {
		return nil, fmt.Errorf("%w: pass --prawn or run 'hatchly prawns select'", shared.ErrNoSelection)
	}
	return p, nil
}

// readLine prompts on the output and reads one line of input.
func (r *Runner) readLine(prompt string) (string, error) {
	r.writePlain("%s: ", prompt)
	line, err := r.input.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, strings.ToLower(prompt))
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// flagOrPrompt returns the flag value, asking for it when the flag was not set.
func (r *Runner) flagOrPrompt(cmd *cli.Command, name, prompt string) (string, error) {
	if v := cmd.String(name); v != "" {
		return v, nil
	}
	return r.readLine(prompt)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := formatter.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func (r *Runner) writeTable(headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return r.writePlain("%s\n", t.String())
}
