// Package cli implements the importctl subcommands. They run the same import
// pipeline as the HTTP server against the store selected by the environment.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/JonMunkholm/portfolio-import/internal/app"
	"github.com/JonMunkholm/portfolio-import/internal/config"
	"github.com/JonMunkholm/portfolio-import/internal/core"
	"github.com/JonMunkholm/portfolio-import/internal/logging"
	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
)

// App holds what the subcommands share. Config, store and service are
// created on first use so help and template work without a database.
type App struct {
	Config *config.Config
	Stdout io.Writer
	Stderr io.Writer

	// Style is the glamour style used for summaries; empty detects the
	// terminal background.
	Style string

	logger  *slog.Logger
	store   core.Store
	service *core.Service
}

// New returns an App writing to the process's standard streams.
func New() *App {
	return &App{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Register adds every importctl subcommand to c.
func (a *App) Register(c *subcommands.Commander) {
	c.Register(&importCmd{app: a}, "imports")
	c.Register(&historyCmd{app: a}, "imports")
	c.Register(&templateCmd{app: a}, "formats")
	c.Register(&formatsCmd{app: a}, "formats")
	c.Register(&accountCmd{app: a}, "setup")
	c.Register(&migrateCmd{app: a}, "setup")
}

func (a *App) config() (*config.Config, error) {
	if a.Config != nil {
		return a.Config, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a.Config = cfg
	return cfg, nil
}

func (a *App) log() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	level, format := "warn", "text"
	if a.Config != nil {
		level, format = a.Config.Logging.Level, a.Config.Logging.Format
	}
	a.logger = logging.Setup(a.Stderr, level, format)
	return a.logger
}

// Store opens the configured store. A SQLite file is migrated on open since
// the CLI owns it.
func (a *App) Store(ctx context.Context) (core.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Driver == config.DriverSQLite {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}
	a.store = store
	return store, nil
}

// Service returns the import service over the configured store.
func (a *App) Service(ctx context.Context) (*core.Service, error) {
	if a.service != nil {
		return a.service, nil
	}
	store, err := a.Store(ctx)
	if err != nil {
		return nil, err
	}
	a.service = app.NewService(a.Config, store, a.log())
	return a.service, nil
}

// Close releases the store if one was opened.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// render writes markdown to Stdout through glamour.
func (a *App) render(md string) error {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(100)}
	if a.Style != "" {
		opts = append(opts, glamour.WithStandardStyle(a.Style))
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	_, err = io.WriteString(a.Stdout, out)
	return err
}

// fail prints err for a user and returns ExitFailure.
func (a *App) fail(err error) subcommands.ExitStatus {
	a.log().Debug("command failed", "error", err)
	if core.IsUserFacing(err) {
		fmt.Fprintf(a.Stderr, "Error: %v\n%s\n", err, core.FormatUserError(err))
	} else {
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
	}
	return subcommands.ExitFailure
}
