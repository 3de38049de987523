// Package cli is the shared bootstrap of the example programs:
// configuration -> model, logger and session store -> runner.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/weathermesh"
	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/internal/config"
	"github.com/hupe1980/weathermesh/logging"
	"github.com/hupe1980/weathermesh/model"
	"github.com/hupe1980/weathermesh/model/anthropic"
	"github.com/hupe1980/weathermesh/model/gemini"
	"github.com/hupe1980/weathermesh/model/openai"
	"github.com/hupe1980/weathermesh/session"
	"github.com/hupe1980/weathermesh/session/sqlite"
)

// App bundles everything an example needs to run an agent tree.
type App struct {
	Config *config.Config
	Model  model.Model
	Logger logging.Logger
	Store  core.SessionStore

	closers []func() error
}

// Setup validates cfg and builds the model, logger and session store.
func Setup(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger}

	llm, closeModel, err := NewModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Model = llm
	app.closers = append(app.closers, closeModel)

	store, closeStore, err := NewStore(cfg.Session)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Store = store
	app.closers = append(app.closers, closeStore)

	logger.Info("cli.setup.complete",
		"provider", cfg.Provider,
		"model", llm.Info().Name,
		"session_store", cfg.Session.Store,
	)

	return app, nil
}

// Mesh creates the runner facade for root.
func (a *App) Mesh(root core.Agent) *weathermesh.WeatherMesh {
	return weathermesh.New(root, func(o *weathermesh.Options) {
		o.SessionStore = a.Store
		o.Logger = a.Logger
		o.Timeout = a.Config.Runner.Timeout
		o.MaxModelCalls = a.Config.Runner.MaxModelCalls
	})
}

// Close releases the model client and the session store.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func noClose() error { return nil }

// NewModel builds the model for the configured provider.
func NewModel(ctx context.Context, cfg *config.Config) (model.Model, func() error, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		m, err := gemini.NewModel(ctx, cfg.Gemini.APIKey, func(o *gemini.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create gemini model: %w", err)
		}
		return m, m.Close, nil
	case config.ProviderOpenAI:
		return openai.NewModel(cfg.OpenAI.APIKey, func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		}), noClose, nil
	case config.ProviderAzure:
		return openai.NewAzureModel(cfg.Azure.Endpoint, cfg.Azure.APIVersion, cfg.Azure.APIKey, cfg.Azure.Deployment), noClose, nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = cfg.Anthropic.APIKey
			if cfg.Model != "" {
				o.Model = sdk.Model(cfg.Model)
			}
		}), noClose, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// NewLogger builds the configured logger.
func NewLogger(cfg config.LogConfig) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	switch cfg.Logger {
	case "", "slog":
		return logging.NewSlogLogger(level, cfg.Format, false), nil
	case "zerolog":
		return logging.NewZerologLogger(level, cfg.Format), nil
	default:
		return nil, fmt.Errorf("unknown logger %q", cfg.Logger)
	}
}

// NewStore builds the configured session store.
func NewStore(cfg config.SessionConfig) (core.SessionStore, func() error, error) {
	switch cfg.Store {
	case "", "memory":
		return session.NewInMemoryStore(), noClose, nil
	case "sqlite":
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}

// Prompts returns the command-line prompt if one is given, else defaults.
func Prompts(args []string, defaults ...string) []string {
	if p := strings.TrimSpace(strings.Join(args, " ")); p != "" {
		return []string{p}
	}
	return defaults
}

// Converse sends prompts one after another on a single session and writes
// each exchange to w.
func Converse(ctx context.Context, mesh *weathermesh.WeatherMesh, sessionID string, prompts []string, w io.Writer) error {
	for _, prompt := range prompts {
		fmt.Fprintf(w, "User: %s\n", prompt)

		text, _, err := mesh.InvokeText(ctx, sessionID, prompt)
		if err != nil {
			return fmt.Errorf("prompt %q: %w", prompt, err)
		}

		if text == "" {
			text = "(no response)"
		}

		fmt.Fprintf(w, "Agent: %s\n\n", text)
	}

	return nil
}

// Example describes one runnable tutorial program.
type Example struct {
	Title string
	// Build creates the agent tree on top of the configured model.
	Build func(m model.Model) core.Agent
	// Prompts are sent when no command-line prompt is given.
	Prompts []string
	// Configure adjusts the loaded configuration before setup.
	Configure func(cfg *config.Config, w io.Writer)
}

// Main runs the example end to end: load configuration, build the agent
// tree, converse, and exit with status 1 on failure.
func (e Example) Main() {
	if err := e.Run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// Run is Main without process handling.
func (e Example) Run(ctx context.Context, args []string, w io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if e.Configure != nil {
		e.Configure(cfg, w)
	}

	app, err := Setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close() //nolint:errcheck

	root := e.Build(app.Model)

	fmt.Fprintf(w, "=== %s (%s) ===\n\n", e.Title, root.Name())

	return Converse(ctx, app.Mesh(root), "session-"+core.NewID(), Prompts(args, e.Prompts...), w)
}
