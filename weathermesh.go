// Package weathermesh provides a high-level façade over the runner and
// session stores for building weather and time assistants out of agents.
// Most applications interact with this package by:
//  1. Building an agent tree (see the agent and weather packages)
//  2. Creating a WeatherMesh via New() (optionally overriding the in-memory store)
//  3. Invoking the root agent asynchronously (Invoke) or synchronously
//     (InvokeSync, InvokeText)
//
// All defaults are safe for local development and testing; durable
// deployments supply the SQLite session store and a structured logger.
package weathermesh

import (
	"context"
	"strings"
	"time"

	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/logging"
	"github.com/hupe1980/weathermesh/runner"
	"github.com/hupe1980/weathermesh/session"
)

// Options configures the WeatherMesh instance.
type Options struct {
	// EventBufferSize sets the channel buffer size for event delivery.
	EventBufferSize int

	// MaxModelCalls caps model calls per invocation (0 = unlimited).
	MaxModelCalls int

	// Timeout bounds a single invocation (0 = none).
	Timeout time.Duration

	// SessionStore defaults to an in-memory store.
	SessionStore core.SessionStore

	// Logger defaults to NoOp logger if nil.
	Logger logging.Logger
}

// WeatherMesh is the high-level façade aggregating the runner and its stores.
type WeatherMesh struct {
	opts   Options
	runner *runner.Runner
}

// New creates a new WeatherMesh for the given root agent. The agent tree
// must be fully constructed.
func New(root core.Agent, optFns ...func(o *Options)) *WeatherMesh {
	opts := Options{
		EventBufferSize: 100,
		MaxModelCalls:   100,
		SessionStore:    session.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	r := runner.New(root, func(o *runner.Options) {
		o.EventBufferSize = opts.EventBufferSize
		o.MaxModelCalls = opts.MaxModelCalls
		o.Timeout = opts.Timeout
		o.SessionStore = opts.SessionStore
		o.Logger = opts.Logger
	})

	return &WeatherMesh{opts: opts, runner: r}
}

// Invoke starts an asynchronous invocation returning event & error channels.
func (m *WeatherMesh) Invoke(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	return m.runner.Run(ctx, sessionID, userContent)
}

// InvokeSync is a synchronous helper that drains the async channels, accumulates
// events and returns the run id.
func (m *WeatherMesh) InvokeSync(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, []core.Event, error) {
	runID, eventsCh, errorsCh, err := m.runner.Run(ctx, sessionID, userContent)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	for event := range eventsCh {
		events = append(events, event)
	}

	// errorsCh is buffered and closed after the last event
	if err := <-errorsCh; err != nil {
		return runID, events, err
	}

	return runID, events, nil
}

// InvokeText sends a user text message and returns the final response text
// along with all events of the run.
func (m *WeatherMesh) InvokeText(ctx context.Context, sessionID, text string) (string, []core.Event, error) {
	content := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: text}}}

	_, events, err := m.InvokeSync(ctx, sessionID, content)
	if err != nil {
		return "", events, err
	}

	return FinalText(events), events, nil
}

// Cancel cancels a running invocation.
func (m *WeatherMesh) Cancel(runID string) error { return m.runner.Cancel(runID) }

// Session returns the current snapshot of a session.
func (m *WeatherMesh) Session(sessionID string) (*core.Session, error) {
	return m.opts.SessionStore.Get(sessionID)
}

// FinalText returns the text of the last complete assistant answer among
// events, or "" if there is none.
func FinalText(events []core.Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if !ev.IsFinalResponse() || ev.Content == nil || ev.Content.Role != "assistant" {
			continue
		}

		if text := strings.TrimSpace(ev.Text()); text != "" {
			return text
		}
	}

	return ""
}
