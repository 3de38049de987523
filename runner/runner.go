package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/logging"
	"github.com/hupe1980/weathermesh/session"
)

// ErrRunNotFound is returned by Cancel for unknown or finished runs.
var ErrRunNotFound = errors.New("run not found")

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run (0 = unlimited).
	MaxModelCalls int
	// Timeout bounds a whole run (0 = none).
	Timeout time.Duration
	// SessionStore persists sessions and events.
	SessionStore core.SessionStore
	// Logger receives run lifecycle logs.
	Logger logging.Logger
}

// Runner coordinates agent execution: creates run contexts, persists every
// emitted event, streams events to the caller and tracks active runs for
// cancellation. Public methods are safe for concurrent use.
type Runner struct {
	agent core.Agent

	eventBufferSize int
	maxModelCalls   int
	timeout         time.Duration

	sessionStore core.SessionStore
	logger       logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.Mutex
}

// New constructs a Runner for the given root agent with optional overrides.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		MaxModelCalls:   100,
		SessionStore:    session.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Runner{
		agent:           agent,
		eventBufferSize: opts.EventBufferSize,
		maxModelCalls:   opts.MaxModelCalls,
		timeout:         opts.Timeout,
		sessionStore:    opts.SessionStore,
		logger:          opts.Logger,
		activeRuns:      make(map[string]context.CancelFunc),
	}
}

// SessionStore returns the store the runner persists to.
func (r *Runner) SessionStore() core.SessionStore { return r.sessionStore }

// Run starts an asynchronous run of the root agent on the given session,
// creating the session if needed. Events are delivered on the returned
// channel after they have been persisted; a terminal error, if any, is
// sent on the error channel. Both channels are closed when the run ends.
func (r *Runner) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	sess, err := r.sessionStore.Get(sessionID)
	if errors.Is(err, core.ErrSessionNotFound) {
		sess, err = r.sessionStore.Create(sessionID)
	}
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	runID := core.NewID()

	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := r.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}
	sess.AddEvent(userEvent)

	var cancel context.CancelFunc
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)

	runCtx := core.NewRunContext(
		ctx,
		sessionID,
		runID,
		core.AgentInfo{Name: r.agent.Name(), Type: "root"},
		userContent,
		sess,
		r.sessionStore,
		core.NewModelLimiter(r.maxModelCalls),
		r.emitter(ctx, sessionID, eventsCh),
		r.logger,
	)

	go func() {
		defer func() {
			cancel()
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
			close(eventsCh)
			close(errorsCh)
		}()

		start := time.Now()
		r.logger.Info("runner.run.start", "run", runID, "session", sessionID, "agent", r.agent.Name())

		if err := r.agent.Run(runCtx); err != nil {
			r.logger.Error("runner.run.error", "run", runID, "session", sessionID, "error", err)
			errorsCh <- fmt.Errorf("agent execution failed: %w", err)
			return
		}

		r.logger.Info("runner.run.complete",
			"run", runID,
			"session", sessionID,
			"model_calls", runCtx.Limiter.Count(),
			"duration", time.Since(start),
		)
	}()

	return runID, eventsCh, errorsCh, nil
}

// emitter persists non-partial events (state delta first, then the event)
// and forwards every event to the caller. Emits are serialized so parallel
// branches append in a consistent order.
func (r *Runner) emitter(ctx context.Context, sessionID string, eventsCh chan<- core.Event) core.Emitter {
	var mu sync.Mutex

	return func(ev core.Event) error {
		mu.Lock()
		defer mu.Unlock()

		if !ev.IsPartial() {
			if err := r.persist(sessionID, &ev); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case eventsCh <- ev:
			r.logger.Debug("runner.event.delivered", "event_id", ev.ID, "author", ev.Author, "session", sessionID)
			return nil
		}
	}
}

// persist runs under the emitter lock, so staged read-modify-write updates
// are resolved against the latest stored state before the delta lands.
func (r *Runner) persist(sessionID string, ev *core.Event) error {
	if ev.HasStateUpdates() {
		sess, err := r.sessionStore.Get(sessionID)
		if err != nil {
			return fmt.Errorf("failed to read state for update: %w", err)
		}

		ev.ResolveStateUpdates(sess.GetState)
		r.logger.Debug("runner.state.resolved", "event_id", ev.ID, "session", sessionID)
	}

	if len(ev.Actions.StateDelta) > 0 {
		if err := r.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	if err := r.sessionStore.AppendEvent(sessionID, *ev); err != nil {
		return fmt.Errorf("failed to append event to session: %w", err)
	}

	return nil
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	cancel()

	return nil
}
