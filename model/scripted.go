package model

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/weathermesh/core"
)

// ErrScriptExhausted is returned when a ScriptedModel runs out of turns.
var ErrScriptExhausted = errors.New("scripted model: no responses left")

// ScriptTurn is one scripted model call. Respond, when set, computes the
// response from the request; otherwise Response is returned as is.
type ScriptTurn struct {
	Response Response
	Respond  func(Request) Response
	Err      error
}

// ScriptedModel replays a fixed queue of turns and records every request
// it receives. It is safe for concurrent use; parallel callers consume
// turns in arrival order.
type ScriptedModel struct {
	mu       sync.Mutex
	name     string
	turns    []ScriptTurn
	requests []Request
}

// NewScriptedModel creates a ScriptedModel with the given turns.
func NewScriptedModel(name string, turns ...ScriptTurn) *ScriptedModel {
	return &ScriptedModel{name: name, turns: turns}
}

// Reply is shorthand for a turn returning a fixed response.
func Reply(resp Response) ScriptTurn { return ScriptTurn{Response: resp} }

// ReplyText is shorthand for a turn returning assistant text.
func ReplyText(text string) ScriptTurn { return Reply(TextResponse(text)) }

// ReplyCalls is shorthand for a turn requesting function calls.
func ReplyCalls(calls ...core.FunctionCall) ScriptTurn { return Reply(FunctionCallResponse(calls...)) }

// ReplyFunc is shorthand for a computed turn.
func ReplyFunc(fn func(Request) Response) ScriptTurn { return ScriptTurn{Respond: fn} }

// Push appends further turns.
func (m *ScriptedModel) Push(turns ...ScriptTurn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turns...)
}

// Requests returns the requests seen so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Remaining returns the number of unconsumed turns.
func (m *ScriptedModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var (
		turn ScriptTurn
		ok   bool
	)
	if len(m.turns) > 0 {
		turn, m.turns, ok = m.turns[0], m.turns[1:], true
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}

		switch {
		case !ok:
			errCh <- ErrScriptExhausted
		case turn.Err != nil:
			errCh <- turn.Err
		case turn.Respond != nil:
			respCh <- turn.Respond(req)
		default:
			respCh <- turn.Response
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info {
	return Info{Name: m.name, Provider: "scripted", SupportsTools: true}
}
