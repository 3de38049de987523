package core

// StateUpdate derives a new value for one state key from its current value.
// It must be pure: it runs once when staged, for reads within the agent,
// and again against the persisted state when the carrying event is stored.
type StateUpdate func(current any, exists bool) any

type stateUpdate struct {
	key string
	fn  StateUpdate
}

// withoutKey drops staged updates for key, used when a plain write wins.
func withoutKey(updates []stateUpdate, key string) []stateUpdate {
	out := updates[:0:0]
	for _, u := range updates {
		if u.key != key {
			out = append(out, u)
		}
	}
	return out
}

// stageUpdate applies fn to the visible value of key, stores the result in
// delta and returns the extended update list.
func stageUpdate(
	delta map[string]any,
	updates []stateUpdate,
	key string,
	fn StateUpdate,
	get func(string) (any, bool),
) []stateUpdate {
	current, ok := get(key)
	delta[key] = fn(DeepCopy(current), ok)
	return append(updates, stateUpdate{key: key, fn: fn})
}

// addStateUpdates attaches staged updates whose key the event does not
// already set on its own.
func (e *Event) addStateUpdates(own map[string]any, updates []stateUpdate) {
	for _, u := range updates {
		if _, exists := own[u.key]; exists {
			continue
		}
		e.updates = append(e.updates, u)
	}
}

// HasStateUpdates reports whether the event carries read-modify-write
// updates that must be resolved before its delta is applied.
func (e *Event) HasStateUpdates() bool { return len(e.updates) > 0 }

// ResolveStateUpdates recomputes every staged update from current, the
// persisted state, and writes the results into Actions.StateDelta. Updates
// of the same key chain in staging order. Callers must hold the session's
// write lock between reading current and applying the delta.
func (e *Event) ResolveStateUpdates(current func(key string) (any, bool)) {
	if len(e.updates) == 0 {
		return
	}

	if e.Actions.StateDelta == nil {
		e.Actions.StateDelta = make(map[string]any, len(e.updates))
	}

	resolved := make(map[string]bool, len(e.updates))

	for _, u := range e.updates {
		var (
			v  any
			ok bool
		)

		if resolved[u.key] {
			v, ok = e.Actions.StateDelta[u.key], true
		} else {
			v, ok = current(u.key)
		}

		e.Actions.StateDelta[u.key] = u.fn(DeepCopy(v), ok)
		resolved[u.key] = true
	}

	e.updates = nil
}
