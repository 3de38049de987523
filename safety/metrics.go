package safety

import (
	"fmt"
	"strings"
	"time"
)

// StateKey is the session state key holding the safety metrics.
const StateKey = "safety_metrics"

// Metrics counts blocked requests within a session.
type Metrics struct {
	BlockedAttempts      int      `json:"blocked_attempts"`
	LastBlockedTime      string   `json:"last_blocked_time,omitempty"`
	BlockedTermsDetected []string `json:"blocked_terms_detected"`
}

// Record registers one blocked request.
func (m *Metrics) Record(terms []string, now time.Time) {
	m.BlockedAttempts++
	m.LastBlockedTime = now.Format(time.RFC3339)
	m.BlockedTermsDetected = append(m.BlockedTermsDetected, terms...)
}

// Summary renders the metrics as the message shown to users.
func (m Metrics) Summary() string {
	if m.BlockedAttempts == 0 {
		return "No safety violations have been detected in this session."
	}

	return fmt.Sprintf("Safety system has blocked %d request(s). Last blocked: %s. Terms detected: %s.",
		m.BlockedAttempts, m.LastBlockedTime, strings.Join(m.BlockedTermsDetected, ", "))
}

// Value converts the metrics into the JSON-like form stored in session
// state. An unset LastBlockedTime is stored as nil.
func (m Metrics) Value() map[string]any {
	terms := make([]any, len(m.BlockedTermsDetected))
	for i, t := range m.BlockedTermsDetected {
		terms[i] = t
	}

	var last any
	if m.LastBlockedTime != "" {
		last = m.LastBlockedTime
	}

	return map[string]any{
		"blocked_attempts":       m.BlockedAttempts,
		"last_blocked_time":      last,
		"blocked_terms_detected": terms,
	}
}

// MetricsFromValue reads metrics back from session state. It accepts the
// in-memory form produced by Value as well as its JSON-decoded form. Any
// other value yields zero metrics.
func MetricsFromValue(v any) Metrics {
	switch t := v.(type) {
	case Metrics:
		return t
	case *Metrics:
		if t != nil {
			return *t
		}
	case map[string]any:
		var m Metrics

		switch n := t["blocked_attempts"].(type) {
		case int:
			m.BlockedAttempts = n
		case int64:
			m.BlockedAttempts = int(n)
		case float64:
			m.BlockedAttempts = int(n)
		}

		if s, ok := t["last_blocked_time"].(string); ok {
			m.LastBlockedTime = s
		}

		switch terms := t["blocked_terms_detected"].(type) {
		case []string:
			m.BlockedTermsDetected = append(m.BlockedTermsDetected, terms...)
		case []any:
			for _, term := range terms {
				if s, ok := term.(string); ok {
					m.BlockedTermsDetected = append(m.BlockedTermsDetected, s)
				}
			}
		}

		return m
	}

	return Metrics{}
}
