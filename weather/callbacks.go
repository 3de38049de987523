package weather

import (
	"strings"

	"github.com/hupe1980/weathermesh/agent"
	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/flow"
	"github.com/hupe1980/weathermesh/model"
	"github.com/hupe1980/weathermesh/safety"
)

// InitState returns a before-agent callback that seeds the default
// preferences. withSafety also seeds empty safety metrics.
func InitState(withSafety bool) agent.BeforeAgentCallback {
	return func(cc *core.CallbackContext) error {
		seed(cc, KeyTemperatureUnit, Celsius)
		seed(cc, KeyCityHistory, []any{})

		if withSafety {
			seed(cc, safety.StateKey, safety.Metrics{}.Value())
		}

		cc.LogDebug("weather.state.current", "agent", cc.AgentName(), "state", cc.State())

		return nil
	}
}

// seed stages def for a missing key. A value stored meanwhile by a
// concurrent branch is kept.
func seed(cc *core.CallbackContext, key string, def any) {
	if _, ok := cc.GetState(key); ok {
		return
	}

	cc.UpdateState(key, func(current any, exists bool) any {
		if exists {
			return current
		}
		return core.DeepCopy(def)
	})
}

// EnsureNonEmptyText replaces empty text parts with a single space, since
// some providers reject empty text.
func EnsureNonEmptyText(_ *core.CallbackContext, req *model.Request) error {
	for i := range req.Contents {
		for j, p := range req.Contents[i].Parts {
			if tp, ok := p.(core.TextPart); ok && tp.Text == "" {
				req.Contents[i].Parts[j] = core.TextPart{Text: " "}
			}
		}
	}
	return nil
}

// SafetyCheck returns a before-model callback that screens the user message
// of the run with filter. A blocked request is recorded in the safety
// metrics and its contents are replaced by safety.SafetyPrompt, so the
// model answers with a refusal. Clean requests get EnsureNonEmptyText.
func SafetyCheck(filter *safety.Filter) flow.BeforeModelCallback {
	if filter == nil {
		filter = safety.NewFilter()
	}

	return func(cc *core.CallbackContext, req *model.Request) error {
		detected := filter.Detect(inputText(cc.UserContent()))
		if len(detected) == 0 {
			return EnsureNonEmptyText(cc, req)
		}

		at := now()
		cc.UpdateState(safety.StateKey, func(current any, _ bool) any {
			metrics := safety.MetricsFromValue(current)
			metrics.Record(detected, at)
			return metrics.Value()
		})
		metrics := safety.MetricsFromValue(stateValue(cc, safety.StateKey))

		req.Contents = []core.Content{{
			Role:  "user",
			Parts: []core.Part{core.TextPart{Text: safety.SafetyPrompt}},
		}}

		cc.LogWarn("safety.blocked", "agent", cc.AgentName(), "terms", detected, "blocked_attempts", metrics.BlockedAttempts)

		return nil
	}
}

func stateValue(s StateReader, key string) any {
	v, _ := s.GetState(key)
	return v
}

func inputText(c core.Content) string {
	var texts []string
	for _, p := range c.Parts {
		if tp, ok := p.(core.TextPart); ok && tp.Text != "" {
			texts = append(texts, strings.ToLower(tp.Text))
		}
	}
	return strings.Join(texts, " ")
}
