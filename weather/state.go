package weather

import (
	"strings"

	"github.com/hupe1980/weathermesh/core"
)

// Session state keys.
const (
	KeyTemperatureUnit = "temperature_unit"
	KeyCityHistory     = "city_history"
	KeyLastResponse    = "last_response"
)

// Temperature units.
const (
	Celsius    = "celsius"
	Fahrenheit = "fahrenheit"
)

// MaxCityHistory bounds the number of remembered cities.
const MaxCityHistory = 5

// StateReader is implemented by core.ToolContext and core.CallbackContext.
type StateReader interface {
	GetState(key string) (any, bool)
}

// State reads and stages session state. UpdateState is used for values
// derived from their previous value, such as the city history.
type State interface {
	StateReader
	SetState(key string, value any)
	UpdateState(key string, fn core.StateUpdate)
}

// TemperatureUnit returns the preferred unit, celsius when unset.
func TemperatureUnit(s StateReader) string {
	if v, ok := s.GetState(KeyTemperatureUnit); ok {
		if unit, ok := v.(string); ok && unit != "" {
			return strings.ToLower(unit)
		}
	}
	return Celsius
}

// CityHistory returns the recently searched cities, oldest first.
// Persisted state decodes lists as []any, so both forms are accepted.
func CityHistory(s StateReader) []string {
	v, _ := s.GetState(KeyCityHistory)
	return historyOf(v)
}

func historyOf(v any) []string {
	switch t := v.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, c := range t {
			if city, ok := c.(string); ok {
				out = append(out, city)
			}
		}
		return out
	default:
		return nil
	}
}

// RecordCity appends city to the history unless it already is the most
// recent entry, keeping at most MaxCityHistory cities.
func RecordCity(s State, city string) {
	city = normalize(city)
	if city == "" {
		return
	}

	s.UpdateState(KeyCityHistory, func(current any, _ bool) any {
		return toAnySlice(appendCity(historyOf(current), city))
	})
}

func appendCity(history []string, city string) []string {
	if n := len(history); n > 0 && history[n-1] == city {
		return history
	}

	history = append(history, city)
	if len(history) > MaxCityHistory {
		history = history[len(history)-MaxCityHistory:]
	}

	return history
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
