package weather

import (
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/safety"
	"github.com/hupe1980/weathermesh/tool"
)

// Status values of a Result.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the payload every weather tool returns to the model.
type Result struct {
	Status        string         `json:"status"`
	Report        string         `json:"report,omitempty"`
	Message       string         `json:"message,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	CorrectedCity string         `json:"corrected_city,omitempty"`
	OriginalCity  string         `json:"original_city,omitempty"`
	City          string         `json:"city,omitempty"`
	Cities        []string       `json:"cities,omitempty"`
	Metrics       map[string]any `json:"metrics,omitempty"`
}

func success() Result { return Result{Status: StatusSuccess} }

func failure(format string, args ...any) Result {
	return Result{Status: StatusError, ErrorMessage: fmt.Sprintf(format, args...)}
}

// Variant selects how much session state a tool uses.
type Variant int

const (
	// Stateless tools ignore session state.
	Stateless Variant = iota
	// Stateful tools honor the temperature unit; weather lookups are
	// recorded in the city history.
	Stateful
	// Tracking tools are Stateful and record every city they resolve.
	Tracking
)

func (v Variant) usesState() bool { return v != Stateless }

// now is replaced in tests.
var now = time.Now

// TimeLayout renders times like "2025-05-01 12:34:56 BST+0100".
const TimeLayout = "2006-01-02 15:04:05 MST-0700"

// ValidateCity resolves a user supplied city name.
func ValidateCity(s State, city string, v Variant) Result {
	if city == "" {
		return failure("Please provide a valid city name.")
	}

	key := normalize(city)

	if Known(key) {
		res := success()
		res.CorrectedCity = city
		if v.usesState() {
			res.CorrectedCity = key
		}
		if v == Tracking {
			RecordCity(s, key)
		}
		return res
	}

	if corrected, ok := Correct(key); ok {
		if v == Tracking {
			RecordCity(s, corrected)
		}
		res := success()
		res.CorrectedCity = corrected
		res.OriginalCity = city
		return res
	}

	return failure("I couldn't recognize '%s'. Please provide a valid city name.", city)
}

// WeatherReport returns the weather of a city. Stateless reports carry
// both units; stateful ones use the preferred unit.
func WeatherReport(s State, city string, v Variant) Result {
	key := strings.ToLower(city)

	if v.usesState() {
		RecordCity(s, key)
	}

	w, ok := Reports[key]
	if !ok {
		return failure("Weather information for '%s' is not available.", city)
	}

	var temperature string
	switch {
	case !v.usesState():
		temperature = fmt.Sprintf("%d degrees Celsius (%d degrees Fahrenheit)", w.Celsius, w.Fahrenheit)
	case TemperatureUnit(s) == Fahrenheit:
		temperature = fmt.Sprintf("%d degrees Fahrenheit", w.Fahrenheit)
	default:
		temperature = fmt.Sprintf("%d degrees Celsius", w.Celsius)
	}

	res := success()
	res.Report = fmt.Sprintf("The weather in %s is %s with a temperature of %s.", city, w.Condition, temperature)
	return res
}

// CurrentTime returns the local time of a city.
func CurrentTime(s State, city string, v Variant) Result {
	key := strings.ToLower(city)

	if v == Tracking {
		RecordCity(s, key)
	}

	zone, ok := Timezones[key]
	if !ok {
		return failure("Sorry, I don't have timezone information for %s.", city)
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		return failure("Sorry, I don't have timezone information for %s.", city)
	}

	res := success()
	res.Report = fmt.Sprintf("The current time in %s is %s", city, now().In(loc).Format(TimeLayout))
	return res
}

// UpdateTemperaturePreference stores the preferred temperature unit.
func UpdateTemperaturePreference(s State, unit string) Result {
	unit = normalize(unit)
	if unit != Celsius && unit != Fahrenheit {
		return failure("Invalid temperature unit. Please choose 'celsius' or 'fahrenheit'.")
	}

	s.SetState(KeyTemperatureUnit, unit)

	res := success()
	res.Message = fmt.Sprintf("Your temperature unit preference has been updated to %s.", unit)
	return res
}

// RecentCities lists the city history.
func RecentCities(s StateReader) Result {
	res := success()

	history := CityHistory(s)
	if len(history) == 0 {
		res.Message = "You haven't searched for any cities yet."
		return res
	}

	res.Message = "Your recently searched cities: " + strings.Join(history, ", ")
	res.Cities = history
	return res
}

// CombineInfo introduces the combined weather and time answer.
func CombineInfo(s StateReader, city string, v Variant) Result {
	if city == "" {
		return failure("No city information was provided.")
	}

	res := success()
	res.City = city

	if !v.usesState() {
		res.Message = fmt.Sprintf("Here's the information for %s:", city)
		return res
	}

	unit := "default"
	if u, ok := s.GetState(KeyTemperatureUnit); ok {
		unit = fmt.Sprint(u)
	}

	res.Message = fmt.Sprintf("Here's the information for %s (temperature displayed in %s):", city, unit)
	return res
}

// SafetyMetrics summarizes the safety metrics stored in state.
func SafetyMetrics(s StateReader) Result {
	v, _ := s.GetState(safety.StateKey)
	m := safety.MetricsFromValue(v)

	res := success()
	res.Message = m.Summary()
	res.Metrics = m.Value()
	return res
}

// Tool names.
const (
	ToolValidateCity     = "validate_city_name"
	ToolWeather          = "get_weather"
	ToolStatefulWeather  = "get_stateful_weather"
	ToolTime             = "get_current_time"
	ToolStatefulTime     = "get_stateful_time"
	ToolUpdatePreference = "update_temperature_preference"
	ToolRecentCities     = "get_recent_cities"
	ToolCombine          = "combine_weather_time_info"
	ToolSafetyMetrics    = "get_safety_metrics"
)

// ToolOptions configures a weather tool.
type ToolOptions struct {
	// Name overrides the tool name the model sees.
	Name string
}

func toolName(def string, optFns []func(o *ToolOptions)) string {
	opts := ToolOptions{Name: def}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts.Name
}

type cityArgs struct {
	City string `json:"city" description:"The name of the city."`
}

type optionalCityArgs struct {
	City string `json:"city,omitempty" description:"The city name."`
}

type unitArgs struct {
	Unit string `json:"unit" description:"The temperature unit preference (celsius or fahrenheit)."`
}

// NewValidateCityTool exposes ValidateCity.
func NewValidateCityTool(v Variant, optFns ...func(o *ToolOptions)) tool.Tool {
	return tool.NewTypedTool(toolName(ToolValidateCity, optFns),
		"Validates and corrects city names, handling shorthands and misspellings.",
		func(tc *core.ToolContext, args cityArgs) (any, error) {
			return ValidateCity(tc, args.City, v), nil
		})
}

// NewWeatherTool exposes WeatherReport.
func NewWeatherTool(v Variant, optFns ...func(o *ToolOptions)) tool.Tool {
	desc := "Retrieves the current weather report for a specified city."
	if v.usesState() {
		desc = "Retrieves the current weather report for a specified city using the user's preferred unit."
	}

	return tool.NewTypedTool(toolName(ToolWeather, optFns), desc,
		func(tc *core.ToolContext, args cityArgs) (any, error) {
			return WeatherReport(tc, args.City, v), nil
		})
}

// NewTimeTool exposes CurrentTime.
func NewTimeTool(v Variant, optFns ...func(o *ToolOptions)) tool.Tool {
	return tool.NewTypedTool(toolName(ToolTime, optFns),
		"Returns the current time in a specified city.",
		func(tc *core.ToolContext, args cityArgs) (any, error) {
			return CurrentTime(tc, args.City, v), nil
		})
}

// NewUpdatePreferenceTool exposes UpdateTemperaturePreference.
func NewUpdatePreferenceTool() tool.Tool {
	return tool.NewTypedTool(ToolUpdatePreference,
		"Updates the user's temperature unit preference.",
		func(tc *core.ToolContext, args unitArgs) (any, error) {
			res := UpdateTemperaturePreference(tc, args.Unit)
			if res.Status == StatusSuccess {
				tc.LogInfo("weather.preference.updated", "unit", normalize(args.Unit))
			}
			return res, nil
		})
}

// NewRecentCitiesTool exposes RecentCities.
func NewRecentCitiesTool() tool.Tool {
	return tool.NewTypedTool(ToolRecentCities,
		"Retrieves the user's recently searched cities.",
		func(tc *core.ToolContext, _ struct{}) (any, error) {
			return RecentCities(tc), nil
		})
}

// NewCombineTool exposes CombineInfo.
func NewCombineTool(v Variant) tool.Tool {
	return tool.NewTypedTool(ToolCombine,
		"Combines weather and time information into a single response.",
		func(tc *core.ToolContext, args optionalCityArgs) (any, error) {
			return CombineInfo(tc, args.City, v), nil
		})
}

// NewSafetyMetricsTool exposes SafetyMetrics.
func NewSafetyMetricsTool() tool.Tool {
	return tool.NewTypedTool(ToolSafetyMetrics,
		"Retrieves safety metrics from the agent's state.",
		func(tc *core.ToolContext, _ struct{}) (any, error) {
			return SafetyMetrics(tc), nil
		})
}
