package weather

import (
	"strings"

	_ "time/tzdata" // get_current_time must work without a system zoneinfo database
)

// Conditions is the static weather report of a city.
type Conditions struct {
	Condition  string
	Celsius    int
	Fahrenheit int
}

// Reports maps lowercased city names to their weather.
var Reports = map[string]Conditions{
	"new york": {Condition: "sunny", Celsius: 25, Fahrenheit: 77},
	"london":   {Condition: "rainy", Celsius: 18, Fahrenheit: 64},
	"tokyo":    {Condition: "cloudy", Celsius: 22, Fahrenheit: 72},
	"sydney":   {Condition: "partly cloudy", Celsius: 27, Fahrenheit: 81},
}

// Timezones maps lowercased city names to IANA zone names.
var Timezones = map[string]string{
	"new york":    "America/New_York",
	"london":      "Europe/London",
	"tokyo":       "Asia/Tokyo",
	"sydney":      "Australia/Sydney",
	"paris":       "Europe/Paris",
	"berlin":      "Europe/Berlin",
	"mumbai":      "Asia/Kolkata",
	"los angeles": "America/Los_Angeles",
}

// Corrections maps shorthands and common misspellings to city names.
var Corrections = map[string]string{
	// shorthands
	"nyc":   "new york",
	"ny":    "new york",
	"la":    "los angeles",
	"sf":    "san francisco",
	"tokyo": "tokyo",

	// misspellings
	"sidney":   "sydney",
	"sydny":    "sydney",
	"londan":   "london",
	"londun":   "london",
	"tokio":    "tokyo",
	"new yrok": "new york",
	"new yok":  "new york",
	"paaris":   "paris",
	"pari":     "paris",
	"berln":    "berlin",
	"barlin":   "berlin",
}

// normalize lowercases and trims a city name.
func normalize(city string) string { return strings.ToLower(strings.TrimSpace(city)) }

// Known reports whether the city has weather or timezone data.
func Known(city string) bool {
	key := normalize(city)
	_, hasWeather := Reports[key]
	_, hasZone := Timezones[key]
	return hasWeather || hasZone
}

// Correct resolves a shorthand or misspelling. ok is false when the name
// has no correction.
func Correct(city string) (string, bool) {
	corrected, ok := Corrections[normalize(city)]
	return corrected, ok
}
