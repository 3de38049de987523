package weather

import (
	"github.com/hupe1980/weathermesh/agent"
	"github.com/hupe1980/weathermesh/model"
	"github.com/hupe1980/weathermesh/safety"
	"github.com/hupe1980/weathermesh/tool"
)

// Agent names.
const (
	BasicAgentName                  = "weather_time_agent"
	ValidationAgentName             = "city_validation_agent"
	WeatherAgentName                = "weather_agent"
	TimeAgentName                   = "time_agent"
	CombinationAgentName            = "combination_agent"
	PreferencesAgentName            = "preferences_agent"
	ParallelGroupName               = "parallel_weather_time_agent"
	SequentialAgentName             = "enhanced_weather_time_agent"
	ParallelAgentName               = "enhanced_parallel_weather_time_agent"
	StatefulAgentName               = "stateful_weather_bot"
	ParallelStatefulAgentName       = "stateful_parallel_weather_time_agent"
	WeatherPreferencesAgentName     = "weather_preferences_agent"
	SafeParallelAgentName           = "safe_stateful_parallel_weather_time_agent"
	SafeWeatherPreferencesAgentName = "safe_weather_preferences_agent"
)

const (
	featuresText = "Current features you support: " +
		"- Weather information for supported cities " +
		"- Time information for supported cities " +
		"- Setting temperature unit preference (celsius/fahrenheit) " +
		"- Remembering recently searched cities"

	preferencesIntro = "You are a helpful weather assistant that remembers user preferences like temperature units. " +
		"You can provide weather and time information for cities, and you adapt your responses based on user preferences. "

	safetyText = "You have built-in safety features that prevent responding to harmful, dangerous, " +
		"illegal, or unethical requests. If a user asks for something inappropriate, " +
		"you will politely explain that you cannot assist with such requests."
)

// level describes how much of the stateful machinery an agent tree uses.
type level struct {
	variant Variant
	init    bool // seed state before each agent
	safe    bool // screen requests and mask output
}

func (l level) options(description, instruction string, tools ...tool.Tool) func(o *agent.ModelAgentOptions) {
	return func(o *agent.ModelAgentOptions) {
		o.Description = description
		o.Instruction = agent.NewInstructionFromText(instruction)
		o.Tools = tools

		if l.init {
			o.BeforeAgent = InitState(l.safe)
		}

		if l.safe {
			o.BeforeModel = SafetyCheck(safety.NewFilter())
			o.AfterModel = safety.NewMasker().AfterModel
		}
	}
}

func (l level) suffix(stateless, stateful string) string {
	if l.variant == Tracking {
		return stateful
	}
	return stateless
}

// NewBasicAgent builds the single tool-calling agent.
func NewBasicAgent(m model.Model) *agent.ModelAgent {
	return agent.NewModelAgent(BasicAgentName, m, level{}.options(
		"Agent to answer questions about the time and weather in a city.",
		"You are a helpful agent who can answer user questions about the time and weather in a city.",
		NewWeatherTool(Stateless),
		NewTimeTool(Stateless),
	))
}

func newValidationAgent(m model.Model, l level) *agent.ModelAgent {
	return agent.NewModelAgent(ValidationAgentName, m, l.options(
		"Agent that validates and corrects city names",
		"You are an agent that validates city names, correcting spelling errors and "+
			"expanding shorthand names to their full form."+l.suffix("", " You also update the search history."),
		NewValidateCityTool(l.variant),
	))
}

func newWeatherAgent(m model.Model, l level) *agent.ModelAgent {
	instruction := "You are a helpful agent who can provide weather information for a city."
	if l.variant != Stateless {
		instruction += " You adapt your responses to show temperatures in the user's preferred unit." +
			l.suffix("", " You also track the cities that users search for in their history.")
	}

	return agent.NewModelAgent(WeatherAgentName, m, l.options(
		"Agent to answer questions about the weather in a city",
		instruction,
		NewWeatherTool(l.variant),
	))
}

func newTimeAgent(m model.Model, l level) *agent.ModelAgent {
	return agent.NewModelAgent(TimeAgentName, m, l.options(
		"Agent to answer questions about the current time in a city",
		"You are a helpful agent who can provide current time information for a city."+
			l.suffix("", " You also track the cities that users search for in their history."),
		NewTimeTool(l.variant),
	))
}

func newCombinationAgent(m model.Model, l level) *agent.ModelAgent {
	instruction := "You are a helpful agent who combines weather and time information for a city " +
		"into a comprehensive response."
	if l.variant != Stateless {
		instruction = "You are a helpful agent who combines weather and time information for a city " +
			"into a comprehensive response, respecting the user's temperature unit preference."
	}

	return agent.NewModelAgent(CombinationAgentName, m, l.options(
		"Agent that combines weather and time information",
		instruction,
		NewCombineTool(l.variant),
	))
}

func newParallelGroup(m model.Model, l level) *agent.ParallelAgent {
	p := agent.NewParallelAgent(ParallelGroupName, 0, newWeatherAgent(m, l), newTimeAgent(m, l))
	if l.variant == Stateless {
		p.SetDescription("Gets weather and time information in parallel")
	} else {
		p.SetDescription("Gets weather and time information in parallel while maintaining state")
	}
	return p
}

func newPipeline(name, description string, m model.Model, l level) *agent.SequentialAgent {
	s := agent.NewSequentialAgent(name,
		newValidationAgent(m, l),
		newParallelGroup(m, l),
		newCombinationAgent(m, l),
	)
	s.SetDescription(description)

	if l.init {
		s.SetBeforeAgent(InitState(l.safe))
	}

	return s
}

// NewSequentialAgent builds validation followed by the weather/time agent.
func NewSequentialAgent(m model.Model) *agent.SequentialAgent {
	weatherTime := agent.NewModelAgent(BasicAgentName, m, level{}.options(
		"Agent to answer questions about the time and weather in a city.",
		"You are a helpful agent who can answer user questions about the time and weather in a city.",
		NewWeatherTool(Stateless),
		NewTimeTool(Stateless),
	))

	s := agent.NewSequentialAgent(SequentialAgentName, newValidationAgent(m, level{}), weatherTime)
	s.SetDescription("Enhanced agent that validates city names before answering questions about " +
		"weather and time for the corrected city.")

	return s
}

// NewParallelAgent builds validation, parallel weather and time lookups
// and a final combination step.
func NewParallelAgent(m model.Model) *agent.SequentialAgent {
	return newPipeline(ParallelAgentName,
		"Enhanced agent that validates city names before answering questions about "+
			"weather and time in parallel for the corrected city, then combines the results.",
		m, level{})
}

// NewStatefulAgent builds the single stateful bot that remembers the
// temperature unit and recent cities. Its answers are kept in state under
// last_response.
func NewStatefulAgent(m model.Model) *agent.ModelAgent {
	l := level{variant: Stateful, init: true}

	return agent.NewModelAgent(StatefulAgentName, m, l.options(
		"A stateful weather bot that remembers user preferences",
		"You are a helpful weather assistant that remembers user preferences like temperature units. "+
			"You can provide weather and time information for cities, and you adapt your responses based on user preferences. "+
			"You can also update user preferences when requested. "+
			"\n\n"+
			"When a user asks for weather, use the get_stateful_weather tool, which will automatically use their preferred temperature unit. "+
			"If a user says they prefer Celsius or Fahrenheit, use the update_temperature_preference tool to update their preference. "+
			"If a user asks about their recent searches, use the get_recent_cities tool. "+
			"\n\n"+
			featuresText,
		NewValidateCityTool(Stateful),
		NewWeatherTool(Stateful, func(o *ToolOptions) { o.Name = ToolStatefulWeather }),
		NewTimeTool(Stateful, func(o *ToolOptions) { o.Name = ToolStatefulTime }),
		NewUpdatePreferenceTool(),
		NewRecentCitiesTool(),
	), withNonEmptyText, withOutputKey)
}

// NewParallelStatefulAgent builds the parallel pipeline with shared state.
func NewParallelStatefulAgent(m model.Model) *agent.SequentialAgent {
	return newPipeline(ParallelStatefulAgentName,
		"Enhanced stateful agent that validates city names before answering questions about "+
			"weather and time in parallel for the corrected city, then combines the results. "+
			"The agent maintains state about user preferences and search history.",
		m, level{variant: Tracking, init: true})
}

// NewPreferencesAgent builds the agent that manages user preferences. With
// safe it also screens requests and reports safety metrics. No pipeline in
// this package includes it; it is a standalone building block for callers
// composing their own trees, for example next to NewParallelStatefulAgent.
func NewPreferencesAgent(m model.Model, safe bool) *agent.ModelAgent {
	l := level{variant: Tracking, init: true, safe: safe}

	tools := []tool.Tool{NewUpdatePreferenceTool(), NewRecentCitiesTool()}
	if safe {
		tools = append(tools, NewSafetyMetricsTool())
	}

	return agent.NewModelAgent(PreferencesAgentName, m, l.options(
		"Agent that manages user preferences",
		"You are a helpful agent who manages user preferences, such as temperature units. "+
			"You can update preferences and provide information about current settings.",
		tools...,
	))
}

// NewWeatherPreferencesAgent builds the standalone agent handling every
// weather operation including preferences.
func NewWeatherPreferencesAgent(m model.Model) *agent.ModelAgent {
	l := level{variant: Tracking, init: true}

	return agent.NewModelAgent(WeatherPreferencesAgentName, m, l.options(
		"A standalone agent that can handle all weather operations including preferences",
		preferencesIntro+
			"You can also update user preferences when requested and show search history."+
			"\n\n"+
			featuresText,
		NewValidateCityTool(Tracking),
		NewWeatherTool(Tracking),
		NewTimeTool(Tracking),
		NewUpdatePreferenceTool(),
		NewRecentCitiesTool(),
		NewCombineTool(Tracking),
	), withNonEmptyText, withOutputKey)
}

// NewSafeParallelAgent builds the stateful parallel pipeline with the
// safety layer on every model agent.
func NewSafeParallelAgent(m model.Model) *agent.SequentialAgent {
	return newPipeline(SafeParallelAgentName,
		"Enhanced stateful agent with safety checks that validates city names before answering questions about "+
			"weather and time in parallel for the corrected city, then combines the results. "+
			"The agent maintains state about user preferences and search history.",
		m, level{variant: Tracking, init: true, safe: true})
}

// NewSafeAgent builds the standalone agent with the safety layer.
func NewSafeAgent(m model.Model) *agent.ModelAgent {
	l := level{variant: Tracking, init: true, safe: true}

	return agent.NewModelAgent(SafeWeatherPreferencesAgentName, m, l.options(
		"A standalone agent that can handle all weather operations including preferences, with safety checks",
		preferencesIntro+
			"You can also update user preferences when requested and show search history."+
			"\n\n"+
			safetyText+
			"\n\n"+
			featuresText+" "+
			"- Safety metrics tracking",
		NewValidateCityTool(Tracking),
		NewWeatherTool(Tracking),
		NewTimeTool(Tracking),
		NewUpdatePreferenceTool(),
		NewRecentCitiesTool(),
		NewSafetyMetricsTool(),
		NewCombineTool(Tracking),
	), withOutputKey)
}

func withOutputKey(o *agent.ModelAgentOptions) { o.OutputKey = KeyLastResponse }

func withNonEmptyText(o *agent.ModelAgentOptions) { o.BeforeModel = EnsureNonEmptyText }
