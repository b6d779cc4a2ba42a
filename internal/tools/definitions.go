// Package tools defines the function-calling tool surface offered to the
// model, and the executor contract for running tool calls.
package tools

import (
	"github.com/tmc/langchaingo/llms"
)

func stringParam(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func numberParam(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}

func objectSchema(required []string, properties map[string]any) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func function(name, description string, parameters map[string]any) llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// definitions maps tool name to its function-calling definition. The
// payloads stay opaque JSON end to end: the model fills them, executors
// parse them, nothing in between looks inside.
var definitions = map[string]llms.Tool{
	"web_search": function("web_search",
		"Search the web for current information on a topic.",
		objectSchema([]string{"queries"}, map[string]any{
			"queries": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Search queries to run, most specific first.",
			},
			"max_results": numberParam("Maximum results per query."),
		})),
	"retrieve": function("retrieve",
		"Retrieve and extract the readable content of a URL.",
		objectSchema([]string{"url"}, map[string]any{
			"url": stringParam("The URL to fetch."),
		})),
	"get_weather_data": function("get_weather_data",
		"Get current weather and forecast for a location.",
		objectSchema([]string{"latitude", "longitude"}, map[string]any{
			"latitude":  numberParam("Latitude of the location."),
			"longitude": numberParam("Longitude of the location."),
		})),
	"text_translate": function("text_translate",
		"Translate text between languages.",
		objectSchema([]string{"text", "to"}, map[string]any{
			"text": stringParam("The text to translate."),
			"to":   stringParam("Target language code, e.g. \"de\"."),
		})),
	"nearby_search": function("nearby_search",
		"Find places of a given type near a location.",
		objectSchema([]string{"location", "type"}, map[string]any{
			"location": stringParam("Place or address to search around."),
			"type":     stringParam("Kind of place, e.g. \"restaurant\"."),
			"radius":   numberParam("Search radius in meters."),
		})),
	"track_flight": function("track_flight",
		"Track a flight's live status by flight number.",
		objectSchema([]string{"flight_number"}, map[string]any{
			"flight_number": stringParam("IATA flight number, e.g. \"OS61\"."),
		})),
	"movie_or_tv_search": function("movie_or_tv_search",
		"Look up details about a movie or TV show.",
		objectSchema([]string{"query"}, map[string]any{
			"query": stringParam("Title to search for."),
		})),
	"trending_movies": function("trending_movies",
		"Get currently trending movies.",
		objectSchema(nil, map[string]any{})),
	"trending_tv": function("trending_tv",
		"Get currently trending TV shows.",
		objectSchema(nil, map[string]any{})),
	"datetime": function("datetime",
		"Get the current date and time, optionally in a timezone.",
		objectSchema(nil, map[string]any{
			"timezone": stringParam("IANA timezone, e.g. \"Europe/Vienna\". Defaults to UTC."),
		})),
	"mcp_search": function("mcp_search",
		"Search connected knowledge sources.",
		objectSchema([]string{"query"}, map[string]any{
			"query": stringParam("What to search for."),
		})),
	"academic_search": function("academic_search",
		"Search academic papers and publications.",
		objectSchema([]string{"query"}, map[string]any{
			"query": stringParam("Topic or paper to search for."),
		})),
	"youtube_search": function("youtube_search",
		"Search YouTube videos with transcripts and timestamps.",
		objectSchema([]string{"query"}, map[string]any{
			"query": stringParam("What to search for."),
		})),
	"x_search": function("x_search",
		"Search posts on X.",
		objectSchema([]string{"query"}, map[string]any{
			"query":      stringParam("What to search for."),
			"start_date": stringParam("Earliest post date, YYYY-MM-DD."),
			"end_date":   stringParam("Latest post date, YYYY-MM-DD."),
		})),
	"code_interpreter": function("code_interpreter",
		"Run Python code for calculation, analysis or charting.",
		objectSchema([]string{"code"}, map[string]any{
			"title": stringParam("Short title for the computation."),
			"code":  stringParam("Python code to execute."),
		})),
	"stock_chart": function("stock_chart",
		"Get stock price history and render a chart.",
		objectSchema([]string{"ticker"}, map[string]any{
			"ticker":   stringParam("Stock ticker symbol, e.g. \"AAPL\"."),
			"interval": stringParam("Chart interval, e.g. \"1d\", \"1mo\"."),
		})),
	"currency_converter": function("currency_converter",
		"Convert an amount between currencies.",
		objectSchema([]string{"amount", "from", "to"}, map[string]any{
			"amount": numberParam("Amount to convert."),
			"from":   stringParam("Source currency code."),
			"to":     stringParam("Target currency code."),
		})),
	"reason_search": function("reason_search",
		"Run a multi-step research plan across sources and synthesize the findings.",
		objectSchema([]string{"topic"}, map[string]any{
			"topic": stringParam("Research topic."),
			"depth": stringParam("Research depth, \"basic\" or \"advanced\"."),
		})),
	"memory_search": function("memory_search",
		"Search the user's saved memories.",
		objectSchema([]string{"query"}, map[string]any{
			"query": stringParam("What to recall."),
		})),
}

// Definition returns the tool definition for a name.
func Definition(name string) (llms.Tool, bool) {
	def, ok := definitions[name]
	return def, ok
}

// Definitions resolves names into tool definitions, preserving order.
// Unknown names are skipped.
func Definitions(names []string) []llms.Tool {
	out := make([]llms.Tool, 0, len(names))
	for _, name := range names {
		if def, ok := definitions[name]; ok {
			out = append(out, def)
		}
	}
	return out
}

// Names returns all defined tool names.
func Names() []string {
	names := make([]string, 0, len(definitions))
	for name := range definitions {
		names = append(names, name)
	}
	return names
}
