// Package modes maps a search mode to its enabled tool set and system prompt.
package modes

import (
	"time"
)

// DefaultModeID is the mode used when a client sends an unknown mode id.
// Mode selection is client-controlled, low-trust input: resolution fails
// closed to this mode instead of erroring.
const DefaultModeID = "web"

// Mode is a named configuration selecting which tools and system prompt
// govern a conversation turn.
type Mode struct {
	ID           string
	Tools        []string
	SystemPrompt string
}

// Registry is an immutable mode table built at process start. Safe for
// concurrent use by any number of in-flight requests.
type Registry struct {
	modes map[string]Mode
}

// NewRegistry builds the registry with prompts dated to now.
func NewRegistry() *Registry {
	return NewRegistryAt(time.Now())
}

// NewRegistryAt builds the registry with prompts dated to the given time.
func NewRegistryAt(now time.Time) *Registry {
	date := now.Format("Mon, Jan 02, 2006")

	modes := make(map[string]Mode, len(modeTools))
	for id, tools := range modeTools {
		modes[id] = Mode{
			ID:           id,
			Tools:        tools,
			SystemPrompt: modePrompts[id](date),
		}
	}
	return &Registry{modes: modes}
}

// Resolve returns the mode for id, falling back to the default mode for
// unrecognized ids.
func (r *Registry) Resolve(id string) Mode {
	if m, ok := r.modes[id]; ok {
		return m
	}
	return r.modes[DefaultModeID]
}

// IDs returns all known mode ids.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.modes))
	for id := range r.modes {
		ids = append(ids, id)
	}
	return ids
}

// modeTools is the full tool set enabled per mode. Order matters: tools are
// presented to the model in this order.
var modeTools = map[string][]string{
	"web": {
		"web_search",
		"get_weather_data",
		"retrieve",
		"text_translate",
		"nearby_search",
		"track_flight",
		"movie_or_tv_search",
		"trending_movies",
		"trending_tv",
		"datetime",
		"mcp_search",
	},
	"buddy":    {},
	"academic": {"academic_search", "code_interpreter", "datetime"},
	"youtube":  {"youtube_search", "datetime"},
	"x":        {"x_search", "datetime"},
	"analysis": {"code_interpreter", "stock_chart", "currency_converter", "datetime"},
	"chat":     {},
	"extreme":  {"reason_search"},
	"memory":   {"memory_search", "datetime"},
}
