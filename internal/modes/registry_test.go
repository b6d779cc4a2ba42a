package modes_test

import (
	"testing"
	"time"

	"github.com/nvoronin/periscope/internal/modes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKnownModes(t *testing.T) {
	r := modes.NewRegistry()

	tests := []struct {
		id        string
		toolCount int
	}{
		{"web", 11},
		{"academic", 3},
		{"youtube", 2},
		{"x", 2},
		{"analysis", 4},
		{"extreme", 1},
		{"memory", 2},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			m := r.Resolve(tt.id)
			assert.Equal(t, tt.id, m.ID)
			assert.Len(t, m.Tools, tt.toolCount)
			assert.NotEmpty(t, m.SystemPrompt)
		})
	}
}

func TestToollessModes(t *testing.T) {
	r := modes.NewRegistry()

	for _, id := range []string{"chat", "buddy"} {
		m := r.Resolve(id)
		assert.Empty(t, m.Tools, "mode %q must have no tools", id)
		assert.NotEmpty(t, m.SystemPrompt)
	}
}

func TestResolveFallsBackToWeb(t *testing.T) {
	r := modes.NewRegistry()

	web := r.Resolve("web")
	for _, id := range []string{"nonexistent-mode", "", "WEB", "web "} {
		m := r.Resolve(id)
		assert.Equal(t, web.Tools, m.Tools, "id %q", id)
		assert.Equal(t, web.SystemPrompt, m.SystemPrompt, "id %q", id)
	}
}

func TestPromptsEmbedDate(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	r := modes.NewRegistryAt(now)

	for _, id := range r.IDs() {
		m := r.Resolve(id)
		assert.Contains(t, m.SystemPrompt, "Mar 14, 2026", "mode %q prompt should carry the date", id)
	}
}

func TestWebToolOrder(t *testing.T) {
	r := modes.NewRegistry()
	m := r.Resolve("web")

	require.NotEmpty(t, m.Tools)
	assert.Equal(t, "web_search", m.Tools[0], "web_search leads the web mode tool list")
}
