package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_OnOffValues(t *testing.T) {
	m := NewManager("cache_components=on, dark_mode=off, beta=true, legacy=0")

	assert.True(t, m.Enabled("cache_components", 0))
	assert.True(t, m.Enabled("beta", 1))
	assert.False(t, m.Enabled("dark_mode", 1))
	assert.False(t, m.Enabled("legacy", 1))
	assert.False(t, m.Enabled("unknown", 1))
}

func TestEnabled_IgnoresMalformedEntries(t *testing.T) {
	m := NewManager("broken, =on, cache_components=, real=on")

	assert.False(t, m.Enabled("broken", 1))
	assert.False(t, m.Enabled("cache_components", 1))
	assert.True(t, m.Enabled("real", 1))
}

func TestEnabled_CaseAndWhitespaceInsensitive(t *testing.T) {
	m := NewManager(" Cache_Components = ON ")
	assert.True(t, m.Enabled("cache_components", 0))
	assert.True(t, m.Enabled("CACHE_COMPONENTS", 0))
}

func TestEnabled_PercentageRollout(t *testing.T) {
	m := NewManager("gradual=50%")

	// Deterministic per viewer: same answer every time.
	for viewer := uint(1); viewer <= 20; viewer++ {
		first := m.Enabled("gradual", viewer)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, m.Enabled("gradual", viewer))
		}
	}

	// Boundary values.
	full := NewManager("all=100%")
	none := NewManager("none=0%")
	assert.True(t, full.Enabled("all", 1))
	assert.False(t, none.Enabled("none", 1))

	// Anonymous viewers never join a partial rollout.
	assert.False(t, m.Enabled("gradual", 0))
}

func TestEnabled_NilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.Enabled("anything", 1))
}
