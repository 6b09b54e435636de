// Package featureflags evaluates feature flags defined in a simple
// key=value list, e.g. "cache_components=on,new_editor=25%".
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// CacheComponents gates component-level caching of rendered page fragments.
const CacheComponents = "cache_components"

// Manager evaluates feature flags for viewers.
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := normalize(parts[0])
		value := normalize(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled returns whether a flag is enabled for a given viewer.
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic viewer rollout, e.g. 25%)
func (m *Manager) Enabled(name string, viewerID uint) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	if strings.HasSuffix(value, "%") {
		pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
		if err != nil || pct <= 0 {
			return false
		}
		// Percentage rollouts only apply to identified viewers.
		if viewerID == 0 {
			return false
		}
		if pct >= 100 {
			return true
		}
		return rolloutBucket(name, viewerID) < pct
	}

	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, viewerID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), viewerID)))
	return int(h.Sum32() % 100)
}
