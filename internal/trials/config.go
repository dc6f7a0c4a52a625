package trials

import "github.com/nvandessel/psiz/internal/outcomes"

// ConfigKey is the shape-class of a trial. Dockets leave GroupID and
// SessionID at zero; Observations fill them in.
type ConfigKey struct {
	NReference int  `json:"n_reference"`
	NSelect    int  `json:"n_select"`
	IsRanked   bool `json:"is_ranked"`
	GroupID    int  `json:"group_id"`
	SessionID  int  `json:"session_id"`
}

// Config is one row of a configuration table.
type Config struct {
	ConfigKey
	// NOutcome is the number of enumerable outcomes, P(NReference, NSelect).
	NOutcome int `json:"n_outcome"`
}

// ResolveConfigs deduplicates keys into a configuration table ordered by
// first occurrence and returns, for every key, the row of its configuration.
// The returned indices are dense from 0.
func ResolveConfigs(keys []ConfigKey) ([]Config, []int) {
	seen := make(map[ConfigKey]int, 4)
	configs := make([]Config, 0, 4)
	idx := make([]int, len(keys))

	for i, k := range keys {
		c, ok := seen[k]
		if !ok {
			c = len(configs)
			seen[k] = c
			configs = append(configs, Config{
				ConfigKey: k,
				NOutcome:  outcomes.Count(k.NReference, k.NSelect),
			})
		}
		idx[i] = c
	}
	return configs, idx
}

// MaxOutcome returns the largest NOutcome in configs.
func MaxOutcome(configs []Config) int {
	m := 0
	for _, c := range configs {
		if c.NOutcome > m {
			m = c.NOutcome
		}
	}
	return m
}
