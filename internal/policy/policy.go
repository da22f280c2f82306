// Package policy loads an optional default RetrievalPolicy from a YAML
// file on disk.
package policy

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chongliujia/engram/internal/types"
)

// file is the on-disk shape of a policy YAML file, e.g.:
//
//	max_facts: 50
//	max_episodes: 20
//	max_procedures: 10
//	max_insights: 20
//	max_events: 20
//	max_total_candidates: 200
type file struct {
	MaxFacts           int `yaml:"max_facts"`
	MaxEpisodes        int `yaml:"max_episodes"`
	MaxProcedures      int `yaml:"max_procedures"`
	MaxInsights        int `yaml:"max_insights"`
	MaxEvents          int `yaml:"max_events"`
	MaxTotalCandidates int `yaml:"max_total_candidates"`
}

// Load reads a RetrievalPolicy from path, overlaying any set fields onto
// DefaultRetrievalPolicy(). A missing or unparsable file yields the
// unmodified default rather than an error; policy files are an optional
// override, not a required input.
func Load(path string) types.RetrievalPolicy {
	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied config path
	if err != nil {
		return types.DefaultRetrievalPolicy()
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return types.DefaultRetrievalPolicy()
	}
	return types.RetrievalPolicy{
		MaxFacts:           f.MaxFacts,
		MaxEpisodes:        f.MaxEpisodes,
		MaxProcedures:      f.MaxProcedures,
		MaxInsights:        f.MaxInsights,
		MaxEvents:          f.MaxEvents,
		MaxTotalCandidates: f.MaxTotalCandidates,
	}.WithDefaults()
}
