package cycles

import (
	attackgraph "github.com/securely/surfacemap/pkg/graph"
)

// ReuseCycle is a set of platforms that can all reach each other through
// lateral movement links.
type ReuseCycle struct {
	Platforms []string `json:"platforms"`
}

// FindReuseCycles finds every credential reuse loop in the attack graph.
func FindReuseCycles(ag *attackgraph.AttackGraph) []ReuseCycle {
	sccs := NewTarjanSCC(ag.Graph()).FindSCCs()

	cycles := make([]ReuseCycle, 0, len(sccs))
	for _, scc := range sccs {
		platforms := make([]string, 0, len(scc))
		for _, id := range scc {
			if name := ag.Name(id); name != "" {
				platforms = append(platforms, name)
			}
		}
		if len(platforms) > 1 {
			cycles = append(cycles, ReuseCycle{Platforms: platforms})
		}
	}
	return cycles
}
