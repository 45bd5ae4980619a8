package searchindex

import "github.com/toolmesh/gateway/internal/registry"

// popularityScore implements the deterministic scoring formula: +20 for
// an official entry, +10 for a featured entry, +2 per category up to
// three, +15 for the MCP official source, +5 for a docker-sourced entry,
// +3 when a container image is present.
func popularityScore(e registry.Entry) float64 {
	score := 0.0
	if e.Official {
		score += 20
	}
	if e.Featured {
		score += 10
	}
	catCount := len(e.Categories)
	if catCount > 3 {
		catCount = 3
	}
	score += float64(catCount) * 2
	if e.Source == registry.SourceMCPOfficial {
		score += 15
	}
	if e.Source == registry.SourceDocker {
		score += 5
	}
	if e.ContainerImage != "" {
		score += 3
	}
	return score
}
