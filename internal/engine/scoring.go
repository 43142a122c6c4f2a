package engine

import "math"

// calculateScore implements spec.md §4.2/§8's scoring formula:
// max(0, 5000 - floor(100*elapsedSeconds)), computed only for on-time
// answers; late answers always score 0 and never reach here.
func calculateScore(elapsedSeconds float64) int {
	raw := 5000 - int(math.Floor(100*elapsedSeconds))
	if raw < 0 {
		return 0
	}
	return raw
}
