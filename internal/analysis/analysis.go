// Package analysis maps behavioral events to their reputation impact.
package analysis

import "honbap/backend/internal/config"

// PenaltyWeight returns the penaltyScore cost of a penalty kind.
// Unknown kinds cost 1, never 0: an unrecognized penalty should still sting.
func PenaltyWeight(kind string) int {
	if w, ok := config.PenaltyWeights[kind]; ok {
		return w
	}
	return 1
}
