package game

import (
	"slices"

	"github.com/suPer8Hu/dmbot/internal/campaign"
)

// DefaultWindowSize is how many transcript entries are forwarded to the generator.
const DefaultWindowSize = 10

// BuildContext returns the last maxExchanges turns of transcript, oldest first.
//
// Turns whose role is not recognized are dropped before the window is taken, so
// they never count against it. Legacy role names are normalized. The input is
// not modified. A non-positive maxExchanges yields an empty window; callers that
// want the default pass DefaultWindowSize.
func BuildContext(transcript []campaign.Turn, maxExchanges int) []campaign.Turn {
	if maxExchanges <= 0 {
		return []campaign.Turn{}
	}

	window := make([]campaign.Turn, 0, min(len(transcript), maxExchanges))
	for i := len(transcript) - 1; i >= 0 && len(window) < maxExchanges; i-- {
		role, ok := campaign.ParseRole(string(transcript[i].Role))
		if !ok {
			continue
		}
		window = append(window, campaign.Turn{Role: role, Content: transcript[i].Content})
	}
	slices.Reverse(window)
	return window
}
