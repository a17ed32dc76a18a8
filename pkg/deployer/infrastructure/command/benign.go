package command

import "strings"

// DefaultBenignMarkers are stderr fragments of container teardown failures
// that are safe to ignore: there was simply nothing to tear down, or the
// compose network is still referenced and will be reused.
var DefaultBenignMarkers = []string{
	"No container found",
	"No containers to remove",
	"has active endpoints",
}

func MatchesBenign(stderr string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}
