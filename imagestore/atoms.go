// Package imagestore maps image labels to concrete paths in the page-image
// store and fetches their bytes.
//
// atoms.go contains pure tier-marker and label-filtering functions.
package imagestore

import "strings"

// Tier identifies the image quality variant of a folder.
type Tier string

const (
	// TierHigh is the high-quality image directory.
	TierHigh Tier = "HI"

	// TierLow is the low-quality image directory.
	TierLow Tier = "LO"
)

// Quality marker suffixes embedded in image labels by the digitization
// workflow.
const (
	markerHigh = "_HI"
	markerLow  = "_LO"
)

// TierFromLabel inspects an image label for a quality marker.
// Returns the matching tier and true, or ("", false) when the label carries
// no marker. Pure function.
func TierFromLabel(label string) (Tier, bool) {
	switch {
	case strings.Contains(label, markerHigh):
		return TierHigh, true
	case strings.Contains(label, markerLow):
		return TierLow, true
	default:
		return "", false
	}
}

// FilterLabels removes labels that name internal placeholder/cover images
// rather than real pages. Pure function; the input slice is not modified.
func FilterLabels(labels []string, excluded []string) []string {
	if len(excluded) == 0 {
		return labels
	}

	excludedSet := make(map[string]struct{}, len(excluded))
	for _, name := range excluded {
		excludedSet[name] = struct{}{}
	}

	result := make([]string, 0, len(labels))
	for _, label := range labels {
		if _, skip := excludedSet[label]; skip {
			continue
		}
		result = append(result, label)
	}
	return result
}
