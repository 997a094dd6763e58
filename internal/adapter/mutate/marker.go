package mutate

import (
	"regexp"
	"strings"
)

// MarkerDelimiter surrounds a marker name in a template: §name§.
const MarkerDelimiter = "§"

var markerPattern = regexp.MustCompile(`§([^§]+)§`)

// FindMarkers returns the distinct marker names in template in order of
// first appearance.
func FindMarkers(template string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range markerPattern.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Marker returns the placeholder text for name.
func Marker(name string) string {
	return MarkerDelimiter + name + MarkerDelimiter
}

// ReplaceMarker replaces every occurrence of §marker§ with value. The
// substitution is literal; no quoting or escaping is applied.
func ReplaceMarker(template, marker, value string) string {
	return strings.ReplaceAll(template, Marker(marker), value)
}

// ReplaceMarkers replaces each marker in values. Markers are applied in the
// order given by names so results do not depend on map iteration.
func ReplaceMarkers(template string, names []string, values map[string]string) string {
	for _, n := range names {
		if v, ok := values[n]; ok {
			template = ReplaceMarker(template, n, v)
		}
	}
	return template
}

// HasMarkers reports whether template contains at least one marker.
func HasMarkers(template string) bool {
	return markerPattern.MatchString(template)
}
