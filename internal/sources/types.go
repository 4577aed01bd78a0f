package sources

import "strings"

// Type identifies one archive source family. It is the first half of every
// natural key and the partition key for import cursors.
type Type string

const (
	Instagram Type = "instagram"
	Twitter   Type = "twitter"
	Swarm     Type = "swarm"
)

var allTypes = []Type{Instagram, Twitter, Swarm}

// All returns the ordered list of known source types.
func All() []Type {
	cp := make([]Type, len(allTypes))
	copy(cp, allTypes)
	return cp
}

// Parse converts a string into a known Type.
func Parse(value string) (Type, bool) {
	normalized := Type(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range allTypes {
		if t == normalized {
			return t, true
		}
	}
	return "", false
}
