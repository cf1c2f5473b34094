package reconcile

import (
	"fmt"
	"strings"
)

// HeadingPolicy selects where a matched aircraft's raw heading comes from.
// A reconciler applies one policy to every record; policies are never mixed.
type HeadingPolicy int

const (
	// PolicyBearing derives the heading from the great-circle bearing between
	// the previous and current positions.
	PolicyBearing HeadingPolicy = iota

	// PolicyTrack uses the provider-reported ground track.
	PolicyTrack
)

// String returns the config name of the policy.
func (p HeadingPolicy) String() string {
	switch p {
	case PolicyBearing:
		return "bearing"
	case PolicyTrack:
		return "track"
	default:
		return fmt.Sprintf("HeadingPolicy(%d)", int(p))
	}
}

// ParsePolicy parses a config value. The empty string selects PolicyBearing.
func ParsePolicy(s string) (HeadingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bearing":
		return PolicyBearing, nil
	case "track":
		return PolicyTrack, nil
	default:
		return PolicyBearing, fmt.Errorf("unknown heading policy %q (want bearing or track)", s)
	}
}
