// Package heading maps continuous headings onto the discrete set of rotated
// marker icons available to the rendering layer.
//
// The orientation set is N evenly spaced buckets starting at 0° (North) and
// increasing clockwise. A heading snaps to the bucket with the smallest
// circular distance; a heading exactly halfway between two buckets snaps to
// the numerically lower bucket value, so 337.5° with 45° buckets yields 0.
package heading

import (
	"fmt"
	"math"

	"github.com/unklstewy/flightwatch/pkg/coordinates"
)

// DefaultCount is the number of icon orientations shipped with the map assets.
const DefaultCount = 8

// Orientations is a fixed partition of the circle into evenly spaced buckets.
type Orientations struct {
	count int
	step  int
}

// Default is the eight-bucket (every 45°) orientation set.
var Default = MustNew(DefaultCount)

// New creates an orientation set with count buckets.
// count must be positive and divide 360 so every bucket is a whole degree.
func New(count int) (Orientations, error) {
	if count <= 0 || count > 360 {
		return Orientations{}, fmt.Errorf("orientation count %d out of range 1-360", count)
	}
	if 360%count != 0 {
		return Orientations{}, fmt.Errorf("orientation count %d does not divide 360", count)
	}
	return Orientations{count: count, step: 360 / count}, nil
}

// MustNew is like New but panics on an invalid count.
func MustNew(count int) Orientations {
	o, err := New(count)
	if err != nil {
		panic(err)
	}
	return o
}

// Count returns the number of buckets.
func (o Orientations) Count() int {
	return o.count
}

// Step returns the spacing between buckets in degrees.
func (o Orientations) Step() int {
	return o.step
}

// Angles returns every bucket value in ascending order.
func (o Orientations) Angles() []int {
	angles := make([]int, o.count)
	for i := range angles {
		angles[i] = i * o.step
	}
	return angles
}

// Contains reports whether angle is a member of the set.
func (o Orientations) Contains(angle int) bool {
	if o.step == 0 {
		return angle == 0
	}
	return angle >= 0 && angle < 360 && angle%o.step == 0
}

// Snap returns the bucket nearest to degrees.
// Inputs outside [0, 360) are wrapped first; NaN and Inf snap to 0.
func (o Orientations) Snap(degrees float64) int {
	if o.step == 0 || math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return 0
	}

	a := coordinates.NormalizeAzimuth(degrees)
	step := float64(o.step)

	lower := math.Floor(a/step) * step
	upper := lower + step

	below := a - lower
	above := upper - a

	lowerBucket := int(lower) % 360
	upperBucket := int(upper) % 360

	switch {
	case below < above:
		return lowerBucket
	case above < below:
		return upperBucket
	default:
		return min(lowerBucket, upperBucket)
	}
}

// IconName returns the marker asset name for a snapped angle, e.g. "plane-045".
func IconName(angle int) string {
	return fmt.Sprintf("plane-%03d", angle)
}
