// Package flight defines the fixed-shape flight records exchanged between the
// provider, the reconciler and the rendering consumers.
package flight

import "time"

const (
	// AllAirlines is the airline filter sentinel meaning "no filter".
	AllAirlines = ""

	// UnknownAirport is used when the provider has no origin or destination.
	UnknownAirport = "N/A"
)

// Record represents one tracked aircraft at a given instant.
// All positions are WGS84 decimal degrees.
type Record struct {
	// ID is the provider's flight identifier, unique within a snapshot
	ID string `json:"id"`

	// Callsign is the flight number or callsign, empty when unknown
	Callsign string `json:"callsign,omitempty"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude"`

	// Origin is the IATA code of the departure airport
	Origin string `json:"origin"`

	// Destination is the IATA code of the arrival airport
	Destination string `json:"destination"`

	// GroundSpeed in knots
	GroundSpeed float64 `json:"ground_speed"`

	// Track is the provider-reported ground track in degrees (0-359).
	// Only meaningful when HasTrack is set.
	Track    float64 `json:"track,omitempty"`
	HasTrack bool    `json:"has_track"`

	// RotationAngle is the snapped marker rotation in degrees.
	// Always a member of the active orientation set.
	RotationAngle int `json:"rotation_angle"`
}

// Snapshot is the ordered set of records returned for one polling tick.
type Snapshot struct {
	Airline   string    `json:"airline"`
	Zone      string    `json:"zone"`
	FetchedAt time.Time `json:"fetched_at"`
	Records   []Record  `json:"flights"`
}

// Len returns the number of records in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Records)
}

// IsEmpty reports whether the snapshot holds no records.
func (s Snapshot) IsEmpty() bool {
	return len(s.Records) == 0
}

// Clone returns a copy of the snapshot that shares no backing array with s.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Records != nil {
		out.Records = make([]Record, len(s.Records))
		copy(out.Records, s.Records)
	}
	return out
}

// Normalize fills defaults for optional fields.
// Missing airports become UnknownAirport and negative speeds are clamped to zero.
func (r *Record) Normalize() {
	if r.Origin == "" {
		r.Origin = UnknownAirport
	}
	if r.Destination == "" {
		r.Destination = UnknownAirport
	}
	if r.GroundSpeed < 0 {
		r.GroundSpeed = 0
	}
}

// SamePosition reports whether two records sit at exactly the same coordinates.
func SamePosition(a, b Record) bool {
	return a.Latitude == b.Latitude && a.Longitude == b.Longitude
}
