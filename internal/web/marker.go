package web

import (
	"time"

	"github.com/unklstewy/flightwatch/pkg/flight"
	"github.com/unklstewy/flightwatch/pkg/heading"
)

// Marker is one aircraft as the map layer draws it.
type Marker struct {
	ID            string  `json:"id"`
	Callsign      string  `json:"callsign,omitempty"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	GroundSpeed   float64 `json:"ground_speed"`
	RotationAngle int     `json:"rotation_angle"`
	Icon          string  `json:"icon"`
}

// FlightsResponse is the body of GET /api/v1/flights and of each websocket message.
type FlightsResponse struct {
	Airline   string    `json:"airline"`
	Zone      string    `json:"zone"`
	FetchedAt time.Time `json:"fetched_at"`
	Count     int       `json:"count"`
	Flights   []Marker  `json:"flights"`
}

func newFlightsResponse(snap flight.Snapshot) FlightsResponse {
	markers := make([]Marker, 0, len(snap.Records))
	for _, rec := range snap.Records {
		markers = append(markers, Marker{
			ID:            rec.ID,
			Callsign:      rec.Callsign,
			Latitude:      rec.Latitude,
			Longitude:     rec.Longitude,
			Origin:        rec.Origin,
			Destination:   rec.Destination,
			GroundSpeed:   rec.GroundSpeed,
			RotationAngle: rec.RotationAngle,
			Icon:          heading.IconName(rec.RotationAngle),
		})
	}

	return FlightsResponse{
		Airline:   airlineLabel(snap.Airline),
		Zone:      snap.Zone,
		FetchedAt: snap.FetchedAt,
		Count:     len(markers),
		Flights:   markers,
	}
}

func airlineLabel(airline string) string {
	if airline == flight.AllAirlines {
		return "all"
	}
	return airline
}
