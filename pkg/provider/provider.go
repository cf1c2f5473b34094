// Package provider fetches live flight snapshots from a FlightRadar24-style
// zone feed and normalizes them into flight.Record values.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/unklstewy/flightwatch/pkg/flight"
)

// Fetcher returns the flights currently visible for an airline and zone.
// airline is an ICAO airline code or flight.AllAirlines.
//
// Errors wrap flight.ErrProviderUnavailable when the source cannot be reached
// or its response cannot be decoded, and flight.ErrInvalidZone for unknown zones.
type Fetcher interface {
	Fetch(ctx context.Context, airline, zone string) (flight.Snapshot, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, airline, zone string) (flight.Snapshot, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, airline, zone string) (flight.Snapshot, error) {
	return f(ctx, airline, zone)
}

// Zone is a named bounding box understood by the feed.
type Zone struct {
	Name  string
	North float64 // top-left latitude
	South float64 // bottom-right latitude
	West  float64 // top-left longitude
	East  float64 // bottom-right longitude
}

// Bounds formats the zone the way the feed's bounds parameter expects:
// north,south,west,east.
func (z Zone) Bounds() string {
	return fmt.Sprintf("%.2f,%.2f,%.2f,%.2f", z.North, z.South, z.West, z.East)
}

var zones = map[string]Zone{
	"europe":       {Name: "europe", North: 72.57, South: 33.57, West: -16.96, East: 53.05},
	"northamerica": {Name: "northamerica", North: 75.00, South: 3.00, West: -180.00, East: -52.00},
	"southamerica": {Name: "southamerica", North: 16.00, South: -57.00, West: -96.00, East: -26.00},
	"asia":         {Name: "asia", North: 79.98, South: 12.48, West: 40.91, East: -179.79},
	"africa":       {Name: "africa", North: 39.00, South: -39.00, West: -29.00, East: 55.00},
	"oceania":      {Name: "oceania", North: 19.62, South: -55.08, West: 88.40, East: 180.00},
	"atlantic":     {Name: "atlantic", North: 52.62, South: 15.62, West: -50.70, East: -4.75},
}

// LookupZone resolves a zone name (case-insensitive).
func LookupZone(name string) (Zone, error) {
	z, ok := zones[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Zone{}, fmt.Errorf("%w: %q", flight.ErrInvalidZone, name)
	}
	return z, nil
}

// ZoneNames returns the known zone names in sorted order.
func ZoneNames() []string {
	names := make([]string, 0, len(zones))
	for name := range zones {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeAirline maps user input to a feed airline filter.
// "all", "*" and "" mean no filter; codes are upper-cased.
func NormalizeAirline(airline string) string {
	a := strings.ToUpper(strings.TrimSpace(airline))
	switch a {
	case "", "ALL", "*":
		return flight.AllAirlines
	default:
		return a
	}
}
