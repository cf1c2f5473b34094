// Package reconcile matches each polling tick against the previous one and
// assigns every aircraft a marker rotation from the active orientation set.
//
// The reconciler holds no state between calls. The caller owns the previous
// snapshot and passes it in on every tick:
//
//	enriched, state := r.Reconcile(next, prev)
//	render(enriched)
//	prev = state
package reconcile

import (
	"fmt"
	"log/slog"

	"github.com/unklstewy/flightwatch/pkg/coordinates"
	"github.com/unklstewy/flightwatch/pkg/flight"
	"github.com/unklstewy/flightwatch/pkg/heading"
)

// Summary describes what a single reconciliation did.
type Summary struct {
	// Matched is the number of records found in the previous state
	Matched int `json:"matched"`

	// FirstSeen is the number of records with no previous position
	FirstSeen int `json:"first_seen"`

	// Dropped is the number of previous records absent from the new tick
	Dropped int `json:"dropped"`

	// Duplicates is the number of repeated ids removed from the new tick
	Duplicates int `json:"duplicates"`

	// PreviousRejected is set when the previous state held duplicate ids
	// and was discarded
	PreviousRejected bool `json:"previous_rejected"`
}

// Reconciler computes rotation angles for consecutive snapshots.
type Reconciler struct {
	orientations heading.Orientations
	policy       HeadingPolicy
	logger       *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithPolicy sets the heading policy (default PolicyBearing).
func WithPolicy(p HeadingPolicy) Option {
	return func(r *Reconciler) {
		r.policy = p
	}
}

// WithOrientations sets the orientation set (default heading.Default).
func WithOrientations(o heading.Orientations) Option {
	return func(r *Reconciler) {
		r.orientations = o
	}
}

// WithLogger sets the logger used for self-healing warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		orientations: heading.Default,
		policy:       PolicyBearing,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the heading policy in use.
func (r *Reconciler) Policy() HeadingPolicy {
	return r.policy
}

// Orientations returns the orientation set in use.
func (r *Reconciler) Orientations() heading.Orientations {
	return r.orientations
}

// Reconcile enriches next using prev and returns the snapshot to render and
// the snapshot to retain for the following tick. The two are equal in value
// but share no memory. Reconcile never fails.
func (r *Reconciler) Reconcile(next, prev flight.Snapshot) (enriched, state flight.Snapshot) {
	enriched, state, _ = r.ReconcileSummary(next, prev)
	return enriched, state
}

// ReconcileSummary is Reconcile plus a description of the matching.
func (r *Reconciler) ReconcileSummary(next, prev flight.Snapshot) (enriched, state flight.Snapshot, summary Summary) {
	previous, err := IndexByID(prev.Records)
	if err != nil {
		r.logger.Warn("discarding previous state",
			slog.String("zone", prev.Zone),
			slog.Any("error", err))
		previous = nil
		summary.PreviousRejected = true
	}

	enriched = next
	enriched.Records = make([]flight.Record, 0, len(next.Records))
	seen := make(map[string]struct{}, len(next.Records))

	for _, rec := range next.Records {
		if _, dup := seen[rec.ID]; dup {
			summary.Duplicates++
			r.logger.Warn("duplicate flight id in snapshot, keeping first",
				slog.String("id", rec.ID))
			continue
		}
		seen[rec.ID] = struct{}{}

		p, matched := previous[rec.ID]
		if !matched {
			rec.RotationAngle = 0
			summary.FirstSeen++
		} else {
			rec.RotationAngle = r.rotation(p, rec)
			summary.Matched++
		}
		enriched.Records = append(enriched.Records, rec)
	}

	for id := range previous {
		if _, ok := seen[id]; !ok {
			summary.Dropped++
		}
	}

	return enriched, enriched.Clone(), summary
}

// rotation computes the snapped angle for a record seen on both ticks.
func (r *Reconciler) rotation(prev, cur flight.Record) int {
	carried := r.orientations.Snap(float64(prev.RotationAngle))

	switch r.policy {
	case PolicyTrack:
		if !cur.HasTrack {
			return carried
		}
		return r.orientations.Snap(cur.Track)
	default:
		// No movement means no bearing; keep the last orientation.
		if flight.SamePosition(prev, cur) {
			return carried
		}
		from := coordinates.Geographic{Latitude: prev.Latitude, Longitude: prev.Longitude}
		to := coordinates.Geographic{Latitude: cur.Latitude, Longitude: cur.Longitude}
		return r.orientations.Snap(coordinates.Bearing(from, to))
	}
}

// IndexByID maps records by id. A repeated id yields an error wrapping
// flight.ErrInvalidPreviousState.
func IndexByID(records []flight.Record) (map[string]flight.Record, error) {
	index := make(map[string]flight.Record, len(records))
	for _, rec := range records {
		if _, exists := index[rec.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate id %q", flight.ErrInvalidPreviousState, rec.ID)
		}
		index[rec.ID] = rec
	}
	return index, nil
}
