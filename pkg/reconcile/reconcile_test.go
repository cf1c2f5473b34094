package reconcile

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/unklstewy/flightwatch/pkg/flight"
	"github.com/unklstewy/flightwatch/pkg/heading"
)

func quietReconciler(opts ...Option) *Reconciler {
	return New(append([]Option{WithLogger(slog.New(slog.DiscardHandler))}, opts...)...)
}

func snapshot(records ...flight.Record) flight.Snapshot {
	return flight.Snapshot{Airline: "AFR", Zone: "europe", Records: records}
}

func rec(id string, lat, lon float64) flight.Record {
	return flight.Record{ID: id, Latitude: lat, Longitude: lon}
}

func angles(s flight.Snapshot) map[string]int {
	out := make(map[string]int, len(s.Records))
	for _, r := range s.Records {
		out[r.ID] = r.RotationAngle
	}
	return out
}

// TestReconcileEndToEnd covers the documented northbound example.
func TestReconcileEndToEnd(t *testing.T) {
	r := quietReconciler()
	prev := snapshot(rec("A1", 48.0, 2.0))
	next := snapshot(rec("A1", 48.1, 2.0))

	enriched, state := r.Reconcile(next, prev)

	if len(enriched.Records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(enriched.Records))
	}
	got := enriched.Records[0]
	if got.ID != "A1" || got.Latitude != 48.1 || got.Longitude != 2.0 {
		t.Errorf("Unexpected record %+v", got)
	}
	if got.RotationAngle != 0 {
		t.Errorf("Expected rotation 0 (north), got %d", got.RotationAngle)
	}
	if len(state.Records) != 1 || state.Records[0] != got {
		t.Errorf("Expected state to equal enriched, got %+v", state.Records)
	}
}

func TestReconcileFirstTick(t *testing.T) {
	r := quietReconciler()
	next := snapshot(
		rec("A1", 48.0, 2.0),
		rec("B2", 45.0, 5.0),
		flight.Record{ID: "C3", Latitude: 44, Longitude: 1, Track: 180, HasTrack: true, RotationAngle: 135},
	)

	for name, prev := range map[string]flight.Snapshot{
		"zero value":    {},
		"empty records": snapshot(),
	} {
		t.Run(name, func(t *testing.T) {
			enriched, _ := r.Reconcile(next, prev)
			if len(enriched.Records) != 3 {
				t.Fatalf("Expected 3 records, got %d", len(enriched.Records))
			}
			for _, f := range enriched.Records {
				if f.RotationAngle != 0 {
					t.Errorf("Expected rotation 0 for %s on first tick, got %d", f.ID, f.RotationAngle)
				}
			}
		})
	}
}

func TestReconcileDirections(t *testing.T) {
	tests := []struct {
		name string
		to   flight.Record
		want int
	}{
		{"North", rec("X", 48.1, 2.0), 0},
		{"East", rec("X", 48.0, 2.1), 90},
		{"South", rec("X", 47.9, 2.0), 180},
		{"West", rec("X", 48.0, 1.9), 270},
		{"North-east", rec("X", 48.1, 2.15), 45},
		{"South-west", rec("X", 47.9, 1.85), 225},
	}

	r := quietReconciler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enriched, _ := r.Reconcile(snapshot(tt.to), snapshot(rec("X", 48.0, 2.0)))
			if got := enriched.Records[0].RotationAngle; got != tt.want {
				t.Errorf("Expected rotation %d, got %d", tt.want, got)
			}
		})
	}
}

// TestReconcileStationary checks that an unchanged snapshot does not drift.
func TestReconcileStationary(t *testing.T) {
	r := quietReconciler()

	tick1 := snapshot(rec("A1", 48.0, 2.0))
	tick2 := snapshot(rec("A1", 48.0, 2.1))

	_, state := r.Reconcile(tick1, flight.Snapshot{})
	_, state = r.Reconcile(tick2, state)
	if state.Records[0].RotationAngle != 90 {
		t.Fatalf("Expected rotation 90 after moving east, got %d", state.Records[0].RotationAngle)
	}

	for i := 0; i < 3; i++ {
		enriched, next := r.Reconcile(tick2, state)
		if got := enriched.Records[0].RotationAngle; got != 90 {
			t.Errorf("Tick %d: expected rotation to stay 90, got %d", i, got)
		}
		state = next
	}
}

func TestReconcileUnmatchedAndDropped(t *testing.T) {
	r := quietReconciler()
	prev := snapshot(rec("OLD", 40.0, 0.0), rec("KEEP", 48.0, 2.0))
	next := snapshot(rec("KEEP", 48.0, 2.1), rec("NEW", 50.0, 3.0))

	enriched, state, summary := r.ReconcileSummary(next, prev)

	got := angles(enriched)
	if _, ok := got["OLD"]; ok {
		t.Error("Expected dropped aircraft OLD to be absent")
	}
	if got["NEW"] != 0 {
		t.Errorf("Expected NEW rotation 0, got %d", got["NEW"])
	}
	if got["KEEP"] != 90 {
		t.Errorf("Expected KEEP rotation 90, got %d", got["KEEP"])
	}
	if len(state.Records) != 2 {
		t.Errorf("Expected 2 retained records, got %d", len(state.Records))
	}

	if summary.Matched != 1 || summary.FirstSeen != 1 || summary.Dropped != 1 {
		t.Errorf("Unexpected summary %+v", summary)
	}
}

func TestReconcilePreservesOrder(t *testing.T) {
	r := quietReconciler()
	next := snapshot(rec("C", 1, 1), rec("A", 2, 2), rec("B", 3, 3))

	enriched, _ := r.Reconcile(next, snapshot(rec("A", 2, 1)))

	for i, want := range []string{"C", "A", "B"} {
		if enriched.Records[i].ID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, enriched.Records[i].ID)
		}
	}
	if enriched.Airline != "AFR" || enriched.Zone != "europe" {
		t.Errorf("Expected snapshot tags to be kept, got %q/%q", enriched.Airline, enriched.Zone)
	}
}

func TestReconcileEmpty(t *testing.T) {
	r := quietReconciler()
	enriched, state := r.Reconcile(snapshot(), snapshot(rec("A1", 48, 2)))

	if !enriched.IsEmpty() || !state.IsEmpty() {
		t.Errorf("Expected empty output, got %d/%d records", enriched.Len(), state.Len())
	}
}

func TestReconcileStateIsIndependent(t *testing.T) {
	r := quietReconciler()
	enriched, state := r.Reconcile(snapshot(rec("A1", 48, 2)), flight.Snapshot{})

	enriched.Records[0].RotationAngle = 180
	if state.Records[0].RotationAngle != 0 {
		t.Error("Expected retained state to be unaffected by changes to the enriched snapshot")
	}
}

func TestReconcileDuplicatePrevious(t *testing.T) {
	r := quietReconciler()
	prev := snapshot(rec("A1", 48.0, 2.0), rec("A1", 47.0, 2.0))
	next := snapshot(rec("A1", 48.0, 2.1))

	enriched, _, summary := r.ReconcileSummary(next, prev)

	if !summary.PreviousRejected {
		t.Error("Expected previous state to be rejected")
	}
	if got := enriched.Records[0].RotationAngle; got != 0 {
		t.Errorf("Expected rotation 0 after self-heal, got %d", got)
	}
}

func TestReconcileDuplicateNext(t *testing.T) {
	r := quietReconciler()
	next := snapshot(rec("A1", 48.0, 2.1), rec("A1", 10.0, 10.0))

	enriched, _, summary := r.ReconcileSummary(next, snapshot(rec("A1", 48.0, 2.0)))

	if len(enriched.Records) != 1 {
		t.Fatalf("Expected 1 record after dedupe, got %d", len(enriched.Records))
	}
	if enriched.Records[0].Latitude != 48.0 || enriched.Records[0].RotationAngle != 90 {
		t.Errorf("Expected first occurrence to win, got %+v", enriched.Records[0])
	}
	if summary.Duplicates != 1 {
		t.Errorf("Expected 1 duplicate, got %d", summary.Duplicates)
	}
}

func TestReconcileTrackPolicy(t *testing.T) {
	r := quietReconciler(WithPolicy(PolicyTrack))
	prev := snapshot(
		flight.Record{ID: "A1", Latitude: 48, Longitude: 2, RotationAngle: 45},
		flight.Record{ID: "B2", Latitude: 48, Longitude: 2, RotationAngle: 270},
	)
	next := snapshot(
		// moves north but reports a south-east track
		flight.Record{ID: "A1", Latitude: 48.1, Longitude: 2, Track: 130, HasTrack: true},
		flight.Record{ID: "B2", Latitude: 48.1, Longitude: 2},
		flight.Record{ID: "C3", Latitude: 48.1, Longitude: 2, Track: 90, HasTrack: true},
	)

	got := angles(first(r.Reconcile(next, prev)))

	if got["A1"] != 135 {
		t.Errorf("Expected A1 to follow track (135), got %d", got["A1"])
	}
	if got["B2"] != 270 {
		t.Errorf("Expected B2 without track to keep 270, got %d", got["B2"])
	}
	if got["C3"] != 0 {
		t.Errorf("Expected first-seen C3 to be 0, got %d", got["C3"])
	}
}

// TestReconcileWrapAround checks a 359° bearing lands on the north bucket.
func TestReconcileWrapAround(t *testing.T) {
	r := quietReconciler()
	// Heading just west of north.
	enriched, _ := r.Reconcile(snapshot(rec("A1", 48.1, 1.998)), snapshot(rec("A1", 48.0, 2.0)))
	if got := enriched.Records[0].RotationAngle; got != 0 {
		t.Errorf("Expected rotation 0, got %d", got)
	}
}

// TestReconcileAnglesInSet runs a random-ish walk and checks every angle.
func TestReconcileAnglesInSet(t *testing.T) {
	for _, count := range []int{4, 8, 12} {
		o := heading.MustNew(count)
		r := quietReconciler(WithOrientations(o))

		var state flight.Snapshot
		lat, lon := 10.0, 20.0
		for i := 0; i < 200; i++ {
			lat += float64((i*7)%5-2) * 0.01
			lon += float64((i*11)%5-2) * 0.01
			next := snapshot(rec("A1", lat, lon), rec("B2", lon/4, lat/4))

			var enriched flight.Snapshot
			enriched, state = r.Reconcile(next, state)
			for _, f := range enriched.Records {
				if !o.Contains(f.RotationAngle) {
					t.Fatalf("count %d step %d: rotation %d not in set", count, i, f.RotationAngle)
				}
			}
		}
	}
}

func TestReconcileResnapsCarriedAngle(t *testing.T) {
	r := quietReconciler(WithOrientations(heading.MustNew(4)))
	prev := snapshot(flight.Record{ID: "A1", Latitude: 48, Longitude: 2, RotationAngle: 135})

	enriched, _ := r.Reconcile(snapshot(rec("A1", 48, 2)), prev)
	if got := enriched.Records[0].RotationAngle; got != 90 {
		t.Errorf("Expected carried 135 to re-snap to 90, got %d", got)
	}
}

func TestIndexByID(t *testing.T) {
	index, err := IndexByID([]flight.Record{rec("A", 0, 0), rec("B", 1, 1)})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(index) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(index))
	}

	_, err = IndexByID([]flight.Record{rec("A", 0, 0), rec("A", 1, 1)})
	if !errors.Is(err, flight.ErrInvalidPreviousState) {
		t.Errorf("Expected ErrInvalidPreviousState, got %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    HeadingPolicy
		wantErr bool
	}{
		{"", PolicyBearing, false},
		{"bearing", PolicyBearing, false},
		{" Track ", PolicyTrack, false},
		{"compass", PolicyBearing, true},
	}

	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if PolicyTrack.String() != "track" {
		t.Errorf("Expected track, got %s", PolicyTrack.String())
	}
}

func first(a, _ flight.Snapshot) flight.Snapshot {
	return a
}
