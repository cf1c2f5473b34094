package directory

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/unklstewy/flightwatch/pkg/flight"
	"github.com/unklstewy/flightwatch/pkg/provider"
)

type fakeSource struct {
	airlines []provider.Airline
	err      error
}

func (f *fakeSource) Airlines(ctx context.Context) ([]provider.Airline, error) {
	return f.airlines, f.err
}

type fakeStore struct {
	saved    []provider.Airline
	cached   []provider.Airline
	saveErr  error
	listErr  error
	saveRuns int
}

func (f *fakeStore) ReplaceAirlines(ctx context.Context, airlines []provider.Airline, now time.Time) error {
	f.saveRuns++
	f.saved = airlines
	return f.saveErr
}

func (f *fakeStore) ListAirlines(ctx context.Context) ([]provider.Airline, error) {
	return f.cached, f.listErr
}

var (
	discard = slog.New(slog.DiscardHandler)
	sample  = []provider.Airline{
		{Name: "Air France", Code: "AF", ICAO: "AFR"},
		{Name: "British Airways", Code: "BA", ICAO: "BAW"},
	}
)

func TestRefresh(t *testing.T) {
	t.Run("From provider", func(t *testing.T) {
		store := &fakeStore{}
		d := New(&fakeSource{airlines: sample}, store, discard)

		if d.Loaded() {
			t.Error("Expected empty directory before refresh")
		}
		if err := d.Refresh(context.Background()); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !d.Loaded() {
			t.Error("Expected directory loaded")
		}
		if len(d.List()) != 2 {
			t.Errorf("Expected 2 airlines, got %d", len(d.List()))
		}
		if a, ok := d.Lookup("BAW"); !ok || a.Name != "British Airways" {
			t.Errorf("Expected BAW lookup, got %+v %v", a, ok)
		}
		if store.saveRuns != 1 || len(store.saved) != 2 {
			t.Errorf("Expected list written through to store, got %d runs", store.saveRuns)
		}
		if _, origin := d.Updated(); origin != "provider" {
			t.Errorf("Expected origin provider, got %s", origin)
		}
	})

	t.Run("Falls back to cache", func(t *testing.T) {
		store := &fakeStore{cached: sample}
		d := New(&fakeSource{err: flight.ErrProviderUnavailable}, store, discard)

		err := d.Refresh(context.Background())
		if !errors.Is(err, flight.ErrProviderUnavailable) {
			t.Errorf("Expected provider error, got %v", err)
		}
		if !d.Loaded() {
			t.Fatal("Expected cached list to be loaded")
		}
		if _, origin := d.Updated(); origin != "cache" {
			t.Errorf("Expected origin cache, got %s", origin)
		}
	})

	t.Run("Keeps loaded list on failure", func(t *testing.T) {
		source := &fakeSource{airlines: sample}
		store := &fakeStore{}
		d := New(source, store, discard)
		if err := d.Refresh(context.Background()); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		source.airlines = nil
		source.err = flight.ErrProviderUnavailable
		if err := d.Refresh(context.Background()); err == nil {
			t.Error("Expected error")
		}
		if len(d.List()) != 2 {
			t.Errorf("Expected previous list kept, got %d", len(d.List()))
		}
	})

	t.Run("Empty provider response without store", func(t *testing.T) {
		d := New(&fakeSource{}, nil, discard)
		if err := d.Refresh(context.Background()); err == nil {
			t.Error("Expected error for empty list")
		}
		if d.Loaded() {
			t.Error("Expected directory to stay empty")
		}
	})

	t.Run("Cache error joined", func(t *testing.T) {
		cacheErr := errors.New("database down")
		d := New(&fakeSource{err: flight.ErrProviderUnavailable}, &fakeStore{listErr: cacheErr}, discard)

		err := d.Refresh(context.Background())
		if !errors.Is(err, cacheErr) || !errors.Is(err, flight.ErrProviderUnavailable) {
			t.Errorf("Expected both errors, got %v", err)
		}
	})
}

func TestListIsCopy(t *testing.T) {
	d := New(&fakeSource{airlines: sample}, nil, discard)
	d.Refresh(context.Background())

	list := d.List()
	list[0].Name = "changed"
	if a, _ := d.Lookup("AFR"); a.Name != "Air France" {
		t.Error("Expected List to return a copy")
	}
	if d.List()[0].Name != "Air France" {
		t.Error("Expected internal list unchanged")
	}
}
