// Package directory keeps the list of airlines users can filter by.
// The list comes from the provider and, when a store is configured, is
// cached so it survives a provider outage.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/unklstewy/flightwatch/pkg/provider"
)

// Source fetches the live airline list.
type Source interface {
	Airlines(ctx context.Context) ([]provider.Airline, error)
}

// Store persists the airline list between runs.
type Store interface {
	ReplaceAirlines(ctx context.Context, airlines []provider.Airline, now time.Time) error
	ListAirlines(ctx context.Context) ([]provider.Airline, error)
}

// Directory is a concurrency-safe in-memory airline list.
type Directory struct {
	source Source
	store  Store
	logger *slog.Logger

	mu       sync.RWMutex
	airlines []provider.Airline
	index    map[string]provider.Airline
	updated  time.Time
	origin   string
}

// New creates an empty directory. store may be nil.
func New(source Source, store Store, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		source: source,
		store:  store,
		logger: logger,
	}
}

// Refresh reloads the list from the source, writing it through to the store.
// If the source fails and nothing is loaded yet, the stored copy is used.
// The source error is returned either way.
func (d *Directory) Refresh(ctx context.Context) error {
	airlines, err := d.source.Airlines(ctx)
	if err == nil && len(airlines) > 0 {
		d.set(airlines, "provider")
		if d.store != nil {
			if storeErr := d.store.ReplaceAirlines(ctx, airlines, time.Now().UTC()); storeErr != nil {
				d.logger.Warn("failed to cache airlines", slog.Any("error", storeErr))
			}
		}
		d.logger.Info("airline directory refreshed", slog.Int("airlines", len(airlines)))
		return nil
	}
	if err == nil {
		err = errors.New("provider returned no airlines")
	}

	if d.Loaded() || d.store == nil {
		return fmt.Errorf("failed to refresh airlines: %w", err)
	}

	cached, cacheErr := d.store.ListAirlines(ctx)
	if cacheErr != nil {
		return fmt.Errorf("failed to refresh airlines: %w", errors.Join(err, cacheErr))
	}
	if len(cached) > 0 {
		d.set(cached, "cache")
		d.logger.Warn("airline provider unavailable, using cached directory",
			slog.Int("airlines", len(cached)),
			slog.Any("error", err))
	}
	return fmt.Errorf("failed to refresh airlines: %w", err)
}

// Run refreshes immediately and then every interval until ctx is done.
func (d *Directory) Run(ctx context.Context, interval time.Duration) {
	if err := d.Refresh(ctx); err != nil {
		d.logger.Warn("airline directory refresh failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Refresh(ctx); err != nil {
				d.logger.Warn("airline directory refresh failed", slog.Any("error", err))
			}
		}
	}
}

func (d *Directory) set(airlines []provider.Airline, origin string) {
	index := make(map[string]provider.Airline, len(airlines))
	for _, a := range airlines {
		index[a.ICAO] = a
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.airlines = append([]provider.Airline(nil), airlines...)
	d.index = index
	d.updated = time.Now().UTC()
	d.origin = origin
}

// Loaded reports whether any list has been loaded.
func (d *Directory) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.airlines) > 0
}

// List returns a copy of the airlines in provider order.
func (d *Directory) List() []provider.Airline {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]provider.Airline{}, d.airlines...)
}

// Lookup finds an airline by ICAO code.
func (d *Directory) Lookup(icao string) (provider.Airline, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.index[icao]
	return a, ok
}

// Updated returns when the list was last loaded and where it came from
// ("provider" or "cache").
func (d *Directory) Updated() (time.Time, string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.updated, d.origin
}
