package db

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/unklstewy/flightwatch/pkg/provider"
)

// defaultRepositoryRetries is how often a repository call is repeated after
// a lost connection.
const defaultRepositoryRetries = 2

// AirlineRepository caches the provider's airline directory.
// Calls that fail on a lost connection are retried through WithRetry.
type AirlineRepository struct {
	db      *DB
	retries int
}

// NewAirlineRepository creates a new airline repository.
func NewAirlineRepository(db *DB) *AirlineRepository {
	return &AirlineRepository{db: db, retries: defaultRepositoryRetries}
}

// ReplaceAirlines stores airlines in order and removes codes no longer listed.
// The whole refresh is one transaction. An empty list leaves the cache untouched.
func (r *AirlineRepository) ReplaceAirlines(ctx context.Context, airlines []provider.Airline, now time.Time) error {
	if len(airlines) == 0 {
		return nil
	}
	return WithRetry(ctx, func() error {
		return r.replaceAirlines(ctx, airlines, now)
	}, r.retries)
}

func (r *AirlineRepository) replaceAirlines(ctx context.Context, airlines []provider.Airline, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO airlines (icao, iata, name, position, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (icao) DO UPDATE SET
			iata = EXCLUDED.iata,
			name = EXCLUDED.name,
			position = EXCLUDED.position,
			updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	codes := make([]string, 0, len(airlines))
	for i, a := range airlines {
		if _, err := stmt.ExecContext(ctx, a.ICAO, a.Code, a.Name, i, now); err != nil {
			return fmt.Errorf("failed to upsert airline %s: %w", a.ICAO, err)
		}
		codes = append(codes, a.ICAO)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM airlines WHERE NOT (icao = ANY($1))`,
		pq.Array(codes),
	); err != nil {
		return fmt.Errorf("failed to remove stale airlines: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit airlines: %w", err)
	}
	return nil
}

// ListAirlines returns the cached directory in provider order.
func (r *AirlineRepository) ListAirlines(ctx context.Context) ([]provider.Airline, error) {
	var airlines []provider.Airline
	err := WithRetry(ctx, func() error {
		var err error
		airlines, err = r.listAirlines(ctx)
		return err
	}, r.retries)
	return airlines, err
}

func (r *AirlineRepository) listAirlines(ctx context.Context) ([]provider.Airline, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT icao, iata, name FROM airlines ORDER BY position, icao`)
	if err != nil {
		return nil, fmt.Errorf("failed to query airlines: %w", err)
	}
	defer rows.Close()

	var airlines []provider.Airline
	for rows.Next() {
		var a provider.Airline
		if err := rows.Scan(&a.ICAO, &a.Code, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan airline: %w", err)
		}
		airlines = append(airlines, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read airlines: %w", err)
	}

	return airlines, nil
}
