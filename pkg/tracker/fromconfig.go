package tracker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/unklstewy/flightwatch/pkg/config"
	"github.com/unklstewy/flightwatch/pkg/heading"
	"github.com/unklstewy/flightwatch/pkg/provider"
	"github.com/unklstewy/flightwatch/pkg/reconcile"
)

// FeedConfig translates provider settings into a provider.FeedConfig.
func FeedConfig(cfg config.ProviderConfig, logger *slog.Logger) provider.FeedConfig {
	retry := provider.RetryConfig{}
	if cfg.MaxRetries > 0 {
		retry = provider.DefaultRetryConfig()
		retry.MaxRetries = cfg.MaxRetries
	}

	return provider.FeedConfig{
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Timeout(),
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		UserAgent:         cfg.UserAgent,
		Retry:             retry,
		Logger:            logger,
	}
}

// NewReconciler builds the reconciler described by cfg.
func NewReconciler(cfg config.TrackerConfig, logger *slog.Logger) (*reconcile.Reconciler, error) {
	policy, err := reconcile.ParsePolicy(cfg.HeadingPolicy)
	if err != nil {
		return nil, err
	}

	orientations, err := heading.New(cfg.OrientationCount)
	if err != nil {
		return nil, err
	}

	return reconcile.New(
		reconcile.WithPolicy(policy),
		reconcile.WithOrientations(orientations),
		reconcile.WithLogger(logger),
	), nil
}

// NewFromConfig builds a Tracker polling the feed described by cfg.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Tracker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reconciler, err := NewReconciler(cfg.Tracker, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid tracker config: %w", err)
	}

	return New(Config{
		Fetcher:       provider.NewFeedClient(FeedConfig(cfg.Provider, logger)),
		Reconciler:    reconciler,
		Airline:       cfg.Tracker.Airline,
		Zone:          cfg.Tracker.Zone,
		Interval:      cfg.Tracker.UpdateInterval(),
		FetchTimeout:  cfg.Tracker.FetchTimeout(),
		StatsInterval: statsInterval,
		Logger:        logger,
	})
}

// statsInterval matches the periodic summary cadence of the service logs.
const statsInterval = 30 * time.Second
