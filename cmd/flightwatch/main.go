// flightwatch polls a live flight feed, assigns each aircraft a marker
// orientation, and serves the result over HTTP, websockets and MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/unklstewy/flightwatch/internal/db"
	"github.com/unklstewy/flightwatch/internal/directory"
	"github.com/unklstewy/flightwatch/internal/relay"
	"github.com/unklstewy/flightwatch/internal/web"
	"github.com/unklstewy/flightwatch/pkg/config"
	"github.com/unklstewy/flightwatch/pkg/provider"
	"github.com/unklstewy/flightwatch/pkg/tracker"
)

// airlineRefreshInterval is how often the airline directory is reloaded.
const airlineRefreshInterval = 6 * time.Hour

func main() {
	var (
		configPath string
		airline    string
		zone       string
		verbose    bool
	)
	pflag.StringVarP(&configPath, "config", "c", "configs/config.json", "path to configuration file")
	pflag.StringVarP(&airline, "airline", "a", "", "ICAO airline code to watch, or \"all\"")
	pflag.StringVarP(&zone, "zone", "z", "", "zone to watch ("+fmt.Sprint(provider.ZoneNames())+")")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "log every cycle")
	pflag.Parse()

	log.Println("===========================================")
	log.Println("  flightwatch")
	log.Println("===========================================")

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if pflag.CommandLine.Changed("airline") {
		cfg.Tracker.Airline = airline
	}
	if pflag.CommandLine.Changed("zone") {
		cfg.Tracker.Zone = zone
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Configuration loaded from: %s", configPath)
	log.Printf("Zone: %s, airline: %s", cfg.Tracker.Zone, cfg.Tracker.Airline)
	log.Printf("Update interval: %d seconds, heading policy: %s, %d orientations",
		cfg.Tracker.UpdateIntervalSeconds, cfg.Tracker.HeadingPolicy, cfg.Tracker.OrientationCount)

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tr, err := tracker.NewFromConfig(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create tracker: %v", err)
	}

	// Airline directory, cached in Postgres when enabled
	var (
		store    directory.Store
		database *db.DB
	)
	if cfg.Database.Enabled {
		log.Println("\nConnecting to database...")
		database, err = db.ReconnectWithRetry(ctx, cfg.Database, 3, 2*time.Second, logger)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		log.Println("✓ Database connected")

		if err := database.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		log.Println("✓ Database schema initialized")
		store = db.NewAirlineRepository(database)
	}

	airlineClient := provider.NewAirlineClient(cfg.Provider.AirlinesURL, cfg.Provider.Timeout(), provider.DefaultRetryConfig())
	airlines := directory.New(airlineClient, store, logger)

	// HTTP and websocket surface
	srv := web.NewServer(tr, airlines, logger)
	if database != nil {
		srv.SetDatabase(database)
	}
	tr.Subscribe(srv.Publish)

	// MQTT relay
	if cfg.MQTT.Enabled {
		rel, err := relay.Connect(cfg.MQTT, logger)
		if err != nil {
			log.Fatalf("Failed to connect to MQTT broker: %v", err)
		}
		defer rel.Close()
		tr.Subscribe(rel.Publish)
		go rel.Run(ctx)
		log.Printf("✓ Publishing to %s", rel.Topic(tr.Zone()))
	}

	go airlines.Run(ctx, airlineRefreshInterval)

	trackerDone := make(chan struct{})
	go func() {
		defer close(trackerDone)
		if err := tr.Run(ctx); err != nil {
			logger.Error("tracker exited", slog.Any("error", err))
		}
	}()

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	httpServer := web.NewHTTPServer(addr, srv.Handler())

	go func() {
		log.Printf("✓ Listening on http://%s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Println("\n===========================================")
	log.Println("  flightwatch started")
	log.Println("  Press Ctrl+C to stop")
	log.Println("===========================================")

	<-ctx.Done()
	log.Println("\nShutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv.Hub().Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	<-trackerDone

	log.Println("✓ flightwatch stopped")
}
