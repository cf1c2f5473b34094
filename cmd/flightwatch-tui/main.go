// flightwatch-tui shows the watched zone's flights in the terminal, one
// arrow per aircraft pointing along its marker orientation.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/unklstewy/flightwatch/pkg/config"
	"github.com/unklstewy/flightwatch/pkg/tracker"
)

func main() {
	var (
		configPath string
		airline    string
		zone       string
		logPath    string
	)
	pflag.StringVarP(&configPath, "config", "c", "configs/config.json", "path to configuration file")
	pflag.StringVarP(&airline, "airline", "a", "", "ICAO airline code to watch, or \"all\"")
	pflag.StringVarP(&zone, "zone", "z", "", "zone to watch")
	pflag.StringVar(&logPath, "log", "", "write diagnostics to this file")
	pflag.Parse()

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

	// The terminal belongs to the UI; diagnostics go to a file or nowhere.
	logger := slog.New(slog.DiscardHandler)
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		logger = slog.New(slog.NewTextHandler(f, nil))
	}

	tr, err := tracker.NewFromConfig(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create tracker: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	m := newModel(ctx, tr)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}
}
