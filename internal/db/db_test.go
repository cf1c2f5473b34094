package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/unklstewy/flightwatch/pkg/config"
	"github.com/unklstewy/flightwatch/pkg/provider"
)

// testDB connects to the database named by FLIGHTWATCH_TEST_DB_* variables,
// skipping the test when none is reachable.
func testDB(t *testing.T) *DB {
	t.Helper()
	host := os.Getenv("FLIGHTWATCH_TEST_DB_HOST")
	if host == "" {
		t.Skip("FLIGHTWATCH_TEST_DB_HOST not set, skipping database test")
	}

	cfg := config.DefaultConfig().Database
	cfg.Host = host
	if port, err := strconv.Atoi(os.Getenv("FLIGHTWATCH_TEST_DB_PORT")); err == nil {
		cfg.Port = port
	}
	if v := os.Getenv("FLIGHTWATCH_TEST_DB_USER"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("FLIGHTWATCH_TEST_DB_NAME"); v != "" {
		cfg.Database = v
	}
	cfg.Password = os.Getenv("FLIGHTWATCH_TEST_DB_PASSWORD")

	db, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Skipf("Database not reachable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}
	return db
}

// TestConnString tests the connection string construction.
func TestConnString(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		Username: "testuser",
		Password: "testpass",
		Database: "testdb",
	}

	got := connString(cfg)
	for _, want := range []string{"host=localhost", "port=5432", "user=testuser", "password=testpass", "dbname=testdb", "sslmode=disable"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in connection string, got %s", want, got)
		}
	}

	cfg.SSLMode = "require"
	if !strings.Contains(connString(cfg), "sslmode=require") {
		t.Errorf("Expected sslmode=require, got %s", connString(cfg))
	}
}

// TestConnect tests that an unreachable server reports an error.
func TestConnect(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "127.0.0.1",
		Port:     1,
		Username: "nobody",
		Database: "nothing",
	}

	db, err := Connect(context.Background(), cfg)
	if err == nil {
		db.Close()
		t.Fatal("Expected error connecting to a closed port")
	}
	if !strings.Contains(err.Error(), "failed to ping database") {
		t.Errorf("Expected ping failure, got %v", err)
	}
}

func TestReconnectWithRetryGivesUp(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "127.0.0.1", Port: 1}

	_, err := ReconnectWithRetry(context.Background(), cfg, 2, time.Millisecond, nil)
	if err == nil {
		t.Fatal("Expected error after retries")
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Errorf("Expected attempt count in error, got %v", err)
	}
}

// unreachableDB returns a DB whose pool points at a closed port. sql.Open
// does not dial, so every query fails with a connection error.
func unreachableDB(t *testing.T) *DB {
	t.Helper()
	cfg := config.DatabaseConfig{Host: "127.0.0.1", Port: 1, Database: "flightwatch", Username: "flightwatch"}
	sqlDB, err := sql.Open("postgres", connString(cfg))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return &DB{DB: sqlDB, config: cfg}
}

func TestHealthCheck(t *testing.T) {
	t.Run("Nil database", func(t *testing.T) {
		var db *DB
		if err := db.HealthCheck(context.Background()); err == nil {
			t.Error("Expected error for nil database")
		}
	})

	t.Run("Unreachable database", func(t *testing.T) {
		err := unreachableDB(t).HealthCheck(context.Background())
		if err == nil {
			t.Fatal("Expected error for unreachable database")
		}
		if !strings.Contains(err.Error(), "health check query failed") {
			t.Errorf("Expected health check error, got %v", err)
		}
	})
}

func TestAirlineRepositoryRetriesConnectionErrors(t *testing.T) {
	repo := NewAirlineRepository(unreachableDB(t))

	// The first retry waits a second, so a short deadline ends the loop
	// while it is waiting to retry.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := repo.ListAirlines(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected list to be retried until the deadline, got %v", err)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel2()

	err = repo.ReplaceAirlines(ctx2, []provider.Airline{{Name: "Air France", Code: "AF", ICAO: "AFR"}}, time.Now())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected replace to be retried until the deadline, got %v", err)
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection failure class", &pq.Error{Code: "08006"}, true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"reset uppercase", errors.New("read: Connection Reset by peer"), true},
		{"syntax", errors.New("syntax error at or near SELECT"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestWithRetry(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return nil
		}, 3)
		if err != nil || calls != 1 {
			t.Errorf("Expected 1 successful call, got %d calls, err %v", calls, err)
		}
	})

	t.Run("Non-connection error is not retried", func(t *testing.T) {
		calls := 0
		want := errors.New("syntax error")
		err := WithRetry(context.Background(), func() error {
			calls++
			return want
		}, 3)
		if !errors.Is(err, want) {
			t.Errorf("Expected original error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("Expected 1 call, got %d", calls)
		}
	})

	t.Run("Cancelled while waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRetry(ctx, func() error {
			return errors.New("connection refused")
		}, 3)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})
}

func TestAirlineRepository(t *testing.T) {
	db := testDB(t)
	repo := NewAirlineRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	first := []provider.Airline{
		{Name: "Air France", Code: "AF", ICAO: "AFR"},
		{Name: "British Airways", Code: "BA", ICAO: "BAW"},
		{Name: "Lufthansa", Code: "LH", ICAO: "DLH"},
	}
	if err := repo.ReplaceAirlines(ctx, first, now); err != nil {
		t.Fatalf("Failed to store airlines: %v", err)
	}

	second := []provider.Airline{
		{Name: "Lufthansa", Code: "LH", ICAO: "DLH"},
		{Name: "Air France-KLM", Code: "AF", ICAO: "AFR"},
	}
	if err := repo.ReplaceAirlines(ctx, second, now.Add(time.Minute)); err != nil {
		t.Fatalf("Failed to replace airlines: %v", err)
	}

	got, err := repo.ListAirlines(ctx)
	if err != nil {
		t.Fatalf("Failed to list airlines: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 airlines, got %d", len(got))
	}
	if got[0].ICAO != "DLH" || got[1].ICAO != "AFR" {
		t.Errorf("Expected provider order DLH, AFR, got %s, %s", got[0].ICAO, got[1].ICAO)
	}
	if got[1].Name != "Air France-KLM" {
		t.Errorf("Expected updated name, got %s", got[1].Name)
	}

	for _, a := range got {
		if a.ICAO == "BAW" {
			t.Error("Expected BAW removed")
		}
	}
	if got[0].Code != "LH" {
		t.Errorf("Expected DLH with code LH, got %s", got[0].Code)
	}

	// An empty refresh must not wipe the cache.
	if err := repo.ReplaceAirlines(ctx, nil, now); err != nil {
		t.Fatalf("Expected no error for empty refresh, got %v", err)
	}
	if got, _ := repo.ListAirlines(ctx); len(got) != 2 {
		t.Errorf("Expected cache kept after empty refresh, got %d", len(got))
	}

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats["airlines"] != 2 {
		t.Errorf("Expected 2 airlines in stats, got %v", stats["airlines"])
	}
	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("Expected healthy database, got %v", err)
	}
}
