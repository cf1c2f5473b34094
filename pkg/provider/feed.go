package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/unklstewy/flightwatch/pkg/flight"
)

const (
	// DefaultFeedURL is the zone feed endpoint
	DefaultFeedURL = "https://data-cloud.flightradar24.com/zones/fcgi/feed.js"

	// DefaultTimeout for feed requests; kept below the polling interval's order of magnitude
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent identifies the client to the feed
	DefaultUserAgent = "flightwatch/1.0"
)

// Positions of the fields inside one feed entry array.
const (
	fieldICAO24      = 0
	fieldLatitude    = 1
	fieldLongitude   = 2
	fieldTrack       = 3
	fieldGroundSpeed = 5
	fieldOrigin      = 11
	fieldDestination = 12
	fieldNumber      = 13
	fieldCallsign    = 16
)

// metadataKeys are top-level feed members that are not flights.
var metadataKeys = map[string]bool{
	"full_count": true,
	"version":    true,
	"stats":      true,
}

// FeedConfig configures a FeedClient.
type FeedConfig struct {
	// BaseURL is the feed endpoint (default DefaultFeedURL)
	BaseURL string

	// Timeout bounds a single HTTP request (default DefaultTimeout)
	Timeout time.Duration

	// RequestsPerSecond limits outbound requests (0 = unlimited)
	RequestsPerSecond float64

	// Burst is the limiter bucket size (default 1)
	Burst int

	// UserAgent is sent with every request (default DefaultUserAgent)
	UserAgent string

	// Retry controls in-client retries. The zero value performs a single attempt,
	// which suits a fast polling loop that simply tries again next tick.
	Retry RetryConfig

	// Logger receives skipped-entry diagnostics (default slog.Default())
	Logger *slog.Logger
}

// FeedClient implements Fetcher against a FlightRadar24-style zone feed.
// It is safe for concurrent use.
type FeedClient struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	userAgent   string
	retry       RetryConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewFeedClient creates a feed client.
func NewFeedClient(cfg FeedConfig) *FeedClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultFeedURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	retry := cfg.Retry
	if retry.Retryable == nil {
		retry.Retryable = isTransient
	}
	if retry.Logger == nil {
		retry.Logger = cfg.Logger
	}

	return &FeedClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: rate.NewLimiter(limit, cfg.Burst),
		userAgent:   cfg.UserAgent,
		retry:       retry,
		logger:      cfg.Logger,
		now:         time.Now,
	}
}

// Fetch returns the flights currently inside zone, optionally filtered to one airline.
func (c *FeedClient) Fetch(ctx context.Context, airline, zone string) (flight.Snapshot, error) {
	z, err := LookupZone(zone)
	if err != nil {
		return flight.Snapshot{}, err
	}
	airline = NormalizeAirline(airline)

	records, err := RetryWithBackoffResult(ctx, c.retry, func() ([]flight.Record, error) {
		return c.fetchOnce(ctx, z, airline)
	})
	if err != nil {
		return flight.Snapshot{}, err
	}

	return flight.Snapshot{
		Airline:   airline,
		Zone:      z.Name,
		FetchedAt: c.now().UTC(),
		Records:   records,
	}, nil
}

// feedURL builds the request URL for a zone and airline filter.
func (c *FeedClient) feedURL(z Zone, airline string) string {
	q := url.Values{}
	q.Set("bounds", z.Bounds())
	q.Set("faa", "1")
	q.Set("satellite", "1")
	q.Set("mlat", "1")
	q.Set("adsb", "1")
	q.Set("gnd", "0")
	q.Set("air", "1")
	q.Set("estimated", "1")
	q.Set("stats", "0")
	if airline != flight.AllAirlines {
		q.Set("airline", airline)
	}
	return c.baseURL + "?" + q.Encode()
}

func (c *FeedClient) fetchOnce(ctx context.Context, z Zone, airline string) ([]flight.Record, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", flight.ErrProviderUnavailable, err)
	}

	resp, err := get(ctx, c.httpClient, c.feedURL(z, airline), c.userAgent)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	records, skipped, err := decodeFeed(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse feed: %w", flight.ErrProviderUnavailable, err)
	}

	for _, skip := range skipped {
		c.logger.Debug("skipping feed entry", slog.String("zone", z.Name), slog.Any("error", skip))
	}
	if len(skipped) > 0 {
		c.logger.Info("feed entries skipped",
			slog.String("zone", z.Name),
			slog.Int("skipped", len(skipped)),
			slog.Int("kept", len(records)))
	}

	return records, nil
}

// decodeFeed streams the feed object so records keep the provider's order.
// Entries that fail validation are returned as MalformedRecordErrors; only
// a broken document yields an error.
func decodeFeed(r io.Reader) ([]flight.Record, []error, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, errors.New("expected a JSON object")
	}

	var (
		records []flight.Record
		skipped []error
		index   int
	)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		if metadataKeys[key] {
			continue
		}

		rec, err := parseEntry(index, key, raw)
		index++
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		records = append(records, rec)
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}

	if records == nil {
		records = []flight.Record{}
	}
	return records, skipped, nil
}

// parseEntry validates and converts one feed entry.
func parseEntry(index int, id string, raw json.RawMessage) (flight.Record, error) {
	malformed := func(reason string) error {
		return &flight.MalformedRecordError{Index: index, ID: id, Reason: reason}
	}

	if strings.TrimSpace(id) == "" {
		return flight.Record{}, malformed("missing id")
	}

	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return flight.Record{}, malformed("entry is not an array")
	}

	lat, ok := numberAt(fields, fieldLatitude)
	if !ok {
		return flight.Record{}, malformed("missing latitude")
	}
	lon, ok := numberAt(fields, fieldLongitude)
	if !ok {
		return flight.Record{}, malformed("missing longitude")
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return flight.Record{}, malformed(fmt.Sprintf("position %.4f,%.4f out of range", lat, lon))
	}

	rec := flight.Record{
		ID:          id,
		Latitude:    lat,
		Longitude:   lon,
		Origin:      stringAt(fields, fieldOrigin),
		Destination: stringAt(fields, fieldDestination),
	}

	if track, ok := numberAt(fields, fieldTrack); ok {
		rec.Track = track
		rec.HasTrack = true
	}
	if gs, ok := numberAt(fields, fieldGroundSpeed); ok {
		rec.GroundSpeed = gs
	}

	rec.Callsign = stringAt(fields, fieldCallsign)
	if rec.Callsign == "" {
		rec.Callsign = stringAt(fields, fieldNumber)
	}
	if rec.Callsign == "" {
		rec.Callsign = strings.ToUpper(stringAt(fields, fieldICAO24))
	}

	rec.Normalize()
	return rec, nil
}

// numberAt returns fields[i] as a finite number.
func numberAt(fields []json.RawMessage, i int) (float64, bool) {
	if i >= len(fields) {
		return 0, false
	}
	var v *float64
	if err := json.Unmarshal(fields[i], &v); err != nil || v == nil {
		return 0, false
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

// stringAt returns fields[i] as a trimmed string, or "" if absent or not a string.
func stringAt(fields []json.RawMessage, i int) string {
	if i >= len(fields) {
		return ""
	}
	var s string
	if err := json.Unmarshal(fields[i], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
