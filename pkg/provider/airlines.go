package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/unklstewy/flightwatch/pkg/flight"
)

// DefaultAirlinesURL is the airline directory endpoint
const DefaultAirlinesURL = "https://www.flightradar24.com/_json/airlines.php"

// Airline is one entry of the provider's airline directory.
type Airline struct {
	Name string `json:"Name"`
	Code string `json:"Code"` // IATA, may be empty
	ICAO string `json:"ICAO"`
}

// AirlineClient fetches the airline directory used to populate filter choices.
type AirlineClient struct {
	url        string
	httpClient *http.Client
	userAgent  string
	retry      RetryConfig
}

// NewAirlineClient creates an airline directory client.
// An empty url selects DefaultAirlinesURL.
func NewAirlineClient(url string, timeout time.Duration, retry RetryConfig) *AirlineClient {
	if url == "" {
		url = DefaultAirlinesURL
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if retry.Retryable == nil {
		retry.Retryable = isTransient
	}
	return &AirlineClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  DefaultUserAgent,
		retry:      retry,
	}
}

type airlinesResponse struct {
	Version int       `json:"version"`
	Rows    []Airline `json:"rows"`
}

// Airlines returns airlines that have an ICAO code, in provider order,
// with duplicates removed (first wins).
func (c *AirlineClient) Airlines(ctx context.Context) ([]Airline, error) {
	return RetryWithBackoffResult(ctx, c.retry, func() ([]Airline, error) {
		return c.fetchOnce(ctx)
	})
}

func (c *AirlineClient) fetchOnce(ctx context.Context) ([]Airline, error) {
	resp, err := get(ctx, c.httpClient, c.url, c.userAgent)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body airlinesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: failed to parse airlines: %w", flight.ErrProviderUnavailable, err)
	}

	airlines := make([]Airline, 0, len(body.Rows))
	seen := make(map[string]bool, len(body.Rows))
	for _, a := range body.Rows {
		a.ICAO = strings.ToUpper(strings.TrimSpace(a.ICAO))
		a.Code = strings.ToUpper(strings.TrimSpace(a.Code))
		a.Name = strings.TrimSpace(a.Name)
		if a.ICAO == "" || seen[a.ICAO] {
			continue
		}
		seen[a.ICAO] = true
		airlines = append(airlines, a)
	}

	return airlines, nil
}
