package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/unklstewy/flightwatch/pkg/flight"
)

// get issues a GET and returns the response when the status is 200.
// The caller closes the body. Every failure wraps flight.ErrProviderUnavailable.
func get(ctx context.Context, client *http.Client, url, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid request %s: %w", flight.ErrProviderUnavailable, url, err)
	}
	req.Header.Set("Accept", "application/json")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch %s: %w", flight.ErrProviderUnavailable, url, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		defer resp.Body.Close()
		return nil, newRateLimitError(resp)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: API returned status %d: %s",
			flight.ErrProviderUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return resp, nil
}

// isTransient reports whether a fetch error is worth another attempt.
func isTransient(err error) bool {
	return errors.Is(err, flight.ErrProviderUnavailable)
}
