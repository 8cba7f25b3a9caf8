package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	Growth          float64
}

func defaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxRetries:      3,
		InitialInterval: 800 * time.Millisecond,
		Growth:          1.6,
	}
}

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
	errCircuitOpen = errors.New("circuit breaker open")
)

// requestJSON executes a GET with retries, exponential backoff and a
// circuit breaker, decoding the response body as a JSON object. After
// exhausting retries it returns a *NetworkError wrapping the last failure.
func requestJSON(
	ctx context.Context,
	client *http.Client,
	cb *gobreaker.CircuitBreaker,
	backoff BackoffConfig,
	url string,
) (map[string]any, error) {
	delay := backoff.InitialInterval
	var lastErr error

	for attempt := 1; attempt <= backoff.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := cb.Execute(func() (interface{}, error) {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if reqErr != nil {
				return nil, reqErr
			}
			req.Header.Set("User-Agent", "etl-weather/0.1 (https://open-meteo.com/)")

			resp, execErr := client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				return nil, errServerError
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
			}

			var payload map[string]any
			if decErr := json.NewDecoder(resp.Body).Decode(&payload); decErr != nil {
				return nil, fmt.Errorf("decode response: %w", decErr)
			}
			return payload, nil
		})

		if err == nil {
			payload, ok := result.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return payload, nil
		}

		// An open circuit means the endpoint is known-bad; waiting out the
		// backoff would not help.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &NetworkError{URL: url, Err: fmt.Errorf("%w: %v", errCircuitOpen, err)}
		}

		lastErr = err
		if attempt == backoff.MaxRetries {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * backoff.Growth)
	}

	return nil, &NetworkError{URL: url, Err: lastErr}
}
