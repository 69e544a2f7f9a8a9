// Package feed handles querying the USGS earthquake feed and normalizing
// its GeoJSON records.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"quake-notifier/pkg/seismic"

	"github.com/codeGROOVE-dev/retry"
)

// DefaultBaseURL is the USGS fdsnws event query endpoint.
const DefaultBaseURL = "https://earthquake.usgs.gov/fdsnws/event/1/query"

// RawRecord is one undecoded feature from the feed response. Decoding is
// deferred to Normalize so a single malformed feature cannot poison the
// rest of the batch.
type RawRecord = json.RawMessage

// Config holds the feed query parameters.
type Config struct {
	BaseURL      string  // Query endpoint; DefaultBaseURL if empty
	MinMagnitude float64 // Feed-side magnitude floor
	Latitude     float64 // Search center
	Longitude    float64 // Search center
	RadiusKM     float64 // Search radius around the center
}

// Client fetches event batches from the USGS feed.
type Client struct {
	client *http.Client
	logger *slog.Logger
	cfg    Config
}

// New creates a new feed client.
func New(client *http.Client, cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{
		client: client,
		logger: logger,
		cfg:    cfg,
	}
}

// response is the envelope of a GeoJSON feature collection.
type response struct {
	Features []RawRecord `json:"features"`
}

// Fetch queries the feed for all events since the given time and returns
// the raw feature records in feed order.
func (c *Client) Fetch(ctx context.Context, since time.Time) ([]RawRecord, error) {
	queryURL := c.buildURL(since)

	var records []RawRecord

	err := retry.Do(
		func() error {
			c.logger.Info("HTTP request starting",
				"method", "GET",
				"url", queryURL,
				"purpose", "fetch_event_batch")

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, http.NoBody)
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("Accept", "application/json")

			startTime := time.Now()
			resp, err := c.client.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				c.logger.Warn("HTTP request failed, will retry",
					"url", queryURL,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return &seismic.FetchError{Kind: seismic.FetchNetworkError, URL: queryURL, Err: err}
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			c.logger.Info("HTTP request completed",
				"url", queryURL,
				"status_code", resp.StatusCode,
				"duration_ms", duration.Milliseconds(),
				"content_length", resp.ContentLength)

			if err := classifyStatus(resp.StatusCode, queryURL); err != nil {
				c.logger.Warn("Feed query returned non-OK status", "status_code", resp.StatusCode)
				return err
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return &seismic.FetchError{Kind: seismic.FetchNetworkError, URL: queryURL, Err: err}
			}

			var envelope response
			if err := json.Unmarshal(body, &envelope); err != nil {
				c.logger.Warn("Failed to decode feed response, will retry", "error", err)
				return &seismic.FetchError{Kind: seismic.FetchServerError, URL: queryURL, Err: err}
			}

			records = envelope.Features
			return nil
		},
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying feed fetch after error", "attempt", n, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			// 404 means the query itself is wrong; retrying won't help
			return !isNotFound(err)
		}),
	)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Event batch fetched", "count", len(records), "since", since.Format(time.RFC3339))
	return records, nil
}

func (c *Client) buildURL(since time.Time) string {
	params := url.Values{}
	params.Set("format", "geojson")
	params.Set("minmagnitude", strconv.FormatFloat(c.cfg.MinMagnitude, 'f', -1, 64))
	params.Set("latitude", strconv.FormatFloat(c.cfg.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(c.cfg.Longitude, 'f', -1, 64))
	params.Set("maxradiuskm", strconv.FormatFloat(c.cfg.RadiusKM, 'f', -1, 64))
	params.Set("starttime", since.UTC().Format(time.RFC3339))
	return c.cfg.BaseURL + "?" + params.Encode()
}

func classifyStatus(code int, queryURL string) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return &seismic.FetchError{Kind: seismic.FetchNotFound, URL: queryURL, Err: fmt.Errorf("HTTP %d", code)}
	case code >= http.StatusInternalServerError:
		return &seismic.FetchError{Kind: seismic.FetchServerError, URL: queryURL, Err: fmt.Errorf("HTTP %d", code)}
	default:
		return &seismic.FetchError{Kind: seismic.FetchNetworkError, URL: queryURL, Err: fmt.Errorf("HTTP %d", code)}
	}
}

func isNotFound(err error) bool {
	var fe *seismic.FetchError
	return errors.As(err, &fe) && fe.Kind == seismic.FetchNotFound
}
