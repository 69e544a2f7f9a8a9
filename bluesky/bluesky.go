// Package bluesky posts alerts to Bluesky via the AT Protocol XRPC API.
package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"quake-notifier/pkg/seismic"

	"github.com/codeGROOVE-dev/retry"
)

// DefaultHost is the Bluesky PDS endpoint.
const DefaultHost = "https://bsky.social"

// DefaultLang is the language tag attached to every post.
const DefaultLang = "en-US"

// Config holds Bluesky credentials and options.
type Config struct {
	Host       string // DefaultHost if empty
	Identifier string // Handle or email of the posting account
	Password   string // App password
	Lang       string // DefaultLang if empty
}

// Client publishes alerts as Bluesky posts. The access token from
// createSession is cached and refreshed when the server rejects it.
type Client struct {
	client *http.Client
	logger *slog.Logger
	cfg    Config

	mu        sync.Mutex
	accessJwt string
	did       string
}

// New creates a new Bluesky client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Lang == "" {
		cfg.Lang = DefaultLang
	}
	return &Client{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
		cfg:    cfg,
	}
}

type sessionRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type sessionResponse struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
}

type byteRange struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

type tagFeature struct {
	Type string `json:"$type"`
	Tag  string `json:"tag"`
}

type facet struct {
	Index    byteRange    `json:"index"`
	Features []tagFeature `json:"features"`
}

type external struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type embedExternal struct {
	Type     string   `json:"$type"`
	External external `json:"external"`
}

type postRecord struct {
	Type      string         `json:"$type"`
	Text      string         `json:"text"`
	CreatedAt string         `json:"createdAt"`
	Langs     []string       `json:"langs"`
	Facets    []facet        `json:"facets,omitempty"`
	Embed     *embedExternal `json:"embed,omitempty"`
}

type createRecordRequest struct {
	Repo       string     `json:"repo"`
	Collection string     `json:"collection"`
	Record     postRecord `json:"record"`
}

// Publish posts one alert. A 401 from createRecord invalidates the
// cached session so the retry logs in again; a 401 from createSession
// itself means bad credentials and is not retried.
func (c *Client) Publish(ctx context.Context, alert *seismic.Alert) error {
	record := postRecord{
		Type:      "app.bsky.feed.post",
		Text:      alert.Text,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Langs:     []string{c.cfg.Lang},
		Facets:    tagFacets(alert.Text),
		Embed: &embedExternal{
			Type: "app.bsky.embed.external",
			External: external{
				URI:         alert.LinkURI,
				Title:       alert.LinkTitle,
				Description: alert.Description,
			},
		},
	}

	err := retry.Do(
		func() error {
			jwt, did, err := c.session(ctx)
			if err != nil {
				return err
			}

			c.logger.Info("Bluesky API request starting",
				"method", "POST",
				"endpoint", "com.atproto.repo.createRecord",
				"text_length", len(alert.Text))

			reqBody, err := json.Marshal(createRecordRequest{
				Repo:       did,
				Collection: "app.bsky.feed.post",
				Record:     record,
			})
			if err != nil {
				return fmt.Errorf("marshal post record: %w", err)
			}

			startTime := time.Now()
			status, body, err := c.post(ctx, "/xrpc/com.atproto.repo.createRecord", jwt, reqBody)
			duration := time.Since(startTime)

			if err != nil {
				c.logger.Warn("Bluesky API request failed, will retry",
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return &seismic.PublishError{Kind: seismic.PublishOther, Err: err}
			}

			switch {
			case status == http.StatusUnauthorized:
				// Expired or revoked token; drop the session and retry
				c.invalidateSession()
				c.logger.Warn("Bluesky session rejected, will re-login", "status_code", status)
				return fmt.Errorf("session rejected: HTTP %d", status)
			case status == http.StatusTooManyRequests:
				c.logger.Warn("Bluesky rate limit hit, will retry", "status_code", status)
				return &seismic.PublishError{Kind: seismic.PublishRateLimited, Err: fmt.Errorf("HTTP %d: %s", status, body)}
			case status < 200 || status >= 300:
				c.logger.Warn("Bluesky API returned non-2xx status, will retry", "status_code", status)
				return &seismic.PublishError{Kind: seismic.PublishOther, Err: fmt.Errorf("HTTP %d: %s", status, body)}
			}

			c.logger.Info("Bluesky API request completed",
				"endpoint", "com.atproto.repo.createRecord",
				"duration_ms", duration.Milliseconds(),
				"status", "success")

			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying Bluesky post after error", "attempt", n, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			// Bad credentials won't fix themselves
			return !seismic.IsAuthFailure(err)
		}),
	)
	if err != nil {
		if seismic.IsAuthFailure(err) {
			return err
		}
		return fmt.Errorf("after retries: %w", err)
	}

	return nil
}

// session returns a cached access token, logging in when none is held.
func (c *Client) session(ctx context.Context) (jwt, did string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessJwt != "" {
		return c.accessJwt, c.did, nil
	}

	c.logger.Info("Bluesky API request starting",
		"method", "POST",
		"endpoint", "com.atproto.server.createSession",
		"identifier", c.cfg.Identifier)

	reqBody, err := json.Marshal(sessionRequest{
		Identifier: c.cfg.Identifier,
		Password:   c.cfg.Password,
	})
	if err != nil {
		return "", "", fmt.Errorf("marshal session request: %w", err)
	}

	status, body, err := c.post(ctx, "/xrpc/com.atproto.server.createSession", "", reqBody)
	if err != nil {
		return "", "", &seismic.PublishError{Kind: seismic.PublishOther, Err: err}
	}

	switch {
	case status == http.StatusUnauthorized:
		return "", "", &seismic.PublishError{Kind: seismic.PublishAuthFailure, Err: fmt.Errorf("HTTP %d: %s", status, body)}
	case status == http.StatusTooManyRequests:
		return "", "", &seismic.PublishError{Kind: seismic.PublishRateLimited, Err: fmt.Errorf("HTTP %d: %s", status, body)}
	case status < 200 || status >= 300:
		return "", "", &seismic.PublishError{Kind: seismic.PublishOther, Err: fmt.Errorf("HTTP %d: %s", status, body)}
	}

	var session sessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return "", "", &seismic.PublishError{Kind: seismic.PublishOther, Err: fmt.Errorf("decode session: %w", err)}
	}
	if session.AccessJwt == "" || session.DID == "" {
		return "", "", &seismic.PublishError{Kind: seismic.PublishOther, Err: errors.New("incomplete session response")}
	}

	c.accessJwt = session.AccessJwt
	c.did = session.DID

	c.logger.Info("Bluesky session established", "did", session.DID)
	return c.accessJwt, c.did, nil
}

func (c *Client) invalidateSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessJwt = ""
	c.did = ""
}

// post sends one JSON request and returns the status and response body.
func (c *Client) post(ctx context.Context, path, jwt string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Host+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if jwt != "" {
		req.Header.Set("Authorization", "Bearer "+jwt)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
