// Package client fetches Discover queries from a click-lite server over REST.
// A Client satisfies querybuilder.Fetcher, so a query builder can run outside
// the server process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/your-username/click-lite-discover/internal/models"
)

// Config holds the client configuration
type Config struct {
	// BaseURL of the click-lite server
	BaseURL string
	// Token is sent as a bearer token when set
	Token string
	// MaxRetries is the maximum number of attempts for a request
	MaxRetries int
	// RetryDelay is multiplied by the attempt number between attempts
	RetryDelay time.Duration
	// HTTPTimeout for requests
	HTTPTimeout time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "http://localhost:20002",
		MaxRetries:  3,
		RetryDelay:  time.Second,
		HTTPTimeout: 60 * time.Second,
	}
}

// APIError is a response the server rejected. It is not retried.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the Discover endpoints of one server
type Client struct {
	config *Config
	client *http.Client
}

// New creates a new client
func New(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}

	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.HTTPTimeout,
		},
	}
}

// Fetch runs q for org on the server
func (c *Client) Fetch(ctx context.Context, org string, q models.QuerySpec) (*models.QueryResult, error) {
	var result models.QueryResult
	if err := c.do(ctx, http.MethodPost, c.discoverURL(org, "query"), q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Columns returns the column catalog of org
func (c *Client) Columns(ctx context.Context, org string) ([]models.Column, error) {
	var columns []models.Column
	if err := c.do(ctx, http.MethodGet, c.discoverURL(org, "columns"), nil, &columns); err != nil {
		return nil, err
	}
	return columns, nil
}

func (c *Client) discoverURL(org, endpoint string) string {
	return fmt.Sprintf("%s/api/v1/organizations/%s/discover/%s",
		strings.TrimRight(c.config.BaseURL, "/"), url.PathEscape(org), endpoint)
}

// do sends the request with retries and decodes the response into out
func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = data
	}

	var lastErr error
	for i := 0; i < c.config.MaxRetries; i++ {
		err := c.send(ctx, method, endpoint, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		log.Warn().Err(err).Int("attempt", i+1).Str("url", endpoint).Msg("Discover request failed")
		if i < c.config.MaxRetries-1 {
			select {
			case <-time.After(time.Duration(i+1) * c.config.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("request failed after %d attempts: %w", c.config.MaxRetries, lastErr)
}

func (c *Client) send(ctx context.Context, method, endpoint string, payload []byte, out interface{}) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the message of an error response
func errorMessage(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	var decoded struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &decoded); err == nil && decoded.Error != "" {
		return decoded.Error
	}
	return strings.TrimSpace(string(data))
}
