package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// StatusSuccess is the status field value of a successful backend response.
const StatusSuccess = "success"

// Error is a response from the backend that did not report success.
type Error struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("backend returned %d (%s)", e.StatusCode, e.Status)
}

// IsBackendError reports whether err is a definitive backend answer, as
// opposed to a transport failure whose outcome is unknown.
func IsBackendError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// envelope is the common shape of every backend response.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors,omitempty"`
}

// Client talks to the hospital REST backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type requestOptions struct {
	query          url.Values
	body           interface{}
	idempotencyKey string
}

// do sends one request and decodes a successful body into out. Non-2xx
// responses and bodies whose status is not "success" become *Error.
func (c *Client) do(ctx context.Context, method, path string, opts requestOptions, out interface{}) error {
	endpoint := c.baseURL + path
	if len(opts.query) > 0 {
		endpoint += "?" + opts.query.Encode()
	}

	var reader io.Reader
	if opts.body != nil {
		payload, err := json.Marshal(opts.body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if opts.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", opts.idempotencyKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	var env envelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || (env.Status != "" && env.Status != StatusSuccess) {
		message := env.Message
		if message == "" && len(env.Errors) > 0 {
			message = string(env.Errors)
		}
		status := env.Status
		if status == "" {
			status = http.StatusText(resp.StatusCode)
		}
		return &Error{StatusCode: resp.StatusCode, Status: status, Message: message}
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return nil
}

func pathEscape(segment string) string {
	return url.PathEscape(segment)
}
