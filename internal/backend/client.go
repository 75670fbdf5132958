package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/example/rental-checkout/internal/apperr"
)

const maxBodyBytes = 1 << 20

type ctxKey int

const (
	requestIDKey ctxKey = iota
	authTokenKey
)

// WithRequestID tags outgoing calls made with ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithAuthToken forwards the rider's bearer token instead of the service key.
func WithAuthToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, authTokenKey, token)
}

// Client is the JSON/HTTP boundary to the booking backend (pricing, bookings,
// payments). Non-2xx answers become apperr.NetworkError carrying the
// backend's message.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewClient builds a client whose breaker opens after maxFailures consecutive
// transport or 5xx failures. maxFailures of zero disables the breaker.
func NewClient(baseURL, apiKey string, timeout time.Duration, maxFailures uint32) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
	if maxFailures > 0 {
		c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "backend",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: func(err error) bool {
				var ne apperr.NetworkError
				if errors.As(err, &ne) && ne.Status >= 400 && ne.Status < 500 {
					return true
				}
				return err == nil
			},
		})
	}
	return c
}

// PostJSON posts body (nil sends an empty body) to path and decodes the
// response into out when out is non-nil.
func (c *Client) PostJSON(ctx context.Context, op, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		payload = b
	}
	call := func() ([]byte, error) { return c.do(ctx, op, http.MethodPost, path, payload) }

	var (
		raw []byte
		err error
	)
	if c.breaker != nil {
		raw, err = c.breaker.Execute(call)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = apperr.NetworkError{Op: op, Err: err}
		}
	} else {
		raw, err = call()
	}
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return apperr.NetworkError{Op: op, Err: apperr.ErrEmptyResponse}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.NetworkError{Op: op, Err: fmt.Errorf("%w: %v", apperr.ErrEmptyResponse, err)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload []byte) ([]byte, error) {
	var rdr io.Reader = http.NoBody
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return nil, apperr.NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	if tok, ok := ctx.Value(authTokenKey).(string); ok && tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	} else if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, apperr.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, apperr.NetworkError{Op: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.NetworkError{Op: op, Status: resp.StatusCode, Message: extractMessage(raw)}
	}
	return raw, nil
}

// extractMessage pulls a human readable message out of an error body.
func extractMessage(raw []byte) string {
	var body struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	for _, field := range []json.RawMessage{body.Message, body.Error} {
		if len(field) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(field, &s); err == nil && strings.TrimSpace(s) != "" {
			return s
		}
		var list []string
		if err := json.Unmarshal(field, &list); err == nil && len(list) > 0 {
			return strings.Join(list, "; ")
		}
	}
	return ""
}
