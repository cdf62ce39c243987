// Package functions invokes the platform's remote functions over HTTP.
package functions

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

	"golang.org/x/time/rate"
)

// ErrNoToken is returned before any request when the caller has no access token.
var ErrNoToken = errors.New("functions: no access token")

// Error is a non-2xx reply. Message carries the function's own error text
// when it sent one.
type Error struct {
	Function string
	Status   int
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("function %s: %s (status %d)", e.Function, e.Message, e.Status)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	limiter    *rate.Limiter
}

// NewClient targets baseURL, normally {platform}/functions/v1. rps <= 0 disables
// client-side throttling.
func NewClient(baseURL, anonKey string, rps float64) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Invoke POSTs in as JSON to the named function with token as bearer and
// decodes the reply into out. out may be nil.
func (c *Client) Invoke(ctx context.Context, name, token string, in, out any) error {
	if token == "" {
		return ErrNoToken
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("function %s: encode payload: %w", name, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+name, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return replyError(name, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("function %s: decode reply: %w", name, err)
	}
	return nil
}

func replyError(name string, resp *http.Response) error {
	e := &Error{Function: name, Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		e.Message = body.Error
	} else {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
