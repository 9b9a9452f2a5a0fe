// Package client talks to a unitgated server over HTTP.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/modoterra/unitgate/pkg/api"
	"github.com/modoterra/unitgate/pkg/core"
)

// DefaultURL is the address unitgated listens on by default.
const DefaultURL = "http://127.0.0.1:5000"

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Body       api.ErrorResponse
	// Text holds the raw body when it was not a JSON error.
	Text string
}

func (e *APIError) Error() string {
	msg := e.Body.Error
	if msg == "" {
		msg = strings.TrimSpace(e.Text)
	}
	if len(e.Body.Stderr) > 0 {
		msg += ": " + strings.Join(e.Body.Stderr, "; ")
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), msg)
}

// Is maps status codes onto the server's sentinel errors.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return target == api.ErrUnauthorized
	case http.StatusNotFound:
		return target == core.ErrOutOfRange
	case http.StatusConflict:
		return target == api.ErrUnitMismatch
	}
	return false
}

// Client is a unitgated API client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the server at baseURL authenticating with token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// StatusReply is the status of one unit.
type StatusReply struct {
	// Unit is the filename the ordinal resolved to.
	Unit   string
	Fields core.StatusFields
	// Warning is set when the server could not find the journal boundary.
	Warning string
}

// List returns the server's current unit listing.
func (c *Client) List(ctx context.Context) (core.Index, error) {
	var ix core.Index
	if _, err := c.do(ctx, http.MethodGet, "/list", nil, &ix); err != nil {
		return nil, err
	}
	return ix, nil
}

// Status returns the status fields of the unit at ordinal. A non-empty
// expect makes the server refuse if the ordinal names another unit.
func (c *Client) Status(ctx context.Context, ordinal int, expect string) (*StatusReply, error) {
	reply := &StatusReply{Fields: core.StatusFields{}}
	h, err := c.do(ctx, http.MethodGet, ordinalPath(ordinal, ""), expectQuery(expect), &reply.Fields)
	if err != nil {
		return nil, err
	}
	reply.Unit = h.Get(api.UnitNameHeader)
	reply.Warning = h.Get("Warning")
	return reply, nil
}

// Logs returns the last n journal lines of the unit at ordinal. A negative
// n asks for the server's default.
func (c *Client) Logs(ctx context.Context, ordinal, n int, expect string) ([]string, error) {
	p := ordinalPath(ordinal, "/logs")
	if n >= 0 {
		p += "/" + strconv.Itoa(n)
	}
	var res api.ResultResponse
	if _, err := c.do(ctx, http.MethodGet, p, expectQuery(expect), &res); err != nil {
		return nil, err
	}
	return res.Result, nil
}

// Action runs verb on the unit at ordinal and returns the relayed output.
func (c *Client) Action(ctx context.Context, ordinal int, verb core.Verb, expect string) ([]string, error) {
	var res api.ResultResponse
	if _, err := c.do(ctx, http.MethodPost, ordinalPath(ordinal, "/"+string(verb)), expectQuery(expect), &res); err != nil {
		return nil, err
	}
	return res.Result, nil
}

// Health queries the unauthenticated /health route.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var h api.HealthResponse
	_, err := c.do(ctx, http.MethodGet, "/health", nil, &h)
	return h, err
}

// Ping is Health reduced to an error, for liveness checks.
func (c *Client) Ping(ctx context.Context) error {
	h, err := c.Health(ctx)
	if err != nil {
		return err
	}
	if h.Status != "healthy" {
		return fmt.Errorf("server reports %q", h.Status)
	}
	return nil
}

func ordinalPath(ordinal int, suffix string) string {
	return "/" + strconv.Itoa(ordinal) + suffix
}

func expectQuery(expect string) url.Values {
	if expect == "" {
		return nil
	}
	return url.Values{"expect": {expect}}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) (http.Header, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Text: string(body)}
		if jsonErr := json.Unmarshal(body, &apiErr.Body); jsonErr != nil {
			apiErr.Body = api.ErrorResponse{}
		}
		return resp.Header, apiErr
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.Header, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.Header, nil
}

// IsUnauthorized reports whether err is a rejected credential.
func IsUnauthorized(err error) bool {
	return errors.Is(err, api.ErrUnauthorized)
}
