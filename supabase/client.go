// Package supabase is a thin client for the hosted backend-as-a-service:
// GoTrue auth, PostgREST tables, object storage and stored-procedure RPC.
//
// A Client constructed with NewClient authenticates as the process's own
// service credential. WithToken derives a client bound to a caller's bearer
// token instead, so that the backend's row-level security evaluates every call
// as that caller. Which of the two a call site uses is the whole access-control
// story of this proxy; keep it visible.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

type Client struct {
	baseURL string
	apiKey  string
	token   string // caller bearer token; empty means service-level
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WithToken returns a copy of the client whose requests are authorized as the
// holder of the given bearer token rather than the service credential.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// BaseURL returns the backend base URL (no trailing slash).
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) bearer() string {
	if c.token != "" {
		return c.token
	}
	return c.apiKey
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.Wrapf(err, "building %s %s request", method, path)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	return resp, nil
}

func marshalBody(body interface{}) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	switch b := body.(type) {
	case json.RawMessage:
		return bytes.NewReader(b), nil
	case []byte:
		return bytes.NewReader(b), nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling request body")
	}
	return bytes.NewReader(data), nil
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}
	return data, nil
}
