package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

const authPath = "/auth/v1"

// User is the subset of a GoTrue user record the proxy reads. Raw carries the
// full upstream object for passthrough responses.
type User struct {
	ID           string                 `json:"id"`
	Aud          string                 `json:"aud"`
	Role         string                 `json:"role"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`

	Raw json.RawMessage `json:"-"`
}

type SignUpParams struct {
	Email      string
	Password   string
	Data       map[string]interface{} // user metadata, e.g. full_name
	RedirectTo string                 // email confirmation redirect
}

// SignUpResult wraps the raw signup response. Depending on the backend's email
// confirmation settings the payload is either the bare user object or a
// session wrapping one; User is resolved either way.
type SignUpResult struct {
	Raw     json.RawMessage
	UserRaw json.RawMessage
	User    *User
}

// SignUp registers a new account. Call this on the service-level client: no
// user token exists yet.
func (c *Client) SignUp(ctx context.Context, params SignUpParams) (*SignUpResult, error) {
	payload := map[string]interface{}{
		"email":    params.Email,
		"password": params.Password,
	}
	if params.Data != nil {
		payload["data"] = params.Data
	}
	var query url.Values
	if params.RedirectTo != "" {
		query = url.Values{"redirect_to": {params.RedirectTo}}
	}
	raw, err := c.authRequest(ctx, http.MethodPost, "/signup", query, payload)
	if err != nil {
		return nil, err
	}

	res := &SignUpResult{Raw: raw}
	var wrapper struct {
		User json.RawMessage `json:"user"`
	}
	_ = json.Unmarshal(raw, &wrapper)
	res.UserRaw = wrapper.User
	if len(res.UserRaw) == 0 || string(res.UserRaw) == "null" {
		res.UserRaw = raw
	}
	usr := new(User)
	if err := json.Unmarshal(res.UserRaw, usr); err == nil && usr.ID != "" {
		usr.Raw = res.UserRaw
		res.User = usr
	}
	return res, nil
}

// SignInWithPassword exchanges credentials for a session. The response is
// passed through verbatim (access/refresh tokens plus the user object).
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (json.RawMessage, error) {
	return c.authRequest(ctx, http.MethodPost, "/token",
		url.Values{"grant_type": {"password"}},
		map[string]interface{}{"email": email, "password": password},
	)
}

// SignOut invalidates the session of the token this client is bound to.
func (c *Client) SignOut(ctx context.Context) error {
	_, err := c.authRequest(ctx, http.MethodPost, "/logout", nil, nil)
	return err
}

// GetUser resolves the identity behind the token this client is bound to.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	raw, err := c.authRequest(ctx, http.MethodGet, "/user", nil, nil)
	if err != nil {
		return nil, err
	}
	usr := new(User)
	if err := json.Unmarshal(raw, usr); err != nil {
		return nil, errors.Wrap(err, "decoding user")
	}
	if usr.ID == "" {
		return nil, &AuthError{Status: http.StatusUnauthorized, Message: "invalid token"}
	}
	usr.Raw = raw
	return usr, nil
}

// UpdateUser updates the metadata of the user this client's token belongs to.
func (c *Client) UpdateUser(ctx context.Context, data map[string]interface{}) (json.RawMessage, error) {
	return c.authRequest(ctx, http.MethodPut, "/user", nil, map[string]interface{}{"data": data})
}

func (c *Client) authRequest(ctx context.Context, method, path string, query url.Values, payload interface{}) (json.RawMessage, error) {
	body, err := marshalBody(payload)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, method, authPath+path, query, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, authError(resp)
	}
	return readBody(resp)
}
