package supabase

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

type AdminCreateUserParams struct {
	Email        string                 `json:"email"`
	Password     string                 `json:"password"`
	EmailConfirm bool                   `json:"email_confirm"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
}

// AdminCreateUser creates a confirmed account through the GoTrue admin API.
// Requires the service credential; a caller-token-bound client will be
// rejected upstream.
func (c *Client) AdminCreateUser(ctx context.Context, params AdminCreateUserParams) (*User, error) {
	raw, err := c.authRequest(ctx, http.MethodPost, "/admin/users", nil, params)
	if err != nil {
		return nil, err
	}
	usr := new(User)
	if err := json.Unmarshal(raw, usr); err != nil {
		return nil, errors.Wrap(err, "decoding created user")
	}
	usr.Raw = raw
	return usr, nil
}
