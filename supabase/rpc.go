package supabase

import (
	"context"
	"encoding/json"
	"net/http"
)

// RPC invokes a named stored procedure with args as its argument object.
// The function name is forwarded without any allow-listing; see the API layer
// notes on this deliberate (and risky) permissiveness.
func (c *Client) RPC(ctx context.Context, function string, args interface{}) (json.RawMessage, error) {
	body, err := marshalBody(args)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, restPath+"rpc/"+function, nil, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, restError(resp)
	}
	data, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}
