package supabase

import (
	"bytes"
	"context"
	"net/http"
)

const storagePath = "/storage/v1"

// UploadObject stores raw bytes under bucket/key with the given MIME type.
// The bucket name is forwarded as-is; a nonexistent bucket fails upstream.
func (c *Client) UploadObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	req, err := c.newRequest(ctx, http.MethodPost, storagePath+"/object/"+bucket+"/"+key, nil, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return restError(resp)
	}
	_, err = readBody(resp)
	return err
}

// PublicURL returns the public (unauthenticated) URL of an object.
func (c *Client) PublicURL(bucket, key string) string {
	return c.baseURL + storagePath + "/object/public/" + bucket + "/" + key
}
