// pkg/vault/transport.go

package vault

import (
	"context"
	"net/url"
)

// RawResponse is one HTTP exchange with Vault, body fully read.
type RawResponse struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *RawResponse) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport issues single requests against Vault's HTTP API. A returned
// error means no HTTP response was obtained; every status code, including
// 4xx and 5xx, is reported through RawResponse.
type Transport interface {
	Read(ctx context.Context, path string, query url.Values) (*RawResponse, error)
	Write(ctx context.Context, path string, body []byte) (*RawResponse, error)
}
