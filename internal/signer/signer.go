// Package signer produces the request signature the platform expects on every
// query string. The algorithm itself lives outside this module; callers plug
// in a function or a signing service.
package signer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// Param is the query parameter that carries the signature.
const Param = "X-Bogus"

// Signer versions.
const (
	VersionFirstPage = 23
	VersionPaged     = 174
)

// Signer signs an encoded parameter set.
type Signer interface {
	Sign(ctx context.Context, params url.Values, uaCode string, version int) (string, error)
}

// Func adapts a function to Signer.
type Func func(ctx context.Context, params url.Values, uaCode string, version int) (string, error)

// Sign calls f.
func (f Func) Sign(ctx context.Context, params url.Values, uaCode string, version int) (string, error) {
	return f(ctx, params, uaCode, version)
}

// Static returns the same signature for every request.
type Static string

// Sign returns s.
func (s Static) Sign(context.Context, url.Values, string, int) (string, error) {
	return string(s), nil
}

// Remote asks an HTTP signing service for the signature.
type Remote struct {
	endpoint string
	client   *resty.Client
}

type remoteRequest struct {
	Query         string `json:"query"`
	UserAgentCode string `json:"ua_code"`
	Version       int    `json:"version"`
}

// NewRemote creates a Remote signer posting to endpoint.
func NewRemote(endpoint string, timeout time.Duration) *Remote {
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &Remote{endpoint: endpoint, client: client}
}

// Sign posts the encoded query and reads the signature from the JSON
// response field named after Param.
func (r *Remote) Sign(ctx context.Context, params url.Values, uaCode string, version int) (string, error) {
	var out map[string]string
	res, err := r.client.R().
		SetContext(ctx).
		SetBody(remoteRequest{Query: params.Encode(), UserAgentCode: uaCode, Version: version}).
		SetResult(&out).
		Post(r.endpoint)
	if err != nil {
		return "", fmt.Errorf("call signing service: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("signing service returned %s", res.Status())
	}
	sig := out[Param]
	if sig == "" {
		return "", errors.New("signing service returned no signature")
	}
	return sig, nil
}
