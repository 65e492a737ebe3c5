package acquire

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Response is a raw upstream reply. Status codes carry no meaning for the
// pipeline; only the body is inspected.
type Response struct {
	Status int
	Body   []byte
}

// Transport performs one HTTP exchange.
type Transport interface {
	Do(ctx context.Context, method, rawURL string, headers http.Header) (Response, error)
}

// TransportConfig holds settings common to every transport.
type TransportConfig struct {
	Timeout time.Duration
	Proxy   string
}

// RestyTransport sends requests with a resty client.
type RestyTransport struct {
	client *resty.Client
}

// NewRestyTransport builds a RestyTransport. Resty's own retries stay off.
func NewRestyTransport(cfg TransportConfig) *RestyTransport {
	client := resty.New()
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.Proxy != "" {
		client.SetProxy(cfg.Proxy)
	}
	return &RestyTransport{client: client}
}

// Do executes the request and returns the body whatever the status.
func (t *RestyTransport) Do(ctx context.Context, method, rawURL string, headers http.Header) (Response, error) {
	res, err := t.client.R().
		SetContext(ctx).
		SetHeaderMultiValues(headers).
		Execute(method, rawURL)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	return Response{Status: res.StatusCode(), Body: res.Body()}, nil
}
