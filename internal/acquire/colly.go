package acquire

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyTransport sends requests through a colly collector.
type CollyTransport struct {
	base *colly.Collector
}

// NewCollyTransport builds a CollyTransport. Responses with error statuses
// are still delivered so their bodies can be decoded.
func NewCollyTransport(cfg TransportConfig) (*CollyTransport, error) {
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
	)
	c.WithTransport(newHTTPTransport())
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c.SetRequestTimeout(timeout)
	if cfg.Proxy != "" {
		if err := c.SetProxy(cfg.Proxy); err != nil {
			return nil, fmt.Errorf("set colly proxy: %w", err)
		}
	}
	return &CollyTransport{base: c}, nil
}

// Do executes one request on a cloned collector so callbacks never leak
// between requests.
func (t *CollyTransport) Do(ctx context.Context, method, rawURL string, headers http.Header) (Response, error) {
	var (
		result   Response
		fetchErr error
	)
	collector := t.base.Clone()
	collector.OnResponse(func(r *colly.Response) {
		result = Response{Status: r.StatusCode, Body: append([]byte(nil), r.Body...)}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Request(method, rawURL, nil, nil, headers.Clone())
	}()

	select {
	case <-ctx.Done():
		return Response{}, fmt.Errorf("colly request canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return Response{}, fmt.Errorf("colly request failed: %w", err)
		}
		if fetchErr != nil {
			return Response{}, fmt.Errorf("colly response failed: %w", fetchErr)
		}
		return result, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
