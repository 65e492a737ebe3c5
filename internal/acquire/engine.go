// Package acquire sends signed requests to the platform's web API with
// bounded retries and randomized pacing, and decodes the JSON replies.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/douyin-harvester/internal/console"
	"github.com/JakeFAU/douyin-harvester/internal/credential"
	"github.com/JakeFAU/douyin-harvester/internal/metrics"
	"github.com/JakeFAU/douyin-harvester/internal/payload"
	"github.com/JakeFAU/douyin-harvester/internal/policy/pacing"
	"github.com/JakeFAU/douyin-harvester/internal/signer"
)

// Defaults applied to outgoing requests.
const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36"
	DefaultReferer = "https://www.douyin.com/"
)

// PlatformParams returns the query parameters every endpoint requires.
func PlatformParams() url.Values {
	return url.Values{
		"device_platform": {"webapp"},
		"aid":             {"6383"},
		"channel":         {"channel_pc_web"},
		"version_code":    {"170400"},
		"cookie_enabled":  {"true"},
		"platform":        {"PC"},
	}
}

// Request describes one logical upstream call. Params are merged over
// PlatformParams; Headers are merged over the engine defaults.
type Request struct {
	URL         string
	Method      string
	Params      url.Values
	Headers     http.Header
	SignVersion int
}

// Config wires the engine's collaborators.
type Config struct {
	Transport  Transport
	Signer     signer.Signer
	Credential *credential.Cell
	Pacer      *pacing.Pacer
	Retry      RetryPolicy
	Reporter   console.Reporter
	Logger     *zap.Logger
	UserAgent  string
	// UACode is the user agent fingerprint handed to the signer.
	UACode string
}

// Engine is the fetch engine.
type Engine struct {
	transport Transport
	signer    signer.Signer
	cred      *credential.Cell
	pacer     *pacing.Pacer
	retry     RetryPolicy
	reporter  console.Reporter
	logger    *zap.Logger
	userAgent string
	uaCode    string
}

// New builds an Engine. Transport and Signer are required.
func New(cfg Config) (*Engine, error) {
	if cfg.Transport == nil {
		return nil, errors.New("acquire: transport is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("acquire: signer is required")
	}
	if cfg.Credential == nil {
		cfg.Credential = credential.NewCell("")
	}
	if cfg.Pacer == nil {
		cfg.Pacer = pacing.New(pacing.Config{Min: pacing.DefaultMin, Max: pacing.DefaultMax})
	}
	if cfg.Reporter == nil {
		cfg.Reporter = console.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Engine{
		transport: cfg.Transport,
		signer:    cfg.Signer,
		cred:      cfg.Credential,
		pacer:     cfg.Pacer,
		retry:     cfg.Retry,
		reporter:  cfg.Reporter,
		logger:    cfg.Logger,
		userAgent: cfg.UserAgent,
		uaCode:    cfg.UACode,
	}, nil
}

// Send performs req, retrying transport and decode failures. When every
// attempt fails the returned error wraps ErrRetriesExhausted and the last
// failure.
func (e *Engine) Send(ctx context.Context, req Request) (payload.Node, error) {
	target, err := e.signedURL(ctx, req)
	if err != nil {
		return payload.Node{}, err
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	headers := e.headers(req.Headers)
	endpoint := endpointLabel(req.URL)

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := e.pacer.Acquire(ctx); err != nil {
			return payload.Node{}, err
		}
		start := time.Now()
		node, err := e.attempt(ctx, method, target, headers)
		elapsed := time.Since(start)
		metrics.ObservePacing(e.pacer.Wait(ctx))

		if err == nil {
			metrics.ObserveUpstream(endpoint, "ok", elapsed)
			return node, nil
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return payload.Node{}, fmt.Errorf("request %s: %w", endpoint, ctxErr)
		}
		if !e.retry.ShouldRetry(err, attempt) {
			break
		}
		metrics.ObserveUpstream(endpoint, "retry", elapsed)
		e.logger.Debug("upstream attempt failed", zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt+1), zap.Error(err))
		e.reporter.Warning("request to %s failed (attempt %d of %d): %v",
			endpoint, attempt+1, e.retry.Attempts(), err)
	}

	metrics.ObserveUpstream(endpoint, "exhausted", 0)
	e.reporter.Error("request to %s failed after %d attempts", endpoint, e.retry.Attempts())
	return payload.Node{}, fmt.Errorf("request %s: %w: %w", endpoint, ErrRetriesExhausted, lastErr)
}

func (e *Engine) attempt(ctx context.Context, method, target string, headers http.Header) (payload.Node, error) {
	res, err := e.transport.Do(ctx, method, target, headers)
	if err != nil {
		return payload.Node{}, &TransportError{Err: err}
	}
	node, err := payload.Decode(res.Body)
	if err != nil {
		return payload.Node{}, &DecodeError{Status: res.Status, Err: err}
	}
	return node, nil
}

func (e *Engine) signedURL(ctx context.Context, req Request) (string, error) {
	params := PlatformParams()
	for key, values := range req.Params {
		params[key] = values
	}
	sig, err := e.signer.Sign(ctx, params, e.uaCode, req.SignVersion)
	if err != nil {
		return "", fmt.Errorf("sign request: %w", err)
	}
	params.Set(signer.Param, sig)
	return req.URL + "?" + params.Encode(), nil
}

func (e *Engine) headers(extra http.Header) http.Header {
	h := http.Header{}
	h.Set("User-Agent", e.userAgent)
	h.Set("Referer", DefaultReferer)
	if cookie := e.cred.Load().Cookie; cookie != "" {
		h.Set("Cookie", cookie)
	}
	for key, values := range extra {
		h.Del(key)
		for _, v := range values {
			h.Add(key, v)
		}
	}
	return h
}

func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "unknown"
	}
	return u.Path
}
