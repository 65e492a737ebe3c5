// Package app builds the long-lived services of a harvester process from
// configuration and owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/douyin-harvester/internal/acquire"
	"github.com/JakeFAU/douyin-harvester/internal/clock/system"
	"github.com/JakeFAU/douyin-harvester/internal/config"
	"github.com/JakeFAU/douyin-harvester/internal/console"
	"github.com/JakeFAU/douyin-harvester/internal/credential"
	"github.com/JakeFAU/douyin-harvester/internal/export"
	"github.com/JakeFAU/douyin-harvester/internal/extract"
	"github.com/JakeFAU/douyin-harvester/internal/harvest"
	"github.com/JakeFAU/douyin-harvester/internal/hash/sha256"
	"github.com/JakeFAU/douyin-harvester/internal/id/uuid"
	"github.com/JakeFAU/douyin-harvester/internal/policy/pacing"
	"github.com/JakeFAU/douyin-harvester/internal/signer"
)

// ErrNoSigner is returned when neither a signing service nor a static
// signature is configured.
var ErrNoSigner = errors.New("signer.endpoint or signer.static must be set")

// App holds the services shared by every command.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	reporter  console.Reporter
	cell      *credential.Cell
	refresher *credential.Refresher
	harvester *harvest.Harvester
	ids       *uuid.Generator
	closers   []func() error
}

// New wires the fetch engine, extractor, exporters, and harvester.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, reporter console.Reporter) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = console.NewZap(logger)
	}
	a := &App{cfg: cfg, logger: logger, reporter: reporter, ids: uuid.New()}

	sign, err := newSigner(cfg)
	if err != nil {
		return nil, err
	}
	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}

	a.cell = credential.NewCell(cfg.Cookie)
	if cfg.CookieFile != "" {
		a.refresher = credential.NewRefresher(a.cell, credential.FileSource(cfg.CookieFile), cfg.RefreshInterval(), logger)
		if err := a.refresher.Refresh(ctx); err != nil {
			logger.Warn("initial cookie load failed", zap.String("file", cfg.CookieFile), zap.Error(err))
		}
	}
	if a.cell.Load().Cookie == "" {
		reporter.Warning("no cookie configured, requests are sent anonymously")
	}

	minDelay, maxDelay := cfg.PacingBounds()
	engine, err := acquire.New(acquire.Config{
		Transport:  transport,
		Signer:     sign,
		Credential: a.cell,
		Pacer: pacing.New(pacing.Config{
			Min:               minDelay,
			Max:               maxDelay,
			RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		}),
		Retry:     acquire.RetryPolicy{MaxRetry: cfg.MaxRetry},
		Reporter:  reporter,
		Logger:    logger,
		UserAgent: cfg.HTTP.UserAgent,
		UACode:    cfg.HTTP.UACode,
	})
	if err != nil {
		return nil, fmt.Errorf("build fetch engine: %w", err)
	}

	extractor, err := extract.New(extract.Config{
		DateFormat: cfg.DateFormat,
		Location:   time.Local,
		Clock:      system.New(),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build extractor: %w", err)
	}

	exporter, err := a.newExporter(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.harvester, err = harvest.New(harvest.Config{
		Sender:    engine,
		Extractor: extractor,
		Storage: harvest.StorageConfig{
			Format: cfg.StorageFormat,
			Root:   cfg.Root,
			Folder: cfg.Folder,
			DSN:    cfg.DB.DSN,
		},
		MaxPages: cfg.MaxPages,
		Location: time.Local,
		Clock:    system.New(),
		IDs:      a.ids,
		Exporter: exporter,
		Reporter: reporter,
		Logger:   logger,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("build harvester: %w", err)
	}
	return a, nil
}

func newSigner(cfg config.Config) (signer.Signer, error) {
	switch {
	case cfg.Signer.Endpoint != "":
		return signer.NewRemote(cfg.Signer.Endpoint, cfg.RequestTimeout()), nil
	case cfg.Signer.Static != "":
		return signer.Static(cfg.Signer.Static), nil
	default:
		return nil, ErrNoSigner
	}
}

func newTransport(cfg config.Config) (acquire.Transport, error) {
	tc := acquire.TransportConfig{Timeout: cfg.RequestTimeout(), Proxy: cfg.HTTP.Proxy}
	if cfg.HTTP.Transport == "colly" {
		t, err := acquire.NewCollyTransport(tc)
		if err != nil {
			return nil, fmt.Errorf("build colly transport: %w", err)
		}
		return t, nil
	}
	return acquire.NewRestyTransport(tc), nil
}

// newExporter connects the configured export targets. Clients use
// Application Default Credentials.
func (a *App) newExporter(ctx context.Context) (*export.Exporter, error) {
	cfg := export.Config{
		Hasher:      sha256.New(),
		Prefix:      a.cfg.Export.Prefix,
		DeleteLocal: a.cfg.Export.DeleteLocal,
		Logger:      a.logger,
	}
	if bucket := a.cfg.Export.GCSBucket; bucket != "" {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create GCS client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		uploader, err := export.NewGCSUploader(client, bucket)
		if err != nil {
			return nil, err
		}
		cfg.Uploader = uploader
		a.logger.Info("dataset upload enabled", zap.String("bucket", bucket))
	}
	if topic := a.cfg.Export.TopicName; topic != "" {
		client, err := pubsub.NewClient(ctx, a.cfg.Export.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		notifier, err := export.NewPubSubNotifier(client, topic)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { notifier.Stop(); return nil })
		cfg.Notifier = notifier
		a.logger.Info("run notifications enabled", zap.String("topic", topic))
	}
	return export.New(cfg), nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Reporter returns the shared console reporter.
func (a *App) Reporter() console.Reporter { return a.reporter }

// Harvester returns the harvester.
func (a *App) Harvester() *harvest.Harvester { return a.harvester }

// IDs returns the run id generator.
func (a *App) IDs() *uuid.Generator { return a.ids }

// Credential returns the shared cookie cell.
func (a *App) Credential() *credential.Cell { return a.cell }

// StartBackground launches the cookie refresher when a cookie file is
// configured. It stops with ctx.
func (a *App) StartBackground(ctx context.Context) {
	if a.refresher == nil {
		return
	}
	go a.refresher.Run(ctx)
}

// Close releases clients in reverse order of creation and flushes the logger.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
