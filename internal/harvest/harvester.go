// Package harvest runs complete harvests: it drives a crawl, feeds the raw
// results through extraction, and persists every record into a named
// dataset.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/douyin-harvester/internal/console"
	"github.com/JakeFAU/douyin-harvester/internal/crawl"
	"github.com/JakeFAU/douyin-harvester/internal/export"
	"github.com/JakeFAU/douyin-harvester/internal/extract"
	"github.com/JakeFAU/douyin-harvester/internal/metrics"
	"github.com/JakeFAU/douyin-harvester/internal/payload"
	"github.com/JakeFAU/douyin-harvester/internal/schema"
	"github.com/JakeFAU/douyin-harvester/internal/storage"
)

// Command names.
const (
	CommandSearch      = "search"
	CommandComment     = "comment"
	CommandAutoComment = "auto-comment"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	// StatusEmpty marks a run that produced no dataset.
	StatusEmpty = "empty"
)

// AutoCommentPages is the default search depth of an auto-comment run.
const AutoCommentPages = 3

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator issues run ids.
type IDGenerator interface {
	NewID() (string, error)
}

// StorageConfig selects where datasets are written.
type StorageConfig struct {
	Format string
	Root   string
	Folder string
	DSN    string
}

// Config wires a Harvester.
type Config struct {
	Sender    crawl.Sender
	Extractor *extract.Extractor
	Storage   StorageConfig
	// MaxPages is the page budget of comment crawls.
	MaxPages int
	Location *time.Location
	Clock    Clock
	IDs      IDGenerator
	Exporter *export.Exporter
	Reporter console.Reporter
	Logger   *zap.Logger
	// NewBackend overrides backend construction.
	NewBackend func(storage.Options) (storage.Backend, error)
}

// CommentRequest describes one comment run.
type CommentRequest struct {
	WorkIDs []string `json:"work_ids"`
	// Pages overrides the configured page budget when positive.
	Pages int `json:"pages,omitempty"`
}

// Job is a queued run of any command.
type Job struct {
	// RunID is assigned up front when set; otherwise a new id is issued.
	RunID   string         `json:"run_id,omitempty"`
	Command string         `json:"command"`
	Search  SearchRequest  `json:"search"`
	Comment CommentRequest `json:"comment"`
}

// Dataset reports what one dataset received.
type Dataset struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Records int    `json:"records"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID    string    `json:"run_id"`
	Command  string    `json:"command"`
	Status   string    `json:"status"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Datasets []Dataset `json:"datasets"`
	Objects  []string  `json:"objects,omitempty"`
}

// Records returns the number of records saved across datasets.
func (s Summary) Records() int {
	total := 0
	for _, d := range s.Datasets {
		total += d.Records
	}
	return total
}

// Files returns the distinct local files written by the run.
func (s Summary) Files() []string {
	var files []string
	for _, d := range s.Datasets {
		if d.Path != "" && !slices.Contains(files, d.Path) {
			files = append(files, d.Path)
		}
	}
	return files
}

// Harvester runs harvest commands.
type Harvester struct {
	sender     crawl.Sender
	extractor  *extract.Extractor
	storage    StorageConfig
	dir        string
	maxPages   int
	location   *time.Location
	clock      Clock
	ids        IDGenerator
	exporter   *export.Exporter
	reporter   console.Reporter
	logger     *zap.Logger
	newBackend func(storage.Options) (storage.Backend, error)
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// New validates cfg, prepares the data folder, and builds a Harvester.
func New(cfg Config) (*Harvester, error) {
	if cfg.Sender == nil {
		return nil, errors.New("harvest: sender is required")
	}
	if cfg.Extractor == nil {
		return nil, errors.New("harvest: extractor is required")
	}
	if cfg.IDs == nil {
		return nil, errors.New("harvest: id generator is required")
	}
	dir, err := storage.Prepare(cfg.Storage.Root, cfg.Storage.Folder)
	if err != nil {
		return nil, err
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = wallClock{}
	}
	if cfg.Reporter == nil {
		cfg.Reporter = console.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.NewBackend == nil {
		cfg.NewBackend = storage.New
	}
	return &Harvester{
		sender:     cfg.Sender,
		extractor:  cfg.Extractor,
		storage:    cfg.Storage,
		dir:        dir,
		maxPages:   cfg.MaxPages,
		location:   cfg.Location,
		clock:      cfg.Clock,
		ids:        cfg.IDs,
		exporter:   cfg.Exporter,
		reporter:   cfg.Reporter,
		logger:     cfg.Logger,
		newBackend: cfg.NewBackend,
	}, nil
}

// Run executes a queued job.
func (h *Harvester) Run(ctx context.Context, job Job) (Summary, error) {
	switch job.Command {
	case CommandSearch:
		return h.search(ctx, job.RunID, job.Search)
	case CommandComment:
		return h.runComments(ctx, job.RunID, job.Comment)
	case CommandAutoComment:
		return h.autoComments(ctx, job.RunID, job.Search.Keyword, job.Search.Pages)
	default:
		return Summary{}, fmt.Errorf("unknown command %q", job.Command)
	}
}

// Search runs a search and saves its results as one dataset.
func (h *Harvester) Search(ctx context.Context, req SearchRequest) (Summary, error) {
	return h.search(ctx, "", req)
}

func (h *Harvester) search(ctx context.Context, runID string, req SearchRequest) (Summary, error) {
	s, err := h.begin(CommandSearch, runID)
	if err != nil {
		return Summary{}, err
	}
	req = req.Normalize()
	items, err := h.collect(ctx, req)
	if err == nil {
		err = h.saveSearch(ctx, s, req, items)
	}
	return h.finish(ctx, s, err)
}

// Comments crawls the comments of every work into one dataset per work. A
// failed work is reported and the remaining works still run.
func (h *Harvester) Comments(ctx context.Context, req CommentRequest) (Summary, error) {
	return h.runComments(ctx, "", req)
}

func (h *Harvester) runComments(ctx context.Context, runID string, req CommentRequest) (Summary, error) {
	s, err := h.begin(CommandComment, runID)
	if err != nil {
		return Summary{}, err
	}
	if len(req.WorkIDs) == 0 {
		return h.finish(ctx, s, errors.New("at least one work id is required"))
	}
	pages := req.Pages
	if pages <= 0 {
		pages = h.maxPages
	}
	return h.finish(ctx, s, h.comments(ctx, s, req.WorkIDs, pages))
}

// AutoComments searches videos by keyword, crawls the comments of every work
// found, and finally saves the search results themselves.
func (h *Harvester) AutoComments(ctx context.Context, keyword string, pages int) (Summary, error) {
	return h.autoComments(ctx, "", keyword, pages)
}

func (h *Harvester) autoComments(ctx context.Context, runID, keyword string, pages int) (Summary, error) {
	s, err := h.begin(CommandAutoComment, runID)
	if err != nil {
		return Summary{}, err
	}
	if pages <= 0 {
		pages = AutoCommentPages
	}
	req := SearchRequest{
		Keyword:  keyword,
		Type:     crawl.SearchVideo,
		Pages:    pages,
		SortType: SortMostLiked,
	}.Normalize()
	items, err := h.collect(ctx, req)
	if err != nil || len(items) == 0 {
		if err == nil {
			h.reporter.Error("no search results for %q", keyword)
		}
		return h.finish(ctx, s, err)
	}
	ids := searchWorkIDs(items)
	h.reporter.Info("found %d works for %q", len(ids), keyword)
	errs := []error{h.comments(ctx, s, ids, h.maxPages)}
	if ctx.Err() == nil {
		errs = append(errs, h.saveSearch(ctx, s, req, items))
	}
	return h.finish(ctx, s, errors.Join(errs...))
}

func searchWorkIDs(items []payload.Node) []string {
	var ids []string
	for _, item := range items {
		id := item.String("aweme_info.aweme_id", "")
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (h *Harvester) collect(ctx context.Context, req SearchRequest) ([]payload.Node, error) {
	search, err := crawl.NewSearch(h.sender, crawl.SearchOptions{
		Keyword:     req.Keyword,
		Type:        req.Type,
		Pages:       req.Pages,
		SortType:    req.SortType,
		PublishTime: req.PublishTime,
	}, h.reporter, h.logger)
	if err != nil {
		return nil, err
	}
	items, err := search.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", req.Keyword, err)
	}
	return items, nil
}

func (h *Harvester) saveSearch(ctx context.Context, s *Summary, req SearchRequest, items []payload.Node) error {
	if len(items) == 0 {
		h.reporter.Error("no search results for %q", req.Keyword)
		return nil
	}
	name, err := SearchName(h.clock.Now().In(h.location), req)
	if err != nil {
		return err
	}
	kind := schema.Works
	if req.Type == crawl.SearchUser {
		kind = schema.SearchUsers
	}
	err = h.persist(ctx, s, kind, name, req.RenameFrom, func(rec extract.Recorder) error {
		if req.Type == crawl.SearchUser {
			_, err := h.extractor.SearchUsers(ctx, items, rec)
			return err
		}
		_, err := h.extractor.SearchGeneral(ctx, items, rec)
		return err
	})
	if err == nil {
		h.reporter.Info("search data saved as %s", name)
	}
	return err
}

func (h *Harvester) comments(ctx context.Context, s *Summary, ids []string, pages int) error {
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := h.persist(ctx, s, schema.Comments, CommentName(id), "", func(rec extract.Recorder) error {
			c, err := crawl.NewComment(h.sender, h.extractor, crawl.CommentOptions{WorkID: id, Pages: pages}, h.reporter, h.logger)
			if err != nil {
				return err
			}
			_, err = c.Run(ctx, rec)
			return err
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// persist runs fn against a freshly opened backend for one dataset and
// records the outcome in s.
func (h *Harvester) persist(
	ctx context.Context,
	s *Summary,
	kind schema.Kind,
	name, old string,
	fn func(extract.Recorder) error,
) error {
	ds := Dataset{Name: name, Kind: kind.Name}
	backend, err := h.newBackend(storage.Options{
		Format: h.storage.Format,
		Dir:    h.dir,
		Kind:   kind,
		Name:   name,
		Old:    old,
		DSN:    h.storage.DSN,
		Logger: h.logger,
	})
	if err == nil {
		rec := &countingRecorder{kind: kind.Name}
		err = storage.With(ctx, backend, func(b storage.Backend) error {
			rec.backend = b
			return fn(rec)
		})
		ds.Records = rec.saved
		if path, ok := storage.PathOf(backend); ok {
			ds.Path = path
		}
	}
	s.Datasets = append(s.Datasets, ds)
	if err != nil {
		s.Datasets[len(s.Datasets)-1].Error = err.Error()
		h.logger.Error("dataset failed", zap.String("dataset", name), zap.Error(err))
		h.reporter.Error("dataset %s failed: %v", name, err)
		return fmt.Errorf("dataset %s: %w", name, err)
	}
	h.logger.Info("dataset written",
		zap.String("dataset", name),
		zap.String("kind", kind.Name),
		zap.Int("records", ds.Records),
	)
	return nil
}

func (h *Harvester) begin(command, id string) (*Summary, error) {
	if id == "" {
		var err error
		if id, err = h.ids.NewID(); err != nil {
			return nil, fmt.Errorf("start %s run: %w", command, err)
		}
	}
	if h.storage.Format == storage.FormatNone {
		h.reporter.Warning("storage_format is not set, records will not be saved")
	}
	h.logger.Info("run started", zap.String("run_id", id), zap.String("command", command))
	return &Summary{RunID: id, Command: command, Started: h.clock.Now()}, nil
}

func (h *Harvester) finish(ctx context.Context, s *Summary, err error) (Summary, error) {
	s.Finished = h.clock.Now()
	switch {
	case err != nil:
		s.Status = StatusFailed
	case len(s.Datasets) == 0:
		s.Status = StatusEmpty
	default:
		s.Status = StatusSucceeded
	}
	metrics.ObserveRun(s.Command, s.Status)

	if h.exporter.Enabled() && ctx.Err() == nil {
		event := export.Event{
			RunID:      s.RunID,
			Command:    s.Command,
			Status:     s.Status,
			Records:    s.Records(),
			FinishedAt: s.Finished,
		}
		for _, d := range s.Datasets {
			event.Datasets = append(event.Datasets, d.Name)
		}
		if err != nil {
			event.Error = err.Error()
		}
		out, exportErr := h.exporter.Export(ctx, event, s.Files())
		s.Objects = out.Objects
		if exportErr != nil {
			h.logger.Warn("export failed", zap.String("run_id", s.RunID), zap.Error(exportErr))
			err = errors.Join(err, exportErr)
		}
	}

	h.logger.Info("run finished",
		zap.String("run_id", s.RunID),
		zap.String("status", s.Status),
		zap.Int("datasets", len(s.Datasets)),
		zap.Int("records", s.Records()),
		zap.Duration("elapsed", s.Finished.Sub(s.Started)),
	)
	return *s, err
}
