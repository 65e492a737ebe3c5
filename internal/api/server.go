package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/douyin-harvester/internal/crawl"
	"github.com/JakeFAU/douyin-harvester/internal/harvest"
	"github.com/JakeFAU/douyin-harvester/internal/metrics"
	"github.com/JakeFAU/douyin-harvester/internal/store"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 500
	requestTimeout  = 30 * time.Second
)

// Submitter queues harvest jobs.
type Submitter interface {
	Submit(ctx context.Context, job harvest.Job) (string, error)
}

// Options configures a Server.
type Options struct {
	// APIKey, when set, is required on every /v1 request.
	APIKey string
	Logger *zap.Logger
}

// Server wires HTTP handlers to the dispatcher and run store.
type Server struct {
	router    chi.Router
	submitter Submitter
	runs      store.RunStore
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(submitter Submitter, runs store.RunStore, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		submitter: submitter,
		runs:      runs,
		logger:    opts.Logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(metrics.Middleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1/runs", func(r chi.Router) {
		r.Use(timeoutMiddleware(requestTimeout))
		if opts.APIKey != "" {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Get("/", s.listRuns)
		r.Post("/search", s.submitSearch)
		r.Post("/comment", s.submitComment)
		r.Post("/auto-comment", s.submitAutoComment)
		r.Get("/{run_id}", s.getRun)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.submitter == nil || s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "dispatcher unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type searchRequest struct {
	Keyword     string `json:"keyword"`
	Type        *int   `json:"type"`
	Pages       int    `json:"pages"`
	SortType    int    `json:"sort_type"`
	PublishTime int    `json:"publish_time"`
	RenameFrom  string `json:"rename_from"`
}

type commentRequest struct {
	WorkIDs []string `json:"work_ids"`
	// Links may hold any text containing work share links.
	Links string `json:"links"`
	Pages int    `json:"pages"`
}

func (s *Server) submitSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword required")
		return
	}
	searchType := crawl.SearchGeneral
	if req.Type != nil {
		searchType = crawl.SearchType(*req.Type)
		if !searchType.Valid() {
			writeError(w, http.StatusBadRequest, "unknown search type")
			return
		}
	}
	s.submit(w, r, harvest.Job{
		Command: harvest.CommandSearch,
		Search: harvest.SearchRequest{
			Keyword:     req.Keyword,
			Type:        searchType,
			Pages:       req.Pages,
			SortType:    req.SortType,
			PublishTime: req.PublishTime,
			RenameFrom:  req.RenameFrom,
		},
	})
}

func (s *Server) submitComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	ids := append(req.WorkIDs, harvest.WorkIDs(req.Links)...)
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "work_ids or links required")
		return
	}
	s.submit(w, r, harvest.Job{
		Command: harvest.CommandComment,
		Comment: harvest.CommentRequest{WorkIDs: ids, Pages: req.Pages},
	})
}

func (s *Server) submitAutoComment(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword required")
		return
	}
	s.submit(w, r, harvest.Job{
		Command: harvest.CommandAutoComment,
		Search:  harvest.SearchRequest{Keyword: req.Keyword, Pages: req.Pages},
	})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, job harvest.Job) {
	id, err := s.submitter.Submit(r.Context(), job)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Get(r.Context(), chi.URLParam(r, "run_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

// listRuns handles GET /v1/runs?state=&limit=&offset=.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	state := store.State(r.URL.Query().Get("state"))
	runs, err := s.runs.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	filtered := make([]store.Run, 0, len(runs))
	for _, run := range runs {
		if state == "" || run.State == state {
			filtered = append(filtered, run)
		}
	}
	if offset > len(filtered) {
		offset = len(filtered)
	}
	end := min(offset+limit, len(filtered))
	writeJSON(w, http.StatusOK, map[string]any{"runs": filtered[offset:end], "total": len(filtered)})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Info("request completed",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (rw *statusWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
