package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/douyin-harvester/internal/crawl"
	"github.com/JakeFAU/douyin-harvester/internal/harvest"
	"github.com/JakeFAU/douyin-harvester/internal/store"
	storeMemory "github.com/JakeFAU/douyin-harvester/internal/store/memory"
)

type fakeSubmitter struct {
	mu   sync.Mutex
	jobs []harvest.Job
	err  error
}

func (f *fakeSubmitter) Submit(_ context.Context, job harvest.Job) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, job)
	return "run-1", nil
}

func newTestServer(sub *fakeSubmitter, runs store.RunStore, key string) *Server {
	return NewServer(sub, runs, Options{APIKey: key})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServerProbes(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeSubmitter{}, storeMemory.NewRunStore(), "")
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/readyz", "").Code)

	rec := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	notReady := NewServer(nil, nil, Options{})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, notReady, http.MethodGet, "/readyz", "").Code)
}

func TestServerSubmitSearch(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	s := newTestServer(sub, storeMemory.NewRunStore(), "")

	rec := do(t, s, http.MethodPost, "/v1/runs/search",
		`{"keyword":"猫","type":2,"pages":3,"sort_type":1,"publish_time":7,"rename_from":"综合排序_不限"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "run-1")

	require.Len(t, sub.jobs, 1)
	job := sub.jobs[0]
	assert.Equal(t, harvest.CommandSearch, job.Command)
	assert.Equal(t, harvest.SearchRequest{
		Keyword: "猫", Type: crawl.SearchUser, Pages: 3, SortType: 1, PublishTime: 7, RenameFrom: "综合排序_不限",
	}, job.Search)
}

func TestServerSubmitValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeSubmitter{}, storeMemory.NewRunStore(), "")
	tests := []struct {
		name string
		path string
		body string
	}{
		{"invalid json", "/v1/runs/search", "{invalid"},
		{"missing keyword", "/v1/runs/search", `{"pages":1}`},
		{"bad type", "/v1/runs/search", `{"keyword":"k","type":7}`},
		{"no works", "/v1/runs/comment", `{"links":"nothing"}`},
		{"auto without keyword", "/v1/runs/auto-comment", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, tt.path, tt.body).Code)
		})
	}
}

func TestServerSubmitCommentFromLinks(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	s := newTestServer(sub, storeMemory.NewRunStore(), "")

	rec := do(t, s, http.MethodPost, "/v1/runs/comment",
		`{"work_ids":["1"],"links":"https://www.douyin.com/video/7300000000000000001","pages":2}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, sub.jobs, 1)
	assert.Equal(t, []string{"1", "7300000000000000001"}, sub.jobs[0].Comment.WorkIDs)
	assert.Equal(t, 2, sub.jobs[0].Comment.Pages)

	rec = do(t, s, http.MethodPost, "/v1/runs/auto-comment", `{"keyword":"猫"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, harvest.CommandAutoComment, sub.jobs[1].Command)
}

func TestServerSubmitErrors(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeSubmitter{err: context.DeadlineExceeded}, storeMemory.NewRunStore(), "")
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodPost, "/v1/runs/search", `{"keyword":"k"}`).Code)

	s = newTestServer(&fakeSubmitter{err: errors.New("boom")}, storeMemory.NewRunStore(), "")
	assert.Equal(t, http.StatusInternalServerError, do(t, s, http.MethodPost, "/v1/runs/search", `{"keyword":"k"}`).Code)
}

func TestServerRunQueries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	runs := storeMemory.NewRunStore()
	require.NoError(t, runs.Create(ctx, store.Run{ID: "a", Submitted: time.Unix(1, 0)}))
	require.NoError(t, runs.Create(ctx, store.Run{ID: "b", Submitted: time.Unix(2, 0)}))
	require.NoError(t, runs.Complete(ctx, "a", harvest.Summary{Status: harvest.StatusSucceeded}, nil, time.Unix(3, 0)))
	s := newTestServer(&fakeSubmitter{}, runs, "")

	rec := do(t, s, http.MethodGet, "/v1/runs/a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Run store.Run `json:"run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, store.StateSucceeded, got.Run.State)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/v1/runs/zzz", "").Code)

	rec = do(t, s, http.MethodGet, "/v1/runs?state=queued", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Runs  []store.Run `json:"runs"`
		Total int         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Runs, 1)
	assert.Equal(t, "b", listed.Runs[0].ID)

	rec = do(t, s, http.MethodGet, "/v1/runs?limit=1&offset=1", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, 2, listed.Total)
	require.Len(t, listed.Runs, 1)
	assert.Equal(t, "a", listed.Runs[0].ID)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/v1/runs?limit=-1", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/v1/runs?offset=x", "").Code)
}

func TestServerAPIKey(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeSubmitter{}, storeMemory.NewRunStore(), "secret")
	assert.Equal(t, http.StatusForbidden, do(t, s, http.MethodGet, "/v1/runs", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/v1/runs?api_key=secret", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", "").Code)
}
