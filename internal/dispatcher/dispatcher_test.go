package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/douyin-harvester/internal/clock/system"
	"github.com/JakeFAU/douyin-harvester/internal/harvest"
	queueMemory "github.com/JakeFAU/douyin-harvester/internal/queue/memory"
	"github.com/JakeFAU/douyin-harvester/internal/store"
	storeMemory "github.com/JakeFAU/douyin-harvester/internal/store/memory"
)

type fakeIDs struct {
	mu sync.Mutex
	n  int
}

func (f *fakeIDs) NewID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return fmt.Sprintf("run-%d", f.n), nil
}

type fakeRunner struct {
	mu   sync.Mutex
	jobs []harvest.Job
	done chan struct{}
	err  error
}

func (r *fakeRunner) Run(_ context.Context, job harvest.Job) (harvest.Summary, error) {
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()
	defer func() { r.done <- struct{}{} }()
	if r.err != nil {
		return harvest.Summary{RunID: job.RunID, Status: harvest.StatusFailed}, r.err
	}
	return harvest.Summary{RunID: job.RunID, Command: job.Command, Status: harvest.StatusSucceeded}, nil
}

func newDispatcher(runner Runner, q Queue) (*Dispatcher, *storeMemory.RunStore) {
	runs := storeMemory.NewRunStore()
	return New(Config{
		Queue:  q,
		Runner: runner,
		Runs:   runs,
		IDs:    &fakeIDs{},
		Clock:  system.Fixed(time.Unix(10, 0)),
	}), runs
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("runner was not invoked")
	}
}

func TestDispatcherRunsSubmittedJobs(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{done: make(chan struct{}, 2)}
	d, runs := newDispatcher(runner, queueMemory.NewQueue(4))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(stopped)
	}()

	id, err := d.Submit(ctx, harvest.Job{Command: harvest.CommandSearch, Search: harvest.SearchRequest{Keyword: "k"}})
	require.NoError(t, err)
	assert.Equal(t, "run-1", id)
	waitFor(t, runner.done)

	require.Eventually(t, func() bool {
		run, err := runs.Get(context.Background(), id)
		return err == nil && run.State == store.StateSucceeded
	}, time.Second, 10*time.Millisecond)

	run, err := runs.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "k", run.Job.Search.Keyword)
	assert.Equal(t, id, run.Job.RunID)
	require.NotNil(t, run.Started)
	require.NotNil(t, run.Finished)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

func TestDispatcherRecordsFailures(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{done: make(chan struct{}, 1), err: errors.New("upstream down")}
	q := queueMemory.NewQueue(1)
	d, runs := newDispatcher(runner, q)

	id, err := d.Submit(context.Background(), harvest.Job{Command: harvest.CommandComment})
	require.NoError(t, err)
	q.Close()
	d.Run(context.Background())

	run, err := runs.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, store.StateFailed, run.State)
	assert.Equal(t, "upstream down", run.Error)
}

type errorQueue struct{ err error }

func (q errorQueue) Enqueue(context.Context, harvest.Job) error { return q.err }

func (q errorQueue) Dequeue(context.Context) (harvest.Job, error) { return harvest.Job{}, q.err }

func TestDispatcherSubmitForwardsQueueErrors(t *testing.T) {
	t.Parallel()

	d, runs := newDispatcher(&fakeRunner{}, errorQueue{err: errors.New("boom")})

	_, err := d.Submit(context.Background(), harvest.Job{Command: harvest.CommandSearch})
	require.EqualError(t, err, "queue enqueue: boom")

	listed, err := runs.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, store.StateFailed, listed[0].State)
}
