package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biterate/socialagent/internal/agent"
	"github.com/biterate/socialagent/internal/indexer"
	"github.com/biterate/socialagent/internal/storage"
	"github.com/biterate/socialagent/pkg/types"
)

const (
	pageA = "01234567-89ab-cdef-0123-456789abcdef"
	pageB = "fedcba98-7654-3210-fedc-ba9876543210"
)

type fakeClock struct {
	edited map[string]time.Time
	err    map[string]error
}

func (f *fakeClock) LastEdited(ctx context.Context, pageID string) (time.Time, error) {
	if err := f.err[pageID]; err != nil {
		return time.Time{}, err
	}
	return f.edited[pageID], nil
}

type fakeResyncer struct {
	calls  []string
	failed int
	err    error
}

func (f *fakeResyncer) Resync(ctx context.Context, sourceID, sourceType string) (*indexer.Statistics, error) {
	f.calls = append(f.calls, sourceType+":"+sourceID)
	if f.err != nil {
		return nil, f.err
	}
	return &indexer.Statistics{DocumentsSynced: 1 - f.failed, DocumentsFailed: f.failed, ChunksCreated: 2}, nil
}

type fakeRunner struct {
	runs int
	err  error
}

func (f *fakeRunner) Run(ctx context.Context) (*agent.Result, error) {
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Result{PostID: int64(f.runs), Status: storage.PostPublished}, nil
}

type fixture struct {
	clock    *fakeClock
	resync   *fakeResyncer
	runner   *fakeRunner
	store    *storage.SQLiteStorage
	watcher  *Watcher
	baseline time.Time
}

func newFixture(t *testing.T, autoPost bool) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	f := &fixture{
		clock: &fakeClock{
			edited: map[string]time.Time{pageA: base, pageB: base},
			err:    map[string]error{},
		},
		resync:   &fakeResyncer{},
		runner:   &fakeRunner{},
		store:    store,
		baseline: base,
	}
	f.watcher, err = New(Deps{
		Pages:   f.clock,
		State:   store,
		Indexer: f.resync,
		Agent:   f.runner,
	}, Settings{
		PageIDs:  []string{"0123456789abcdef0123456789abcdef", pageB},
		AutoPost: autoPost,
	})
	require.NoError(t, err)
	return f
}

func TestCheck_FirstSightingOnlyRecords(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	result, err := f.watcher.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, 2, result.Initialized)
	assert.Empty(t, result.Changed)
	assert.Empty(t, f.resync.calls)
	assert.Zero(t, f.runner.runs)

	stored, ok, err := f.store.PageState(ctx, pageA)
	require.NoError(t, err)
	assert.True(t, ok, "ids are normalized before being stored")
	assert.Equal(t, f.baseline.Format(time.RFC3339Nano), stored)
}

func TestCheck_ChangedPageIsResynced(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, err := f.watcher.Check(ctx)
	require.NoError(t, err)

	f.clock.edited[pageA] = f.baseline.Add(time.Hour)
	result, err := f.watcher.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{pageA}, result.Changed)
	assert.Equal(t, 1, result.Resynced)
	assert.Equal(t, []string{types.SourceNotionPage + ":" + pageA}, f.resync.calls)
	assert.Equal(t, 1, f.runner.runs)
	require.NotNil(t, result.Post)
	assert.Equal(t, storage.PostPublished, result.Post.Status)

	// unchanged on the next poll
	result, err = f.watcher.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Changed)
	assert.Len(t, f.resync.calls, 1)
	assert.Equal(t, 1, f.runner.runs)
}

func TestCheck_OnePostPerPoll(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, err := f.watcher.Check(ctx)
	require.NoError(t, err)

	f.clock.edited[pageA] = f.baseline.Add(time.Minute)
	f.clock.edited[pageB] = f.baseline.Add(time.Minute)
	result, err := f.watcher.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Resynced)
	assert.Equal(t, 1, f.runner.runs)
}

func TestCheck_AutoPostDisabled(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_, err := f.watcher.Check(ctx)
	require.NoError(t, err)

	f.clock.edited[pageB] = f.baseline.Add(time.Minute)
	result, err := f.watcher.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Resynced)
	assert.Zero(t, f.runner.runs)
	assert.Nil(t, result.Post)
}

func TestCheck_FailedResyncRetries(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, err := f.watcher.Check(ctx)
	require.NoError(t, err)

	f.clock.edited[pageA] = f.baseline.Add(time.Hour)
	f.resync.failed = 1
	result, err := f.watcher.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{pageA}, result.Changed)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Resynced)
	assert.Zero(t, f.runner.runs)

	stored, _, err := f.store.PageState(ctx, pageA)
	require.NoError(t, err)
	assert.Equal(t, f.baseline.Format(time.RFC3339Nano), stored, "state is kept until a resync succeeds")

	f.resync.failed = 0
	result, err = f.watcher.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Resynced)
	assert.Len(t, f.resync.calls, 2)
}

func TestCheck_EditTimeErrorSkipsPage(t *testing.T) {
	f := newFixture(t, true)
	f.clock.err[pageB] = errors.New("object_not_found")

	result, err := f.watcher.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Initialized)
	assert.Equal(t, 1, result.Failed)
}

func TestCheck_PostFailureIsLogged(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, err := f.watcher.Check(ctx)
	require.NoError(t, err)

	f.runner.err = errors.New("no content")
	f.clock.edited[pageA] = f.baseline.Add(time.Hour)
	result, err := f.watcher.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Resynced)
	assert.Nil(t, result.Post)
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{}, Settings{})
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.watcher.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
