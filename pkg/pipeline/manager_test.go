package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-to-text/pkg/config"
	"video-to-text/pkg/models"
	"video-to-text/pkg/storage"
)

func newTestManager(t *testing.T, timeScale float64) (*Manager, storage.HandoffStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	m := NewManager(config.PipelineConfig{Workers: 2, QueueSize: 4, TimeScale: timeScale}, store)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Stop)
	return m, store
}

func waitDone(t *testing.T, m *Manager, session string) models.Progress {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := m.Wait(ctx, session)
	require.NoError(t, err)
	return p
}

func TestManagerRunCompletes(t *testing.T) {
	m, store := newTestManager(t, 0)
	require.NoError(t, store.PutSettings("tab", youtubeSettings()))

	p, err := m.StartRun("tab")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatePending, p.State)
	assert.NotEmpty(t, p.RunID)

	done := waitDone(t, m, "tab")
	assert.Equal(t, models.RunStateCompleted, done.State)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, 0, done.RemainingMinutes)

	result, err := store.Result("tab")
	require.NoError(t, err)
	assert.Equal(t, youtubeSettings(), result.Settings)

	events := m.Events().Since("tab", 0)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventTypeResult, last.Type)
	require.NotNil(t, last.Result)
	assert.Equal(t, result, *last.Result)

	// queued + 7 stages + result
	assert.Len(t, events, 9)
}

func TestManagerRequiresSettings(t *testing.T) {
	m, _ := newTestManager(t, 0)
	_, err := m.StartRun("tab")
	assert.ErrorIs(t, err, ErrNoSettings)

	_, ok := m.Progress("tab")
	assert.False(t, ok)
}

func TestManagerRejectsSecondActiveRun(t *testing.T) {
	m, store := newTestManager(t, 1)
	require.NoError(t, store.PutSettings("tab", youtubeSettings()))

	_, err := m.StartRun("tab")
	require.NoError(t, err)
	_, err = m.StartRun("tab")
	assert.ErrorIs(t, err, ErrRunActive)

	require.NoError(t, m.Cancel("tab"))
}

func TestManagerCancelRunningRun(t *testing.T) {
	m, store := newTestManager(t, 1)
	require.NoError(t, store.PutSettings("tab", youtubeSettings()))

	_, err := m.StartRun("tab")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		p, _ := m.Progress("tab")
		return p.State == models.RunStateRunning
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Cancel("tab"))

	p, ok := m.Progress("tab")
	require.True(t, ok)
	assert.Equal(t, models.RunStateCancelled, p.State)

	_, err = store.Settings("tab")
	assert.ErrorIs(t, err, storage.ErrSlotEmpty)
	_, err = store.Result("tab")
	assert.ErrorIs(t, err, storage.ErrSlotEmpty)

	assert.ErrorIs(t, m.Cancel("tab"), ErrNoActiveRun)

	events := m.Events().Since("tab", 0)
	assert.Equal(t, EventTypeCancelled, events[len(events)-1].Type)
}

func TestManagerCancelQueuedRun(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(config.PipelineConfig{Workers: 1, QueueSize: 1}, store)
	// no workers: the run stays queued
	m.ctx, m.cancel = context.WithCancel(context.Background())
	defer m.cancel()

	require.NoError(t, store.PutSettings("tab", youtubeSettings()))
	_, err := m.StartRun("tab")
	require.NoError(t, err)

	require.NoError(t, m.Cancel("tab"))
	p, _ := m.Progress("tab")
	assert.Equal(t, models.RunStateCancelled, p.State)

	_, err = store.Settings("tab")
	assert.ErrorIs(t, err, storage.ErrSlotEmpty)
}

func TestManagerQueueFull(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(config.PipelineConfig{Workers: 1, QueueSize: 1}, store)
	m.ctx, m.cancel = context.WithCancel(context.Background())
	defer m.cancel()

	require.NoError(t, store.PutSettings("a", youtubeSettings()))
	require.NoError(t, store.PutSettings("b", youtubeSettings()))

	_, err := m.StartRun("a")
	require.NoError(t, err)
	_, err = m.StartRun("b")
	assert.ErrorIs(t, err, ErrQueueFull)

	_, ok := m.Progress("b")
	assert.False(t, ok)
}

func TestManagerRestartAfterCompletion(t *testing.T) {
	m, store := newTestManager(t, 0)

	require.NoError(t, store.PutSettings("tab", youtubeSettings()))
	first, err := m.StartRun("tab")
	require.NoError(t, err)
	waitDone(t, m, "tab")

	require.NoError(t, store.PutSettings("tab", youtubeSettings()))
	second, err := m.StartRun("tab")
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, models.RunStateCompleted, waitDone(t, m, "tab").State)
}

func TestManagerStartRequiresStart(t *testing.T) {
	m := NewManager(config.PipelineConfig{Workers: 1, QueueSize: 1}, storage.NewMemoryStore())
	_, err := m.StartRun("tab")
	assert.Error(t, err)
}

func TestManagerStopDropsQueuedRuns(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(config.PipelineConfig{Workers: 1, QueueSize: 1}, store)
	m.ctx, m.cancel = context.WithCancel(context.Background())

	require.NoError(t, store.PutSettings("tab", youtubeSettings()))
	_, err := m.StartRun("tab")
	require.NoError(t, err)

	m.Stop()
	p, _ := m.Progress("tab")
	assert.Equal(t, models.RunStateCancelled, p.State)
	assert.Equal(t, ErrShuttingDown.Error(), p.Error)

	_, err = m.StartRun("tab")
	assert.ErrorIs(t, err, ErrShuttingDown)
}
