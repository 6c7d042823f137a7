package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"video-to-text/pkg/config"
	"video-to-text/pkg/models"
	"video-to-text/pkg/storage"
)

var (
	ErrRunActive     = errors.New("a processing run is already active for this session")
	ErrNoActiveRun   = errors.New("no active processing run")
	ErrQueueFull     = errors.New("pipeline queue is full")
	ErrShuttingDown  = errors.New("pipeline is shutting down")
	errNotStartedYet = errors.New("pipeline manager not started")
)

type run struct {
	id      string
	session string
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	// guarded by Manager.mu
	progress models.Progress
}

// Manager schedules at most one processing run per session onto a
// bounded worker pool and publishes every stage change.
type Manager struct {
	config    config.PipelineConfig
	store     storage.HandoffStore
	simulator *Simulator
	events    *EventBus
	pool      *WorkerPool

	mu   sync.Mutex
	runs map[string]*run

	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(cfg config.PipelineConfig, store storage.HandoffStore) *Manager {
	m := &Manager{
		config:    cfg,
		store:     store,
		simulator: NewSimulator(store, cfg.TimeScale),
		events:    NewEventBus(1000),
		runs:      make(map[string]*run),
	}
	m.pool = NewWorkerPool(cfg.Workers, cfg.QueueSize, m.execute)
	return m
}

func (m *Manager) Start(ctx context.Context) error {
	if m.ctx != nil {
		return fmt.Errorf("pipeline manager already started")
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	log.Printf("Pipeline Manager: Starting %d workers (queue %d, time scale %.2f)...",
		m.pool.workers, cap(m.pool.taskQueue), m.config.TimeScale)
	m.pool.Start(m.ctx)
	return nil
}

// Stop cancels running runs, waits for the workers and drops queued runs.
func (m *Manager) Stop() {
	log.Println("Pipeline Manager: Stopping...")
	if m.cancel != nil {
		m.cancel()
	}
	m.pool.Wait()

	m.mu.Lock()
	var dropped []*run
	for _, r := range m.runs {
		if r.progress.State == models.RunStatePending {
			r.progress.State = models.RunStateCancelled
			r.progress.Error = ErrShuttingDown.Error()
			dropped = append(dropped, r)
		}
	}
	m.mu.Unlock()

	for _, r := range dropped {
		m.publish(r, EventTypeCancelled, nil, ErrShuttingDown.Error())
		close(r.done)
	}
	log.Println("Pipeline Manager: Stopped.")
}

func (m *Manager) Events() *EventBus {
	return m.events
}

// StartRun queues a run for session. The settings must already be in the
// handoff store.
func (m *Manager) StartRun(session string) (models.Progress, error) {
	if m.ctx == nil {
		return models.Progress{}, errNotStartedYet
	}
	if m.ctx.Err() != nil {
		return models.Progress{}, ErrShuttingDown
	}

	settings, err := m.store.Settings(session)
	if errors.Is(err, storage.ErrSlotEmpty) {
		return models.Progress{}, ErrNoSettings
	}
	if err != nil {
		return models.Progress{}, fmt.Errorf("failed to read settings: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.runs[session]; ok && isActive(r.progress.State) {
		return r.progress, ErrRunActive
	}

	stages := Stages(settings.Mode)
	ctx, cancel := context.WithCancel(m.ctx)
	r := &run{
		id:      uuid.New().String(),
		session: session,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	r.progress = models.Progress{
		RunID:            r.id,
		SessionID:        session,
		State:            models.RunStatePending,
		Status:           "Queued",
		RemainingMinutes: RemainingMinutes(stages, -1),
	}

	if !m.pool.TrySubmit(r) {
		cancel()
		log.Printf("Pipeline Manager: Failed to queue run for session %s, pipeline queue is full.", session)
		return models.Progress{}, ErrQueueFull
	}
	m.runs[session] = r
	log.Printf("Pipeline Manager: Run %s queued for session %s.", r.id, session)

	m.events.Publish(Event{SessionID: session, RunID: r.id, Type: EventTypeStatus, Progress: r.progress})
	return r.progress, nil
}

// Cancel aborts the active run of session. It returns once the run has
// stopped and the session's settings have been cleared.
func (m *Manager) Cancel(session string) error {
	m.mu.Lock()
	r, ok := m.runs[session]
	if !ok || !isActive(r.progress.State) {
		m.mu.Unlock()
		return ErrNoActiveRun
	}
	r.cancel()

	if r.progress.State == models.RunStatePending {
		r.progress.State = models.RunStateCancelled
		m.mu.Unlock()

		if err := m.store.ClearSettings(session); err != nil {
			log.Printf("Pipeline Manager: Failed to clear settings for session %s: %v", session, err)
		}
		m.publish(r, EventTypeCancelled, nil, "")
		close(r.done)
		log.Printf("Pipeline Manager: Run %s cancelled before start.", r.id)
		return nil
	}
	m.mu.Unlock()

	<-r.done
	return nil
}

// Progress returns the latest run snapshot of session.
func (m *Manager) Progress(session string) (models.Progress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[session]
	if !ok {
		return models.Progress{}, false
	}
	return r.progress, true
}

// Wait blocks until the latest run of session has finished.
func (m *Manager) Wait(ctx context.Context, session string) (models.Progress, error) {
	m.mu.Lock()
	r, ok := m.runs[session]
	m.mu.Unlock()
	if !ok {
		return models.Progress{}, ErrNoActiveRun
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		return models.Progress{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return r.progress, nil
}

func (m *Manager) execute(_ context.Context, r *run) {
	m.mu.Lock()
	if r.progress.State != models.RunStatePending {
		m.mu.Unlock()
		return
	}
	r.progress.State = models.RunStateRunning
	m.mu.Unlock()

	log.Printf("Pipeline Manager: Run %s started for session %s.", r.id, r.session)

	result, err := m.simulator.Run(r.ctx, r.session, func(i int, stage models.ProcessingStage, remaining int) {
		m.mu.Lock()
		r.progress.Stage = i
		r.progress.Progress = stage.Progress
		r.progress.Status = stage.Status
		r.progress.RemainingMinutes = remaining
		m.mu.Unlock()

		m.publish(r, EventTypeStatus, nil, "")
	})

	m.finish(r, result, err)
}

func (m *Manager) finish(r *run, result models.ProcessedResult, err error) {
	defer close(r.done)
	defer r.cancel()

	m.mu.Lock()
	var (
		eventType EventType
		res       *models.ProcessedResult
		msg       string
	)
	switch {
	case err == nil:
		r.progress.State = models.RunStateCompleted
		r.progress.RemainingMinutes = 0
		eventType, res = EventTypeResult, &result
	case errors.Is(err, context.Canceled):
		r.progress.State = models.RunStateCancelled
		eventType = EventTypeCancelled
	default:
		r.progress.State = models.RunStateFailed
		r.progress.Error = err.Error()
		eventType, msg = EventTypeError, err.Error()
	}
	state := r.progress.State
	m.mu.Unlock()

	log.Printf("Pipeline Manager: Run %s for session %s %s.", r.id, r.session, state)
	m.publish(r, eventType, res, msg)
}

func (m *Manager) publish(r *run, t EventType, result *models.ProcessedResult, msg string) {
	m.mu.Lock()
	p := r.progress
	m.mu.Unlock()

	m.events.Publish(Event{
		SessionID: r.session,
		RunID:     r.id,
		Type:      t,
		Progress:  p,
		Result:    result,
		Message:   msg,
	})
}

func isActive(state models.RunState) bool {
	return state == models.RunStatePending || state == models.RunStateRunning
}
