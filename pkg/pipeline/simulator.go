package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"video-to-text/pkg/models"
	"video-to-text/pkg/storage"
)

// ErrNoSettings means the session has no settings to process. Callers send
// the user back to the upload step.
var ErrNoSettings = errors.New("no processing settings for session")

// StageFunc observes each stage as it begins.
type StageFunc func(index int, stage models.ProcessingStage, remainingMinutes int)

// Simulator replays the stage sequence for one session and writes the
// synthesized result to the handoff store.
type Simulator struct {
	store     storage.HandoffStore
	timeScale float64
	wait      func(ctx context.Context, d time.Duration) error
}

func NewSimulator(store storage.HandoffStore, timeScale float64) *Simulator {
	if timeScale < 0 {
		timeScale = 0
	}
	return &Simulator{
		store:     store,
		timeScale: timeScale,
		wait:      sleep,
	}
}

// Run blocks until every stage has elapsed or ctx is cancelled. Once the
// settings have been read they are cleared on every return path. A
// cancelled run never writes a result.
func (s *Simulator) Run(ctx context.Context, session string, onStage StageFunc) (models.ProcessedResult, error) {
	settings, err := s.store.Settings(session)
	if errors.Is(err, storage.ErrSlotEmpty) {
		return models.ProcessedResult{}, ErrNoSettings
	}
	if err != nil {
		return models.ProcessedResult{}, fmt.Errorf("failed to read settings: %w", err)
	}
	defer func() {
		if err := s.store.ClearSettings(session); err != nil {
			log.Printf("Simulator: failed to clear settings for session %s: %v", session, err)
		}
	}()

	stages := Stages(settings.Mode)
	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			return models.ProcessedResult{}, err
		}
		if onStage != nil {
			onStage(i, stage, RemainingMinutes(stages, i))
		}
		if err := s.wait(ctx, s.scale(stage.Duration())); err != nil {
			return models.ProcessedResult{}, err
		}
	}

	if err := ctx.Err(); err != nil {
		return models.ProcessedResult{}, err
	}

	result := SynthesizeResult(settings)
	if err := s.store.PutResult(session, result); err != nil {
		return models.ProcessedResult{}, fmt.Errorf("failed to store result: %w", err)
	}
	return result, nil
}

func (s *Simulator) scale(d time.Duration) time.Duration {
	return time.Duration(float64(d) * s.timeScale)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
