package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"video-to-text/pkg/models"
)

// ErrSlotEmpty is returned when a slot has never been written or was cleared.
var ErrSlotEmpty = errors.New("slot is empty")

type Slot string

const (
	SlotSettings Slot = "transcription-settings"
	SlotResult   Slot = "transcription-result"
)

// HandoffStore passes settings and results between the steps of one
// session. Writers are not synchronized per slot; only one step of a
// session is active at a time.
type HandoffStore interface {
	PutSettings(session string, s models.ProcessingSettings) error
	Settings(session string) (models.ProcessingSettings, error)
	ClearSettings(session string) error

	PutResult(session string, r models.ProcessedResult) error
	Result(session string) (models.ProcessedResult, error)
	ClearResult(session string) error

	Close() error
}

// KV is the raw key/value layer behind a HandoffStore.
type KV interface {
	Set(key string, value []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
	Close() error
}

type handoffStore struct {
	kv KV
}

// NewHandoffStore wraps kv with the typed settings and result slots.
func NewHandoffStore(kv KV) HandoffStore {
	return &handoffStore{kv: kv}
}

func key(session string, slot Slot) string {
	return session + "/" + string(slot)
}

func (s *handoffStore) put(session string, slot Slot, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", slot, err)
	}
	if err := s.kv.Set(key(session, slot), data); err != nil {
		return fmt.Errorf("failed to store %s: %w", slot, err)
	}
	return nil
}

func (s *handoffStore) get(session string, slot Slot, v any) error {
	data, err := s.kv.Get(key(session, slot))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", slot, err)
	}
	return nil
}

func (s *handoffStore) PutSettings(session string, settings models.ProcessingSettings) error {
	return s.put(session, SlotSettings, settings)
}

func (s *handoffStore) Settings(session string) (models.ProcessingSettings, error) {
	var settings models.ProcessingSettings
	err := s.get(session, SlotSettings, &settings)
	return settings, err
}

func (s *handoffStore) ClearSettings(session string) error {
	return s.kv.Delete(key(session, SlotSettings))
}

func (s *handoffStore) PutResult(session string, r models.ProcessedResult) error {
	return s.put(session, SlotResult, r)
}

func (s *handoffStore) Result(session string) (models.ProcessedResult, error) {
	var r models.ProcessedResult
	err := s.get(session, SlotResult, &r)
	return r, err
}

func (s *handoffStore) ClearResult(session string) error {
	return s.kv.Delete(key(session, SlotResult))
}

func (s *handoffStore) Close() error {
	return s.kv.Close()
}
