// Package tasklog stores human-readable feedback attached to work
// tasks in NATS KV. Business-rule failures land here instead of being
// retried, so operators can see why a task produced nothing.
package tasklog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Bucket holds one record per task ID.
const Bucket = "INVENTORY_TASK_FEEDBACK"

// Level classifies a feedback entry.
type Level string

// Feedback levels.
const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Entry is one feedback line on a task.
type Entry struct {
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Record collects all feedback for one task.
type Record struct {
	TaskID    string    `json:"task_id"`
	Entries   []Entry   `json:"entries"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store provides feedback storage backed by NATS KV.
type Store struct {
	kv jetstream.KeyValue
}

// NewStore creates the store, creating the bucket if it does not exist.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	kv, err := js.KeyValue(ctx, Bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      Bucket,
			Description: "Per-task ingestion feedback",
			History:     5,
		})
		if err != nil {
			return nil, fmt.Errorf("create feedback bucket: %w", err)
		}
	}
	return &Store{kv: kv}, nil
}

// Append adds one feedback entry to the task's record.
func (s *Store) Append(ctx context.Context, taskID string, level Level, message string) error {
	key, err := Key(taskID)
	if err != nil {
		return err
	}

	record := &Record{TaskID: taskID}
	if entry, err := s.kv.Get(ctx, key); err == nil {
		if err := json.Unmarshal(entry.Value(), record); err != nil {
			return fmt.Errorf("unmarshal feedback record: %w", err)
		}
	}

	now := time.Now()
	record.Entries = append(record.Entries, Entry{Level: level, Message: message, CreatedAt: now})
	record.UpdatedAt = now

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal feedback record: %w", err)
	}
	if _, err := s.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("store feedback for task %s: %w", taskID, err)
	}
	return nil
}

// Get returns the feedback record for a task, or an empty record when
// none exists yet.
func (s *Store) Get(ctx context.Context, taskID string) (*Record, error) {
	key, err := Key(taskID)
	if err != nil {
		return nil, err
	}

	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		return &Record{TaskID: taskID}, nil
	}
	var record Record
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		return nil, fmt.Errorf("unmarshal feedback record: %w", err)
	}
	return &record, nil
}

// Key maps a task ID to a KV key. Characters outside the KV key
// alphabet are replaced so arbitrary task identifiers stay addressable.
func Key(taskID string) (string, error) {
	if strings.TrimSpace(taskID) == "" {
		return "", fmt.Errorf("task ID is empty")
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, taskID), nil
}
