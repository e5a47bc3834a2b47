package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"

	"taskpanel/internal/activity"
	"taskpanel/internal/dashboard"
)

// ObjectWriter is satisfied by *storage.ObjectStore.
type ObjectWriter interface {
	PutJSON(ctx context.Context, key string, v any) (int64, error)
}

// ArchiveService writes activity, purged tasks and dashboard snapshots to
// object storage under date-partitioned keys.
type ArchiveService struct {
	store ObjectWriter
	log   zerolog.Logger
}

func NewArchiveService(store ObjectWriter, log zerolog.Logger) *ArchiveService {
	return &ArchiveService{store: store, log: log}
}

const (
	prefixActivity  = "activity"
	prefixPurged    = "purged"
	prefixSnapshots = "snapshots"
)

func (s *ArchiveService) ArchiveEvent(ctx context.Context, e activity.Event) error {
	key := buildObjectKey(prefixActivity, e.At, e.ID)
	size, err := s.store.PutJSON(ctx, key, e)
	if err != nil {
		return fmt.Errorf("archive event %s: %w", e.ID, err)
	}
	s.log.Debug().Str("key", key).Int64("size", size).Msg("activity archived")
	return nil
}

// ArchivePurged keeps the last state of a permanently deleted task.
func (s *ArchiveService) ArchivePurged(ctx context.Context, e activity.Event) error {
	var change TaskChange
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &change); err != nil {
			return fmt.Errorf("decode purge payload: %w", err)
		}
	}
	if change.Before == nil {
		return fmt.Errorf("purge event %s has no task", e.ID)
	}

	record := struct {
		Task     any       `json:"task"`
		PurgedBy string    `json:"purgedBy"`
		PurgedAt time.Time `json:"purgedAt"`
	}{Task: change.Before, PurgedBy: e.ActorID, PurgedAt: e.At}

	key := buildObjectKey(prefixPurged, e.At, change.Before.ID)
	if _, err := s.store.PutJSON(ctx, key, record); err != nil {
		return fmt.Errorf("archive purged task %s: %w", change.Before.ID, err)
	}
	return nil
}

// StoreSnapshot writes the admin summary taken at at.
func (s *ArchiveService) StoreSnapshot(ctx context.Context, at time.Time, summary dashboard.AdminSummary) error {
	record := struct {
		TakenAt time.Time              `json:"takenAt"`
		Summary dashboard.AdminSummary `json:"summary"`
	}{TakenAt: at, Summary: summary}

	key := buildObjectKey(prefixSnapshots, at, at.UTC().Format("150405"))
	if _, err := s.store.PutJSON(ctx, key, record); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

func buildObjectKey(prefix string, at time.Time, name string) string {
	datePrefix := at.UTC().Format("2006/01/02")
	return path.Join(prefix, datePrefix, fmt.Sprintf("%s.json", name))
}
