package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"taskpanel/internal/activity"
	"taskpanel/internal/dashboard"
	"taskpanel/internal/models"
)

type memObjects map[string][]byte

func (m memObjects) PutJSON(_ context.Context, key string, v any) (int64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	m[key] = data
	return int64(len(data)), nil
}

var at = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func TestArchiveEvent(t *testing.T) {
	objects := memObjects{}
	svc := NewArchiveService(objects, zerolog.Nop())

	require.NoError(t, svc.ArchiveEvent(context.Background(), activity.Event{ID: "e1", Type: activity.EventLogin, At: at}))
	require.Contains(t, objects, "activity/2026/03/04/e1.json")
}

func TestArchivePurged(t *testing.T) {
	objects := memObjects{}
	svc := NewArchiveService(objects, zerolog.Nop())

	payload, err := json.Marshal(TaskChange{MutationID: "m1", Before: &models.Task{ID: "t1", Title: "gone", UserID: "u1"}})
	require.NoError(t, err)

	e := activity.Event{ID: "e2", Type: activity.EventTaskPurged, ActorID: "u1", SubjectID: "t1", At: at, Payload: payload}
	require.NoError(t, svc.ArchivePurged(context.Background(), e))
	require.Contains(t, string(objects["purged/2026/03/04/t1.json"]), `"title":"gone"`)

	e.Payload = nil
	require.Error(t, svc.ArchivePurged(context.Background(), e))
}

func TestStoreSnapshot(t *testing.T) {
	objects := memObjects{}
	svc := NewArchiveService(objects, zerolog.Nop())

	require.NoError(t, svc.StoreSnapshot(context.Background(), at, dashboard.AdminSummary{TotalUsers: 3}))
	require.Contains(t, string(objects["snapshots/2026/03/04/050607.json"]), `"totalUsers":3`)
}
