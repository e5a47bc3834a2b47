package service

import (
	"context"

	"github.com/rs/zerolog"

	"taskpanel/internal/activity"
	"taskpanel/internal/models"
	"taskpanel/internal/tasks"
)

var mutationEvents = map[tasks.MutationKind]activity.EventType{
	tasks.MutationCreate:          activity.EventTaskCreated,
	tasks.MutationToggleCompleted: activity.EventTaskCompleted,
	tasks.MutationToggleDeleted:   activity.EventTaskDeleted,
	tasks.MutationEdit:            activity.EventTaskEdited,
	tasks.MutationPurge:           activity.EventTaskPurged,
}

// TaskChange is the payload of every task.* event. Before is nil for
// creations and After is nil for purges.
type TaskChange struct {
	MutationID string       `json:"mutationId"`
	Before     *models.Task `json:"before,omitempty"`
	After      *models.Task `json:"after,omitempty"`
}

// TaskActivity turns committed board mutations into activity events.
func TaskActivity(recorder activity.Recorder, log zerolog.Logger) tasks.CommitFunc {
	return func(ctx context.Context, m tasks.Mutation, before, after models.Task) {
		typ, ok := mutationEvents[m.Kind]
		if !ok {
			log.Warn().Str("mutation", string(m.Kind)).Msg("no activity event for mutation")
			return
		}

		change := TaskChange{MutationID: m.ID}
		owner := after.UserID
		if before.ID != "" {
			change.Before = &before
			owner = before.UserID
		}
		if after.ID != "" {
			change.After = &after
		}

		e, err := activity.NewEvent(typ, owner, m.TaskID, change)
		if err != nil {
			log.Warn().Err(err).Msg("build activity event")
			return
		}
		_ = recorder.Record(ctx, e)
	}
}
