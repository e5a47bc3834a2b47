package tasks

import "time"

type MutationKind string

const (
	MutationCreate          MutationKind = "create"
	MutationToggleCompleted MutationKind = "toggle_completed"
	MutationToggleDeleted   MutationKind = "toggle_deleted"
	MutationEdit            MutationKind = "edit"
	MutationPurge           MutationKind = "purge"
)

type MutationState string

const (
	MutationPending   MutationState = "pending"
	MutationCommitted MutationState = "committed"
	MutationFailed    MutationState = "failed"
)

// Mutation tracks one local change from the moment it is shown to the user
// until the record API accepts or rejects it.
type Mutation struct {
	ID        string        `json:"id"`
	Kind      MutationKind  `json:"kind"`
	TaskID    string        `json:"taskId,omitempty"`
	State     MutationState `json:"state"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	SettledAt *time.Time    `json:"settledAt,omitempty"`
}

const mutationHistory = 20
