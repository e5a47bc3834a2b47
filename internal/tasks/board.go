// Package tasks is the per-user task board: a transient copy of the user's
// tasks with permission-gated, optimistic mutations against the record API.
package tasks

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"taskpanel/internal/apiclient"
	"taskpanel/internal/common"
	"taskpanel/internal/ids"
	"taskpanel/internal/models"
)

type API interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	ListTasks(ctx context.Context, filter apiclient.TaskFilter) ([]models.Task, error)
	CreateTask(ctx context.Context, task models.Task) (models.Task, error)
	PatchTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

var (
	ErrNotLoaded            = common.NewError(common.ErrConflict, "Task list is not loaded yet.")
	ErrTaskNotFound         = common.NewError(common.ErrNotFound, "Task not found.")
	ErrTaskDeleted          = common.NewError(common.ErrValidation, "Restore the task before changing it.")
	ErrNotSoftDeleted       = common.NewError(common.ErrValidation, "Only deleted tasks can be removed permanently.")
	ErrConfirmationRequired = common.NewError(common.ErrValidation, "Confirm permanent deletion.")
	ErrEmptyFields          = common.NewError(common.ErrValidation, "Please fill in both title and description for the new task.")
	ErrNotEditing           = common.NewError(common.ErrConflict, "Task is not being edited.")
	ErrMissingID            = common.NewError(common.ErrUpstream, "Record API returned a task without an id.")
)

// PermissionDenied is returned before any network call when the actor lacks flag.
func PermissionDenied(flag models.PermissionFlag) error {
	return common.NewError(common.ErrForbidden, fmt.Sprintf("You don't have %s permission.", flag))
}

// CommitFunc observes every mutation the record API accepted. before is
// zero for creations, after is zero for purges.
type CommitFunc func(ctx context.Context, m Mutation, before, after models.Task)

type EditBuffer struct {
	TaskID      string `json:"taskId"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Draft struct {
	Title       string
	Description string
}

type Snapshot struct {
	Actor       models.User        `json:"actor"`
	Permissions models.Permissions `json:"permissions"`
	Tasks       []models.Task      `json:"tasks"`
	Editing     *EditBuffer        `json:"editing,omitempty"`
	Mutations   []Mutation         `json:"mutations"`
}

type Board struct {
	api      API
	log      zerolog.Logger
	onCommit CommitFunc
	now      func() time.Time

	mu     sync.Mutex
	loaded bool
	gen    uint64
	actor  models.User
	tasks  []models.Task

	// confirmed holds each row as the record API last reported it. The
	// visible row is confirmed with every in-flight patch applied in order.
	confirmed map[string]models.Task
	inflight  map[string][]pendingPatch
	edit      *EditBuffer
	mutations []Mutation
	lastUsed  time.Time
}

type pendingPatch struct {
	mutationID string
	patch      models.TaskPatch
}

func NewBoard(api API, log zerolog.Logger, onCommit CommitFunc) *Board {
	return &Board{
		api:       api,
		log:       log,
		onCommit:  onCommit,
		now:       time.Now,
		confirmed: map[string]models.Task{},
		inflight:  map[string][]pendingPatch{},
	}
}

// Load fetches the acting user and their tasks concurrently and replaces the
// board contents. Any open edit is discarded.
func (b *Board) Load(ctx context.Context, userID string) error {
	var (
		user models.User
		list []models.Task
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = b.api.GetUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		list, err = b.api.ListTasks(gctx, apiclient.TaskFilter{UserID: userID})
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load tasks for %s: %w", userID, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.actor = user.Public()
	b.tasks = list
	b.gen++
	b.confirmed = make(map[string]models.Task, len(list))
	for _, t := range list {
		b.confirmed[t.ID] = t
	}
	b.inflight = map[string][]pendingPatch{}
	b.edit = nil
	b.loaded = true
	return nil
}

func (b *Board) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		Actor:       b.actor,
		Permissions: b.actor.EffectivePermissions(),
		Tasks:       slices.Clone(b.tasks),
		Mutations:   slices.Clone(b.mutations),
	}
	if snap.Tasks == nil {
		snap.Tasks = []models.Task{}
	}
	if b.edit != nil {
		buf := *b.edit
		snap.Editing = &buf
	}
	return snap
}

// ToggleCompleted flips the completed flag. It needs the update permission
// and refuses soft-deleted tasks.
func (b *Board) ToggleCompleted(ctx context.Context, id string) (Mutation, error) {
	return b.mutate(ctx, MutationToggleCompleted, id, models.PermissionUpdate, func(t models.Task) (models.TaskPatch, error) {
		if t.Deleted {
			return models.TaskPatch{}, ErrTaskDeleted
		}
		next := !t.Completed
		return models.TaskPatch{Completed: &next}, nil
	})
}

// ToggleDeleted soft-deletes or restores a task.
func (b *Board) ToggleDeleted(ctx context.Context, id string) (Mutation, error) {
	return b.mutate(ctx, MutationToggleDeleted, id, models.PermissionDelete, func(t models.Task) (models.TaskPatch, error) {
		next := !t.Deleted
		return models.TaskPatch{Deleted: &next}, nil
	})
}

// mutate applies build's patch locally and sends it. When the record API
// refuses, the row is rebuilt from its confirmed state plus the patches
// still in flight, so a failed value never stays visible. A reload in the
// meantime wins over both outcomes.
func (b *Board) mutate(
	ctx context.Context,
	kind MutationKind,
	id string,
	flag models.PermissionFlag,
	build func(models.Task) (models.TaskPatch, error),
) (Mutation, error) {
	b.mu.Lock()
	if err := b.require(flag); err != nil {
		b.mu.Unlock()
		return Mutation{}, err
	}
	idx := b.indexOf(id)
	if idx < 0 {
		b.mu.Unlock()
		return Mutation{}, ErrTaskNotFound
	}
	before := b.tasks[idx]
	patch, err := build(before)
	if err != nil {
		b.mu.Unlock()
		return Mutation{}, err
	}
	b.tasks[idx] = patch.Apply(before)
	m := b.begin(kind, id)
	b.inflight[id] = append(b.inflight[id], pendingPatch{mutationID: m.ID, patch: patch})
	actorID := b.actor.ID
	b.mu.Unlock()

	updated, err := b.api.PatchTask(ctx, id, patch)

	b.mu.Lock()
	if err != nil {
		b.resolve(id, m.ID, nil)
		m = b.settle(m, err)
		b.mu.Unlock()

		b.log.Warn().Err(err).
			Str("task_id", id).
			Str("user_id", actorID).
			Str("mutation", string(kind)).
			Msg("task mutation rolled back")
		return m, fmt.Errorf("%s %s: %w", kind, id, err)
	}

	after := patch.Apply(before)
	next := patch.Apply(b.confirmed[id])
	if updated.ID == id {
		next = updated
	}
	if b.resolve(id, m.ID, &next) {
		after = next
	}
	m = b.settle(m, nil)
	b.mu.Unlock()

	b.notify(ctx, m, before, after)
	return m, nil
}

// Purge removes a soft-deleted task for good. confirmed carries the answer
// of the confirmation dialog.
func (b *Board) Purge(ctx context.Context, id string, confirmed bool) (Mutation, error) {
	b.mu.Lock()
	if err := b.require(models.PermissionDelete); err != nil {
		b.mu.Unlock()
		return Mutation{}, err
	}
	idx := b.indexOf(id)
	if idx < 0 {
		b.mu.Unlock()
		return Mutation{}, ErrTaskNotFound
	}
	before := b.tasks[idx]
	if !before.Deleted {
		b.mu.Unlock()
		return Mutation{}, ErrNotSoftDeleted
	}
	if !confirmed {
		b.mu.Unlock()
		return Mutation{}, ErrConfirmationRequired
	}
	b.tasks = slices.Delete(b.tasks, idx, idx+1)
	gen := b.gen
	if b.edit != nil && b.edit.TaskID == id {
		b.edit = nil
	}
	m := b.begin(MutationPurge, id)
	b.mu.Unlock()

	err := b.api.DeleteTask(ctx, id)

	b.mu.Lock()
	if err != nil {
		if b.gen == gen && b.indexOf(id) < 0 {
			row, ok := b.project(id)
			if !ok {
				row = before
			}
			at := min(idx, len(b.tasks))
			b.tasks = slices.Insert(b.tasks, at, row)
		}
		m = b.settle(m, err)
		b.mu.Unlock()

		b.log.Warn().Err(err).Str("task_id", id).Msg("task purge rolled back")
		return m, fmt.Errorf("purge %s: %w", id, err)
	}
	if b.gen == gen {
		delete(b.confirmed, id)
		delete(b.inflight, id)
	}
	m = b.settle(m, nil)
	b.mu.Unlock()

	b.notify(ctx, m, before, models.Task{})
	return m, nil
}

// Create adds a task for the acting user. The row only appears once the
// record API has assigned it an id.
func (b *Board) Create(ctx context.Context, d Draft) (models.Task, Mutation, error) {
	b.mu.Lock()
	if err := b.require(models.PermissionAdd); err != nil {
		b.mu.Unlock()
		return models.Task{}, Mutation{}, err
	}
	title := strings.TrimSpace(d.Title)
	description := strings.TrimSpace(d.Description)
	if title == "" || description == "" {
		b.mu.Unlock()
		return models.Task{}, Mutation{}, ErrEmptyFields
	}
	owner := b.actor.ID
	m := b.begin(MutationCreate, "")
	b.mu.Unlock()

	created, err := b.api.CreateTask(ctx, models.Task{
		Title:       title,
		Description: description,
		UserID:      owner,
	})
	if err == nil && created.ID == "" {
		err = ErrMissingID
	}

	b.mu.Lock()
	if err != nil {
		m = b.settle(m, err)
		b.mu.Unlock()
		b.log.Warn().Err(err).Str("user_id", owner).Msg("task create failed")
		return models.Task{}, m, fmt.Errorf("create task: %w", err)
	}
	b.tasks = append(b.tasks, created)
	b.confirmed[created.ID] = created
	m.TaskID = created.ID
	m = b.settle(m, nil)
	b.mu.Unlock()

	b.notify(ctx, m, models.Task{}, created)
	return created, m, nil
}

// StartEdit opens the row for editing and copies its text into the scratch
// buffer. Only one row is edited at a time.
func (b *Board) StartEdit(id string) (EditBuffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.require(models.PermissionUpdate); err != nil {
		return EditBuffer{}, err
	}
	idx := b.indexOf(id)
	if idx < 0 {
		return EditBuffer{}, ErrTaskNotFound
	}
	t := b.tasks[idx]
	if t.Deleted {
		return EditBuffer{}, ErrTaskDeleted
	}
	b.edit = &EditBuffer{TaskID: id, Title: t.Title, Description: t.Description}
	return *b.edit, nil
}

// SaveEdit writes d into the scratch buffer and sends it. The visible row
// changes only after the record API accepts; on failure the row stays as it
// was and the buffer stays open.
func (b *Board) SaveEdit(ctx context.Context, id string, d Draft) (Mutation, error) {
	b.mu.Lock()
	if err := b.require(models.PermissionUpdate); err != nil {
		b.mu.Unlock()
		return Mutation{}, err
	}
	if b.edit == nil || b.edit.TaskID != id {
		b.mu.Unlock()
		return Mutation{}, ErrNotEditing
	}
	title := strings.TrimSpace(d.Title)
	description := strings.TrimSpace(d.Description)
	if title == "" || description == "" {
		b.mu.Unlock()
		return Mutation{}, ErrEmptyFields
	}
	b.edit.Title = title
	b.edit.Description = description

	idx := b.indexOf(id)
	if idx < 0 {
		b.edit = nil
		b.mu.Unlock()
		return Mutation{}, ErrTaskNotFound
	}
	before := b.tasks[idx]
	if before.Deleted {
		b.mu.Unlock()
		return Mutation{}, ErrTaskDeleted
	}
	patch := models.TaskPatch{Title: &title, Description: &description}
	gen := b.gen
	m := b.begin(MutationEdit, id)
	b.mu.Unlock()

	_, err := b.api.PatchTask(ctx, id, patch)

	b.mu.Lock()
	if err != nil {
		m = b.settle(m, err)
		b.mu.Unlock()
		b.log.Warn().Err(err).Str("task_id", id).Msg("task edit failed")
		return m, fmt.Errorf("edit %s: %w", id, err)
	}
	after := patch.Apply(before)
	if confirmed, ok := b.confirmed[id]; ok && b.gen == gen {
		b.confirmed[id] = patch.Apply(confirmed)
		if row, ok := b.project(id); ok {
			if i := b.indexOf(id); i >= 0 {
				b.tasks[i] = row
			}
			after = row
		}
	}
	if b.edit != nil && b.edit.TaskID == id {
		b.edit = nil
	}
	m = b.settle(m, nil)
	b.mu.Unlock()

	b.notify(ctx, m, before, after)
	return m, nil
}

// CancelEdit discards the scratch buffer.
func (b *Board) CancelEdit() {
	b.mu.Lock()
	b.edit = nil
	b.mu.Unlock()
}

func (b *Board) require(flag models.PermissionFlag) error {
	if !b.loaded {
		return ErrNotLoaded
	}
	if !b.actor.Grants(flag) {
		return PermissionDenied(flag)
	}
	return nil
}

func (b *Board) indexOf(id string) int {
	return slices.IndexFunc(b.tasks, func(t models.Task) bool { return t.ID == id })
}

// resolve retires the in-flight patch of mutationID, records confirmed as
// the server state when it is not nil, and rebuilds the visible row. It
// reports false when the patch is gone because the board was reloaded.
func (b *Board) resolve(id, mutationID string, confirmed *models.Task) bool {
	queue := b.inflight[id]
	i := slices.IndexFunc(queue, func(p pendingPatch) bool { return p.mutationID == mutationID })
	if i < 0 {
		return false
	}
	queue = slices.Delete(queue, i, i+1)
	if len(queue) == 0 {
		delete(b.inflight, id)
	} else {
		b.inflight[id] = queue
	}
	if confirmed != nil {
		b.confirmed[id] = *confirmed
	}
	if row, ok := b.project(id); ok {
		if j := b.indexOf(id); j >= 0 {
			b.tasks[j] = row
		}
	}
	return true
}

// project is the row as the user should see it: the confirmed state with
// the in-flight patches applied in the order they were made.
func (b *Board) project(id string) (models.Task, bool) {
	row, ok := b.confirmed[id]
	if !ok {
		return models.Task{}, false
	}
	for _, p := range b.inflight[id] {
		row = p.patch.Apply(row)
	}
	return row, true
}

func (b *Board) begin(kind MutationKind, taskID string) Mutation {
	m := Mutation{
		ID:        ids.New(),
		Kind:      kind,
		TaskID:    taskID,
		State:     MutationPending,
		StartedAt: b.now(),
	}
	b.record(m)
	return m
}

func (b *Board) settle(m Mutation, err error) Mutation {
	at := b.now()
	m.SettledAt = &at
	if err != nil {
		m.State = MutationFailed
		m.Error = err.Error()
	} else {
		m.State = MutationCommitted
	}
	b.record(m)
	return m
}

// record upserts m into the bounded history.
func (b *Board) record(m Mutation) {
	if i := slices.IndexFunc(b.mutations, func(x Mutation) bool { return x.ID == m.ID }); i >= 0 {
		b.mutations[i] = m
		return
	}
	b.mutations = append(b.mutations, m)
	if over := len(b.mutations) - mutationHistory; over > 0 {
		b.mutations = slices.Delete(b.mutations, 0, over)
	}
}

func (b *Board) notify(ctx context.Context, m Mutation, before, after models.Task) {
	if b.onCommit != nil {
		b.onCommit(ctx, m, before, after)
	}
}

func (b *Board) markUsed(at time.Time) {
	b.mu.Lock()
	b.lastUsed = at
	b.mu.Unlock()
}

func (b *Board) idleSince() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUsed
}
