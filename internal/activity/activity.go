// Package activity publishes panel events to a Redis stream for the worker.
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"taskpanel/internal/ids"
)

type EventType string

const (
	EventLogin             EventType = "auth.login"
	EventLogout            EventType = "auth.logout"
	EventRegister          EventType = "auth.register"
	EventTaskCreated       EventType = "task.created"
	EventTaskCompleted     EventType = "task.completed_toggled"
	EventTaskDeleted       EventType = "task.deleted_toggled"
	EventTaskEdited        EventType = "task.edited"
	EventTaskPurged        EventType = "task.purged"
	EventUserStatus        EventType = "user.status_changed"
	EventUserRole          EventType = "user.role_changed"
	EventUserPermissions   EventType = "user.permissions_changed"
	EventDashboardSnapshot EventType = "dashboard.snapshot"
)

type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	ActorID   string          `json:"actorId,omitempty"`
	SubjectID string          `json:"subjectId,omitempty"`
	At        time.Time       `json:"at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time. payload is
// marshalled as JSON when not nil.
func NewEvent(typ EventType, actorID, subjectID string, payload any) (Event, error) {
	e := Event{
		ID:        ids.New(),
		Type:      typ,
		ActorID:   actorID,
		SubjectID: subjectID,
		At:        time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("encode %s payload: %w", typ, err)
		}
		e.Payload = raw
	}
	return e, nil
}

// Recorder accepts events. Implementations must not block the caller for long.
type Recorder interface {
	Record(ctx context.Context, e Event) error
}

type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

// Publisher appends events to a capped Redis stream.
type Publisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewPublisher(client *redis.Client, stream string, maxLen int64) *Publisher {
	return &Publisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *Publisher) Record(ctx context.Context, e Event) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: encode(e),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func encode(e Event) map[string]interface{} {
	values := map[string]interface{}{
		"id":        e.ID,
		"type":      string(e.Type),
		"actorId":   e.ActorID,
		"subjectId": e.SubjectID,
		"at":        e.At.Format(time.RFC3339Nano),
	}
	if len(e.Payload) > 0 {
		values["payload"] = string(e.Payload)
	}
	return values
}

var ErrMalformedEvent = errors.New("malformed activity event")

// Decode rebuilds an event from stream message values.
func Decode(values map[string]interface{}) (Event, error) {
	str := func(key string) string {
		s, _ := values[key].(string)
		return s
	}

	e := Event{
		ID:        str("id"),
		Type:      EventType(str("type")),
		ActorID:   str("actorId"),
		SubjectID: str("subjectId"),
	}
	if e.ID == "" || e.Type == "" {
		return Event{}, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}

	at, err := time.Parse(time.RFC3339Nano, str("at"))
	if err != nil {
		return Event{}, fmt.Errorf("%w: at: %v", ErrMalformedEvent, err)
	}
	e.At = at

	if raw := str("payload"); raw != "" {
		if !json.Valid([]byte(raw)) {
			return Event{}, fmt.Errorf("%w: payload is not json", ErrMalformedEvent)
		}
		e.Payload = json.RawMessage(raw)
	}
	return e, nil
}

// Logged wraps a Recorder so failures are logged and swallowed. Activity is
// best effort and must never fail the user's action.
func Logged(r Recorder, log zerolog.Logger) Recorder {
	return loggedRecorder{next: r, log: log}
}

type loggedRecorder struct {
	next Recorder
	log  zerolog.Logger
}

func (l loggedRecorder) Record(ctx context.Context, e Event) error {
	if err := l.next.Record(ctx, e); err != nil {
		l.log.Warn().Err(err).Str("event", string(e.Type)).Str("event_id", e.ID).Msg("activity not recorded")
	}
	return nil
}
