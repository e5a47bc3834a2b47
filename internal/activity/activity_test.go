package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e, err := NewEvent(EventTaskPurged, "u1", "t9", map[string]string{"title": "old"})
	require.NoError(t, err)

	// stream values come back as strings
	values := map[string]interface{}{}
	for k, v := range encode(e) {
		values[k] = v
	}

	got, err := Decode(values)
	require.NoError(t, err)
	require.Equal(t, e.ID, got.ID)
	require.Equal(t, EventTaskPurged, got.Type)
	require.Equal(t, "u1", got.ActorID)
	require.Equal(t, "t9", got.SubjectID)
	require.True(t, e.At.Equal(got.At))
	require.JSONEq(t, `{"title":"old"}`, string(got.Payload))
}

func TestDecode_Rejects(t *testing.T) {
	now := time.Now().Format(time.RFC3339Nano)
	cases := map[string]map[string]interface{}{
		"missing id":   {"type": "auth.login", "at": now},
		"missing type": {"id": "x", "at": now},
		"bad time":     {"id": "x", "type": "auth.login", "at": "yesterday"},
		"bad payload":  {"id": "x", "type": "auth.login", "at": now, "payload": "{"},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(values)
			require.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}

type failingRecorder struct{ calls int }

func (f *failingRecorder) Record(context.Context, Event) error {
	f.calls++
	return errors.New("redis down")
}

func TestLogged_SwallowsErrors(t *testing.T) {
	inner := &failingRecorder{}
	r := Logged(inner, zerolog.Nop())

	require.NoError(t, r.Record(context.Background(), Event{ID: "1", Type: EventLogin}))
	require.Equal(t, 1, inner.calls)
}
