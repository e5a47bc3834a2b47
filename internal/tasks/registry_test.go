package tasks

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"taskpanel/internal/models"
)

func TestRegistry_AcquireDropSweep(t *testing.T) {
	r := NewRegistry(newFakeAPI(models.Permissions{}), zerolog.Nop(), nil)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	a := r.Acquire("s1")
	require.Same(t, a, r.Acquire("s1"))
	r.Acquire("s2")
	require.Equal(t, 2, r.Len())

	r.Drop("s2")
	require.Equal(t, 1, r.Len())

	clock = clock.Add(10 * time.Minute)
	r.Acquire("s3")

	clock = clock.Add(25 * time.Minute)
	require.Equal(t, 1, r.Sweep(30*time.Minute), "only s1 has been idle for 35 minutes")
	require.Equal(t, 1, r.Len())
	require.NotSame(t, a, r.Acquire("s1"))
}
