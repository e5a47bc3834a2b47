package queue

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestClassifyPending(t *testing.T) {
	c := NewConsumer(nil, "panel:activity", "archivers", "w1", 10*time.Second, zerolog.Nop(), nil)

	cases := map[string]struct {
		entry redis.XPendingExt
		want  pendingAction
	}{
		"still fresh":      {redis.XPendingExt{ID: "1-0", Idle: time.Second, RetryCount: 1}, skipPending},
		"stalled":          {redis.XPendingExt{ID: "2-0", Idle: time.Minute, RetryCount: 3}, claimPending},
		"delivery limit":   {redis.XPendingExt{ID: "3-0", Idle: time.Minute, RetryCount: maxDeliveries}, dropPending},
		"fresh over limit": {redis.XPendingExt{ID: "4-0", Idle: time.Second, RetryCount: maxDeliveries + 5}, skipPending},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.want, c.classify(tc.entry))
		})
	}
}
