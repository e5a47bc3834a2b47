package tasks

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry keeps one board per browser session.
type Registry struct {
	api      API
	log      zerolog.Logger
	onCommit CommitFunc
	now      func() time.Time

	mu     sync.Mutex
	boards map[string]*Board
}

func NewRegistry(api API, log zerolog.Logger, onCommit CommitFunc) *Registry {
	return &Registry{
		api:      api,
		log:      log,
		onCommit: onCommit,
		now:      time.Now,
		boards:   map[string]*Board{},
	}
}

// Acquire returns the session's board, creating an empty one on first use.
func (r *Registry) Acquire(sessionID string) *Board {
	r.mu.Lock()
	b, ok := r.boards[sessionID]
	if !ok {
		b = NewBoard(r.api, r.log.With().Str("session_id", sessionID).Logger(), r.onCommit)
		r.boards[sessionID] = b
	}
	r.mu.Unlock()

	b.markUsed(r.now())
	return b
}

// Drop forgets the session's board, typically on logout.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	delete(r.boards, sessionID)
	r.mu.Unlock()
}

// Sweep drops boards unused for longer than idle and reports how many went.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for id, b := range r.boards {
		if b.idleSince().Before(cutoff) {
			delete(r.boards, id)
			dropped++
		}
	}
	return dropped
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boards)
}
