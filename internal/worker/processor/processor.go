// Package processor handles activity stream messages in the worker.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"taskpanel/internal/activity"
	"taskpanel/internal/dashboard"
)

type Archiver interface {
	ArchiveEvent(ctx context.Context, e activity.Event) error
	ArchivePurged(ctx context.Context, e activity.Event) error
	StoreSnapshot(ctx context.Context, at time.Time, summary dashboard.AdminSummary) error
}

// OverviewSource is satisfied by *dashboard.Service.
type OverviewSource interface {
	Overview(ctx context.Context) (dashboard.AdminSummary, error)
}

type Processor struct {
	archive  Archiver
	overview OverviewSource
	logger   zerolog.Logger
}

func NewProcessor(archive Archiver, overview OverviewSource, logger zerolog.Logger) *Processor {
	return &Processor{
		archive:  archive,
		overview: overview,
		logger:   logger,
	}
}

// Handle returns an error only when retrying could help. Malformed messages
// are logged and acknowledged.
func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	e, err := activity.Decode(msg.Values)
	if err != nil {
		if errors.Is(err, activity.ErrMalformedEvent) {
			p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed event")
			return nil
		}
		return fmt.Errorf("decode event: %w", err)
	}

	switch e.Type {
	case activity.EventDashboardSnapshot:
		return p.handleSnapshot(ctx, e)
	case activity.EventTaskPurged:
		if err := p.archive.ArchivePurged(ctx, e); err != nil {
			return err
		}
		return p.archive.ArchiveEvent(ctx, e)
	default:
		return p.archive.ArchiveEvent(ctx, e)
	}
}

func (p *Processor) handleSnapshot(ctx context.Context, e activity.Event) error {
	summary, err := p.overview.Overview(ctx)
	if err != nil {
		return fmt.Errorf("snapshot overview: %w", err)
	}
	if err := p.archive.StoreSnapshot(ctx, e.At, summary); err != nil {
		return err
	}
	p.logger.Info().
		Int("total_users", summary.TotalUsers).
		Int("total_tasks", summary.TotalTasks).
		Msg("dashboard snapshot stored")
	return nil
}
