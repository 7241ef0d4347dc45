// Package report turns a weekly snapshot into a persisted row and outbound
// notifications.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pulse/internal/domain/metrics"
	"pulse/internal/models"
)

// Notifier delivers a rendered snapshot to one destination.
type Notifier interface {
	Notify(ctx context.Context, snapshot *metrics.Snapshot) error
	Name() string
}

// SnapshotStore persists the scalar metrics row.
type SnapshotStore interface {
	Insert(ctx context.Context, m models.WeeklyMetrics) error
}

// Calculator produces the snapshot for a week.
type Calculator interface {
	Compute(ctx context.Context, weekStart time.Time) (*metrics.Snapshot, error)
}

// Service computes, persists and fans out the weekly report.
type Service struct {
	calculator Calculator
	store      SnapshotStore
	notifiers  []Notifier
	log        zerolog.Logger
}

func NewService(calculator Calculator, store SnapshotStore, notifiers []Notifier, log zerolog.Logger) *Service {
	return &Service{
		calculator: calculator,
		store:      store,
		notifiers:  notifiers,
		log:        log.With().Str("component", "report").Logger(),
	}
}

// Run computes the snapshot for the week starting at weekStart (zero means
// the current week), stores the scalar row, then notifies every destination.
// A destination failing is logged and does not block the others.
func (s *Service) Run(ctx context.Context, weekStart time.Time) (*metrics.Snapshot, error) {
	snapshot, err := s.calculator.Compute(ctx, weekStart)
	if err != nil {
		return nil, fmt.Errorf("failed to compute weekly snapshot: %w", err)
	}

	if err := s.store.Insert(ctx, snapshot.Scalars()); err != nil {
		return nil, fmt.Errorf("failed to persist weekly snapshot: %w", err)
	}

	for _, n := range s.notifiers {
		if err := n.Notify(ctx, snapshot); err != nil {
			s.log.Error().
				Err(err).
				Str("notifier", n.Name()).
				Msg("notification failed")
			continue
		}
		s.log.Info().Str("notifier", n.Name()).Msg("notification delivered")
	}

	return snapshot, nil
}
