package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/domain/metrics"
	"pulse/internal/models"
	"pulse/internal/shared/logger"
)

type mockCalculator struct {
	computeFn func(ctx context.Context, weekStart time.Time) (*metrics.Snapshot, error)
}

func (m *mockCalculator) Compute(ctx context.Context, weekStart time.Time) (*metrics.Snapshot, error) {
	return m.computeFn(ctx, weekStart)
}

type mockStore struct {
	insertFn func(ctx context.Context, m models.WeeklyMetrics) error
}

func (m *mockStore) Insert(ctx context.Context, metrics models.WeeklyMetrics) error {
	return m.insertFn(ctx, metrics)
}

type mockNotifier struct {
	name     string
	err      error
	received *metrics.Snapshot
}

func (m *mockNotifier) Notify(ctx context.Context, snapshot *metrics.Snapshot) error {
	m.received = snapshot
	return m.err
}

func (m *mockNotifier) Name() string { return m.name }

func weekOf(d int) time.Time {
	return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
}

func TestRun_PersistsScalarsAndNotifies(t *testing.T) {
	snapshot := &metrics.Snapshot{
		WeekStart:        weekOf(24),
		WeekEnd:          weekOf(30),
		DeveloperCommits: 12,
		CommitsByAuthor:  []metrics.AuthorCount{{Author: "ana", Count: 12}},
	}

	calc := &mockCalculator{
		computeFn: func(ctx context.Context, weekStart time.Time) (*metrics.Snapshot, error) {
			return snapshot, nil
		},
	}

	var stored models.WeeklyMetrics
	store := &mockStore{
		insertFn: func(ctx context.Context, m models.WeeklyMetrics) error {
			stored = m
			return nil
		},
	}

	notifier := &mockNotifier{name: "slack"}

	svc := NewService(calc, store, []Notifier{notifier}, logger.Nop())

	got, err := svc.Run(context.Background(), weekOf(24))
	require.NoError(t, err)
	assert.Same(t, snapshot, got)

	// The stored row carries scalars only.
	assert.Equal(t, weekOf(24), stored.WeekStart)
	assert.Equal(t, 12, stored.DeveloperCommits)

	// The notifier receives the full snapshot, breakdowns included.
	require.NotNil(t, notifier.received)
	assert.Len(t, notifier.received.CommitsByAuthor, 1)
}

func TestRun_FailedNotifierDoesNotBlockOthers(t *testing.T) {
	calc := &mockCalculator{
		computeFn: func(ctx context.Context, weekStart time.Time) (*metrics.Snapshot, error) {
			return &metrics.Snapshot{WeekStart: weekStart}, nil
		},
	}
	store := &mockStore{
		insertFn: func(ctx context.Context, m models.WeeklyMetrics) error { return nil },
	}

	failing := &mockNotifier{name: "primary", err: errors.New("webhook down")}
	working := &mockNotifier{name: "secondary"}

	svc := NewService(calc, store, []Notifier{failing, working}, logger.Nop())

	_, err := svc.Run(context.Background(), weekOf(24))
	require.NoError(t, err)
	assert.NotNil(t, working.received)
}

func TestRun_StoreFailureAborts(t *testing.T) {
	calc := &mockCalculator{
		computeFn: func(ctx context.Context, weekStart time.Time) (*metrics.Snapshot, error) {
			return &metrics.Snapshot{WeekStart: weekStart}, nil
		},
	}
	store := &mockStore{
		insertFn: func(ctx context.Context, m models.WeeklyMetrics) error {
			return errors.New("connection refused")
		},
	}
	notifier := &mockNotifier{name: "slack"}

	svc := NewService(calc, store, []Notifier{notifier}, logger.Nop())

	_, err := svc.Run(context.Background(), weekOf(24))
	require.Error(t, err)
	assert.Nil(t, notifier.received)
}
