package ingest

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PipelineResult aggregates the per-source results of one sync run.
type PipelineResult struct {
	RunID      string
	GitHub     *GitHubSyncResult
	Mercury    *MercurySyncResult
	QuickBooks *QuickBooksSyncResult
}

// Pipeline runs every source sync in sequence. All sources always run;
// the only error it returns is a QuickBooks auth failure, raised after
// the other sources finished so a bad credential cannot starve them.
type Pipeline struct {
	github     *GitHubSyncService
	mercury    *MercurySyncService
	quickbooks *QuickBooksSyncService
	log        zerolog.Logger
}

func NewPipeline(github *GitHubSyncService, mercury *MercurySyncService, quickbooks *QuickBooksSyncService, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		github:     github,
		mercury:    mercury,
		quickbooks: quickbooks,
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

func (p *Pipeline) Run(ctx context.Context, lookbackDays int) (*PipelineResult, error) {
	result := &PipelineResult{RunID: uuid.NewString()}

	log := p.log.With().Str("run_id", result.RunID).Logger()
	log.Info().Int("lookback_days", lookbackDays).Msg("sync run started")

	var err error
	result.GitHub, err = p.github.Sync(ctx, lookbackDays)
	if err != nil {
		log.Error().Err(err).Msg("github sync failed")
		result.GitHub = &GitHubSyncResult{Errors: []string{err.Error()}}
	}

	result.Mercury, err = p.mercury.Sync(ctx, lookbackDays)
	if err != nil {
		log.Error().Err(err).Msg("mercury sync failed")
		result.Mercury = &MercurySyncResult{Errors: []string{err.Error()}}
	}

	var authErr error
	result.QuickBooks, authErr = p.quickbooks.Sync(ctx, lookbackDays)
	if authErr != nil {
		log.Error().Err(authErr).Msg("quickbooks sync failed")
		result.QuickBooks = &QuickBooksSyncResult{Errors: []string{authErr.Error()}}
	}

	log.Info().Msg("sync run finished")

	return result, authErr
}
