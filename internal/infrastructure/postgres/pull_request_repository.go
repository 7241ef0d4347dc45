package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pulse/internal/domain/ingest"
	"pulse/internal/models"
)

type PullRequestRepository struct {
	db  *DB
	log zerolog.Logger
}

func NewPullRequestRepository(db *DB, log zerolog.Logger) *PullRequestRepository {
	return &PullRequestRepository{
		db:  db,
		log: log.With().Str("component", "pull_request_repository").Logger(),
	}
}

// Upsert writes pull requests one at a time. The composite key rules out
// the single-statement path, so each record tries INSERT first and falls
// back to an UPDATE scoped by (pr_number, repository) when the row exists.
func (r *PullRequestRepository) Upsert(ctx context.Context, prs []models.PullRequest) (ingest.LoadResult, error) {
	syncedAt := time.Now().UTC()

	var result ingest.LoadResult
	for _, pr := range prs {
		if err := r.upsertOne(ctx, pr, syncedAt); err != nil {
			r.log.Warn().
				Err(err).
				Int("pr_number", pr.Number).
				Str("repository", pr.Repository).
				Msg("skipping pull request")
			result.Skipped++
			continue
		}
		result.Loaded++
	}

	return result, nil
}

func (r *PullRequestRepository) upsertOne(ctx context.Context, pr models.PullRequest, syncedAt time.Time) error {
	insert := `
		INSERT INTO github_pull_requests (pr_number, repository, author, title, state, created_at, merged_at, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, insert,
		pr.Number, pr.Repository, pr.Author, pr.Title, pr.State, pr.CreatedAt, pr.MergedAt, syncedAt)
	if err == nil {
		return nil
	}
	if !IsUniqueViolation(err) {
		return fmt.Errorf("failed to insert pull request: %w", err)
	}

	update := `
		UPDATE github_pull_requests
		SET author = $3, title = $4, state = $5, created_at = $6, merged_at = $7, synced_at = $8
		WHERE pr_number = $1 AND repository = $2
	`

	if _, err := r.db.ExecContext(ctx, update,
		pr.Number, pr.Repository, pr.Author, pr.Title, pr.State, pr.CreatedAt, pr.MergedAt, syncedAt); err != nil {
		return fmt.Errorf("failed to update pull request: %w", err)
	}

	return nil
}

// ListMergedBetween returns pull requests merged in [start, endExcl).
func (r *PullRequestRepository) ListMergedBetween(ctx context.Context, start, endExcl time.Time) ([]models.PullRequest, error) {
	query := `
		SELECT pr_number, repository, author, title, state, created_at, merged_at, synced_at
		FROM github_pull_requests
		WHERE state = $1 AND merged_at >= $2 AND merged_at < $3
		ORDER BY merged_at
	`

	rows, err := r.db.QueryContext(ctx, query, models.PRStateMerged, start, endExcl)
	if err != nil {
		return nil, fmt.Errorf("failed to list merged pull requests: %w", err)
	}
	defer rows.Close()

	var prs []models.PullRequest
	for rows.Next() {
		var pr models.PullRequest
		if err := rows.Scan(&pr.Number, &pr.Repository, &pr.Author, &pr.Title, &pr.State, &pr.CreatedAt, &pr.MergedAt, &pr.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pull request: %w", err)
		}
		prs = append(prs, pr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pull requests: %w", err)
	}

	return prs, nil
}
