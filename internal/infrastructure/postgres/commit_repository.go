package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pulse/internal/domain/ingest"
	"pulse/internal/models"
)

type CommitRepository struct {
	db *DB
}

func NewCommitRepository(db *DB) *CommitRepository {
	return &CommitRepository{db: db}
}

// Upsert writes the batch in a single multi-row statement. Re-ingesting a
// SHA overwrites the row, so running the same window twice is a no-op.
func (r *CommitRepository) Upsert(ctx context.Context, commits []models.Commit) (ingest.LoadResult, error) {
	if len(commits) == 0 {
		return ingest.LoadResult{}, nil
	}

	syncedAt := time.Now().UTC()

	var (
		placeholders []string
		args         []any
	)
	for i, c := range commits {
		base := i * 8
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		args = append(args, c.SHA, c.Author, c.Date, c.Repository, c.Message, c.Additions, c.Deletions, syncedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO github_commits (sha, author, commit_date, repository, message, additions, deletions, synced_at)
		VALUES %s
		ON CONFLICT (sha) DO UPDATE SET
		    author = EXCLUDED.author,
		    commit_date = EXCLUDED.commit_date,
		    repository = EXCLUDED.repository,
		    message = EXCLUDED.message,
		    additions = EXCLUDED.additions,
		    deletions = EXCLUDED.deletions,
		    synced_at = EXCLUDED.synced_at
	`, strings.Join(placeholders, ", "))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return ingest.LoadResult{}, fmt.Errorf("failed to upsert commits: %w", err)
	}

	return ingest.LoadResult{Loaded: len(commits)}, nil
}

// ListByDateRange returns commits with a commit date in [start, endExcl).
func (r *CommitRepository) ListByDateRange(ctx context.Context, start, endExcl time.Time) ([]models.Commit, error) {
	query := `
		SELECT sha, author, commit_date, repository, message, additions, deletions, synced_at
		FROM github_commits
		WHERE commit_date >= $1 AND commit_date < $2
		ORDER BY commit_date
	`

	rows, err := r.db.QueryContext(ctx, query, start, endExcl)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}
	defer rows.Close()

	var commits []models.Commit
	for rows.Next() {
		var c models.Commit
		if err := rows.Scan(&c.SHA, &c.Author, &c.Date, &c.Repository, &c.Message, &c.Additions, &c.Deletions, &c.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan commit: %w", err)
		}
		commits = append(commits, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating commits: %w", err)
	}

	return commits, nil
}
