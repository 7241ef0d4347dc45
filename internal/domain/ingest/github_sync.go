package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"pulse/internal/models"
)

// GitHubSyncResult contains the results of a GitHub sync operation.
type GitHubSyncResult struct {
	CommitsFound   int
	CommitsLoaded  int
	CommitsSkipped int
	PRsFound       int
	PRsLoaded      int
	PRsSkipped     int
	Errors         []string
}

// GitHubSyncService pulls commits and pull requests and loads them.
// An empty or "ALL" repo scope fans out across every repository the
// token can list.
type GitHubSyncService struct {
	client      GitHubClient
	commitStore CommitStore
	prStore     PullRequestStore
	repo        string
	log         zerolog.Logger
}

func NewGitHubSyncService(client GitHubClient, commitStore CommitStore, prStore PullRequestStore, repo string, log zerolog.Logger) *GitHubSyncService {
	return &GitHubSyncService{
		client:      client,
		commitStore: commitStore,
		prStore:     prStore,
		repo:        repo,
		log:         log.With().Str("component", "github_sync").Logger(),
	}
}

func (s *GitHubSyncService) Sync(ctx context.Context, lookbackDays int) (*GitHubSyncResult, error) {
	result := &GitHubSyncResult{Errors: []string{}}

	allRepos := s.repo == "" || s.repo == "ALL"

	var err error
	var commits []models.Commit
	if allRepos {
		commits, err = s.client.GetAllCommits(ctx, lookbackDays)
	} else {
		commits, err = s.client.GetCommits(ctx, s.repo, lookbackDays)
	}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to fetch commits: %v", err))
	}
	result.CommitsFound = len(commits)

	if len(commits) > 0 {
		loaded, err := s.commitStore.Upsert(ctx, commits)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to load commits: %v", err))
		}
		result.CommitsLoaded = loaded.Loaded
		result.CommitsSkipped = loaded.Skipped
	}

	var prs []models.PullRequest
	if allRepos {
		prs, err = s.client.GetAllPullRequests(ctx, lookbackDays)
	} else {
		prs, err = s.client.GetPullRequests(ctx, s.repo, lookbackDays)
	}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to fetch pull requests: %v", err))
	}
	result.PRsFound = len(prs)

	if len(prs) > 0 {
		loaded, err := s.prStore.Upsert(ctx, prs)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to load pull requests: %v", err))
		}
		result.PRsLoaded = loaded.Loaded
		result.PRsSkipped = loaded.Skipped
	}

	s.log.Info().
		Int("commits_found", result.CommitsFound).
		Int("commits_loaded", result.CommitsLoaded).
		Int("prs_found", result.PRsFound).
		Int("prs_loaded", result.PRsLoaded).
		Int("errors", len(result.Errors)).
		Msg("github sync completed")

	return result, nil
}
