package models

import "time"

// Commit is the canonical record for a single commit in one repository.
// The SHA is the natural key; re-ingesting the same SHA overwrites.
type Commit struct {
	SHA        string
	Author     string
	Date       time.Time
	Repository string
	Message    string // first line only, max 200 chars
	Additions  int
	Deletions  int
	SyncedAt   time.Time
}

// Pull request states as stored. A PR with a merge timestamp is always
// "merged" regardless of what the source reports as its state.
const (
	PRStateOpen   = "open"
	PRStateClosed = "closed"
	PRStateMerged = "merged"
)

// PullRequest is the canonical record for a pull request. The natural key
// is (Number, Repository) since PR numbers are only unique per repo.
type PullRequest struct {
	Number     int
	Repository string
	Author     string
	Title      string // max 200 chars
	State      string
	CreatedAt  time.Time
	MergedAt   *time.Time // set iff State == merged
	SyncedAt   time.Time
}
