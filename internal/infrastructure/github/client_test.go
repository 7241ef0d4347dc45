package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/models"
	"pulse/internal/shared/logger"
	"pulse/internal/shared/retry"
)

func newTestClient(baseURL string) *Client {
	policy := retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	return NewClient("test-token", "acme", policy, logger.Nop()).WithBaseURL(baseURL)
}

func TestListRepos_PagesUntilEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		require.Equal(t, "/orgs/acme/repos", r.URL.Path)

		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `[{"name": "api"}, {"name": "web"}]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer srv.Close()

	repos, err := newTestClient(srv.URL).ListRepos(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "web"}, repos)
}

func TestListRepos_FallsBackToUserEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orgs/acme/repos":
			w.WriteHeader(http.StatusNotFound)
		case "/users/acme/repos":
			if r.URL.Query().Get("page") == "1" {
				fmt.Fprint(w, `[{"name": "dotfiles"}]`)
			} else {
				fmt.Fprint(w, `[]`)
			}
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	repos, err := newTestClient(srv.URL).ListRepos(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"dotfiles"}, repos)
}

func TestGetCommits_TruncatesMessageToFirstLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/api/commits", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("since"))

		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, `[]`)
			return
		}
		fmt.Fprint(w, `[
			{"sha": "abc123", "commit": {"author": {"name": "ana", "date": "2026-08-25T10:00:00Z"},
			 "message": "fix flaky retry test\n\nlong body that should not survive"}}
		]`)
	}))
	defer srv.Close()

	commits, err := newTestClient(srv.URL).GetCommits(context.Background(), "api", 90)
	require.NoError(t, err)
	require.Len(t, commits, 1)

	assert.Equal(t, "abc123", commits[0].SHA)
	assert.Equal(t, "ana", commits[0].Author)
	assert.Equal(t, "api", commits[0].Repository)
	assert.Equal(t, "fix flaky retry test", commits[0].Message)
}

func TestGetCommits_NotFoundReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	commits, err := newTestClient(srv.URL).GetCommits(context.Background(), "gone", 90)
	require.NoError(t, err)
	assert.Empty(t, commits)
}

func TestGetCommits_NonOKKeepsCollectedPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `[{"sha": "abc", "commit": {"author": {"name": "ana", "date": "2026-08-25T10:00:00Z"}, "message": "one"}}]`)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	commits, err := newTestClient(srv.URL).GetCommits(context.Background(), "api", 90)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "abc", commits[0].SHA)
}

func TestGetPullRequests_FiltersAndNormalizesState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/api/pulls", r.URL.Path)
		assert.Equal(t, "all", r.URL.Query().Get("state"))

		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, `[]`)
			return
		}

		recent := time.Now().UTC().AddDate(0, 0, -5).Format(time.RFC3339)
		old := time.Now().UTC().AddDate(0, 0, -200).Format(time.RFC3339)
		fmt.Fprintf(w, `[
			{"number": 10, "title": "add webhooks", "state": "closed",
			 "created_at": %q, "merged_at": %q, "user": {"login": "ana"}},
			{"number": 11, "title": "wip", "state": "open",
			 "created_at": %q, "merged_at": null, "user": {"login": "bob"}},
			{"number": 2, "title": "ancient", "state": "closed",
			 "created_at": %q, "merged_at": null, "user": {"login": "old"}}
		]`, recent, recent, recent, old)
	}))
	defer srv.Close()

	prs, err := newTestClient(srv.URL).GetPullRequests(context.Background(), "api", 90)
	require.NoError(t, err)
	require.Len(t, prs, 2)

	assert.Equal(t, models.PRStateMerged, prs[0].State)
	require.NotNil(t, prs[0].MergedAt)
	assert.Equal(t, models.PRStateOpen, prs[1].State)
	assert.Nil(t, prs[1].MergedAt)
}

func TestGetAllCommits_SkipsFailingRepo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/orgs/acme/repos":
			if r.URL.Query().Get("page") == "1" {
				fmt.Fprint(w, `[{"name": "api"}, {"name": "gone"}]`)
			} else {
				fmt.Fprint(w, `[]`)
			}
		case r.URL.Path == "/repos/acme/api/commits":
			if r.URL.Query().Get("page") == "1" {
				fmt.Fprint(w, `[{"sha": "abc", "commit": {"author": {"name": "ana", "date": "2026-08-25T10:00:00Z"}, "message": "one"}}]`)
			} else {
				fmt.Fprint(w, `[]`)
			}
		case r.URL.Path == "/repos/acme/gone/commits":
			w.WriteHeader(http.StatusNotFound)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	commits, err := newTestClient(srv.URL).GetAllCommits(context.Background(), 90)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "api", commits[0].Repository)
}

func TestGet_RetriesRateLimit(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `[{"name": "api"}]`)
		} else {
			fmt.Fprint(w, `[]`)
		}
	}))
	defer srv.Close()

	policy := retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	client := NewClient("test-token", "acme", policy, logger.Nop()).WithBaseURL(srv.URL)

	repos, err := client.ListRepos(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, repos)
	assert.GreaterOrEqual(t, attempts, 2)
}

func TestTruncateHelpers(t *testing.T) {
	assert.Equal(t, "first", firstLine("first\nsecond"))
	assert.Equal(t, "whole", firstLine("whole"))

	long := make([]byte, 250)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, truncate(string(long), maxMessageLen), maxMessageLen)
	assert.Equal(t, "short", truncate("short", maxMessageLen))
}
