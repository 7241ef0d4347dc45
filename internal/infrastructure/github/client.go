// Package github extracts commits and pull requests from a GitHub-style REST
// API and maps them into canonical records.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pulse/internal/models"
	"pulse/internal/shared/retry"
)

const (
	defaultBaseURL = "https://api.github.com"
	defaultTimeout = 10 * time.Second

	perPage = 100
	// Page ceilings bound worst-case work against misbehaving or
	// unexpectedly large sources.
	maxRepoPages   = 10
	maxEntityPages = 3

	maxMessageLen = 200
	maxTitleLen   = 200
)

// Client talks to the GitHub REST API for one organization (or user).
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	org        string
	retry      retry.Policy
	log        zerolog.Logger
}

func NewClient(token, org string, policy retry.Policy, log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		token:      token,
		org:        org,
		retry:      policy,
		log:        log.With().Str("source", "github").Logger(),
	}
}

// WithBaseURL points the client at a different API host. Used in tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

type repoPayload struct {
	Name string `json:"name"`
}

type commitPayload struct {
	SHA    string `json:"sha"`
	Commit struct {
		Author struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
		Message string `json:"message"`
	} `json:"commit"`
}

type pullPayload struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	MergedAt  *time.Time `json:"merged_at"`
	User      struct {
		Login string `json:"login"`
	} `json:"user"`
}

// ListRepos enumerates every repository in the organization, paging until an
// empty page or the page ceiling. If the org endpoint rejects the request
// (personal accounts), the user endpoint is tried before giving up on the page.
func (c *Client) ListRepos(ctx context.Context) ([]string, error) {
	var repos []string

	for page := 1; page <= maxRepoPages; page++ {
		params := url.Values{
			"per_page": {strconv.Itoa(perPage)},
			"page":     {strconv.Itoa(page)},
			"type":     {"all"},
		}

		body, status, err := c.get(ctx, fmt.Sprintf("/orgs/%s/repos", c.org), params)
		if err != nil {
			if isTimeout(err) {
				c.log.Warn().Err(err).Msg("timeout listing repositories, returning what we have")
				return repos, nil
			}
			return repos, fmt.Errorf("failed to list repositories: %w", err)
		}
		if status != http.StatusOK {
			body, status, err = c.get(ctx, fmt.Sprintf("/users/%s/repos", c.org), params)
			if err != nil || status != http.StatusOK {
				c.log.Warn().Int("status", status).Msg("could not fetch repositories")
				break
			}
		}

		var pageRepos []repoPayload
		if err := json.Unmarshal(body, &pageRepos); err != nil {
			return repos, fmt.Errorf("failed to unmarshal repositories: %w", err)
		}
		if len(pageRepos) == 0 {
			break
		}
		for _, r := range pageRepos {
			repos = append(repos, r.Name)
		}
	}

	c.log.Info().Int("count", len(repos)).Str("org", c.org).Msg("repositories enumerated")
	return repos, nil
}

// GetCommits fetches commits for one repository within the lookback window.
// A missing repository is logged and yields zero results; a timeout yields
// an empty best-effort result.
func (c *Client) GetCommits(ctx context.Context, repo string, lookbackDays int) ([]models.Commit, error) {
	since := time.Now().UTC().AddDate(0, 0, -lookbackDays)

	var commits []models.Commit
	for page := 1; page <= maxEntityPages; page++ {
		params := url.Values{
			"since":    {since.Format(time.RFC3339)},
			"per_page": {strconv.Itoa(perPage)},
			"page":     {strconv.Itoa(page)},
		}

		body, status, err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/commits", c.org, repo), params)
		if err != nil {
			if isTimeout(err) {
				c.log.Warn().Str("repo", repo).Msg("timeout fetching commits")
				return nil, nil
			}
			return commits, fmt.Errorf("failed to fetch commits for %s: %w", repo, err)
		}
		if status == http.StatusNotFound {
			c.log.Warn().Str("repo", repo).Msg("repository not found, skipping")
			return nil, nil
		}
		if status != http.StatusOK {
			c.log.Warn().Str("repo", repo).Int("status", status).Msg("commit fetch aborted")
			break
		}

		var pageCommits []commitPayload
		if err := json.Unmarshal(body, &pageCommits); err != nil {
			return commits, fmt.Errorf("failed to unmarshal commits for %s: %w", repo, err)
		}
		if len(pageCommits) == 0 {
			break
		}

		for _, pc := range pageCommits {
			commits = append(commits, models.Commit{
				SHA:        pc.SHA,
				Author:     pc.Commit.Author.Name,
				Date:       pc.Commit.Author.Date,
				Repository: repo,
				Message:    truncate(firstLine(pc.Commit.Message), maxMessageLen),
			})
		}
	}

	return commits, nil
}

// GetPullRequests fetches pull requests for one repository, filtered
// client-side to those created within the lookback window. The API lists
// all states; a PR with a merge timestamp is normalized to "merged".
func (c *Client) GetPullRequests(ctx context.Context, repo string, lookbackDays int) ([]models.PullRequest, error) {
	since := time.Now().UTC().AddDate(0, 0, -lookbackDays)

	var prs []models.PullRequest
	for page := 1; page <= maxEntityPages; page++ {
		params := url.Values{
			"state":     {"all"},
			"per_page":  {strconv.Itoa(perPage)},
			"page":      {strconv.Itoa(page)},
			"sort":      {"updated"},
			"direction": {"desc"},
		}

		body, status, err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/pulls", c.org, repo), params)
		if err != nil {
			if isTimeout(err) {
				c.log.Warn().Str("repo", repo).Msg("timeout fetching pull requests")
				return nil, nil
			}
			return prs, fmt.Errorf("failed to fetch pull requests for %s: %w", repo, err)
		}
		if status == http.StatusNotFound {
			c.log.Warn().Str("repo", repo).Msg("repository not found, skipping")
			return nil, nil
		}
		if status != http.StatusOK {
			c.log.Warn().Str("repo", repo).Int("status", status).Msg("pull request fetch aborted")
			break
		}

		var pagePRs []pullPayload
		if err := json.Unmarshal(body, &pagePRs); err != nil {
			return prs, fmt.Errorf("failed to unmarshal pull requests for %s: %w", repo, err)
		}
		if len(pagePRs) == 0 {
			break
		}

		for _, pp := range pagePRs {
			if pp.CreatedAt.Before(since) {
				continue
			}

			state := pp.State
			if pp.MergedAt != nil {
				state = models.PRStateMerged
			}

			prs = append(prs, models.PullRequest{
				Number:     pp.Number,
				Repository: repo,
				Author:     pp.User.Login,
				Title:      truncate(pp.Title, maxTitleLen),
				State:      state,
				CreatedAt:  pp.CreatedAt,
				MergedAt:   pp.MergedAt,
			})
		}
	}

	return prs, nil
}

// GetAllCommits fans out GetCommits across every repository in the org.
func (c *Client) GetAllCommits(ctx context.Context, lookbackDays int) ([]models.Commit, error) {
	repos, err := c.ListRepos(ctx)
	if err != nil {
		return nil, err
	}

	var all []models.Commit
	for _, repo := range repos {
		commits, err := c.GetCommits(ctx, repo, lookbackDays)
		if err != nil {
			c.log.Warn().Err(err).Str("repo", repo).Msg("skipping repository commits")
			continue
		}
		all = append(all, commits...)
	}
	return all, nil
}

// GetAllPullRequests fans out GetPullRequests across every repository.
func (c *Client) GetAllPullRequests(ctx context.Context, lookbackDays int) ([]models.PullRequest, error) {
	repos, err := c.ListRepos(ctx)
	if err != nil {
		return nil, err
	}

	var all []models.PullRequest
	for _, repo := range repos {
		prs, err := c.GetPullRequests(ctx, repo, lookbackDays)
		if err != nil {
			c.log.Warn().Err(err).Str("repo", repo).Msg("skipping repository pull requests")
			continue
		}
		all = append(all, prs...)
	}
	return all, nil
}

// get executes one authenticated GET, retrying rate-limit and server errors
// per the client's retry policy. Non-2xx statuses are returned to the caller
// for classification, not treated as errors here.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var body []byte
	var status int

	err := c.retry.Do(ctx, func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return false, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "token "+c.token)
		req.Header.Set("Accept", "application/vnd.github.v3+json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return false, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return false, fmt.Errorf("failed to read response body: %w", err)
		}

		status = resp.StatusCode
		if retry.RetryableStatus(status) {
			return true, fmt.Errorf("github returned status %d", status)
		}
		return false, nil
	})
	if err != nil {
		return nil, status, err
	}
	return body, status, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
