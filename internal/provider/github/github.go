package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	github_ratelimit "github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/alanmeadows/thorfix/internal/provider"
)

// pageSize is used for every paginated list call.
const pageSize = 100

// Backend implements provider.IssueTracker for one GitHub repository.
type Backend struct {
	client    *gh.Client
	gqlOnce   sync.Once
	gqlClient *githubv4.Client
	owner     string
	repo      string
	token     string
	baseURL   string // GitHub Enterprise root, or empty for github.com
}

// NewBackend creates a GitHub backend for owner/repo. baseURL selects a
// GitHub Enterprise server and may be empty.
// Uses go-github-ratelimit middleware for automatic rate limit handling.
func NewBackend(owner, repo, token, baseURL string) (*Backend, error) {
	rateLimiter := github_ratelimit.NewClient(nil)
	client := gh.NewClient(rateLimiter).WithAuthToken(token)
	if baseURL != "" {
		base := strings.TrimSuffix(baseURL, "/") + "/"
		var err error
		client, err = client.WithEnterpriseURLs(base, base)
		if err != nil {
			return nil, fmt.Errorf("configuring enterprise URL: %w", err)
		}
	}
	return &Backend{
		client:  client,
		owner:   owner,
		repo:    repo,
		token:   token,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Name returns "github".
func (b *Backend) Name() string {
	return "github"
}

// Repo returns the "owner/repo" slug the backend is bound to.
func (b *Backend) Repo() string {
	return b.owner + "/" + b.repo
}

// ListLabeledIssues returns open issues carrying label, oldest first.
// Pull requests, which the issues API also returns, are dropped.
func (b *Backend) ListLabeledIssues(ctx context.Context, label string) ([]provider.Issue, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "open",
		Labels:      []string{label},
		Sort:        "created",
		Direction:   "asc",
		ListOptions: gh.ListOptions{PerPage: pageSize},
	}

	var issues []provider.Issue
	for {
		page, resp, err := b.client.Issues.ListByRepo(ctx, b.owner, b.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list issues: %w", err)
		}
		for _, i := range page {
			if i.IsPullRequest() {
				continue
			}
			issues = append(issues, mapIssue(i))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}
	return issues, nil
}

// GetIssue retrieves a single issue by number.
func (b *Backend) GetIssue(ctx context.Context, number int) (*provider.Issue, error) {
	i, _, err := b.client.Issues.Get(ctx, b.owner, b.repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue #%d: %w", number, err)
	}
	if i.IsPullRequest() {
		return nil, fmt.Errorf("#%d is a pull request, not an issue", number)
	}
	issue := mapIssue(i)
	return &issue, nil
}

// ListComments returns every comment on an issue, oldest first.
func (b *Backend) ListComments(ctx context.Context, number int) ([]provider.Comment, error) {
	opts := &gh.IssueListCommentsOptions{
		Sort:        gh.Ptr("created"),
		Direction:   gh.Ptr("asc"),
		ListOptions: gh.ListOptions{PerPage: pageSize},
	}

	var comments []provider.Comment
	for {
		page, resp, err := b.client.Issues.ListComments(ctx, b.owner, b.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments on #%d: %w", number, err)
		}
		for _, c := range page {
			comments = append(comments, provider.Comment{
				ID:        c.GetID(),
				Author:    c.GetUser().GetLogin(),
				Body:      c.GetBody(),
				CreatedAt: c.GetCreatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return comments, nil
}

// PostComment adds a comment to an issue or pull request.
func (b *Backend) PostComment(ctx context.Context, number int, body string) error {
	_, _, err := b.client.Issues.CreateComment(ctx, b.owner, b.repo, number, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("failed to post comment on #%d: %w", number, err)
	}
	return nil
}

// AddLabel adds label to an issue. GitHub creates unknown labels on the fly.
func (b *Backend) AddLabel(ctx context.Context, number int, label string) error {
	_, _, err := b.client.Issues.AddLabelsToIssue(ctx, b.owner, b.repo, number, []string{label})
	if err != nil {
		return fmt.Errorf("failed to label #%d with %q: %w", number, label, err)
	}
	return nil
}

// CloseIssue closes an issue.
func (b *Backend) CloseIssue(ctx context.Context, number int) error {
	_, _, err := b.client.Issues.Edit(ctx, b.owner, b.repo, number, &gh.IssueRequest{
		State: gh.Ptr("closed"),
	})
	if err != nil {
		return fmt.Errorf("failed to close issue #%d: %w", number, err)
	}
	return nil
}

// DefaultBranch returns the repository's default branch.
func (b *Backend) DefaultBranch(ctx context.Context) (string, error) {
	r, _, err := b.client.Repositories.Get(ctx, b.owner, b.repo)
	if err != nil {
		return "", fmt.Errorf("failed to get repository: %w", err)
	}
	branch := r.GetDefaultBranch()
	if branch == "" {
		return "", fmt.Errorf("repository %s has no default branch", b.Repo())
	}
	return branch, nil
}

// FindPullRequest returns the open pull request whose head is branch.
func (b *Backend) FindPullRequest(ctx context.Context, branch string) (*provider.PullRequest, error) {
	prs, _, err := b.client.PullRequests.List(ctx, b.owner, b.repo, &gh.PullRequestListOptions{
		State:       "open",
		Head:        b.owner + ":" + branch,
		ListOptions: gh.ListOptions{PerPage: pageSize},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests for %s: %w", branch, err)
	}
	for _, pr := range prs {
		if pr.GetHead().GetRef() == branch {
			return mapPR(pr), nil
		}
	}
	return nil, nil
}

// CreatePullRequest opens a pull request.
func (b *Backend) CreatePullRequest(ctx context.Context, req provider.NewPullRequest) (*provider.PullRequest, error) {
	pr, _, err := b.client.PullRequests.Create(ctx, b.owner, b.repo, &gh.NewPullRequest{
		Title: gh.Ptr(req.Title),
		Head:  gh.Ptr(req.Head),
		Base:  gh.Ptr(req.Base),
		Body:  gh.Ptr(req.Body),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pull request: %w", err)
	}
	slog.Info("pull request created", "number", pr.GetNumber(), "url", pr.GetHTMLURL())
	return mapPR(pr), nil
}

// MergeReadiness combines the pull request's mergeable flag with the
// combined commit status of its head.
func (b *Backend) MergeReadiness(ctx context.Context, number int) (*provider.MergeReadiness, error) {
	pr, _, err := b.client.PullRequests.Get(ctx, b.owner, b.repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get PR #%d: %w", number, err)
	}

	out := &provider.MergeReadiness{Mergeable: pr.GetMergeable()}

	sha := pr.GetHead().GetSHA()
	if sha == "" {
		return out, nil
	}
	combined, _, err := b.client.Repositories.GetCombinedStatus(ctx, b.owner, b.repo, sha, &gh.ListOptions{PerPage: pageSize})
	if err != nil {
		return nil, fmt.Errorf("failed to get combined status: %w", err)
	}
	out.StatusState = combined.GetState()
	return out, nil
}

// MergePullRequest merges a pull request once it is ready.
func (b *Backend) MergePullRequest(ctx context.Context, number int, method, title string) error {
	ready, err := b.MergeReadiness(ctx, number)
	if err != nil {
		return err
	}
	if !ready.Ready() {
		return fmt.Errorf("%w: mergeable=%t status=%s", provider.ErrNotMergeable, ready.Mergeable, ready.StatusState)
	}

	result, _, err := b.client.PullRequests.Merge(ctx, b.owner, b.repo, number, "", &gh.PullRequestOptions{
		CommitTitle: title,
		MergeMethod: method,
	})
	if err != nil {
		return fmt.Errorf("failed to merge PR #%d: %w", number, err)
	}
	if !result.GetMerged() {
		return fmt.Errorf("%w: %s", provider.ErrNotMergeable, result.GetMessage())
	}
	return nil
}

// EnableAutoMerge turns on auto-merge using the GraphQL API; REST has no
// equivalent.
func (b *Backend) EnableAutoMerge(ctx context.Context, pr *provider.PullRequest, method string) error {
	if pr == nil || pr.NodeID == "" {
		return errors.New("pull request node ID is required for auto-merge")
	}
	mm, err := mergeMethod(method)
	if err != nil {
		return err
	}

	var mutation struct {
		EnablePullRequestAutoMerge struct {
			PullRequest struct {
				Number int
			}
		} `graphql:"enablePullRequestAutoMerge(input: $input)"`
	}
	input := githubv4.EnablePullRequestAutoMergeInput{
		PullRequestID: githubv4.ID(pr.NodeID),
		MergeMethod:   &mm,
	}

	if err := b.getGraphQLClient(ctx).Mutate(ctx, &mutation, input, nil); err != nil {
		return fmt.Errorf("failed to enable auto-merge on #%d: %w", pr.Number, err)
	}
	return nil
}

func mergeMethod(method string) (githubv4.PullRequestMergeMethod, error) {
	switch strings.ToLower(method) {
	case "", "squash":
		return githubv4.PullRequestMergeMethodSquash, nil
	case "merge":
		return githubv4.PullRequestMergeMethodMerge, nil
	case "rebase":
		return githubv4.PullRequestMergeMethodRebase, nil
	default:
		return "", fmt.Errorf("unknown merge method %q", method)
	}
}

func mapIssue(i *gh.Issue) provider.Issue {
	labels := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		labels = append(labels, l.GetName())
	}
	return provider.Issue{
		Number:    i.GetNumber(),
		Title:     i.GetTitle(),
		Body:      i.GetBody(),
		State:     i.GetState(),
		Author:    i.GetUser().GetLogin(),
		Labels:    labels,
		URL:       i.GetHTMLURL(),
		CreatedAt: i.GetCreatedAt().Time,
	}
}

func mapPR(pr *gh.PullRequest) *provider.PullRequest {
	return &provider.PullRequest{
		Number: pr.GetNumber(),
		NodeID: pr.GetNodeID(),
		Title:  pr.GetTitle(),
		State:  pr.GetState(),
		Head:   pr.GetHead().GetRef(),
		Base:   pr.GetBase().GetRef(),
		URL:    pr.GetHTMLURL(),
	}
}

// getGraphQLClient lazily builds a GraphQL client sharing the REST token.
func (b *Backend) getGraphQLClient(ctx context.Context) *githubv4.Client {
	b.gqlOnce.Do(func() {
		var httpClient *http.Client
		if b.token != "" {
			ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: b.token})
			httpClient = oauth2.NewClient(ctx, ts)
		}
		if b.baseURL != "" {
			b.gqlClient = githubv4.NewEnterpriseClient(b.baseURL+"/api/graphql", httpClient)
		} else {
			b.gqlClient = githubv4.NewClient(httpClient)
		}
	})
	return b.gqlClient
}
