package provider

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupported is returned when a backend doesn't support a given operation.
var ErrUnsupported = errors.New("operation not supported by this backend")

// ErrNotMergeable is returned by MergePullRequest when the pull request has
// conflicts or failing status checks.
var ErrNotMergeable = errors.New("pull request is not mergeable")

// IssueTracker is the interface the agent uses to talk to the hosting
// service for one repository: issue discovery, conversation, labelling and
// the pull request lifecycle of a fix.
type IssueTracker interface {
	// Name returns the short identifier for this backend (e.g., "github").
	Name() string

	// ListLabeledIssues returns open issues (not pull requests) carrying label.
	ListLabeledIssues(ctx context.Context, label string) ([]Issue, error)

	// GetIssue retrieves a single issue by number.
	GetIssue(ctx context.Context, number int) (*Issue, error)

	// ListComments returns the issue conversation, oldest first.
	ListComments(ctx context.Context, number int) ([]Comment, error)

	// PostComment adds a comment to an issue or pull request.
	PostComment(ctx context.Context, number int, body string) error

	// AddLabel adds label to an issue, creating it on the repository if needed.
	AddLabel(ctx context.Context, number int, label string) error

	// CloseIssue closes an issue.
	CloseIssue(ctx context.Context, number int) error

	// DefaultBranch returns the repository's default branch.
	DefaultBranch(ctx context.Context) (string, error)

	// FindPullRequest returns the open pull request whose head is branch, or
	// nil when there is none.
	FindPullRequest(ctx context.Context, branch string) (*PullRequest, error)

	// CreatePullRequest opens a pull request.
	CreatePullRequest(ctx context.Context, req NewPullRequest) (*PullRequest, error)

	// MergeReadiness reports whether a pull request can be merged now.
	MergeReadiness(ctx context.Context, number int) (*MergeReadiness, error)

	// MergePullRequest merges a pull request with the given method
	// ("merge", "squash" or "rebase") and commit title.
	MergePullRequest(ctx context.Context, number int, method, title string) error

	// EnableAutoMerge asks the host to merge pr once its requirements pass.
	EnableAutoMerge(ctx context.Context, pr *PullRequest, method string) error
}

// Issue contains the fields of an issue the agent works from.
type Issue struct {
	Number    int
	Title     string
	Body      string
	State     string
	Author    string
	Labels    []string
	URL       string
	CreatedAt time.Time
}

// HasLabel reports whether the issue carries label.
func (i *Issue) HasLabel(label string) bool {
	for _, l := range i.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Comment is one entry in an issue conversation.
type Comment struct {
	ID        int64
	Author    string
	Body      string
	CreatedAt time.Time
}

// PullRequest contains metadata about a pull request.
type PullRequest struct {
	Number int
	// NodeID is the GraphQL identifier, needed for auto-merge.
	NodeID string
	Title  string
	State  string
	Head   string
	Base   string
	URL    string
}

// NewPullRequest describes a pull request to open.
type NewPullRequest struct {
	Title string
	Head  string
	Base  string
	Body  string
}

// MergeReadiness summarises the merge gate for a pull request.
type MergeReadiness struct {
	// Mergeable is false while the host is still computing it or when there
	// are conflicts.
	Mergeable bool
	// StatusState is the combined commit status: "success", "pending", "failure" or "error".
	StatusState string
}

// Ready reports whether the pull request can be merged right away. Pending
// checks do not block; failed ones do.
func (m *MergeReadiness) Ready() bool {
	if !m.Mergeable {
		return false
	}
	switch m.StatusState {
	case "success", "pending", "":
		return true
	default:
		return false
	}
}
