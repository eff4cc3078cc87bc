package agent

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/alanmeadows/thorfix/internal/provider"
)

// fakeTracker is an in-memory IssueTracker.
type fakeTracker struct {
	mu sync.Mutex

	issues   map[int]*provider.Issue
	comments map[int][]provider.Comment
	prs      []*provider.PullRequest
	ready    *provider.MergeReadiness

	listErr    error
	mergeErr   error
	commentErr error
	merged     []string
	autoMerged []int
	closed     []int
}

func newFakeTracker(issues ...provider.Issue) *fakeTracker {
	f := &fakeTracker{
		issues:   make(map[int]*provider.Issue),
		comments: make(map[int][]provider.Comment),
	}
	for i := range issues {
		iss := issues[i]
		f.issues[iss.Number] = &iss
	}
	return f
}

func (f *fakeTracker) Name() string { return "fake" }

func (f *fakeTracker) ListLabeledIssues(_ context.Context, label string) ([]provider.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []provider.Issue
	for n := 1; n <= 100; n++ {
		if iss, ok := f.issues[n]; ok && iss.HasLabel(label) {
			out = append(out, *iss)
		}
	}
	return out, nil
}

func (f *fakeTracker) GetIssue(_ context.Context, number int) (*provider.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	iss, ok := f.issues[number]
	if !ok {
		return nil, fmt.Errorf("issue #%d not found", number)
	}
	cp := *iss
	return &cp, nil
}

func (f *fakeTracker) ListComments(_ context.Context, number int) ([]provider.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.Comment(nil), f.comments[number]...), nil
}

func (f *fakeTracker) PostComment(_ context.Context, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commentErr != nil {
		return f.commentErr
	}
	f.comments[number] = append(f.comments[number], provider.Comment{
		ID: int64(len(f.comments[number]) + 1), Author: "thorfix", Body: body,
	})
	return nil
}

func (f *fakeTracker) AddLabel(_ context.Context, number int, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	iss, ok := f.issues[number]
	if !ok {
		return fmt.Errorf("issue #%d not found", number)
	}
	if !iss.HasLabel(label) {
		iss.Labels = append(iss.Labels, label)
	}
	return nil
}

func (f *fakeTracker) CloseIssue(_ context.Context, number int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, number)
	return nil
}

func (f *fakeTracker) DefaultBranch(context.Context) (string, error) { return "main", nil }

func (f *fakeTracker) FindPullRequest(_ context.Context, branch string) (*provider.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pr := range f.prs {
		if pr.Head == branch && pr.State == "open" {
			return pr, nil
		}
	}
	return nil, nil
}

func (f *fakeTracker) CreatePullRequest(_ context.Context, req provider.NewPullRequest) (*provider.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 100 + len(f.prs)
	pr := &provider.PullRequest{
		Number: n,
		NodeID: fmt.Sprintf("PR_%d", n),
		Title:  req.Title,
		State:  "open",
		Head:   req.Head,
		Base:   req.Base,
		URL:    fmt.Sprintf("https://github.com/acme/widgets/pull/%d", n),
	}
	f.prs = append(f.prs, pr)
	return pr, nil
}

func (f *fakeTracker) MergeReadiness(context.Context, int) (*provider.MergeReadiness, error) {
	if f.ready == nil {
		return &provider.MergeReadiness{}, nil
	}
	return f.ready, nil
}

func (f *fakeTracker) MergePullRequest(_ context.Context, number int, method, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mergeErr != nil {
		return f.mergeErr
	}
	f.merged = append(f.merged, fmt.Sprintf("%d %s %s", number, method, title))
	return nil
}

func (f *fakeTracker) EnableAutoMerge(_ context.Context, pr *provider.PullRequest, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autoMerged = append(f.autoMerged, pr.Number)
	return nil
}

func (f *fakeTracker) commentBodies(number int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.comments[number] {
		out = append(out, c.Body)
	}
	return out
}

// captureLogs routes the default slog logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}
