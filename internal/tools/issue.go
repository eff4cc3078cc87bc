package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Commenter posts a comment on the issue being worked on.
type Commenter interface {
	Comment(ctx context.Context, body string) error
}

// Committer records the working tree changes and publishes them. It reports
// false when there was nothing to commit.
type Committer interface {
	CommitAndPush(ctx context.Context, message string) (bool, error)
}

// Issue exposes the issue conversation and the branch to the model.
type Issue struct {
	Commenter Commenter
	Committer Committer
}

type commentArgs struct {
	Comment string `json:"comment"`
}

type commitArgs struct {
	Message string `json:"message"`
}

// Register adds issue_add_comment and commit_changes to r.
func (i *Issue) Register(r *Registry) error {
	defs := []*Tool{
		{
			Name:        "issue_add_comment",
			Description: "Adds a markdown comment to the issue",
			Schema: object([]string{"comment"}, map[string]any{
				"comment": map[string]any{"type": "string", "minLength": 1, "description": "The markdown comment to add"},
			}),
			Handler: i.comment,
		},
		{
			Name:        "commit_changes",
			Description: "Commits all changes in the repository and pushes them to the working branch",
			Schema: object([]string{"message"}, map[string]any{
				"message": map[string]any{"type": "string", "minLength": 1, "description": "The commit message"},
			}),
			Handler: i.commit,
		},
	}
	for _, t := range defs {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func (i *Issue) comment(ctx context.Context, raw json.RawMessage) (string, error) {
	var args commentArgs
	if err := decode(raw, &args); err != nil {
		return "", err
	}
	if err := i.Commenter.Comment(ctx, args.Comment); err != nil {
		return "", fmt.Errorf("adding comment: %w", err)
	}
	return "Comment added successfully", nil
}

func (i *Issue) commit(ctx context.Context, raw json.RawMessage) (string, error) {
	var args commitArgs
	if err := decode(raw, &args); err != nil {
		return "", err
	}
	committed, err := i.Committer.CommitAndPush(ctx, strings.TrimSpace(args.Message))
	if err != nil {
		return "", fmt.Errorf("committing changes: %w", err)
	}
	if !committed {
		return "Nothing to commit", nil
	}
	return "Changes committed and pushed", nil
}

// NewDefault returns a registry with the file tools rooted at root and the
// issue tools backed by issue.
func NewDefault(root string, issue *Issue) (*Registry, error) {
	r := NewRegistry()
	if err := NewFiles(root).Register(r); err != nil {
		return nil, err
	}
	if err := issue.Register(r); err != nil {
		return nil, err
	}
	return r, nil
}
