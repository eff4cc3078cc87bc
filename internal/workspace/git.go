package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Author identifies the committer of agent commits.
type Author struct {
	Name  string
	Email string
}

// Repo is a local clone the agent works in.
type Repo struct {
	Dir    string
	Author Author
}

// CloneURL builds an HTTPS clone URL for owner/repo, embedding token when
// set. host defaults to github.com.
func CloneURL(host, owner, repo, token string) string {
	if host == "" {
		host = "github.com"
	}
	u := url.URL{
		Scheme: "https",
		Host:   host,
		Path:   "/" + owner + "/" + repo + ".git",
	}
	if token != "" {
		u.User = url.UserPassword("x-access-token", token)
	}
	return u.String()
}

// Clone clones remote into dir, replacing anything already there.
func Clone(ctx context.Context, remote, dir string, author Author) (*Repo, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clearing %s: %w", dir, err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace root: %w", err)
	}
	if _, err := runGit(ctx, "", "clone", "--quiet", remote, dir); err != nil {
		return nil, fmt.Errorf("cloning repository: %w", redact(err, remote))
	}
	slog.Debug("repository cloned", "dir", dir)
	return &Repo{Dir: dir, Author: author}, nil
}

// Open wraps an existing clone.
func Open(dir string, author Author) *Repo {
	return &Repo{Dir: dir, Author: author}
}

// RemoteBranches lists branches on origin whose name starts with prefix.
func (r *Repo) RemoteBranches(ctx context.Context, prefix string) ([]string, error) {
	out, err := runGit(ctx, r.Dir, "ls-remote", "--heads", "origin")
	if err != nil {
		return nil, fmt.Errorf("listing remote branches: %w", err)
	}
	var branches []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		name := strings.TrimPrefix(fields[1], "refs/heads/")
		if strings.HasPrefix(name, prefix) {
			branches = append(branches, name)
		}
	}
	return branches, nil
}

// CheckoutRemote checks out an existing origin branch as a tracking branch.
func (r *Repo) CheckoutRemote(ctx context.Context, branch string) error {
	if _, err := runGit(ctx, r.Dir, "checkout", "-B", branch, "--track", "origin/"+branch); err != nil {
		return fmt.Errorf("checking out %s: %w", branch, err)
	}
	return nil
}

// CreateBranch creates branch from origin/base and checks it out.
func (r *Repo) CreateBranch(ctx context.Context, branch, base string) error {
	if _, err := runGit(ctx, r.Dir, "checkout", "-B", branch, "origin/"+base); err != nil {
		return fmt.Errorf("creating branch %s from %s: %w", branch, base, err)
	}
	return nil
}

// CurrentBranch returns the checked out branch name.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := runGit(ctx, r.Dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("getting current branch: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ChangedFiles lists paths with uncommitted changes, including untracked files.
func (r *Repo) ChangedFiles(ctx context.Context) ([]string, error) {
	out, err := runGit(ctx, r.Dir, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, fmt.Errorf("reading status: %w", err)
	}
	return parsePorcelain(out), nil
}

// Diff stages everything and returns the staged diff against HEAD.
func (r *Repo) Diff(ctx context.Context) (string, error) {
	if _, err := runGit(ctx, r.Dir, "add", "-A"); err != nil {
		return "", fmt.Errorf("staging changes: %w", err)
	}
	out, err := runGit(ctx, r.Dir, "diff", "--cached")
	if err != nil {
		return "", fmt.Errorf("diffing changes: %w", err)
	}
	return out, nil
}

// Commit stages all changes and commits them. It reports false when there
// was nothing to commit.
func (r *Repo) Commit(ctx context.Context, message string) (bool, error) {
	changed, err := r.ChangedFiles(ctx)
	if err != nil {
		return false, err
	}
	if len(changed) == 0 {
		return false, nil
	}
	if _, err := runGit(ctx, r.Dir, "add", "-A"); err != nil {
		return false, fmt.Errorf("staging changes: %w", err)
	}

	args := []string{}
	if r.Author.Name != "" {
		args = append(args, "-c", "user.name="+r.Author.Name)
	}
	if r.Author.Email != "" {
		args = append(args, "-c", "user.email="+r.Author.Email)
	}
	args = append(args, "commit", "--quiet", "-m", message)
	if _, err := runGit(ctx, r.Dir, args...); err != nil {
		return false, fmt.Errorf("committing: %w", err)
	}
	return true, nil
}

// Push pushes branch to origin and sets upstream.
func (r *Repo) Push(ctx context.Context, branch string) error {
	if _, err := runGit(ctx, r.Dir, "push", "--quiet", "-u", "origin", branch); err != nil {
		if remote, rerr := runGit(ctx, r.Dir, "remote", "get-url", "origin"); rerr == nil {
			err = redact(err, strings.TrimSpace(remote))
		}
		return fmt.Errorf("pushing %s: %w", branch, err)
	}
	return nil
}

// CommitsAhead counts commits on HEAD that are not on origin/base.
func (r *Repo) CommitsAhead(ctx context.Context, base string) (int, error) {
	out, err := runGit(ctx, r.Dir, "rev-list", "--count", "origin/"+base+"..HEAD")
	if err != nil {
		return 0, fmt.Errorf("counting commits ahead of %s: %w", base, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("parsing rev-list output %q: %w", out, err)
	}
	return n, nil
}

// parsePorcelain extracts paths from `git status --porcelain` output.
// Renames report the destination path.
func parsePorcelain(out string) []string {
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		p := line[3:]
		if _, to, ok := strings.Cut(p, " -> "); ok {
			p = to
		}
		paths = append(paths, strings.Trim(p, `"`))
	}
	return paths
}

// runGit runs git in dir and returns stdout. Failures include stderr.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", subcommand(args), err, scrubURLs(strings.TrimSpace(stderr.String())))
	}
	return stdout.String(), nil
}

// subcommand returns the git subcommand in args, skipping global options
// such as "-c user.name=x".
func subcommand(args []string) string {
	for i := 0; i < len(args); i++ {
		switch a := args[i]; {
		case a == "-c" || a == "-C":
			i++
		case strings.HasPrefix(a, "-"):
		default:
			return a
		}
	}
	return "(no subcommand)"
}

var urlUserinfo = regexp.MustCompile(`(?i)\b([a-z][a-z0-9+.-]*://)[^/\s@]+@`)

// scrubURLs masks the userinfo part of any URL in s.
func scrubURLs(s string) string {
	return urlUserinfo.ReplaceAllString(s, "${1}***@")
}

// redact hides credentials from a clone URL that git may echo in errors.
func redact(err error, remote string) error {
	u, perr := url.Parse(remote)
	if perr != nil || u.User == nil {
		return err
	}
	pw, ok := u.User.Password()
	if !ok || pw == "" || !strings.Contains(err.Error(), pw) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), pw, "***"))
}
