package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Format selects which diff grammar a caller is supplying.
type Format int

const (
	// FormatSearchReplace is the SEARCH/=======/REPLACE block grammar.
	FormatSearchReplace Format = iota + 1
	// FormatUnified is the "@@ -a,b +c,d @@" hunk grammar.
	FormatUnified
)

func (f Format) String() string {
	switch f {
	case FormatSearchReplace:
		return "search-replace"
	case FormatUnified:
		return "unified"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat maps a format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "search-replace", "search_replace", "blocks", "block":
		return FormatSearchReplace, nil
	case "unified", "hunks", "diff":
		return FormatUnified, nil
	default:
		return 0, newError(KindValidation, "unknown patch format %q (want search-replace or unified)", name)
	}
}

// Result describes a successful Apply.
type Result struct {
	Path         string
	Format       Format
	Edits        int
	BytesWritten int
}

// Message is the confirmation handed back to the caller.
func (r *Result) Message() string {
	return fmt.Sprintf("%s modified successfully (%d %s applied, %d bytes written).", r.Path, r.Edits, r.unit(), r.BytesWritten)
}

func (r *Result) unit() string {
	switch {
	case r.Format == FormatUnified && r.Edits == 1:
		return "hunk"
	case r.Format == FormatUnified:
		return "hunks"
	case r.Edits == 1:
		return "block"
	default:
		return "blocks"
	}
}

// Service applies patches to files beneath Root. It holds no state between
// calls and does not serialise concurrent calls on the same file.
type Service struct {
	// Root confines every path. Relative paths are resolved against it.
	Root string
}

// NewService returns a Service rooted at root.
func NewService(root string) *Service {
	return &Service{Root: root}
}

// Apply reads the file at path, applies diffText in the given format, and
// writes the result back. On any error the file is not modified.
func (s *Service) Apply(ctx context.Context, path, diffText string, format Format) (*Result, error) {
	p, err := s.prepare(path, diffText, format)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(p.abs, []byte(p.updated), p.perm); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}

	slog.Debug("patch applied", "path", path, "format", format, "edits", p.edits, "bytes", len(p.updated))
	return &Result{Path: path, Format: format, Edits: p.edits, BytesWritten: len(p.updated)}, nil
}

// Preview returns what Apply would write to path, without writing it.
func (s *Service) Preview(path, diffText string, format Format) (string, error) {
	p, err := s.prepare(path, diffText, format)
	if err != nil {
		return "", err
	}
	return p.updated, nil
}

type prepared struct {
	abs     string
	perm    fs.FileMode
	updated string
	edits   int
}

// prepare validates the request and computes the new content in memory.
func (s *Service) prepare(path, diffText string, format Format) (*prepared, error) {
	if strings.TrimSpace(path) == "" {
		return nil, newError(KindValidation, "path cannot be empty")
	}
	if strings.TrimSpace(diffText) == "" {
		return nil, newError(KindValidation, "diff content cannot be empty")
	}
	if format != FormatSearchReplace && format != FormatUnified {
		return nil, newError(KindValidation, "unsupported patch format %s", format)
	}

	abs, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Kind: KindNotFound, Message: "file not found", Path: path}
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, &Error{Kind: KindValidation, Message: "path is a directory", Path: path}
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	content := NormalizeNewlines(string(data))
	p := &prepared{abs: abs, perm: info.Mode().Perm()}

	switch format {
	case FormatSearchReplace:
		blocks, err := ParseBlocks(diffText)
		if err != nil {
			return nil, withPath(err, path)
		}
		if p.updated, err = ApplyBlocks(content, blocks); err != nil {
			return nil, withPath(err, path)
		}
		p.edits = len(blocks)
	case FormatUnified:
		hunks, err := parseNonEmpty(diffText)
		if err != nil {
			return nil, withPath(err, path)
		}
		lines, err := ApplyHunks(SplitLines(content), hunks)
		if err != nil {
			return nil, withPath(err, path)
		}
		p.updated = JoinLines(lines)
		p.edits = len(hunks)
	}
	return p, nil
}

// Diff returns unified hunks from the current content of path to modified.
func (s *Service) Diff(path, modified string) (string, error) {
	abs, err := s.Resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &Error{Kind: KindNotFound, Message: "file not found", Path: path}
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return CreatePatch(string(data), modified), nil
}

// Resolve maps path to an absolute path inside Root. Paths that escape Root
// are a validation error.
func (s *Service) Resolve(path string) (string, error) {
	root := s.Root
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root %s: %w", s.Root, err)
	}

	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &Error{Kind: KindValidation, Message: fmt.Sprintf("path is outside the allowed root directory (%s)", root), Path: path}
	}
	return target, nil
}

// writeFileAtomic writes data to a temp file next to path then renames it
// into place.
func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
