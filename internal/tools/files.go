package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alanmeadows/thorfix/internal/patch"
)

// maxListedFiles bounds list_files output on large repositories.
const maxListedFiles = 5000

// skipDirs are never listed.
var skipDirs = map[string]bool{".git": true, "node_modules": true, "vendor": true}

// Files exposes the working tree under Root to the model.
type Files struct {
	Root    string
	patches *patch.Service
}

// NewFiles returns file tools confined to root.
func NewFiles(root string) *Files {
	return &Files{Root: root, patches: patch.NewService(root)}
}

type pathArgs struct {
	Path string `json:"path"`
}

type writeArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type modifyArgs struct {
	Path   string `json:"path"`
	Blocks string `json:"blocks"`
}

type patchArgs struct {
	Path  string `json:"path"`
	Patch string `json:"patch"`
}

// Register adds read_file, list_files, write_file, modify_file and
// apply_patch to r.
func (f *Files) Register(r *Registry) error {
	nonEmpty := func(desc string) map[string]any {
		s := str(desc)
		s["minLength"] = 1
		return s
	}
	defs := []*Tool{
		{
			Name:        "read_file",
			Description: "Reads a file from the repository",
			Schema:      object([]string{"path"}, map[string]any{"path": nonEmpty("Path to the file")}),
			Handler:     f.read,
		},
		{
			Name:        "list_files",
			Description: "Lists all files in the repository",
			Schema:      object(nil, map[string]any{}),
			Handler:     f.list,
		},
		{
			Name:        "write_file",
			Description: "Creates or overwrites a file with the given content",
			Schema: object([]string{"path", "content"}, map[string]any{
				"path":    nonEmpty("Path to the file"),
				"content": str("Full new content of the file"),
			}),
			Handler: f.write,
		},
		{
			Name:        "modify_file",
			Description: "Modifies a file with one or more SEARCH/REPLACE blocks",
			Schema: object([]string{"path", "blocks"}, map[string]any{
				"path":   nonEmpty("Path to the file"),
				"blocks": nonEmpty("SEARCH/REPLACE blocks to apply in order"),
			}),
			Handler: f.modify,
		},
		{
			Name:        "apply_patch",
			Description: "Applies unified diff hunks to a file",
			Schema: object([]string{"path", "patch"}, map[string]any{
				"path":  nonEmpty("Path to the file"),
				"patch": nonEmpty("Unified diff hunks starting with @@ headers"),
			}),
			Handler: f.applyPatch,
		},
	}
	for _, t := range defs {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func (f *Files) read(_ context.Context, raw json.RawMessage) (string, error) {
	var args pathArgs
	if err := decode(raw, &args); err != nil {
		return "", err
	}
	abs, err := f.resolve(args.Path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: file not found", args.Path)
		}
		return "", fmt.Errorf("reading %s: %w", args.Path, err)
	}
	return string(data), nil
}

func (f *Files) list(ctx context.Context, _ json.RawMessage) (string, error) {
	root, err := f.patches.Resolve(".")
	if err != nil {
		return "", err
	}
	var files []string
	truncated := false
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if len(files) >= maxListedFiles {
			truncated = true
			return filepath.SkipAll
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("listing files: %w", err)
	}
	sort.Strings(files)
	out := strings.Join(files, "\n")
	if truncated {
		out += fmt.Sprintf("\n... (stopped after %d files)", maxListedFiles)
	}
	return out, nil
}

func (f *Files) write(_ context.Context, raw json.RawMessage) (string, error) {
	var args writeArgs
	if err := decode(raw, &args); err != nil {
		return "", err
	}
	abs, err := f.resolve(args.Path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return "", fmt.Errorf("%s is a directory", args.Path)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("creating directory for %s: %w", args.Path, err)
	}
	if err := os.WriteFile(abs, []byte(args.Content), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", args.Path, err)
	}
	return fmt.Sprintf("%s written (%d bytes).", args.Path, len(args.Content)), nil
}

func (f *Files) modify(ctx context.Context, raw json.RawMessage) (string, error) {
	var args modifyArgs
	if err := decode(raw, &args); err != nil {
		return "", err
	}
	return f.apply(ctx, args.Path, args.Blocks, patch.FormatSearchReplace)
}

func (f *Files) applyPatch(ctx context.Context, raw json.RawMessage) (string, error) {
	var args patchArgs
	if err := decode(raw, &args); err != nil {
		return "", err
	}
	return f.apply(ctx, args.Path, args.Patch, patch.FormatUnified)
}

func (f *Files) apply(ctx context.Context, path, diff string, format patch.Format) (string, error) {
	if _, err := f.resolve(path); err != nil {
		return "", fmt.Errorf("error while modifying %s: %w", path, err)
	}
	res, err := f.patches.Apply(ctx, path, diff, format)
	if err != nil {
		return "", fmt.Errorf("error while modifying %s: %w", path, err)
	}
	return res.Message(), nil
}

// resolve maps path into the root like patch.Service.Resolve, and also
// rejects anything inside a .git directory, directly or through a symlink.
// The clone's .git/config holds the push credentials and .git/hooks run on
// commit.
func (f *Files) resolve(path string) (string, error) {
	abs, err := f.patches.Resolve(path)
	if err != nil {
		return "", err
	}
	root, err := f.patches.Resolve(".")
	if err != nil {
		return "", err
	}
	if err := checkInside(root, abs, path); err != nil {
		return "", err
	}

	// Check where the nearest existing ancestor really points.
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return abs, nil
	}
	for p := abs; ; {
		if real, err := filepath.EvalSymlinks(p); err == nil {
			if err := checkInside(realRoot, real, path); err != nil {
				return "", err
			}
			break
		}
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
	return abs, nil
}

// checkInside reports an error when target is outside root or has a .git
// path element below it.
func checkInside(root, target, path string) error {
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%s: path is outside the repository", path)
	}
	for _, elem := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.EqualFold(elem, ".git") {
			return fmt.Errorf("%s: access to .git is not allowed", path)
		}
	}
	return nil
}
