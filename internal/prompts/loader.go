// Package prompts holds the text templates sent to the model and posted to
// issues. Built-in templates are embedded; a file with the same name under
// <user config dir>/thorfix/prompts replaces the built-in one.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
)

//go:embed *.md
var builtinFS embed.FS

var funcs = template.FuncMap{
	"trim": strings.TrimSpace,
}

// Load parses the named template, preferring a user override.
func Load(name string) (*template.Template, error) {
	text, origin, err := source(name)
	if err != nil {
		return nil, fmt.Errorf("loading prompt template %s: %w", name, err)
	}
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template %s (%s): %w", name, origin, err)
	}
	return tmpl, nil
}

func source(name string) (text, origin string, err error) {
	if dir, err := OverrideDir(); err == nil {
		path := filepath.Join(dir, name)
		if data, err := os.ReadFile(path); err == nil {
			return string(data), path, nil
		}
	}
	data, err := fs.ReadFile(builtinFS, name)
	if err != nil {
		return "", "", err
	}
	return string(data), "built-in", nil
}

// OverrideDir is where user replacements for built-in templates live.
func OverrideDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "thorfix", "prompts"), nil
}

// Execute renders the named template with data.
func Execute(name string, data any) (string, error) {
	tmpl, err := Load(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing prompt template %s: %w", name, err)
	}
	return buf.String(), nil
}

// List returns the sorted names of the built-in templates.
func List() ([]string, error) {
	names, err := fs.Glob(builtinFS, "*.md")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
