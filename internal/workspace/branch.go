package workspace

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

// DefaultBranchTemplate names fix branches when none is configured.
const DefaultBranchTemplate = "thorfix/{{.Number}}-{{.Name}}"

// maxNameLen bounds the model-chosen part of a branch name.
const maxNameLen = 50

// TemplateData provides data for branch name templating.
type TemplateData struct {
	Number int
	Name   string
}

// RenderBranchName renders a branch name for an issue from a template.
func RenderBranchName(tmpl string, number int, name string) (string, error) {
	if tmpl == "" {
		tmpl = DefaultBranchTemplate
	}
	t, err := template.New("branch").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parsing branch template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, TemplateData{Number: number, Name: name}); err != nil {
		return "", fmt.Errorf("executing branch template: %w", err)
	}
	return buf.String(), nil
}

// BranchPrefix returns the part of every branch name for issue number that
// precedes the model-chosen name, e.g. "thorfix/7-".
func BranchPrefix(tmpl string, number int) (string, error) {
	if tmpl == "" {
		tmpl = DefaultBranchTemplate
	}
	const marker = "\x00NAME\x00"
	full, err := RenderBranchName(tmpl, number, marker)
	if err != nil {
		return "", err
	}
	prefix, _, ok := strings.Cut(full, marker)
	if !ok {
		return "", fmt.Errorf("branch template %q does not contain {{.Name}}", tmpl)
	}
	return prefix, nil
}

var invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SanitizeName turns a free-form suggestion into a branch name component:
// whitespace and other characters outside [A-Za-z0-9_-] become dashes.
func SanitizeName(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.Trim(name, "`\"'")
	name = invalidNameChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if len(name) > maxNameLen {
		name = strings.TrimRight(name[:maxNameLen], "-")
	}
	if name == "" {
		return "fix"
	}
	return name
}
