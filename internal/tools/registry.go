// Package tools implements the actions the model can take while working on
// an issue. Every call is validated against the tool's JSON schema before it
// runs, and every failure is reported back to the model as a Result rather
// than a Go error.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// maxResponseBytes caps what a single tool call hands back to the model.
const maxResponseBytes = 64 * 1024

// Result is the outcome of one tool call as reported to the model.
type Result struct {
	Response string
	IsError  bool
}

// Errorf builds an error Result.
func Errorf(format string, args ...any) Result {
	return Result{Response: fmt.Sprintf(format, args...), IsError: true}
}

// Handler runs a tool with arguments that already passed schema validation.
// A returned error becomes an error Result.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Tool describes one callable action.
type Tool struct {
	Name        string
	Description string
	// Schema is a JSON schema for the arguments object.
	Schema  map[string]any
	Handler Handler

	compiled *gojsonschema.Schema
}

// SchemaJSON renders the argument schema for inclusion in a prompt.
func (t *Tool) SchemaJSON() string {
	data, err := json.Marshal(t.Schema)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Registry holds tools by name, in registration order.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register compiles the tool's schema and adds it. Names must be unique.
func (r *Registry) Register(t *Tool) error {
	if t.Name == "" || t.Handler == nil {
		return fmt.Errorf("tool %q: name and handler are required", t.Name)
	}
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	schema := t.Schema
	if schema == nil {
		schema = map[string]any{"type": "object"}
		t.Schema = schema
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return fmt.Errorf("compiling schema for tool %q: %w", t.Name, err)
	}
	t.compiled = compiled
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []*Tool {
	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Call validates args against the named tool's schema and runs it.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) Result {
	t, ok := r.tools[name]
	if !ok {
		return Errorf("unknown tool %q (available: %s)", name, strings.Join(r.order, ", "))
	}

	if len(strings.TrimSpace(string(args))) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}
	if err := validate(t.compiled, args); err != nil {
		slog.Debug("tool arguments rejected", "tool", name, "error", err)
		return Errorf("invalid arguments for %s: %v", name, err)
	}

	if err := ctx.Err(); err != nil {
		return Errorf("%s: %v", name, err)
	}

	slog.Info("running tool", "tool", name)
	out, err := t.Handler(ctx, args)
	if err != nil {
		slog.Warn("tool failed", "tool", name, "error", err)
		return Errorf("%s", err.Error())
	}
	return Result{Response: clip(out)}
}

func validate(schema *gojsonschema.Schema, args json.RawMessage) error {
	res, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	if res.Valid() {
		return nil
	}
	issues := make([]string, 0, len(res.Errors()))
	for _, desc := range res.Errors() {
		issues = append(issues, desc.String())
	}
	return fmt.Errorf("%s", strings.Join(issues, "; "))
}

func clip(s string) string {
	if len(s) <= maxResponseBytes {
		return s
	}
	return s[:maxResponseBytes] + fmt.Sprintf("\n... (truncated, %d bytes total)", len(s))
}

// decode unmarshals validated arguments into v.
func decode(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("decoding arguments: %w", err)
	}
	return nil
}

// object builds a closed object schema.
func object(required []string, props map[string]any) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		req := make([]any, len(required))
		for i, r := range required {
			req[i] = r
		}
		schema["required"] = req
	}
	return schema
}

func str(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}
