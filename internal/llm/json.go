package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// maxJSONRetries is how many times the session is asked to restate its reply.
const maxJSONRetries = 2

// ErrInvalidJSON is returned when no JSON value can be recovered from a reply.
var ErrInvalidJSON = errors.New("invalid JSON response")

const jsonRetryPrompt = "Your previous response was not valid JSON. Reply again with ONLY the JSON object described earlier: no markdown fences, no commentary."

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ParseJSONResponse decodes a JSON value from model output. Replies wrapped
// in markdown fences or prose are unwrapped first. When client and sessionID
// are set, the session is asked to restate its reply up to maxJSONRetries times.
func ParseJSONResponse[T any](ctx context.Context, client Client, sessionID string, rawResponse string) (T, error) {
	if v, ok := decodeJSON[T](rawResponse); ok {
		return v, nil
	}

	if client != nil && sessionID != "" {
		for i := 0; i < maxJSONRetries; i++ {
			slog.Debug("model reply was not JSON, asking again", "attempt", i+1, "session", sessionID)

			resp, err := client.SendPrompt(ctx, sessionID, jsonRetryPrompt)
			if err != nil {
				if ctx.Err() != nil {
					var zero T
					return zero, ctx.Err()
				}
				continue
			}
			if v, ok := decodeJSON[T](resp.Content); ok {
				return v, nil
			}
		}
	}

	var zero T
	return zero, fmt.Errorf("%w after %d retries: %s", ErrInvalidJSON, maxJSONRetries, truncate(rawResponse, 200))
}

func decodeJSON[T any](raw string) (T, bool) {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v, true
	}
	var cleaned T
	if err := json.Unmarshal([]byte(stripMarkdownJSON(raw)), &cleaned); err == nil {
		return cleaned, true
	}
	var zero T
	return zero, false
}

// stripMarkdownJSON removes markdown code fences and leading/trailing non-JSON text.
func stripMarkdownJSON(s string) string {
	s = strings.TrimSpace(s)

	if m := fencePattern.FindStringSubmatch(s); len(m) > 1 {
		s = strings.TrimSpace(m[1])
	}

	// Widest span from the first opener to its matching last closer.
	startObj := strings.IndexByte(s, '{')
	startArr := strings.IndexByte(s, '[')

	start, closer := -1, byte('}')
	switch {
	case startObj >= 0 && (startArr < 0 || startObj < startArr):
		start = startObj
	case startArr >= 0:
		start, closer = startArr, ']'
	}
	if start < 0 {
		return s
	}

	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return s
	}
	return s[start : end+1]
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
