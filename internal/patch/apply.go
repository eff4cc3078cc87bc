package patch

// ApplyHunks applies hunks, sorted by ascending OriginalStart, to target and
// returns the patched lines. Every context and removal line must match the
// target exactly at its position; on the first mismatch nothing is returned.
func ApplyHunks(target []string, hunks []Hunk) ([]string, error) {
	out := make([]string, 0, len(target))
	cursor := 0

	for n, h := range hunks {
		if h.OriginalStart < cursor {
			return nil, newError(KindApply, "hunk %d starts at line %d, inside the previous hunk (line %d)", n+1, h.OriginalStart+1, cursor)
		}
		if h.OriginalStart > len(target) {
			return nil, newError(KindApply, "hunk %d starts at line %d, past the end of the file (%d lines)", n+1, h.OriginalStart+1, len(target))
		}
		out = append(out, target[cursor:h.OriginalStart]...)
		cursor = h.OriginalStart

		for _, l := range h.Lines {
			switch l.Role {
			case RoleContext:
				if cursor >= len(target) || target[cursor] != l.Content {
					return nil, mismatchError("context", cursor+1)
				}
				out = append(out, l.Content)
				cursor++
			case RoleAdd:
				out = append(out, l.Content)
			case RoleRemove:
				if cursor >= len(target) || target[cursor] != l.Content {
					return nil, mismatchError("remove", cursor+1)
				}
				cursor++
			default:
				return nil, newError(KindFormat, "hunk %d has a line with unknown role %s", n+1, l.Role)
			}
		}
	}

	return append(out, target[cursor:]...), nil
}

// ApplyUnified parses hunk text and applies it to content.
func ApplyUnified(content, hunkText string) (string, error) {
	hunks, err := parseNonEmpty(hunkText)
	if err != nil {
		return "", err
	}
	lines, err := ApplyHunks(SplitLines(content), hunks)
	if err != nil {
		return "", err
	}
	return JoinLines(lines), nil
}

// parseNonEmpty is ParseHunks for callers that expect at least one hunk.
func parseNonEmpty(hunkText string) ([]Hunk, error) {
	hunks, err := ParseHunks(hunkText)
	if err != nil {
		return nil, err
	}
	if len(hunks) == 0 {
		return nil, newError(KindFormat, "no hunks found: expected a header like \"@@ -1,3 +1,4 @@\"")
	}
	return hunks, nil
}
