package patch

import (
	"fmt"
	"strings"
)

// ContextLines is the number of unchanged lines kept around each change.
const ContextLines = 3

// Role tags a ChangeLine within a hunk.
type Role int

const (
	RoleContext Role = iota
	RoleAdd
	RoleRemove
)

// Prefix returns the unified-diff prefix character for r.
func (r Role) Prefix() byte {
	switch r {
	case RoleAdd:
		return '+'
	case RoleRemove:
		return '-'
	default:
		return ' '
	}
}

func (r Role) String() string {
	switch r {
	case RoleContext:
		return "context"
	case RoleAdd:
		return "add"
	case RoleRemove:
		return "remove"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ChangeLine is a single line of a hunk.
type ChangeLine struct {
	Content string
	Role    Role
}

// Hunk is a contiguous, context-bounded region of change. Start fields are
// 0-based line indexes; they are rendered 1-based in headers.
type Hunk struct {
	OriginalStart  int
	OriginalLength int
	NewStart       int
	NewLength      int
	Lines          []ChangeLine
}

// Header renders the hunk's "@@ -a,b +c,d @@" line.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OriginalStart+1, h.OriginalLength, h.NewStart+1, h.NewLength)
}

func (h *Hunk) computeLengths() {
	h.OriginalLength, h.NewLength = 0, 0
	for _, l := range h.Lines {
		if l.Role != RoleAdd {
			h.OriginalLength++
		}
		if l.Role != RoleRemove {
			h.NewLength++
		}
	}
}

func roleOf(k OpKind) Role {
	switch k {
	case OpInserted:
		return RoleAdd
	case OpDeleted:
		return RoleRemove
	default:
		return RoleContext
	}
}

// BuildHunks groups ops into hunks with up to ContextLines of unchanged
// context on each side of a run of changes. A hunk closes once more than
// ContextLines equal lines follow its last change. Leading context never
// reaches back into the previous hunk, so hunks never overlap.
func BuildHunks(ops []ChangeOp) []Hunk {
	// origAt[i] and newAt[i] are the line indexes op i sits at on each side.
	origAt := make([]int, len(ops))
	newAt := make([]int, len(ops))
	o, n := 0, 0
	for i, op := range ops {
		origAt[i], newAt[i] = o, n
		if op.Kind != OpInserted {
			o++
		}
		if op.Kind != OpDeleted {
			n++
		}
	}

	var (
		hunks      []Hunk
		cur        *Hunk
		lastChange int
		prevEnd    int
	)
	closeHunk := func() {
		cur.computeLengths()
		hunks = append(hunks, *cur)
		cur = nil
	}

	for i, op := range ops {
		if op.Kind != OpEqual {
			if cur == nil {
				start := max(i-ContextLines, prevEnd)
				cur = &Hunk{OriginalStart: origAt[start], NewStart: newAt[start]}
				for j := start; j < i; j++ {
					cur.Lines = append(cur.Lines, ChangeLine{Content: ops[j].Line, Role: RoleContext})
				}
			}
			cur.Lines = append(cur.Lines, ChangeLine{Content: op.Line, Role: roleOf(op.Kind)})
			lastChange = i
			continue
		}
		if cur == nil {
			continue
		}
		if i-lastChange <= ContextLines {
			cur.Lines = append(cur.Lines, ChangeLine{Content: op.Line, Role: RoleContext})
			continue
		}
		closeHunk()
		prevEnd = i
	}
	if cur != nil {
		closeHunk()
	}
	return hunks
}

// FormatHunks serialises hunks as unified-diff text. Every line, including
// the last, ends in Newline.
func FormatHunks(hunks []Hunk) string {
	var sb strings.Builder
	for _, h := range hunks {
		sb.WriteString(h.Header())
		sb.WriteString(Newline)
		for _, l := range h.Lines {
			sb.WriteByte(l.Role.Prefix())
			sb.WriteString(l.Content)
			sb.WriteString(Newline)
		}
	}
	return sb.String()
}

// CreatePatch returns the unified hunks turning original into modified, or
// the empty string when they are identical.
func CreatePatch(original, modified string) string {
	return FormatHunks(BuildHunks(Diff(SplitLines(original), SplitLines(modified))))
}
