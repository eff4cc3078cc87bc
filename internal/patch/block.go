package patch

import "strings"

// Block markers. Marker lines are matched after trimming surrounding whitespace.
const (
	SearchMarker  = "<<<<<<< SEARCH"
	DividerMarker = "======="
	ReplaceMarker = ">>>>>>> REPLACE"
)

// maxQuoted bounds how much search text an error message repeats.
const maxQuoted = 200

// Block is a literal find-and-replace edit. Only the first occurrence of
// Search is replaced.
type Block struct {
	Search  string
	Replace string
}

// ParseBlocks extracts SEARCH/REPLACE blocks from text in the order they
// appear. Text outside blocks is ignored.
func ParseBlocks(text string) ([]Block, error) {
	lines := SplitLines(text)
	var blocks []Block

	for i := 0; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != SearchMarker {
			continue
		}
		start := i + 1

		i = start
		for i < len(lines) && strings.TrimSpace(lines[i]) != DividerMarker {
			i++
		}
		if i >= len(lines) {
			return nil, newError(KindFormat, "invalid diff format: missing divider marker %q for block %d", DividerMarker, len(blocks)+1)
		}
		search := JoinLines(lines[start:i])

		start = i + 1
		i = start
		for i < len(lines) && strings.TrimSpace(lines[i]) != ReplaceMarker {
			i++
		}
		if i >= len(lines) {
			return nil, newError(KindFormat, "invalid diff format: missing replace marker %q for block %d", ReplaceMarker, len(blocks)+1)
		}
		replace := JoinLines(lines[start:i])

		if search == "" {
			return nil, newError(KindApply, "search content of block %d cannot be empty", len(blocks)+1)
		}
		blocks = append(blocks, Block{Search: search, Replace: replace})
	}

	if len(blocks) == 0 {
		return nil, newError(KindFormat, "no SEARCH/REPLACE blocks found: expected a line %q", SearchMarker)
	}
	return blocks, nil
}

// ApplyBlocks applies blocks in order, each against the content produced by
// the ones before it. The first block whose search text is absent aborts the
// whole call.
func ApplyBlocks(content string, blocks []Block) (string, error) {
	for n, b := range blocks {
		if b.Search == "" {
			return "", newError(KindApply, "search content of block %d cannot be empty", n+1)
		}
		idx := strings.Index(content, b.Search)
		if idx < 0 {
			return "", newError(KindApply, "search content of block %d not found in file: %s", n+1, quote(b.Search))
		}
		content = content[:idx] + b.Replace + content[idx+len(b.Search):]
	}
	return content, nil
}

// ApplySearchReplace parses block text and applies it to content.
func ApplySearchReplace(content, blockText string) (string, error) {
	blocks, err := ParseBlocks(blockText)
	if err != nil {
		return "", err
	}
	return ApplyBlocks(NormalizeNewlines(content), blocks)
}

func quote(s string) string {
	if len(s) > maxQuoted {
		s = s[:maxQuoted] + "..."
	}
	return "\n" + s
}
