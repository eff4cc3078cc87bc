package patch

import (
	"regexp"
	"strconv"
)

// hunkHeader matches "@@ -a,b +c,d @@", optionally followed by section text.
var hunkHeader = regexp.MustCompile(`^@@ -(\d+),(\d+) \+(\d+),(\d+) @@`)

// ParseHunks parses unified-diff hunk text into hunks in input order.
// Lines before the first header (such as "---"/"+++" file headers) and empty
// lines are ignored. A line inside a hunk must start with ' ', '+' or '-'.
// Text without any header parses to no hunks.
func ParseHunks(text string) ([]Hunk, error) {
	var (
		hunks []Hunk
		cur   *Hunk
	)
	for i, line := range SplitLines(text) {
		if m := hunkHeader.FindStringSubmatch(line); m != nil {
			h, err := headerToHunk(m)
			if err != nil {
				return nil, newError(KindFormat, "malformed hunk header on patch line %d: %q", i+1, line)
			}
			hunks = append(hunks, h)
			cur = &hunks[len(hunks)-1]
			continue
		}
		if len(line) > 0 && line[0] == '@' && len(line) > 1 && line[1] == '@' {
			return nil, newError(KindFormat, "malformed hunk header on patch line %d: %q", i+1, line)
		}
		if cur == nil || line == "" {
			continue
		}
		var role Role
		switch line[0] {
		case ' ':
			role = RoleContext
		case '+':
			role = RoleAdd
		case '-':
			role = RoleRemove
		default:
			return nil, newError(KindFormat, "invalid patch line %d: %q", i+1, line)
		}
		cur.Lines = append(cur.Lines, ChangeLine{Content: line[1:], Role: role})
	}
	return hunks, nil
}

func headerToHunk(m []string) (Hunk, error) {
	var nums [4]int
	for i := range nums {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Hunk{}, err
		}
		nums[i] = n
	}
	return Hunk{
		OriginalStart:  max(nums[0]-1, 0),
		OriginalLength: nums[1],
		NewStart:       max(nums[2]-1, 0),
		NewLength:      nums[3],
	}, nil
}
