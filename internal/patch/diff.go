package patch

import "fmt"

// OpKind tags a ChangeOp.
type OpKind int

const (
	OpEqual OpKind = iota
	OpInserted
	OpDeleted
)

func (k OpKind) String() string {
	switch k {
	case OpEqual:
		return "equal"
	case OpInserted:
		return "inserted"
	case OpDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// ChangeOp is one line of an aligned diff between an original and a modified
// sequence.
type ChangeOp struct {
	Kind OpKind
	Line string
}

// Equal, Inserted and Deleted construct ChangeOps.
func Equal(line string) ChangeOp    { return ChangeOp{Kind: OpEqual, Line: line} }
func Inserted(line string) ChangeOp { return ChangeOp{Kind: OpInserted, Line: line} }
func Deleted(line string) ChangeOp  { return ChangeOp{Kind: OpDeleted, Line: line} }

// Diff aligns a against b using a longest-common-subsequence table and
// returns the ops in forward order. Lines compare by exact string equality.
//
// When the table ties, insertions are emitted ahead of deletions on the
// backward walk, which puts deletions first in the returned order.
// Time and space are O(len(a)*len(b)).
func Diff(a, b []string) []ChangeOp {
	m := lcsTable(a, b)

	ops := make([]ChangeOp, 0, len(a)+len(b))
	i, j := len(a), len(b)
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && a[i-1] == b[j-1]:
			ops = append(ops, Equal(a[i-1]))
			i--
			j--
		case j > 0 && (i == 0 || m[i][j-1] >= m[i-1][j]):
			ops = append(ops, Inserted(b[j-1]))
			j--
		default:
			ops = append(ops, Deleted(a[i-1]))
			i--
		}
	}

	// Built back to front.
	for l, r := 0, len(ops)-1; l < r; l, r = l+1, r-1 {
		ops[l], ops[r] = ops[r], ops[l]
	}
	return ops
}

// lcsTable returns m where m[i][j] is the LCS length of a[:i] and b[:j].
func lcsTable(a, b []string) [][]int {
	m := make([][]int, len(a)+1)
	for i := range m {
		m[i] = make([]int, len(b)+1)
	}
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				m[i][j] = m[i-1][j-1] + 1
			} else {
				m[i][j] = max(m[i-1][j], m[i][j-1])
			}
		}
	}
	return m
}

// Original reconstructs the original sequence from ops.
func Original(ops []ChangeOp) []string {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		if op.Kind != OpInserted {
			out = append(out, op.Line)
		}
	}
	return out
}

// Modified reconstructs the modified sequence from ops.
func Modified(ops []ChangeOp) []string {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		if op.Kind != OpDeleted {
			out = append(out, op.Line)
		}
	}
	return out
}
