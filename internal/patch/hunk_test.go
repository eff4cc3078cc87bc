package patch

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbered(n int, prefix string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return out
}

func TestBuildHunks_SingleChange(t *testing.T) {
	a := numbered(10, "l")
	b := append([]string(nil), a...)
	b[4] = "L5"

	hunks := BuildHunks(Diff(a, b))
	require.Len(t, hunks, 1)

	h := hunks[0]
	assert.Equal(t, 1, h.OriginalStart)
	assert.Equal(t, 7, h.OriginalLength)
	assert.Equal(t, 1, h.NewStart)
	assert.Equal(t, 7, h.NewLength)
	assert.Equal(t, "@@ -2,7 +2,7 @@", h.Header())

	want := strings.Join([]string{
		"@@ -2,7 +2,7 @@",
		" l2",
		" l3",
		" l4",
		"-l5",
		"+L5",
		" l6",
		" l7",
		" l8",
		"",
	}, "\n")
	assert.Equal(t, want, FormatHunks(hunks))
}

func TestBuildHunks_ContextClampedAtStart(t *testing.T) {
	a := numbered(6, "l")
	b := append([]string{"new"}, a...)

	hunks := BuildHunks(Diff(a, b))
	require.Len(t, hunks, 1)
	assert.Equal(t, 0, hunks[0].OriginalStart)
	assert.Equal(t, []ChangeLine{
		{Content: "new", Role: RoleAdd},
		{Content: "l1", Role: RoleContext},
		{Content: "l2", Role: RoleContext},
		{Content: "l3", Role: RoleContext},
	}, hunks[0].Lines)
	assert.Equal(t, 3, hunks[0].OriginalLength)
	assert.Equal(t, 4, hunks[0].NewLength)
}

func TestBuildHunks_DistantChangesSplit(t *testing.T) {
	a := numbered(20, "l")
	b := append([]string(nil), a...)
	b[1] = "changed2"
	b[17] = "changed18"

	hunks := BuildHunks(Diff(a, b))
	require.Len(t, hunks, 2)
	assert.Equal(t, 0, hunks[0].OriginalStart)
	assert.Equal(t, 14, hunks[1].OriginalStart)
	assert.Equal(t, 14, hunks[1].NewStart)
}

func TestBuildHunks_SecondHunkTracksShiftedNewStart(t *testing.T) {
	a := numbered(20, "l")
	b := append([]string{"i1", "i2"}, a...)
	b[2+15] = "changed16"

	hunks := BuildHunks(Diff(a, b))
	require.Len(t, hunks, 2)
	assert.Equal(t, 12, hunks[1].OriginalStart)
	assert.Equal(t, 14, hunks[1].NewStart)
}

func TestBuildHunks_CloseChangesDoNotOverlap(t *testing.T) {
	// Four unchanged lines between changes: the first hunk keeps three of
	// them and the second hunk may not reach back into the first.
	a := numbered(12, "l")
	b := append([]string(nil), a...)
	b[2] = "x3"
	b[7] = "x8"

	hunks := BuildHunks(Diff(a, b))
	require.Len(t, hunks, 2)
	end := hunks[0].OriginalStart + hunks[0].OriginalLength
	assert.GreaterOrEqual(t, hunks[1].OriginalStart, end)

	got, err := ApplyHunks(a, hunks)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestBuildHunks_NoChangesNoHunks(t *testing.T) {
	a := []string{"same", "lines", ""}
	assert.Empty(t, BuildHunks(Diff(a, a)))
	assert.Equal(t, "", CreatePatch("x\ny\n", "x\ny\n"))
}

func TestRoundTrip_DiffBuildApply(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for n := 0; n < 300; n++ {
		a, b := randomLines(rng), randomLines(rng)
		hunks := BuildHunks(Diff(a, b))

		got, err := ApplyHunks(a, hunks)
		require.NoError(t, err, "case %d: a=%q b=%q", n, a, b)
		require.Equal(t, b, got, "case %d", n)
	}
}

func TestRoundTrip_FormatParseInverse(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 1))
	for n := 0; n < 300; n++ {
		hunks := BuildHunks(Diff(randomLines(rng), randomLines(rng)))

		parsed, err := ParseHunks(FormatHunks(hunks))
		require.NoError(t, err)
		if len(hunks) == 0 {
			require.Empty(t, parsed)
			continue
		}
		require.Equal(t, hunks, parsed, "case %d", n)
	}
}

func TestCreatePatch_AppliesToOriginal(t *testing.T) {
	original := "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n"
	modified := "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n"

	diff := CreatePatch(original, modified)
	require.NotEmpty(t, diff)

	got, err := ApplyUnified(original, diff)
	require.NoError(t, err)
	assert.Equal(t, modified, got)
}
