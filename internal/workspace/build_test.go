package workspace

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestBuilder_Disabled(t *testing.T) {
	var b *Builder
	assert.False(t, b.Enabled())

	res, err := (&Builder{}).Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.True(t, res.Passed)
}

func TestBuilder_Passes(t *testing.T) {
	requireShell(t)
	b := &Builder{Command: "echo compiling && echo done", Timeout: 10 * time.Second}

	res, err := b.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Output, "done")
}

func TestBuilder_Fails(t *testing.T) {
	requireShell(t)
	b := &Builder{Command: "echo 'main.go:3: undefined: foo' >&2; exit 2"}

	res, err := b.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, 2, res.ExitCode)
	assert.Contains(t, res.Output, "undefined: foo")
}

func TestBuilder_Timeout(t *testing.T) {
	requireShell(t)
	b := &Builder{Command: "sleep 5", Timeout: 100 * time.Millisecond}

	res, err := b.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.True(t, res.TimedOut)
	assert.Contains(t, res.Output, "timed out")
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("short", 10))
	got := tail(strings.Repeat("a", 20)+"END", 5)
	assert.Equal(t, "...\naaEND", got)
}
