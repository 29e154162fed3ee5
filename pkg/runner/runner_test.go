package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccp-p/ai-video-notes/pkg/models"
)

func shell(script string) Command {
	return Command{Name: "sh", Args: []string{"-c", script}}
}

func TestRunSuccess(t *testing.T) {
	r := NewExecRunner()
	err := r.Run(context.Background(), shell("echo hello; echo world 1>&2"))
	assert.NoError(t, err)
}

func TestRunNonZeroExit(t *testing.T) {
	r := NewExecRunner()
	err := r.Run(context.Background(), shell("echo to-stdout; echo to-stderr 1>&2; exit 3"))
	require.Error(t, err)

	var toolErr *models.ExternalToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, 3, toolErr.ExitCode)
	assert.Contains(t, toolErr.Command, "sh -c")
	// stderr 合并进输出
	assert.Contains(t, toolErr.Output, "to-stdout")
	assert.Contains(t, toolErr.Output, "to-stderr")
}

func TestRunKeepsOutputTail(t *testing.T) {
	r := NewExecRunner()
	err := r.Run(context.Background(), shell("for i in $(seq 1 50); do echo line$i; done; exit 1"))

	var toolErr *models.ExternalToolError
	require.True(t, errors.As(err, &toolErr))
	lines := strings.Split(toolErr.Output, "\n")
	assert.Len(t, lines, tailLines)
	assert.Equal(t, "line31", lines[0])
	assert.Equal(t, "line50", lines[len(lines)-1])
}

func TestRunCommandNotFound(t *testing.T) {
	r := NewExecRunner()
	err := r.Run(context.Background(), Command{Name: "definitely-not-a-real-binary-xyz"})

	var toolErr *models.ExternalToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, -1, toolErr.ExitCode)
	assert.NotNil(t, toolErr.Unwrap())
}

func TestRunDir(t *testing.T) {
	dir := t.TempDir()
	r := NewExecRunner()
	err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", fmt.Sprintf("test \"$(pwd -P)\" = \"$(cd %s && pwd -P)\"", dir)}, Dir: dir})
	assert.NoError(t, err)
}

func TestRunContextCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	r := NewExecRunner()
	start := time.Now()
	err := r.Run(ctx, shell("sleep 5"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)

	var toolErr *models.ExternalToolError
	require.True(t, errors.As(err, &toolErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(2)
	tb.add("a")
	tb.add("b")
	tb.add("c")
	assert.Equal(t, "b\nc", tb.String())
}
