package cli

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"run", "validate", "trace", "selftest", "history"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommand_Help(t *testing.T) {
	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "tryblock")
	assert.Contains(t, out, "selftest")
	assert.Contains(t, out, "--format")
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, _, err := execute(t, "selftest", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestNewLogger_Level(t *testing.T) {
	quiet := newLogger(&RootOptions{}, nil)
	assert.False(t, quiet.Handler().Enabled(context.Background(), slog.LevelDebug))

	verbose := newLogger(&RootOptions{Verbose: true}, nil)
	assert.True(t, verbose.Handler().Enabled(context.Background(), slog.LevelDebug))
}
