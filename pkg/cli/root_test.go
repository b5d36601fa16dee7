package cli

import (
	"bytes"
	"io"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	runErr := fn()

	w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String(), runErr
}

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "bazaar", root.Name)

	expected := []string{
		"publish", "search", "install", "review", "sync",
		"scan", "rescan", "provenance", "deprecate",
	}
	for _, name := range expected {
		require.Contains(t, root.Subcommands, name)
		assert.Equal(t, name, root.Subcommands[name].Name)
	}
	assert.Len(t, root.Subcommands, len(expected))
}

func TestRootUsageListsCommandsSorted(t *testing.T) {
	root := NewRootCommand()

	out, err := captureStdout(t, root.usage)
	require.NoError(t, err)

	var listed []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 1 {
			if _, ok := root.Subcommands[fields[0]]; ok {
				listed = append(listed, fields[0])
			}
		}
	}
	assert.Len(t, listed, len(root.Subcommands))
	assert.True(t, sort.StringsAreSorted(listed), "commands listed out of order: %v", listed)
}

func TestRootExecuteUnknownCommand(t *testing.T) {
	root := NewRootCommand()

	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"bazaar", "frobnicate"}

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frobnicate")
}

func TestRootHelpForSubcommand(t *testing.T) {
	root := NewRootCommand()

	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"bazaar", "help", "search"}

	out, err := captureStdout(t, root.Execute)
	require.NoError(t, err)
	assert.Contains(t, out, "search")
	assert.Contains(t, out, "-query")
}
