package main

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffArgs(t *testing.T) {
	g := &generator{dir: "migrations/local", devURL: "sqlite://dev?mode=memory"}

	assert.Equal(t, []string{
		"migrate", "diff", "add_index",
		"--to", "file:///tmp/schema.sql",
		"--dev-url", "sqlite://dev?mode=memory",
		"--dir", "file://migrations/local?format=golang-migrate",
	}, g.diffArgs("add_index", "/tmp/schema.sql"))
}

func TestFlagDefaults(t *testing.T) {
	cmd := newRootCmd()

	dir, err := cmd.Flags().GetString("dir")
	require.NoError(t, err)
	assert.Equal(t, "internal/database/migrations", dir)

	devURL, err := cmd.Flags().GetString("dev-url")
	require.NoError(t, err)
	assert.Equal(t, "sqlite://dev?mode=memory", devURL)
}

func TestWriteSchema(t *testing.T) {
	path, err := writeSchema("CREATE TABLE `local_state` (`key` text);")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Remove(path) })

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "local_state")
}

func TestNameArgumentRequired(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	require.Error(t, cmd.Execute())
}
