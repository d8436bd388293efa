package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("rejects empty id", func(t *testing.T) {
		_, err := New("", PluginShell, Definition{})
		assert.Error(t, err)
	})

	t.Run("rejects unknown plugin", func(t *testing.T) {
		_, err := New("a", Plugin("container"), Definition{})
		assert.ErrorContains(t, err, "unknown plugin")
	})

	t.Run("rejects bad requirement predicate", func(t *testing.T) {
		_, err := New("a", PluginShell, Definition{Requires: []string{`mem.total >=`}})
		assert.Error(t, err)
	})
}

func TestChecksum(t *testing.T) {
	def := Definition{Command: "true", DependsOn: []string{"b", "a"}}

	j1, err := New("x", PluginShell, def)
	require.NoError(t, err)
	j2, err := New("x", PluginShell, Definition{Command: "true", DependsOn: []string{"a", "b"}})
	require.NoError(t, err)
	j3, err := New("x", PluginShell, Definition{Command: "false", DependsOn: []string{"a", "b"}})
	require.NoError(t, err)

	// Declaration order of list fields must not affect the hash.
	assert.Equal(t, j1.Checksum(), j2.Checksum())
	assert.NotEqual(t, j1.Checksum(), j3.Checksum())
}

func TestDependencies(t *testing.T) {
	j, err := New("x", PluginShell, Definition{
		DependsOn: []string{"setup", "mem"},
		Requires:  []string{`mem.total >= 1024`, `mem.free >= 512`, `disk.size >= 1`},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"mem", "disk"}, j.ResourceIDs())
	// Resource ids already present as direct dependencies are not repeated.
	assert.Equal(t, []string{"setup", "mem", "disk"}, j.AllDependencies())
}

func TestParseDefinitions(t *testing.T) {
	ctx := context.Background()

	t.Run("full definition", func(t *testing.T) {
		src := `
job "wifi-scan" {
  plugin             = "shell"
  summary            = "Scan for wireless networks"
  command            = "iw dev scan"
  depends            = ["net-detect"]
  requires           = ["net.driver == \"iwlwifi\""]
  flags              = ["preserve-locale"]
  estimated_duration = 5
}
`
		jobs, err := ParseDefinitions(ctx, []byte(src), "test.hcl")
		require.NoError(t, err)
		require.Len(t, jobs, 1)

		j := jobs[0]
		assert.Equal(t, "wifi-scan", j.ID)
		assert.Equal(t, PluginShell, j.Plugin)
		assert.Equal(t, []string{"net-detect"}, j.DependsOn)
		assert.Equal(t, []string{"net"}, j.ResourceIDs())
		assert.True(t, j.HasFlag("preserve-locale"))
		assert.Equal(t, 5.0, j.EstimatedDuration)
	})

	t.Run("plugin defaults to shell", func(t *testing.T) {
		jobs, err := ParseDefinitions(ctx, []byte(`job "a" { command = "true" }`), "test.hcl")
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, PluginShell, jobs[0].Plugin)
	})

	t.Run("invalid HCL", func(t *testing.T) {
		_, err := ParseDefinitions(ctx, []byte(`job "a" {`), "test.hcl")
		assert.Error(t, err)
	})
}
