package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
[report]
mode = "failures"
limit = 20
package = "java.util"

[correlate]
jobs = 3

[model]
manifest = "symbols/app.toml"

[log]
level = "debug"
`)
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, "failures", cfg.Report.Mode)
	assert.Equal(t, "pretty", cfg.Report.Format)
	assert.Equal(t, 20, cfg.Report.Limit)
	assert.Equal(t, "java.util", cfg.Report.Package)
	assert.Equal(t, 3, cfg.Correlate.Jobs)
	assert.Equal(t, filepath.Join(root, "symbols", "app.toml"), cfg.Model.Manifest)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, filepath.Join(root, FileName), cfg.Path)
}

func TestDiscoverDefaults(t *testing.T) {
	cfg, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default().Report, cfg.Report)
	assert.Empty(t, cfg.Path)
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "[correlate]\njobs = -1\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobs")

	path = writeConfig(t, dir, "[log]\nlevel = \"loud\"\n")
	_, err = Load(path)
	require.Error(t, err)

	path = writeConfig(t, dir, "[report\n")
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse TOML")
}
