package prof

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsEnabled(t *testing.T) {
	assert.False(t, Options{}.Enabled())
	assert.True(t, Options{Heap: "heap.out"}.Enabled())
}

func TestStartStop(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		CPU:   filepath.Join(dir, "cpu.out"),
		Heap:  filepath.Join(dir, "heap.out"),
		Trace: filepath.Join(dir, "trace.out"),
	}
	p, err := Start(opts)
	require.NoError(t, err)
	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())

	for _, path := range []string{opts.CPU, opts.Heap, opts.Trace} {
		st, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.Positive(t, st.Size(), path)
	}
}

func TestStartBadPath(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no", "such", "dir")
	_, err := Start(Options{CPU: filepath.Join(missing, "cpu.out")})
	assert.ErrorContains(t, err, "cpu profile")

	// A failed trace must release the CPU profile it already started.
	_, err = Start(Options{CPU: filepath.Join(t.TempDir(), "cpu.out"), Trace: filepath.Join(missing, "trace.out")})
	assert.ErrorContains(t, err, "runtime trace")
	p, err := Start(Options{CPU: filepath.Join(t.TempDir(), "cpu.out")})
	require.NoError(t, err)
	assert.NoError(t, p.Stop())
}

func TestNilProfile(t *testing.T) {
	var p *Profile
	assert.NoError(t, p.Stop())
}
