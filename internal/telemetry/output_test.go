package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	require.NoError(t, err)
	require.Nil(t, om)

	// A nil manager is safe to use.
	assert.NoError(t, om.Record(CycleRecord{Cycle: 1}))
	assert.NoError(t, om.Close())
}

func TestOutputManagerWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	require.NoError(t, err)
	require.NotNil(t, om)

	require.NoError(t, om.Record(CycleRecord{Cycle: 1, Winner: "energy", Left: 0.8, Right: 0.8}))
	require.NoError(t, om.Record(CycleRecord{Cycle: 2, Winner: "none", Damage: true}))
	require.NoError(t, om.Close())

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3, "one header plus one row per cycle")
	assert.True(t, strings.HasPrefix(lines[0], "cycle,"))
	assert.Contains(t, lines[0], "winner")
	assert.True(t, strings.HasPrefix(lines[1], "1,"))
	assert.True(t, strings.HasPrefix(lines[2], "2,"))
	assert.Contains(t, lines[1], "energy")
}
