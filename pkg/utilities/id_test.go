package utilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDGeneratorUnique(t *testing.T) {
	gen, err := NewIDGenerator(3)
	require.NoError(t, err)

	seen := make(map[int64]struct{}, 5000)
	for i := 0; i < 5000; i++ {
		id := gen.Next()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
}

func TestNewIDGeneratorRejectsOutOfRangeNode(t *testing.T) {
	_, err := NewIDGenerator(4096)
	assert.Error(t, err)
}

func TestIDGeneratorFromEnvFallsBack(t *testing.T) {
	t.Setenv("SNOWFLAKE_NODE", "not-a-number")
	gen, err := IDGeneratorFromEnv()
	require.NoError(t, err)
	assert.Positive(t, gen.Next())
}

func TestNewKSUID(t *testing.T) {
	a, b := NewKSUID(), NewKSUID()
	assert.Len(t, a, 27)
	assert.NotEqual(t, a, b)
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, "debug", levelFromString("debug").String())
	assert.Equal(t, "warn", levelFromString("warning").String())
	assert.Equal(t, "info", levelFromString("bogus").String())
}
