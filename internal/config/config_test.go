package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpec(t *testing.T) {
	cfg := Default()
	assert.Equal(t, uint64(10), cfg.JIT.TierThresholdN1)
	assert.Equal(t, uint64(100), cfg.JIT.TierThresholdN2)
	assert.Equal(t, uint64(1000), cfg.JIT.TierThresholdN3)
	assert.Equal(t, 4096, cfg.GC.CardSizeBytes)
	assert.Equal(t, Dynamic, cfg.TypeLevel)
}

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	cfg, err := Load([]byte("jit:\n  tier_threshold_n1: 5\n"))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), cfg.JIT.TierThresholdN1)
	assert.Equal(t, uint64(100), cfg.JIT.TierThresholdN2, "unspecified fields keep defaults")
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	data, err := Marshal(cfg)
	require.NoError(t, err)
	loaded, err := Load(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestPatchAndReadField(t *testing.T) {
	cfg := Default()
	patched, err := PatchField(cfg, "jit.tier_threshold_n1", 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), patched.JIT.TierThresholdN1)

	result, err := ReadField(patched, "jit.tier_threshold_n1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.Int())
}
