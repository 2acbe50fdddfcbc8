package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Flags("unlock"), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, uint64(0xfed18000), cfg.RCBA)
	assert.Equal(t, uint16(0x910), cfg.ECIndex)
	assert.Equal(t, uint16(0x911), cfg.ECData)
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load(Flags("unlock"), []string{"-y", "--status", "--json", "--ec-index=0x62", "--ec-data", "99", "--rcba=0xfed1c000"})
	require.NoError(t, err)
	assert.True(t, cfg.Yes)
	assert.True(t, cfg.Status)
	assert.True(t, cfg.JSON)
	assert.Equal(t, uint16(0x62), cfg.ECIndex)
	assert.Equal(t, uint16(99), cfg.ECData)
	assert.Equal(t, uint64(0xfed1c000), cfg.RCBA)
	assert.False(t, cfg.Verbose)
}

func TestLoadRejects(t *testing.T) {
	for _, args := range [][]string{
		{"--rcba=0xfed18004"},
		{"--rcba=0"},
		{"--json"},
		{"--no-such-flag"},
	} {
		_, err := Load(Flags("unlock"), args)
		assert.Error(t, err, "%v", args)
	}
}
