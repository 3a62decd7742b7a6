package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default().RPC.Endpoints, cfg.RPC.Endpoints)
	require.Equal(t, 50*time.Millisecond, cfg.RPC.MinInterval.Std())
	require.EqualValues(t, 100, cfg.Engine.SlippageBps)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rpc:
  endpoints:
    - https://primary.example.com
    - https://fallback.example.com
  min_interval: 25ms
engine:
  slippage_bps: 50
  confirm_timeout: 90s
redis:
  addr: localhost:6379
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.RPC.Endpoints, 2)
	require.Equal(t, 25*time.Millisecond, cfg.RPC.MinInterval.Std())
	require.EqualValues(t, 50, cfg.Engine.SlippageBps)
	require.Equal(t, 90*time.Second, cfg.Engine.ConfirmTimeout.Std())
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	// Untouched sections keep defaults.
	require.Equal(t, 30*time.Second, cfg.Cache.WarmTTL.Std())
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rpc:\n  endpoints: [https://file.example.com]\n"), 0o600))
	t.Setenv("RPC_ENDPOINT", "https://env.example.com")
	t.Setenv("SLIPPAGE_BPS", "250")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"https://env.example.com"}, cfg.RPC.Endpoints)
	require.EqualValues(t, 250, cfg.Engine.SlippageBps)
}

func TestValidateRejectsBadBlacklistAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  blacklist: [not-an-address]\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "blacklist")
}

func TestValidateRejectsExcessiveSlippage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  slippage_bps: 10000\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
