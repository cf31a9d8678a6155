package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "propd.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "leveldb", cfg.StorageBackend)
	require.Equal(t, DefaultPricing(), cfg.Pricing)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config must be persisted")

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.DataDir, again.DataDir)
	require.Equal(t, cfg.EscrowVault, again.EscrowVault)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "propd.toml")
	contents := `DataDir = "/var/lib/propchain"
StorageBackend = "bolt"
EscrowVault = "0x00000000000000000000000000000000000000aa"
PausedModules = [" Lease "]

[Pricing]
DemandThreshold = 50
DemandMultiplier = 3
DiscountScoreThreshold = 90
DiscountPercent = 15
LatePenaltyPercent = 5
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "bolt", cfg.StorageBackend)
	require.Equal(t, filepath.Join("/var/lib/propchain", "state.bolt"), cfg.StatePath())
	require.Equal(t, filepath.Join("/var/lib/propchain", "events.db"), cfg.EventLogDSN())
	require.Equal(t, []string{"lease"}, cfg.PausedModules)
	require.True(t, cfg.Pauses().IsPaused("lease"))

	policy := cfg.Pricing.Policy()
	require.Equal(t, uint64(3), policy.DemandMultiplier)
	require.Equal(t, uint64(15), policy.DiscountPercent)

	vault, err := cfg.Vault()
	require.NoError(t, err)
	require.Equal(t, byte(0xaa), vault[19])
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "propd.yaml")
	contents := `dataDir: ./data
storageBackend: memory
escrowVault: "0x00000000000000000000000000000000000000bb"
pricing:
  demandThreshold: 100
  demandMultiplier: 2
  discountScoreThreshold: 80
  discountPercent: 10
  latePenaltyPercent: 10
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.StorageBackend)
	require.Empty(t, cfg.StatePath())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "propd.toml")
	require.NoError(t, os.WriteFile(path, []byte("DataDir = \"x\"\nListenAddress = \":6001\"\n"), 0o644))
	_, err := Load(path)
	require.ErrorContains(t, err, "ListenAddress")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvStorageBackend, "memory")
	t.Setenv(EnvEnvironment, "ci")
	cfg, err := Load(filepath.Join(t.TempDir(), "propd.toml"))
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.StorageBackend)
	require.Equal(t, "ci", cfg.Environment)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.StorageBackend = "rocksdb" }},
		{"bad vault", func(c *Config) { c.EscrowVault = "0x1234" }},
		{"zero multiplier", func(c *Config) { c.Pricing.DemandMultiplier = 0 }},
		{"discount above 100", func(c *Config) { c.Pricing.DiscountPercent = 101 }},
		{"penalty above 100", func(c *Config) { c.Pricing.LatePenaltyPercent = 150 }},
		{"unknown paused module", func(c *Config) { c.PausedModules = []string{"swap"} }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"telemetry without endpoint", func(c *Config) { c.Telemetry.Traces = true }},
		{"negative query rate", func(c *Config) { c.QueryRateLimit = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, Default().Validate())
}
