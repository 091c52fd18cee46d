package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetConfig(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"BIRDEYE_API_KEY=secret\n"+
			"FEED_SYMBOLS=SOL_USDC:addr1,BONK_SOL:addr2\n"+
			"CENTRIFUGE_BATCH_WAIT=1s\n",
	), 0600))
	t.Cleanup(func() {
		for _, k := range []string{"BIRDEYE_API_KEY", "FEED_SYMBOLS", "CENTRIFUGE_BATCH_WAIT"} {
			_ = os.Unsetenv(k)
		}
	})

	cfg, err := SetConfig(envFile)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.BirdeyeConfig.APIKey)
	assert.Equal(t, "https://public-api.birdeye.so", cfg.BirdeyeConfig.BaseURL)
	assert.Equal(t, 10, cfg.BirdeyeConfig.RequestsPerSecond)
	assert.Equal(t, map[string]string{"SOL_USDC": "addr1", "BONK_SOL": "addr2"}, cfg.FeedConfig.Symbols)
	assert.Equal(t, time.Second, cfg.CentrifugeConfig.BatchWait)
	assert.False(t, cfg.CentrifugeConfig.Enabled())
	assert.False(t, cfg.MongoDbConfig.Enabled())

	loc, err := cfg.FeedConfig.Location()
	require.NoError(t, err)
	assert.Equal(t, "Etc/UTC", loc.String())
}

func TestSetConfig_MissingAPIKey(t *testing.T) {
	_ = os.Unsetenv("BIRDEYE_API_KEY")

	cfg, err := SetConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err, "commands without Birdeye access still load")

	assert.ErrorIs(t, cfg.BirdeyeConfig.Validate(), ErrMissingBirdeyeAPIKey)

	cfg.BirdeyeConfig.APIKey = "secret"
	assert.NoError(t, cfg.BirdeyeConfig.Validate())
}
