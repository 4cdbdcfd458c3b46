package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: 9090
  log_level: info
database:
  dsn: "root:root@tcp(127.0.0.1:3306)/test?charset=utf8mb4"
  max_open_conns: 20
game:
  round_duration_ms: 30000
  number_max: 6
  win_multiplier: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("NACOS_SERVER_ADDR", "")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)

	// 显式配置的玩法参数保留
	assert.Equal(t, int64(30000), cfg.Game.RoundDurationMS)
	assert.Equal(t, 6, cfg.Game.NumberMax)
	assert.Equal(t, int64(5), cfg.Game.WinMultiplier)

	// 未配置的玩法参数补默认值
	assert.Equal(t, 1, cfg.Game.NumberMin)
	assert.Equal(t, "0.01", cfg.Game.MinBet)
	assert.Equal(t, "1000", cfg.Game.StartingBalance)
	assert.Equal(t, int64(1000), cfg.Game.CheckIntervalMS) // 30000/30
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("NACOS_SERVER_ADDR", "")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	_, err := Load()
	assert.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, int64(60000), cfg.Game.RoundDurationMS)
	assert.Equal(t, int64(2000), cfg.Game.CheckIntervalMS) // 60000/30
	assert.Equal(t, 1, cfg.Game.NumberMin)
	assert.Equal(t, 10, cfg.Game.NumberMax)
	assert.Equal(t, int64(9), cfg.Game.WinMultiplier)
	assert.Equal(t, "1000000", cfg.Game.MaxBet)
	assert.Equal(t, 200, cfg.Game.OutcomeLimit)
}

func TestApplyDefaultsIntervalFloor(t *testing.T) {
	var cfg Config
	cfg.Game.RoundDurationMS = 1000
	cfg.ApplyDefaults()

	// 检查间隔不低于 200ms
	assert.Equal(t, int64(200), cfg.Game.CheckIntervalMS)
}
