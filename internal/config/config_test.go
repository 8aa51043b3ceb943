// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load("")

	assert.Equal(t, "flaws_cloudtrail%02d.json.gz", cfg.ShardPattern)
	assert.Equal(t, 19, cfg.ShardMaxIndex)
	assert.Equal(t, 100, cfg.DailyThreshold)
	assert.Equal(t, time.Hour, cfg.SessionGap)
	assert.Equal(t, 5, cfg.SessionMinEvents)
	assert.Equal(t, []string{"Level5", "Level6", "backup"}, cfg.KeyActors)
	assert.Equal(t, "analyze.json", cfg.InterchangePath)
	assert.Equal(t, "gpt-4-turbo", cfg.LLMModel)
	assert.NotEmpty(t, cfg.InstanceID)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("SHARD_MAX_INDEX", "7")
	t.Setenv("SESSION_GAP", "30m")
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg := Load("")
	assert.Equal(t, 7, cfg.ShardMaxIndex)
	assert.Equal(t, 30*time.Minute, cfg.SessionGap)
	assert.Equal(t, "sk-test", cfg.LLMAPIKey)
}

func TestLoad_OpenAIKeyFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg := Load("")
	assert.Equal(t, "sk-openai", cfg.LLMAPIKey)
}

func TestLoad_YAMLOverlayThenEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flawstrail.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"shard_dir: /data/shards\ndaily_threshold: 50\n"), 0o644))

	t.Setenv("DAILY_THRESHOLD", "200")

	cfg := Load(path)
	assert.Equal(t, "/data/shards", cfg.ShardDir) // YAML 적용
	assert.Equal(t, 200, cfg.DailyThreshold)      // env 가 YAML 보다 우선
}
