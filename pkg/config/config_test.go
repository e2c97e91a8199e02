package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "devbot", cfg.Bot.BotName)
	assert.Equal(t, []string{"\U0001F4DD"}, cfg.Bot.WriteEmojis)
	assert.Equal(t, []string{"❌"}, cfg.Bot.DeleteEmojis)
	assert.Equal(t, "\U0001F6AB", cfg.Bot.FailEmoji)
	assert.Equal(t, AuthPolicyBoth, cfg.Bot.ReactionAuthPolicy)
	assert.True(t, cfg.Bot.UnauthorizedFeedback)
	assert.False(t, cfg.Bot.IngestOnMessage)
}

func TestFlexibleStringSlice_JSONKeepsSnowflakePrecision(t *testing.T) {
	var f FlexibleStringSlice
	require.NoError(t, json.Unmarshal([]byte(`["42", 1234567890123456789]`), &f))
	assert.Equal(t, FlexibleStringSlice{"42", "1234567890123456789"}, f)
	assert.True(t, f.Contains("1234567890123456789"))
	assert.False(t, f.Contains("1234567890123456780"))
}

func TestFlexibleStringSlice_JSONRejectsObjects(t *testing.T) {
	var f FlexibleStringSlice
	assert.Error(t, json.Unmarshal([]byte(`[{"id": 1}]`), &f))
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"bot": {"bot_name": "markov", "ingest_on_message": true, "restrict_to_ids": [111, "222"]}
	}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "markov", cfg.Bot.BotName)
	assert.True(t, cfg.Bot.IngestOnMessage)
	assert.Equal(t, FlexibleStringSlice{"111", "222"}, cfg.Bot.RestrictToIDs)
	// untouched sections keep their defaults
	assert.Equal(t, "\U0001F6AB", cfg.Bot.FailEmoji)
	assert.Equal(t, 40, cfg.Markov.MaxWords)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bot:
  bot_name: yamlbot
  react_mode: false
  restrict_to_ids:
    - 1234567890123456789
  write_emoji_names: [quill]
logging:
  level: debug
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "yamlbot", cfg.Bot.BotName)
	assert.False(t, cfg.Bot.ReactMode)
	assert.Equal(t, FlexibleStringSlice{"1234567890123456789"}, cfg.Bot.RestrictToIDs)
	assert.Equal(t, []string{"quill"}, cfg.Bot.WriteEmojiNames)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bot": {"bot_name": "fromfile"}}`), 0o600))

	t.Setenv("MARKOVRELAY_BOT_NAME", "fromenv")
	t.Setenv("MARKOVRELAY_BOT_RESTRICT_TO_IDS", "1,2")
	t.Setenv("MARKOVRELAY_DISCORD_TOKEN", "secret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.Bot.BotName)
	assert.Equal(t, FlexibleStringSlice{"1", "2"}, cfg.Bot.RestrictToIDs)
	assert.Equal(t, "secret", cfg.Discord.Token)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bot": {"reaction_auth_policy": "anyone", "fail_emoji": ""}}`), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "reaction_auth_policy")
	assert.Contains(t, err.Error(), "fail_emoji")
}

func TestValidate_InstanceWithColon(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Discord.Instance = "chat.example:8443"

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "discord.instance")
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := DefaultConfig()
			cfg.Bot.RestrictToIDs = FlexibleStringSlice{"99"}
			cfg.Bot.ReactionAuthPolicy = AuthPolicyReactor

			require.NoError(t, SaveConfig(path, cfg))
			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestSnapshot_Swap(t *testing.T) {
	first := DefaultConfig()
	s := NewSnapshot(first)
	assert.Same(t, first, s.Load())

	second := DefaultConfig()
	second.Bot.BotName = "other"
	assert.Same(t, first, s.Swap(second))
	assert.Equal(t, "other", s.Load().Bot.BotName)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x.db"), ExpandHome("~/x.db"))
	assert.Equal(t, "/abs/x.db", ExpandHome("/abs/x.db"))
	assert.Equal(t, "", ExpandHome(""))
}
