package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// FlexibleStringSlice is a []string that also accepts JSON and YAML numbers,
// so restrict_to_ids can contain both "123" and 123. Numbers are kept as
// their literal text: Discord snowflakes do not survive a float64.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err != nil {
			return fmt.Errorf("allow-list entry %s: %w", item, err)
		}
		result = append(result, n.String())
	}
	*f = result
	return nil
}

func (f *FlexibleStringSlice) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: expected a list", node.Line)
	}
	result := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: expected a scalar", item.Line)
		}
		result = append(result, item.Value)
	}
	*f = result
	return nil
}

// Contains reports whether id is listed.
func (f FlexibleStringSlice) Contains(id string) bool {
	for _, v := range f {
		if strings.TrimSpace(v) == id {
			return true
		}
	}
	return false
}

type Config struct {
	Discord DiscordConfig `json:"discord" yaml:"discord"`
	Bot     BotOptions    `json:"bot"     yaml:"bot"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Markov  MarkovConfig  `json:"markov"  yaml:"markov"`
	Gateway GatewayConfig `json:"gateway" yaml:"gateway"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

type DiscordConfig struct {
	Token string `env:"MARKOVRELAY_DISCORD_TOKEN"      json:"token,omitempty"      yaml:"token,omitempty"`
	// TokenFile is read when Token is empty.
	TokenFile string `env:"MARKOVRELAY_DISCORD_TOKEN_FILE" json:"token_file,omitempty" yaml:"token_file,omitempty"`
	Instance  string `env:"MARKOVRELAY_DISCORD_INSTANCE"   json:"instance"             yaml:"instance"`
}

// BotOptions is the read-only behaviour configuration consulted for every
// event.
type BotOptions struct {
	BotName                   string              `env:"MARKOVRELAY_BOT_NAME"                          json:"bot_name"                      yaml:"bot_name"`
	IngestOnMessage           bool                `env:"MARKOVRELAY_BOT_INGEST_ON_MESSAGE"             json:"ingest_on_message"             yaml:"ingest_on_message"`
	CollectWordStatsOnMessage bool                `env:"MARKOVRELAY_BOT_COLLECT_WORD_STATS_ON_MESSAGE" json:"collect_word_stats_on_message" yaml:"collect_word_stats_on_message"`
	ReactMode                 bool                `env:"MARKOVRELAY_BOT_REACT_MODE"                    json:"react_mode"                    yaml:"react_mode"`
	RestrictToIDs             FlexibleStringSlice `env:"MARKOVRELAY_BOT_RESTRICT_TO_IDS"               json:"restrict_to_ids"               yaml:"restrict_to_ids,omitempty"`

	WriteEmojis      []string `env:"MARKOVRELAY_BOT_WRITE_EMOJIS"       json:"write_emojis"       yaml:"write_emojis"`
	WriteEmojiNames  []string `env:"MARKOVRELAY_BOT_WRITE_EMOJI_NAMES"  json:"write_emoji_names"  yaml:"write_emoji_names,omitempty"`
	DeleteEmojis     []string `env:"MARKOVRELAY_BOT_DELETE_EMOJIS"      json:"delete_emojis"      yaml:"delete_emojis"`
	DeleteEmojiNames []string `env:"MARKOVRELAY_BOT_DELETE_EMOJI_NAMES" json:"delete_emoji_names" yaml:"delete_emoji_names,omitempty"`
	FailEmoji        string   `env:"MARKOVRELAY_BOT_FAIL_EMOJI"         json:"fail_emoji"         yaml:"fail_emoji"`
	FailEmojiName    string   `env:"MARKOVRELAY_BOT_FAIL_EMOJI_NAME"    json:"fail_emoji_name"    yaml:"fail_emoji_name,omitempty"`

	// ReactionAuthPolicy is "both" (reactor and message author must be
	// allow-listed) or "reactor" (only the reactor).
	ReactionAuthPolicy   string `env:"MARKOVRELAY_BOT_REACTION_AUTH_POLICY"   json:"reaction_auth_policy"  yaml:"reaction_auth_policy"`
	UnauthorizedFeedback bool   `env:"MARKOVRELAY_BOT_UNAUTHORIZED_FEEDBACK"  json:"unauthorized_feedback" yaml:"unauthorized_feedback"`

	EmptyReply    string `env:"MARKOVRELAY_BOT_EMPTY_REPLY"    json:"empty_reply"    yaml:"empty_reply"`
	Activity      string `env:"MARKOVRELAY_BOT_ACTIVITY"       json:"activity"       yaml:"activity"`
	ActivityType  string `env:"MARKOVRELAY_BOT_ACTIVITY_TYPE"  json:"activity_type"  yaml:"activity_type"`
	CommandPrefix string `env:"MARKOVRELAY_BOT_COMMAND_PREFIX" json:"command_prefix" yaml:"command_prefix"`
}

const (
	AuthPolicyBoth    = "both"
	AuthPolicyReactor = "reactor"
)

type StorageConfig struct {
	Path string `env:"MARKOVRELAY_STORAGE_PATH" json:"path" yaml:"path"`
}

type MarkovConfig struct {
	MaxWords      int `env:"MARKOVRELAY_MARKOV_MAX_WORDS"       json:"max_words"       yaml:"max_words"`
	SampleSize    int `env:"MARKOVRELAY_MARKOV_SAMPLE_SIZE"     json:"sample_size"     yaml:"sample_size"`
	KeywordMinLen int `env:"MARKOVRELAY_MARKOV_KEYWORD_MIN_LEN" json:"keyword_min_len" yaml:"keyword_min_len"`
}

type GatewayConfig struct {
	Host string `env:"MARKOVRELAY_GATEWAY_HOST" json:"host" yaml:"host"`
	Port int    `env:"MARKOVRELAY_GATEWAY_PORT" json:"port" yaml:"port"`
}

type LoggingConfig struct {
	Level string `env:"MARKOVRELAY_LOGGING_LEVEL" json:"level" yaml:"level"`
	JSON  bool   `env:"MARKOVRELAY_LOGGING_JSON"  json:"json"  yaml:"json"`
}

func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			Instance: "discord.com",
		},
		Bot: BotOptions{
			BotName:              "devbot",
			ReactMode:            true,
			WriteEmojis:          []string{"\U0001F4DD"},
			DeleteEmojis:         []string{"❌"},
			FailEmoji:            "\U0001F6AB",
			ReactionAuthPolicy:   AuthPolicyBoth,
			UnauthorizedFeedback: true,
			EmptyReply:           "...",
			Activity:             "Placeholder!",
			ActivityType:         "competing",
			CommandPrefix:        "!",
		},
		Storage: StorageConfig{
			Path: "~/.markovrelay/corpus.db",
		},
		Markov: MarkovConfig{
			MaxWords:      40,
			SampleSize:    500,
			KeywordMinLen: 2,
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 18791,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

var activityTypes = map[string]bool{
	"playing": true, "streaming": true, "listening": true,
	"watching": true, "custom": true, "competing": true,
}

// Validate checks the fields the event handlers rely on.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Bot.BotName) == "" {
		errs = append(errs, errors.New("bot.bot_name is required"))
	}
	if c.Bot.FailEmoji == "" {
		errs = append(errs, errors.New("bot.fail_emoji is required"))
	}
	switch c.Bot.ReactionAuthPolicy {
	case AuthPolicyBoth, AuthPolicyReactor:
	default:
		errs = append(errs, fmt.Errorf("bot.reaction_auth_policy %q: want %q or %q",
			c.Bot.ReactionAuthPolicy, AuthPolicyBoth, AuthPolicyReactor))
	}
	if c.Bot.ActivityType != "" && !activityTypes[strings.ToLower(c.Bot.ActivityType)] {
		errs = append(errs, fmt.Errorf("bot.activity_type %q is not a Discord activity type", c.Bot.ActivityType))
	}
	if strings.Contains(c.Discord.Instance, ":") {
		errs = append(errs, fmt.Errorf("discord.instance %q must not contain ':'", c.Discord.Instance))
	}
	if c.Markov.MaxWords <= 0 {
		errs = append(errs, errors.New("markov.max_words must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadConfig reads path (JSON, or YAML by extension) over DefaultConfig,
// then applies MARKOVRELAY_* environment overrides. A missing file yields
// the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if err == nil {
		if isYAML(path) {
			err = yaml.Unmarshal(data, cfg)
		} else {
			err = json.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// StoragePath returns the corpus database path with ~ expanded.
func (c *Config) StoragePath() string {
	return ExpandHome(c.Storage.Path)
}

func ExpandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
