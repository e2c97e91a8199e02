// Package migrate converts configuration files between formats.
package migrate

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tinyland-inc/markovrelay/pkg/config"
)

// ToYAMLOptions controls JSON-to-YAML config migration.
type ToYAMLOptions struct {
	ConfigPath string // JSON config path (default: ~/.markovrelay/config.json)
	OutputPath string // YAML output path (default: same dir as input, .yaml extension)
	DryRun     bool
	Force      bool
}

// ToYAMLResult summarizes the conversion.
type ToYAMLResult struct {
	OutputPath string
	Warnings   []string
}

const tokenEnv = "MARKOVRELAY_DISCORD_TOKEN"

// RunToYAML converts a JSON config file to YAML. Environment overrides are
// not applied, so the output reflects only the file. An inline bot token is
// never written; a warning points at the environment variable instead. In
// dry-run mode the YAML is written to out.
func RunToYAML(opts ToYAMLOptions, out io.Writer) (*ToYAMLResult, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		configPath = filepath.Join(home, ".markovrelay", "config.json")
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = strings.TrimSuffix(configPath, filepath.Ext(configPath)) + ".yaml"
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}
	if err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	result := &ToYAMLResult{OutputPath: outputPath}
	doc, err := configToYAML(cfg, result)
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		fmt.Fprintln(out, "# Generated YAML config (dry-run)")
		fmt.Fprint(out, doc)
		return result, nil
	}

	if !opts.Force {
		if _, err := os.Stat(outputPath); err == nil {
			return nil, fmt.Errorf("output file already exists: %s (use --force to overwrite)", outputPath)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(outputPath, []byte(doc), 0o600); err != nil {
		return nil, err
	}

	return result, nil
}

func configToYAML(cfg *config.Config, result *ToYAMLResult) (string, error) {
	redacted := *cfg
	if redacted.Discord.Token != "" {
		redacted.Discord.Token = ""
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("discord.token: credential value redacted; set %s or discord.token_file", tokenEnv))
	}
	if len(redacted.Bot.RestrictToIDs) == 0 {
		result.Warnings = append(result.Warnings,
			"bot.restrict_to_ids is empty: every author will be ingested")
	}

	body, err := yaml.Marshal(&redacted)
	if err != nil {
		return "", fmt.Errorf("encoding yaml: %w", err)
	}

	var b strings.Builder
	b.WriteString("# markovrelay configuration (generated from JSON)\n")
	b.WriteString("# The bot token is read from " + tokenEnv + ", discord.token_file\n")
	b.WriteString("# or the credential file written by `markovrelay auth login`.\n")
	b.Write(body)
	return b.String(), nil
}
