package migrate

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tinyland-inc/markovrelay/pkg/config"
)

func writeJSONConfig(t *testing.T, cfg *config.Config) (string, string) {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	if err := config.SaveConfig(configPath, cfg); err != nil {
		t.Fatalf("saving test config: %v", err)
	}
	return tmpDir, configPath
}

func TestConfigToYAML_DefaultConfig(t *testing.T) {
	result := &ToYAMLResult{}
	doc, err := configToYAML(config.DefaultConfig(), result)
	if err != nil {
		t.Fatalf("configToYAML: %v", err)
	}

	for _, want := range []string{"bot_name: devbot", "react_mode: true", "max_words: 40", "port: 18791"} {
		if !strings.Contains(doc, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected only the empty allow-list warning, got %v", result.Warnings)
	}
}

func TestConfigToYAML_CredentialRedaction(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Discord.Token = "super-secret-token"
	cfg.Bot.RestrictToIDs = config.FlexibleStringSlice{"123"}

	result := &ToYAMLResult{}
	doc, err := configToYAML(cfg, result)
	if err != nil {
		t.Fatalf("configToYAML: %v", err)
	}

	if strings.Contains(doc, "super-secret-token") {
		t.Error("token must not appear in output")
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], tokenEnv) {
		t.Errorf("expected a redaction warning naming %s, got %v", tokenEnv, result.Warnings)
	}
	if cfg.Discord.Token != "super-secret-token" {
		t.Error("input config must not be modified")
	}
}

func TestRunToYAML_RoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Bot.BotName = "markov"
	cfg.Bot.RestrictToIDs = config.FlexibleStringSlice{"1234567890123456789"}
	tmpDir, configPath := writeJSONConfig(t, cfg)

	outputPath := filepath.Join(tmpDir, "config.yaml")
	result, err := RunToYAML(ToYAMLOptions{ConfigPath: configPath}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("RunToYAML: %v", err)
	}
	if result.OutputPath != outputPath {
		t.Errorf("expected output path %s, got %s", outputPath, result.OutputPath)
	}

	loaded, err := config.LoadConfig(outputPath)
	if err != nil {
		t.Fatalf("loading generated yaml: %v", err)
	}
	if loaded.Bot.BotName != "markov" {
		t.Errorf("bot name lost: %q", loaded.Bot.BotName)
	}
	if !loaded.Bot.RestrictToIDs.Contains("1234567890123456789") {
		t.Errorf("allow-list lost: %v", loaded.Bot.RestrictToIDs)
	}
}

func TestRunToYAML_DryRun(t *testing.T) {
	tmpDir, configPath := writeJSONConfig(t, config.DefaultConfig())

	var out bytes.Buffer
	result, err := RunToYAML(ToYAMLOptions{
		ConfigPath: configPath,
		OutputPath: filepath.Join(tmpDir, "config.yaml"),
		DryRun:     true,
	}, &out)
	if err != nil {
		t.Fatalf("RunToYAML dry-run: %v", err)
	}

	if _, err := os.Stat(result.OutputPath); !os.IsNotExist(err) {
		t.Error("expected output file to not exist in dry-run mode")
	}
	if !strings.Contains(out.String(), "bot_name: devbot") {
		t.Error("expected dry-run to print the yaml")
	}
}

func TestRunToYAML_NoOverwrite(t *testing.T) {
	tmpDir, configPath := writeJSONConfig(t, config.DefaultConfig())

	outputPath := filepath.Join(tmpDir, "config.yaml")
	os.WriteFile(outputPath, []byte("existing"), 0o600)

	_, err := RunToYAML(ToYAMLOptions{ConfigPath: configPath, OutputPath: outputPath}, &bytes.Buffer{})
	if err == nil {
		t.Error("expected error when output file exists without --force")
	}
}

func TestRunToYAML_ForceOverwrite(t *testing.T) {
	tmpDir, configPath := writeJSONConfig(t, config.DefaultConfig())

	outputPath := filepath.Join(tmpDir, "config.yaml")
	os.WriteFile(outputPath, []byte("existing"), 0o600)

	_, err := RunToYAML(ToYAMLOptions{ConfigPath: configPath, OutputPath: outputPath, Force: true}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("RunToYAML with --force: %v", err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(data) == "existing" {
		t.Error("expected file to be overwritten")
	}
}

func TestRunToYAML_MissingConfig(t *testing.T) {
	_, err := RunToYAML(ToYAMLOptions{ConfigPath: filepath.Join(t.TempDir(), "nope.json")}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}
