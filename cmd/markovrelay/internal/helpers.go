package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/tinyland-inc/markovrelay/pkg/config"
	"github.com/tinyland-inc/markovrelay/pkg/logger"
)

const Logo = "🗨"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

// ConfigPathOverride is set by the root --config flag.
var ConfigPathOverride string

func homeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".markovrelay")
}

// GetConfigPath returns, in order: the --config flag, MARKOVRELAY_CONFIG,
// ~/.markovrelay/config.yaml if it exists, and ~/.markovrelay/config.json.
func GetConfigPath() string {
	if ConfigPathOverride != "" {
		return ConfigPathOverride
	}
	if p := os.Getenv("MARKOVRELAY_CONFIG"); p != "" {
		return p
	}
	yamlPath := filepath.Join(homeDir(), "config.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	return filepath.Join(homeDir(), "config.json")
}

func GetCredentialPath() string {
	return filepath.Join(homeDir(), "credentials.json")
}

// LoadConfig loads the active config and applies its logging section.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(GetConfigPath())
	if err != nil {
		return nil, err
	}
	ApplyLogging(cfg, false)
	return cfg, nil
}

// ApplyLogging configures the logger from cfg. debug forces DEBUG.
func ApplyLogging(cfg *config.Config, debug bool) {
	logger.Configure(os.Stderr, cfg.Logging.JSON)
	level := logger.ParseLevel(cfg.Logging.Level)
	if debug {
		level = logger.DEBUG
	}
	logger.SetLevel(level)
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

// GetVersion returns the version string
func GetVersion() string {
	return version
}
