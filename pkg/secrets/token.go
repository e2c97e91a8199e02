// Package secrets resolves the Discord bot token from its configured
// sources and caches the result until invalidated.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/tinyland-inc/markovrelay/pkg/auth"
	"github.com/tinyland-inc/markovrelay/pkg/config"
	"github.com/tinyland-inc/markovrelay/pkg/logger"
)

var ErrNoToken = errors.New("no discord token configured")

// TokenSource resolves the bot token in order: the inline config value
// (which the environment may have set), the configured token file, then
// the credential file written by "auth login".
type TokenSource struct {
	credentialPath string

	mu     sync.RWMutex
	cfg    config.DiscordConfig
	cached string
	source string
}

func NewTokenSource(cfg config.DiscordConfig, credentialPath string) *TokenSource {
	return &TokenSource{cfg: cfg, credentialPath: credentialPath}
}

// Token returns the cached token or resolves it.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.cached != "" {
		tok := s.cached
		s.mu.RUnlock()
		return tok, nil
	}
	cfg := s.cfg
	s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	tok, source, err := s.resolve(cfg)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.cached, s.source = tok, source
	s.mu.Unlock()
	logger.InfoCF("secrets", "Resolved discord token", map[string]any{"source": source})
	return tok, nil
}

// Source names where the cached token came from, or "" before resolution.
func (s *TokenSource) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Update replaces the config and drops the cached token.
func (s *TokenSource) Update(cfg config.DiscordConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.cached, s.source = "", ""
}

// Invalidate forces the next Token call to resolve again.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.cached, s.source = "", ""
	s.mu.Unlock()
}

func (s *TokenSource) resolve(cfg config.DiscordConfig) (string, string, error) {
	if tok := strings.TrimSpace(cfg.Token); tok != "" {
		return tok, "config", nil
	}
	if cfg.TokenFile != "" {
		data, err := os.ReadFile(config.ExpandHome(cfg.TokenFile))
		if err != nil {
			return "", "", fmt.Errorf("reading token file: %w", err)
		}
		if tok := strings.TrimSpace(string(data)); tok != "" {
			return tok, "token_file", nil
		}
		return "", "", fmt.Errorf("token file %s is empty", cfg.TokenFile)
	}
	if s.credentialPath != "" {
		c, err := auth.LoadCredential(s.credentialPath)
		switch {
		case err == nil:
			return c.Token, "credentials", nil
		case !errors.Is(err, auth.ErrNoCredential):
			return "", "", err
		}
	}
	return "", "", ErrNoToken
}
