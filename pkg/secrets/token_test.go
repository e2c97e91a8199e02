package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/markovrelay/pkg/auth"
	"github.com/tinyland-inc/markovrelay/pkg/config"
)

func TestToken_Order(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token")
	credPath := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(tokenFile, []byte("from-file\n"), 0o600))
	require.NoError(t, auth.SaveCredential(credPath, &auth.Credential{Token: "from-cred"}))
	ctx := context.Background()

	s := NewTokenSource(config.DiscordConfig{Token: "inline", TokenFile: tokenFile}, credPath)
	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "inline", tok)
	assert.Equal(t, "config", s.Source())

	s.Update(config.DiscordConfig{TokenFile: tokenFile})
	tok, err = s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-file", tok)

	s.Update(config.DiscordConfig{})
	tok, err = s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-cred", tok)
	assert.Equal(t, "credentials", s.Source())
}

func TestToken_Cached(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("one"), 0o600))
	s := NewTokenSource(config.DiscordConfig{TokenFile: tokenFile}, "")
	ctx := context.Background()

	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "one", tok)

	require.NoError(t, os.WriteFile(tokenFile, []byte("two"), 0o600))
	tok, _ = s.Token(ctx)
	assert.Equal(t, "one", tok)

	s.Invalidate()
	tok, err = s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", tok)
}

func TestToken_Missing(t *testing.T) {
	s := NewTokenSource(config.DiscordConfig{}, filepath.Join(t.TempDir(), "none.json"))
	_, err := s.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)

	s.Update(config.DiscordConfig{TokenFile: filepath.Join(t.TempDir(), "absent")})
	_, err = s.Token(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestToken_EmptyFile(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("  \n"), 0o600))
	_, err := NewTokenSource(config.DiscordConfig{TokenFile: tokenFile}, "").Token(context.Background())
	assert.ErrorContains(t, err, "is empty")
}
