// Package auth stores the bot token pasted by the operator.
package auth

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrNoCredential = errors.New("no stored credential")

// Credential is the on-disk form of a bot token.
type Credential struct {
	Token      string    `json:"token"`
	AuthMethod string    `json:"auth_method"`
	SavedAt    time.Time `json:"saved_at"`
}

// LoginPasteToken prompts on w and reads a single token line from r. A
// leading "Bot " prefix is accepted and removed.
func LoginPasteToken(r io.Reader, w io.Writer) (*Credential, error) {
	fmt.Fprintln(w, "Paste your bot token from discord.com/developers/applications:")
	fmt.Fprint(w, "> ")

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading token: %w", err)
		}
		return nil, errors.New("no input received")
	}

	token := strings.TrimSpace(scanner.Text())
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bot "))
	if token == "" {
		return nil, errors.New("token cannot be empty")
	}

	return &Credential{
		Token:      token,
		AuthMethod: "token",
		SavedAt:    time.Now().UTC(),
	}, nil
}

// SaveCredential writes c to path with owner-only permissions.
func SaveCredential(path string, c *Credential) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func LoadCredential(path string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCredential
	}
	if err != nil {
		return nil, err
	}
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if c.Token == "" {
		return nil, ErrNoCredential
	}
	return &c, nil
}

// DeleteCredential removes the stored credential. A missing file is not an
// error.
func DeleteCredential(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
