package auth

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuthCommand(t *testing.T) {
	cmd := NewAuthCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "auth", cmd.Use)

	for _, name := range []string{"login", "logout", "status"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Use)
	}
}

func run(t *testing.T, cmd *cobra.Command, out *bytes.Buffer) {
	t.Helper()
	cmd.SetOut(out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
}

func TestLoginLogoutStatus(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	run(t, newLoginCommand(strings.NewReader("abc.def\n")), &out)
	assert.Contains(t, out.String(), "Token saved")

	out.Reset()
	run(t, newStatusCommand(), &out)
	assert.Contains(t, out.String(), "Token stored")

	run(t, newLogoutCommand(), &out)

	out.Reset()
	run(t, newStatusCommand(), &out)
	assert.Contains(t, out.String(), "No stored token")
}
