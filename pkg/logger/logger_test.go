package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureJSON(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := GetLevel()
	Configure(&buf, true)
	t.Cleanup(func() {
		SetLevel(prev)
		Configure(os.Stderr, false)
	})
	return &buf
}

func TestInfoCF_WritesComponentAndFields(t *testing.T) {
	buf := captureJSON(t)
	SetLevel(INFO)

	InfoCF("dispatch", "Message ingested", map[string]any{"fragments": 3})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "dispatch", entry["component"])
	assert.Equal(t, "Message ingested", entry["message"])
	assert.EqualValues(t, 3, entry["fragments"])
}

func TestSetLevel_SuppressesDebug(t *testing.T) {
	buf := captureJSON(t)
	SetLevel(WARN)

	DebugC("dispatch", "hidden")
	InfoC("dispatch", "hidden")
	assert.Empty(t, buf.String())

	WarnC("dispatch", "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		"TRACE":   DEBUG,
		"info":    INFO,
		"":        INFO,
		"warning": WARN,
		"error":   ERROR,
		"fatal":   FATAL,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}
