package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openBuffer opens the global logger writing JSON into a buffer.
func openBuffer(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	Close()
	var buf bytes.Buffer
	require.NoError(t, Open(Options{Level: level, Format: FormatJSON, Output: &buf}))
	t.Cleanup(Close)
	return &buf
}

// lastLine decodes the final JSON log line in buf.
func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &m))
	return m
}

func TestLogger(t *testing.T) {
	t.Run("success logs at debug", func(t *testing.T) {
		buf := openBuffer(t, "debug")

		Event("database", "find").
			Collection("pages").
			Detail("count", 3).
			Write(nil)

		m := lastLine(t, buf)
		assert.Equal(t, "debug", m["level"])
		assert.Equal(t, "find", m["msg"])
		assert.Equal(t, "database", m["source"])
		assert.Equal(t, "pages", m["collection"])
		assert.EqualValues(t, 3, m["count"])
		assert.NotContains(t, m, "error")
	})

	t.Run("failure logs at error", func(t *testing.T) {
		buf := openBuffer(t, "info")

		Event("database", "update").
			Collection("pages").
			ID("42").
			Write(errors.New("disk full"))

		m := lastLine(t, buf)
		assert.Equal(t, "error", m["level"])
		assert.Equal(t, "update", m["msg"])
		assert.Equal(t, "42", m["id"])
		assert.Equal(t, "disk full", m["error"])
	})

	t.Run("level filters successes", func(t *testing.T) {
		buf := openBuffer(t, "info")

		Event("database", "count").Write(nil)
		assert.Empty(t, buf.String())
	})

	t.Run("log without logger is noop", func(t *testing.T) {
		Close()

		// Should not panic
		Log(Entry{Source: "test", Action: "test", Success: true})
		assert.NotNil(t, L())
	})

	t.Run("open is idempotent", func(t *testing.T) {
		Close()
		require.NoError(t, Open(Options{}))
		require.NoError(t, Open(Options{Level: "not-a-level"}), "second call is a no-op")
		Close()
	})
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "info"},
		{"debug", "debug"},
		{"WARN", "warn"},
		{"error", "error"},
	}
	for _, tt := range tests {
		l, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, l.String())
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "info", Format: FormatConsole, Output: &buf})
	require.NoError(t, err)

	l.Info("connected")
	assert.Contains(t, buf.String(), " | INFO | ")
	assert.Contains(t, buf.String(), "connected")
}

func TestBuilder(t *testing.T) {
	var got []Entry
	remove := AddSink(func(e Entry) { got = append(got, e) })
	defer remove()

	Event("cli:find", "find").
		Collection("pages").
		Detail("filter", map[string]any{"status": "draft"}).
		Write(nil)
	Event("cli:rm", "delete").ID("7").Write(errors.New("boom"))

	require.Len(t, got, 2)
	assert.Equal(t, "cli:find", got[0].Source)
	assert.Equal(t, "pages", got[0].Collection)
	assert.True(t, got[0].Success)
	assert.Equal(t, map[string]any{"status": "draft"}, got[0].Detail["filter"])
	assert.False(t, got[0].End.Before(got[0].Start))
	assert.GreaterOrEqual(t, got[0].Duration(), time.Duration(0))

	assert.False(t, got[1].Success)
	assert.Equal(t, "boom", got[1].Error)
	assert.Equal(t, "7", got[1].ID)

	remove()
	Event("cli:find", "find").Write(nil)
	assert.Len(t, got, 2, "removed sink receives nothing")
}
