package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"debug", "DEBUG", true},
		{"INFO", "INFO", true},
		{"", "INFO", true},
		{"warning", "WARN", true},
		{"error", "ERROR", true},
		{"verbose", "INFO", false},
	}

	for _, tt := range tests {
		lvl, err := ParseLevel(tt.in)
		if tt.ok {
			require.NoError(t, err, tt.in)
		} else {
			require.Error(t, err, tt.in)
		}
		assert.Equal(t, tt.want, lvl.String(), tt.in)
	}
}

func TestLazyLogger_FollowsOutputAndLevel(t *testing.T) {
	prev := Default()
	prevLevel := GetLevel()
	defer func() {
		SetDefault(prev)
		SetLevel(prevLevel)
	}()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)

	l := Logger("test/component")
	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.Info("shown", "k", 1)
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "component=test/component")

	buf.Reset()
	SetLevel(LevelDebug)
	assert.True(t, l.Enabled(LevelDebug))
	l.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("dropped")
	assert.False(t, l.Enabled(context.Background(), LevelError))
}
