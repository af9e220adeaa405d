package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Str("item_id", "item-1").Msg("sync started")

	out := buf.String()
	assert.Contains(t, out, "sync started")
	assert.Contains(t, out, `"item_id":"item-1"`)
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	scoped := NewWithWriter(buf).With().Str("request_id", "abc").Logger()

	ctx := WithContext(context.Background(), scoped)
	FromContext(ctx).Info().Msg("hello")

	assert.Contains(t, buf.String(), `"request_id":"abc"`)
}

func TestFromContext_Default(t *testing.T) {
	l := FromContext(context.Background())
	assert.NotNil(t, l)
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  zerolog.Level
	}{
		{name: "debug", level: "debug", want: zerolog.DebugLevel},
		{name: "upper case", level: "WARN", want: zerolog.WarnLevel},
		{name: "empty falls back to info", level: "", want: zerolog.InfoLevel},
		{name: "garbage falls back to info", level: "loud", want: zerolog.InfoLevel},
	}

	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Setup(tt.level, "json")
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}
