package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" info ", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func capture(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Init(Config{Level: level, Format: "json", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })
	return &buf
}

func TestInit_JSONOutput(t *testing.T) {
	buf := capture(t, "info")

	Info().Str("destination", "Kasol").Msg("optimised")
	Debug().Msg("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "optimised", entry["message"])
	assert.Equal(t, "Kasol", entry["destination"])
	assert.Contains(t, entry, "time")
}

func TestCtx_RequestID(t *testing.T) {
	buf := capture(t, "info")

	ctx := WithRequestID(context.Background(), "req-42")
	assert.Equal(t, "req-42", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))

	Ctx(ctx).Info().Msg("hello")
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
}

func TestTime(t *testing.T) {
	buf := capture(t, "debug")
	ctx := context.Background()

	func() (err error) {
		defer Time(ctx, "ok.op")(&err)
		return nil
	}()
	assert.Contains(t, buf.String(), `"op":"ok.op"`)
	assert.Contains(t, buf.String(), "operation complete")

	buf.Reset()
	_ = func() (err error) {
		defer Time(ctx, "bad.op")(&err)
		return errors.New("boom")
	}()
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"error":"boom"`)
}
