package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want zapcore.Level
	}{
		{name: "console quiet", opts: Options{}, want: zapcore.WarnLevel},
		{name: "console info", opts: Options{Verbosity: 1}, want: zapcore.InfoLevel},
		{name: "json debug", opts: Options{JSON: true, Verbosity: 2}, want: zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.opts)
			require.NoError(t, err)
			require.NotNil(t, l)

			assert.True(t, l.Desugar().Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, l.Desugar().Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestVerbosityToLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, VerbosityToLevel(-1))
	assert.Equal(t, zapcore.WarnLevel, VerbosityToLevel(0))
	assert.Equal(t, zapcore.InfoLevel, VerbosityToLevel(1))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(2))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(5))
}

func TestNop(t *testing.T) {
	l := Nop()
	require.NotNil(t, l)
	assert.False(t, l.Desugar().Core().Enabled(zapcore.ErrorLevel))
}
