package dlogger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestGetLogger(t *testing.T) {
	for _, level := range []string{LogLevelInfo, LogLevelDebug, LogLevelWarn} {
		level := level
		t.Run(level, func(t *testing.T) {
			l, err := GetLogger(level, WithConsole(), WithOutput("stderr"))
			require.NoError(t, err)
			require.NotNil(t, l)

			var expected zapcore.Level
			require.NoError(t, expected.UnmarshalText([]byte(level)))
			assert.True(t, l.Core().Enabled(expected))
		})
	}

	l, err := GetLogger(LogLevelNone)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))

	_, err = GetLogger("chatty")
	require.Error(t, err)

	assert.Panics(t, func() { _ = MustGetLogger("chatty") })
}
