package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewConfigByEnv(t *testing.T) {
	prod := newConfig("prod")
	assert.Equal(t, zapcore.InfoLevel, prod.Level.Level())
	assert.Equal(t, "json", prod.Encoding)

	dev := newConfig("dev")
	assert.Equal(t, zapcore.DebugLevel, dev.Level.Level())
	assert.Equal(t, "console", dev.Encoding)

	for _, cfg := range []struct{ out, errOut []string }{
		{prod.OutputPaths, prod.ErrorOutputPaths},
		{dev.OutputPaths, dev.ErrorOutputPaths},
	} {
		assert.Equal(t, []string{"stderr"}, cfg.out)
		assert.Equal(t, []string{"stderr"}, cfg.errOut)
	}
	assert.Equal(t, "timestamp", dev.EncoderConfig.TimeKey)
}

func TestNewSugar(t *testing.T) {
	logger, err := NewSugar("prod")
	require.NoError(t, err)
	assert.False(t, logger.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Desugar().Core().Enabled(zapcore.InfoLevel))
}
