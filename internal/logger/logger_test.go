package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_NamedWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.Named("journal").With("user", "u1").Infow("write rolled back", "op", "upsert")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "journal", entries[0].LoggerName)
	assert.Equal(t, map[string]interface{}{"user": "u1", "op": "upsert"}, entries[0].ContextMap())
}

func TestNop_Discards(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Named("x").With("k", 1).Errorw("dropped")
	})
}
