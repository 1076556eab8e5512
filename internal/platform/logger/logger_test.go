package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	for _, mode := range []string{"development", "production", "PROD", ""} {
		log, err := New(mode)
		require.NoError(t, err, mode)
		require.NotNil(t, log.SugaredLogger)
	}
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := &Logger{SugaredLogger: zap.New(core).Sugar()}

	log.With("sku", "LAMP").Info("allocated", "batchref", "b1")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "allocated", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "LAMP", fields["sku"])
	assert.Equal(t, "b1", fields["batchref"])
}

func TestNewNopDiscards(t *testing.T) {
	log := NewNop()
	log.Info("ignored", "k", "v")
	log.Sync()
}
