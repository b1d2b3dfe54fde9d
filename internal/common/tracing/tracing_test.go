package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lifeboard/lifeboard/internal/common/config"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), "gateway-service", "test",
		config.TracingConfig{Enabled: false}, zap.NewNop())

	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSamplerClampsRate(t *testing.T) {
	// Out-of-range rates fall back to always-on sampling rather than
	// silently dropping every span
	assert.NotNil(t, sampler(0))
	assert.NotNil(t, sampler(-0.5))
	assert.NotNil(t, sampler(2))
	assert.NotNil(t, sampler(0.25))
}
