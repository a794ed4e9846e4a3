package stress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSmallLoad(t *testing.T) {
	result, err := Run(context.Background(), Config{
		Cards:    50,
		Sessions: 4,
		Duration: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.True(t, result.Success, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Greater(t, result.Metrics.Reviews, 0)
	assert.Greater(t, result.Metrics.SessionsStarted, 0)
	assert.Equal(t, 1.0, result.Metrics.StabilityScore)
	assert.NotEmpty(t, result.Recommendations)
}

func TestRunDefaults(t *testing.T) {
	if testing.Short() {
		t.Skip("default load takes seconds")
	}
	result, err := Run(context.Background(), Config{Duration: time.Second})
	require.NoError(t, err)
	assert.True(t, result.Success, "errors: %v", result.Errors)
	// Largest configured load: snapshot construction stays sub-second.
	assert.Less(t, result.Metrics.AvgQueueBuild, time.Second)
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	result, err := Run(ctx, Config{Cards: 10, Sessions: 2, Duration: 10 * time.Second})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.NotNil(t, result)
}

func TestPercentile(t *testing.T) {
	samples := []time.Duration{5, 1, 4, 2, 3}
	assert.Equal(t, time.Duration(3), percentile(samples, 0.5))
	assert.Equal(t, time.Duration(5), percentile(samples, 1.0))
	assert.Equal(t, time.Duration(0), percentile(nil, 0.95))
}

func TestMean(t *testing.T) {
	assert.Equal(t, time.Duration(2), mean([]time.Duration{1, 2, 3}))
	assert.Equal(t, time.Duration(0), mean(nil))
}
