package e2e

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadcheck/internal/chart"
	"loadcheck/internal/loadgen"
	"loadcheck/internal/stats"
)

const (
	// Short enough for CI; the wall-clock bound is what matters, not
	// the sample volume.
	testDuration = 3 * time.Second
	endpointPath = "people/0"
	// One more load worker than the service has request workers, so
	// the service stays saturated.
	loadWorkers = serviceWorkers + 1
)

func runLoad(t *testing.T, strategy loadgen.Strategy, maxDelay time.Duration) []loadgen.Sample {
	t.Helper()
	svc := acquireService(t, maxDelay)

	issuer := svc.Issuer()
	start := time.Now()
	samples := strategy.Run(issuer.Issue, start.Add(testDuration))
	elapsed := time.Since(start)

	require.NotEmpty(t, samples)
	// Deadline overshoot is bounded by one in-flight request timeout.
	assert.Less(t, elapsed, testDuration+2*time.Second,
		"run must stay within the wall-clock budget")

	summary, err := stats.Summarize(samples)
	require.NoError(t, err)
	assert.Zero(t, summary.Failed, "%d/%d requests failed", summary.Failed, summary.Count)
	assert.Greater(t, summary.Mean, 0.0)

	rendered, err := chart.Renderer{}.Render(samples, start)
	require.NoError(t, err)
	assert.NotEmpty(t, rendered)
	t.Log("\n" + rendered)

	return samples
}

func TestPerformanceSequentialNoDelay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}
	runLoad(t, loadgen.Sequential{Path: endpointPath}, 0)
}

func TestPerformanceSequentialWithDelay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}
	runLoad(t, loadgen.Sequential{Path: endpointPath}, 10*time.Millisecond)
}

func TestPerformanceConcurrentNoDelay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}
	samples := runLoad(t, loadgen.Concurrent{Path: endpointPath, Workers: loadWorkers}, 0)

	sorted := sort.SliceIsSorted(samples, func(i, j int) bool {
		return samples[i].Start.Before(samples[j].Start)
	})
	assert.True(t, sorted, "concurrent samples must be merged in start-time order")
}

func TestPerformanceConcurrentWithDelay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}
	runLoad(t, loadgen.Concurrent{Path: endpointPath, Workers: loadWorkers}, 10*time.Millisecond)
}
