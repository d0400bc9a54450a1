package stats_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadcheck/internal/loadgen"
	"loadcheck/internal/stats"
)

func sample(offsetMs int, elapsed time.Duration, ok bool) loadgen.Sample {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return loadgen.Sample{
		Start:   base.Add(time.Duration(offsetMs) * time.Millisecond),
		Elapsed: elapsed,
		OK:      ok,
	}
}

func TestSummarize(t *testing.T) {
	t.Run("known synthetic sample set", func(t *testing.T) {
		samples := []loadgen.Sample{
			sample(0, 100*time.Millisecond, true),
			sample(10, 200*time.Millisecond, true),
			sample(20, 300*time.Millisecond, false),
		}

		summary, err := stats.Summarize(samples)
		require.NoError(t, err)

		assert.Equal(t, 3, summary.Count)
		assert.Equal(t, 1, summary.Failed)
		assert.InDelta(t, 0.2, summary.Mean, 1e-9)
		// Unbiased sample stdev of {0.1, 0.2, 0.3}.
		assert.InDelta(t, 0.1, summary.Stdev, 1e-9)
	})

	t.Run("all failures still counted", func(t *testing.T) {
		samples := []loadgen.Sample{
			sample(0, time.Second, false),
			sample(10, time.Second, false),
		}

		summary, err := stats.Summarize(samples)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Count)
		assert.Equal(t, 2, summary.Failed)
		assert.InDelta(t, 1.0, summary.Mean, 1e-9)
		assert.InDelta(t, 0.0, summary.Stdev, 1e-9)
	})

	t.Run("empty input is an error", func(t *testing.T) {
		_, err := stats.Summarize(nil)
		assert.ErrorIs(t, err, stats.ErrInsufficientSamples)
	})

	t.Run("single sample is an error", func(t *testing.T) {
		_, err := stats.Summarize([]loadgen.Sample{sample(0, time.Millisecond, true)})
		assert.ErrorIs(t, err, stats.ErrInsufficientSamples)
	})
}
