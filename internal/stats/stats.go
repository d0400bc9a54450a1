// Package stats reduces a sample sequence to aggregate metrics.
package stats

import (
	"errors"
	"math"

	"loadcheck/internal/loadgen"
)

// ErrInsufficientSamples means fewer than two latency values were
// available. The sample standard deviation is undefined there, and a
// silent zero would be a lie the caller might act on.
var ErrInsufficientSamples = errors.New("need at least two samples to summarize")

// Summary holds the aggregate metrics for one run. Latencies are in
// seconds.
type Summary struct {
	Count  int
	Failed int
	Mean   float64
	Stdev  float64
}

// Summarize computes count, failure count, arithmetic mean and the
// unbiased (n-1) sample standard deviation over all sample latencies,
// failed attempts included.
func Summarize(samples []loadgen.Sample) (Summary, error) {
	if len(samples) < 2 {
		return Summary{}, ErrInsufficientSamples
	}

	sum := Summary{Count: len(samples)}
	var total float64
	for _, s := range samples {
		if !s.OK {
			sum.Failed++
		}
		total += s.Elapsed.Seconds()
	}
	sum.Mean = total / float64(len(samples))

	var sq float64
	for _, s := range samples {
		d := s.Elapsed.Seconds() - sum.Mean
		sq += d * d
	}
	sum.Stdev = math.Sqrt(sq / float64(len(samples)-1))

	return sum, nil
}
