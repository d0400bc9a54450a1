// Package loadgen drives request load against a deadline and collects
// per-request samples. Strategies are deadline-bounded rather than
// count-bounded so a run always fits a known wall-clock budget, whatever
// the service's latency happens to be.
package loadgen

import (
	"sort"
	"sync"
	"time"

	"loadcheck/internal/harness"
)

// Sample records one attempted request. It is immutable once produced;
// failed attempts (timeouts, non-2xx) are samples like any other.
type Sample struct {
	// Start is when the request was issued (carries Go's monotonic
	// reading, so differences are safe).
	Start time.Time

	// Elapsed is how long the attempt took. For successes this is the
	// response-reported time; for failures the wall-clock time spent.
	Elapsed time.Duration

	// OK is false for transport failures and non-2xx statuses.
	OK bool
}

// RequestFunc issues one GET and returns nil on transport failure. It is
// satisfied by (*harness.RequestIssuer).Issue.
type RequestFunc func(path string) *harness.Response

// Strategy runs request load until the deadline and returns the samples
// in Start order.
type Strategy interface {
	Run(fn RequestFunc, deadline time.Time) []Sample
}

// Sequential issues requests one at a time until the deadline. The
// request in flight when the deadline passes is still recorded, so a run
// can overshoot by at most one request timeout; that slack is accepted.
type Sequential struct {
	// Path is the request path, e.g. "people/0".
	Path string
}

func (s Sequential) Run(fn RequestFunc, deadline time.Time) []Sample {
	var samples []Sample
	for {
		now := time.Now()
		if now.After(deadline) {
			break
		}
		resp := fn(s.Path)
		took := time.Since(now)
		if resp == nil || !resp.OK() {
			samples = append(samples, Sample{Start: now, Elapsed: took, OK: false})
		} else {
			samples = append(samples, Sample{Start: now, Elapsed: resp.Elapsed, OK: true})
		}
	}
	return samples
}

// Concurrent runs Workers independent sequential loops against the same
// deadline and request function. Workers share nothing mutable: each
// appends to its own slice and the results are merged only after all
// have terminated (fork-join). The merge re-sorts by start time because
// the workers never coordinate a shared ordering while running.
type Concurrent struct {
	Path    string
	Workers int
}

func (c Concurrent) Run(fn RequestFunc, deadline time.Time) []Sample {
	workers := c.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([][]Sample, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot] = Sequential{Path: c.Path}.Run(fn, deadline)
		}(i)
	}
	wg.Wait()

	var merged []Sample
	for _, r := range results {
		merged = append(merged, r...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start.Before(merged[j].Start)
	})
	return merged
}
