package starcat

import (
	"log/slog"
	"sync"
	"time"
)

// ReadyMarker is the line each request worker emits on the diagnostic
// stream once it is accepting work. The harness counts these lines to
// decide when the service is ready.
const ReadyMarker = "worker ready"

type job struct {
	delay  time.Duration
	cancel <-chan struct{}
	done   chan bool
}

// Pool is a fixed set of request workers. Every request is handed to one
// worker, which simulates the configured amount of work before the
// response is written. Pool size therefore bounds request concurrency the
// same way server worker processes would.
type Pool struct {
	workerCount int
	logger      *slog.Logger
	jobs        chan job
	wg          sync.WaitGroup
}

func NewPool(workerCount int, logger *slog.Logger) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{
		workerCount: workerCount,
		logger:      logger,
		jobs:        make(chan job),
	}
}

// Start launches the workers. Each one logs ReadyMarker exactly once.
func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	p.logger.Info(ReadyMarker, slog.Int("worker", id))
	for j := range p.jobs {
		if j.delay <= 0 {
			j.done <- true
			continue
		}
		timer := time.NewTimer(j.delay)
		select {
		case <-timer.C:
			j.done <- true
		case <-j.cancel:
			timer.Stop()
			j.done <- false
		}
	}
}

// Process blocks until a worker has handled the simulated work for one
// request. It returns false when cancel fires first, either while the
// job is queued or mid-work. In the service, cancel is the server's
// shutdown signal.
func (p *Pool) Process(cancel <-chan struct{}, delay time.Duration) bool {
	j := job{delay: delay, cancel: cancel, done: make(chan bool, 1)}
	select {
	case p.jobs <- j:
	case <-cancel:
		return false
	}
	return <-j.done
}

// Close stops accepting work and waits for the workers to drain.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
