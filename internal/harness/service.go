// Package harness manages the service under test as a subprocess: it
// spawns the binary on an ephemeral port, waits for the readiness
// markers on the diagnostic stream, hands out a request issuer, and
// guarantees the process is gone after Release.
package harness

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"loadcheck/internal/config"
	"loadcheck/internal/starcat"
)

// ErrStartupTimeout means the service did not report enough ready
// workers in time. There is no degraded mode: a run against a service
// that may not be listening is meaningless, so this aborts.
var ErrStartupTimeout = errors.New("service startup timed out")

const (
	defaultStartupTimeout = 10 * time.Second
	defaultShutdownGrace  = 10 * time.Second
	defaultRequestTimeout = 1 * time.Second
)

// Config describes how to spawn and wait for the service under test.
type Config struct {
	// Binary is the path of the service executable.
	Binary string

	// Workers is the number of readiness markers to wait for; it is also
	// exported to the service as its worker count.
	Workers int

	// IDLimit and MaxDelay shape the service's behavior for this run.
	IDLimit  int
	MaxDelay time.Duration

	// ReadyMarker is the substring of a diagnostic line counted as one
	// "worker ready" signal. Defaults to the starcat marker.
	ReadyMarker string

	StartupTimeout time.Duration
	ShutdownGrace  time.Duration
	RequestTimeout time.Duration

	// CaptureFile, when set, receives a rotating copy of everything the
	// service writes on either stream.
	CaptureFile string

	// Env holds extra KEY=VALUE overrides appended after the harness's
	// own, so callers win.
	Env []string

	Logger *slog.Logger
}

func (c *Config) fillDefaults() {
	if c.Workers < 1 {
		c.Workers = 2
	}
	if c.ReadyMarker == "" {
		c.ReadyMarker = starcat.ReadyMarker
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = defaultStartupTimeout
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = defaultShutdownGrace
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Service owns one running subprocess. Exactly one exists per test
// session; Release is safe to call more than once and always leaves no
// live process behind.
type Service struct {
	cfg    Config
	cmd    *exec.Cmd
	port   int
	logger *slog.Logger

	stdout *lineBuffer
	stderr *lineBuffer

	waitErr     chan error
	releaseOnce sync.Once
	releaseErr  error
}

// Acquire allocates an unused port, spawns the service bound to it with
// the run's environment overrides, and blocks until one readiness marker
// per expected worker has been seen or the startup timeout elapses.
func Acquire(cfg Config) (*Service, error) {
	cfg.fillDefaults()

	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("allocating port: %w", err)
	}

	var capture *lumberjack.Logger
	if cfg.CaptureFile != "" {
		capture = &lumberjack.Logger{
			Filename:   cfg.CaptureFile,
			MaxSize:    20, // megabytes
			MaxBackups: 10,
			MaxAge:     30, // days
		}
	}

	cmd := exec.Command(cfg.Binary)
	cmd.Env = append(os.Environ(),
		config.PortEnv+"="+strconv.Itoa(port),
		config.WorkersEnv+"="+strconv.Itoa(cfg.Workers),
		config.IDLimitEnv+"="+strconv.Itoa(cfg.IDLimit),
		config.MaxDelayEnv+"="+strconv.Itoa(int(cfg.MaxDelay.Milliseconds())),
	)
	cmd.Env = append(cmd.Env, cfg.Env...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	s := &Service{
		cfg:     cfg,
		cmd:     cmd,
		port:    port,
		logger:  cfg.Logger,
		stdout:  newLineBuffer(capture),
		stderr:  newLineBuffer(capture),
		waitErr: make(chan error, 1),
	}

	s.logger.Info("starting service",
		slog.String("binary", cfg.Binary),
		slog.Int("port", port),
		slog.Int("workers", cfg.Workers),
		slog.Int("idLimit", cfg.IDLimit),
		slog.Duration("maxDelay", cfg.MaxDelay))

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", cfg.Binary, err)
	}

	// Line-based scanning on purpose: a fixed suffix matched byte by
	// byte can straddle read boundaries, a line cannot.
	readyCh := make(chan struct{}, 1)
	stdoutDone := make(chan struct{})
	stderrDone := make(chan struct{})
	go func() {
		defer close(stdoutDone)
		sc := bufio.NewScanner(stdoutPipe)
		for sc.Scan() {
			s.stdout.append(sc.Text())
		}
	}()
	go func() {
		defer close(stderrDone)
		sc := bufio.NewScanner(stderrPipe)
		for sc.Scan() {
			line := sc.Text()
			s.stderr.append(line)
			if strings.Contains(line, cfg.ReadyMarker) {
				select {
				case readyCh <- struct{}{}:
				default:
				}
			}
		}
	}()
	go func() {
		// Wait must run after both pipes hit EOF.
		<-stdoutDone
		<-stderrDone
		s.waitErr <- cmd.Wait()
	}()

	deadline := time.NewTimer(cfg.StartupTimeout)
	defer deadline.Stop()
	ready := 0
	for ready < cfg.Workers {
		select {
		case <-readyCh:
			// The channel only signals "at least one new marker";
			// recount from the captured stream.
			ready = s.countReadyLines()
		case err := <-s.waitErr:
			s.waitErr <- err
			_ = s.Release()
			return nil, fmt.Errorf("service exited before becoming ready (%v):\n%s",
				err, strings.Join(s.stderr.lines(), "\n"))
		case <-deadline.C:
			_ = s.Release()
			return nil, fmt.Errorf("%w: %d/%d workers ready after %s",
				ErrStartupTimeout, ready, cfg.Workers, cfg.StartupTimeout)
		}
	}

	s.logger.Info("service ready", slog.Int("workers", ready), slog.Int("port", port))
	return s, nil
}

func (s *Service) countReadyLines() int {
	n := 0
	for _, line := range s.stderr.lines() {
		if strings.Contains(line, s.cfg.ReadyMarker) {
			n++
		}
	}
	return n
}

// Port returns the ephemeral port the service is bound to.
func (s *Service) Port() int {
	return s.port
}

// Issuer returns a request issuer bound to this service. The client is
// persistent and shared; the per-request timeout is fixed.
func (s *Service) Issuer() *RequestIssuer {
	return &RequestIssuer{
		baseURL: fmt.Sprintf("http://localhost:%d", s.port),
		client:  &http.Client{Timeout: s.cfg.RequestTimeout},
		logger:  s.logger,
	}
}

// Release stops the service: interrupt first, escalate to a hard kill if
// it has not exited within the grace period, then drain the captured
// output. Calling it again is a no-op returning the first result. It is
// also safe when acquisition failed partway through.
func (s *Service) Release() error {
	s.releaseOnce.Do(func() {
		s.releaseErr = s.release()
	})
	return s.releaseErr
}

func (s *Service) release() error {
	if s.cmd.Process == nil {
		return nil
	}

	s.logger.Info("stopping service", slog.Int("pid", s.cmd.Process.Pid))
	// Ignore the error: the process may already be gone.
	_ = s.cmd.Process.Signal(syscall.SIGINT)

	grace := time.NewTimer(s.cfg.ShutdownGrace)
	defer grace.Stop()
	var waitErr error
	select {
	case waitErr = <-s.waitErr:
		s.logger.Info("service stopped")
	case <-grace.C:
		// ShutdownTimeout is recovered, not fatal: the run's outcome
		// does not depend on how the service died.
		s.logger.Warn("service ignored interrupt, killing",
			slog.Duration("grace", s.cfg.ShutdownGrace))
		_ = s.cmd.Process.Kill()
		waitErr = <-s.waitErr
	}

	s.stdout.close()

	if diag := s.stderr.lines(); len(diag) > 0 {
		s.logger.Debug("service diagnostics", slog.Int("lines", len(diag)))
	}
	access := s.AccessLog()
	s.logger.Info("service access log (deduplicated)", slog.Int("uniqueLines", len(access)))
	for _, line := range access {
		s.logger.Info(line)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			// Interrupt/kill produce non-zero exits; that is expected.
			return nil
		}
		return waitErr
	}
	return nil
}

// AccessLog returns the captured stdout lines, deduplicated preserving
// first-occurrence order.
func (s *Service) AccessLog() []string {
	set := NewOrderedSet()
	for _, line := range s.stdout.lines() {
		set.Add(line)
	}
	return set.Values()
}

// Diagnostics returns the raw captured stderr lines.
func (s *Service) Diagnostics() []string {
	return s.stderr.lines()
}

// Exited reports whether the subprocess has terminated.
func (s *Service) Exited() bool {
	return s.cmd.ProcessState != nil
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

// lineBuffer accumulates captured output lines, optionally teeing them
// into a rotating capture file.
type lineBuffer struct {
	mu      sync.Mutex
	items   []string
	capture *lumberjack.Logger
}

func newLineBuffer(capture *lumberjack.Logger) *lineBuffer {
	return &lineBuffer{capture: capture}
}

func (b *lineBuffer) append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, line)
	if b.capture != nil {
		_, _ = b.capture.Write([]byte(line + "\n"))
	}
}

func (b *lineBuffer) lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.items))
	copy(out, b.items)
	return out
}

func (b *lineBuffer) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.capture != nil {
		_ = b.capture.Close()
		b.capture = nil
	}
}
