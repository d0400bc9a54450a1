package harness_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadcheck/internal/harness"
)

// writeStub writes an executable shell script standing in for the
// service under test, so lifecycle behavior can be tested without
// building the real binary.
func writeStub(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub-service")
	script := "#!/bin/sh\n" + body
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestAcquireAndGracefulRelease(t *testing.T) {
	stub := writeStub(t, `
trap 'exit 0' INT TERM
echo 'GET /people/0 200'
echo 'GET /people/0 200'
echo 'GET /people/1 200'
echo 'level=INFO msg="worker ready" worker=0' >&2
echo 'level=INFO msg="worker ready" worker=1' >&2
while :; do sleep 0.05; done
`)

	svc, err := harness.Acquire(harness.Config{
		Binary:        stub,
		Workers:       2,
		ShutdownGrace: 3 * time.Second,
		Logger:        discardLogger(),
	})
	require.NoError(t, err)
	assert.Greater(t, svc.Port(), 0)

	require.NoError(t, svc.Release())
	assert.True(t, svc.Exited(), "no live subprocess may remain after release")

	assert.Equal(t, []string{
		"GET /people/0 200",
		"GET /people/1 200",
	}, svc.AccessLog(), "access log is deduplicated preserving first-occurrence order")
}

func TestReleaseIsIdempotent(t *testing.T) {
	stub := writeStub(t, `
echo 'msg="worker ready"' >&2
trap 'exit 0' INT TERM
while :; do sleep 0.05; done
`)

	svc, err := harness.Acquire(harness.Config{
		Binary:  stub,
		Workers: 1,
		Logger:  discardLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Release())
	require.NoError(t, svc.Release())
	assert.True(t, svc.Exited())
}

func TestReleaseEscalatesToKill(t *testing.T) {
	// The stub ignores the interrupt; release must fall back to a hard
	// kill and still leave no live process.
	stub := writeStub(t, `
trap '' INT TERM
echo 'msg="worker ready"' >&2
while :; do sleep 0.05; done
`)

	svc, err := harness.Acquire(harness.Config{
		Binary:        stub,
		Workers:       1,
		ShutdownGrace: 200 * time.Millisecond,
		Logger:        discardLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Release())
	assert.True(t, svc.Exited())
}

func TestAcquireStartupTimeout(t *testing.T) {
	// One marker only, two expected: the harness must give up.
	stub := writeStub(t, `
echo 'msg="worker ready"' >&2
trap 'exit 0' INT TERM
while :; do sleep 0.05; done
`)

	_, err := harness.Acquire(harness.Config{
		Binary:         stub,
		Workers:        2,
		StartupTimeout: 400 * time.Millisecond,
		ShutdownGrace:  2 * time.Second,
		Logger:         discardLogger(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, harness.ErrStartupTimeout)
}

func TestAcquireServiceExitsEarly(t *testing.T) {
	stub := writeStub(t, `
echo 'bind failed' >&2
exit 1
`)

	_, err := harness.Acquire(harness.Config{
		Binary:  stub,
		Workers: 2,
		Logger:  discardLogger(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before becoming ready")
	assert.Contains(t, err.Error(), "bind failed")
}

func TestDiagnosticsCaptureStderr(t *testing.T) {
	stub := writeStub(t, `
trap 'exit 0' INT TERM
echo 'level=WARN msg="slow disk"' >&2
echo 'msg="worker ready"' >&2
while :; do sleep 0.05; done
`)

	svc, err := harness.Acquire(harness.Config{
		Binary:  stub,
		Workers: 1,
		Logger:  discardLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, svc.Release())

	diag := svc.Diagnostics()
	assert.Contains(t, diag, `msg="worker ready"`)
	assert.Contains(t, diag, `level=WARN msg="slow disk"`)
}

func TestAcquireCapturesToFile(t *testing.T) {
	stub := writeStub(t, `
trap 'exit 0' INT TERM
echo 'GET /planets/1 200'
echo 'msg="worker ready"' >&2
while :; do sleep 0.05; done
`)

	captureFile := filepath.Join(t.TempDir(), "service.log")
	svc, err := harness.Acquire(harness.Config{
		Binary:      stub,
		Workers:     1,
		CaptureFile: captureFile,
		Logger:      discardLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, svc.Release())

	data, err := os.ReadFile(captureFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "GET /planets/1 200")
	assert.Contains(t, string(data), "worker ready")
}
