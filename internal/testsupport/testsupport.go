// Package testsupport holds helpers shared by the end-to-end tests.
package testsupport

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
)

var (
	buildOnce sync.Once
	buildPath string
	buildErr  error
)

// BuildStarcat compiles cmd/starcat once per test process and returns
// the binary path. Tests that exercise the real subprocess lifecycle
// need an actual executable, not an in-process server.
func BuildStarcat(t *testing.T) string {
	t.Helper()
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "loadcheck-bin-")
		if err != nil {
			buildErr = err
			return
		}
		buildPath = filepath.Join(dir, "starcat")
		cmd := exec.Command("go", "build", "-o", buildPath, "loadcheck/cmd/starcat")
		cmd.Dir = moduleRoot()
		if out, err := cmd.CombinedOutput(); err != nil {
			buildErr = fmt.Errorf("building starcat: %w\n%s", err, out)
		}
	})
	if buildErr != nil {
		t.Fatalf("cannot build service binary: %v", buildErr)
	}
	return buildPath
}

func moduleRoot() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(thisFile), "..", "..")
}
