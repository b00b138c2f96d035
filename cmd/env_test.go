// Testing Strategy Design Decision:
//
// The cmd/ package contains CLI integration tests that exercise the full stack:
// command parsing -> extension -> cms actions -> database facade -> SQLite.
//
// Each test gets its own HOME and working directory, so neither the global
// nor a local config leaks in, and CMS_SQLITE_PATH points at a temp file.
// Only stdout is parsed; logs go to stderr and are shown on failure.

package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	binaryPath string
	buildOnce  sync.Once
	buildErr   error
)

// buildBinary compiles the cmsdb binary once for all tests.
func buildBinary(t *testing.T) string {
	t.Helper()

	buildOnce.Do(func() {
		tmpDir, err := os.MkdirTemp("", "cmsdb-test-bin-*")
		if err != nil {
			buildErr = err
			return
		}

		binaryName := "cmsdb"
		if os.PathSeparator == '\\' {
			binaryName = "cmsdb.exe"
		}
		binaryPath = filepath.Join(tmpDir, binaryName)

		// Project root is the parent of cmd/
		wd := mustGetwd()
		projectRoot := filepath.Dir(wd)

		cmd := exec.Command("go", "build", "-o", binaryPath, ".")
		cmd.Dir = projectRoot
		if out, err := cmd.CombinedOutput(); err != nil {
			buildErr = &buildError{err: err, output: string(out)}
			return
		}
	})

	if buildErr != nil {
		t.Fatalf("failed to build binary: %v", buildErr)
	}
	return binaryPath
}

type buildError struct {
	err    error
	output string
}

func (e *buildError) Error() string {
	return e.err.Error() + "\n" + e.output
}

func mustGetwd() string {
	dir, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return dir
}

// testEnv holds test environment state.
type testEnv struct {
	t      *testing.T
	dir    string
	home   string
	dbPath string
	binary string
}

// newTestEnv creates an isolated environment with an initialised database.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newBareEnv(t)
	env.run("init")
	return env
}

// newBareEnv creates an isolated environment without running init.
func newBareEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	return &testEnv{
		t:      t,
		dir:    dir,
		home:   t.TempDir(),
		dbPath: filepath.Join(dir, "cms.db"),
		binary: buildBinary(t),
	}
}

// environ returns a clean environment: no inherited CMS_* variables.
func (e *testEnv) environ() []string {
	var env []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "CMS_") || strings.HasPrefix(kv, "HOME=") {
			continue
		}
		env = append(env, kv)
	}
	return append(env,
		"HOME="+e.home,
		"CMS_SQLITE_PATH="+e.dbPath,
		"CMS_LOG_LEVEL=error",
	)
}

// run executes cmsdb with the given args and returns stdout.
func (e *testEnv) run(args ...string) string {
	e.t.Helper()
	out, stderr, err := e.exec("", args...)
	if err != nil {
		e.t.Fatalf("cmsdb %v failed: %v\nstdout: %s\nstderr: %s", args, err, out, stderr)
	}
	return out
}

// runErr executes cmsdb and returns stdout plus stderr, and any error.
func (e *testEnv) runErr(args ...string) (string, error) {
	e.t.Helper()
	out, stderr, err := e.exec("", args...)
	return out + stderr, err
}

// runStdin executes cmsdb with stdin input.
func (e *testEnv) runStdin(input string, args ...string) string {
	e.t.Helper()
	out, stderr, err := e.exec(input, args...)
	if err != nil {
		e.t.Fatalf("cmsdb %v failed: %v\nstdout: %s\nstderr: %s", args, err, out, stderr)
	}
	return out
}

func (e *testEnv) exec(input string, args ...string) (string, string, error) {
	e.t.Helper()
	cmd := exec.Command(e.binary, args...)
	cmd.Dir = e.dir
	cmd.Env = e.environ()
	cmd.Stdin = strings.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// runJSON runs cmsdb with -o json and decodes stdout into v.
func (e *testEnv) runJSON(v any, args ...string) {
	e.t.Helper()
	out := e.run(append(args, "-o", "json")...)
	require.NoError(e.t, json.Unmarshal([]byte(out), v), "stdout: %s", out)
}

// object runs cmsdb with -o json and returns a JSON object.
func (e *testEnv) object(args ...string) map[string]any {
	e.t.Helper()
	var m map[string]any
	e.runJSON(&m, args...)
	return m
}

// contains checks if output contains expected string.
func (e *testEnv) contains(output, expected string) {
	e.t.Helper()
	assert.Contains(e.t, output, expected)
}

// equals checks if output equals expected string (trimmed).
func (e *testEnv) equals(output, expected string) {
	e.t.Helper()
	assert.Equal(e.t, strings.TrimSpace(expected), strings.TrimSpace(output))
}
