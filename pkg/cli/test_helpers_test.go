package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
)

// isolate points HOME at a temp dir and clears POLITE_* variables so tests
// never see the developer's profile or environment.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"POLITE_DB", "POLITE_OUTPUT", "POLITE_LOG_LEVEL", "POLITE_PARALLEL", "POLITE_FLIGHT_ADDR", "POLITE_ATOMIC"} {
		t.Setenv(k, "")
	}
	return home
}

// runCLI executes the command line with args and returns stdout, stderr and
// the exit code.
func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

// tempDB returns the path of a not yet existing SQLite file.
func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// syncBuffer is a bytes.Buffer safe for a writer and a polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
