// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"net/http"
	"os"
	"testing"
)

// ErrInjected is returned by the failing readers and writers in this package.
var ErrInjected = errors.New("injected failure")

// FWriter fails every write, for output error paths of CLI commands.
type FWriter struct{}

func (*FWriter) Write([]byte) (int, error) { return 0, ErrInjected }

// LimitedWriter forwards the first maxWrites writes to target and fails the rest.
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (int, error) {
	if l.written >= l.maxWrites {
		return 0, ErrInjected
	}
	l.written++
	return l.target.Write(p)
}

// NewLimitedWriter returns a writer that has already seen written of its maxWrites writes.
func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper answers every request with a fixed response or transport error.
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser is a response body whose reads fail.
type FCloser struct{}

func (*FCloser) Read([]byte) (int, error) { return 0, ErrInjected }

func (*FCloser) Close() error { return nil }

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(content)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if info, err := os.Stat(path); err != nil {
		t.Errorf("expected file %s: %v", path, err)
	} else if info.IsDir() {
		t.Errorf("expected file, found directory: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	if info, err := os.Stat(path); err != nil {
		t.Errorf("expected directory %s: %v", path, err)
	} else if !info.IsDir() {
		t.Errorf("expected directory, found file: %s", path)
	}
}

// MustGetwd returns the working directory so a test that changes it can restore it.
func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
}
