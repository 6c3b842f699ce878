// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"slices"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discx/internal/shared"
)

// NewTestLogger returns a debug-level logger writing into buf.
func NewTestLogger(buf *bytes.Buffer) *log.Logger {
	l := shared.NewLogger(buf)
	l.SetLevel(log.DebugLevel)
	return l
}

// StubTokens is a test double for the token provider used by the Spotify client.
type StubTokens struct {
	mu sync.Mutex

	Token        string
	Scopes       []string
	RefreshErr   error
	TokenErr     error
	Refreshes    int
	Reconsent    []string
	RefreshToken string
}

func (s *StubTokens) WithValidToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TokenErr != nil {
		return "", s.TokenErr
	}
	if s.Token == "" {
		return "test-token", nil
	}
	return s.Token, nil
}

func (s *StubTokens) ForceRefresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Refreshes++
	if s.RefreshErr != nil {
		return "", s.RefreshErr
	}
	if s.RefreshToken != "" {
		s.Token = s.RefreshToken
	}
	return s.Token, nil
}

func (s *StubTokens) GrantedScopes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.Scopes)
}

func (s *StubTokens) MarkNeedsReconsent(scopes ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, scope := range scopes {
		if !slices.Contains(s.Reconsent, scope) {
			s.Reconsent = append(s.Reconsent, scope)
		}
	}
}

// PendingReconsent returns the scopes recorded by MarkNeedsReconsent.
func (s *StubTokens) PendingReconsent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.Reconsent)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
	calls    int
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	m.calls++
	return m.response, m.err
}

// Calls returns how many requests went through the transport.
func (m *MockRoundTripper) Calls() int { return m.calls }

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// MustWriteFile writes content to path or fails the test.
func MustWriteFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
