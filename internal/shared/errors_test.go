package shared

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tc := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "timeout url error", err: &url.Error{Op: "Post", URL: "x", Err: timeoutErr{}}, want: true},
		{name: "connection refused", err: &url.Error{Op: "Get", URL: "x", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}, want: true},
		{name: "connection reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: true},
		{name: "host unreachable", err: syscall.EHOSTUNREACH, want: true},
		{name: "unexpected eof", err: io.ErrUnexpectedEOF, want: true},
		{name: "cancelled", err: &url.Error{Op: "Get", URL: "x", Err: context.Canceled}, want: false},
		{name: "tls failure", err: errors.New("tls: bad certificate"), want: false},
		{name: "permanent dns", err: &net.DNSError{Err: "no such host", IsNotFound: true}, want: false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWrapErr(t *testing.T) {
	err := WrapErr(ErrPermissionsInsufficient, "missing %s", "playlist-modify-public")
	if !errors.Is(err, ErrPermissionsInsufficient) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if err.Error() != "permissions expired or insufficient: missing playlist-modify-public" {
		t.Errorf("unexpected message %q", err.Error())
	}

	if !errors.Is(NetworkError("HTTP 500"), ErrNetwork) {
		t.Error("NetworkError should wrap ErrNetwork")
	}
}
