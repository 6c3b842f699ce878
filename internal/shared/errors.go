package shared

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")
	ErrNotFound       = fmt.Errorf("not found")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authorization errors
	ErrAuthRequired            = fmt.Errorf("authorization required")
	ErrAuthCancelled           = fmt.Errorf("authorization cancelled")
	ErrAuthStateMismatch       = fmt.Errorf("authorization state mismatch")
	ErrAuthFailed              = fmt.Errorf("authorization failed")
	ErrPermissionsInsufficient = fmt.Errorf("permissions expired or insufficient")

	// Transport and decoding errors
	ErrNetwork = fmt.Errorf("network failure")
	ErrParsing = fmt.Errorf("parsing failure")
	ErrUnknown = fmt.Errorf("unknown error")

	// Playlist errors
	ErrInvalidPlaylistID   = fmt.Errorf("invalid playlist id")
	ErrPlaylistNotWritable = fmt.Errorf("playlist is not owned by or shared with the current user")

	// Resolution errors
	ErrNoConfidentMatch = fmt.Errorf("no confident match")
	ErrAlbumNotFound    = fmt.Errorf("streaming album not found")

	// Input validation errors
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)

// WrapErr wraps a sentinel with a formatted detail message.
func WrapErr(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// NetworkError wraps [ErrNetwork] with a detail message.
func NetworkError(detail string) error {
	return fmt.Errorf("%w: %s", ErrNetwork, detail)
}

// IsTransient reports whether err is a transport failure worth one retry:
// a timeout, a refused or reset connection, an unreachable host or network,
// or a connection dropped mid-response. Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.ENETDOWN),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && (dnsErr.IsTemporary || dnsErr.IsTimeout) {
		return true
	}
	return false
}
