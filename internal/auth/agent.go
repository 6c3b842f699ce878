package auth

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discx/internal/server"
	"github.com/desertthunder/discx/internal/shared"
)

// UserAgent presents an authorization URL to the user and returns the redirect it produced.
type UserAgent interface {
	Authorize(ctx context.Context, authURL string) (*url.URL, error)
}

// LoopbackAgent opens the browser and receives the redirect on a local listener
// bound to the host and port of RedirectURI.
type LoopbackAgent struct {
	RedirectURI string
	Open        func(string) error // defaults to [shared.OpenBrowser]
	Out         io.Writer          // receives the URL when the browser cannot be opened
	Logger      *log.Logger
}

// Authorize blocks until the first redirect arrives or ctx is done.
func (a *LoopbackAgent) Authorize(ctx context.Context, authURL string) (*url.URL, error) {
	redirect, err := url.Parse(a.RedirectURI)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: redirect uri %q", shared.ErrInvalidConfig, a.RedirectURI)
	}
	addr := redirect.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "80")
	}

	logger := shared.WithLogger(a.Logger, "component", "loopback")
	callback := server.NewCallbackHandler(redirect.Path)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(logger))
	router.Handler(callback)

	lb, err := server.Listen(addr, router)
	if err != nil {
		return nil, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lb.Close(shutdownCtx); err != nil {
			logger.Warn("failed to stop callback listener", "error", err)
		}
	}()

	open := a.Open
	if open == nil {
		open = shared.OpenBrowser
	}
	if err := open(authURL); err != nil {
		logger.Warn("could not open browser", "error", err)
		if a.Out != nil {
			fmt.Fprintf(a.Out, "Open this URL to authorize discx:\n\n  %s\n\n", authURL)
		}
	}
	logger.Info("waiting for authorization callback", "addr", lb.Addr())

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthCancelled, ctx.Err())
	case u := <-callback.Result():
		return u, nil
	}
}
