package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discx/internal/shared"
)

func TestCallbackHandler(t *testing.T) {
	t.Run("captures first callback", func(t *testing.T) {
		h := NewCallbackHandler("/callback")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=xyz", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}

		u := <-h.Result()
		if u.Query().Get("code") != "abc" || u.Query().Get("state") != "xyz" {
			t.Errorf("unexpected callback %s", u)
		}

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=other", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("second callback should be rejected, got %d", rec.Code)
		}
	})

	t.Run("error callback", func(t *testing.T) {
		h := NewCallbackHandler("")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?error=access_denied&state=xyz", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "access_denied") {
			t.Error("page should mention the error")
		}
		if u := <-h.Result(); u.Query().Get("error") != "access_denied" {
			t.Errorf("unexpected callback %s", u)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mw("first"), mw("second"))
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

		if fmt.Sprint(order) != "[first second handler]" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("method filtering", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handler(NewCallbackHandler("/callback"))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/callback", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("request logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := shared.NewLogger(&buf)
		logger.SetLevel(log.DebugLevel)

		router := NewBasicRouter()
		router.Use(RequestLogger(logger))
		router.Handler(NewCallbackHandler("/callback"))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?code=secret", nil))

		if !strings.Contains(buf.String(), "/callback") {
			t.Errorf("expected path in log, got %q", buf.String())
		}
		if strings.Contains(buf.String(), "secret") {
			t.Error("query string must not be logged")
		}
	})
}

func TestLoopback(t *testing.T) {
	h := NewCallbackHandler("/callback")
	router := NewBasicRouter()
	router.Handler(h)

	lb, err := Listen("127.0.0.1:0", router)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	resp, err := http.Get("http://" + lb.Addr() + "/callback?code=c&state=s")
	if err != nil {
		t.Fatalf("GET callback: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	select {
	case u := <-h.Result():
		if u.Query().Get("code") != "c" {
			t.Errorf("unexpected callback %s", u)
		}
	case <-time.After(time.Second):
		t.Fatal("callback not delivered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := lb.Close(ctx); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
