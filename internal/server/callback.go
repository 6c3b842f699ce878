package server

import (
	"fmt"
	"html"
	"net/http"
	"net/url"
	"sync"
)

// CallbackHandler captures the OAuth redirect for one authorization attempt.
type CallbackHandler struct {
	path   string
	result chan *url.URL
	once   sync.Once
}

// NewCallbackHandler creates a handler serving path (for example "/callback").
func NewCallbackHandler(path string) *CallbackHandler {
	if path == "" {
		path = "/callback"
	}
	return &CallbackHandler{path: path, result: make(chan *url.URL, 1)}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP records the first callback and renders a page telling the user to go back to the terminal.
// Later hits are rejected so a replayed redirect cannot replace the first one.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	captured := false
	h.once.Do(func() {
		u := *r.URL
		h.result <- &u
		close(h.result)
		captured = true
	})
	if !captured {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}

	title, body := "Authorization received", "You can close this window and return to the terminal."
	status := http.StatusOK
	if e := r.URL.Query().Get("error"); e != "" {
		title, body = "Authorization not granted", "The service reported: "+e
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, callbackPage, html.EscapeString(title), html.EscapeString(title), html.EscapeString(body))
}

// Result delivers exactly one callback URL and is then closed.
func (h *CallbackHandler) Result() <-chan *url.URL {
	return h.result
}

const callbackPage = `<!DOCTYPE html>
<html>
<head>
    <title>%s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%s</h1>
        <p>%s</p>
    </div>
</body>
</html>
`
