// Raw HTTP funnel shared by every outbound JSON API client
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discx/internal/shared"
)

// bodyExcerpt bounds how much of an error body is logged or kept on [APIError].
const bodyExcerpt = 256

// APIService performs raw HTTP requests against one base URL.
// All outbound calls go through [APIService.Do] so logging and error shaping live in one place.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	logger     *log.Logger
}

// NewAPIService creates a new API service instance.
func NewAPIService(baseURL string, client *http.Client, logger *log.Logger) *APIService {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		logger:     logger,
	}
}

// WithUserAgent sets the User-Agent header sent on every request.
func (a *APIService) WithUserAgent(ua string) *APIService {
	a.userAgent = ua
	return a
}

// BaseURL returns the base URL requests are resolved against.
func (a *APIService) BaseURL() string { return a.baseURL }

// Request describes one call. JSON is marshalled as the body when set; Body is sent verbatim otherwise.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Header      http.Header
	JSON        any
	Body        []byte
	ContentType string
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	Method     string
	Endpoint   string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v, wrapping failures in [shared.ErrParsing].
func (r *APIResponse) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %s %s: %v", shared.ErrParsing, r.Method, r.Endpoint, err)
	}
	return nil
}

// Err returns an [*APIError] for a non-2xx response, nil otherwise.
func (r *APIResponse) Err() error {
	if r.OK() {
		return nil
	}
	return &APIError{
		Method:     r.Method,
		Endpoint:   r.Endpoint,
		StatusCode: r.StatusCode,
		Body:       shared.Truncate(string(r.Body), bodyExcerpt),
		Header:     r.Headers,
	}
}

// APIError is a non-success HTTP response.
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
	Header     http.Header
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s returned HTTP %d", e.Method, e.Endpoint, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap maps the status onto the shared taxonomy.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return shared.ErrAuthRequired
	case http.StatusForbidden:
		return shared.ErrPermissionsInsufficient
	case http.StatusNotFound:
		return shared.ErrNotFound
	default:
		return shared.ErrNetwork
	}
}

// StatusCode extracts the HTTP status from err, or 0 when err is not an [*APIError].
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Do performs req and returns the raw response whatever its status.
//
// Only transport failures are returned as errors; they wrap both [shared.ErrNetwork] and the cause.
func (a *APIService) Do(ctx context.Context, req Request) (*APIResponse, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	fullURL := req.Path
	if !strings.HasPrefix(fullURL, "http://") && !strings.HasPrefix(fullURL, "https://") {
		fullURL = a.baseURL + req.Path
	}
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var body io.Reader
	contentType := req.ContentType
	switch {
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	case req.Body != nil:
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if a.userAgent != "" {
		httpReq.Header.Set("User-Agent", a.userAgent)
	}

	endpoint := httpReq.URL.Path
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		a.logger.Warn("request failed", "method", method, "endpoint", endpoint, "err", err)
		return nil, fmt.Errorf("%w: %s %s: %w", shared.ErrNetwork, method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s %s: %w", shared.ErrNetwork, method, endpoint, err)
	}

	out := &APIResponse{
		Method:     method,
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}

	if out.OK() {
		a.logger.Debug("request", "method", method, "endpoint", endpoint, "status", resp.StatusCode)
	} else {
		a.logger.Warn("request returned non-success status",
			"method", method, "endpoint", endpoint, "status", resp.StatusCode,
			"body", shared.Truncate(string(data), bodyExcerpt))
	}
	return out, nil
}

// GetJSON performs a GET and decodes a 2xx body into v.
func (a *APIService) GetJSON(ctx context.Context, path string, query url.Values, header http.Header, v any) error {
	resp, err := a.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, Header: header})
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	return resp.Decode(v)
}
