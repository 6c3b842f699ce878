package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/shared"
	"golang.org/x/oauth2"
)

// State is the position of a [Manager] in the session lifecycle.
type State int

const (
	Unauthenticated State = iota
	Authorizing
	Authorized
	Refreshing
)

func (s State) String() string {
	switch s {
	case Authorizing:
		return "authorizing"
	case Authorized:
		return "authorized"
	case Refreshing:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

// DefaultRetryDelay is the pause before the single retry of a token request that failed in transit.
const DefaultRetryDelay = 2 * time.Second

// Options configures a [Manager].
type Options struct {
	ClientID    string
	RedirectURI string
	Scopes      []string // defaults to [DefaultScopes]
	AccountsURL string   // defaults to the Spotify accounts service
	HTTPClient  *http.Client
	Store       SecretStore // defaults to a [MemoryStore]
	Agent       UserAgent
	Logger      *log.Logger
	RetryDelay  time.Duration
	Now         func() time.Time
}

// Manager holds the current [models.AuthSession] and keeps it fresh.
//
// It implements the token provider consumed by the Spotify client.
type Manager struct {
	oauth      oauth2.Config
	scopes     []string
	httpClient *http.Client
	store      SecretStore
	agent      UserAgent
	logger     *log.Logger
	retryDelay time.Duration
	now        func() time.Time

	// flight serializes token requests so concurrent callers share one refresh.
	flight sync.Mutex

	mu         sync.Mutex
	session    *models.AuthSession
	state      State
	generation int
	reconsent  []string
}

// NewManager creates a manager. Call [Manager.Restore] to load a persisted session.
func NewManager(opts Options) (*Manager, error) {
	if opts.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify client_id", shared.ErrMissingConfig)
	}

	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	if unknown := UnknownScopes(scopes); len(unknown) > 0 {
		return nil, fmt.Errorf("%w: unknown scopes %s", shared.ErrInvalidConfig, strings.Join(unknown, ", "))
	}

	m := &Manager{
		oauth: oauth2.Config{
			ClientID:    opts.ClientID,
			RedirectURL: opts.RedirectURI,
			Endpoint:    accountsEndpoint(opts.AccountsURL),
		},
		scopes:     slices.Clone(scopes),
		httpClient: opts.HTTPClient,
		store:      opts.Store,
		agent:      opts.Agent,
		logger:     shared.WithLogger(opts.Logger, "component", "auth"),
		retryDelay: opts.RetryDelay,
		now:        opts.Now,
	}
	if m.store == nil {
		m.store = NewMemoryStore()
	}
	if m.retryDelay <= 0 {
		m.retryDelay = DefaultRetryDelay
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Restore loads the persisted session and outstanding reconsent scopes.
// A missing session is not an error; the manager stays unauthenticated.
func (m *Manager) Restore() error {
	s, err := loadSession(m.store)
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	pending, err := loadReconsent(m.store)
	if err != nil {
		return fmt.Errorf("failed to restore reconsent scopes: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconsent = pending
	m.session = s
	if s != nil {
		m.state = Authorized
		m.generation = max(m.generation, s.Generation)
	} else {
		m.state = Unauthenticated
	}
	return nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns a copy of the current session.
func (m *Manager) Session() (models.AuthSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return models.AuthSession{}, false
	}
	s := *m.session
	s.Scopes = slices.Clone(s.Scopes)
	return s, true
}

// GrantedScopes returns the scopes of the current session, or nil when signed out.
func (m *Manager) GrantedScopes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	return slices.Clone(m.session.Scopes)
}

// MarkNeedsReconsent records scopes the next sign-in must request with a forced consent dialog.
func (m *Manager) MarkNeedsReconsent(scopes ...string) {
	m.mu.Lock()
	changed := false
	for _, s := range scopes {
		if s != "" && !slices.Contains(m.reconsent, s) {
			m.reconsent = append(m.reconsent, s)
			changed = true
		}
	}
	pending := slices.Clone(m.reconsent)
	m.mu.Unlock()

	if !changed {
		return
	}
	m.logger.Warn("scopes need re-consent", "scopes", strings.Join(pending, " "))
	if err := saveReconsent(m.store, pending); err != nil {
		m.logger.Error("failed to persist reconsent scopes", "error", err)
	}
}

// PendingReconsent returns the scopes waiting for re-consent.
func (m *Manager) PendingReconsent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.reconsent)
}

// SignIn runs the interactive authorization code flow and installs the resulting session.
// On any failure the previous session, if any, is left as it was.
func (m *Manager) SignIn(ctx context.Context) (*models.AuthSession, error) {
	if m.agent == nil {
		return nil, fmt.Errorf("%w: no user agent configured for sign-in", shared.ErrMissingConfig)
	}

	m.flight.Lock()
	defer m.flight.Unlock()

	m.mu.Lock()
	previous := m.state
	pending := slices.Clone(m.reconsent)
	m.state = Authorizing
	m.mu.Unlock()

	session, err := m.signIn(ctx, pending)
	if err != nil {
		m.mu.Lock()
		if m.state == Authorizing {
			m.state = previous
		}
		m.mu.Unlock()
		return nil, err
	}
	return session, nil
}

func (m *Manager) signIn(ctx context.Context, pending []string) (*models.AuthSession, error) {
	scopes := union(m.scopes, pending)
	cfg := m.config(scopes)

	verifier := oauth2.GenerateVerifier()
	state, err := shared.GenerateState(32)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate state: %v", shared.ErrUnknown, err)
	}

	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	if len(pending) > 0 {
		opts = append(opts, oauth2.SetAuthURLParam("show_dialog", "true"))
	}
	authURL := cfg.AuthCodeURL(state, opts...)

	m.logger.Info("starting authorization", "scopes", strings.Join(scopes, " "), "reconsent", len(pending) > 0)
	callback, err := m.agent.Authorize(ctx, authURL)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", shared.ErrAuthCancelled, err)
		}
		return nil, err
	}

	code, err := parseCallback(callback, state)
	if err != nil {
		return nil, err
	}

	token, err := m.retrieve(ctx, func(ctx context.Context) (*oauth2.Token, error) {
		return cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	})
	if err != nil {
		return nil, err
	}

	session := m.install(token, scopes)

	m.mu.Lock()
	m.reconsent = slices.DeleteFunc(m.reconsent, session.HasScope)
	remaining := slices.Clone(m.reconsent)
	m.mu.Unlock()
	if err := saveReconsent(m.store, remaining); err != nil {
		m.logger.Error("failed to persist reconsent scopes", "error", err)
	}

	m.logger.Info("signed in", "generation", session.Generation, "expires", session.Expiry.Format(time.RFC3339))
	return session, nil
}

// parseCallback validates the redirect against the state that was sent and returns the authorization code.
func parseCallback(callback *url.URL, state string) (string, error) {
	if callback == nil {
		return "", fmt.Errorf("%w: empty callback", shared.ErrAuthFailed)
	}
	q := callback.Query()
	if q.Get("state") != state {
		return "", fmt.Errorf("%w: callback state does not match the authorization request", shared.ErrAuthStateMismatch)
	}
	if e := q.Get("error"); e != "" {
		if e == "access_denied" {
			return "", fmt.Errorf("%w: access denied by user", shared.ErrAuthCancelled)
		}
		return "", fmt.Errorf("%w: %s", shared.ErrAuthFailed, e)
	}
	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("%w: callback has no authorization code", shared.ErrAuthFailed)
	}
	return code, nil
}

// WithValidToken returns the cached access token while it has at least [models.SessionSkew] left,
// refreshing silently otherwise.
func (m *Manager) WithValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.session != nil && m.session.ValidAt(m.now()) {
		token := m.session.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	m.mu.Unlock()
	return m.refresh(ctx, false)
}

// ForceRefresh refreshes regardless of the cached token's expiry.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	return m.refresh(ctx, true)
}

func (m *Manager) refresh(ctx context.Context, force bool) (string, error) {
	m.flight.Lock()
	defer m.flight.Unlock()

	m.mu.Lock()
	current := m.session
	if current == nil || current.RefreshToken == "" {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: not signed in", shared.ErrAuthRequired)
	}
	// Another caller may have refreshed while this one waited on the flight lock.
	if !force && current.ValidAt(m.now()) {
		token := current.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	refreshToken, scopes := current.RefreshToken, slices.Clone(current.Scopes)
	m.state = Refreshing
	m.mu.Unlock()

	cfg := m.config(scopes)
	token, err := m.retrieve(ctx, func(ctx context.Context) (*oauth2.Token, error) {
		return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	})
	if err != nil {
		m.mu.Lock()
		if m.state == Refreshing {
			m.state = Authorized
		}
		m.mu.Unlock()
		return "", err
	}

	session := m.install(token, scopes)
	m.logger.Debug("token refreshed", "generation", session.Generation, "forced", force)
	return session.AccessToken, nil
}

// SignOut forgets the session and deletes it from the store.
func (m *Manager) SignOut() error {
	m.mu.Lock()
	m.session = nil
	m.state = Unauthenticated
	m.mu.Unlock()

	if err := m.store.Delete(sessionKey); err != nil {
		return fmt.Errorf("failed to delete stored session: %w", err)
	}
	return nil
}

// retrieve runs a token request, retrying once after the retry delay when the failure is transient.
// A definitive rejection by the accounts service clears the stored credential.
func (m *Manager) retrieve(ctx context.Context, fetch func(context.Context) (*oauth2.Token, error)) (*oauth2.Token, error) {
	if m.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	}

	token, err := fetch(ctx)
	if err != nil && shared.IsTransient(err) {
		m.logger.Warn("token request failed in transit, retrying", "error", err, "delay", m.retryDelay)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", shared.ErrNetwork, ctx.Err())
		case <-time.After(m.retryDelay):
		}
		token, err = fetch(ctx)
	}
	if err == nil {
		return token, nil
	}

	var re *oauth2.RetrieveError
	switch {
	case errors.As(err, &re):
		if definitive(re) {
			m.logger.Error("authorization rejected, clearing credentials", "error", re.ErrorCode)
			if cerr := m.SignOut(); cerr != nil {
				m.logger.Error("failed to clear credentials", "error", cerr)
			}
			return nil, fmt.Errorf("%w: %s", shared.ErrAuthRequired, describe(re))
		}
		return nil, fmt.Errorf("%w: token endpoint: %s", shared.ErrAuthFailed, describe(re))
	case shared.IsTransient(err):
		return nil, fmt.Errorf("%w: token request: %w", shared.ErrNetwork, err)
	case errors.Is(err, context.Canceled):
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthCancelled, err)
	default:
		return nil, fmt.Errorf("%w: token request: %v", shared.ErrAuthFailed, err)
	}
}

// install replaces the cached session with one built from token and persists it.
func (m *Manager) install(token *oauth2.Token, fallbackScopes []string) *models.AuthSession {
	scopes := tokenScopes(token)
	if len(scopes) == 0 {
		scopes = slices.Clone(fallbackScopes)
	}

	m.mu.Lock()
	m.generation++
	refreshToken := token.RefreshToken
	if refreshToken == "" && m.session != nil {
		refreshToken = m.session.RefreshToken
	}
	session := &models.AuthSession{
		AccessToken:  token.AccessToken,
		RefreshToken: refreshToken,
		Expiry:       token.Expiry,
		Generation:   m.generation,
		Scopes:       scopes,
	}
	m.session = session
	m.state = Authorized
	snapshot := *session
	m.mu.Unlock()

	if err := saveSession(m.store, &snapshot); err != nil {
		m.logger.Error("failed to persist session", "error", err)
	}
	return &snapshot
}

func (m *Manager) config(scopes []string) *oauth2.Config {
	cfg := m.oauth
	cfg.Scopes = scopes
	return &cfg
}

// tokenScopes reads the space-separated scope field of a token response.
func tokenScopes(token *oauth2.Token) []string {
	raw, ok := token.Extra("scope").(string)
	if !ok {
		return nil
	}
	return strings.Fields(raw)
}

func definitive(re *oauth2.RetrieveError) bool {
	switch re.ErrorCode {
	case "invalid_grant", "invalid_client":
		return true
	}
	body := string(re.Body)
	return strings.Contains(body, "invalid_grant") || strings.Contains(body, "invalid_client")
}

func describe(re *oauth2.RetrieveError) string {
	parts := []string{}
	if re.Response != nil {
		parts = append(parts, fmt.Sprintf("status %d", re.Response.StatusCode))
	}
	if re.ErrorCode != "" {
		parts = append(parts, re.ErrorCode)
	}
	if re.ErrorDescription != "" {
		parts = append(parts, re.ErrorDescription)
	}
	if len(parts) == 0 {
		return shared.Truncate(string(re.Body), 256)
	}
	return strings.Join(parts, ": ")
}

func union(a, b []string) []string {
	out := slices.Clone(a)
	for _, s := range b {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
