package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodex/internal/models"
	"github.com/desertthunder/melodex/internal/shared"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1"

	// requestTimeout bounds each outbound API call. There is no retry or
	// backoff beyond the single refresh attempt in EnsureValidToken.
	requestTimeout = 10 * time.Second
)

// Refresher renews a credential from its refresh token.
// [Authenticator] is the production implementation.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*models.Credential, error)
}

// Gateway issues bearer-authenticated requests to the Spotify web API on
// behalf of local users, keeping each user's credential fresh across
// calls. It owns a shared connection-pooled HTTP client for its lifetime.
type Gateway struct {
	store   TokenStore
	auth    Refresher
	baseURL string
	client  *http.Client
	logger  *log.Logger
	margin  time.Duration

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

// GatewayOpts contains configuration options for creating a Gateway.
type GatewayOpts struct {
	Store   TokenStore
	Auth    Refresher
	BaseURL string
	Client  *http.Client
	Logger  *log.Logger
	Margin  time.Duration
}

// NewGateway creates a Gateway with the provided dependencies. Zero-valued
// options fall back to an in-memory store, the production API base URL, a
// pooled client with a 10 second timeout, and the default expiry margin.
func NewGateway(opts GatewayOpts) *Gateway {
	if opts.Store == nil {
		opts.Store = NewMemoryTokenStore()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: requestTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Margin == 0 {
		opts.Margin = models.DefaultExpiryMargin
	}

	return &Gateway{
		store:   opts.Store,
		auth:    opts.Auth,
		baseURL: opts.BaseURL,
		client:  opts.Client,
		logger:  opts.Logger,
		margin:  opts.Margin,
		locks:   make(map[int]*sync.Mutex),
	}
}

// Store exposes the gateway's token store so the login flow can persist
// freshly exchanged credentials.
func (g *Gateway) Store() TokenStore {
	return g.store
}

// userLock returns the mutex guarding the resolve-or-refresh sequence for
// one user id, so concurrent requests for the same user collapse into at
// most one in-flight refresh.
func (g *Gateway) userLock(userID int) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	lock, ok := g.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[userID] = lock
	}
	return lock
}

// EnsureValidToken resolves a usable access token for the user.
//
// The transitions are strictly linear, with no retry loop and no
// automatic re-login:
//
//	absent                -> ErrNoValidToken
//	fresh                 -> access token
//	expired, no refresh   -> ErrNoValidToken
//	expired, refreshable  -> refresh exactly once; store and return the
//	                         new token, or ErrNoValidToken on failure
//
// The stored credential is never deleted here. A dead entry keeps
// yielding ErrNoValidToken until a fresh login overwrites it, and one
// whose refresh failed transiently can succeed on a later call.
func (g *Gateway) EnsureValidToken(ctx context.Context, userID int) (string, error) {
	lock := g.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	cred, ok := g.store.Get(userID)
	if !ok {
		return "", fmt.Errorf("%w: user %d has no credential", shared.ErrNoValidToken, userID)
	}

	if !cred.IsExpired(g.margin) {
		return cred.AccessToken, nil
	}

	if cred.RefreshToken == "" {
		return "", fmt.Errorf("%w: credential for user %d expired and cannot be renewed", shared.ErrNoValidToken, userID)
	}

	g.logger.Infof("refreshing token for user %d", userID)
	refreshed, err := g.auth.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		g.logger.Warnf("refresh failed for user %d: %v", userID, err)
		return "", fmt.Errorf("%w: refresh failed for user %d", shared.ErrNoValidToken, userID)
	}

	g.store.Set(userID, *refreshed)
	return refreshed.AccessToken, nil
}

// Get issues an authenticated GET and decodes the JSON response into
// result. A remote 401 means the locally-cached token was rejected despite
// passing the expiry check; it maps to the same ErrNoValidToken sentinel
// as a missing credential. Any other non-2xx status is a hard failure.
func (g *Gateway) Get(ctx context.Context, userID int, path string, params url.Values, result any) error {
	token, err := g.EnsureValidToken(ctx, userID)
	if err != nil {
		return err
	}

	endpoint := g.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrExternalAPI, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrExternalAPI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: remote rejected access token for user %d", shared.ErrNoValidToken, userID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return remoteError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: malformed response: %v", shared.ErrExternalAPI, err)
		}
	}

	return nil
}

// Put issues an authenticated PUT with a JSON body. 200 and 204 are
// success; 401 maps to ErrNoValidToken; anything else is a hard failure.
func (g *Gateway) Put(ctx context.Context, userID int, path string, params url.Values, body any) error {
	token, err := g.EnsureValidToken(ctx, userID)
	if err != nil {
		return err
	}

	endpoint := g.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrExternalAPI, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrExternalAPI, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: remote rejected access token for user %d", shared.ErrNoValidToken, userID)
	default:
		return remoteError(resp)
	}
}

// remoteError builds a hard failure from a non-2xx response, preserving
// the remote-supplied message when the body carries one.
func remoteError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var payload struct {
		Error struct {
			Status  int    `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error.Message != "" {
		return fmt.Errorf("%w: status %d: %s", shared.ErrExternalAPI, resp.StatusCode, payload.Error.Message)
	}

	return fmt.Errorf("%w: status %d", shared.ErrExternalAPI, resp.StatusCode)
}
