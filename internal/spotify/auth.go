package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodex/internal/models"
	"github.com/desertthunder/melodex/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"

	defaultRedirectURI = "http://localhost:8080/users/auth/callback"

	// tokenTimeout bounds each call to the accounts service.
	tokenTimeout = 10 * time.Second
)

// scopes are fixed for every login; follow management needs the
// user-follow-* pair.
var scopes = []string{
	"user-read-private",
	"user-read-email",
	"user-follow-read",
	"user-follow-modify",
}

// Authenticator performs the OAuth authorization-code flow against
// Spotify's accounts service.
//
// Exchange and Refresh deliberately convert every failure (non-200
// response, transport error, malformed payload) into an error return so
// that "could not get a token" is always a data condition at the
// [Gateway] boundary, never a panic.
type Authenticator struct {
	conf   *oauth2.Config
	client *http.Client
	logger *log.Logger
}

// NewAuthenticator creates an Authenticator from the configured Spotify
// application credentials.
func NewAuthenticator(creds shared.SpotifyConfig, logger *log.Logger) (*Authenticator, error) {
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify client_id", shared.ErrMissingCredentials)
	}
	if creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := creds.RedirectURI
	if redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &Authenticator{
		conf:   conf,
		client: &http.Client{Timeout: tokenTimeout},
		logger: logger,
	}, nil
}

// SetEndpoints overrides the provider endpoints. Tests point these at
// local fixtures.
func (a *Authenticator) SetEndpoints(authURL, tokenURL string) {
	if authURL != "" {
		a.conf.Endpoint.AuthURL = authURL
	}
	if tokenURL != "" {
		a.conf.Endpoint.TokenURL = tokenURL
	}
}

// AuthorizeURL returns the provider authorize endpoint URL with
// response_type=code, the fixed scope list, and the given state value.
func (a *Authenticator) AuthorizeURL(state string) string {
	return a.conf.AuthCodeURL(state)
}

// Exchange trades an authorization code for a credential.
// Returns a nil credential with an error on any failure.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*models.Credential, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {a.conf.RedirectURL},
	}
	return a.postToken(ctx, form, "")
}

// Refresh renews a credential from its refresh token. If the provider
// omits a refresh token in the response, the original one is carried
// forward into the result.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (*models.Credential, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", shared.ErrRefreshFailed)
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return a.postToken(ctx, form, refreshToken)
}

// postToken POSTs a form to the token endpoint with HTTP Basic auth built
// from the client id and secret, and decodes the credential response.
func (a *Authenticator) postToken(ctx context.Context, form url.Values, priorRefreshToken string) (*models.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.conf.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	req.SetBasicAuth(a.conf.ClientID, a.conf.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Errorf("token endpoint request failed: %v", err)
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		a.logger.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)
		return nil, fmt.Errorf("%w: status %d", shared.ErrAuthFailed, resp.StatusCode)
	}

	var cred models.Credential
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		return nil, fmt.Errorf("%w: malformed token response: %v", shared.ErrAuthFailed, err)
	}

	cred.IssuedAt = time.Now()
	if cred.RefreshToken == "" {
		cred.RefreshToken = priorRefreshToken
	}

	return &cred, nil
}
