package models

import "time"

// DefaultExpiryMargin is the safety window subtracted from a token's
// nominal lifetime: a credential is treated as dead slightly before the
// provider would actually reject it.
const DefaultExpiryMargin = 60 * time.Second

// Credential holds the OAuth access/refresh token pair and its metadata
// for one local user's link to Spotify.
//
// The JSON tags match the provider's token endpoint response. IssuedAt is
// not supplied by the provider; it is captured at construction time.
// A missing RefreshToken means the credential cannot be renewed once
// expired.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope"`
	IssuedAt     time.Time `json:"-"`
}

// IsExpired reports whether the credential is past its useful lifetime,
// i.e. now - IssuedAt > ExpiresIn - margin.
func (c Credential) IsExpired(margin time.Duration) bool {
	return time.Since(c.IssuedAt) > time.Duration(c.ExpiresIn)*time.Second-margin
}
