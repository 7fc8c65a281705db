// package spotify implements the Spotify token lifecycle and the
// authenticated API gateway.
//
// [Authenticator] handles the OAuth authorization-code flow against the
// accounts service: building the authorize URL, exchanging a code for a
// [models.Credential], and refreshing an expiring credential.
//
// [Gateway] guarantees a valid access token for a local user before each
// call, refreshing at most once per expiry, and issues bearer-authenticated
// GET/PUT requests against the web API. Authentication problems of any
// cause (missing credential, unrefreshable expiry, failed refresh, remote
// 401) surface as the single shared.ErrNoValidToken sentinel so callers
// have one re-auth branch.
package spotify
