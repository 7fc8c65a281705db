// package services contains the application-facing service layer.
//
// [SpotifyService] translates generic authenticated gateway calls into
// specific Spotify operations (search, follow management) and typed
// domain entities. [UserService] manages local accounts and their
// favorites.
package services
