// package models defines the data model for the account-link service:
// local users, their Spotify credentials, and the read-only projections
// of Spotify payloads (Artist, Track) used as response shapes.
package models
