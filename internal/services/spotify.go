// Spotify domain facade over the authenticated gateway.
//
// Response shapes follow https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodex/internal/models"
	"github.com/desertthunder/melodex/internal/shared"
	"github.com/desertthunder/melodex/internal/spotify"
)

// artistObject mirrors a Spotify artist payload.
type artistObject struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Popularity int      `json:"popularity"`
	Genres     []string `json:"genres"`
	Href       string   `json:"href"`
	URI        string   `json:"uri"`
}

// trackObject mirrors a Spotify track payload.
type trackObject struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Popularity int            `json:"popularity"`
	DurationMS int            `json:"duration_ms"`
	Explicit   bool           `json:"explicit"`
	Artists    []artistObject `json:"artists"`
	Album      struct {
		Name string `json:"name"`
	} `json:"album"`
	Href string `json:"href"`
	URI  string `json:"uri"`
}

type artistPage struct {
	Items []artistObject `json:"items"`
}

type trackPage struct {
	Items []trackObject `json:"items"`
}

type searchResponse struct {
	Artists *artistPage `json:"artists"`
	Tracks  *trackPage  `json:"tracks"`
}

type followingResponse struct {
	Artists artistPage `json:"artists"`
}

// SpotifyService is the domain facade: it wraps the gateway for each
// capability and raises the internal error taxonomy (shared.ErrNoValidToken,
// shared.ErrNotFound, shared.ErrExternalAPI, shared.ErrInvalidInput)
// instead of transport codes.
type SpotifyService struct {
	auth   *spotify.Authenticator
	states *spotify.StateStore
	gw     *spotify.Gateway
	logger *log.Logger
}

// NewSpotifyService creates the facade from an authenticator and gateway.
func NewSpotifyService(auth *spotify.Authenticator, gw *spotify.Gateway, logger *log.Logger) *SpotifyService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SpotifyService{
		auth:   auth,
		states: spotify.NewStateStore(),
		gw:     gw,
		logger: logger,
	}
}

// LoginURL returns the authorize redirect URL for a local user, with a
// fresh state nonce bound to that user id.
func (s *SpotifyService) LoginURL(userID int) string {
	return s.auth.AuthorizeURL(s.states.Issue(userID))
}

// ResolveState claims the state nonce from an authorize callback and
// returns the local user id it was issued for.
func (s *SpotifyService) ResolveState(state string) (int, error) {
	userID, ok := s.states.Claim(state)
	if !ok {
		return 0, fmt.Errorf("%w: unknown or expired state", shared.ErrInvalidState)
	}
	return userID, nil
}

// CompleteLogin exchanges an authorization code and stores the resulting
// credential for the user.
func (s *SpotifyService) CompleteLogin(ctx context.Context, code string, userID int) error {
	cred, err := s.auth.Exchange(ctx, code)
	if err != nil {
		return err
	}
	s.gw.Store().Set(userID, *cred)
	s.logger.Infof("stored spotify credential for user %d", userID)
	return nil
}

// SearchArtists returns up to limit artists matching the query.
func (s *SpotifyService) SearchArtists(ctx context.Context, userID int, query string, limit int) ([]models.Artist, error) {
	resp, err := s.search(ctx, userID, query, "artist", limit)
	if err != nil {
		return nil, err
	}

	var artists []models.Artist
	if resp.Artists != nil {
		for _, raw := range resp.Artists.Items {
			artists = append(artists, mapArtist(raw))
		}
	}
	return artists, nil
}

// SearchTracks returns up to limit tracks matching the query.
func (s *SpotifyService) SearchTracks(ctx context.Context, userID int, query string, limit int) ([]models.Track, error) {
	resp, err := s.search(ctx, userID, query, "track", limit)
	if err != nil {
		return nil, err
	}

	var tracks []models.Track
	if resp.Tracks != nil {
		for _, raw := range resp.Tracks.Items {
			tracks = append(tracks, mapTrack(raw))
		}
	}
	return tracks, nil
}

// FindArtist returns the best match for the query. Zero results is a
// domain-level not-found, distinct from the gateway's auth sentinel.
func (s *SpotifyService) FindArtist(ctx context.Context, userID int, query string) (*models.Artist, error) {
	artists, err := s.SearchArtists(ctx, userID, query, 1)
	if err != nil {
		return nil, err
	}
	if len(artists) == 0 {
		return nil, fmt.Errorf("%w: artist %q", shared.ErrNotFound, query)
	}
	return &artists[0], nil
}

// FindTrack returns the best match for the query.
func (s *SpotifyService) FindTrack(ctx context.Context, userID int, query string) (*models.Track, error) {
	tracks, err := s.SearchTracks(ctx, userID, query, 1)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: track %q", shared.ErrNotFound, query)
	}
	return &tracks[0], nil
}

// FollowTargets follows the given artist or user ids on behalf of the
// local user. The target type is validated before any outbound call.
func (s *SpotifyService) FollowTargets(ctx context.Context, userID int, ids []string, targetType string) error {
	if err := validateTargetType(targetType); err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one id is required", shared.ErrInvalidInput)
	}

	params := url.Values{"type": {targetType}}
	body := map[string][]string{"ids": ids}
	return s.gw.Put(ctx, userID, "/me/following", params, body)
}

// FollowedArtists lists the artists the local user follows.
func (s *SpotifyService) FollowedArtists(ctx context.Context, userID int) ([]models.Artist, error) {
	params := url.Values{"type": {"artist"}, "limit": {"20"}}

	var resp followingResponse
	if err := s.gw.Get(ctx, userID, "/me/following", params, &resp); err != nil {
		return nil, err
	}

	artists := make([]models.Artist, 0, len(resp.Artists.Items))
	for _, raw := range resp.Artists.Items {
		artists = append(artists, mapArtist(raw))
	}
	return artists, nil
}

// CheckFollowing reports, per id, whether the local user follows the
// target. Results are positionally aligned with ids.
func (s *SpotifyService) CheckFollowing(ctx context.Context, userID int, ids []string, targetType string) ([]bool, error) {
	if err := validateTargetType(targetType); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one id is required", shared.ErrInvalidInput)
	}

	params := url.Values{"type": {targetType}, "ids": {strings.Join(ids, ",")}}

	var following []bool
	if err := s.gw.Get(ctx, userID, "/me/following/contains", params, &following); err != nil {
		return nil, err
	}
	return following, nil
}

func (s *SpotifyService) search(ctx context.Context, userID int, query, kind string, limit int) (*searchResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", shared.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{
		"q":     {query},
		"type":  {kind},
		"limit": {strconv.Itoa(limit)},
	}

	var resp searchResponse
	if err := s.gw.Get(ctx, userID, "/search", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func validateTargetType(targetType string) error {
	if targetType != "artist" && targetType != "user" {
		return fmt.Errorf("%w: type must be 'artist' or 'user'", shared.ErrInvalidInput)
	}
	return nil
}

func mapArtist(raw artistObject) models.Artist {
	return models.Artist{
		ID:         raw.ID,
		Name:       raw.Name,
		Popularity: raw.Popularity,
		Genres:     raw.Genres,
		Href:       raw.Href,
		URI:        raw.URI,
	}
}

// mapTrack flattens each nested artist into the lightweight Artist shape
// (id, name, href, uri only); the track search payload does not include
// genres or popularity for nested artists.
func mapTrack(raw trackObject) models.Track {
	artists := make([]models.Artist, 0, len(raw.Artists))
	for _, a := range raw.Artists {
		artists = append(artists, models.Artist{
			ID:   a.ID,
			Name: a.Name,
			Href: a.Href,
			URI:  a.URI,
		})
	}

	return models.Track{
		ID:         raw.ID,
		Name:       raw.Name,
		Popularity: raw.Popularity,
		DurationMS: raw.DurationMS,
		Explicit:   raw.Explicit,
		Artists:    artists,
		AlbumName:  raw.Album.Name,
		Href:       raw.Href,
		URI:        raw.URI,
	}
}
