package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/melodex/internal/shared"
)

// SpotifyLogin redirects the browser to the provider authorize URL for
// the local user in the path.
func (h *Handlers) SpotifyLogin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.users.Get(id); err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, h.spotify.LoginURL(id), http.StatusFound)
}

// AuthCallback completes the OAuth round trip: it resolves the state
// nonce back to a local user, exchanges the code, and stores the
// credential.
func (h *Handlers) AuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		writeError(w, fmt.Errorf("%w: provider error: %s", shared.ErrInvalidInput, errParam))
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		writeError(w, fmt.Errorf("%w: missing code or state", shared.ErrInvalidInput))
		return
	}

	userID, err := h.spotify.ResolveState(state)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.spotify.CompleteLogin(r.Context(), code, userID); err != nil {
		h.logger.Errorf("login failed for user %d: %v", userID, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "authentication failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Spotify connected", "user_id": userID})
}

// SearchArtists proxies an artist search for ?user_id and ?q.
func (h *Handlers) SearchArtists(w http.ResponseWriter, r *http.Request) {
	userID, query, err := searchParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	artists, err := h.spotify.SearchArtists(r.Context(), userID, query, 10)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(artists), "items": artists})
}

// SearchTracks proxies a track search for ?user_id and ?q.
func (h *Handlers) SearchTracks(w http.ResponseWriter, r *http.Request) {
	userID, query, err := searchParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	tracks, err := h.spotify.SearchTracks(r.Context(), userID, query, 10)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(tracks), "items": tracks})
}

// followRequest is the body for PUT /spotify/me/following.
type followRequest struct {
	IDs []string `json:"ids"`
}

// Follow follows artists or users on behalf of ?user_id. The target type
// comes from ?type and the ids from the JSON body.
func (h *Handlers) Follow(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	targetType := r.URL.Query().Get("type")

	var req followRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body: %v", shared.ErrInvalidInput, err))
		return
	}

	if err := h.spotify.FollowTargets(r.Context(), userID, req.IDs, targetType); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("successfully followed %d %s(s)", len(req.IDs), targetType),
	})
}

// FollowedArtists lists the artists ?user_id follows.
func (h *Handlers) FollowedArtists(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	artists, err := h.spotify.FollowedArtists(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(artists), "items": artists})
}

// followStatus pairs an id with whether the user follows it.
type followStatus struct {
	ID          string `json:"id"`
	IsFollowing bool   `json:"is_following"`
}

// CheckFollowing reports follow status for ?ids (comma-separated) and ?type.
func (h *Handlers) CheckFollowing(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	query := r.URL.Query()
	targetType := query.Get("type")

	var ids []string
	for _, id := range strings.Split(query.Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	results, err := h.spotify.CheckFollowing(r.Context(), userID, ids, targetType)
	if err != nil {
		writeError(w, err)
		return
	}

	statuses := make([]followStatus, 0, len(ids))
	for i, id := range ids {
		status := followStatus{ID: id}
		if i < len(results) {
			status.IsFollowing = results[i]
		}
		statuses = append(statuses, status)
	}
	writeJSON(w, http.StatusOK, statuses)
}

// queryUserID parses the required ?user_id parameter.
func queryUserID(r *http.Request) (int, error) {
	userID, err := strconv.Atoi(r.URL.Query().Get("user_id"))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid user_id", shared.ErrInvalidInput)
	}
	return userID, nil
}

// searchParams parses ?user_id and ?q for the search endpoints.
func searchParams(r *http.Request) (int, string, error) {
	userID, err := queryUserID(r)
	if err != nil {
		return 0, "", err
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		return 0, "", fmt.Errorf("%w: q is required", shared.ErrInvalidInput)
	}

	return userID, query, nil
}
