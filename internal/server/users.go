package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodex/internal/services"
	"github.com/desertthunder/melodex/internal/shared"
)

// Handlers holds the services the routing layer dispatches to.
type Handlers struct {
	users   *services.UserService
	spotify *services.SpotifyService
	logger  *log.Logger
}

// NewHandlers creates the handler set for the given services.
func NewHandlers(users *services.UserService, spotify *services.SpotifyService, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Handlers{users: users, spotify: spotify, logger: logger}
}

// Register wires every route onto the router.
func (h *Handlers) Register(r Router) {
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(h.Health))

	r.Handle(http.MethodGet, "/users", http.HandlerFunc(h.ListUsers))
	r.Handle(http.MethodPost, "/users", http.HandlerFunc(h.CreateUser))
	r.Handle(http.MethodGet, "/users/{id}", http.HandlerFunc(h.GetUser))
	r.Handle(http.MethodPut, "/users/{id}", http.HandlerFunc(h.UpdateUser))
	r.Handle(http.MethodDelete, "/users/{id}", http.HandlerFunc(h.DeleteUser))
	r.Handle(http.MethodGet, "/users/auth/callback", http.HandlerFunc(h.AuthCallback))
	r.Handle(http.MethodPost, "/users/{id}/favorites/artists", http.HandlerFunc(h.AddFavoriteArtist))
	r.Handle(http.MethodPost, "/users/{id}/favorites/tracks", http.HandlerFunc(h.AddFavoriteTrack))

	r.Handle(http.MethodGet, "/spotify/auth/{id}/login", http.HandlerFunc(h.SpotifyLogin))
	r.Handle(http.MethodGet, "/spotify/search/artist", http.HandlerFunc(h.SearchArtists))
	r.Handle(http.MethodGet, "/spotify/search/track", http.HandlerFunc(h.SearchTracks))
	r.Handle(http.MethodPut, "/spotify/me/following", http.HandlerFunc(h.Follow))
	r.Handle(http.MethodGet, "/spotify/me/following/artists", http.HandlerFunc(h.FollowedArtists))
	r.Handle(http.MethodGet, "/spotify/me/following/contains", http.HandlerFunc(h.CheckFollowing))
}

// Health reports service liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// userRequest is the create/update payload for a local user.
type userRequest struct {
	Name             string   `json:"name"`
	Age              int      `json:"age"`
	MusicPreferences []string `json:"music_preferences"`
}

// ListUsers returns all users ordered by id.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// CreateUser creates a user from the JSON payload.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body: %v", shared.ErrInvalidInput, err))
		return
	}

	user, err := h.users.Create(req.Name, req.Age, req.MusicPreferences)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// GetUser returns one user by id.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateUser replaces a user's profile fields.
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body: %v", shared.ErrInvalidInput, err))
		return
	}

	user, err := h.users.Update(id, req.Name, req.Age, req.MusicPreferences)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteUser removes a user and their favorites.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.users.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

// AddFavoriteArtist saves the best Spotify match for ?name to the user's favorites.
func (h *Handlers) AddFavoriteArtist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, fmt.Errorf("%w: name is required", shared.ErrInvalidInput))
		return
	}

	artist, err := h.users.AddFavoriteArtist(r.Context(), id, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artist)
}

// AddFavoriteTrack saves the best Spotify match for ?name to the user's favorites.
func (h *Handlers) AddFavoriteTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, fmt.Errorf("%w: name is required", shared.ErrInvalidInput))
		return
	}

	track, err := h.users.AddFavoriteTrack(r.Context(), id, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid user id", shared.ErrInvalidInput)
	}
	return id, nil
}
