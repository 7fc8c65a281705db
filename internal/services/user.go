package services

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodex/internal/models"
	"github.com/desertthunder/melodex/internal/repositories"
	"github.com/desertthunder/melodex/internal/shared"
)

// UserService manages local accounts and their saved favorites. Favorite
// lookups go through the Spotify facade so saved entities are always the
// remote's best match for the requested name.
type UserService struct {
	repo    *repositories.UserRepository
	spotify *SpotifyService
	logger  *log.Logger
}

// NewUserService creates a UserService over the given repository and facade.
func NewUserService(repo *repositories.UserRepository, spotify *SpotifyService, logger *log.Logger) *UserService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &UserService{repo: repo, spotify: spotify, logger: logger}
}

// List returns all users ordered by id.
func (s *UserService) List() ([]models.User, error) {
	return s.repo.List()
}

// Create validates and persists a new user, assigning the next id.
func (s *UserService) Create(name string, age int, preferences []string) (*models.User, error) {
	user := models.NewUser(name, age, preferences)
	if err := s.repo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Get returns the user with the given id.
func (s *UserService) Get(id int) (*models.User, error) {
	return s.repo.Get(id)
}

// Update replaces the user's profile fields.
func (s *UserService) Update(id int, name string, age int, preferences []string) (*models.User, error) {
	user, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}

	user.Name = name
	user.Age = age
	user.MusicPreferences = preferences

	if err := s.repo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes the user and their favorites.
func (s *UserService) Delete(id int) error {
	return s.repo.Delete(id)
}

// AddFavoriteArtist finds the best artist match for the name on Spotify
// and saves it to the user's favorites. Duplicate saves are idempotent.
func (s *UserService) AddFavoriteArtist(ctx context.Context, userID int, name string) (*models.Artist, error) {
	if _, err := s.repo.Get(userID); err != nil {
		return nil, err
	}

	artist, err := s.spotify.FindArtist(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	if err := s.repo.AddFavoriteArtist(userID, *artist); err != nil {
		return nil, err
	}

	s.logger.Infof("saved favorite artist %s for user %d", artist.ID, userID)
	return artist, nil
}

// AddFavoriteTrack finds the best track match for the name on Spotify and
// saves it to the user's favorites.
func (s *UserService) AddFavoriteTrack(ctx context.Context, userID int, name string) (*models.Track, error) {
	if _, err := s.repo.Get(userID); err != nil {
		return nil, err
	}

	track, err := s.spotify.FindTrack(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	if err := s.repo.AddFavoriteTrack(userID, *track); err != nil {
		return nil, err
	}

	s.logger.Infof("saved favorite track %s for user %d", track.ID, userID)
	return track, nil
}
