package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/melodex/internal/models"
	"github.com/desertthunder/melodex/internal/shared"
)

// UserRepository persists [models.User] records and their favorites.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create validates the user and inserts it with the next sequential id.
func (r *UserRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	id, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate id: %w", err)
	}
	user.ID = id

	prefs, err := json.Marshal(user.MusicPreferences)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	query := `
		INSERT INTO users (id, name, age, music_preferences, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, user.ID, user.Name, user.Age, string(prefs), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by id, including favorites.
func (r *UserRepository) Get(id int) (*models.User, error) {
	query := `
		SELECT id, name, age, music_preferences, created_at, updated_at
		FROM users
		WHERE id = ?
	`

	user, err := r.scanUser(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if err := r.loadFavorites(user); err != nil {
		return nil, err
	}

	return user, nil
}

// List retrieves all users ordered by id, including favorites.
func (r *UserRepository) List() ([]models.User, error) {
	query := `
		SELECT id, name, age, music_preferences, created_at, updated_at
		FROM users
		ORDER BY id
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if err := r.loadFavorites(user); err != nil {
			return nil, err
		}
		users = append(users, *user)
	}

	return users, rows.Err()
}

// Update validates and persists the user's profile fields.
func (r *UserRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	prefs, err := json.Marshal(user.MusicPreferences)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	now := time.Now()
	user.UpdatedAt = now

	query := `
		UPDATE users
		SET name = ?, age = ?, music_preferences = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, user.Name, user.Age, string(prefs), now, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: user %d", shared.ErrNotFound, user.ID)
	}

	return nil
}

// Delete removes a user and their favorites.
func (r *UserRepository) Delete(id int) error {
	for _, query := range []string{
		"DELETE FROM favorite_artists WHERE user_id = ?",
		"DELETE FROM favorite_tracks WHERE user_id = ?",
	} {
		if _, err := r.db.Exec(query, id); err != nil {
			return fmt.Errorf("failed to delete favorites: %w", err)
		}
	}

	result, err := r.db.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}

	return nil
}

// AddFavoriteArtist saves an artist for the user. Duplicate saves of the
// same spotify id are silently ignored.
func (r *UserRepository) AddFavoriteArtist(userID int, artist models.Artist) error {
	genres, err := json.Marshal(artist.Genres)
	if err != nil {
		return fmt.Errorf("failed to encode genres: %w", err)
	}

	query := `
		INSERT INTO favorite_artists (user_id, spotify_id, name, popularity, genres, href, uri, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, userID, artist.ID, artist.Name, artist.Popularity, string(genres), artist.Href, artist.URI, time.Now())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil
		}
		return fmt.Errorf("failed to save favorite artist: %w", err)
	}

	return nil
}

// AddFavoriteTrack saves a track for the user. Duplicate saves of the
// same spotify id are silently ignored.
func (r *UserRepository) AddFavoriteTrack(userID int, track models.Track) error {
	artists, err := json.Marshal(track.Artists)
	if err != nil {
		return fmt.Errorf("failed to encode track artists: %w", err)
	}

	query := `
		INSERT INTO favorite_tracks (user_id, spotify_id, name, popularity, duration_ms, explicit, artists, album_name, href, uri, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, userID, track.ID, track.Name, track.Popularity, track.DurationMS, track.Explicit, string(artists), track.AlbumName, track.Href, track.URI, time.Now())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil
		}
		return fmt.Errorf("failed to save favorite track: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scanUser(row rowScanner) (*models.User, error) {
	var (
		user      models.User
		prefs     string
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&user.ID, &user.Name, &user.Age, &prefs, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(prefs), &user.MusicPreferences); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}

	user.CreatedAt = createdAt
	user.UpdatedAt = updatedAt
	return &user, nil
}

func (r *UserRepository) loadFavorites(user *models.User) error {
	artists, err := r.favoriteArtists(user.ID)
	if err != nil {
		return err
	}
	user.FavoriteArtists = artists

	tracks, err := r.favoriteTracks(user.ID)
	if err != nil {
		return err
	}
	user.FavoriteTracks = tracks

	return nil
}

func (r *UserRepository) favoriteArtists(userID int) ([]models.Artist, error) {
	query := `
		SELECT spotify_id, name, popularity, genres, href, uri
		FROM favorite_artists
		WHERE user_id = ?
		ORDER BY added_at
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorite artists: %w", err)
	}
	defer rows.Close()

	artists := []models.Artist{}
	for rows.Next() {
		var artist models.Artist
		var genres string
		if err := rows.Scan(&artist.ID, &artist.Name, &artist.Popularity, &genres, &artist.Href, &artist.URI); err != nil {
			return nil, fmt.Errorf("failed to scan favorite artist: %w", err)
		}
		if err := json.Unmarshal([]byte(genres), &artist.Genres); err != nil {
			return nil, fmt.Errorf("failed to decode genres: %w", err)
		}
		artists = append(artists, artist)
	}

	return artists, rows.Err()
}

func (r *UserRepository) favoriteTracks(userID int) ([]models.Track, error) {
	query := `
		SELECT spotify_id, name, popularity, duration_ms, explicit, artists, album_name, href, uri
		FROM favorite_tracks
		WHERE user_id = ?
		ORDER BY added_at
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorite tracks: %w", err)
	}
	defer rows.Close()

	tracks := []models.Track{}
	for rows.Next() {
		var track models.Track
		var artists string
		if err := rows.Scan(&track.ID, &track.Name, &track.Popularity, &track.DurationMS, &track.Explicit, &artists, &track.AlbumName, &track.Href, &track.URI); err != nil {
			return nil, fmt.Errorf("failed to scan favorite track: %w", err)
		}
		if err := json.Unmarshal([]byte(artists), &track.Artists); err != nil {
			return nil, fmt.Errorf("failed to decode track artists: %w", err)
		}
		tracks = append(tracks, track)
	}

	return tracks, rows.Err()
}
