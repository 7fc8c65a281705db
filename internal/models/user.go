package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/desertthunder/melodex/internal/shared"
)

const maxMusicPreferences = 20

// User is a local account keyed by a sequential integer id.
type User struct {
	ID               int       `json:"id"`
	Name             string    `json:"name"`
	Age              int       `json:"age"`
	MusicPreferences []string  `json:"music_preferences"`
	FavoriteArtists  []Artist  `json:"favorite_artists"`
	FavoriteTracks   []Track   `json:"favorite_tracks"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewUser creates a user with the given profile fields and current timestamps.
// The id is assigned by the repository on insert.
func NewUser(name string, age int, preferences []string) *User {
	now := time.Now()
	return &User{
		Name:             name,
		Age:              age,
		MusicPreferences: preferences,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Validate normalizes the user's profile fields in place and checks their
// constraints: name trimmed and title-cased, 2-250 characters; age strictly
// between 18 and 120; at most 20 music preferences with blanks dropped.
func (u *User) Validate() error {
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return fmt.Errorf("%w: name cannot be empty or whitespace", shared.ErrInvalidInput)
	}
	if len(u.Name) < 2 || len(u.Name) > 250 {
		return fmt.Errorf("%w: name must be between 2 and 250 characters", shared.ErrInvalidInput)
	}
	u.Name = titleCase(u.Name)

	if u.Age <= 18 || u.Age >= 120 {
		return fmt.Errorf("%w: age must be greater than 18 and less than 120", shared.ErrInvalidInput)
	}

	cleaned := make([]string, 0, len(u.MusicPreferences))
	for _, genre := range u.MusicPreferences {
		if genre = strings.TrimSpace(genre); genre != "" {
			cleaned = append(cleaned, genre)
		}
	}
	if len(cleaned) > maxMusicPreferences {
		return fmt.Errorf("%w: at most %d music preferences allowed", shared.ErrInvalidInput, maxMusicPreferences)
	}
	u.MusicPreferences = cleaned

	return nil
}

// titleCase upper-cases the first letter of each whitespace-separated word
// and lower-cases the rest.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
