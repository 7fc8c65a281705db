package spotify

import (
	"sync"

	"github.com/desertthunder/melodex/internal/models"
)

// TokenStore associates local user ids with their current credential.
// Exactly one live credential exists per user; it is overwritten wholesale
// on login or refresh, never partially mutated.
//
// Implementations hold pure state. The single-refresh guarantee around
// reads and writes of the same key lives in [Gateway], not here.
type TokenStore interface {
	Get(userID int) (models.Credential, bool)
	Set(userID int, cred models.Credential)
	Clear(userID int)
}

// MemoryTokenStore is the in-process TokenStore. Credentials do not
// survive a restart; an expired, unrefreshable entry simply yields
// authentication failures until the user logs in again.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[int]models.Credential
}

// NewMemoryTokenStore creates an empty MemoryTokenStore.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[int]models.Credential)}
}

func (s *MemoryTokenStore) Get(userID int) (models.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.tokens[userID]
	return cred, ok
}

func (s *MemoryTokenStore) Set(userID int, cred models.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = cred
}

func (s *MemoryTokenStore) Clear(userID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
}
