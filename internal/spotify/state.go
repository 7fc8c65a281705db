package spotify

import (
	"sync"
	"time"

	"github.com/desertthunder/melodex/internal/shared"
)

// stateTTL bounds how long a login redirect stays claimable.
const stateTTL = 10 * time.Minute

type stateEntry struct {
	userID   int
	issuedAt time.Time
}

// StateStore binds random OAuth state nonces to local user ids for the
// duration of one authorize/callback round trip. The nonce is
// unpredictable, so the callback cannot be forged onto another account
// by guessing the state value.
type StateStore struct {
	mu     sync.Mutex
	states map[string]stateEntry
}

// NewStateStore creates an empty StateStore.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]stateEntry)}
}

// Issue creates a fresh nonce bound to the given user id.
func (s *StateStore) Issue(userID int) string {
	nonce := shared.GenerateID()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	s.states[nonce] = stateEntry{userID: userID, issuedAt: time.Now()}

	return nonce
}

// Claim resolves a nonce back to its user id and consumes it. A nonce can
// be claimed at most once; unknown or expired nonces report false.
func (s *StateStore) Claim(nonce string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.states[nonce]
	if !ok {
		return 0, false
	}
	delete(s.states, nonce)

	if time.Since(entry.issuedAt) > stateTTL {
		return 0, false
	}
	return entry.userID, true
}

// prune drops expired entries. Caller must hold the lock.
func (s *StateStore) prune() {
	for nonce, entry := range s.states {
		if time.Since(entry.issuedAt) > stateTTL {
			delete(s.states, nonce)
		}
	}
}
