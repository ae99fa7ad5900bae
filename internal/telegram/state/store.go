package state

import (
	"slices"
	"strconv"
	"time"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/patrickmn/go-cache"
)

// ChatState links a chat to its interview session.
type ChatState struct {
	SessionID string
	Current   *entity.NextQuestion
	Skipped   []string
}

// IsSkipped reports whether the question key was skipped in this chat.
func (s ChatState) IsSkipped(key string) bool {
	return slices.Contains(s.Skipped, key)
}

// Store keeps chat states in memory. Entries expire after ttl of inactivity.
type Store struct {
	cache *cache.Cache
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{cache: cache.New(ttl, ttl/2)}
}

func (s *Store) Get(chatID int64) (ChatState, bool) {
	v, ok := s.cache.Get(key(chatID))
	if !ok {
		return ChatState{}, false
	}
	st := v.(ChatState)
	st.Skipped = slices.Clone(st.Skipped)
	return st, true
}

// Put stores st and resets its expiry.
func (s *Store) Put(chatID int64, st ChatState) {
	st.Skipped = slices.Clone(st.Skipped)
	s.cache.Set(key(chatID), st, cache.DefaultExpiration)
}

func (s *Store) Delete(chatID int64) {
	s.cache.Delete(key(chatID))
}

func key(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
