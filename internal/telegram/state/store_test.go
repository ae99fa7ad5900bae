package state

import (
	"testing"
	"time"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	s := NewStore(time.Hour)

	_, ok := s.Get(1)
	assert.False(t, ok)

	s.Put(1, ChatState{SessionID: "abc", Current: &entity.NextQuestion{Key: "budget"}, Skipped: []string{"scope"}})
	st, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, "abc", st.SessionID)
	assert.True(t, st.IsSkipped("scope"))
	assert.False(t, st.IsSkipped("budget"))

	// callers get their own copy of the skipped list
	st.Skipped = append(st.Skipped[:0], "other")
	again, _ := s.Get(1)
	assert.Equal(t, []string{"scope"}, again.Skipped)

	s.Delete(1)
	_, ok = s.Get(1)
	assert.False(t, ok)
}

func TestStore_Expires(t *testing.T) {
	s := NewStore(20 * time.Millisecond)
	s.Put(1, ChatState{SessionID: "abc"})
	assert.Eventually(t, func() bool {
		_, ok := s.Get(1)
		return !ok
	}, time.Second, 5*time.Millisecond)
}
