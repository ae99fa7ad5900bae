package llm

import (
	"sync"
	"time"
)

// health tracks consecutive failures per provider. A provider that fails
// threshold times in a row is skipped until its cooldown has passed.
type health struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	state     map[string]*providerState
}

type providerState struct {
	failures  int
	openUntil time.Time
}

func newHealth(threshold int, cooldown time.Duration) *health {
	return &health{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		state:     make(map[string]*providerState),
	}
}

func (h *health) available(id string) bool {
	if h.threshold <= 0 {
		return true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.state[id]
	if !ok {
		return true
	}
	return !h.now().Before(st.openUntil)
}

func (h *health) success(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.state, id)
}

func (h *health) failure(id string) {
	if h.threshold <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.state[id]
	if !ok {
		st = &providerState{}
		h.state[id] = st
	}
	st.failures++
	if st.failures >= h.threshold {
		st.openUntil = h.now().Add(h.cooldown)
	}
}
