package middleware

import (
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSender struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		r.texts = append(r.texts, m.Text)
	}
	return tgbotapi.Message{}, nil
}

func messageFrom(userID, chatID int64) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: "hi",
	}}
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	sender := &recordingSender{}
	rl := NewRateLimiterMiddleware(60, 2, zap.NewNop(), sender)
	defer rl.Close()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	handled := 0
	next := func(tgbotapi.Update) { handled++ }
	for range 4 {
		rl.Handle(messageFrom(1, 10), next)
	}
	assert.Equal(t, 2, handled)
	require.Len(t, sender.texts, 1)
	assert.Contains(t, sender.texts[0], "Too many requests")

	// another user has its own bucket
	rl.Handle(messageFrom(2, 20), next)
	assert.Equal(t, 3, handled)

	// one token per second refills
	now = now.Add(time.Second)
	rl.Handle(messageFrom(1, 10), next)
	assert.Equal(t, 4, handled)
}

func TestRateLimiter_PassesUpdatesWithoutUser(t *testing.T) {
	rl := NewRateLimiterMiddleware(1, 1, zap.NewNop(), &recordingSender{})
	defer rl.Close()

	handled := 0
	for range 3 {
		rl.Handle(tgbotapi.Update{UpdateID: 1}, func(tgbotapi.Update) { handled++ })
	}
	assert.Equal(t, 3, handled)
}

func TestRecovery_TellsUser(t *testing.T) {
	sender := &recordingSender{}
	m := NewRecoveryMiddleware(zap.NewNop(), sender)

	assert.NotPanics(t, func() {
		m.Handle(messageFrom(1, 10), func(tgbotapi.Update) { panic("boom") })
	})
	assert.Equal(t, []string{recoveryMessage}, sender.texts)
}

func TestLogging_CallsNext(t *testing.T) {
	m := NewLoggingMiddleware(zap.NewNop())
	called := false
	m.Handle(messageFrom(1, 10), func(tgbotapi.Update) { called = true })
	assert.True(t, called)
	assert.Equal(t, "text", updateType(messageFrom(1, 10)))
	assert.Equal(t, "callback", updateType(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{}}))
}
