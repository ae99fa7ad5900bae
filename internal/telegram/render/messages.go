package render

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/futig/proposal-backend/internal/entity"
)

// MaxMessageLength is the Telegram limit for a single text message.
const MaxMessageLength = 4096

const (
	MsgWelcome = `👋 Hi! I will ask a few questions about your project and turn the answers into a proposal.

Answer each question with a plain message. /skip moves on without answering, /proposal builds the proposal once you are ready.`

	MsgHelp = `Commands:
/start - begin a new interview
/skip - skip the current question
/proposal - generate a proposal from your answers
/cancel - abandon the interview
/help - show this message`

	MsgNoSession      = "There is no interview in progress. Send /start to begin."
	MsgChooseFormat   = "📄 Which format should the proposal use?"
	MsgGenerating     = "⏳ Writing the %s proposal. This can take a minute..."
	MsgCancelled      = "🛑 Interview abandoned. Send /start to begin a new one."
	MsgChooseExport   = "Download the proposal as a file:"
	MsgUnknownCommand = "Unknown command. Send /help for the list of commands."
	MsgGenericError   = "❌ Something went wrong. Try again or send /start"
)

// Question formats the question to ask next.
func Question(q *entity.NextQuestion) string {
	if q == nil {
		return entity.DefaultQuestion
	}
	return "❓ " + q.Text
}

// Rejected explains why an answer was not accepted.
func Rejected(reason string) string {
	return fmt.Sprintf("⚠️ %s\n\nPlease answer again.", reason)
}

// Error maps a use case failure to a user facing message.
func Error(err error) string {
	switch entity.KindOf(err) {
	case entity.KindNotFound:
		return MsgNoSession
	case entity.KindConflict, entity.KindInvalidState:
		return "This interview is already closed. Send /start to begin a new one."
	case entity.KindInsufficientData:
		return "Answer at least one question before asking for a proposal."
	case entity.KindProvidersExhausted, entity.KindProvider, entity.KindStreamInterrupted:
		return "⚠️ The writing service is unavailable right now. Try /proposal again in a few minutes."
	case entity.KindBadRequest:
		return "⚠️ " + unwrapMessage(err)
	default:
		return MsgGenericError
	}
}

func unwrapMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// Chunk splits text into pieces no longer than limit runes, breaking on a
// newline or a space when one is near the end of the piece.
func Chunk(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	var out []string
	for utf8.RuneCountInString(text) > limit {
		cut := byteOffset(text, limit)
		head := text[:cut]
		if i := strings.LastIndex(head, "\n"); i > cut/2 {
			cut = i + 1
		} else if i := strings.LastIndex(head, " "); i > cut/2 {
			cut = i + 1
		}
		out = append(out, strings.TrimRight(text[:cut], " \n"))
		text = text[cut:]
	}
	if text = strings.TrimRight(text, " \n"); strings.TrimSpace(text) != "" {
		out = append(out, text)
	}
	return out
}

func byteOffset(s string, runes int) int {
	n := 0
	for i := range s {
		if n == runes {
			return i
		}
		n++
	}
	return len(s)
}
