package keyboard

import (
	"fmt"
	"strings"

	"github.com/futig/proposal-backend/internal/entity"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	ActionFormat = "format"
	ActionExport = "export"
)

// CallbackData represents parsed callback data
type CallbackData struct {
	Action string
	Value  string
}

// ParseCallback parses callback data string
func ParseCallback(data string) (*CallbackData, error) {
	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return nil, fmt.Errorf("invalid callback format: %s", data)
	}

	return &CallbackData{
		Action: parts[0],
		Value:  parts[1],
	}, nil
}

// EncodeCallback creates callback data string
func EncodeCallback(action, value string) string {
	return fmt.Sprintf("%s:%s", action, value)
}

// Formats offers one button per proposal format, two per row.
func Formats(formats []entity.ProposalFormat) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, f := range formats {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label(string(f)), EncodeCallback(ActionFormat, string(f))))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Exports offers file renderings of the latest draft.
func Exports() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("PDF", EncodeCallback(ActionExport, string(entity.ExportPDF))),
		tgbotapi.NewInlineKeyboardButtonData("DOCX", EncodeCallback(ActionExport, string(entity.ExportDOCX))),
		tgbotapi.NewInlineKeyboardButtonData("Markdown", EncodeCallback(ActionExport, string(entity.ExportMarkdown))),
	))
}

func label(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
