package telegram

import (
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/set-night/imagebroker/internal/domain"
)

const RatioCallbackPrefix = "ratio:"

// InlineButton creates a single inline keyboard button.
func InlineButton(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// InlineKeyboard creates an inline keyboard from rows of buttons.
func InlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// RatioKeyboard lays out every aspect ratio, marking the current one.
func RatioKeyboard(current *domain.Ratio, perRow int) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton
	for _, r := range domain.Ratios {
		label := string(r)
		if current != nil && *current == r {
			label = "* " + label
		}
		row = append(row, InlineButton(label, RatioCallbackPrefix+string(r)))
		if len(row) == perRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return InlineKeyboard(rows...)
}

// ParseRatioCallback extracts the ratio from a keyboard callback.
func ParseRatioCallback(data string) (string, bool) {
	return strings.CutPrefix(data, RatioCallbackPrefix)
}
