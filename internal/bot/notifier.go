package bot

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/whitover/whitoverbot/internal/domain"
	"github.com/whitover/whitoverbot/internal/service"
)

// Notifier delivers service-layer notifications through the Telegram
// API. Chat identities are the stringified Telegram chat ids.
type Notifier struct {
	api *tgbotapi.BotAPI
}

func NewNotifier(api *tgbotapi.BotAPI) *Notifier {
	return &Notifier{api: api}
}

func (n *Notifier) Notify(chatID domain.ChatID, text string) error {
	id, err := chatInt(chatID)
	if err != nil {
		return err
	}
	_, err = n.api.Send(tgbotapi.NewMessage(id, text))
	return err
}

func (n *Notifier) NotifyButtons(chatID domain.ChatID, text string, buttons []service.Button) error {
	id, err := chatInt(chatID)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(id, text)
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, btn := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data)))
	}
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err = n.api.Send(msg)
	return err
}

func chatInt(chatID domain.ChatID) (int64, error) {
	id, err := strconv.ParseInt(string(chatID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad chat id %q: %w", chatID, err)
	}
	return id, nil
}
