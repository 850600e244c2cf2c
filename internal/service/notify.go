package service

import "github.com/whitover/whitoverbot/internal/domain"

// Button is one inline choice attached to a notification.
type Button struct {
	Label string
	Data  string
}

// Notifier delivers messages to chat identities. Implemented by the
// transport adapter. Sends are best-effort: services log failures and
// never let them affect a committed operation.
type Notifier interface {
	Notify(chatID domain.ChatID, text string) error
	NotifyButtons(chatID domain.ChatID, text string, buttons []Button) error
}
