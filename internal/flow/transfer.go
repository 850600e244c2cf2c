package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/whitover/whitoverbot/internal/domain"
)

// TransferService is the slice of the bank the transfer flow needs.
type TransferService interface {
	BalanceByChat(ctx context.Context, chatID domain.ChatID) int64
	Transfer(ctx context.Context, fromChat domain.ChatID, to domain.ResidentID, amount int64, comment string) error
}

const (
	stTransferRecipient State = "transfer_recipient"
	stTransferPick      State = "transfer_pick"
	stTransferAmount    State = "transfer_amount"
	stTransferConfirm   State = "transfer_confirm"
	stTransferComment   State = "transfer_comment"

	btnConfirmTransfer = "confirm_transfer"
	btnAddComment      = "add_comment"
	btnCancelTransfer  = "cancel_transfer"
)

// NewTransferFlow builds the resident-to-resident money transfer dialog:
// recipient → (disambiguation) → amount → confirmation, with an optional
// comment before confirming. The balance shown at the amount step is
// advisory; the authoritative check happens inside the atomic transfer,
// so a balance that changed between the two is still caught at commit.
func NewTransferFlow(find RecipientSearcher, bank TransferService) *Flow {
	confirmReply := func(s *Session) Reply {
		comment := "нет"
		if s.Has(keyComment) {
			comment = s.Get(keyComment)
		}
		return Reply{
			Text: fmt.Sprintf("Подтвердите перевод:\n• Получатель: %s\n• Сумма: %s WVR\n• Комментарий: %s",
				s.Get(keyRecipientNick), s.Get(keyAmount), comment),
			Buttons: [][]Button{
				{{Label: "✅ Подтвердить", Data: btnConfirmTransfer}},
				{{Label: "✏️ Добавить комментарий", Data: btnAddComment}},
				{{Label: "❌ Отменить", Data: btnCancelTransfer}},
			},
		}
	}

	return &Flow{
		Name: "transfer",
		Begin: func(ctx context.Context, s *Session) (StepResult, error) {
			return StepResult{
				Next:  stTransferRecipient,
				Reply: Reply{Text: "Введите ник получателя или его ID:"},
			}, nil
		},
		Steps: map[State]Step{
			stTransferRecipient: recipientStep(find, stTransferPick, stTransferAmount, "Введите сумму для перевода:"),
			stTransferPick:      pickStep(find, stTransferAmount, "Введите сумму для перевода:"),

			stTransferAmount: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				amount, ok := parseAmount(ev.Text)
				if ev.Kind != EventText || !ok {
					return StepResult{Next: stTransferAmount, Reply: Reply{Text: badAmountText}}, nil
				}
				if balance := bank.BalanceByChat(ctx, s.ChatID); balance < amount {
					return StepResult{Next: End, Reply: Reply{
						Text: fmt.Sprintf("❌ Недостаточно средств. Ваш баланс: %d WVR", balance),
					}}, nil
				}
				s.Set(keyAmount, strconv.FormatInt(amount, 10))
				return StepResult{Next: stTransferConfirm, Reply: confirmReply(s)}, nil
			},

			stTransferConfirm: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				if ev.Kind != EventButton {
					return StepResult{Next: stTransferConfirm, Reply: confirmReply(s)}, nil
				}
				switch ev.Data {
				case btnAddComment:
					return StepResult{Next: stTransferComment, Reply: Reply{Text: "Введите комментарий к переводу:"}}, nil
				case btnCancelTransfer:
					return StepResult{Next: End, Reply: Reply{Text: "❌ Перевод отменен"}}, nil
				case btnConfirmTransfer:
					amount, _ := strconv.ParseInt(s.Get(keyAmount), 10, 64)
					err := bank.Transfer(ctx, s.ChatID, domain.ResidentID(s.Get(keyRecipientID)), amount, s.Get(keyComment))
					switch {
					case errors.Is(err, domain.ErrInsufficientFunds):
						return StepResult{Next: End, Reply: Reply{Text: "❌ Недостаточно средств для перевода"}}, nil
					case errors.Is(err, domain.ErrNotFound):
						return StepResult{Next: End, Reply: Reply{Text: "❌ Ошибка при выполнении перевода"}}, nil
					case err != nil:
						return StepResult{}, err
					}
					msg := fmt.Sprintf("✅ Успешно переведено %d WVR пользователю %s", amount, s.Get(keyRecipientNick))
					if c := s.Get(keyComment); c != "" {
						msg += "\nКомментарий: " + c
					}
					return StepResult{Next: End, Reply: Reply{Text: msg}}, nil
				}
				return StepResult{Next: stTransferConfirm, Reply: confirmReply(s)}, nil
			},

			stTransferComment: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				if ev.Kind != EventText || ev.Text == "" {
					return StepResult{Next: stTransferComment, Reply: Reply{Text: "Введите комментарий к переводу:"}}, nil
				}
				s.Set(keyComment, ev.Text)
				return StepResult{Next: stTransferConfirm, Reply: confirmReply(s)}, nil
			},
		},
	}
}
