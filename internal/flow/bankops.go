package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/whitover/whitoverbot/internal/domain"
)

// TellerService is the slice of the bank the banker-side flows need.
type TellerService interface {
	Deposit(ctx context.Context, to domain.ResidentID, amount int64, reason string) error
	Withdraw(ctx context.Context, from domain.ResidentID, amount int64, reason string) error
	CashOut(ctx context.Context, from domain.ResidentID, amount int64, operator string) error
}

const (
	stDepositUser    State = "deposit_user"
	stDepositPick    State = "deposit_pick"
	stDepositAmount  State = "deposit_amount"
	stDepositReason  State = "deposit_reason"
	stWithdrawUser   State = "withdraw_user"
	stWithdrawPick   State = "withdraw_pick"
	stWithdrawAmount State = "withdraw_amount"
	stWithdrawReason State = "withdraw_reason"
	stExchangeUser   State = "exchange_user"
	stExchangePick   State = "exchange_pick"
	stExchangeAmount State = "exchange_amount"
)

func failedOpResult() StepResult {
	return StepResult{Next: End, Reply: Reply{
		Text: "❌ Не удалось выполнить операцию. Проверьте данные и попробуйте снова.",
	}}
}

// NewDepositFlow credits WVR to a resident: recipient →
// (disambiguation) → amount → reason → commit.
func NewDepositFlow(find RecipientSearcher, teller TellerService) *Flow {
	return &Flow{
		Name: "deposit",
		Begin: func(ctx context.Context, s *Session) (StepResult, error) {
			return StepResult{
				Next:  stDepositUser,
				Reply: Reply{Text: "Введите ник в Minecraft или ID горожанина для начисления WVR:"},
			}, nil
		},
		Steps: map[State]Step{
			stDepositUser: recipientStep(find, stDepositPick, stDepositAmount, "Введите сумму для начисления:"),
			stDepositPick: pickStep(find, stDepositAmount, "Введите сумму для начисления:"),
			stDepositAmount: amountStep(stDepositAmount, stDepositReason, "Введите причину начисления:"),
			stDepositReason: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				if ev.Kind != EventText || ev.Text == "" {
					return StepResult{Next: stDepositReason, Reply: Reply{Text: "Введите причину начисления:"}}, nil
				}
				amount, _ := strconv.ParseInt(s.Get(keyAmount), 10, 64)
				err := teller.Deposit(ctx, domain.ResidentID(s.Get(keyRecipientID)), amount, ev.Text)
				if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
					return failedOpResult(), nil
				}
				if err != nil {
					return StepResult{}, err
				}
				return StepResult{Next: End, Reply: Reply{
					Text: fmt.Sprintf("✅ Успешно начислено %d WVR\nПричина: %s", amount, ev.Text),
				}}, nil
			},
		},
	}
}

// NewWithdrawFlow debits WVR from a resident: recipient →
// (disambiguation) → amount → reason → commit.
func NewWithdrawFlow(find RecipientSearcher, teller TellerService) *Flow {
	return &Flow{
		Name: "withdraw",
		Begin: func(ctx context.Context, s *Session) (StepResult, error) {
			return StepResult{
				Next:  stWithdrawUser,
				Reply: Reply{Text: "Введите ник в Minecraft или ID горожанина для снятия WVR:"},
			}, nil
		},
		Steps: map[State]Step{
			stWithdrawUser: recipientStep(find, stWithdrawPick, stWithdrawAmount, "Введите сумму для снятия:"),
			stWithdrawPick: pickStep(find, stWithdrawAmount, "Введите сумму для снятия:"),
			stWithdrawAmount: amountStep(stWithdrawAmount, stWithdrawReason, "Введите причину снятия:"),
			stWithdrawReason: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				if ev.Kind != EventText || ev.Text == "" {
					return StepResult{Next: stWithdrawReason, Reply: Reply{Text: "Введите причину снятия:"}}, nil
				}
				amount, _ := strconv.ParseInt(s.Get(keyAmount), 10, 64)
				err := teller.Withdraw(ctx, domain.ResidentID(s.Get(keyRecipientID)), amount, ev.Text)
				if errors.Is(err, domain.ErrInsufficientFunds) || errors.Is(err, domain.ErrNotFound) {
					return StepResult{Next: End, Reply: Reply{
						Text: "❌ Не удалось выполнить операцию. Проверьте баланс и попробуйте снова.",
					}}, nil
				}
				if err != nil {
					return StepResult{}, err
				}
				return StepResult{Next: End, Reply: Reply{
					Text: fmt.Sprintf("✅ Успешно снято %d WVR\nПричина: %s", amount, ev.Text),
				}}, nil
			},
		},
	}
}

// NewExchangeFlow cashes a resident's WVR out into in-game currency:
// recipient → (disambiguation) → amount → commit + notification.
func NewExchangeFlow(find RecipientSearcher, teller TellerService) *Flow {
	return &Flow{
		Name: "exchange",
		Begin: func(ctx context.Context, s *Session) (StepResult, error) {
			return StepResult{
				Next:  stExchangeUser,
				Reply: Reply{Text: "Введите ник в Minecraft или ID горожанина для обналичивания WVR:"},
			}, nil
		},
		Steps: map[State]Step{
			stExchangeUser: recipientStep(find, stExchangePick, stExchangeAmount, "Введите сумму для обналичивания:"),
			stExchangePick: pickStep(find, stExchangeAmount, "Введите сумму для обналичивания:"),
			stExchangeAmount: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				amount, ok := parseAmount(ev.Text)
				if ev.Kind != EventText || !ok {
					return StepResult{Next: stExchangeAmount, Reply: Reply{Text: badAmountText}}, nil
				}
				err := teller.CashOut(ctx, domain.ResidentID(s.Get(keyRecipientID)), amount, s.Username)
				if errors.Is(err, domain.ErrInsufficientFunds) || errors.Is(err, domain.ErrNotFound) {
					return StepResult{Next: End, Reply: Reply{
						Text: "❌ Не удалось выполнить операцию. Проверьте баланс пользователя.",
					}}, nil
				}
				if err != nil {
					return StepResult{}, err
				}
				return StepResult{Next: End, Reply: Reply{
					Text: fmt.Sprintf("✅ Успешно обналичено %d WVR в %d АР\nПользователь был уведомлен.", amount, amount),
				}}, nil
			},
		},
	}
}

// amountStep enforces the positive-integer rule and stores the amount.
func amountStep(same, next State, nextPrompt string) Step {
	return func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
		amount, ok := parseAmount(ev.Text)
		if ev.Kind != EventText || !ok {
			return StepResult{Next: same, Reply: Reply{Text: badAmountText}}, nil
		}
		s.Set(keyAmount, strconv.FormatInt(amount, 10))
		return StepResult{Next: next, Reply: Reply{Text: nextPrompt}}, nil
	}
}
