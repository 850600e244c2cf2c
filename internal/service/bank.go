package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/whitover/whitoverbot/internal/domain"
	"github.com/whitover/whitoverbot/internal/storage"
)

// CashOutReason tags withdrawals that convert WVR into in-game currency.
const CashOutReason = "Обналичивание в АРы"

// Bank wraps the ledger with directory resolution and post-commit
// notifications. Notifications run on their own goroutine after the
// commit returns: a failed send is logged and swallowed, never
// attributed to the operation itself.
type Bank struct {
	ledger *storage.Ledger
	dir    *storage.Directory
	notify Notifier
	log    *zap.Logger
}

func NewBank(ledger *storage.Ledger, dir *storage.Directory, notify Notifier, log *zap.Logger) *Bank {
	return &Bank{ledger: ledger, dir: dir, notify: notify, log: log.Named("bank")}
}

// BalanceByChat shows the caller their own balance; unresolved or
// accountless identities read as zero.
func (b *Bank) BalanceByChat(ctx context.Context, chatID domain.ChatID) int64 {
	r, err := b.dir.ResidentByChat(ctx, chatID)
	if err != nil {
		return 0
	}
	return b.ledger.GetBalance(ctx, r.ID)
}

// Transfer moves amount from the sender (resolved by chat identity) to
// the recipient and then tells the recipient, best-effort.
func (b *Bank) Transfer(ctx context.Context, fromChat domain.ChatID, to domain.ResidentID, amount int64, comment string) error {
	if err := b.ledger.Transfer(ctx, fromChat, to, amount, comment); err != nil {
		return err
	}
	sender, _ := b.dir.ResidentByChat(ctx, fromChat)
	fromNick := string(fromChat)
	if sender != nil {
		fromNick = sender.Nick
	}
	b.notifyResident(ctx, to, func(r *domain.Resident) string {
		msg := fmt.Sprintf("📥 Вам переведено %d WVR от %s", amount, fromNick)
		if comment != "" {
			msg += "\nКомментарий: " + comment
		}
		return msg
	})
	return nil
}

// Deposit credits a resident and tells them why.
func (b *Bank) Deposit(ctx context.Context, to domain.ResidentID, amount int64, reason string) error {
	if err := b.ledger.Deposit(ctx, to, amount, reason); err != nil {
		return err
	}
	b.notifyResident(ctx, to, func(*domain.Resident) string {
		return fmt.Sprintf("📥 Вам начислено %d WVR\nПричина: %s", amount, reason)
	})
	return nil
}

// Withdraw debits a resident. The teller already sees the outcome, so
// nobody is notified.
func (b *Bank) Withdraw(ctx context.Context, from domain.ResidentID, amount int64, reason string) error {
	return b.ledger.Withdraw(ctx, from, amount, reason)
}

// CashOut converts WVR to in-game currency 1:1: a withdraw with the
// fixed cash-out reason plus a notification naming the operator.
func (b *Bank) CashOut(ctx context.Context, from domain.ResidentID, amount int64, operator string) error {
	if err := b.ledger.Withdraw(ctx, from, amount, CashOutReason); err != nil {
		return err
	}
	b.notifyResident(ctx, from, func(*domain.Resident) string {
		return fmt.Sprintf("✅ Ваши %d WVR были обналичены в %d АР\nОперацию выполнил: @%s",
			amount, amount, operator)
	})
	return nil
}

// notifyResident dispatches a fire-and-forget message to a resident's
// bound chat identity, if any.
func (b *Bank) notifyResident(ctx context.Context, id domain.ResidentID, text func(*domain.Resident) string) {
	r, err := b.dir.Get(ctx, id)
	if err != nil || r.ChatID == "" {
		return
	}
	msg := text(r)
	go func() {
		if err := b.notify.Notify(r.ChatID, msg); err != nil {
			b.log.Warn("notification failed",
				zap.String("resident", string(id)),
				zap.String("chat", string(r.ChatID)),
				zap.Error(err))
		}
	}()
}
