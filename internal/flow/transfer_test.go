package flow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/whitover/whitoverbot/internal/domain"
)

type fakeSearcher map[string][]domain.Resident

func (f fakeSearcher) Search(_ context.Context, q string) ([]domain.Resident, error) {
	return f[q], nil
}

type fakeBank struct {
	balance     int64
	transferErr error

	gotChat    domain.ChatID
	gotTo      domain.ResidentID
	gotAmount  int64
	gotComment string
}

func (f *fakeBank) BalanceByChat(context.Context, domain.ChatID) int64 { return f.balance }

func (f *fakeBank) Transfer(_ context.Context, fromChat domain.ChatID, to domain.ResidentID, amount int64, comment string) error {
	if f.transferErr != nil {
		return f.transferErr
	}
	f.gotChat, f.gotTo, f.gotAmount, f.gotComment = fromChat, to, amount, comment
	return nil
}

func oneSteve() fakeSearcher {
	steve := domain.Resident{ID: "100", Nick: "Steve"}
	return fakeSearcher{"Steve": {steve}, "100": {steve}}
}

func text(s string) Event   { return Event{Kind: EventText, Text: s} }
func button(d string) Event { return Event{Kind: EventButton, Data: d} }

func dispatch(t *testing.T, e *Engine, chat domain.ChatID, ev Event) Reply {
	t.Helper()
	reply, ok := e.Dispatch(context.Background(), chat, ev)
	require.True(t, ok)
	return reply
}

func TestTransferFlowHappyPath(t *testing.T) {
	ctx := context.Background()
	bank := &fakeBank{balance: 100}
	e := NewEngine(zap.NewNop())
	f := NewTransferFlow(oneSteve(), bank)

	reply := e.Start(ctx, "42", "sender", f)
	assert.Contains(t, reply.Text, "получателя")

	reply = dispatch(t, e, "42", text("Steve"))
	assert.Contains(t, reply.Text, "сумму")

	reply = dispatch(t, e, "42", text("30"))
	assert.Contains(t, reply.Text, "Подтвердите перевод")
	assert.Contains(t, reply.Text, "Steve")
	assert.Contains(t, reply.Text, "30")

	reply = dispatch(t, e, "42", button(btnConfirmTransfer))
	assert.Contains(t, reply.Text, "✅ Успешно переведено 30 WVR")
	assert.False(t, e.Active("42"))

	assert.EqualValues(t, "42", bank.gotChat)
	assert.EqualValues(t, "100", bank.gotTo)
	assert.EqualValues(t, 30, bank.gotAmount)
	assert.Empty(t, bank.gotComment)
}

func TestTransferFlowComment(t *testing.T) {
	ctx := context.Background()
	bank := &fakeBank{balance: 100}
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "sender", NewTransferFlow(oneSteve(), bank))

	dispatch(t, e, "42", text("Steve"))
	dispatch(t, e, "42", text("30"))

	reply := dispatch(t, e, "42", button(btnAddComment))
	assert.Contains(t, reply.Text, "комментарий")

	reply = dispatch(t, e, "42", text("за алмазы"))
	assert.Contains(t, reply.Text, "за алмазы", "confirmation shows the comment")

	dispatch(t, e, "42", button(btnConfirmTransfer))
	assert.Equal(t, "за алмазы", bank.gotComment)
}

func TestTransferFlowRecipientNotFound(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "sender", NewTransferFlow(fakeSearcher{}, &fakeBank{balance: 100}))

	reply := dispatch(t, e, "42", text("Nobody"))
	assert.Equal(t, notFoundText, reply.Text)
	assert.False(t, e.Active("42"), "zero matches end the dialog")
}

func TestTransferFlowDisambiguation(t *testing.T) {
	ctx := context.Background()
	steve := domain.Resident{ID: "100", Nick: "Steve"}
	junior := domain.Resident{ID: "101", Nick: "SteveJr"}
	find := fakeSearcher{
		"Steve": {steve, junior},
		"101":   {junior},
	}
	bank := &fakeBank{balance: 100}
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "sender", NewTransferFlow(find, bank))

	reply := dispatch(t, e, "42", text("Steve"))
	assert.Contains(t, reply.Text, "несколько жителей")
	require.Len(t, reply.Buttons, 3, "one button per candidate plus cancel")
	assert.Equal(t, pickPrefix+"100", reply.Buttons[0][0].Data)
	assert.Equal(t, pickPrefix+"101", reply.Buttons[1][0].Data)

	// plain text never auto-selects a candidate
	reply = dispatch(t, e, "42", text("the second one"))
	assert.Contains(t, reply.Text, "Выберите жителя")
	assert.True(t, e.Active("42"))

	reply = dispatch(t, e, "42", button(pickPrefix+"101"))
	assert.Contains(t, reply.Text, "сумму")

	dispatch(t, e, "42", text("25"))
	dispatch(t, e, "42", button(btnConfirmTransfer))
	assert.EqualValues(t, "101", bank.gotTo)
}

// Search matches nickname substrings too, so re-resolving a picked id
// can return other residents whose nickname contains that id.
func TestTransferFlowPickResolvesExactID(t *testing.T) {
	ctx := context.Background()
	zed := domain.Resident{ID: "5", Nick: "Zed"}
	anna := domain.Resident{ID: "77", Nick: "Anna5"}
	find := fakeSearcher{"5": {anna, zed}}
	bank := &fakeBank{balance: 100}
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "sender", NewTransferFlow(find, bank))

	reply := dispatch(t, e, "42", text("5"))
	assert.Contains(t, reply.Text, "несколько жителей")

	reply = dispatch(t, e, "42", button(pickPrefix+"5"))
	assert.Contains(t, reply.Text, "сумму")

	dispatch(t, e, "42", text("30"))
	dispatch(t, e, "42", button(btnConfirmTransfer))
	assert.EqualValues(t, "5", bank.gotTo, "money goes to the picked resident, not the first search hit")
}

func TestTransferFlowPickGoneRecipient(t *testing.T) {
	ctx := context.Background()
	steve := domain.Resident{ID: "100", Nick: "Steve"}
	junior := domain.Resident{ID: "101", Nick: "SteveJr"}
	bank := &fakeBank{balance: 100}
	e := NewEngine(zap.NewNop())
	// the picked id resolves to nothing (removed between search and pick)
	e.Start(ctx, "42", "sender", NewTransferFlow(fakeSearcher{"Steve": {steve, junior}}, bank))

	dispatch(t, e, "42", text("Steve"))
	reply := dispatch(t, e, "42", button(pickPrefix+"101"))
	assert.Equal(t, notFoundText, reply.Text)
	assert.False(t, e.Active("42"))
	assert.Zero(t, bank.gotAmount)
}

func TestTransferFlowBadAmount(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "sender", NewTransferFlow(oneSteve(), &fakeBank{balance: 100}))
	dispatch(t, e, "42", text("Steve"))

	for _, bad := range []string{"abc", "0", "-5", "1.5"} {
		reply := dispatch(t, e, "42", text(bad))
		assert.Equal(t, badAmountText, reply.Text, "input %q", bad)
		assert.True(t, e.Active("42"), "bad amount re-prompts instead of ending")
	}

	reply := dispatch(t, e, "42", text("10"))
	assert.Contains(t, reply.Text, "Подтвердите")
}

func TestTransferFlowAdvisoryBalanceCheck(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "sender", NewTransferFlow(oneSteve(), &fakeBank{balance: 10}))
	dispatch(t, e, "42", text("Steve"))

	reply := dispatch(t, e, "42", text("30"))
	assert.Equal(t, "❌ Недостаточно средств. Ваш баланс: 10 WVR", reply.Text)
	assert.False(t, e.Active("42"))
}

// The advisory check can pass on a stale balance; the commit inside the
// bank is authoritative and its refusal must reach the user.
func TestTransferFlowStaleBalance(t *testing.T) {
	ctx := context.Background()
	bank := &fakeBank{balance: 100, transferErr: domain.ErrInsufficientFunds}
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "sender", NewTransferFlow(oneSteve(), bank))
	dispatch(t, e, "42", text("Steve"))
	dispatch(t, e, "42", text("30"))

	reply := dispatch(t, e, "42", button(btnConfirmTransfer))
	assert.Equal(t, "❌ Недостаточно средств для перевода", reply.Text)
	assert.False(t, e.Active("42"))
}

func TestTransferFlowCancelButton(t *testing.T) {
	ctx := context.Background()
	bank := &fakeBank{balance: 100}
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "sender", NewTransferFlow(oneSteve(), bank))
	dispatch(t, e, "42", text("Steve"))
	dispatch(t, e, "42", text("30"))

	reply := dispatch(t, e, "42", button(btnCancelTransfer))
	assert.Equal(t, "❌ Перевод отменен", reply.Text)
	assert.False(t, e.Active("42"))
	assert.Zero(t, bank.gotAmount, "cancelled transfer never reaches the bank")
}

func TestTransferFlowConfirmIgnoresText(t *testing.T) {
	ctx := context.Background()
	bank := &fakeBank{balance: 100}
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "sender", NewTransferFlow(oneSteve(), bank))
	dispatch(t, e, "42", text("Steve"))
	dispatch(t, e, "42", text("30"))

	reply := dispatch(t, e, "42", text(fmt.Sprintf("yes %s", "please")))
	assert.Contains(t, reply.Text, "Подтвердите", "text at the confirm step re-prompts")
	assert.Zero(t, bank.gotAmount)
}
