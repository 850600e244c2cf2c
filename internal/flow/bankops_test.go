package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/whitover/whitoverbot/internal/domain"
)

type fakeTeller struct {
	err error

	op       string
	gotID    domain.ResidentID
	gotSum   int64
	gotNote  string // reason or operator
}

func (f *fakeTeller) Deposit(_ context.Context, to domain.ResidentID, amount int64, reason string) error {
	if f.err != nil {
		return f.err
	}
	f.op, f.gotID, f.gotSum, f.gotNote = "deposit", to, amount, reason
	return nil
}

func (f *fakeTeller) Withdraw(_ context.Context, from domain.ResidentID, amount int64, reason string) error {
	if f.err != nil {
		return f.err
	}
	f.op, f.gotID, f.gotSum, f.gotNote = "withdraw", from, amount, reason
	return nil
}

func (f *fakeTeller) CashOut(_ context.Context, from domain.ResidentID, amount int64, operator string) error {
	if f.err != nil {
		return f.err
	}
	f.op, f.gotID, f.gotSum, f.gotNote = "cashout", from, amount, operator
	return nil
}

func TestDepositFlow(t *testing.T) {
	ctx := context.Background()
	teller := &fakeTeller{}
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "banker", NewDepositFlow(oneSteve(), teller))

	dispatch(t, e, "42", text("Steve"))
	dispatch(t, e, "42", text("200"))
	reply := dispatch(t, e, "42", text("зарплата за неделю"))

	assert.Contains(t, reply.Text, "✅ Успешно начислено 200 WVR")
	assert.Equal(t, "deposit", teller.op)
	assert.EqualValues(t, "100", teller.gotID)
	assert.EqualValues(t, 200, teller.gotSum)
	assert.Equal(t, "зарплата за неделю", teller.gotNote)
}

func TestDepositFlowDisambiguation(t *testing.T) {
	ctx := context.Background()
	steve := domain.Resident{ID: "100", Nick: "Steve"}
	junior := domain.Resident{ID: "101", Nick: "SteveJr"}
	find := fakeSearcher{"Steve": {steve, junior}, "100": {steve}}
	teller := &fakeTeller{}
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "banker", NewDepositFlow(find, teller))

	reply := dispatch(t, e, "42", text("Steve"))
	assert.Contains(t, reply.Text, "несколько жителей",
		"teller operations disambiguate the same way transfers do")

	dispatch(t, e, "42", button(pickPrefix+"100"))
	dispatch(t, e, "42", text("50"))
	dispatch(t, e, "42", text("премия"))
	assert.EqualValues(t, "100", teller.gotID)
}

func TestWithdrawFlow(t *testing.T) {
	ctx := context.Background()
	teller := &fakeTeller{}
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "banker", NewWithdrawFlow(oneSteve(), teller))

	dispatch(t, e, "42", text("Steve"))
	dispatch(t, e, "42", text("70"))
	reply := dispatch(t, e, "42", text("штраф"))

	assert.Contains(t, reply.Text, "✅ Успешно снято 70 WVR")
	assert.Equal(t, "withdraw", teller.op)
}

func TestWithdrawFlowInsufficient(t *testing.T) {
	ctx := context.Background()
	teller := &fakeTeller{err: domain.ErrInsufficientFunds}
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "banker", NewWithdrawFlow(oneSteve(), teller))

	dispatch(t, e, "42", text("Steve"))
	dispatch(t, e, "42", text("70"))
	reply := dispatch(t, e, "42", text("штраф"))

	assert.Contains(t, reply.Text, "❌")
	assert.False(t, e.Active("42"))
}

func TestExchangeFlow(t *testing.T) {
	ctx := context.Background()
	teller := &fakeTeller{}
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "feetonok", NewExchangeFlow(oneSteve(), teller))

	dispatch(t, e, "42", text("Steve"))
	reply := dispatch(t, e, "42", text("40"))

	assert.Contains(t, reply.Text, "✅ Успешно обналичено 40 WVR в 40 АР")
	assert.Equal(t, "cashout", teller.op)
	assert.EqualValues(t, 40, teller.gotSum)
	require.Equal(t, "feetonok", teller.gotNote, "the operator is attributed by username")
}
