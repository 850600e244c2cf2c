package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/whitover/whitoverbot/internal/domain"
)

// ChatResolver maps an external chat identity to a resident record.
// Implemented by Directory.
type ChatResolver interface {
	ResidentByChat(ctx context.Context, chatID domain.ChatID) (*domain.Resident, error)
}

// Ledger holds account balances and the append-only transaction log.
// Every mutating operation runs as one immediate sqlite transaction, so
// the balance check and the writes form a single exclusive section and
// a balance change always commits together with exactly one log row.
type Ledger struct {
	db       *sql.DB
	resolver ChatResolver
	log      *zap.Logger
}

func NewLedger(db *sql.DB, resolver ChatResolver, log *zap.Logger) *Ledger {
	return &Ledger{db: db, resolver: resolver, log: log.Named("ledger")}
}

// GetBalance returns 0 for a missing account and never reports an error;
// storage trouble is logged and shown as a zero balance.
func (l *Ledger) GetBalance(ctx context.Context, id domain.ResidentID) int64 {
	var balance int64
	err := l.db.QueryRowContext(ctx,
		"SELECT balance FROM accounts WHERE id = ?", string(id)).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0
	}
	if err != nil {
		l.log.Error("balance read failed", zap.String("id", string(id)), zap.Error(err))
		return 0
	}
	return balance
}

// CreateAccount opens a zero-balance account. Duplicate calls fail with
// ErrAccountExists; idempotent retries are deliberately not supported.
func (l *Ledger) CreateAccount(ctx context.Context, id domain.ResidentID) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO accounts (id, balance, salary) VALUES (?, 0, 0)", string(id))
	if isUniqueViolation(err) {
		return domain.ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("create account %s: %w", id, err)
	}
	return nil
}

func (l *Ledger) Deposit(ctx context.Context, id domain.ResidentID, amount int64, reason string) error {
	if amount <= 0 {
		return domain.ErrValidation
	}
	return l.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE accounts SET balance = balance + ? WHERE id = ?", amount, string(id))
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		return appendTx(ctx, tx, domain.Transaction{
			Actor: id, Kind: domain.TxDeposit, To: &id, Amount: amount, Comment: reason,
		})
	})
}

func (l *Ledger) Withdraw(ctx context.Context, id domain.ResidentID, amount int64, reason string) error {
	if amount <= 0 {
		return domain.ErrValidation
	}
	return l.inTx(ctx, func(tx *sql.Tx) error {
		var balance int64
		err := tx.QueryRowContext(ctx,
			"SELECT balance FROM accounts WHERE id = ?", string(id)).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if balance < amount {
			return domain.ErrInsufficientFunds
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE accounts SET balance = balance - ? WHERE id = ?", amount, string(id)); err != nil {
			return err
		}
		return appendTx(ctx, tx, domain.Transaction{
			Actor: id, Kind: domain.TxWithdraw, From: &id, Amount: amount, Comment: reason,
		})
	})
}

// Transfer resolves the sender from their chat identity, then debits,
// credits and logs in one transaction. The balance check here is the
// authoritative one; any pre-check shown to the user is advisory only.
func (l *Ledger) Transfer(ctx context.Context, fromChat domain.ChatID, to domain.ResidentID, amount int64, comment string) error {
	if amount <= 0 {
		return domain.ErrValidation
	}
	sender, err := l.resolver.ResidentByChat(ctx, fromChat)
	if err != nil {
		return fmt.Errorf("resolve sender %s: %w", fromChat, err)
	}
	from := sender.ID
	return l.inTx(ctx, func(tx *sql.Tx) error {
		var balance int64
		err := tx.QueryRowContext(ctx,
			"SELECT balance FROM accounts WHERE id = ?", string(from)).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if balance < amount {
			return domain.ErrInsufficientFunds
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE accounts SET balance = balance - ? WHERE id = ?", amount, string(from)); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE accounts SET balance = balance + ? WHERE id = ?", amount, string(to))
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// recipient has no account; abort so no money vanishes
			return domain.ErrNotFound
		}
		return appendTx(ctx, tx, domain.Transaction{
			Actor: from, Kind: domain.TxTransfer, From: &from, To: &to, Amount: amount, Comment: comment,
		})
	})
}

// ListTransactions pages through the log, newest first.
func (l *Ledger) ListTransactions(ctx context.Context, page, pageSize int) ([]domain.Transaction, error) {
	if pageSize <= 0 {
		pageSize = 10
	}
	if page < 1 {
		page = 1
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, user_id, type, date, from_user, to_user, amount, comment
		 FROM transactions ORDER BY id DESC LIMIT ? OFFSET ?`,
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var actor, kind, date, from, to, comment sql.NullString
		if err := rows.Scan(&t.ID, &actor, &kind, &date, &from, &to, &t.Amount, &comment); err != nil {
			return nil, err
		}
		t.Actor = domain.ResidentID(actor.String)
		t.Kind = domain.TxKind(kind.String)
		t.Comment = comment.String
		if date.Valid {
			t.Date, _ = time.Parse(time.RFC3339Nano, date.String)
		}
		if from.Valid {
			id := domain.ResidentID(from.String)
			t.From = &id
		}
		if to.Valid {
			id := domain.ResidentID(to.String)
			t.To = &id
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountTransactions reports the size of the log (for paging).
func (l *Ledger) CountTransactions(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (l *Ledger) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func appendTx(ctx context.Context, tx *sql.Tx, t domain.Transaction) error {
	var from, to any
	if t.From != nil {
		from = string(*t.From)
	}
	if t.To != nil {
		to = string(*t.To)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, type, date, from_user, to_user, amount, comment)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(t.Actor), string(t.Kind), time.Now().UTC().Format(time.RFC3339Nano),
		from, to, t.Amount, t.Comment)
	return err
}
