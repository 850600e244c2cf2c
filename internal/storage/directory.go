package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/whitover/whitoverbot/internal/domain"
)

// Directory is the resident registry: external chat identity ↔ resident
// id ↔ role. Rows come from the feed import or from admin approval.
type Directory struct {
	db  *sql.DB
	log *zap.Logger
}

func NewDirectory(db *sql.DB, log *zap.Logger) *Directory {
	return &Directory{db: db, log: log.Named("directory")}
}

func scanResident(row interface{ Scan(...any) error }) (*domain.Resident, error) {
	var r domain.Resident
	var discord, chat, role sql.NullString
	if err := row.Scan(&r.ID, &r.Nick, &discord, &chat, &role); err != nil {
		return nil, err
	}
	r.Discord = discord.String
	r.ChatID = domain.ChatID(chat.String)
	r.Role = domain.Role(role.String)
	return &r, nil
}

const residentCols = "id, nickname, discord, telegram_uid, role"

// RoleOf returns the role bound to a chat identity, or ErrNotFound for
// unregistered guests.
func (d *Directory) RoleOf(ctx context.Context, chatID domain.ChatID) (domain.Role, error) {
	var role string
	err := d.db.QueryRowContext(ctx,
		"SELECT role FROM civilians WHERE telegram_uid = ?", string(chatID)).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("role of %s: %w", chatID, err)
	}
	return domain.Role(role), nil
}

// ResidentByChat resolves a chat identity to its resident record.
func (d *Directory) ResidentByChat(ctx context.Context, chatID domain.ChatID) (*domain.Resident, error) {
	row := d.db.QueryRowContext(ctx,
		"SELECT "+residentCols+" FROM civilians WHERE telegram_uid = ?", string(chatID))
	r, err := scanResident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resident by chat %s: %w", chatID, err)
	}
	return r, nil
}

func (d *Directory) Get(ctx context.Context, id domain.ResidentID) (*domain.Resident, error) {
	row := d.db.QueryRowContext(ctx,
		"SELECT "+residentCols+" FROM civilians WHERE id = ?", string(id))
	r, err := scanResident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get resident %s: %w", id, err)
	}
	return r, nil
}

func (d *Directory) ResidentsByRole(ctx context.Context, role domain.Role) ([]domain.Resident, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT "+residentCols+" FROM civilians WHERE role = ? ORDER BY nickname", string(role))
	if err != nil {
		return nil, fmt.Errorf("residents by role %s: %w", role, err)
	}
	defer rows.Close()
	return collectResidents(rows)
}

// List pages through the whole directory ordered by nickname and also
// returns the total resident count for pagination.
func (d *Directory) List(ctx context.Context, page, pageSize int) ([]domain.Resident, int, error) {
	if page < 1 {
		page = 1
	}
	var total int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM civilians").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count residents: %w", err)
	}
	rows, err := d.db.QueryContext(ctx,
		"SELECT "+residentCols+" FROM civilians ORDER BY nickname LIMIT ? OFFSET ?",
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list residents: %w", err)
	}
	defer rows.Close()
	out, err := collectResidents(rows)
	return out, total, err
}

// AdminIdentities returns the chat ids of every admin with a bound chat
// identity.
func (d *Directory) AdminIdentities(ctx context.Context) ([]domain.ChatID, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT telegram_uid FROM civilians WHERE role = ? AND telegram_uid IS NOT NULL",
		string(domain.RoleAdmin))
	if err != nil {
		return nil, fmt.Errorf("admin identities: %w", err)
	}
	defer rows.Close()
	var out []domain.ChatID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if id != "" {
			out = append(out, domain.ChatID(id))
		}
	}
	return out, rows.Err()
}

// Search finds residents by exact id or nickname substring. Used by the
// money flows to resolve free-text recipient input.
func (d *Directory) Search(ctx context.Context, query string) ([]domain.Resident, error) {
	query = strings.TrimSpace(query)
	rows, err := d.db.QueryContext(ctx,
		"SELECT "+residentCols+" FROM civilians WHERE id = ? OR nickname LIKE ? ORDER BY nickname",
		query, "%"+query+"%")
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer rows.Close()
	return collectResidents(rows)
}

// FindByNickname returns exact matches (nickname AND discord equal) and
// partial matches (either equal). Registration admission routing only.
func (d *Directory) FindByNickname(ctx context.Context, nick, discord string) (exact, partial []domain.Resident, err error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT "+residentCols+" FROM civilians WHERE nickname = ? AND discord = ?", nick, discord)
	if err != nil {
		return nil, nil, fmt.Errorf("find exact: %w", err)
	}
	exact, err = collectResidents(rows)
	rows.Close()
	if err != nil {
		return nil, nil, err
	}

	rows, err = d.db.QueryContext(ctx,
		"SELECT "+residentCols+" FROM civilians WHERE nickname = ? OR discord = ?", nick, discord)
	if err != nil {
		return nil, nil, fmt.Errorf("find partial: %w", err)
	}
	partial, err = collectResidents(rows)
	rows.Close()
	if err != nil {
		return nil, nil, err
	}
	return exact, partial, nil
}

// BindExternalIdentity performs the one-time binding of a chat identity
// to a resident at approval. A second bind for the same resident or the
// same chat id fails.
func (d *Directory) BindExternalIdentity(ctx context.Context, id domain.ResidentID, chatID domain.ChatID) error {
	res, err := d.db.ExecContext(ctx,
		"UPDATE civilians SET telegram_uid = ? WHERE id = ? AND telegram_uid IS NULL",
		string(chatID), string(id))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyBound
		}
		return fmt.Errorf("bind %s to %s: %w", chatID, id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// either no such resident or already bound
		if _, gerr := d.Get(ctx, id); gerr != nil {
			return domain.ErrNotFound
		}
		return domain.ErrAlreadyBound
	}
	return nil
}

func (d *Directory) SetRole(ctx context.Context, id domain.ResidentID, role domain.Role) error {
	if !role.Valid() {
		return domain.ErrValidation
	}
	res, err := d.db.ExecContext(ctx,
		"UPDATE civilians SET role = ? WHERE id = ?", string(role), string(id))
	if err != nil {
		return fmt.Errorf("set role %s=%s: %w", id, role, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ImportedRow is one row of the tabular feed snapshot.
type ImportedRow struct {
	ID       domain.ResidentID
	Nick     string
	Discord  string
	ChatID   domain.ChatID
	Resident bool
}

// ReplaceImported applies the feed's replace semantics: the resident set
// becomes exactly the snapshot's resident rows. Rows whose id already
// exists keep their granted role and bound chat identity; absent
// residents are dropped from the directory (accounts stay in the bank).
func (d *Directory) ReplaceImported(ctx context.Context, rows []ImportedRow) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace imported: %w", err)
	}
	defer tx.Rollback()

	type kept struct {
		role string
		chat sql.NullString
	}
	existing := map[domain.ResidentID]kept{}
	cur, err := tx.QueryContext(ctx, "SELECT id, role, telegram_uid FROM civilians")
	if err != nil {
		return fmt.Errorf("replace imported: %w", err)
	}
	for cur.Next() {
		var id, role string
		var chat sql.NullString
		if err := cur.Scan(&id, &role, &chat); err != nil {
			cur.Close()
			return err
		}
		existing[domain.ResidentID(id)] = kept{role: role, chat: chat}
	}
	cur.Close()
	if err := cur.Err(); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM civilians"); err != nil {
		return fmt.Errorf("replace imported: %w", err)
	}
	n := 0
	for _, row := range rows {
		if !row.Resident {
			continue
		}
		role := string(domain.RoleResident)
		chat := nullable(string(row.ChatID))
		if old, ok := existing[row.ID]; ok {
			role = old.role
			if old.chat.Valid {
				chat = old.chat
			}
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO civilians (id, nickname, discord, telegram_uid, role) VALUES (?, ?, ?, ?, ?)",
			string(row.ID), row.Nick, row.Discord, chat, role); err != nil {
			return fmt.Errorf("replace imported %s: %w", row.ID, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace imported: %w", err)
	}
	d.log.Info("roster replaced", zap.Int("residents", n))
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func collectResidents(rows *sql.Rows) ([]domain.Resident, error) {
	var out []domain.Resident
	for rows.Next() {
		r, err := scanResident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
