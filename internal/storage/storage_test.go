package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/whitover/whitoverbot/internal/domain"
)

func testDB(t *testing.T, open func(context.Context, string) (*sql.DB, error), name string) *sql.DB {
	t.Helper()
	db, err := open(context.Background(), filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testDirectory(t *testing.T) *Directory {
	t.Helper()
	return NewDirectory(testDB(t, OpenCivilianDB, "civilian.db"), zap.NewNop())
}

func seedResidents(t *testing.T, d *Directory, rows ...ImportedRow) {
	t.Helper()
	require.NoError(t, d.ReplaceImported(context.Background(), rows))
}

// stubResolver maps chat identities straight to resident ids, standing
// in for the Directory in ledger tests.
type stubResolver map[domain.ChatID]domain.ResidentID

func (r stubResolver) ResidentByChat(_ context.Context, chat domain.ChatID) (*domain.Resident, error) {
	id, ok := r[chat]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.Resident{ID: id, ChatID: chat, Role: domain.RoleResident}, nil
}
