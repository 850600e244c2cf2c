package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/whitover/whitoverbot/internal/storage"
)

func writeSnapshot(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVSourceFetch(t *testing.T) {
	path := writeSnapshot(t,
		"id,nickname,discord,telegram,is_resident\n"+
			"100,Steve,steve#1,42,true\n"+
			"101,Alex,alex#2,,TRUE\n"+
			",Ghost,ghost#3,,true\n"+
			"102,Visitor,vis#4,,false\n")

	rows, err := NewCSVSource(path).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3, "rows without an id are skipped")

	assert.EqualValues(t, "100", rows[0].ID)
	assert.Equal(t, "Steve", rows[0].Nick)
	assert.EqualValues(t, "42", rows[0].ChatID)
	assert.True(t, rows[0].Resident)
	assert.True(t, rows[1].Resident, "is_resident is case-insensitive")
	assert.False(t, rows[2].Resident)
}

func TestCSVSourceMissingFile(t *testing.T) {
	_, err := NewCSVSource(filepath.Join(t.TempDir(), "nope.csv")).Fetch(context.Background())
	assert.Error(t, err)
}

type errSource struct{ err error }

func (s errSource) Fetch(context.Context) ([]storage.ImportedRow, error) { return nil, s.err }

func TestSyncerSyncOnce(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenCivilianDB(ctx, filepath.Join(t.TempDir(), "civilian.db"))
	require.NoError(t, err)
	defer db.Close()
	dir := storage.NewDirectory(db, zap.NewNop())

	path := writeSnapshot(t,
		"id,nickname,discord,telegram,is_resident\n"+
			"100,Steve,steve#1,,true\n")
	s := NewSyncer(NewCSVSource(path), dir, zap.NewNop())
	require.NoError(t, s.SyncOnce(ctx))

	res, err := dir.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "Steve", res.Nick)

	// second snapshot replaces the set
	require.NoError(t, os.WriteFile(path, []byte(
		"id,nickname,discord,telegram,is_resident\n"+
			"101,Alex,alex#2,,true\n"), 0o644))
	require.NoError(t, s.SyncOnce(ctx))

	_, err = dir.Get(ctx, "100")
	assert.Error(t, err)
	_, err = dir.Get(ctx, "101")
	assert.NoError(t, err)
}

func TestSyncerSourceFailure(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenCivilianDB(ctx, filepath.Join(t.TempDir(), "civilian.db"))
	require.NoError(t, err)
	defer db.Close()
	dir := storage.NewDirectory(db, zap.NewNop())

	boom := errors.New("feed unavailable")
	err = NewSyncer(errSource{err: boom}, dir, zap.NewNop()).SyncOnce(ctx)
	assert.ErrorIs(t, err, boom, "a failed fetch must not touch the directory")
}
