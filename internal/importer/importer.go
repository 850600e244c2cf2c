// Package importer pulls the community roster snapshot into the
// directory. The feed contract is replace semantics: each sync the
// imported resident set becomes exactly the snapshot.
package importer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/whitover/whitoverbot/internal/storage"
)

// Source supplies one full roster snapshot per call. The spreadsheet
// client lives behind this interface; the bot itself only ships the CSV
// snapshot source.
type Source interface {
	Fetch(ctx context.Context) ([]storage.ImportedRow, error)
}

type Syncer struct {
	source Source
	dir    *storage.Directory
	log    *zap.Logger
}

func NewSyncer(source Source, dir *storage.Directory, log *zap.Logger) *Syncer {
	return &Syncer{source: source, dir: dir, log: log.Named("importer")}
}

// SyncOnce fetches a snapshot and replaces the imported resident set.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	rows, err := s.source.Fetch(ctx)
	if err != nil {
		return err
	}
	if err := s.dir.ReplaceImported(ctx, rows); err != nil {
		return err
	}
	s.log.Info("roster synced", zap.Int("rows", len(rows)))
	return nil
}

// Run syncs immediately and then on every tick until the context ends.
// A failed sync is logged and retried on the next tick, never sooner.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) error {
	if err := s.SyncOnce(ctx); err != nil {
		s.log.Error("initial sync failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.SyncOnce(ctx); err != nil {
				s.log.Error("sync failed", zap.Error(err))
			}
		}
	}
}
