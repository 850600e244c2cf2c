package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/whitover/whitoverbot/internal/domain"
)

// Blacklist is an ordered JSON list file. Presence suppresses all
// interaction with the bot.
type Blacklist struct {
	mu   sync.Mutex
	path string
	log  *zap.Logger
}

func NewBlacklist(path string, log *zap.Logger) *Blacklist {
	return &Blacklist{path: path, log: log.Named("blacklist")}
}

func (b *Blacklist) readLocked() ([]domain.BlacklistEntry, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read blacklist: %w", err)
	}
	var list []domain.BlacklistEntry
	if len(data) > 0 {
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parse blacklist: %w", err)
		}
	}
	return list, nil
}

func (b *Blacklist) writeLocked(list []domain.BlacklistEntry) error {
	if list == nil {
		list = []domain.BlacklistEntry{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write blacklist: %w", err)
	}
	return os.Rename(tmp, b.path)
}

func (b *Blacklist) List() ([]domain.BlacklistEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readLocked()
}

func (b *Blacklist) Add(id, nick, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	list, err := b.readLocked()
	if err != nil {
		return err
	}
	entry := domain.BlacklistEntry{
		ID:        id,
		Nick:      nick,
		Reason:    reason,
		BlockedAt: time.Now().UTC(),
	}
	for i, e := range list {
		if e.ID == id {
			list[i] = entry
			return b.writeLocked(list)
		}
	}
	return b.writeLocked(append(list, entry))
}

func (b *Blacklist) Remove(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	list, err := b.readLocked()
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, e := range list {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(list) {
		return domain.ErrNotFound
	}
	return b.writeLocked(kept)
}

func (b *Blacklist) Get(id string) (*domain.BlacklistEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list, err := b.readLocked()
	if err != nil {
		return nil, err
	}
	for _, e := range list {
		if e.ID == id {
			entry := e
			return &entry, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Contains does a full scan; the list is small. Read failures are logged
// and treated as "not blacklisted" so storage trouble never locks
// everyone out.
func (b *Blacklist) Contains(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	list, err := b.readLocked()
	if err != nil {
		b.log.Error("blacklist read failed", zap.Error(err))
		return false
	}
	for _, e := range list {
		if e.ID == id {
			return true
		}
	}
	return false
}
