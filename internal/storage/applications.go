package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/whitover/whitoverbot/internal/domain"
)

// Applications persists registration applications, one JSON file per
// application, named app_<chatID>_<applicationID>.json.
type Applications struct {
	mu  sync.Mutex
	dir string
	log *zap.Logger
}

func NewApplications(dir string, log *zap.Logger) (*Applications, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("applications dir: %w", err)
	}
	return &Applications{dir: dir, log: log.Named("applications")}, nil
}

func (a *Applications) filename(app domain.Application) string {
	return filepath.Join(a.dir, fmt.Sprintf("app_%s_%s.json", app.ChatID, app.ID))
}

// Create assigns the application id and timestamp and persists the file.
func (a *Applications) Create(app domain.Application) (*domain.Application, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	app.ID = uuid.NewString()
	app.CreatedAt = time.Now().UTC()
	if app.Status == "" {
		app.Status = domain.AppPending
	}
	data, err := json.MarshalIndent(app, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(a.filename(app), data, 0o644); err != nil {
		return nil, fmt.Errorf("write application: %w", err)
	}
	return &app, nil
}

// Get looks an application up by id across all identities.
func (a *Applications) Get(appID string) (*domain.Application, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	path, err := a.findLocked(appID)
	if err != nil {
		return nil, err
	}
	return readApplication(path)
}

// HasPending reports whether any non-rejected application exists for the
// chat identity. This check happens-before every new registration flow.
func (a *Applications) HasPending(chatID domain.ChatID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		a.log.Error("applications dir read failed", zap.Error(err))
		return false
	}
	prefix := "app_" + string(chatID) + "_"
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		app, err := readApplication(filepath.Join(a.dir, e.Name()))
		if err != nil {
			a.log.Warn("unreadable application file", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		if app.Status != domain.AppRejected {
			return true
		}
	}
	return false
}

// ByChat returns every stored application for a chat identity, oldest
// first.
func (a *Applications) ByChat(chatID domain.ChatID) ([]domain.Application, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("applications dir: %w", err)
	}
	prefix := "app_" + string(chatID) + "_"
	var out []domain.Application
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		app, err := readApplication(filepath.Join(a.dir, e.Name()))
		if err != nil {
			a.log.Warn("unreadable application file", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		out = append(out, *app)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Delete removes the application file once a decision is made.
func (a *Applications) Delete(appID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	path, err := a.findLocked(appID)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func (a *Applications) findLocked(appID string) (string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return "", fmt.Errorf("applications dir: %w", err)
	}
	suffix := "_" + appID + ".json"
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			return filepath.Join(a.dir, e.Name()), nil
		}
	}
	return "", domain.ErrNotFound
}

func readApplication(path string) (*domain.Application, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read application: %w", err)
	}
	var app domain.Application
	if err := json.Unmarshal(data, &app); err != nil {
		return nil, fmt.Errorf("parse application: %w", err)
	}
	return &app, nil
}
