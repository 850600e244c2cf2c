package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/whitover/whitoverbot/internal/domain"
	"github.com/whitover/whitoverbot/internal/storage"
)

const rejectionReason = "Отказ в регистрации"

// Registry owns the registration admission control: one non-rejected
// application per chat identity, checked before any registration flow
// starts, and the admin approve/reject decision afterwards.
type Registry struct {
	dir    *storage.Directory
	apps   *storage.Applications
	ledger *storage.Ledger
	black  *storage.Blacklist
	notify Notifier
	log    *zap.Logger
}

func NewRegistry(dir *storage.Directory, apps *storage.Applications, ledger *storage.Ledger,
	black *storage.Blacklist, notify Notifier, log *zap.Logger) *Registry {
	return &Registry{
		dir: dir, apps: apps, ledger: ledger, black: black,
		notify: notify, log: log.Named("registry"),
	}
}

// CanRegister gates a new registration flow: refused while an earlier
// application is still pending or the identity is already registered.
func (r *Registry) CanRegister(ctx context.Context, chatID domain.ChatID) error {
	if r.apps.HasPending(chatID) {
		return domain.ErrPendingApp
	}
	if _, err := r.dir.RoleOf(ctx, chatID); err == nil {
		return domain.ErrAlreadyRegistered
	}
	return nil
}

// Submit classifies the application against the roster, persists it and
// notifies every admin with approve/block buttons. The notification is
// best-effort per admin.
func (r *Registry) Submit(ctx context.Context, chatID domain.ChatID, username, nick, discord, birthday string) (domain.MatchKind, error) {
	exact, partial, err := r.dir.FindByNickname(ctx, nick, discord)
	if err != nil {
		return "", fmt.Errorf("submit application: %w", err)
	}
	kind := domain.MatchNone
	switch {
	case len(exact) > 0:
		kind = domain.MatchExact
	case len(partial) > 0:
		kind = domain.MatchPartial
	}

	app, err := r.apps.Create(domain.Application{
		ChatID:   chatID,
		Nick:     nick,
		Discord:  discord,
		Birthday: birthday,
		Status:   domain.AppPending,
	})
	if err != nil {
		return "", fmt.Errorf("submit application: %w", err)
	}

	r.notifyAdmins(ctx, *app, username, kind)
	return kind, nil
}

var matchTitles = map[domain.MatchKind]string{
	domain.MatchExact:   "полное совпадение",
	domain.MatchPartial: "частичное совпадение",
	domain.MatchNone:    "нет совпадений",
}

func (r *Registry) notifyAdmins(ctx context.Context, app domain.Application, username string, kind domain.MatchKind) {
	admins, err := r.dir.AdminIdentities(ctx)
	if err != nil {
		r.log.Error("admin lookup failed", zap.Error(err))
		return
	}
	msg := fmt.Sprintf(
		"📨 Новая заявка на регистрацию (%s):\n"+
			"ID заявки: %s\n"+
			"TG ID: %s\n"+
			"Пользователь: @%s\n"+
			"MC: %s\n"+
			"Discord: %s\n"+
			"Дата рождения: %s\n",
		matchTitles[kind], app.ID, app.ChatID, username, app.Nick, app.Discord, app.Birthday)
	if kind != domain.MatchExact {
		msg += "\n⚠️ ВНИМАНИЕ: Требуется ручная проверка данных!\n"
	}
	buttons := []Button{
		{Label: "✅ Одобрить", Data: "approve:" + app.ID},
		{Label: "❌ Заблокировать", Data: "block:" + app.ID},
	}
	for _, admin := range admins {
		if err := r.notify.NotifyButtons(admin, msg, buttons); err != nil {
			r.log.Warn("admin notification failed", zap.String("admin", string(admin)), zap.Error(err))
		}
	}
}

// Approve binds the applicant's chat identity to the exactly-matching
// roster record, opens their bank account and removes the application.
// Returns the resident the identity was bound to.
func (r *Registry) Approve(ctx context.Context, appID string) (*domain.Resident, error) {
	app, err := r.apps.Get(appID)
	if err != nil {
		return nil, err
	}
	exact, _, err := r.dir.FindByNickname(ctx, app.Nick, app.Discord)
	if err != nil {
		return nil, fmt.Errorf("approve %s: %w", appID, err)
	}
	if len(exact) == 0 {
		// roster has no such resident: needs a manual roster entry first
		return nil, domain.ErrNotFound
	}
	res := exact[0]
	err = r.dir.BindExternalIdentity(ctx, res.ID, app.ChatID)
	if errors.Is(err, domain.ErrAlreadyBound) && res.ChatID == app.ChatID {
		// a retry after a partial approval; the bind already happened
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("approve %s: %w", appID, err)
	}
	if err := r.ledger.CreateAccount(ctx, res.ID); err != nil && !errors.Is(err, domain.ErrAccountExists) {
		return nil, fmt.Errorf("approve %s: %w", appID, err)
	}
	if err := r.apps.Delete(appID); err != nil {
		r.log.Warn("application cleanup failed", zap.String("app", appID), zap.Error(err))
	}
	r.sendAsync(app.ChatID, "🎉 Ваша заявка одобрена! Теперь вы полноправный житель Вайтовера.")
	return &res, nil
}

// Reject blacklists the applicant and removes the application.
func (r *Registry) Reject(ctx context.Context, appID string) error {
	app, err := r.apps.Get(appID)
	if err != nil {
		return err
	}
	if err := r.black.Add(string(app.ChatID), app.Nick, rejectionReason); err != nil {
		return fmt.Errorf("reject %s: %w", appID, err)
	}
	if err := r.apps.Delete(appID); err != nil {
		r.log.Warn("application cleanup failed", zap.String("app", appID), zap.Error(err))
	}
	r.sendAsync(app.ChatID,
		"❌ Ваша заявка на регистрацию была отклонена.\nПо всем вопросам обращайтесь к @feetonok.")
	return nil
}

func (r *Registry) sendAsync(chatID domain.ChatID, text string) {
	go func() {
		if err := r.notify.Notify(chatID, text); err != nil {
			r.log.Warn("notification failed", zap.String("chat", string(chatID)), zap.Error(err))
		}
	}()
}
