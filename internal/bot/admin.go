package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/whitover/whitoverbot/internal/domain"
	"github.com/whitover/whitoverbot/internal/flow"
)

const (
	usersPageSize = 5
	txPageSize    = 10
	tasksPageSize = 5
)

func (b *Bot) adminPanel(context.Context) flow.Reply {
	return flow.Reply{
		Text: "⚙️ Админ-панель",
		Buttons: [][]flow.Button{
			{{Label: "Управление пользователями 👥", Data: cbManageUsers}},
			{{Label: "Черный список 🚫", Data: cbManageBlacklist}},
			{{Label: "История транзакций 📜", Data: cbViewTx}},
			{{Label: "Управление заданиями 📋", Data: cbManageTasks}},
			backRow(cbMainMenu),
		},
	}
}

func (b *Bot) usersPage(ctx context.Context, page int) flow.Reply {
	residents, total, err := b.dir.List(ctx, page, usersPageSize)
	if err != nil {
		b.log.Error("list residents failed", zap.Error(err))
		return flow.Reply{Text: "Произошла ошибка. Пожалуйста, попробуйте снова."}
	}
	pages := (total + usersPageSize - 1) / usersPageSize
	if pages == 0 {
		pages = 1
	}
	var rows [][]flow.Button
	for _, r := range residents {
		rows = append(rows, []flow.Button{{
			Label: fmt.Sprintf("%s — %s", r.Nick, r.Role.Title()),
			Data:  prefUser + string(r.ID),
		}})
	}
	if nav := pageNav(prefUsersPage, page, pages); nav != nil {
		rows = append(rows, nav)
	}
	rows = append(rows, backRow(cbAdmin))
	return flow.Reply{
		Text:    fmt.Sprintf("👥 Жители (стр. %d/%d)", page, pages),
		Buttons: rows,
	}
}

func (b *Bot) userDetail(ctx context.Context, rawID string) flow.Reply {
	res, err := b.dir.Get(ctx, domain.ResidentID(rawID))
	if errors.Is(err, domain.ErrNotFound) {
		return flow.Reply{Text: "❌ Житель не найден", Buttons: [][]flow.Button{backRow(cbManageUsers)}}
	}
	if err != nil {
		b.log.Error("get resident failed", zap.Error(err))
		return flow.Reply{Text: "Произошла ошибка. Пожалуйста, попробуйте снова."}
	}
	balance := b.ledger.GetBalance(ctx, res.ID)
	bound := "нет"
	if res.ChatID != "" {
		bound = "да"
	}
	text := fmt.Sprintf(
		"👤 %s\nID: %s\nDiscord: %s\nРоль: %s\nБаланс: %d WVR\nПривязан к Telegram: %s",
		res.Nick, res.ID, res.Discord, res.Role.Title(), balance, bound)
	return flow.Reply{
		Text: text,
		Buttons: [][]flow.Button{
			{{Label: "Изменить роль 🎭", Data: prefRoles + string(res.ID)}},
			{{Label: "Заблокировать 🚫", Data: prefBlockUser + string(res.ID)}},
			backRow(cbManageUsers),
		},
	}
}

func (b *Bot) roleMenu(rawID string) flow.Reply {
	var rows [][]flow.Button
	for _, role := range []domain.Role{domain.RoleResident, domain.RoleBanker, domain.RoleAdmin} {
		rows = append(rows, []flow.Button{{
			Label: role.Title(),
			Data:  prefSetRole + rawID + ":" + string(role),
		}})
	}
	rows = append(rows, backRow(prefUser+rawID))
	return flow.Reply{Text: "🎭 Выберите новую роль:", Buttons: rows}
}

func (b *Bot) setRole(ctx context.Context, payload string) flow.Reply {
	id, role, ok := strings.Cut(payload, ":")
	if !ok {
		return flow.Reply{Text: "❌ Житель не найден"}
	}
	err := b.dir.SetRole(ctx, domain.ResidentID(id), domain.Role(role))
	switch {
	case errors.Is(err, domain.ErrValidation):
		return flow.Reply{Text: "❌ Недопустимая роль"}
	case errors.Is(err, domain.ErrNotFound):
		return flow.Reply{Text: "❌ Житель не найден"}
	case err != nil:
		b.log.Error("set role failed", zap.Error(err))
		return flow.Reply{Text: "Произошла ошибка. Пожалуйста, попробуйте снова."}
	}
	return flow.Reply{
		Text:    fmt.Sprintf("✅ Роль обновлена: %s", domain.Role(role).Title()),
		Buttons: [][]flow.Button{backRow(prefUser + id)},
	}
}

// blockResident blacklists by bound chat identity when there is one, by
// resident id otherwise, so unbound residents are still recorded.
func (b *Bot) blockResident(ctx context.Context, rawID string) flow.Reply {
	res, err := b.dir.Get(ctx, domain.ResidentID(rawID))
	if errors.Is(err, domain.ErrNotFound) {
		return flow.Reply{Text: "❌ Житель не найден"}
	}
	if err != nil {
		b.log.Error("get resident failed", zap.Error(err))
		return flow.Reply{Text: "Произошла ошибка. Пожалуйста, попробуйте снова."}
	}
	key := string(res.ChatID)
	if key == "" {
		key = string(res.ID)
	}
	if err := b.black.Add(key, res.Nick, "Заблокирован администратором"); err != nil {
		b.log.Error("blacklist add failed", zap.Error(err))
		return flow.Reply{Text: "Произошла ошибка. Пожалуйста, попробуйте снова."}
	}
	return flow.Reply{
		Text:    fmt.Sprintf("🚫 %s добавлен в черный список", res.Nick),
		Buttons: [][]flow.Button{backRow(cbManageUsers)},
	}
}

func (b *Bot) blacklistView(context.Context) flow.Reply {
	entries, err := b.black.List()
	if err != nil {
		b.log.Error("blacklist read failed", zap.Error(err))
		return flow.Reply{Text: "Произошла ошибка. Пожалуйста, попробуйте снова."}
	}
	if len(entries) == 0 {
		return flow.Reply{
			Text:    "Черный список пуст.",
			Buttons: [][]flow.Button{backRow(cbAdmin)},
		}
	}
	var sb strings.Builder
	sb.WriteString("🚫 Черный список:\n")
	var rows [][]flow.Button
	for _, e := range entries {
		fmt.Fprintf(&sb, "\n%s (%s)\nПричина: %s\nДата: %s\n",
			e.Nick, e.ID, e.Reason, e.BlockedAt.Format("02.01.2006"))
		rows = append(rows, []flow.Button{{
			Label: "Разблокировать " + e.Nick,
			Data:  prefUnblock + e.ID,
		}})
	}
	rows = append(rows, backRow(cbAdmin))
	return flow.Reply{Text: sb.String(), Buttons: rows}
}

func (b *Bot) unblock(id string) flow.Reply {
	err := b.black.Remove(id)
	if errors.Is(err, domain.ErrNotFound) {
		return flow.Reply{Text: "❌ Запись не найдена", Buttons: [][]flow.Button{backRow(cbManageBlacklist)}}
	}
	if err != nil {
		b.log.Error("blacklist remove failed", zap.Error(err))
		return flow.Reply{Text: "Произошла ошибка. Пожалуйста, попробуйте снова."}
	}
	return flow.Reply{
		Text:    "✅ Пользователь разблокирован",
		Buttons: [][]flow.Button{backRow(cbManageBlacklist)},
	}
}

func (b *Bot) transactionsPage(ctx context.Context, page int) flow.Reply {
	total, err := b.ledger.CountTransactions(ctx)
	if err != nil {
		b.log.Error("count transactions failed", zap.Error(err))
		return flow.Reply{Text: "Произошла ошибка. Пожалуйста, попробуйте снова."}
	}
	txs, err := b.ledger.ListTransactions(ctx, page, txPageSize)
	if err != nil {
		b.log.Error("list transactions failed", zap.Error(err))
		return flow.Reply{Text: "Произошла ошибка. Пожалуйста, попробуйте снова."}
	}
	pages := (total + txPageSize - 1) / txPageSize
	if pages == 0 {
		pages = 1
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📜 История транзакций (стр. %d/%d)\n", page, pages)
	if len(txs) == 0 {
		sb.WriteString("\nОпераций пока не было.")
	}
	for _, t := range txs {
		sb.WriteString("\n" + formatTransaction(t) + "\n")
	}
	var rows [][]flow.Button
	if nav := pageNav(prefTxPage, page, pages); nav != nil {
		rows = append(rows, nav)
	}
	rows = append(rows, backRow(cbAdmin))
	return flow.Reply{Text: sb.String(), Buttons: rows}
}

func formatTransaction(t domain.Transaction) string {
	titles := map[domain.TxKind]string{
		domain.TxDeposit:  "Начисление ➕",
		domain.TxWithdraw: "Снятие ➖",
		domain.TxTransfer: "Перевод 💸",
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%d %s | %d WVR | %s",
		t.ID, titles[t.Kind], t.Amount, t.Date.Format("02.01.2006 15:04"))
	if t.From != nil && t.To != nil {
		fmt.Fprintf(&sb, "\n%s → %s", *t.From, *t.To)
	} else {
		fmt.Fprintf(&sb, "\nЖитель: %s", t.Actor)
	}
	if t.Comment != "" {
		sb.WriteString("\nКомментарий: " + t.Comment)
	}
	return sb.String()
}

func (b *Bot) tasksPanel(context.Context) flow.Reply {
	return flow.Reply{
		Text: "📋 Управление заданиями",
		Buttons: [][]flow.Button{
			{{Label: "Создать задание ➕", Data: cbCreateTask}},
			{{Label: "Редактировать задание ✏️", Data: cbEditTask}},
			{{Label: "Активные задания 🔥", Data: prefTasksActive + "1"}},
			{{Label: "Выполненные задания ✅", Data: prefTasksDone + "1"}},
			backRow(cbAdmin),
		},
	}
}

func (b *Bot) tasksPage(ctx context.Context, completed bool, page int) flow.Reply {
	tasks, total, err := b.board.ListByCompletion(ctx, completed, page, tasksPageSize)
	if err != nil {
		b.log.Error("list tasks failed", zap.Error(err))
		return flow.Reply{Text: "Произошла ошибка. Пожалуйста, попробуйте снова."}
	}
	pages := (total + tasksPageSize - 1) / tasksPageSize
	if pages == 0 {
		pages = 1
	}
	title, pref := "🔥 Активные задания", prefTasksActive
	if completed {
		title, pref = "✅ Выполненные задания", prefTasksDone
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (стр. %d/%d)\n", title, page, pages)
	if len(tasks) == 0 {
		sb.WriteString("\nЗаданий нет.")
	}
	var rows [][]flow.Button
	for _, t := range tasks {
		sb.WriteString("\n" + formatTask(t) + "\n")
		if !completed {
			rows = append(rows, []flow.Button{{
				Label: fmt.Sprintf("Выполнено ✔️ (№%d)", t.ID),
				Data:  prefTaskDone + strconv.FormatInt(t.ID, 10),
			}})
		}
	}
	if nav := pageNav(pref, page, pages); nav != nil {
		rows = append(rows, nav)
	}
	rows = append(rows, backRow(cbManageTasks))
	return flow.Reply{Text: sb.String(), Buttons: rows}
}

func (b *Bot) completeTask(ctx context.Context, rawID string) flow.Reply {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return flow.Reply{Text: "❌ Задание не найдено"}
	}
	err = b.board.MarkCompleted(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNoChange):
		return flow.Reply{Text: "Задание уже отмечено выполненным.", Buttons: [][]flow.Button{backRow(cbManageTasks)}}
	case errors.Is(err, domain.ErrNotFound):
		return flow.Reply{Text: "❌ Задание не найдено", Buttons: [][]flow.Button{backRow(cbManageTasks)}}
	case err != nil:
		b.log.Error("complete task failed", zap.Error(err))
		return flow.Reply{Text: "Произошла ошибка. Пожалуйста, попробуйте снова."}
	}
	return flow.Reply{
		Text:    fmt.Sprintf("✅ Задание №%d отмечено выполненным", id),
		Buttons: [][]flow.Button{backRow(prefTasksActive + "1")},
	}
}

func (b *Bot) approveApplication(ctx context.Context, appID string) flow.Reply {
	res, err := b.registry.Approve(ctx, appID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return flow.Reply{Text: "❌ Заявка не найдена или житель отсутствует в БД. Добавьте его вручную."}
	case errors.Is(err, domain.ErrAlreadyBound):
		return flow.Reply{Text: "❌ Этот житель уже привязан к другому аккаунту."}
	case err != nil:
		b.log.Error("approve failed", zap.String("app", appID), zap.Error(err))
		return flow.Reply{Text: "Произошла ошибка. Пожалуйста, попробуйте снова."}
	}
	return flow.Reply{Text: fmt.Sprintf("✅ Заявка одобрена. %s теперь житель Вайтовера.", res.Nick)}
}

func (b *Bot) rejectApplication(ctx context.Context, appID string) flow.Reply {
	err := b.registry.Reject(ctx, appID)
	if errors.Is(err, domain.ErrNotFound) {
		return flow.Reply{Text: "❌ Заявка не найдена."}
	}
	if err != nil {
		b.log.Error("reject failed", zap.String("app", appID), zap.Error(err))
		return flow.Reply{Text: "Произошла ошибка. Пожалуйста, попробуйте снова."}
	}
	return flow.Reply{Text: "⛔ Заявка отклонена, пользователь добавлен в черный список."}
}

// pageNav builds the prev/next row, nil when there is only one page.
func pageNav(prefix string, page, pages int) []flow.Button {
	var nav []flow.Button
	if page > 1 {
		nav = append(nav, flow.Button{Label: "⬅️", Data: prefix + strconv.Itoa(page-1)})
	}
	if page < pages {
		nav = append(nav, flow.Button{Label: "➡️", Data: prefix + strconv.Itoa(page+1)})
	}
	return nav
}
