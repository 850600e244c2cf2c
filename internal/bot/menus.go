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

func strconv64(id int64) string { return strconv.FormatInt(id, 10) }

func parsePage(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func backRow(data string) []flow.Button {
	return []flow.Button{{Label: "Назад ◀️", Data: data}}
}

// startReply is the /start entry point: a registration invitation for
// guests, the role-dependent main menu for everyone else.
func (b *Bot) startReply(ctx context.Context, chatID domain.ChatID) flow.Reply {
	res, err := b.dir.ResidentByChat(ctx, chatID)
	if errors.Is(err, domain.ErrNotFound) {
		if err := b.registry.CanRegister(ctx, chatID); errors.Is(err, domain.ErrPendingApp) {
			return flow.Reply{Text: "⏳ Ваша заявка уже на рассмотрении. Ожидайте решения администрации."}
		}
		return flow.Reply{
			Text: "Привет! Я бот Вайтовера — города в Minecraft.\n" +
				"Похоже, ты еще не зарегистрирован. Нажми кнопку ниже, чтобы подать заявку.",
			Buttons: [][]flow.Button{
				{{Label: "Начать регистрацию 📝", Data: cbRegister}},
			},
		}
	}
	if err != nil {
		b.log.Error("start failed", zap.Error(err))
		return flow.Reply{Text: "Произошла ошибка. Пожалуйста, попробуйте снова."}
	}
	return b.mainMenu(res)
}

func (b *Bot) mainMenu(res *domain.Resident) flow.Reply {
	rows := [][]flow.Button{
		{{Label: "Баланс 💰", Data: cbBalance}},
		{{Label: "Задания 📋", Data: cbShowTasks}},
		{{Label: "Перевести WVR 💸", Data: cbTransfer}},
	}
	if res.Role == domain.RoleBanker || res.Role == domain.RoleAdmin {
		rows = append(rows, []flow.Button{{Label: "Банковские операции 🏦", Data: cbBankOps}})
	}
	if res.Role == domain.RoleAdmin {
		rows = append(rows, []flow.Button{{Label: "Админ-панель ⚙️", Data: cbAdmin}})
	}
	return flow.Reply{
		Text:    fmt.Sprintf("Добро пожаловать, %s!\nВаша роль: %s", res.Nick, res.Role.Title()),
		Buttons: rows,
	}
}

func (b *Bot) startRegistration(ctx context.Context, chatID domain.ChatID, username string) flow.Reply {
	switch err := b.registry.CanRegister(ctx, chatID); {
	case errors.Is(err, domain.ErrPendingApp):
		return flow.Reply{Text: "⏳ Ваша заявка уже на рассмотрении. Ожидайте решения администрации."}
	case errors.Is(err, domain.ErrAlreadyRegistered):
		return flow.Reply{Text: "Вы уже зарегистрированы. Используйте /start"}
	case err != nil:
		b.log.Error("registration gate failed", zap.Error(err))
		return flow.Reply{Text: "Произошла ошибка. Пожалуйста, попробуйте снова."}
	}
	return b.engine.Start(ctx, chatID, username, b.flows.Registration)
}

func (b *Bot) showBalance(ctx context.Context, chatID domain.ChatID) flow.Reply {
	if _, err := b.dir.ResidentByChat(ctx, chatID); err != nil {
		return flow.Reply{Text: "Вы не зарегистрированы. Используйте /start"}
	}
	balance := b.bank.BalanceByChat(ctx, chatID)
	return flow.Reply{
		Text:    fmt.Sprintf("💰 Ваш баланс: %d WVR", balance),
		Buttons: [][]flow.Button{backRow(cbMainMenu)},
	}
}

func (b *Bot) bankMenu(ctx context.Context, chatID domain.ChatID) flow.Reply {
	role := b.roleOf(ctx, chatID)
	if role != domain.RoleBanker && role != domain.RoleAdmin {
		return flow.Reply{Text: deniedText}
	}
	return flow.Reply{
		Text: "🏦 Банковские операции",
		Buttons: [][]flow.Button{
			{{Label: "Начислить WVR ➕", Data: cbDeposit}},
			{{Label: "Снять WVR ➖", Data: cbWithdraw}},
			{{Label: "Обналичить WVR 💱", Data: cbExchange}},
			backRow(cbMainMenu),
		},
	}
}

// showAvailableTasks lists open passive and active tasks with a claim
// button per task. Individual tasks stay off the public board.
func (b *Bot) showAvailableTasks(ctx context.Context, chatID domain.ChatID) flow.Reply {
	if _, err := b.dir.ResidentByChat(ctx, chatID); err != nil {
		return flow.Reply{Text: "Вы не зарегистрированы. Используйте /start"}
	}
	tasks, err := b.board.ListAvailable(ctx)
	if err != nil {
		b.log.Error("list tasks failed", zap.Error(err))
		return flow.Reply{Text: "Произошла ошибка. Пожалуйста, попробуйте снова."}
	}
	if len(tasks) == 0 {
		return flow.Reply{
			Text:    "📭 Доступных заданий нет.",
			Buttons: [][]flow.Button{backRow(cbMainMenu)},
		}
	}
	var sb strings.Builder
	sb.WriteString("📋 Доступные задания:\n")
	var rows [][]flow.Button
	for _, t := range tasks {
		sb.WriteString("\n" + formatTask(t) + "\n")
		rows = append(rows, []flow.Button{{
			Label: fmt.Sprintf("Взять задание №%d 📝", t.ID),
			Data:  prefTake + strconv.FormatInt(t.ID, 10),
		}})
	}
	rows = append(rows, backRow(cbMainMenu))
	return flow.Reply{Text: sb.String(), Buttons: rows}
}

func (b *Bot) takeTask(ctx context.Context, chatID domain.ChatID, rawID string) flow.Reply {
	res, err := b.dir.ResidentByChat(ctx, chatID)
	if err != nil {
		return flow.Reply{Text: "Вы не зарегистрированы. Используйте /start"}
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return flow.Reply{Text: "❌ Задание не найдено"}
	}
	err = b.board.Assign(ctx, id, res.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return flow.Reply{Text: "❌ Задание не найдено или уже выполнено"}
	}
	if err != nil {
		b.log.Error("assign task failed", zap.Error(err))
		return flow.Reply{Text: "Произошла ошибка. Пожалуйста, попробуйте снова."}
	}
	return flow.Reply{
		Text:    fmt.Sprintf("✅ Задание №%d закреплено за вами. Удачи!", id),
		Buttons: [][]flow.Button{backRow(cbShowTasks)},
	}
}

func formatTask(t domain.Task) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "№%d «%s»\n", t.ID, t.Name)
	fmt.Fprintf(&sb, "Тип: %s | Вид: %s\n", domain.TaskCategoryTitles[t.Category], domain.AudienceTitles[t.Audience])
	fmt.Fprintf(&sb, "Количество: %d | Награда: %d WVR", t.Count, t.Reward)
	if t.Deadline != "" {
		sb.WriteString("\nСрок: " + t.Deadline)
	}
	if t.Description != "" {
		sb.WriteString("\n" + t.Description)
	}
	if t.AssignedTo != "" {
		sb.WriteString("\nИсполнитель: " + string(t.AssignedTo))
	}
	return sb.String()
}
