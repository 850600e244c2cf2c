// Package bot adapts the Telegram transport to the conversation engine
// and the stateless menu handlers. Routing order for callbacks: global
// cancel, then the closed set of menu tokens, then the active flow.
package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/whitover/whitoverbot/internal/domain"
	"github.com/whitover/whitoverbot/internal/flow"
	"github.com/whitover/whitoverbot/internal/service"
	"github.com/whitover/whitoverbot/internal/storage"
)

const (
	cbRegister  = "start_registration"
	cbMainMenu  = "main_menu"
	cbBalance   = "balance"
	cbShowTasks = "show_tasks"
	cbTransfer  = "transfer"
	cbBankOps   = "bank_operations"
	cbAdmin     = "admin_actions"
	cbDeposit   = "deposit"
	cbWithdraw  = "withdraw"
	cbExchange  = "exchange"
	cbCancel    = "cancel"

	cbManageUsers     = "manage_users"
	cbManageBlacklist = "manage_blacklist"
	cbViewTx          = "view_transactions"
	cbManageTasks     = "manage_tasks"
	cbCreateTask      = "create_task"
	cbEditTask        = "edit_task"

	prefUsersPage   = "users:"
	prefUser        = "user:"
	prefRoles       = "roles:"
	prefSetRole     = "setrole:"
	prefBlockUser   = "blockuser:"
	prefUnblock     = "unblock:"
	prefTxPage      = "txs:"
	prefTasksActive = "tasks_active:"
	prefTasksDone   = "tasks_done:"
	prefTaskDone    = "task_done:"
	prefTake        = "take:"
	prefApprove     = "approve:"
	prefBlockApp    = "block:"
)

const (
	blockedText = "Вайтовер помнит своих. А ты в списках?"
	deniedText  = "⛔ У вас нет прав для этого действия."
)

// Flows bundles every dialog the transport can start.
type Flows struct {
	Registration *flow.Flow
	Transfer     *flow.Flow
	Deposit      *flow.Flow
	Withdraw     *flow.Flow
	Exchange     *flow.Flow
	TaskCreate   *flow.Flow
	TaskEdit     *flow.Flow
}

type Bot struct {
	api      *tgbotapi.BotAPI
	engine   *flow.Engine
	dir      *storage.Directory
	ledger   *storage.Ledger
	board    *storage.TaskBoard
	black    *storage.Blacklist
	bank     *service.Bank
	registry *service.Registry
	flows    Flows
	log      *zap.Logger
}

func New(
	api *tgbotapi.BotAPI,
	engine *flow.Engine,
	dir *storage.Directory,
	ledger *storage.Ledger,
	board *storage.TaskBoard,
	black *storage.Blacklist,
	bank *service.Bank,
	registry *service.Registry,
	flows Flows,
	log *zap.Logger,
) *Bot {
	return &Bot{
		api:      api,
		engine:   engine,
		dir:      dir,
		ledger:   ledger,
		board:    board,
		black:    black,
		bank:     bank,
		registry: registry,
		flows:    flows,
		log:      log.Named("bot"),
	}
}

// Run consumes the long-poll update stream until the context ends.
// Every update gets its own goroutine so one chat's dialog never blocks
// another's.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	b.log.Info("update loop started", zap.String("account", b.api.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := domain.ChatID(strconv64(msg.Chat.ID))
	if b.black.Contains(string(chatID)) {
		b.send(chatID, flow.Reply{Text: blockedText})
		return
	}
	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.engine.Cancel(chatID)
			b.send(chatID, b.startReply(ctx, chatID))
		case "cancel":
			if reply, ok := b.engine.Cancel(chatID); ok {
				b.send(chatID, reply)
			} else {
				b.send(chatID, flow.Reply{Text: "Нет активной операции."})
			}
		default:
			b.send(chatID, flow.Reply{Text: "Неизвестная команда. Используйте /start"})
		}
		return
	}
	if reply, ok := b.engine.Dispatch(ctx, chatID, flow.Event{Kind: flow.EventText, Text: msg.Text}); ok {
		b.send(chatID, reply)
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.log.Warn("callback ack failed", zap.Error(err))
	}
	if q.Message == nil {
		return
	}
	chatID := domain.ChatID(strconv64(q.Message.Chat.ID))
	if b.black.Contains(string(chatID)) {
		b.send(chatID, flow.Reply{Text: blockedText})
		return
	}

	if q.Data == cbCancel {
		if reply, ok := b.engine.Cancel(chatID); ok {
			b.edit(chatID, q.Message.MessageID, reply)
		} else {
			b.edit(chatID, q.Message.MessageID, b.startReply(ctx, chatID))
		}
		return
	}

	if reply, ok := b.route(ctx, chatID, q.From.UserName, q.Data); ok {
		b.edit(chatID, q.Message.MessageID, reply)
		return
	}

	if reply, ok := b.engine.Dispatch(ctx, chatID, flow.Event{Kind: flow.EventButton, Data: q.Data}); ok {
		b.edit(chatID, q.Message.MessageID, reply)
		return
	}
	b.log.Debug("unhandled callback", zap.String("data", q.Data))
}

// route handles the closed set of stateless menu tokens. The second
// return is false for tokens that belong to the active flow.
func (b *Bot) route(ctx context.Context, chatID domain.ChatID, username, data string) (flow.Reply, bool) {
	switch {
	case data == cbRegister:
		return b.startRegistration(ctx, chatID, username), true
	case data == cbMainMenu:
		return b.startReply(ctx, chatID), true
	case data == cbBalance:
		return b.showBalance(ctx, chatID), true
	case data == cbShowTasks:
		return b.showAvailableTasks(ctx, chatID), true
	case strings.HasPrefix(data, prefTake):
		return b.takeTask(ctx, chatID, strings.TrimPrefix(data, prefTake)), true

	case data == cbTransfer:
		return b.startFlowAs(ctx, chatID, username, b.flows.Transfer,
			domain.RoleResident, domain.RoleBanker, domain.RoleAdmin), true
	case data == cbBankOps:
		return b.bankMenu(ctx, chatID), true
	case data == cbDeposit:
		return b.startFlowAs(ctx, chatID, username, b.flows.Deposit, domain.RoleBanker, domain.RoleAdmin), true
	case data == cbWithdraw:
		return b.startFlowAs(ctx, chatID, username, b.flows.Withdraw, domain.RoleBanker, domain.RoleAdmin), true
	case data == cbExchange:
		return b.startFlowAs(ctx, chatID, username, b.flows.Exchange, domain.RoleBanker, domain.RoleAdmin), true

	case data == cbAdmin:
		return b.adminOnly(ctx, chatID, b.adminPanel), true
	case data == cbManageUsers:
		return b.adminOnly(ctx, chatID, func(ctx context.Context) flow.Reply {
			return b.usersPage(ctx, 1)
		}), true
	case strings.HasPrefix(data, prefUsersPage):
		return b.adminOnly(ctx, chatID, func(ctx context.Context) flow.Reply {
			return b.usersPage(ctx, parsePage(strings.TrimPrefix(data, prefUsersPage)))
		}), true
	case strings.HasPrefix(data, prefUser):
		return b.adminOnly(ctx, chatID, func(ctx context.Context) flow.Reply {
			return b.userDetail(ctx, strings.TrimPrefix(data, prefUser))
		}), true
	case strings.HasPrefix(data, prefRoles):
		return b.adminOnly(ctx, chatID, func(ctx context.Context) flow.Reply {
			return b.roleMenu(strings.TrimPrefix(data, prefRoles))
		}), true
	case strings.HasPrefix(data, prefSetRole):
		return b.adminOnly(ctx, chatID, func(ctx context.Context) flow.Reply {
			return b.setRole(ctx, strings.TrimPrefix(data, prefSetRole))
		}), true
	case strings.HasPrefix(data, prefBlockUser):
		return b.adminOnly(ctx, chatID, func(ctx context.Context) flow.Reply {
			return b.blockResident(ctx, strings.TrimPrefix(data, prefBlockUser))
		}), true
	case data == cbManageBlacklist:
		return b.adminOnly(ctx, chatID, b.blacklistView), true
	case strings.HasPrefix(data, prefUnblock):
		return b.adminOnly(ctx, chatID, func(ctx context.Context) flow.Reply {
			return b.unblock(strings.TrimPrefix(data, prefUnblock))
		}), true
	case data == cbViewTx:
		return b.adminOnly(ctx, chatID, func(ctx context.Context) flow.Reply {
			return b.transactionsPage(ctx, 1)
		}), true
	case strings.HasPrefix(data, prefTxPage):
		return b.adminOnly(ctx, chatID, func(ctx context.Context) flow.Reply {
			return b.transactionsPage(ctx, parsePage(strings.TrimPrefix(data, prefTxPage)))
		}), true

	case data == cbManageTasks:
		return b.adminOnly(ctx, chatID, b.tasksPanel), true
	case data == cbCreateTask:
		return b.startFlowAs(ctx, chatID, username, b.flows.TaskCreate, domain.RoleAdmin), true
	case data == cbEditTask:
		return b.startFlowAs(ctx, chatID, username, b.flows.TaskEdit, domain.RoleAdmin), true
	case strings.HasPrefix(data, prefTasksActive):
		return b.adminOnly(ctx, chatID, func(ctx context.Context) flow.Reply {
			return b.tasksPage(ctx, false, parsePage(strings.TrimPrefix(data, prefTasksActive)))
		}), true
	case strings.HasPrefix(data, prefTasksDone):
		return b.adminOnly(ctx, chatID, func(ctx context.Context) flow.Reply {
			return b.tasksPage(ctx, true, parsePage(strings.TrimPrefix(data, prefTasksDone)))
		}), true
	case strings.HasPrefix(data, prefTaskDone):
		return b.adminOnly(ctx, chatID, func(ctx context.Context) flow.Reply {
			return b.completeTask(ctx, strings.TrimPrefix(data, prefTaskDone))
		}), true

	case strings.HasPrefix(data, prefApprove):
		return b.adminOnly(ctx, chatID, func(ctx context.Context) flow.Reply {
			return b.approveApplication(ctx, strings.TrimPrefix(data, prefApprove))
		}), true
	case strings.HasPrefix(data, prefBlockApp):
		return b.adminOnly(ctx, chatID, func(ctx context.Context) flow.Reply {
			return b.rejectApplication(ctx, strings.TrimPrefix(data, prefBlockApp))
		}), true
	}
	return flow.Reply{}, false
}

func (b *Bot) roleOf(ctx context.Context, chatID domain.ChatID) domain.Role {
	role, err := b.dir.RoleOf(ctx, chatID)
	if err != nil {
		return domain.RoleGuest
	}
	return role
}

func (b *Bot) startFlowAs(ctx context.Context, chatID domain.ChatID, username string, f *flow.Flow, allowed ...domain.Role) flow.Reply {
	role := b.roleOf(ctx, chatID)
	for _, a := range allowed {
		if role == a {
			return b.engine.Start(ctx, chatID, username, f)
		}
	}
	return flow.Reply{Text: deniedText}
}

func (b *Bot) adminOnly(ctx context.Context, chatID domain.ChatID, h func(context.Context) flow.Reply) flow.Reply {
	if b.roleOf(ctx, chatID) != domain.RoleAdmin {
		return flow.Reply{Text: deniedText}
	}
	return h(ctx)
}

func (b *Bot) send(chatID domain.ChatID, r flow.Reply) {
	if r.Text == "" {
		return
	}
	id, err := chatInt(chatID)
	if err != nil {
		b.log.Warn("send skipped", zap.Error(err))
		return
	}
	msg := tgbotapi.NewMessage(id, r.Text)
	if len(r.Buttons) > 0 {
		msg.ReplyMarkup = keyboard(r.Buttons)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("send failed", zap.String("chat", string(chatID)), zap.Error(err))
	}
}

// edit rewrites the message the pressed button was attached to; when the
// API refuses (too old, identical text) the reply goes out as a fresh
// message instead.
func (b *Bot) edit(chatID domain.ChatID, messageID int, r flow.Reply) {
	if r.Text == "" {
		return
	}
	id, err := chatInt(chatID)
	if err != nil {
		b.log.Warn("edit skipped", zap.Error(err))
		return
	}
	var c tgbotapi.Chattable
	if len(r.Buttons) > 0 {
		c = tgbotapi.NewEditMessageTextAndMarkup(id, messageID, r.Text, keyboard(r.Buttons))
	} else {
		c = tgbotapi.NewEditMessageText(id, messageID, r.Text)
	}
	if _, err := b.api.Send(c); err != nil {
		b.send(chatID, r)
	}
}

func keyboard(rows [][]flow.Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			line = append(line, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
		}
		out = append(out, line)
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}
