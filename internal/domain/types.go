package domain

import "time"

// ChatID is the opaque identifier the chat transport uses for a user.
type ChatID string

// ResidentID is the community ("city") identifier, assigned by the
// resident roster, not by this bot.
type ResidentID string

type Role string

const (
	RoleGuest    Role = "guest"
	RoleResident Role = "resident"
	RoleBanker   Role = "banker"
	RoleAdmin    Role = "admin"
)

// RoleTitles maps roles to their user-facing names.
var RoleTitles = map[Role]string{
	RoleGuest:    "Гость 👋",
	RoleResident: "Житель 🏠",
	RoleBanker:   "Банкир 💰",
	RoleAdmin:    "Администратор 👑",
}

func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleResident, RoleBanker, RoleAdmin:
		return true
	}
	return false
}

// Title returns the user-facing role name, falling back to the raw value.
func (r Role) Title() string {
	if t, ok := RoleTitles[r]; ok {
		return t
	}
	return string(r)
}

type Resident struct {
	ID      ResidentID `json:"id"`
	Nick    string     `json:"nickname"`
	Discord string     `json:"discord"`
	ChatID  ChatID     `json:"chat_id,omitempty"` // set once, at approval
	Role    Role       `json:"role"`
}

// Account balances are whole WVR; the currency has no minor units.
type Account struct {
	ID      ResidentID `json:"id"`
	Balance int64      `json:"balance"`
	Salary  int64      `json:"salary"` // accrued, paid out by deposits
}

type TxKind string

const (
	TxDeposit  TxKind = "deposit"
	TxWithdraw TxKind = "withdraw"
	TxTransfer TxKind = "transfer"
)

// Transaction is append-only: rows are never mutated or deleted.
type Transaction struct {
	ID      int64       `json:"id"`
	Actor   ResidentID  `json:"user_id"`
	Kind    TxKind      `json:"type"`
	Date    time.Time   `json:"date"`
	From    *ResidentID `json:"from_user,omitempty"`
	To      *ResidentID `json:"to_user,omitempty"`
	Amount  int64       `json:"amount"`
	Comment string      `json:"comment"`
}

type TaskCategory string

const (
	TaskMining     TaskCategory = "mining"
	TaskRebuilding TaskCategory = "rebuilding"
	TaskFarming    TaskCategory = "farming"
	TaskOther      TaskCategory = "other"
)

var TaskCategoryTitles = map[TaskCategory]string{
	TaskMining:     "Добыча ⛏️",
	TaskRebuilding: "Перестройка 🏗️",
	TaskFarming:    "Фарм 🌾",
	TaskOther:      "Другое ✨",
}

// Audience is the task visibility/claim category.
type Audience string

const (
	AudiencePassive    Audience = "passive"
	AudienceActive     Audience = "active"
	AudienceIndividual Audience = "individual"
)

var AudienceTitles = map[Audience]string{
	AudiencePassive:    "Пассивное 🔄",
	AudienceActive:     "Активное 🔥",
	AudienceIndividual: "Индивидуальное 🎯",
}

type Task struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Category    TaskCategory `json:"task_type"`
	Count       int64        `json:"count"`
	Reward      int64        `json:"cost"`
	Audience    Audience     `json:"social_type"`
	Deadline    string       `json:"deadline,omitempty"`
	Description string       `json:"description,omitempty"`
	AssignedTo  ResidentID   `json:"assigned_to,omitempty"`
	Completed   bool         `json:"completed"`
}

type BlacklistEntry struct {
	ID        string    `json:"id"` // resident or chat id
	Nick      string    `json:"nickname"`
	Reason    string    `json:"reason"`
	BlockedAt time.Time `json:"block_date"`
}

type AppStatus string

const (
	AppPending  AppStatus = "pending"
	AppRejected AppStatus = "rejected"
	AppApproved AppStatus = "approved"
)

// Application is a registration request awaiting an admin decision.
type Application struct {
	ID        string    `json:"application_id"`
	ChatID    ChatID    `json:"telegram_uid"`
	Nick      string    `json:"mc_nickname"`
	Discord   string    `json:"discord_nickname"`
	Birthday  string    `json:"birthday"`
	CreatedAt time.Time `json:"timestamp"`
	Status    AppStatus `json:"status"`
}

// MatchKind classifies how a registration application lines up with the
// resident roster.
type MatchKind string

const (
	MatchExact   MatchKind = "exact"
	MatchPartial MatchKind = "partial"
	MatchNone    MatchKind = "none"
)
