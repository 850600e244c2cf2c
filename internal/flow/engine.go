// Package flow is the conversation engine: a per-chat-identity
// single-active-flow state machine. Flows are tables of steps; every
// step consumes one tagged event and yields either the next state plus
// a prompt, a terminal result, or a re-prompt of the same state.
package flow

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/whitover/whitoverbot/internal/domain"
)

type EventKind int

const (
	EventText EventKind = iota
	EventButton
)

// Event is one inbound input: a text message or a button selection.
type Event struct {
	Kind EventKind
	Text string // message text, for EventText
	Data string // callback token, for EventButton
}

// Button is one inline keyboard choice.
type Button struct {
	Label string
	Data  string
}

// Reply is what the transport renders back to the user.
type Reply struct {
	Text    string
	Buttons [][]Button
}

// State identifies a step within a flow. The empty state is terminal.
type State string

const End State = ""

// StepResult carries the transition: Next == End finishes the flow and
// destroys the session.
type StepResult struct {
	Next  State
	Reply Reply
}

// Step handles one event in one state. Returning an error ends the flow
// with a generic failure message; expected outcomes (not found,
// insufficient funds) should be returned as terminal StepResults
// instead.
type Step func(ctx context.Context, s *Session, ev Event) (StepResult, error)

type Flow struct {
	Name  string
	Begin func(ctx context.Context, s *Session) (StepResult, error)
	Steps map[State]Step
}

// Session is the ephemeral per-chat dialog state. It is never persisted:
// in-flight dialogs are lost on restart by design.
type Session struct {
	ChatID   domain.ChatID
	Username string

	mu      sync.Mutex
	flow    *Flow
	state   State
	scratch map[string]string
}

func (s *Session) Set(key, value string) { s.scratch[key] = value }
func (s *Session) Get(key string) string { return s.scratch[key] }

func (s *Session) Has(key string) bool {
	_, ok := s.scratch[key]
	return ok
}

const (
	cancelledText = "Операция отменена"
	failedText    = "Произошла ошибка. Пожалуйста, попробуйте снова."
)

// Engine keys sessions by chat identity. Sessions are independent:
// dispatching for one chat never blocks another.
type Engine struct {
	mu       sync.Mutex
	sessions map[domain.ChatID]*Session
	log      *zap.Logger
}

func NewEngine(log *zap.Logger) *Engine {
	return &Engine{
		sessions: make(map[domain.ChatID]*Session),
		log:      log.Named("flow"),
	}
}

// Active reports whether a flow is in progress for the chat identity.
func (e *Engine) Active(chatID domain.ChatID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sessions[chatID]
	return ok
}

// Start begins a flow for the chat identity, replacing any active one.
// Scratch state always starts empty.
func (e *Engine) Start(ctx context.Context, chatID domain.ChatID, username string, f *Flow) Reply {
	s := &Session{
		ChatID:   chatID,
		Username: username,
		flow:     f,
		scratch:  make(map[string]string),
	}
	res, err := f.Begin(ctx, s)
	if err != nil {
		e.log.Error("flow start failed", zap.String("flow", f.Name), zap.Error(err))
		return Reply{Text: failedText}
	}
	if res.Next == End {
		return res.Reply
	}
	s.state = res.Next
	e.mu.Lock()
	e.sessions[chatID] = s
	e.mu.Unlock()
	return res.Reply
}

// Dispatch feeds an event to the chat's active flow. The second return
// is false when no flow is active and the event belongs to the stateless
// handlers instead.
func (e *Engine) Dispatch(ctx context.Context, chatID domain.ChatID, ev Event) (Reply, bool) {
	e.mu.Lock()
	s, ok := e.sessions[chatID]
	e.mu.Unlock()
	if !ok {
		return Reply{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	step, ok := s.flow.Steps[s.state]
	if !ok {
		e.log.Error("flow has no step for state",
			zap.String("flow", s.flow.Name), zap.String("state", string(s.state)))
		e.drop(chatID)
		return Reply{Text: failedText}, true
	}
	res, err := step(ctx, s, ev)
	if err != nil {
		e.log.Error("flow step failed",
			zap.String("flow", s.flow.Name), zap.String("state", string(s.state)), zap.Error(err))
		e.drop(chatID)
		return Reply{Text: failedText}, true
	}
	if res.Next == End {
		e.drop(chatID)
	} else {
		s.state = res.Next
	}
	return res.Reply, true
}

// Cancel aborts the active flow from any state, discarding scratch
// state. It is the global fallback for /cancel and cancel buttons.
func (e *Engine) Cancel(chatID domain.ChatID) (Reply, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[chatID]; !ok {
		return Reply{}, false
	}
	delete(e.sessions, chatID)
	return Reply{Text: cancelledText}, true
}

func (e *Engine) drop(chatID domain.ChatID) {
	e.mu.Lock()
	delete(e.sessions, chatID)
	e.mu.Unlock()
}
