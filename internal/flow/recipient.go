package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/whitover/whitoverbot/internal/domain"
)

// RecipientSearcher resolves free-text input (resident id or nickname
// substring) to resident records.
type RecipientSearcher interface {
	Search(ctx context.Context, query string) ([]domain.Resident, error)
}

const (
	keyRecipientID   = "recipient_id"
	keyRecipientNick = "recipient_nick"
	keyAmount        = "amount"
	keyComment       = "comment"

	pickPrefix = "pick:"

	notFoundText  = "❌ Житель не найден. Проверьте данные и попробуйте снова."
	badAmountText = "Неверная сумма. Введите целое положительное число:"
)

// recipientStep resolves the entered recipient. A single match advances
// to next; several matches suspend in the pick sub-state with one button
// per candidate; zero matches ends the flow.
func recipientStep(find RecipientSearcher, pick, next State, nextPrompt string) Step {
	return func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
		if ev.Kind != EventText || strings.TrimSpace(ev.Text) == "" {
			return StepResult{Next: pickOrSame(s), Reply: Reply{Text: "Введите ник в Minecraft или ID горожанина:"}}, nil
		}
		matches, err := find.Search(ctx, ev.Text)
		if err != nil {
			return StepResult{}, err
		}
		switch len(matches) {
		case 0:
			return StepResult{Next: End, Reply: Reply{Text: notFoundText}}, nil
		case 1:
			s.Set(keyRecipientID, string(matches[0].ID))
			s.Set(keyRecipientNick, matches[0].Nick)
			return StepResult{Next: next, Reply: Reply{Text: nextPrompt}}, nil
		}
		var rows [][]Button
		for _, m := range matches {
			rows = append(rows, []Button{{
				Label: fmt.Sprintf("%s (ID: %s)", m.Nick, m.ID),
				Data:  pickPrefix + string(m.ID),
			}})
		}
		rows = append(rows, []Button{{Label: "Отмена ❌", Data: "cancel"}})
		return StepResult{
			Next:  pick,
			Reply: Reply{Text: "Найдено несколько жителей. Выберите нужного:", Buttons: rows},
		}, nil
	}
}

// pickStep resumes the suspended flow once a single candidate is chosen.
func pickStep(find RecipientSearcher, next State, nextPrompt string) Step {
	return func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
		if ev.Kind != EventButton || !strings.HasPrefix(ev.Data, pickPrefix) {
			return StepResult{
				Next:  pickOrSame(s),
				Reply: Reply{Text: "Выберите жителя кнопкой выше или нажмите Отмена."},
			}, nil
		}
		id := strings.TrimPrefix(ev.Data, pickPrefix)
		matches, err := find.Search(ctx, id)
		if err != nil {
			return StepResult{}, err
		}
		// the search also matches nickname substrings; only the exact id
		// is the picked resident
		for _, m := range matches {
			if string(m.ID) == id {
				s.Set(keyRecipientID, string(m.ID))
				s.Set(keyRecipientNick, m.Nick)
				return StepResult{Next: next, Reply: Reply{Text: nextPrompt}}, nil
			}
		}
		return StepResult{Next: End, Reply: Reply{Text: notFoundText}}, nil
	}
}

// pickOrSame re-prompts the current state without touching scratch.
func pickOrSame(s *Session) State { return s.state }

// parseAmount validates the positive-integer rule for money input.
func parseAmount(text string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
