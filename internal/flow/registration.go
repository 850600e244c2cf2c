package flow

import (
	"context"
	"time"

	"github.com/whitover/whitoverbot/internal/domain"
)

// Admissions is the slice of the registry the registration flow needs.
// The pending-application gate runs before the flow starts.
type Admissions interface {
	Submit(ctx context.Context, chatID domain.ChatID, username, nick, discord, birthday string) (domain.MatchKind, error)
}

const (
	stRegNickname State = "reg_nickname"
	stRegDiscord  State = "reg_discord"
	stRegBirthday State = "reg_birthday"

	birthdayLayout = "02.01.2006"
)

// NewRegistrationFlow collects the applicant's Minecraft nickname,
// Discord handle and birthday, then submits the application for an
// admin decision.
func NewRegistrationFlow(reg Admissions) *Flow {
	return &Flow{
		Name: "registration",
		Begin: func(ctx context.Context, s *Session) (StepResult, error) {
			return StepResult{
				Next: stRegNickname,
				Reply: Reply{Text: "Отлично! Давай начнем процесс регистрации.\n" +
					"Пожалуйста, введи свой ник в Minecraft:"},
			}, nil
		},
		Steps: map[State]Step{
			stRegNickname: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				if ev.Kind != EventText || ev.Text == "" {
					return StepResult{Next: stRegNickname, Reply: Reply{Text: "Пожалуйста, введи свой ник в Minecraft:"}}, nil
				}
				s.Set("mc_nickname", ev.Text)
				return StepResult{Next: stRegDiscord, Reply: Reply{Text: "Хорошо! Теперь введи свой ник в Discord:"}}, nil
			},
			stRegDiscord: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				if ev.Kind != EventText || ev.Text == "" {
					return StepResult{Next: stRegDiscord, Reply: Reply{Text: "Теперь введи свой ник в Discord:"}}, nil
				}
				s.Set("discord_nickname", ev.Text)
				return StepResult{Next: stRegBirthday, Reply: Reply{
					Text: "Отлично! Теперь введи свою дату рождения в формате ДД.ММ.ГГГГ:",
				}}, nil
			},
			stRegBirthday: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				if ev.Kind != EventText {
					return StepResult{Next: stRegBirthday, Reply: Reply{Text: "Введи дату рождения в формате ДД.ММ.ГГГГ:"}}, nil
				}
				if _, err := time.Parse(birthdayLayout, ev.Text); err != nil {
					return StepResult{Next: stRegBirthday, Reply: Reply{Text: "Неверный формат даты. Введите ДД.ММ.ГГГГ:"}}, nil
				}
				kind, err := reg.Submit(ctx, s.ChatID, s.Username,
					s.Get("mc_nickname"), s.Get("discord_nickname"), ev.Text)
				if err != nil {
					return StepResult{}, err
				}
				var text string
				switch kind {
				case domain.MatchExact:
					text = "✅ Обнаружено полное совпадение в БД. Заявка отправлена на рассмотрение"
				case domain.MatchPartial:
					text = "⚠️ Обнаружены неточности. Заявка отправлена на рассмотрение."
				default:
					text = "❓ Совпадений в БД нет. Заявка отправлена на рассмотрение."
				}
				return StepResult{Next: End, Reply: Reply{Text: text}}, nil
			},
		},
	}
}
