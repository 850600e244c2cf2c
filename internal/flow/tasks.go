package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/whitover/whitoverbot/internal/domain"
	"github.com/whitover/whitoverbot/internal/storage"
)

// TaskWriter is the slice of the task board the admin flows need.
type TaskWriter interface {
	Create(ctx context.Context, t domain.Task) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Task, error)
	EditField(ctx context.Context, id int64, field, value string) error
}

const (
	stTaskName        State = "task_name"
	stTaskCategory    State = "task_category"
	stTaskCount       State = "task_count"
	stTaskReward      State = "task_reward"
	stTaskAudience    State = "task_audience"
	stTaskDeadline    State = "task_deadline"
	stTaskDescription State = "task_description"

	stTaskEditID    State = "task_edit_id"
	stTaskEditField State = "task_edit_field"
	stTaskEditValue State = "task_edit_value"

	catPrefix   = "cat:"
	audPrefix   = "aud:"
	fieldPrefix = "field:"

	skipMarker = "-"
)

func categoryButtons() [][]Button {
	var rows [][]Button
	for _, c := range []domain.TaskCategory{domain.TaskMining, domain.TaskRebuilding, domain.TaskFarming, domain.TaskOther} {
		rows = append(rows, []Button{{Label: domain.TaskCategoryTitles[c], Data: catPrefix + string(c)}})
	}
	return rows
}

func audienceButtons() [][]Button {
	var rows [][]Button
	for _, a := range []domain.Audience{domain.AudiencePassive, domain.AudienceActive, domain.AudienceIndividual} {
		rows = append(rows, []Button{{Label: domain.AudienceTitles[a], Data: audPrefix + string(a)}})
	}
	return rows
}

// NewTaskCreateFlow walks an admin through creating a task: name →
// category → count → reward → audience → deadline → description.
// "-" skips the optional deadline and description.
func NewTaskCreateFlow(board TaskWriter) *Flow {
	return &Flow{
		Name: "task_create",
		Begin: func(ctx context.Context, s *Session) (StepResult, error) {
			return StepResult{Next: stTaskName, Reply: Reply{Text: "Введите название задания:"}}, nil
		},
		Steps: map[State]Step{
			stTaskName: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				if ev.Kind != EventText || ev.Text == "" {
					return StepResult{Next: stTaskName, Reply: Reply{Text: "Введите название задания:"}}, nil
				}
				s.Set("task_name", ev.Text)
				return StepResult{Next: stTaskCategory, Reply: Reply{
					Text: "Выберите тип задания:", Buttons: categoryButtons(),
				}}, nil
			},
			stTaskCategory: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				if ev.Kind != EventButton || len(ev.Data) <= len(catPrefix) || ev.Data[:len(catPrefix)] != catPrefix {
					return StepResult{Next: stTaskCategory, Reply: Reply{
						Text: "Выберите тип задания кнопкой:", Buttons: categoryButtons(),
					}}, nil
				}
				s.Set("task_category", ev.Data[len(catPrefix):])
				return StepResult{Next: stTaskCount, Reply: Reply{Text: "Введите количество (например, сколько блоков):"}}, nil
			},
			stTaskCount: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				n, ok := parseAmount(ev.Text)
				if ev.Kind != EventText || !ok {
					return StepResult{Next: stTaskCount, Reply: Reply{Text: "Неверное количество. Введите целое положительное число:"}}, nil
				}
				s.Set("task_count", strconv.FormatInt(n, 10))
				return StepResult{Next: stTaskReward, Reply: Reply{Text: "Введите награду в WVR:"}}, nil
			},
			stTaskReward: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				n, ok := parseAmount(ev.Text)
				if ev.Kind != EventText || !ok {
					return StepResult{Next: stTaskReward, Reply: Reply{Text: badAmountText}}, nil
				}
				s.Set("task_reward", strconv.FormatInt(n, 10))
				return StepResult{Next: stTaskAudience, Reply: Reply{
					Text: "Выберите вид задания:", Buttons: audienceButtons(),
				}}, nil
			},
			stTaskAudience: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				if ev.Kind != EventButton || len(ev.Data) <= len(audPrefix) || ev.Data[:len(audPrefix)] != audPrefix {
					return StepResult{Next: stTaskAudience, Reply: Reply{
						Text: "Выберите вид задания кнопкой:", Buttons: audienceButtons(),
					}}, nil
				}
				s.Set("task_audience", ev.Data[len(audPrefix):])
				return StepResult{Next: stTaskDeadline, Reply: Reply{Text: "Введите срок выполнения (или «-», если срока нет):"}}, nil
			},
			stTaskDeadline: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				if ev.Kind != EventText || ev.Text == "" {
					return StepResult{Next: stTaskDeadline, Reply: Reply{Text: "Введите срок выполнения (или «-», если срока нет):"}}, nil
				}
				if ev.Text != skipMarker {
					s.Set("task_deadline", ev.Text)
				}
				return StepResult{Next: stTaskDescription, Reply: Reply{Text: "Введите описание задания (или «-», если описания нет):"}}, nil
			},
			stTaskDescription: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				if ev.Kind != EventText || ev.Text == "" {
					return StepResult{Next: stTaskDescription, Reply: Reply{Text: "Введите описание задания (или «-», если описания нет):"}}, nil
				}
				desc := ev.Text
				if desc == skipMarker {
					desc = ""
				}
				count, _ := strconv.ParseInt(s.Get("task_count"), 10, 64)
				reward, _ := strconv.ParseInt(s.Get("task_reward"), 10, 64)
				id, err := board.Create(ctx, domain.Task{
					Name:        s.Get("task_name"),
					Category:    domain.TaskCategory(s.Get("task_category")),
					Count:       count,
					Reward:      reward,
					Audience:    domain.Audience(s.Get("task_audience")),
					Deadline:    s.Get("task_deadline"),
					Description: desc,
				})
				if err != nil {
					return StepResult{}, err
				}
				return StepResult{Next: End, Reply: Reply{
					Text: fmt.Sprintf("✅ Задание создано (ID: %d)", id),
				}}, nil
			},
		},
	}
}

// NewTaskEditFlow edits one of the restricted fields of an existing
// task: id → field → value.
func NewTaskEditFlow(board TaskWriter) *Flow {
	fieldButtons := [][]Button{
		{{Label: "Название", Data: fieldPrefix + storage.FieldName}},
		{{Label: "Награду", Data: fieldPrefix + storage.FieldReward}},
		{{Label: "Срок", Data: fieldPrefix + storage.FieldDeadline}},
		{{Label: "Отмена", Data: "cancel"}},
	}
	return &Flow{
		Name: "task_edit",
		Begin: func(ctx context.Context, s *Session) (StepResult, error) {
			return StepResult{Next: stTaskEditID, Reply: Reply{Text: "Введите ID задания для редактирования:"}}, nil
		},
		Steps: map[State]Step{
			stTaskEditID: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				id, ok := parseAmount(ev.Text)
				if ev.Kind != EventText || !ok {
					return StepResult{Next: stTaskEditID, Reply: Reply{Text: "Неверный ID. Введите число:"}}, nil
				}
				task, err := board.Get(ctx, id)
				if errors.Is(err, domain.ErrNotFound) {
					return StepResult{Next: End, Reply: Reply{Text: "❌ Задание не найдено"}}, nil
				}
				if err != nil {
					return StepResult{}, err
				}
				s.Set("task_id", strconv.FormatInt(task.ID, 10))
				return StepResult{Next: stTaskEditField, Reply: Reply{
					Text: fmt.Sprintf("Задание «%s». Выберите параметр для редактирования:", task.Name), Buttons: fieldButtons,
				}}, nil
			},
			stTaskEditField: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				if ev.Kind != EventButton || len(ev.Data) <= len(fieldPrefix) || ev.Data[:len(fieldPrefix)] != fieldPrefix {
					return StepResult{Next: stTaskEditField, Reply: Reply{
						Text: "Выберите параметр для редактирования:", Buttons: fieldButtons,
					}}, nil
				}
				s.Set("task_field", ev.Data[len(fieldPrefix):])
				return StepResult{Next: stTaskEditValue, Reply: Reply{Text: "Введите новое значение:"}}, nil
			},
			stTaskEditValue: func(ctx context.Context, s *Session, ev Event) (StepResult, error) {
				if ev.Kind != EventText || ev.Text == "" {
					return StepResult{Next: stTaskEditValue, Reply: Reply{Text: "Введите новое значение:"}}, nil
				}
				id, _ := strconv.ParseInt(s.Get("task_id"), 10, 64)
				err := board.EditField(ctx, id, s.Get("task_field"), ev.Text)
				if errors.Is(err, domain.ErrValidation) {
					return StepResult{Next: stTaskEditValue, Reply: Reply{Text: "Неверное значение. Попробуйте еще раз:"}}, nil
				}
				if errors.Is(err, domain.ErrNotFound) {
					return StepResult{Next: End, Reply: Reply{Text: "❌ Задание не найдено"}}, nil
				}
				if err != nil {
					return StepResult{}, err
				}
				return StepResult{Next: End, Reply: Reply{Text: "✅ Задание обновлено"}}, nil
			},
		},
	}
}
