package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/whitover/whitoverbot/internal/domain"
	"github.com/whitover/whitoverbot/internal/storage"
)

type fakeBoard struct {
	tasks  map[int64]*domain.Task
	nextID int64

	created  *domain.Task
	editedID int64
	edited   map[string]string
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{tasks: map[int64]*domain.Task{}, nextID: 1, edited: map[string]string{}}
}

func (f *fakeBoard) Create(_ context.Context, t domain.Task) (int64, error) {
	if t.Name == "" || t.Reward <= 0 {
		return 0, domain.ErrValidation
	}
	t.ID = f.nextID
	f.nextID++
	f.tasks[t.ID] = &t
	f.created = &t
	return t.ID, nil
}

func (f *fakeBoard) Get(_ context.Context, id int64) (*domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeBoard) EditField(_ context.Context, id int64, field, value string) error {
	if _, ok := f.tasks[id]; !ok {
		return domain.ErrNotFound
	}
	if field == storage.FieldReward && value == "abc" {
		return domain.ErrValidation
	}
	f.editedID = id
	f.edited[field] = value
	return nil
}

func TestTaskCreateFlow(t *testing.T) {
	ctx := context.Background()
	board := newFakeBoard()
	e := NewEngine(zap.NewNop())

	reply := e.Start(ctx, "42", "admin", NewTaskCreateFlow(board))
	assert.Contains(t, reply.Text, "название")

	reply = dispatch(t, e, "42", text("Накопать камня"))
	assert.Contains(t, reply.Text, "тип задания")
	require.NotEmpty(t, reply.Buttons)

	reply = dispatch(t, e, "42", button(catPrefix+string(domain.TaskMining)))
	assert.Contains(t, reply.Text, "количество")

	dispatch(t, e, "42", text("64"))
	dispatch(t, e, "42", text("150"))
	reply = dispatch(t, e, "42", button(audPrefix+string(domain.AudiencePassive)))
	assert.Contains(t, reply.Text, "срок")

	dispatch(t, e, "42", text("01.09.2026"))
	reply = dispatch(t, e, "42", text("Камень сдать на склад"))
	assert.Contains(t, reply.Text, "✅ Задание создано (ID: 1)")

	require.NotNil(t, board.created)
	assert.Equal(t, "Накопать камня", board.created.Name)
	assert.Equal(t, domain.TaskMining, board.created.Category)
	assert.EqualValues(t, 64, board.created.Count)
	assert.EqualValues(t, 150, board.created.Reward)
	assert.Equal(t, domain.AudiencePassive, board.created.Audience)
	assert.Equal(t, "01.09.2026", board.created.Deadline)
	assert.Equal(t, "Камень сдать на склад", board.created.Description)
}

func TestTaskCreateFlowSkipsOptional(t *testing.T) {
	ctx := context.Background()
	board := newFakeBoard()
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "admin", NewTaskCreateFlow(board))

	dispatch(t, e, "42", text("Ферма"))
	dispatch(t, e, "42", button(catPrefix+string(domain.TaskFarming)))
	dispatch(t, e, "42", text("10"))
	dispatch(t, e, "42", text("50"))
	dispatch(t, e, "42", button(audPrefix+string(domain.AudienceActive)))
	dispatch(t, e, "42", text("-"))
	dispatch(t, e, "42", text("-"))

	require.NotNil(t, board.created)
	assert.Empty(t, board.created.Deadline)
	assert.Empty(t, board.created.Description)
}

func TestTaskCreateFlowCategoryNeedsButton(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "admin", NewTaskCreateFlow(newFakeBoard()))
	dispatch(t, e, "42", text("Шахта"))

	reply := dispatch(t, e, "42", text("добыча"))
	assert.Contains(t, reply.Text, "кнопкой", "typed category names are not accepted")
	assert.True(t, e.Active("42"))
}

func TestTaskEditFlow(t *testing.T) {
	ctx := context.Background()
	board := newFakeBoard()
	id, err := board.Create(ctx, domain.Task{Name: "Шахта", Reward: 100})
	require.NoError(t, err)
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "admin", NewTaskEditFlow(board))

	reply := dispatch(t, e, "42", text("1"))
	assert.Contains(t, reply.Text, "Шахта")
	require.NotEmpty(t, reply.Buttons)

	dispatch(t, e, "42", button(fieldPrefix+storage.FieldReward))
	reply = dispatch(t, e, "42", text("250"))
	assert.Contains(t, reply.Text, "✅ Задание обновлено")

	assert.Equal(t, id, board.editedID)
	assert.Equal(t, "250", board.edited[storage.FieldReward])
}

func TestTaskEditFlowUnknownTask(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "admin", NewTaskEditFlow(newFakeBoard()))

	reply := dispatch(t, e, "42", text("404"))
	assert.Equal(t, "❌ Задание не найдено", reply.Text)
	assert.False(t, e.Active("42"))
}

func TestTaskEditFlowBadValueReprompts(t *testing.T) {
	ctx := context.Background()
	board := newFakeBoard()
	_, err := board.Create(ctx, domain.Task{Name: "Шахта", Reward: 100})
	require.NoError(t, err)
	e := NewEngine(zap.NewNop())
	e.Start(ctx, "42", "admin", NewTaskEditFlow(board))

	dispatch(t, e, "42", text("1"))
	dispatch(t, e, "42", button(fieldPrefix+storage.FieldReward))

	reply := dispatch(t, e, "42", text("abc"))
	assert.Contains(t, reply.Text, "Неверное значение")
	assert.True(t, e.Active("42"))

	reply = dispatch(t, e, "42", text("300"))
	assert.Contains(t, reply.Text, "✅ Задание обновлено")
}
