package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/whitover/whitoverbot/internal/domain"
)

// TaskBoard stores quest/task records and their lifecycle. Completion is
// one-way: a completed task never becomes active again.
type TaskBoard struct {
	db *sql.DB
}

func NewTaskBoard(db *sql.DB) *TaskBoard {
	return &TaskBoard{db: db}
}

const taskCols = "id, name, task_type, count, cost, social_type, deadline, description, assigned_to, completed"

func scanTask(row interface{ Scan(...any) error }) (*domain.Task, error) {
	var t domain.Task
	var category, deadline, description, assigned sql.NullString
	var count sql.NullInt64
	if err := row.Scan(&t.ID, &t.Name, &category, &count, &t.Reward, &t.Audience,
		&deadline, &description, &assigned, &t.Completed); err != nil {
		return nil, err
	}
	t.Category = domain.TaskCategory(category.String)
	t.Count = count.Int64
	t.Deadline = deadline.String
	t.Description = description.String
	t.AssignedTo = domain.ResidentID(assigned.String)
	return &t, nil
}

func (b *TaskBoard) Create(ctx context.Context, t domain.Task) (int64, error) {
	if t.Name == "" || t.Reward <= 0 {
		return 0, domain.ErrValidation
	}
	res, err := b.db.ExecContext(ctx,
		`INSERT INTO tasks (name, task_type, count, cost, social_type, deadline, description, assigned_to, completed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, FALSE)`,
		t.Name, string(t.Category), t.Count, t.Reward, string(t.Audience),
		nullable(t.Deadline), nullable(t.Description), nullable(string(t.AssignedTo)))
	if err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	return res.LastInsertId()
}

func (b *TaskBoard) Get(ctx context.Context, id int64) (*domain.Task, error) {
	row := b.db.QueryRowContext(ctx, "SELECT "+taskCols+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// ListAvailable returns open passive and active tasks; individual tasks
// are assigned directly and never shown on the public board.
func (b *TaskBoard) ListAvailable(ctx context.Context) ([]domain.Task, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT `+taskCols+` FROM tasks
		 WHERE completed = FALSE AND (social_type = ? OR social_type = ?)`,
		string(domain.AudiencePassive), string(domain.AudienceActive))
	if err != nil {
		return nil, fmt.Errorf("list available: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListByCompletion pages through tasks by completion state, newest first,
// and reports the total for the pager.
func (b *TaskBoard) ListByCompletion(ctx context.Context, completed bool, page, pageSize int) ([]domain.Task, int, error) {
	if pageSize <= 0 {
		pageSize = 5
	}
	if page < 1 {
		page = 1
	}
	rows, err := b.db.QueryContext(ctx,
		"SELECT "+taskCols+" FROM tasks WHERE completed = ? ORDER BY id DESC LIMIT ? OFFSET ?",
		completed, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	tasks, err := collectTasks(rows)
	rows.Close()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := b.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE completed = ?", completed).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}
	return tasks, total, nil
}

// Assign records which resident took the task.
func (b *TaskBoard) Assign(ctx context.Context, id int64, resident domain.ResidentID) error {
	res, err := b.db.ExecContext(ctx,
		"UPDATE tasks SET assigned_to = ? WHERE id = ? AND completed = FALSE",
		string(resident), id)
	if err != nil {
		return fmt.Errorf("assign task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkCompleted sets the completed flag. Marking an already-completed
// task is harmless and reports ErrNoChange so callers do not
// double-notify.
func (b *TaskBoard) MarkCompleted(ctx context.Context, id int64) error {
	res, err := b.db.ExecContext(ctx,
		"UPDATE tasks SET completed = TRUE WHERE id = ? AND completed = FALSE", id)
	if err != nil {
		return fmt.Errorf("complete task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n != 0 {
		return nil
	}
	if _, err := b.Get(ctx, id); err != nil {
		return err
	}
	return domain.ErrNoChange
}

// Editable task fields.
const (
	FieldName     = "name"
	FieldReward   = "reward"
	FieldDeadline = "deadline"
)

// EditField updates one of the restricted editable fields.
func (b *TaskBoard) EditField(ctx context.Context, id int64, field string, value string) error {
	var stmt string
	var arg any = value
	switch field {
	case FieldName:
		if value == "" {
			return domain.ErrValidation
		}
		stmt = "UPDATE tasks SET name = ? WHERE id = ?"
	case FieldReward:
		reward, err := parsePositive(value)
		if err != nil {
			return domain.ErrValidation
		}
		stmt = "UPDATE tasks SET cost = ? WHERE id = ?"
		arg = reward
	case FieldDeadline:
		stmt = "UPDATE tasks SET deadline = ? WHERE id = ?"
	default:
		return domain.ErrValidation
	}
	res, err := b.db.ExecContext(ctx, stmt, arg, id)
	if err != nil {
		return fmt.Errorf("edit task %d %s: %w", id, field, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func parsePositive(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, domain.ErrValidation
	}
	return n, nil
}

func collectTasks(rows *sql.Rows) ([]domain.Task, error) {
	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
