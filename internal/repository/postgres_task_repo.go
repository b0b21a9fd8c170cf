package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
// timeoutは各クエリに適用される上限時間（0以下で無制限）。
func NewPostgresTaskRepo(db *sql.DB, timeout time.Duration) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db, timeout: timeout}
}

const taskColumns = `id, user_id, title, description, due_date, status, priority, created_at, updated_at`

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		task.ID, task.UserID, task.Title, task.Description, nullTime(task.DueDate),
		int(task.Status), int(task.Priority), task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// FindByIDAndOwner は所有者が一致する場合のみタスクを返す。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Task, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	task, err := scanTask(r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`,
		id, ownerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// Update はタスクの可変フィールドとupdated_atを更新する。
// user_idとcreated_atは更新対象に含めない。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks
		 SET title = $1, description = $2, due_date = $3, status = $4, priority = $5, updated_at = $6
		 WHERE id = $7 AND user_id = $8`,
		task.Title, task.Description, nullTime(task.DueDate),
		int(task.Status), int(task.Priority), task.UpdatedAt,
		task.ID, task.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return expectOneRow(result)
}

// Delete は所有者が一致するタスクを削除する。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id, ownerID string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return expectOneRow(result)
}

// List はフィルタ・ソート・ページネーションを適用したタスク一覧を返す。
// 同順位のタスクはid昇順で並べる。
func (r *PostgresTaskRepo) List(ctx context.Context, ownerID string, query model.TaskQuery) ([]*model.Task, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	where, args := buildTaskWhere(ownerID, query.Filter)
	argIndex := len(args) + 1

	stmt := `SELECT ` + taskColumns + ` FROM tasks` + where + ` ORDER BY ` + taskOrderBy(query.Sort)
	stmt += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, query.Limit, query.Offset)

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	// Limitは利用者指定で上限がないため、容量の見積もりには使わない
	var tasks []*model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task rows: %w", err)
	}
	return tasks, nil
}

// Count はページネーションを無視してフィルタに一致するタスク数を返す。
func (r *PostgresTaskRepo) Count(ctx context.Context, ownerID string, filter model.TaskFilter) (int, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	where, args := buildTaskWhere(ownerID, filter)

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM tasks`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// buildTaskWhere は所有者条件と任意のフィルタ条件をANDで連結したWHERE句を構築する。
func buildTaskWhere(ownerID string, filter model.TaskFilter) (string, []interface{}) {
	conds := []string{"user_id = $1"}
	args := []interface{}{ownerID}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != nil {
		add("status = $%d", int(*filter.Status))
	}
	if filter.Priority != nil {
		add("priority = $%d", int(*filter.Priority))
	}
	if filter.DueFrom != nil {
		add("due_date >= $%d", *filter.DueFrom)
	}
	if filter.DueTo != nil {
		add("due_date <= $%d", *filter.DueTo)
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

// taskOrderBy はソート指定をORDER BY句に変換する。
// 期日のNULLは昇順で先頭、降順で末尾に置く。
func taskOrderBy(sort model.TaskSort) string {
	switch {
	case sort.Key == model.TaskSortByPriority && sort.Desc:
		return "priority DESC, id ASC"
	case sort.Key == model.TaskSortByPriority:
		return "priority ASC, id ASC"
	case sort.Desc:
		return "due_date DESC NULLS LAST, id ASC"
	default:
		return "due_date ASC NULLS FIRST, id ASC"
	}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*model.Task, error) {
	task := &model.Task{}
	var dueDate sql.NullTime
	var status, priority int
	if err := row.Scan(
		&task.ID, &task.UserID, &task.Title, &task.Description, &dueDate,
		&status, &priority, &task.CreatedAt, &task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if dueDate.Valid {
		t := dueDate.Time
		task.DueDate = &t
	}
	task.Status = model.TaskStatus(status)
	task.Priority = model.TaskPriority(priority)
	return task, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
