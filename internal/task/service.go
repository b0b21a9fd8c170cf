// Package task はタスクのライフサイクルと一覧取得のビジネスロジックを提供する。
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// ListResult はタスク一覧の1ページ分とフィルタ一致件数。
// Totalはページネーションを無視した件数。
type ListResult struct {
	Tasks    []*model.Task
	Total    int
	Page     int
	PageSize int
}

// Service はタスク操作を提供する。すべての操作は所有者IDで絞り込まれる。
type Service struct {
	repo repository.TaskRepository
	now  func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.TaskRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create は所有者ownerIDのタスクを作成し、採番されたIDとタイムスタンプを含めて返す。
func (s *Service) Create(ctx context.Context, ownerID string, input model.TaskInput) (*model.Task, error) {
	now := s.now().UTC().Truncate(time.Microsecond)
	task := &model.Task{
		ID:          uuid.New().String(),
		UserID:      ownerID,
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
		Status:      input.Status,
		Priority:    input.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	slog.Info("task created",
		slog.String("user_id", ownerID),
		slog.String("task_id", task.ID),
	)
	return task, nil
}

// Get はタスクを取得する。存在しない場合と他ユーザーのタスクの場合はどちらもnil, nilを返す。
func (s *Service) Get(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
	task, err := s.repo.FindByIDAndOwner(ctx, taskID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// Update は指定されたフィールドのみを既存タスクに上書きする。
// 所有者IDと作成日時は変更しない。更新日時は直前の値より必ず大きくなる。
// 対象が見つからない場合は書き込みを行わずnil, nilを返す。
func (s *Service) Update(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error) {
	task, err := s.Get(ctx, ownerID, taskID)
	if err != nil || task == nil {
		return nil, err
	}

	patch.Apply(task)
	task.UpdatedAt = s.nextUpdatedAt(task.UpdatedAt)

	if err := s.repo.Update(ctx, task); err != nil {
		// 取得後に削除された場合
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	slog.Info("task updated",
		slog.String("user_id", ownerID),
		slog.String("task_id", task.ID),
	)
	return task, nil
}

// Delete はタスクを削除する。対象が見つからない場合は書き込みを行わずfalseを返す。
func (s *Service) Delete(ctx context.Context, ownerID, taskID string) (bool, error) {
	task, err := s.Get(ctx, ownerID, taskID)
	if err != nil || task == nil {
		return false, err
	}

	if err := s.repo.Delete(ctx, task.ID, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete task: %w", err)
	}

	slog.Info("task deleted",
		slog.String("user_id", ownerID),
		slog.String("task_id", task.ID),
	)
	return true, nil
}

// List はフィルタ・ソート・ページネーションを適用したタスク一覧と、フィルタに一致する総件数を返す。
// 0件は正常な結果として扱う。
func (s *Service) List(ctx context.Context, ownerID string, params model.TaskListParams) (*ListResult, error) {
	if params.Page < 1 || params.PageSize < 1 {
		return nil, model.NewInvalidPaginationError(params.Page, params.PageSize)
	}

	// ページ番号とページサイズに上限はない。オフセットがintに収まらないページは必ず空になる
	var tasks []*model.Task
	if params.Page-1 <= math.MaxInt/params.PageSize {
		query := model.TaskQuery{
			Filter: params.Filter,
			Sort:   model.ParseTaskSort(params.SortBy, params.SortOrder),
			Offset: (params.Page - 1) * params.PageSize,
			Limit:  params.PageSize,
		}

		var err error
		tasks, err = s.repo.List(ctx, ownerID, query)
		if err != nil {
			return nil, fmt.Errorf("failed to list tasks: %w", err)
		}
	}

	total, err := s.repo.Count(ctx, ownerID, params.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	if tasks == nil {
		tasks = []*model.Task{}
	}

	return &ListResult{
		Tasks:    tasks,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}, nil
}

// nextUpdatedAt は現在時刻を返す。ただし直前の更新日時以下の場合は直前の値に1マイクロ秒加えた値を返す。
// PostgreSQLのタイムスタンプ精度がマイクロ秒のため、それ未満の差は保存時に失われる。
func (s *Service) nextUpdatedAt(prev time.Time) time.Time {
	now := s.now().UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
