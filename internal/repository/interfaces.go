// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/taskman/internal/model"
)

// ErrNotFound は更新・削除対象の行が存在しない（または所有者が異なる）ことを表す。
var ErrNotFound = errors.New("repository: not found")

// ErrDuplicateUser はユーザー名またはメールアドレスの一意制約違反を表す。
var ErrDuplicateUser = errors.New("repository: duplicate username or email")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// ExistsByUsernameOrEmail はユーザー名またはメールアドレスが一致するユーザーの有無を返す。
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)

	// FindByUsernameOrEmail はユーザー名、次にメールアドレスの完全一致でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Create はユーザーを作成する。一意制約に違反した場合はErrDuplicateUserを返す。
	Create(ctx context.Context, user *model.User) error
}

// TaskRepository はタスクデータの永続化インターフェース。
// すべての操作は所有者IDで絞り込まれる。
type TaskRepository interface {
	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// FindByIDAndOwner は所有者が一致する場合のみタスクを返す。見つからない場合はnilを返す。
	FindByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Task, error)

	// Update はタスクの可変フィールドとupdated_atを更新する。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, task *model.Task) error

	// Delete は所有者が一致するタスクを削除する。
	// 対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id, ownerID string) error

	// List はフィルタ・ソート・ページネーションを適用したタスク一覧を返す。
	List(ctx context.Context, ownerID string, query model.TaskQuery) ([]*model.Task, error)

	// Count はページネーションを無視してフィルタに一致するタスク数を返す。
	Count(ctx context.Context, ownerID string, filter model.TaskFilter) (int, error)
}
