package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/hitoshi/taskman/internal/model"
)

// MemoryStore はUserRepositoryとTaskRepositoryのインメモリ実装。
// フィルタとソートの意味はPostgreSQL実装と一致させている。
// 保持するエンティティは常にコピーで出し入れする。
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]model.User
	tasks map[string]model.Task
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]model.User),
		tasks: make(map[string]model.Task),
	}
}

// Ping はヘルスチェック用。常に成功する。
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// ExistsByUsernameOrEmail はユーザー名またはメールアドレスが一致するユーザーの有無を返す。
func (s *MemoryStore) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// FindByUsernameOrEmail はユーザー名の一致を優先してユーザーを検索する。
// ユーザー名とメールアドレスはそれぞれ一意（Createで保証）のため、結果はmapの走査順に依存しない。
func (s *MemoryStore) FindByUsernameOrEmail(_ context.Context, usernameOrEmail string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var byEmail *model.User
	for _, u := range s.users {
		if u.Username == usernameOrEmail {
			found := u
			return &found, nil
		}
		if u.Email == usernameOrEmail && byEmail == nil {
			found := u
			byEmail = &found
		}
	}
	return byEmail, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (s *MemoryStore) FindByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// Create はユーザーを作成する。ユーザー名かメールアドレスが重複する場合はErrDuplicateUserを返す。
func (s *MemoryStore) Create(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return ErrDuplicateUser
		}
	}
	s.users[user.ID] = *user
	return nil
}

// TaskStore はMemoryStoreをTaskRepositoryとして扱うためのビュー。
// UserRepositoryと同名のメソッド（Create/FindByID）が衝突するため分けている。
type TaskStore struct {
	s *MemoryStore
}

// Tasks はMemoryStoreのタスク側のリポジトリを返す。
func (s *MemoryStore) Tasks() *TaskStore {
	return &TaskStore{s: s}
}

// Create はタスクを作成する。
func (t *TaskStore) Create(_ context.Context, task *model.Task) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	t.s.tasks[task.ID] = cloneTask(*task)
	return nil
}

// FindByIDAndOwner は所有者が一致する場合のみタスクを返す。
func (t *TaskStore) FindByIDAndOwner(_ context.Context, id, ownerID string) (*model.Task, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	task, ok := t.s.tasks[id]
	if !ok || task.UserID != ownerID {
		return nil, nil
	}
	found := cloneTask(task)
	return &found, nil
}

// Update はタスクの可変フィールドとupdated_atを更新する。
func (t *TaskStore) Update(_ context.Context, task *model.Task) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	current, ok := t.s.tasks[task.ID]
	if !ok || current.UserID != task.UserID {
		return ErrNotFound
	}
	current.Title = task.Title
	current.Description = task.Description
	current.DueDate = task.DueDate
	current.Status = task.Status
	current.Priority = task.Priority
	current.UpdatedAt = task.UpdatedAt
	t.s.tasks[task.ID] = cloneTask(current)
	return nil
}

// Delete は所有者が一致するタスクを削除する。
func (t *TaskStore) Delete(_ context.Context, id, ownerID string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	task, ok := t.s.tasks[id]
	if !ok || task.UserID != ownerID {
		return ErrNotFound
	}
	delete(t.s.tasks, id)
	return nil
}

// List はフィルタ・ソート・ページネーションを適用したタスク一覧を返す。
func (t *TaskStore) List(_ context.Context, ownerID string, query model.TaskQuery) ([]*model.Task, error) {
	t.s.mu.RLock()
	matched := t.s.match(ownerID, query.Filter)
	t.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return taskLess(matched[i], matched[j], query.Sort)
	})

	start := min(max(query.Offset, 0), len(matched))
	end := len(matched)
	if query.Limit >= 0 && query.Limit < end-start {
		end = start + query.Limit
	}

	page := make([]*model.Task, 0, end-start)
	for i := start; i < end; i++ {
		task := matched[i]
		page = append(page, &task)
	}
	return page, nil
}

// Count はフィルタに一致するタスク数を返す。
func (t *TaskStore) Count(_ context.Context, ownerID string, filter model.TaskFilter) (int, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	return len(t.s.match(ownerID, filter)), nil
}

// match は所有者とフィルタに一致するタスクのコピーを返す。呼び出し側でロックを保持すること。
func (s *MemoryStore) match(ownerID string, filter model.TaskFilter) []model.Task {
	var matched []model.Task
	for _, task := range s.tasks {
		if task.UserID != ownerID {
			continue
		}
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && task.Priority != *filter.Priority {
			continue
		}
		// 期日の範囲条件は期日のないタスクを含まない
		if filter.DueFrom != nil && (task.DueDate == nil || task.DueDate.Before(*filter.DueFrom)) {
			continue
		}
		if filter.DueTo != nil && (task.DueDate == nil || task.DueDate.After(*filter.DueTo)) {
			continue
		}
		matched = append(matched, cloneTask(task))
	}
	return matched
}

// taskLess はPostgreSQL実装のORDER BYと同じ順序を定義する。
func taskLess(a, b model.Task, s model.TaskSort) bool {
	if c := compareTaskKey(a, b, s); c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}

func compareTaskKey(a, b model.Task, s model.TaskSort) int {
	if s.Key == model.TaskSortByPriority {
		c := compareInt(int(a.Priority), int(b.Priority))
		if s.Desc {
			return -c
		}
		return c
	}

	switch {
	case a.DueDate == nil && b.DueDate == nil:
		return 0
	case a.DueDate == nil:
		// NULLは昇順で先頭、降順で末尾
		if s.Desc {
			return 1
		}
		return -1
	case b.DueDate == nil:
		if s.Desc {
			return -1
		}
		return 1
	}

	c := a.DueDate.Compare(*b.DueDate)
	if s.Desc {
		return -c
	}
	return c
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cloneTask(task model.Task) model.Task {
	if task.DueDate != nil {
		d := *task.DueDate
		task.DueDate = &d
	}
	return task
}

// compile-time interface check
var (
	_ UserRepository = (*MemoryStore)(nil)
	_ TaskRepository = (*TaskStore)(nil)
)
