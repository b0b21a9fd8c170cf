package model

import (
	"strings"
	"time"
)

// TaskFilter はタスク一覧の絞り込み条件。
// nil のフィールドは条件に含めない。所有者条件は常に別引数で指定する。
type TaskFilter struct {
	Status   *TaskStatus
	Priority *TaskPriority
	DueFrom  *time.Time // due_date >= DueFrom
	DueTo    *time.Time // due_date <= DueTo
}

// TaskSortKey はタスク一覧のソートキー。
type TaskSortKey string

const (
	// TaskSortByDueDate は期日でソートする（デフォルト）。
	TaskSortByDueDate TaskSortKey = "dueDate"
	// TaskSortByPriority は優先度の序数でソートする。
	TaskSortByPriority TaskSortKey = "priority"
)

// TaskSort はソートキーと方向。
type TaskSort struct {
	Key  TaskSortKey
	Desc bool
}

// ParseTaskSort はクエリ文字列のsortBy/sortOrderを解釈する。
// sortByは"priority"（大文字小文字を区別しない）のみ優先度ソートとなり、それ以外はすべて期日ソート。
// sortOrderは完全一致の"desc"のみ降順となる。
func ParseTaskSort(sortBy, sortOrder string) TaskSort {
	key := TaskSortByDueDate
	if strings.EqualFold(sortBy, string(TaskSortByPriority)) {
		key = TaskSortByPriority
	}
	return TaskSort{Key: key, Desc: sortOrder == "desc"}
}

// TaskQuery はリポジトリに渡す一覧取得条件。
type TaskQuery struct {
	Filter TaskFilter
	Sort   TaskSort
	Offset int
	Limit  int
}

// TaskListParams はタスク一覧APIの入力パラメータ。
// Pageは1始まり。
type TaskListParams struct {
	Filter    TaskFilter
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}
