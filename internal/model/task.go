// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Task はユーザーが所有するタスクを表す。
// UserID と CreatedAt は作成後に変更されない。
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	DueDate     *time.Time
	Status      TaskStatus
	Priority    TaskPriority
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskStatus はタスクの進捗状態を表す。
// 永続化時は序数（SMALLINT）として保存する。
type TaskStatus int

const (
	// TaskStatusPending は未着手。
	TaskStatusPending TaskStatus = iota
	// TaskStatusInProgress は作業中。
	TaskStatusInProgress
	// TaskStatusCompleted は完了。
	TaskStatusCompleted
)

var taskStatusNames = []string{"Pending", "InProgress", "Completed"}

// String はステータス名を返す。
func (s TaskStatus) String() string {
	if s.Valid() {
		return taskStatusNames[s]
	}
	return fmt.Sprintf("TaskStatus(%d)", int(s))
}

// Valid は定義済みのステータスかどうかを返す。
func (s TaskStatus) Valid() bool {
	return s >= TaskStatusPending && s <= TaskStatusCompleted
}

// ParseTaskStatus は名前（大文字小文字を区別しない）または序数からステータスを解析する。
func ParseTaskStatus(v string) (TaskStatus, error) {
	i, err := parseEnum(v, taskStatusNames)
	if err != nil {
		return 0, fmt.Errorf("invalid task status %q", v)
	}
	return TaskStatus(i), nil
}

// MarshalJSON はステータスを名前で出力する。
func (s TaskStatus) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid task status %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON は文字列名と序数の両方を受け付ける。
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	raw, err := enumJSONValue(data)
	if err == errNullEnum {
		return nil
	}
	if err != nil {
		return err
	}
	parsed, err := ParseTaskStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// TaskPriority はタスクの優先度を表す。
// ソート時は宣言順 Low < Medium < High で比較する。
type TaskPriority int

const (
	// TaskPriorityLow は低優先度。
	TaskPriorityLow TaskPriority = iota
	// TaskPriorityMedium は中優先度。
	TaskPriorityMedium
	// TaskPriorityHigh は高優先度。
	TaskPriorityHigh
)

var taskPriorityNames = []string{"Low", "Medium", "High"}

// String は優先度名を返す。
func (p TaskPriority) String() string {
	if p.Valid() {
		return taskPriorityNames[p]
	}
	return fmt.Sprintf("TaskPriority(%d)", int(p))
}

// Valid は定義済みの優先度かどうかを返す。
func (p TaskPriority) Valid() bool {
	return p >= TaskPriorityLow && p <= TaskPriorityHigh
}

// ParseTaskPriority は名前（大文字小文字を区別しない）または序数から優先度を解析する。
func ParseTaskPriority(v string) (TaskPriority, error) {
	i, err := parseEnum(v, taskPriorityNames)
	if err != nil {
		return 0, fmt.Errorf("invalid task priority %q", v)
	}
	return TaskPriority(i), nil
}

// MarshalJSON は優先度を名前で出力する。
func (p TaskPriority) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid task priority %d", int(p))
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON は文字列名と序数の両方を受け付ける。
func (p *TaskPriority) UnmarshalJSON(data []byte) error {
	raw, err := enumJSONValue(data)
	if err == errNullEnum {
		return nil
	}
	if err != nil {
		return err
	}
	parsed, err := ParseTaskPriority(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func parseEnum(v string, names []string) (int, error) {
	v = strings.TrimSpace(v)
	for i, name := range names {
		if strings.EqualFold(v, name) {
			return i, nil
		}
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 || i >= len(names) {
		return 0, fmt.Errorf("unknown value %q", v)
	}
	return i, nil
}

var errNullEnum = errors.New("null enum value")

// enumJSONValue はJSONの文字列または数値リテラルを文字列として取り出す。
func enumJSONValue(data []byte) (string, error) {
	if string(data) == "null" {
		return "", errNullEnum
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", fmt.Errorf("enum value must be a string or an integer: %s", string(data))
	}
	return n.String(), nil
}

// TaskInput はタスク作成時に呼び出し元が指定するフィールド。
type TaskInput struct {
	Title       string
	Description string
	DueDate     *time.Time
	Status      TaskStatus
	Priority    TaskPriority
}

// TaskPatch はタスク更新時の部分更新フィールド。
// nil のフィールドは既存の値を維持する。
type TaskPatch struct {
	Title       *string
	Description *string
	DueDate     OptionalTime
	Status      *TaskStatus
	Priority    *TaskPriority
}

// OptionalTime は「未指定」と「null指定」を区別できる日時。
// Set が true で Time が nil の場合は値のクリアを表す。
type OptionalTime struct {
	Set  bool
	Time *time.Time
}

// Apply はパッチの指定フィールドをタスクに上書きする。
// ID、UserID、CreatedAt、UpdatedAt には触れない。
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.DueDate.Set {
		t.DueDate = p.DueDate.Time
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
}
