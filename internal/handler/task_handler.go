package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/task"
)

// 一覧APIのページネーション既定値
const (
	defaultPage     = 1
	defaultPageSize = 10
)

// dateOnlyLayout は日付のみの入力形式。UTCの0時として解釈する。
const dateOnlyLayout = "2006-01-02"

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
// 取得・更新・削除は対象が見つからない場合nil（false）を返す。
type TaskServiceInterface interface {
	Create(ctx context.Context, ownerID string, input model.TaskInput) (*model.Task, error)
	Get(ctx context.Context, ownerID, taskID string) (*model.Task, error)
	Update(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error)
	Delete(ctx context.Context, ownerID, taskID string) (bool, error)
	List(ctx context.Context, ownerID string, params model.TaskListParams) (*task.ListResult, error)
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
	metrics metrics.MetricsCollector
}

// NewTaskHandler はTaskHandlerを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewTaskHandler(service TaskServiceInterface, collector metrics.MetricsCollector) *TaskHandler {
	if collector == nil {
		collector = nopCollector{}
	}
	return &TaskHandler{
		service: service,
		metrics: collector,
	}
}

// taskRequest はタスク作成・更新リクエストのボディ。
// 更新時はボディに含まれるキーのみを反映する。
type taskRequest struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	DueDate     optionalDate        `json:"dueDate"`
	Status      *model.TaskStatus   `json:"status"`
	Priority    *model.TaskPriority `json:"priority"`
}

// optionalDate はキーの有無とnullを区別して日時を受け取る。
type optionalDate struct {
	set   bool
	value *time.Time
}

// UnmarshalJSON はRFC 3339形式またはYYYY-MM-DD形式の文字列とnullを受け付ける。
func (d *optionalDate) UnmarshalJSON(data []byte) error {
	d.set = true
	if bytes.Equal(data, []byte("null")) {
		d.value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("dueDate must be a string: %w", err)
	}
	t, err := parseDate(s)
	if err != nil {
		return err
	}
	d.value = &t
	return nil
}

// parseDate はRFC 3339形式またはYYYY-MM-DD形式の日時をUTCで返す。
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateOnlyLayout, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// toInput は作成リクエストをドメイン入力に変換する。
// 未指定のステータスはPending、優先度はMedium、説明は空文字とする。
func (req *taskRequest) toInput() (model.TaskInput, error) {
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		return model.TaskInput{}, model.NewInvalidRequestError("title is required")
	}

	input := model.TaskInput{
		Title:    *req.Title,
		DueDate:  req.DueDate.value,
		Status:   model.TaskStatusPending,
		Priority: model.TaskPriorityMedium,
	}
	if req.Description != nil {
		input.Description = *req.Description
	}
	if req.Status != nil {
		input.Status = *req.Status
	}
	if req.Priority != nil {
		input.Priority = *req.Priority
	}
	return input, nil
}

// toPatch は更新リクエストを部分更新に変換する。
func (req *taskRequest) toPatch() (model.TaskPatch, error) {
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return model.TaskPatch{}, model.NewInvalidRequestError("title must not be empty")
	}
	return model.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     model.OptionalTime{Set: req.DueDate.set, Time: req.DueDate.value},
		Status:      req.Status,
		Priority:    req.Priority,
	}, nil
}

// taskResponse はタスクのAPIレスポンス。
type taskResponse struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	DueDate     *time.Time         `json:"dueDate"`
	Status      model.TaskStatus   `json:"status"`
	Priority    model.TaskPriority `json:"priority"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func toTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Status:      t.Status,
		Priority:    t.Priority,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// taskListResponse はタスク一覧のAPIレスポンス。
type taskListResponse struct {
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	Total    int            `json:"total"`
	Tasks    []taskResponse `json:"tasks"`
	Message  string         `json:"message,omitempty"`
}

// CreateTask はタスクを作成する。
// POST /tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	req, err := decodeTaskRequest(w, r)
	if err != nil {
		h.fail(w, "create", err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.fail(w, "create", err)
		return
	}

	created, err := h.service.Create(r.Context(), userID, input)
	if err != nil {
		h.fail(w, "create", err)
		return
	}

	h.metrics.RecordTaskOperation("create", metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, toTaskResponse(created))
}

// ListTasks はフィルタ・ソート・ページネーションを適用したタスク一覧を返す。
// GET /tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	params, err := parseListParams(r)
	if err != nil {
		h.fail(w, "list", err)
		return
	}

	result, err := h.service.List(r.Context(), userID, params)
	if err != nil {
		h.fail(w, "list", err)
		return
	}

	resp := taskListResponse{
		Page:     result.Page,
		PageSize: result.PageSize,
		Total:    result.Total,
		Tasks:    make([]taskResponse, 0, len(result.Tasks)),
	}
	for _, t := range result.Tasks {
		resp.Tasks = append(resp.Tasks, toTaskResponse(t))
	}
	if len(resp.Tasks) == 0 {
		resp.Message = "No tasks found."
	}

	h.metrics.RecordTaskOperation("list", metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, resp)
}

// GetTask はタスクを取得する。
// GET /tasks/{id}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	taskID, err := taskIDParam(r)
	if err != nil {
		h.fail(w, "get", err)
		return
	}

	t, err := h.service.Get(r.Context(), userID, taskID)
	if err != nil {
		h.fail(w, "get", err)
		return
	}
	if t == nil {
		h.fail(w, "get", model.NewTaskNotFoundError("view"))
		return
	}

	h.metrics.RecordTaskOperation("get", metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

// UpdateTask はボディに含まれるフィールドのみタスクを更新する。
// PUT /tasks/{id}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	taskID, err := taskIDParam(r)
	if err != nil {
		h.fail(w, "update", err)
		return
	}

	req, err := decodeTaskRequest(w, r)
	if err != nil {
		h.fail(w, "update", err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.fail(w, "update", err)
		return
	}

	updated, err := h.service.Update(r.Context(), userID, taskID, patch)
	if err != nil {
		h.fail(w, "update", err)
		return
	}
	if updated == nil {
		h.fail(w, "update", model.NewTaskNotFoundError("update"))
		return
	}

	h.metrics.RecordTaskOperation("update", metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, toTaskResponse(updated))
}

// DeleteTask はタスクを削除する。
// DELETE /tasks/{id}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	taskID, err := taskIDParam(r)
	if err != nil {
		h.fail(w, "delete", err)
		return
	}

	deleted, err := h.service.Delete(r.Context(), userID, taskID)
	if err != nil {
		h.fail(w, "delete", err)
		return
	}
	if !deleted {
		h.fail(w, "delete", model.NewTaskNotFoundError("delete"))
		return
	}

	h.metrics.RecordTaskOperation("delete", metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Task deleted successfully."})
}

func (h *TaskHandler) fail(w http.ResponseWriter, operation string, err error) {
	h.metrics.RecordTaskOperation(operation, outcomeOf(err))
	handleServiceError(w, err)
}

// decodeTaskRequest はボディを解析する。列挙値や日付の形式不正もINVALID_REQUESTとする。
func decodeTaskRequest(w http.ResponseWriter, r *http.Request) (*taskRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, model.NewInvalidRequestError(err.Error())
	}
	return &req, nil
}

// taskIDParam はパスのタスクIDを検証し、正規化したUUID文字列を返す。
func taskIDParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", model.NewInvalidTaskIDError(raw)
	}
	return id.String(), nil
}

// parseListParams は一覧APIのクエリパラメータを解析する。
// page/pageSizeの範囲検証はサービス層で行う。
func parseListParams(r *http.Request) (model.TaskListParams, error) {
	q := r.URL.Query()
	params := model.TaskListParams{
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
		Page:      defaultPage,
		PageSize:  defaultPageSize,
	}

	if v := q.Get("status"); v != "" {
		status, err := model.ParseTaskStatus(v)
		if err != nil {
			return params, model.NewInvalidQueryError("status", v)
		}
		params.Filter.Status = &status
	}
	if v := q.Get("priority"); v != "" {
		priority, err := model.ParseTaskPriority(v)
		if err != nil {
			return params, model.NewInvalidQueryError("priority", v)
		}
		params.Filter.Priority = &priority
	}
	if v := q.Get("dueFrom"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return params, model.NewInvalidQueryError("dueFrom", v)
		}
		params.Filter.DueFrom = &t
	}
	if v := q.Get("dueTo"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return params, model.NewInvalidQueryError("dueTo", v)
		}
		params.Filter.DueTo = &t
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return params, model.NewInvalidQueryError("page", v)
		}
		params.Page = n
	}
	if v := q.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return params, model.NewInvalidQueryError("pageSize", v)
		}
		params.PageSize = n
	}

	return params, nil
}
