package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/task"
)

const (
	testUserID = "11111111-1111-1111-1111-111111111111"
	testTaskID = "22222222-2222-2222-2222-222222222222"
)

// --- モック定義 ---

// mockTaskService はTaskServiceInterfaceのモック実装。
type mockTaskService struct {
	createFn func(ctx context.Context, ownerID string, input model.TaskInput) (*model.Task, error)
	getFn    func(ctx context.Context, ownerID, taskID string) (*model.Task, error)
	updateFn func(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error)
	deleteFn func(ctx context.Context, ownerID, taskID string) (bool, error)
	listFn   func(ctx context.Context, ownerID string, params model.TaskListParams) (*task.ListResult, error)
}

func (m *mockTaskService) Create(ctx context.Context, ownerID string, input model.TaskInput) (*model.Task, error) {
	if m.createFn != nil {
		return m.createFn(ctx, ownerID, input)
	}
	return nil, nil
}

func (m *mockTaskService) Get(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
	if m.getFn != nil {
		return m.getFn(ctx, ownerID, taskID)
	}
	return nil, nil
}

func (m *mockTaskService) Update(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, ownerID, taskID, patch)
	}
	return nil, nil
}

func (m *mockTaskService) Delete(ctx context.Context, ownerID, taskID string) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, ownerID, taskID)
	}
	return false, nil
}

func (m *mockTaskService) List(ctx context.Context, ownerID string, params model.TaskListParams) (*task.ListResult, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID, params)
	}
	return &task.ListResult{Tasks: []*model.Task{}, Page: params.Page, PageSize: params.PageSize}, nil
}

// withUserID はリクエストコンテキストにユーザーIDを注入する。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withTaskID はchiのURLパラメータidを設定する。
func withTaskID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func sampleTask() *model.Task {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	return &model.Task{
		ID:          testTaskID,
		UserID:      testUserID,
		Title:       "Write report",
		Description: "quarterly",
		DueDate:     &due,
		Status:      model.TaskStatusInProgress,
		Priority:    model.TaskPriorityHigh,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func decodeTask(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	return body
}

// --- POST /tasks ---

func TestTaskHandler_CreateTask_AppliesDefaults(t *testing.T) {
	var got model.TaskInput
	svc := &mockTaskService{
		createFn: func(ctx context.Context, ownerID string, input model.TaskInput) (*model.Task, error) {
			if ownerID != testUserID {
				t.Errorf("ownerID = %q, want %q", ownerID, testUserID)
			}
			got = input
			return &model.Task{ID: testTaskID, Title: input.Title, Status: input.Status, Priority: input.Priority}, nil
		},
	}
	h := NewTaskHandler(svc, nil)

	w := httptest.NewRecorder()
	h.CreateTask(w, withUserID(postJSON("/tasks", `{"title":"Buy milk"}`), testUserID))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.Status != model.TaskStatusPending || got.Priority != model.TaskPriorityMedium {
		t.Errorf("defaults = (%v, %v), want (Pending, Medium)", got.Status, got.Priority)
	}
	if got.Description != "" || got.DueDate != nil {
		t.Errorf("description = %q, dueDate = %v", got.Description, got.DueDate)
	}

	body := decodeTask(t, w)
	if body["status"] != "Pending" || body["priority"] != "Medium" {
		t.Errorf("body enums = (%v, %v)", body["status"], body["priority"])
	}
	if v, ok := body["dueDate"]; !ok || v != nil {
		t.Errorf("dueDate = %v, want explicit null", v)
	}
}

func TestTaskHandler_CreateTask_ParsesFields(t *testing.T) {
	var got model.TaskInput
	svc := &mockTaskService{
		createFn: func(ctx context.Context, ownerID string, input model.TaskInput) (*model.Task, error) {
			got = input
			return sampleTask(), nil
		},
	}
	h := NewTaskHandler(svc, nil)

	body := `{"title":"Report","description":"d","dueDate":"2026-03-01","status":"inprogress","priority":2}`
	w := httptest.NewRecorder()
	h.CreateTask(w, withUserID(postJSON("/tasks", body), testUserID))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.Status != model.TaskStatusInProgress {
		t.Errorf("status = %v, want InProgress", got.Status)
	}
	if got.Priority != model.TaskPriorityHigh {
		t.Errorf("priority = %v, want High", got.Priority)
	}
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if got.DueDate == nil || !got.DueDate.Equal(want) {
		t.Errorf("dueDate = %v, want %v", got.DueDate, want)
	}
}

func TestTaskHandler_CreateTask_InvalidRequest(t *testing.T) {
	tests := map[string]string{
		"malformed JSON":   `{"title":`,
		"missing title":    `{"description":"x"}`,
		"blank title":      `{"title":"   "}`,
		"unknown status":   `{"title":"a","status":"Archived"}`,
		"ordinal overflow": `{"title":"a","priority":3}`,
		"bad due date":     `{"title":"a","dueDate":"tomorrow"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			svc := &mockTaskService{
				createFn: func(ctx context.Context, ownerID string, input model.TaskInput) (*model.Task, error) {
					t.Error("service should not be called")
					return nil, nil
				},
			}
			h := NewTaskHandler(svc, nil)

			w := httptest.NewRecorder()
			h.CreateTask(w, withUserID(postJSON("/tasks", body), testUserID))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if got := decodeErrorBody(t, w).Code; got != model.ErrCodeInvalidRequest {
				t.Errorf("code = %q, want %q", got, model.ErrCodeInvalidRequest)
			}
		})
	}
}

func TestTaskHandler_CreateTask_NoUserID_ReturnsUnauthorized(t *testing.T) {
	h := NewTaskHandler(&mockTaskService{}, nil)

	w := httptest.NewRecorder()
	h.CreateTask(w, postJSON("/tasks", `{"title":"a"}`))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// --- GET /tasks/{id} ---

func TestTaskHandler_GetTask_Success(t *testing.T) {
	svc := &mockTaskService{
		getFn: func(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
			if ownerID != testUserID || taskID != testTaskID {
				t.Errorf("Get(%q, %q)", ownerID, taskID)
			}
			return sampleTask(), nil
		},
	}
	h := NewTaskHandler(svc, nil)

	req := withTaskID(withUserID(httptest.NewRequest(http.MethodGet, "/tasks/"+testTaskID, nil), testUserID), testTaskID)
	w := httptest.NewRecorder()
	h.GetTask(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeTask(t, w)
	if body["id"] != testTaskID || body["title"] != "Write report" {
		t.Errorf("body = %v", body)
	}
	if body["dueDate"] != "2026-03-01T00:00:00Z" {
		t.Errorf("dueDate = %v", body["dueDate"])
	}
	if _, ok := body["userId"]; ok {
		t.Error("owner id must not be exposed")
	}
}

// TestTaskHandler_GetTask_NormalizesID は大文字のUUIDが正規化されて渡ることを検証する。
func TestTaskHandler_GetTask_NormalizesID(t *testing.T) {
	var gotID string
	svc := &mockTaskService{
		getFn: func(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
			gotID = taskID
			return sampleTask(), nil
		},
	}
	h := NewTaskHandler(svc, nil)

	upper := strings.ToUpper(testTaskID)
	req := withTaskID(withUserID(httptest.NewRequest(http.MethodGet, "/tasks/"+upper, nil), testUserID), upper)
	h.GetTask(httptest.NewRecorder(), req)

	if gotID != testTaskID {
		t.Errorf("taskID = %q, want %q", gotID, testTaskID)
	}
}

func TestTaskHandler_GetTask_InvalidID(t *testing.T) {
	h := NewTaskHandler(&mockTaskService{
		getFn: func(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
			t.Error("service should not be called")
			return nil, nil
		},
	}, nil)

	req := withTaskID(withUserID(httptest.NewRequest(http.MethodGet, "/tasks/42", nil), testUserID), "42")
	w := httptest.NewRecorder()
	h.GetTask(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeErrorBody(t, w).Code; got != model.ErrCodeInvalidTaskID {
		t.Errorf("code = %q, want %q", got, model.ErrCodeInvalidTaskID)
	}
}

func TestTaskHandler_NotFoundMessages(t *testing.T) {
	svc := &mockTaskService{}
	h := NewTaskHandler(svc, nil)

	tests := []struct {
		name    string
		method  string
		body    string
		handler http.HandlerFunc
		want    string
	}{
		{"get", http.MethodGet, "", h.GetTask, "Task not found or you are not authorized to view it."},
		{"update", http.MethodPut, `{"title":"x"}`, h.UpdateTask, "Task not found or you are not authorized to update it."},
		{"delete", http.MethodDelete, "", h.DeleteTask, "Task not found or you are not authorized to delete it."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/tasks/"+testTaskID, strings.NewReader(tt.body))
			req = withTaskID(withUserID(req, testUserID), testTaskID)
			w := httptest.NewRecorder()

			tt.handler(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
			}
			if got := decodeErrorBody(t, w).Message; got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
		})
	}
}

// --- PUT /tasks/{id} ---

// TestTaskHandler_UpdateTask_OnlyPresentKeys はボディに含まれるキーのみがパッチに反映されることを検証する。
func TestTaskHandler_UpdateTask_OnlyPresentKeys(t *testing.T) {
	var got model.TaskPatch
	svc := &mockTaskService{
		updateFn: func(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error) {
			got = patch
			return sampleTask(), nil
		},
	}
	h := NewTaskHandler(svc, nil)

	req := httptest.NewRequest(http.MethodPut, "/tasks/"+testTaskID, strings.NewReader(`{"status":"Completed"}`))
	req = withTaskID(withUserID(req, testUserID), testTaskID)
	w := httptest.NewRecorder()
	h.UpdateTask(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.Status == nil || *got.Status != model.TaskStatusCompleted {
		t.Errorf("status patch = %v, want Completed", got.Status)
	}
	if got.Title != nil || got.Description != nil || got.Priority != nil || got.DueDate.Set {
		t.Errorf("unexpected fields in patch: %+v", got)
	}
}

func TestTaskHandler_UpdateTask_NullDueDateClears(t *testing.T) {
	var got model.TaskPatch
	svc := &mockTaskService{
		updateFn: func(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error) {
			got = patch
			return sampleTask(), nil
		},
	}
	h := NewTaskHandler(svc, nil)

	req := httptest.NewRequest(http.MethodPut, "/tasks/"+testTaskID, strings.NewReader(`{"dueDate":null}`))
	req = withTaskID(withUserID(req, testUserID), testTaskID)
	h.UpdateTask(httptest.NewRecorder(), req)

	if !got.DueDate.Set || got.DueDate.Time != nil {
		t.Errorf("dueDate patch = %+v, want Set with nil time", got.DueDate)
	}
}

func TestTaskHandler_UpdateTask_BlankTitleRejected(t *testing.T) {
	h := NewTaskHandler(&mockTaskService{
		updateFn: func(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error) {
			t.Error("service should not be called")
			return nil, nil
		},
	}, nil)

	req := httptest.NewRequest(http.MethodPut, "/tasks/"+testTaskID, strings.NewReader(`{"title":""}`))
	req = withTaskID(withUserID(req, testUserID), testTaskID)
	w := httptest.NewRecorder()
	h.UpdateTask(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- DELETE /tasks/{id} ---

func TestTaskHandler_DeleteTask_Success(t *testing.T) {
	collector := &recordingCollector{}
	svc := &mockTaskService{
		deleteFn: func(ctx context.Context, ownerID, taskID string) (bool, error) {
			return true, nil
		},
	}
	h := NewTaskHandler(svc, collector)

	req := withTaskID(withUserID(httptest.NewRequest(http.MethodDelete, "/tasks/"+testTaskID, nil), testUserID), testTaskID)
	w := httptest.NewRecorder()
	h.DeleteTask(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body messageResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Message != "Task deleted successfully." {
		t.Errorf("message = %q", body.Message)
	}
	if len(collector.taskOps) != 1 || collector.taskOps[0] != "delete:success" {
		t.Errorf("task ops = %v, want [delete:success]", collector.taskOps)
	}
}

func TestTaskHandler_DeleteTask_StorageError(t *testing.T) {
	collector := &recordingCollector{}
	h := NewTaskHandler(&mockTaskService{
		deleteFn: func(ctx context.Context, ownerID, taskID string) (bool, error) {
			return false, errors.New("db down")
		},
	}, collector)

	req := withTaskID(withUserID(httptest.NewRequest(http.MethodDelete, "/tasks/"+testTaskID, nil), testUserID), testTaskID)
	w := httptest.NewRecorder()
	h.DeleteTask(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if got := decodeErrorBody(t, w).Message; strings.Contains(got, "db down") {
		t.Errorf("internal error detail leaked: %q", got)
	}
	if len(collector.taskOps) != 1 || collector.taskOps[0] != "delete:error" {
		t.Errorf("task ops = %v, want [delete:error]", collector.taskOps)
	}
}

// --- GET /tasks ---

func TestTaskHandler_ListTasks_ParsesQuery(t *testing.T) {
	var got model.TaskListParams
	svc := &mockTaskService{
		listFn: func(ctx context.Context, ownerID string, params model.TaskListParams) (*task.ListResult, error) {
			got = params
			return &task.ListResult{Tasks: []*model.Task{sampleTask()}, Total: 11, Page: params.Page, PageSize: params.PageSize}, nil
		},
	}
	h := NewTaskHandler(svc, nil)

	url := "/tasks?status=Pending&priority=high&dueFrom=2026-01-01&dueTo=2026-12-31T23:59:59Z&sortBy=Priority&sortOrder=desc&page=2&pageSize=5"
	w := httptest.NewRecorder()
	h.ListTasks(w, withUserID(httptest.NewRequest(http.MethodGet, url, nil), testUserID))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.Filter.Status == nil || *got.Filter.Status != model.TaskStatusPending {
		t.Errorf("status filter = %v", got.Filter.Status)
	}
	if got.Filter.Priority == nil || *got.Filter.Priority != model.TaskPriorityHigh {
		t.Errorf("priority filter = %v", got.Filter.Priority)
	}
	if got.Filter.DueFrom == nil || !got.Filter.DueFrom.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("dueFrom = %v", got.Filter.DueFrom)
	}
	if got.Filter.DueTo == nil || !got.Filter.DueTo.Equal(time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)) {
		t.Errorf("dueTo = %v", got.Filter.DueTo)
	}
	if got.SortBy != "Priority" || got.SortOrder != "desc" || got.Page != 2 || got.PageSize != 5 {
		t.Errorf("params = %+v", got)
	}

	var body taskListResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Total != 11 || body.Page != 2 || body.PageSize != 5 || len(body.Tasks) != 1 {
		t.Errorf("body = %+v", body)
	}
	if body.Message != "" {
		t.Errorf("message = %q, want empty for a non-empty page", body.Message)
	}
}

func TestTaskHandler_ListTasks_Defaults(t *testing.T) {
	var got model.TaskListParams
	svc := &mockTaskService{
		listFn: func(ctx context.Context, ownerID string, params model.TaskListParams) (*task.ListResult, error) {
			got = params
			return &task.ListResult{Tasks: []*model.Task{}, Page: params.Page, PageSize: params.PageSize}, nil
		},
	}
	h := NewTaskHandler(svc, nil)

	w := httptest.NewRecorder()
	h.ListTasks(w, withUserID(httptest.NewRequest(http.MethodGet, "/tasks", nil), testUserID))

	if got.Page != 1 || got.PageSize != 10 {
		t.Errorf("page/pageSize = %d/%d, want 1/10", got.Page, got.PageSize)
	}
	if got.Filter.Status != nil || got.Filter.Priority != nil || got.Filter.DueFrom != nil || got.Filter.DueTo != nil {
		t.Errorf("expected empty filter, got %+v", got.Filter)
	}

	body := decodeTask(t, w)
	if body["message"] != "No tasks found." {
		t.Errorf("message = %v, want %q", body["message"], "No tasks found.")
	}
	if tasks, ok := body["tasks"].([]interface{}); !ok || len(tasks) != 0 {
		t.Errorf("tasks = %v, want empty array", body["tasks"])
	}
}

func TestTaskHandler_ListTasks_InvalidQuery(t *testing.T) {
	tests := map[string]string{
		"status":   "/tasks?status=Done",
		"priority": "/tasks?priority=urgent",
		"dueFrom":  "/tasks?dueFrom=yesterday",
		"page":     "/tasks?page=two",
		"pageSize": "/tasks?pageSize=1.5",
	}
	for name, url := range tests {
		t.Run(name, func(t *testing.T) {
			h := NewTaskHandler(&mockTaskService{
				listFn: func(ctx context.Context, ownerID string, params model.TaskListParams) (*task.ListResult, error) {
					t.Error("service should not be called")
					return nil, nil
				},
			}, nil)

			w := httptest.NewRecorder()
			h.ListTasks(w, withUserID(httptest.NewRequest(http.MethodGet, url, nil), testUserID))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if got := decodeErrorBody(t, w).Code; got != model.ErrCodeInvalidQuery {
				t.Errorf("code = %q, want %q", got, model.ErrCodeInvalidQuery)
			}
		})
	}
}

func TestTaskHandler_ListTasks_InvalidPagination(t *testing.T) {
	h := NewTaskHandler(&mockTaskService{
		listFn: func(ctx context.Context, ownerID string, params model.TaskListParams) (*task.ListResult, error) {
			return nil, model.NewInvalidPaginationError(params.Page, params.PageSize)
		},
	}, nil)

	w := httptest.NewRecorder()
	h.ListTasks(w, withUserID(httptest.NewRequest(http.MethodGet, "/tasks?page=0", nil), testUserID))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeErrorBody(t, w).Code; got != model.ErrCodeInvalidPagination {
		t.Errorf("code = %q, want %q", got, model.ErrCodeInvalidPagination)
	}
}

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewUserAlreadyExistsError(), http.StatusBadRequest},
		{model.NewWeakPasswordError(), http.StatusBadRequest},
		{model.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{model.NewUnauthorizedError(), http.StatusUnauthorized},
		{model.NewInvalidTaskIDError("x"), http.StatusBadRequest},
		{model.NewTaskNotFoundError("view"), http.StatusNotFound},
		{model.NewInternalError(), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
			t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}
