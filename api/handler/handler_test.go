package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/fastygo/taskledger/api/transport"
	"github.com/fastygo/taskledger/domain"
	"github.com/fastygo/taskledger/internal/infrastructure/monitor"
	"github.com/fastygo/taskledger/pkg/httpcontext"
	"github.com/fastygo/taskledger/repository/memory"
	authUC "github.com/fastygo/taskledger/usecase/auth"
	profileUC "github.com/fastygo/taskledger/usecase/profile"
	taskUC "github.com/fastygo/taskledger/usecase/task"
)

type response struct {
	Status string              `json:"status"`
	Code   string              `json:"code"`
	Data   json.RawMessage     `json:"data"`
	Error  transport.ErrorBody `json:"error"`
}

type handlers struct {
	task    *TaskHandler
	profile *ProfileHandler
	auth    *authUC.UseCase
}

func newHandlers(t *testing.T) handlers {
	t.Helper()
	store := memory.New()
	tasks, err := taskUC.New(store, nil, nil, taskUC.Options{})
	if err != nil {
		t.Fatalf("task usecase: %v", err)
	}
	auth := authUC.New(store, nil, authUC.Options{BcryptCost: bcrypt.MinCost})
	adapter := httpcontext.NewAdapter(time.Second)
	return handlers{
		task:    NewTaskHandler(tasks, auth, adapter, nil),
		profile: NewProfileHandler(profileUC.New(store, nil), adapter, nil),
		auth:    auth,
	}
}

func request(method, body string, caller domain.Identity, params map[string]string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	if caller != domain.NoIdentity {
		httpcontext.SetCaller(ctx, caller)
	}
	for k, v := range params {
		ctx.SetUserValue(k, v)
	}
	return ctx
}

func decode(t *testing.T, ctx *fasthttp.RequestCtx, wantStatus int) response {
	t.Helper()
	if got := ctx.Response.StatusCode(); got != wantStatus {
		t.Fatalf("expected status %d, got %d: %s", wantStatus, got, ctx.Response.Body())
	}
	var out response
	if err := json.Unmarshal(ctx.Response.Body(), &out); err != nil {
		t.Fatalf("decode body %q: %v", ctx.Response.Body(), err)
	}
	return out
}

func TestUnauthenticatedRequestIsRejected(t *testing.T) {
	h := newHandlers(t)
	ctx := request(http.MethodPost, `{"title":"t","reward_points":5}`, domain.NoIdentity, nil)
	h.task.CreateTask(ctx)

	out := decode(t, ctx, http.StatusUnauthorized)
	if out.Code != string(domain.ErrCodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED, got %q", out.Code)
	}
}

func TestCreateTaskRejectsNonPositiveReward(t *testing.T) {
	h := newHandlers(t)
	for _, body := range []string{`{"title":"t","reward_points":0}`, `{"title":"t","reward_points":-3}`} {
		ctx := request(http.MethodPost, body, "alice", nil)
		h.task.CreateTask(ctx)
		out := decode(t, ctx, http.StatusBadRequest)
		if out.Error.Abort != 0 {
			t.Fatalf("expected abort 0, got %d", out.Error.Abort)
		}
	}
}

func TestCreateAndReadTask(t *testing.T) {
	h := newHandlers(t)
	ctx := request(http.MethodPost, `{"title":"docs","description":"write","reward_points":40}`, "alice", nil)
	h.task.CreateTask(ctx)

	var created transport.OperationResponse
	if err := json.Unmarshal(decode(t, ctx, http.StatusCreated).Data, &created); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if created.Task == nil || created.Task.ID != 0 || created.Task.Status != 0 || created.Task.Assignee != "" {
		t.Fatalf("unexpected task %+v", created.Task)
	}
	if len(created.Events) != 1 || created.Events[0].Name != domain.EventTaskCreated {
		t.Fatalf("unexpected events %+v", created.Events)
	}

	ctx = request(http.MethodGet, "", "bob", map[string]string{"id": "0"})
	h.task.GetTask(ctx)
	var view transport.TaskView
	if err := json.Unmarshal(decode(t, ctx, http.StatusOK).Data, &view); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if view.Title != "docs" || view.RewardPoints != 40 || !view.Available || view.StatusName != "pending" {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestUnknownTaskIDs(t *testing.T) {
	h := newHandlers(t)
	for _, id := range []string{"7", "not-a-number", "-1"} {
		ctx := request(http.MethodGet, "", "alice", map[string]string{"id": id})
		h.task.IsAvailable(ctx)
		out := decode(t, ctx, http.StatusNotFound)
		if out.Error.Abort != domain.AbortCode(domain.ErrTaskNotFound) {
			t.Fatalf("id %q: expected abort 1, got %d", id, out.Error.Abort)
		}
	}
}

func TestAssignByNonCreatorIsForbidden(t *testing.T) {
	h := newHandlers(t)
	h.task.CreateTask(request(http.MethodPost, `{"title":"t","reward_points":5}`, "alice", nil))

	ctx := request(http.MethodPost, `{"assignee":"bob"}`, "bob", map[string]string{"id": "0"})
	h.task.AssignTask(ctx)
	out := decode(t, ctx, http.StatusForbidden)
	if out.Error.Abort != 4 {
		t.Fatalf("expected abort 4, got %d", out.Error.Abort)
	}

	ctx = request(http.MethodPost, `{}`, "alice", map[string]string{"id": "0"})
	h.task.AssignTask(ctx)
	decode(t, ctx, http.StatusBadRequest)
}

func TestCancelRequiresCapabilityHeader(t *testing.T) {
	h := newHandlers(t)
	h.task.CreateTask(request(http.MethodPost, `{"title":"t","reward_points":5}`, "alice", nil))
	secret, _, err := h.auth.Bootstrap(t.Context(), "root")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	ctx := request(http.MethodPost, "", "alice", map[string]string{"id": "0"})
	h.task.CancelTask(ctx)
	decode(t, ctx, http.StatusUnauthorized)

	ctx = request(http.MethodPost, "", "alice", map[string]string{"id": "0"})
	ctx.Request.Header.Set(AdminCapabilityHeader, "forged")
	h.task.CancelTask(ctx)
	decode(t, ctx, http.StatusUnauthorized)

	ctx = request(http.MethodPost, "", "root", map[string]string{"id": "0"})
	ctx.Request.Header.Set(AdminCapabilityHeader, secret)
	h.task.CancelTask(ctx)
	var res transport.OperationResponse
	if err := json.Unmarshal(decode(t, ctx, http.StatusOK).Data, &res); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if res.Task.Status != uint8(domain.StatusCancelled) {
		t.Fatalf("expected status 2, got %d", res.Task.Status)
	}

	ctx = request(http.MethodPost, "", "root", map[string]string{"id": "0"})
	ctx.Request.Header.Set(AdminCapabilityHeader, secret)
	h.task.CancelTask(ctx)
	out := decode(t, ctx, http.StatusConflict)
	if out.Error.Abort != 2 {
		t.Fatalf("expected abort 2, got %d", out.Error.Abort)
	}
}

func TestCompleteWithForeignProfile(t *testing.T) {
	h := newHandlers(t)
	ctx := request(http.MethodPost, "", "alice", nil)
	h.profile.CreateProfile(ctx)
	var profile domain.UserProgress
	if err := json.Unmarshal(decode(t, ctx, http.StatusCreated).Data, &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}

	ctx = request(http.MethodPost, `{"profile_id":"`+profile.ID+`"}`, "bob", map[string]string{"id": "0"})
	h.task.CompleteTask(ctx)
	out := decode(t, ctx, http.StatusForbidden)
	if out.Error.Abort != 6 {
		t.Fatalf("expected abort 6, got %d", out.Error.Abort)
	}
}

type fixedStatus monitor.Status

func (s fixedStatus) GetStatus() monitor.Status { return monitor.Status(s) }

type fixedBacklog int

func (b fixedBacklog) Backlog() int { return int(b) }

func TestHealthCheck(t *testing.T) {
	up := NewHealthHandler(fixedStatus{Storage: true, Sinks: map[string]bool{"log": true}}, fixedBacklog(3), nil, nil)
	ctx := request(http.MethodGet, "", domain.NoIdentity, nil)
	up.Check(ctx)
	out := decode(t, ctx, http.StatusOK)

	var payload struct {
		Services struct {
			Outbox struct {
				Pending int `json:"pending"`
			} `json:"outbox"`
		} `json:"services"`
	}
	if err := json.Unmarshal(out.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Services.Outbox.Pending != 3 {
		t.Fatalf("expected backlog 3, got %d", payload.Services.Outbox.Pending)
	}

	down := NewHealthHandler(fixedStatus{Storage: false}, nil, nil, nil)
	ctx = request(http.MethodGet, "", domain.NoIdentity, nil)
	down.Check(ctx)
	if out := decode(t, ctx, http.StatusServiceUnavailable); out.Code != "DEGRADED" {
		t.Fatalf("expected DEGRADED, got %q", out.Code)
	}
}

func TestListTasksWithNegativeOffset(t *testing.T) {
	h := newHandlers(t)
	for i := 0; i < 2; i++ {
		ctx := request(http.MethodPost, `{"title":"t","description":"d","reward_points":10}`, "alice", nil)
		h.task.CreateTask(ctx)
		decode(t, ctx, http.StatusCreated)
	}

	ctx := request(http.MethodGet, "", "alice", nil)
	ctx.Request.SetRequestURI("/api/v1/tasks?offset=-1")
	h.task.GetTasks(ctx)
	var views []transport.TaskView
	if err := json.Unmarshal(decode(t, ctx, http.StatusOK).Data, &views); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(views) != 2 || views[0].ID != 0 {
		t.Fatalf("expected the first page, got %+v", views)
	}
}
