package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskledger/api/transport"
	"github.com/fastygo/taskledger/domain"
	"github.com/fastygo/taskledger/pkg/httpcontext"
	"github.com/fastygo/taskledger/repository"
	authUC "github.com/fastygo/taskledger/usecase/auth"
	taskUC "github.com/fastygo/taskledger/usecase/task"
)

// AdminCapabilityHeader carries the admin capability secret on cancel requests.
const AdminCapabilityHeader = "X-Admin-Capability"

type TaskHandler struct {
	baseHandler
	uc   *taskUC.UseCase
	auth *authUC.UseCase
}

func NewTaskHandler(uc *taskUC.UseCase, auth *authUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		auth:        auth,
	}
}

// @Summary List tasks
// @Tags tasks
// @Router /api/v1/tasks [get]
func (h *TaskHandler) GetTasks(ctx *fasthttp.RequestCtx) {
	if _, ok := h.caller(ctx); !ok {
		return
	}

	args := ctx.QueryArgs()
	filter := repository.TaskFilter{
		Creator:  domain.Identity(args.Peek("creator")),
		Assignee: domain.Identity(args.Peek("assignee")),
		Limit:    parseInt(string(args.Peek("limit")), 50),
		Offset:   repository.ClampOffset(parseInt(string(args.Peek("offset")), 0)),
	}
	if raw := string(args.Peek("status")); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		filter.Status = &status
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.ListTasks(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.NewTaskViews(tasks))
}

// @Summary Count tasks ever created
// @Tags tasks
// @Router /api/v1/tasks/count [get]
func (h *TaskHandler) CountTasks(ctx *fasthttp.RequestCtx) {
	if _, ok := h.caller(ctx); !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	count, err := h.uc.Count(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.CountResponse{Count: count})
}

// @Summary Get task
// @Tags tasks
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) GetTask(ctx *fasthttp.RequestCtx) {
	if _, ok := h.caller(ctx); !ok {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.GetTask(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.NewTaskView(task))
}

// @Summary Is the task pending and unassigned
// @Tags tasks
// @Router /api/v1/tasks/{id}/available [get]
func (h *TaskHandler) IsAvailable(ctx *fasthttp.RequestCtx) {
	if _, ok := h.caller(ctx); !ok {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	available, err := h.uc.IsAvailable(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.AvailabilityResponse{ID: id, Available: available})
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	caller, ok := h.caller(ctx)
	if !ok {
		return
	}

	var req transport.CreateTaskRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.badRequest(ctx, "invalid payload")
		return
	}
	if req.RewardPoints <= 0 {
		h.respondError(ctx, domain.ErrInvalidRewardPoints)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := h.uc.CreateTask(stdCtx, caller, taskUC.NewTaskInput{
		Title:        req.Title,
		Description:  req.Description,
		RewardPoints: uint64(req.RewardPoints),
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondResult(ctx, http.StatusCreated, res)
}

// @Summary Assign task
// @Tags tasks
// @Router /api/v1/tasks/{id}/assign [post]
func (h *TaskHandler) AssignTask(ctx *fasthttp.RequestCtx) {
	caller, ok := h.caller(ctx)
	if !ok {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	var req transport.AssignTaskRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Assignee == "" {
		h.badRequest(ctx, "assignee is required")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := h.uc.AssignTask(stdCtx, caller, id, domain.Identity(req.Assignee))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondResult(ctx, http.StatusOK, res)
}

// @Summary Complete task
// @Tags tasks
// @Router /api/v1/tasks/{id}/complete [post]
func (h *TaskHandler) CompleteTask(ctx *fasthttp.RequestCtx) {
	caller, ok := h.caller(ctx)
	if !ok {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	var req transport.CompleteTaskRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.ProfileID == "" {
		h.badRequest(ctx, "profile_id is required")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := h.uc.CompleteTask(stdCtx, caller, id, req.ProfileID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondResult(ctx, http.StatusOK, res)
}

// @Summary Cancel task (admin capability)
// @Tags tasks
// @Router /api/v1/tasks/{id}/cancel [post]
func (h *TaskHandler) CancelTask(ctx *fasthttp.RequestCtx) {
	caller, ok := h.caller(ctx)
	if !ok {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	capability, err := h.auth.Authorize(stdCtx, string(ctx.Request.Header.Peek(AdminCapabilityHeader)))
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	res, err := h.uc.CancelTask(stdCtx, capability, caller, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondResult(ctx, http.StatusOK, res)
}

// @Summary Read the event log
// @Tags events
// @Router /api/v1/events [get]
func (h *TaskHandler) GetEvents(ctx *fasthttp.RequestCtx) {
	if _, ok := h.caller(ctx); !ok {
		return
	}

	args := ctx.QueryArgs()
	filter := repository.EventFilter{
		Name:        string(args.Peek("name")),
		AggregateID: string(args.Peek("aggregate_id")),
		Limit:       parseInt(string(args.Peek("limit")), 100),
	}
	if raw := string(args.Peek("after")); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.badRequest(ctx, "invalid after")
			return
		}
		filter.AfterSeq = after
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	events, err := h.uc.ListEvents(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	h.respondSuccess(ctx, http.StatusOK, events)
}

func (h *TaskHandler) respondResult(ctx *fasthttp.RequestCtx, status int, res *taskUC.Result) {
	out := transport.OperationResponse{Progress: res.Progress, Events: res.Events}
	if res.Task != nil {
		view := transport.NewTaskView(res.Task)
		out.Task = &view
	}
	h.respondSuccess(ctx, status, out)
}

// taskID parses the {id} route parameter. Malformed ids cannot name a task.
func (h *TaskHandler) taskID(ctx *fasthttp.RequestCtx) (uint64, bool) {
	raw, _ := ctx.UserValue("id").(string)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		h.respondError(ctx, domain.ErrTaskNotFound)
		return 0, false
	}
	return id, true
}
