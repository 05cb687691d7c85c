package router

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	apiHandler "github.com/fastygo/taskledger/api/handler"
	"github.com/fastygo/taskledger/api/transport"
	"github.com/fastygo/taskledger/domain"
	"github.com/fastygo/taskledger/internal/infrastructure/monitor"
	"github.com/fastygo/taskledger/internal/middleware"
	"github.com/fastygo/taskledger/pkg/httpcontext"
	"github.com/fastygo/taskledger/repository/memory"
	authUC "github.com/fastygo/taskledger/usecase/auth"
	profileUC "github.com/fastygo/taskledger/usecase/profile"
	taskUC "github.com/fastygo/taskledger/usecase/task"
)

const jwtSecret = "router-test"

type server struct {
	handler fasthttp.RequestHandler
	secret  string
}

func newServer(t *testing.T) server {
	t.Helper()
	store := memory.New()
	tasks, err := taskUC.New(store, nil, nil, taskUC.Options{CacheMaxCost: 1 << 16})
	if err != nil {
		t.Fatalf("task usecase: %v", err)
	}
	t.Cleanup(tasks.Close)
	auth := authUC.New(store, nil, authUC.Options{BcryptCost: bcrypt.MinCost})
	secret, _, err := auth.Bootstrap(t.Context(), "root")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	mon := monitor.New(store, nil, time.Hour, nil)
	mon.Refresh()

	adapter := httpcontext.NewAdapter(time.Second)
	r := New(Handlers{
		Profile: apiHandler.NewProfileHandler(profileUC.New(store, nil), adapter, nil),
		Task:    apiHandler.NewTaskHandler(tasks, auth, adapter, nil),
		Health:  apiHandler.NewHealthHandler(mon, nil, adapter, nil),
	}, middleware.JWTAuth(jwtSecret, "", nil))
	return server{handler: r.Handler, secret: secret}
}

type envelope struct {
	Status string              `json:"status"`
	Data   json.RawMessage     `json:"data"`
	Error  transport.ErrorBody `json:"error"`
}

func (s server) do(t *testing.T, method, path string, caller domain.Identity, body string, headers ...string) (int, envelope) {
	t.Helper()
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if caller != domain.NoIdentity {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": string(caller)}).SignedString([]byte(jwtSecret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		ctx.Request.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		ctx.Request.Header.Set(headers[i], headers[i+1])
	}
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	s.handler(ctx)

	var out envelope
	if len(ctx.Response.Body()) > 0 {
		if err := json.Unmarshal(ctx.Response.Body(), &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, ctx.Response.Body(), err)
		}
	}
	return ctx.Response.StatusCode(), out
}

func (s server) expect(t *testing.T, want int, method, path string, caller domain.Identity, body string, headers ...string) envelope {
	t.Helper()
	status, out := s.do(t, method, path, caller, body, headers...)
	if status != want {
		t.Fatalf("%s %s: expected %d, got %d (%+v)", method, path, want, status, out.Error)
	}
	return out
}

func TestLedgerOverHTTP(t *testing.T) {
	s := newServer(t)

	s.expect(t, http.StatusOK, http.MethodGet, "/health", domain.NoIdentity, "")
	s.expect(t, http.StatusUnauthorized, http.MethodGet, "/api/v1/tasks", domain.NoIdentity, "")

	s.expect(t, http.StatusCreated, http.MethodPost, "/api/v1/tasks", "alice", `{"title":"a","reward_points":50}`)
	s.expect(t, http.StatusCreated, http.MethodPost, "/api/v1/tasks", "alice", `{"title":"b","reward_points":50}`)

	var count transport.CountResponse
	_ = json.Unmarshal(s.expect(t, http.StatusOK, http.MethodGet, "/api/v1/tasks/count", "bob", "").Data, &count)
	if count.Count != 2 {
		t.Fatalf("expected count 2, got %d", count.Count)
	}

	var profile domain.UserProgress
	_ = json.Unmarshal(s.expect(t, http.StatusCreated, http.MethodPost, "/api/v1/profiles", "bob", "").Data, &profile)

	for _, id := range []string{"0", "1"} {
		s.expect(t, http.StatusOK, http.MethodPost, "/api/v1/tasks/"+id+"/assign", "alice", `{"assignee":"bob"}`)
	}

	var avail transport.AvailabilityResponse
	_ = json.Unmarshal(s.expect(t, http.StatusOK, http.MethodGet, "/api/v1/tasks/0/available", "bob", "").Data, &avail)
	if avail.Available {
		t.Fatalf("expected assigned task unavailable")
	}

	completeBody := `{"profile_id":"` + profile.ID + `"}`
	var first, second transport.OperationResponse
	_ = json.Unmarshal(s.expect(t, http.StatusOK, http.MethodPost, "/api/v1/tasks/0/complete", "bob", completeBody).Data, &first)
	_ = json.Unmarshal(s.expect(t, http.StatusOK, http.MethodPost, "/api/v1/tasks/1/complete", "bob", completeBody).Data, &second)
	if len(first.Events) != 1 || len(second.Events) != 2 {
		t.Fatalf("expected level up only on second completion, got %d and %d events", len(first.Events), len(second.Events))
	}
	if second.Progress.Level != 1 || second.Progress.PointsEarned != 100 {
		t.Fatalf("unexpected progress %+v", *second.Progress)
	}

	out := s.expect(t, http.StatusConflict, http.MethodPost, "/api/v1/tasks/0/complete", "bob", completeBody)
	if out.Error.Abort != 2 {
		t.Fatalf("expected abort 2, got %d", out.Error.Abort)
	}

	s.expect(t, http.StatusCreated, http.MethodPost, "/api/v1/tasks", "alice", `{"title":"c","reward_points":10}`)
	s.expect(t, http.StatusUnauthorized, http.MethodPost, "/api/v1/tasks/2/cancel", "alice", "")
	s.expect(t, http.StatusOK, http.MethodPost, "/api/v1/tasks/2/cancel", "root", "", apiHandler.AdminCapabilityHeader, s.secret)

	var tasks []transport.TaskView
	_ = json.Unmarshal(s.expect(t, http.StatusOK, http.MethodGet, "/api/v1/tasks?status=completed", "bob", "").Data, &tasks)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 completed tasks, got %d", len(tasks))
	}

	var events []domain.Event
	_ = json.Unmarshal(s.expect(t, http.StatusOK, http.MethodGet, "/api/v1/events?name=UserLeveledUp", "bob", "").Data, &events)
	if len(events) != 1 {
		t.Fatalf("expected one level up event, got %d", len(events))
	}

	var all []domain.Event
	_ = json.Unmarshal(s.expect(t, http.StatusOK, http.MethodGet, "/api/v1/events?after=0&limit=100", "bob", "").Data, &all)
	names := make([]string, len(all))
	for i, e := range all {
		names[i] = e.Name
	}
	want := "TaskCreated,TaskCreated,TaskAssigned,TaskAssigned,TaskCompleted,TaskCompleted,UserLeveledUp,TaskCreated,TaskCancelled"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("unexpected event log\nwant %s\ngot  %s", want, got)
	}

	var profiles []domain.UserProgress
	_ = json.Unmarshal(s.expect(t, http.StatusOK, http.MethodGet, "/api/v1/profiles", "bob", "").Data, &profiles)
	if len(profiles) != 1 || profiles[0].TasksCompleted != 2 {
		t.Fatalf("unexpected profiles %+v", profiles)
	}
	s.expect(t, http.StatusNotFound, http.MethodGet, "/api/v1/profiles/missing", "bob", "")
	s.expect(t, http.StatusNotFound, http.MethodGet, "/api/v1/tasks/9", "bob", "")
}

func TestEventCursorPastEnd(t *testing.T) {
	s := newServer(t)
	s.expect(t, http.StatusCreated, http.MethodPost, "/api/v1/tasks", "alice", `{"title":"t","description":"d","reward_points":5}`)

	for _, after := range []string{"1", "18446744073709551615"} {
		var events []domain.Event
		_ = json.Unmarshal(s.expect(t, http.StatusOK, http.MethodGet, "/api/v1/events?after="+after, "alice", "").Data, &events)
		if len(events) != 0 {
			t.Fatalf("expected no events after %s, got %d", after, len(events))
		}
	}
}

func TestPanicAnswersInternalError(t *testing.T) {
	r := New(Handlers{}, func(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next })
	r.GET("/boom", func(*fasthttp.RequestCtx) { panic("boom") })

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(http.MethodGet)
	ctx.Request.SetRequestURI("/boom")
	r.Handler(ctx)

	if ctx.Response.StatusCode() != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", ctx.Response.StatusCode())
	}
	var env envelope
	if err := json.Unmarshal(ctx.Response.Body(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Status != "error" || env.Error.Abort != -1 {
		t.Fatalf("unexpected body %+v", env)
	}
}
