package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskledger/api/handler"
	"github.com/fastygo/taskledger/api/transport"
	"github.com/fastygo/taskledger/domain"
)

type Handlers struct {
	Profile *apiHandler.ProfileHandler
	Task    *apiHandler.TaskHandler
	Health  *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()
	r.PanicHandler = recovered

	r.GET("/health", handlers.Health.Check)

	// Protected routes
	r.GET("/api/v1/tasks", authMiddleware(handlers.Task.GetTasks))
	r.POST("/api/v1/tasks", authMiddleware(handlers.Task.CreateTask))
	r.GET("/api/v1/tasks/count", authMiddleware(handlers.Task.CountTasks))
	r.GET("/api/v1/tasks/{id}", authMiddleware(handlers.Task.GetTask))
	r.GET("/api/v1/tasks/{id}/available", authMiddleware(handlers.Task.IsAvailable))
	r.POST("/api/v1/tasks/{id}/assign", authMiddleware(handlers.Task.AssignTask))
	r.POST("/api/v1/tasks/{id}/complete", authMiddleware(handlers.Task.CompleteTask))
	r.POST("/api/v1/tasks/{id}/cancel", authMiddleware(handlers.Task.CancelTask))

	r.GET("/api/v1/profiles", authMiddleware(handlers.Profile.ListProfiles))
	r.POST("/api/v1/profiles", authMiddleware(handlers.Profile.CreateProfile))
	r.GET("/api/v1/profiles/{id}", authMiddleware(handlers.Profile.GetProfile))

	r.GET("/api/v1/events", authMiddleware(handlers.Task.GetEvents))

	return r
}

// recovered answers 500 instead of letting a handler panic take the process down.
func recovered(ctx *fasthttp.RequestCtx, _ interface{}) {
	ctx.ResetBody()
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	ctx.SetBodyString(transport.NewError(string(domain.ErrCodeInternal), transport.ErrorBody{
		Message: "internal error",
		Abort:   -1,
	}, nil).String())
}
