package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskledger/api/transport"
	"github.com/fastygo/taskledger/internal/infrastructure/monitor"
	"github.com/fastygo/taskledger/pkg/httpcontext"
)

// StatusSource is implemented by *monitor.Monitor.
type StatusSource interface {
	GetStatus() monitor.Status
}

// OutboxGauge reports how many events still wait for delivery.
type OutboxGauge interface {
	Backlog() int
}

type HealthHandler struct {
	baseHandler
	monitor StatusSource
	outbox  OutboxGauge
}

func NewHealthHandler(mon StatusSource, outbox OutboxGauge, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
		outbox:      outbox,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	backlog := 0
	if h.outbox != nil {
		backlog = h.outbox.Backlog()
	}
	payload := map[string]interface{}{
		"timestamp":  time.Now().UTC(),
		"last_check": status.LastCheck,
		"services": map[string]interface{}{
			"storage": status.Storage,
			"sinks":   status.Sinks,
			"outbox": map[string]interface{}{
				"pending": backlog,
			},
		},
	}

	if status.Storage {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", transport.ErrorBody{Message: "dependencies unhealthy", Abort: -1}, payload))
}
