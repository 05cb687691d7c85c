package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/taskledger/domain"
	appLogger "github.com/fastygo/taskledger/pkg/logger"
)

// Key represents a context value key exported for reuse.
type Key string

const (
	KeyRemoteAddr Key = "remote_addr"
	KeyUserAgent  Key = "user_agent"
)

// CallerUserValue is the fasthttp user value holding the verified caller identity.
const CallerUserValue = "ledger.caller"

// Adapter converts fasthttp.RequestCtx into a stdlib context with deadlines and metadata.
type Adapter struct {
	timeout time.Duration
}

// NewAdapter constructs a new Adapter using the provided timeout.
func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{
		timeout: timeout,
	}
}

// Attach creates a context with timeout derived from the adapter and enriches
// it with the request id and, when authenticated, the caller identity.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	reqID := getRequestID(ctx)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)
	ctx.Response.Header.Set("X-Request-ID", reqID)

	if caller, ok := Caller(ctx); ok {
		stdCtx = appLogger.ContextWithCaller(stdCtx, caller)
	}
	if remoteAddr := ctx.RemoteAddr(); remoteAddr != nil {
		stdCtx = context.WithValue(stdCtx, KeyRemoteAddr, remoteAddr.String())
	}
	if ua := string(ctx.Request.Header.UserAgent()); ua != "" {
		stdCtx = context.WithValue(stdCtx, KeyUserAgent, ua)
	}

	return stdCtx, cancel
}

// SetCaller records the verified identity on the request.
func SetCaller(ctx *fasthttp.RequestCtx, caller domain.Identity) {
	ctx.SetUserValue(CallerUserValue, caller)
}

// Caller returns the identity recorded by SetCaller.
func Caller(ctx *fasthttp.RequestCtx) (domain.Identity, bool) {
	if ctx == nil {
		return domain.NoIdentity, false
	}
	caller, ok := ctx.UserValue(CallerUserValue).(domain.Identity)
	return caller, ok && caller != domain.NoIdentity
}

func getRequestID(ctx *fasthttp.RequestCtx) string {
	if ctx == nil {
		return uuid.NewString()
	}
	if header := string(ctx.Request.Header.Peek("X-Request-ID")); strings.TrimSpace(header) != "" {
		return header
	}
	return uuid.NewString()
}
