package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskledger/domain"
	"github.com/fastygo/taskledger/pkg/httpcontext"
	profileUC "github.com/fastygo/taskledger/usecase/profile"
)

type ProfileHandler struct {
	baseHandler
	uc *profileUC.UseCase
}

func NewProfileHandler(uc *profileUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Create a progress record for the caller
// @Tags profiles
// @Router /api/v1/profiles [post]
func (h *ProfileHandler) CreateProfile(ctx *fasthttp.RequestCtx) {
	caller, ok := h.caller(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	progress, err := h.uc.CreateProfile(stdCtx, caller)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, progress)
}

// @Summary List the caller's progress records
// @Tags profiles
// @Router /api/v1/profiles [get]
func (h *ProfileHandler) ListProfiles(ctx *fasthttp.RequestCtx) {
	caller, ok := h.caller(ctx)
	if !ok {
		return
	}

	owner := caller
	if raw := string(ctx.QueryArgs().Peek("owner")); raw != "" {
		owner = domain.Identity(raw)
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	profiles, err := h.uc.ListProfiles(stdCtx, owner)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if profiles == nil {
		profiles = []domain.UserProgress{}
	}
	h.respondSuccess(ctx, http.StatusOK, profiles)
}

// @Summary Get profile
// @Tags profiles
// @Success 200 {object} transport.Envelope
// @Router /api/v1/profiles/{id} [get]
func (h *ProfileHandler) GetProfile(ctx *fasthttp.RequestCtx) {
	if _, ok := h.caller(ctx); !ok {
		return
	}
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondError(ctx, domain.ErrProfileNotFound)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	progress, err := h.uc.GetProfile(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, progress)
}
