package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/EternisAI/botping/internal/api/http/dto"
	"github.com/EternisAI/botping/internal/history"
	"github.com/EternisAI/botping/internal/probe"
	"github.com/gin-gonic/gin"
)

type HistoryLister interface {
	List(ctx context.Context, handle string, limit int) ([]history.Check, error)
}

// TargetPolicy reports whether a handle may be queried.
type TargetPolicy interface {
	Allowed(handle string) bool
}

type HistoryHandler struct {
	store  HistoryLister
	policy TargetPolicy
}

func NewHistoryHandler(store HistoryLister, policy TargetPolicy) *HistoryHandler {
	return &HistoryHandler{store: store, policy: policy}
}

// List handles GET /history/@<handle>?limit=N.
func (h *HistoryHandler) List(ctx *gin.Context) {
	handle, ok := handleParam(ctx)
	if !ok {
		NotFound(ctx)
		return
	}

	if !h.policy.Allowed(handle) {
		ctx.JSON(http.StatusBadRequest, dto.Message(msgUnknownBot, http.StatusBadRequest))
		return
	}

	limit := history.DefaultLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			ctx.JSON(http.StatusBadRequest, dto.Message("Invalid limit", http.StatusBadRequest))
			return
		}
		limit = n
	}

	checks, err := h.store.List(ctx.Request.Context(), handle, limit)
	if err != nil {
		slog.Error("Failed to list check history", "handle", handle, "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.Message("Server Error", http.StatusInternalServerError))
		return
	}
	if checks == nil {
		checks = []history.Check{}
	}

	ctx.JSON(http.StatusOK, dto.HistoryResponse{
		Message: "ok",
		Status:  true,
		Handle:  probe.NormalizeHandle(handle),
		Checks:  checks,
	})
}
