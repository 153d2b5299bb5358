package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/EternisAI/botping/internal/api/http/dto"
	"github.com/EternisAI/botping/internal/probe"
	"github.com/gin-gonic/gin"
)

const (
	msgAlive       = "Alive"
	msgNoReply     = "No response from the bot"
	msgUnknownBot  = "Is not authorized to check the status of this bot"
	msgUnreachable = "Can't send to the bot"
	msgNotFound    = "Not Found"
	handlePrefix   = "@"
)

// LivenessChecker runs a single liveness query.
type LivenessChecker interface {
	Check(ctx context.Context, handle string) probe.Result
}

type PingHandler struct {
	checker LivenessChecker
}

func NewPingHandler(checker LivenessChecker) *PingHandler {
	return &PingHandler{checker: checker}
}

// Ping handles GET /ping/@<handle>.
func (h *PingHandler) Ping(ctx *gin.Context) {
	handle, ok := handleParam(ctx)
	if !ok {
		NotFound(ctx)
		return
	}

	result := h.checker.Check(ctx.Request.Context(), handle)
	status, message := outcomeResponse(result.Outcome)
	ctx.JSON(status, dto.Message(message, status))
}

func outcomeResponse(outcome probe.Outcome) (int, string) {
	switch outcome {
	case probe.OutcomeAlive:
		return http.StatusOK, msgAlive
	case probe.OutcomeNoReply:
		return http.StatusNotFound, msgNoReply
	case probe.OutcomeUnknownTarget:
		return http.StatusBadRequest, msgUnknownBot
	default:
		return http.StatusInternalServerError, msgUnreachable
	}
}

// handleParam returns the :handle path parameter, which must be "@" followed
// by a name.
func handleParam(ctx *gin.Context) (string, bool) {
	handle := ctx.Param("handle")
	if !strings.HasPrefix(handle, handlePrefix) || len(handle) == len(handlePrefix) {
		return "", false
	}
	return handle, true
}

func NotFound(ctx *gin.Context) {
	ctx.JSON(http.StatusNotFound, dto.Message(msgNotFound, http.StatusNotFound))
}
