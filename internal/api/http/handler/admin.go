package handler

import (
	"net/http"

	"github.com/EternisAI/botping/internal/api/http/dto"
	"github.com/EternisAI/botping/internal/probe"
	"github.com/gin-gonic/gin"
)

// ProbeLister exposes the current probe records.
type ProbeLister interface {
	Snapshot() []probe.Record
}

type AdminHandler struct {
	probes ProbeLister
}

func NewAdminHandler(probes ProbeLister) *AdminHandler {
	return &AdminHandler{
		probes: probes,
	}
}

func (h *AdminHandler) ListProbes(ctx *gin.Context) {
	records := h.probes.Snapshot()

	probes := make([]dto.ProbeInfo, 0, len(records))
	for _, r := range records {
		info := dto.ProbeInfo{
			ProbeID:  r.ProbeID,
			AgentID:  r.AgentID,
			SentAt:   r.SentAt,
			Resolved: r.Resolved,
		}
		if r.Resolved {
			resolvedAt := r.ResolvedAt
			info.ResolvedAt = &resolvedAt
		}
		probes = append(probes, info)
	}

	ctx.JSON(http.StatusOK, dto.ProbesResponse{
		Probes: probes,
		Count:  len(probes),
	})
}
