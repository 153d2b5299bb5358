package dto

import "time"

type ProbeInfo struct {
	ProbeID    string     `json:"probe_id"`
	AgentID    int64      `json:"agent_id"`
	SentAt     time.Time  `json:"sent_at"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

type ProbesResponse struct {
	Probes []ProbeInfo `json:"probes"`
	Count  int         `json:"count"`
}
