package dto

import "github.com/EternisAI/botping/internal/history"

type HistoryResponse struct {
	Message string          `json:"message"`
	Status  bool            `json:"status"`
	Handle  string          `json:"handle"`
	Checks  []history.Check `json:"checks"`
}
