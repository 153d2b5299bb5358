package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/EternisAI/botping/internal/api/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory(t *testing.T, router *gin.Engine, token string) {
	auth := map[string]string{"Authorization": token}

	rr := doGet(router, "/ping/@echobot", auth)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = doGet(router, "/ping/@silentbot", auth)
	require.Equal(t, http.StatusNotFound, rr.Code)

	// Checks are recorded asynchronously.
	var resp dto.HistoryResponse
	require.Eventually(t, func() bool {
		rr := doGet(router, "/history/@echobot", auth)
		if rr.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			return false
		}
		return len(resp.Checks) > 0
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, "echobot", resp.Handle)
	assert.Equal(t, "alive", resp.Checks[0].Outcome)

	require.Eventually(t, func() bool {
		rr := doGet(router, "/history/@silentbot?limit=1", auth)
		var r dto.HistoryResponse
		if rr.Code != http.StatusOK || json.Unmarshal(rr.Body.Bytes(), &r) != nil {
			return false
		}
		return len(r.Checks) == 1 && r.Checks[0].Outcome == "no_reply"
	}, 5*time.Second, 50*time.Millisecond)

	rr = doGet(router, "/history/@unknownbot", auth)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doGet(router, "/history/@echobot", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
