package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/EternisAI/botping/internal/api/http/dto"
	"github.com/EternisAI/botping/systemtest/fakenet"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T, router *gin.Engine) {
	rr := doGet(router, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, dto.MessageResponse{Message: "ok", Status: true}, decodeMessage(t, rr))
}

func TestPing(t *testing.T, router *gin.Engine, agents *fakenet.Network, token string) {
	auth := map[string]string{"Authorization": token}

	t.Run("alive", func(t *testing.T) {
		rr := doGet(router, "/ping/@EchoBot", auth)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, dto.MessageResponse{Message: "Alive", Status: true}, decodeMessage(t, rr))
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	})

	t.Run("no reply", func(t *testing.T) {
		rr := doGet(router, "/ping/@silentbot", auth)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "No response from the bot", decodeMessage(t, rr).Message)
	})

	t.Run("unknown target sends nothing", func(t *testing.T) {
		rr := doGet(router, "/ping/@unknownbot", auth)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Is not authorized to check the status of this bot", decodeMessage(t, rr).Message)
		assert.Zero(t, agents.Sends("@unknownbot"))
	})

	t.Run("unresolvable", func(t *testing.T) {
		rr := doGet(router, "/ping/@ghostbot", auth)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "Can't send to the bot", decodeMessage(t, rr).Message)
	})

	t.Run("delivery failure", func(t *testing.T) {
		rr := doGet(router, "/ping/@brokenbot", auth)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, 1, agents.Sends("@brokenbot"))
	})

	t.Run("missing token", func(t *testing.T) {
		rr := doGet(router, "/ping/@echobot", nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "Missing `Authorization` header", decodeMessage(t, rr).Message)
	})

	t.Run("wrong token", func(t *testing.T) {
		rr := doGet(router, "/ping/@echobot", map[string]string{"Authorization": "not-the-token"})
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "Unauthorized", decodeMessage(t, rr).Message)
	})

	t.Run("malformed token", func(t *testing.T) {
		rr := doGet(router, "/ping/@echobot", map[string]string{"Authorization": "bad token"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid token value", decodeMessage(t, rr).Message)
	})

	t.Run("unmatched route", func(t *testing.T) {
		rr := doGet(router, "/nowhere", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, dto.MessageResponse{Message: "Not Found"}, decodeMessage(t, rr))
	})
}

func TestAdminProbes(t *testing.T, router *gin.Engine, apiKey string) {
	rr := doGet(router, "/admin/probes", map[string]string{"X-API-Key": apiKey})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp dto.ProbesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, resp.Count, len(resp.Probes))

	resolved := 0
	for _, p := range resp.Probes {
		if p.Resolved {
			resolved++
			assert.NotNil(t, p.ResolvedAt)
		}
	}
	assert.GreaterOrEqual(t, resolved, 1)

	rr = doGet(router, "/admin/probes", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func doGet(router *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeMessage(t *testing.T, rr *httptest.ResponseRecorder) dto.MessageResponse {
	t.Helper()
	var resp dto.MessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}
