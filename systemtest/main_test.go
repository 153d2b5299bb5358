package systemtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	internalhttp "github.com/EternisAI/botping/internal/api/http"
	"github.com/EternisAI/botping/internal/auth"
	"github.com/EternisAI/botping/internal/db"
	"github.com/EternisAI/botping/internal/history"
	"github.com/EternisAI/botping/internal/probe"
	"github.com/EternisAI/botping/systemtest/fakenet"
	"github.com/EternisAI/botping/systemtest/postgres"
	"github.com/EternisAI/botping/systemtest/tests"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

const (
	callerToken = "system-test-token"
	adminAPIKey = "system-test-admin-key"
	gracePeriod = 100 * time.Millisecond
)

type stack struct {
	router  *gin.Engine
	network *fakenet.Network
}

func newStack(t *testing.T, store *history.Store) stack {
	t.Helper()

	network := fakenet.New(map[string]fakenet.Agent{
		"echobot":   {ID: 101, Replies: true},
		"silentbot": {ID: 102},
		"brokenbot": {ID: 103, Rejects: true},
		"ghostbot":  {ID: 104, Unlisted: true},
	})

	registry := probe.NewRegistry(probe.DefaultStaleAfter, nil)
	sender := probe.NewSender(network, registry, probe.SenderConfig{GracePeriod: gracePeriod})
	checker := probe.NewChecker(sender, registry, []string{"@echobot", "@silentbot", "@brokenbot", "@ghostbot"})
	if store != nil {
		checker.SetRecorder(store)
	}

	ctx, cancel := context.WithCancel(context.Background())
	listener := probe.NewListener(network, registry)
	done := make(chan struct{})
	go func() {
		_ = listener.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	hash, err := auth.HashToken(callerToken)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	internalhttp.SetupRoute(engine, &internalhttp.Services{
		Checker:     checker,
		Registry:    registry,
		Tokens:      auth.NewTokenVerifier([]string{hash}),
		History:     store,
		AdminAPIKey: adminAPIKey,
	})

	return stack{router: engine, network: network}
}

func TestSystemIntegration(t *testing.T) {
	s := newStack(t, nil)

	t.Run("HealthCheck", func(t *testing.T) { tests.TestHealthCheck(t, s.router) })
	t.Run("Ping", func(t *testing.T) { tests.TestPing(t, s.router, s.network, callerToken) })
	t.Run("AdminProbes", func(t *testing.T) { tests.TestAdminProbes(t, s.router, adminAPIKey) })
}

func TestSystemHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres system test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.StartPostgres(ctx, "botping", "botping", "botping")
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = postgres.TerminatePostgres(context.Background(), container) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := db.Config{URL: url, Schema: "botping"}
	require.NoError(t, db.Migrate(ctx, cfg))
	// Applying twice is a no-op.
	require.NoError(t, db.Migrate(ctx, cfg))

	pool, err := db.Open(ctx, cfg)
	require.NoError(t, err, fmt.Sprintf("open %s", url))
	t.Cleanup(pool.Close)

	s := newStack(t, history.NewStore(pool))

	t.Run("History", func(t *testing.T) { tests.TestHistory(t, s.router, callerToken) })
}
