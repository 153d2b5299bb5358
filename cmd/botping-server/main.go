package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	internalhttp "github.com/EternisAI/botping/internal/api/http"
	"github.com/EternisAI/botping/internal/api/http/middleware"
	"github.com/EternisAI/botping/internal/auth"
	"github.com/EternisAI/botping/internal/db"
	grpcserver "github.com/EternisAI/botping/internal/grpc/server"
	"github.com/EternisAI/botping/internal/history"
	"github.com/EternisAI/botping/internal/network"
	"github.com/EternisAI/botping/internal/probe"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

var AppVersion string

const (
	loginTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-token" {
		os.Exit(hashTokenCommand(os.Args[2:], os.Stdout, os.Stderr))
	}

	InitConfig()

	slog.Info("botping server", "version", AppVersion)

	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	handles, err := loadHandles(config.Agents)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return errors.New("invalid agent allow-list")
	}
	if len(handles) == 0 {
		slog.Warn("No agents allow-listed, every check will be rejected")
	}

	hashes, err := loadTokenHashes(config.Auth)
	if err != nil {
		return fmt.Errorf("load caller tokens: %w", err)
	}
	tokens := auth.NewTokenVerifier(hashes)
	if tokens.Len() == 0 {
		slog.Warn("No caller tokens configured, every request will be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loginCtx, cancelLogin := context.WithTimeout(ctx, loginTimeout)
	client, err := network.Login(loginCtx, config.networkConfig())
	cancelLogin()
	if err != nil {
		return fmt.Errorf("network login: %w", err)
	}
	defer client.Close()

	registry := probe.NewRegistry(config.Probe.StaleAfter, nil)
	sender := probe.NewSender(client, registry, probe.SenderConfig{
		GracePeriod: config.Probe.GracePeriod,
		ProbeText:   config.Network.ProbeText,
	})
	checker := probe.NewChecker(sender, registry, handles)

	var store *history.Store
	if config.Database.Enabled() {
		pool, err := openHistory(ctx, config.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = history.NewStore(pool)
		checker.SetRecorder(store)
	}

	listener := probe.NewListener(updateSource(client), registry)
	listenerDone := make(chan error, 1)
	go func() {
		listenerDone <- listener.Run(ctx)
	}()

	httpServer := newHTTPServer(&internalhttp.Services{
		Checker:     checker,
		Registry:    registry,
		Tokens:      tokens,
		History:     store,
		AdminAPIKey: config.Http.AdminAPIKey,
	})

	grpcSrv, err := grpcserver.NewServer(config.Grpc, checker, tokens)
	if err != nil {
		return fmt.Errorf("create gRPC server: %w", err)
	}

	errChan := make(chan error, 2)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	go func() {
		if err := grpcSrv.Start(); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	var runErr error
	select {
	case runErr = <-errChan:
		slog.Error("Server error", "error", runErr)
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	}
	stop()

	slog.Info("Shutting down servers...")

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := grpcSrv.StopWithTimeout(shutdownTimeout); err != nil {
			slog.Error("gRPC server shutdown error", "error", err)
		}
	}()

	wg.Wait()
	<-listenerDone

	if client.SignOutOnClose() {
		signOutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := client.SignOut(signOutCtx); err != nil {
			slog.Error("Failed to sign out", "error", err)
		}
		cancel()
	}

	slog.Info("Shutdown complete")
	return runErr
}

func openHistory(ctx context.Context, cfg db.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(ctx, cfg); err != nil {
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	pool, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	return pool, nil
}

// updateSource feeds network updates to the reply listener. A closed client
// ends the stream.
func updateSource(client *network.Client) probe.EventSource {
	return probe.EventSourceFunc(func(ctx context.Context) (probe.Event, error) {
		u, err := client.NextUpdate(ctx)
		if err != nil {
			if errors.Is(err, network.ErrClosed) {
				return nil, io.EOF
			}
			return nil, err
		}
		return u, nil
	})
}

func newHTTPServer(services *internalhttp.Services) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	engine.Use(middleware.Recover())
	internalhttp.SetupRoute(engine, services)

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: engine,
	}
}
