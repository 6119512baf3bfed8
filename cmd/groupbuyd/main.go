package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/groupbuy-orders/internal/async"
	"github.com/joseph-ayodele/groupbuy-orders/internal/common"
	"github.com/joseph-ayodele/groupbuy-orders/internal/core"
	"github.com/joseph-ayodele/groupbuy-orders/internal/ingest"
	"github.com/joseph-ayodele/groupbuy-orders/internal/llm/openai"
	"github.com/joseph-ayodele/groupbuy-orders/internal/metrics"
	"github.com/joseph-ayodele/groupbuy-orders/internal/publish"
	repo "github.com/joseph-ayodele/groupbuy-orders/internal/repository"
	"github.com/joseph-ayodele/groupbuy-orders/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger, flush := common.NewLogger(cfg.Log)
	defer flush()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if cfg.Database.DSN == "" {
		logger.Error("missing DB_URL environment variable")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repo.Open(ctx, repo.ConfigFrom(cfg.Database), logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	reg := metrics.NewRegistry()
	engineOpts := []core.Option{core.WithLogger(logger), core.WithMetrics(reg)}
	if cfg.VerifierEnabled() {
		engineOpts = append(engineOpts, core.WithVerifier(openai.NewClient(openai.Config{
			Model:       cfg.LLM.Model,
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)))
		logger.Info("price verifier enabled", "model", cfg.LLM.Model)
	} else {
		logger.Warn("OpenAI API key not configured, price verification disabled")
	}
	engine := core.NewEngine(engineOpts...)

	publisher, err := publish.New(cfg.Kafka, logger)
	if err != nil {
		logger.Error("failed to create label publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	svc := server.NewOrderService(server.Deps{
		Engine:    engine,
		Guides:    repo.NewGuideRepository(store, logger),
		Orders:    repo.NewOrderRepository(store, logger),
		Publisher: publisher,
		Metrics:   reg,
		Health:    store,
		Logger:    logger,
	})

	if err := preloadGuide(ctx, svc, cfg.Guide.Path, logger); err != nil {
		logger.Error("failed to load guide", "path", cfg.Guide.Path, "error", err)
		os.Exit(1)
	}

	queue := async.NewProcessorQueue(svc, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
		async.WithMetrics(reg),
	)
	svc.AttachQueue(queue)

	inboxDone := startInbox(ctx, cfg.Inbox, svc, logger)

	// gRPC
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer, healthServer := server.NewGRPCServer(svc, logger)

	// HTTP
	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewRouter(svc, reg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("groupbuyd listening", "grpc_addr", cfg.Server.GRPCAddr, "http_addr", cfg.Server.HTTPAddr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	<-inboxDone
	queue.Shutdown(shutdownCtx)
}

// startInbox submits order files dropped into ORDER_INBOX_DIR. The returned
// channel closes once the watcher has stopped.
func startInbox(ctx context.Context, cfg common.InboxConfig, svc *server.OrderService, logger *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	if cfg.Dir == "" {
		close(done)
		return done
	}
	ing := ingest.NewFSIngestor(func(ctx context.Context, text string) (string, error) {
		v, err := svc.SubmitOrder(ctx, text)
		if err != nil {
			return "", err
		}
		return v.ID.String(), nil
	}, logger)
	ing.AllowedExts = ingest.ExtSet(cfg.Exts)

	go func() {
		defer close(done)
		err := ingest.Watch(ctx, ing, ingest.WatchConfig{
			Roots:       []string{cfg.Dir},
			AllowedExts: ing.AllowedExts,
			InitialScan: cfg.InitialScan,
			Debounce:    cfg.Debounce,
		}, logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("order inbox stopped", "dir", cfg.Dir, "error", err)
		}
	}()
	logger.Info("order inbox watching", "dir", cfg.Dir)
	return done
}

// preloadGuide activates GUIDE_PATH when set, otherwise the latest stored guide.
func preloadGuide(ctx context.Context, svc *server.OrderService, path string, logger *slog.Logger) error {
	if path == "" {
		return svc.RestoreLatestGuide(ctx)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	g, err := svc.LoadGuide(ctx, string(b))
	if err != nil {
		return err
	}
	logger.Info("guide preloaded", "path", path, "guide_id", g.ID, "products", g.Summary.ProductsCount)
	return nil
}
