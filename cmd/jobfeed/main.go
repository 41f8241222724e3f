// cmd/jobfeed/main.go
package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpc_api "swipework/internal/api/grpc"
	http_api "swipework/internal/api/http"
	"swipework/internal/config"
	"swipework/internal/domain"
	"swipework/internal/feed"
	"swipework/internal/infra/etcd"
	"swipework/internal/infra/redis"
	"swipework/internal/scheduler"
	"swipework/internal/session"
	"swipework/internal/tracing"
	"swipework/internal/usecase"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthProbeInterval = 10 * time.Second

func main() {
	// 1. Initialize logger and tracer
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	tracerShutdown, err := tracing.InitTracer(cfg.ServiceName, os.Stdout)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tracerShutdown(context.Background()); err != nil {
			log.Printf("failed to shutdown tracer: %v", err)
		}
	}()

	instanceID := uuid.New().String()
	logger.Info("starting job feed node", "instance_id", instanceID)

	// 3. Create root context for lifecycle management
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Setup graceful shutdown
	setupGracefulShutdown(cancel)

	// 5. Init etcd client
	etcdClient, err := etcd.NewClient(rootCtx, cfg.EtcdEndpoints, cfg.EtcdTimeout)
	if err != nil {
		log.Fatalf("Failed to create etcd client: %v", err)
	}
	defer etcdClient.Close()
	logger.Info("connected to etcd", "endpoints", cfg.EtcdEndpoints)

	instances := etcd.NewInstanceRegistry(etcdClient, logger)
	if err := instances.Register(rootCtx, instanceID, cfg.HttpListenAddr, int64(cfg.InstanceTTL.Seconds())); err != nil {
		log.Fatalf("Failed to register instance: %v", err)
	}
	defer func() {
		deregCtx, deregCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer deregCancel()
		if err := instances.Deregister(deregCtx); err != nil {
			logger.Error("failed to deregister instance", "error", err)
		}
	}()

	// 6. Instantiate stores; Redis fan-out is optional
	jobStore := etcd.NewEtcdJobStore(etcdClient, logger)
	userRepo := etcd.NewEtcdUserRepository(etcdClient, logger)
	appRepo := etcd.NewEtcdApplicationRepository(etcdClient, logger)
	notificationRepo := etcd.NewEtcdNotificationRepository(etcdClient, logger)

	notifier := domain.Publishers{notificationRepo}
	if cfg.RedisURL != "" {
		rdb, err := redis.NewClient(rootCtx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, notifications are stored only", "error", err)
		} else {
			defer rdb.Close()
			notifier = append(notifier, redis.NewPublisher(rdb, logger))
			logger.Info("connected to redis")
		}
	}

	// 7. Feed sessions and their maintenance
	feedOpts := feed.Options{
		PageSize:       cfg.PageSize,
		CacheTTL:       cfg.CacheTTL,
		RetryBackoff:   cfg.RetryBackoff,
		RealtimeWindow: cfg.RealtimeWindow,
		Logger:         logger,
		Applications:   appRepo,
		Notifier:       notifier,
	}
	registry := session.NewRegistry(jobStore, userRepo, feedOpts, cfg.SessionIdleTimeout, logger)
	defer registry.CloseAll()

	cronScheduler := scheduler.NewCronScheduler(logger)
	if err := registry.ScheduleSweep(cronScheduler, cfg.SessionSweepSpec); err != nil {
		log.Fatalf("Failed to schedule session sweep: %v", err)
	}
	go func() {
		_ = cronScheduler.Start(rootCtx)
	}()

	postingService := usecase.NewPostingService(jobStore, logger)
	profileService := usecase.NewProfileService(userRepo, notificationRepo, registry, logger)
	employerService := usecase.NewEmployerService(jobStore, appRepo, notifier, logger)

	// 8. Register routes and metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if err := etcd.Ping(r.Context(), etcdClient, cfg.EtcdTimeout); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		nodes, _ := instances.Instances(r.Context())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    status,
			"instance":  instanceID,
			"instances": len(nodes),
			"sessions":  registry.Len(),
		})
	})
	http_api.NewFeedHandler(registry, logger).RegisterRoutes(mux)
	http_api.NewJobHandler(registry, postingService, logger).RegisterRoutes(mux)
	http_api.NewAccountHandler(profileService, logger).RegisterRoutes(mux)
	http_api.NewEmployerHandler(employerService, logger).RegisterRoutes(mux)

	// 9. Start gRPC health server
	grpcServer := grpc_api.NewServer(func(ctx context.Context) error {
		return etcd.Ping(ctx, etcdClient, cfg.EtcdTimeout)
	}, logger)
	if cfg.GrpcListenAddr != "" {
		go func() {
			if err := grpcServer.Serve(rootCtx, cfg.GrpcListenAddr, healthProbeInterval); err != nil {
				logger.Error("gRPC server failed", "error", err)
				cancel()
			}
		}()
	}

	// 10. Start HTTP API server with CORS middleware
	logger.Info("starting HTTP API server", "address", cfg.HttpListenAddr)
	server := &http.Server{
		Addr:              cfg.HttpListenAddr,
		Handler:           http_api.CORSMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	// 11. Block until shutdown
	<-rootCtx.Done()
	logger.Info("shutting down application gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	grpcServer.Stop()

	logger.Info("application shut down")
}

func setupGracefulShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v. Initiating graceful shutdown...", sig)
		cancel()
	}()
}
