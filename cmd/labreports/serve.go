package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/labreports/internal/async"
	"github.com/joseph-ayodele/labreports/internal/ingest"
	"github.com/joseph-ayodele/labreports/internal/repository"
	"github.com/joseph-ayodele/labreports/internal/server"
)

var (
	serveGRPCAddr string
	serveHTTPAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long: `Start the HTTP API (upload, extract, reports, export) and the gRPC
LabReportService with the standard health service.

When watch.roots is configured, new documents under those directories are
processed in the background as they appear.

Examples:
  labreports serve
  labreports serve --http :9000 --grpc :9090`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveGRPCAddr != "" {
			cfg.Server.GRPCAddr = serveGRPCAddr
		}
		if serveHTTPAddr != "" {
			cfg.Server.HTTPAddr = serveHTTPAddr
		}
		logger := newLogger(cfg.Log, os.Stdout)

		a, err := openApp(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to start", "error", err)
			return err
		}
		defer a.Close()

		// gRPC server
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			return err
		}
		grpcServer := grpc.NewServer(grpc.UnaryInterceptor(server.UnaryLoggingInterceptor(logger)))
		server.RegisterLabReportServer(grpcServer, server.NewLabReportService(a.processor, a.reports, cfg.Server.MaxUploadBytes, logger))

		// Register gRPC health service
		healthServer := health.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		healthServer.SetServingStatus(server.LabReportServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
		reflection.Register(grpcServer)

		// HTTP server
		httpServer := &http.Server{
			Addr: cfg.Server.HTTPAddr,
			Handler: server.NewHTTPHandler(server.HTTPConfig{
				Processor: a.processor,
				Reports:   a.reports,
				Exporter:  a.exporter,
				Ping: func(ctx context.Context) error {
					return repository.HealthCheck(ctx, a.db, cfg.Database.DialTimeout)
				},
				MaxUploadBytes: cfg.Server.MaxUploadBytes,
				RequestTimeout: cfg.Server.RequestTimeout,
				Logger:         logger,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Background processing of watched directories
		var queue *async.ProcessorQueue
		if len(cfg.Watch.Roots) > 0 {
			queue = async.NewProcessorQueue(a.processor, logger,
				async.WithWorkers(cfg.Queue.Workers),
				async.WithQueueSize(cfg.Queue.Size),
				async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
			)
			svc := ingest.NewService(queue, logger)
			go func() {
				err := svc.Watch(ctx, ingest.WatchConfig{
					Roots:       cfg.Watch.Roots,
					InitialScan: cfg.Watch.InitialScan,
					Debounce:    cfg.Watch.Debounce,
					SkipHidden:  true,
				})
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("watcher stopped", "error", err)
				}
			}()
		}

		errCh := make(chan error, 2)
		go func() {
			logger.Info("grpc listening", "addr", cfg.Server.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- err
			}
		}()
		go func() {
			logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
			logger.Info("shutting down")
		case err = <-errCh:
			logger.Error("server error", "error", err)
		}

		healthServer.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		grpcServer.GracefulStop()
		if queue != nil {
			queue.Shutdown(shutdownCtx)
		}
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveGRPCAddr, "grpc", "", "gRPC listen address (overrides server.grpc_addr)")
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http", "", "HTTP listen address (overrides server.http_addr)")
}
