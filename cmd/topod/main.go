package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/topology-core/internal/fixture"
	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/internal/metrics"
	"github.com/GoSim-25-26J-441/topology-core/internal/policy"
	"github.com/GoSim-25-26J-441/topology-core/internal/registry"
	"github.com/GoSim-25-26J-441/topology-core/internal/server"
	"github.com/GoSim-25-26J-441/topology-core/internal/store/sqlite"
	"github.com/GoSim-25-26J-441/topology-core/internal/topology"
	"github.com/GoSim-25-26J-441/topology-core/pkg/config"
	"github.com/GoSim-25-26J-441/topology-core/pkg/logger"
)

func main() {
	var configPath string
	var seedPath string
	var grpcAddr string
	var httpAddr string
	var logLevel string

	flag.StringVar(&configPath, "config", "", "path to the YAML configuration (defaults are used when empty)")
	flag.StringVar(&seedPath, "seed", "", "fixture file loaded into the store at startup")
	flag.StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address (overrides config)")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides config)")
	flag.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error; overrides config)")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if grpcAddr != "" {
		cfg.Server.GRPCAddr = grpcAddr
	}
	if httpAddr != "" {
		cfg.Server.HTTPAddr = httpAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger.SetDefault(logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout))

	if err := run(cfg, seedPath); err != nil {
		logger.Error("topod exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, seedPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := cfg.Catalog()
	if err != nil {
		return fmt.Errorf("service types: %w", err)
	}
	schemas, err := histogram.SchemasFromConfig(cfg.Schemas)
	if err != nil {
		return fmt.Errorf("histogram schemas: %w", err)
	}
	callTimeout, err := cfg.Builder.GetCallTimeout()
	if err != nil {
		return fmt.Errorf("call timeout: %w", err)
	}
	queryTimeout, err := cfg.Builder.GetQueryTimeout()
	if err != nil {
		return fmt.Errorf("query timeout: %w", err)
	}
	cacheTTL, err := cfg.Registry.GetCacheTTL()
	if err != nil {
		return fmt.Errorf("cache ttl: %w", err)
	}
	shutdownTimeout, err := cfg.Server.GetShutdownTimeout()
	if err != nil {
		return fmt.Errorf("shutdown timeout: %w", err)
	}

	store, err := sqlite.Open(cfg.Store.Path, catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	if seedPath != "" {
		d, err := fixture.LoadFile(seedPath, cfg)
		if err != nil {
			return fmt.Errorf("load seed: %w", err)
		}
		if err := d.Seed(ctx, store); err != nil {
			return err
		}
		logger.Info("seeded store", "fixture", seedPath, "agents", len(d.Agents))
	}

	recorder := metrics.NewRecorder(true)
	guard := policy.NewPolicyManager(&cfg.Registry).Guard()
	instances := registry.NewCache(registry.NewGuarded(store, guard, "registry"), cacheTTL, registry.WithLoadTimeout(callTimeout))

	service := server.NewMapService(store, store, instances,
		server.WithQueryTimeout(queryTimeout),
		server.WithGuard(guard),
		server.WithSchemas(schemas),
		server.WithBuilderOptions(
			topology.WithCatalog(catalog),
			topology.WithMetrics(recorder),
			topology.WithMaxWorkers(cfg.Builder.MaxWorkers),
			topology.WithCallTimeout(callTimeout),
			topology.WithMaxSlots(cfg.Builder.MaxSlots),
		),
	)

	// TODO: Configure gRPC server security (TLS, authentication) before exposing it beyond a trusted network.
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(server.UnaryInterceptor(recorder, logger.Component("grpc"))))
	server.NewGRPCServer(service, catalog).Register(grpcServer)

	grpcLis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on %s: %w", cfg.Server.GRPCAddr, err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewHTTPServer(service, catalog, recorder).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      queryTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	// Start servers.
	go func() {
		logger.Info("gRPC server listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("gRPC server error", "error", err)
			stop()
		}
	}()

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	grpcServer.GracefulStop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	return nil
}
