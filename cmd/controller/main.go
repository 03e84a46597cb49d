package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielpatrickdp/mkw-classifier/internal/config"
	"github.com/danielpatrickdp/mkw-classifier/internal/service"
	"github.com/danielpatrickdp/mkw-classifier/internal/state"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
)

// #region main
func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults and MKW_* env when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	// Initialize agent store
	store, err := state.NewStore(cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	agents, err := store.ListAgents()
	if err != nil {
		log.Fatalf("failed to list agents: %v", err)
	}

	lis, err := net.Listen("tcp", cfg.Service.Addr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", cfg.Service.Addr, err)
	}

	gs := grpc.NewServer(grpc.UnaryInterceptor(service.MetricsInterceptor))
	service.NewServer(store, cfg.Agent, cfg.Gate.ToGateConfig(), cfg.Service.SnapshotEvery).Register(gs)

	var metricsSrv *http.Server
	if cfg.Service.MetricsAddr != "" {
		metricsSrv = serveMetrics(cfg.Service.MetricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Printf("[SERVICE] shutting down")
		gs.GracefulStop()
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsSrv.Shutdown(shutdownCtx)
		}
	}()

	log.Printf("[SERVICE] listening on %s | DB: %s (%d agents) | snapshot every %d turns",
		cfg.Service.Addr, cfg.Store.Path, len(agents), cfg.Service.SnapshotEvery)
	if err := gs.Serve(lis); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// #endregion main

// #region metrics
func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Printf("[METRICS] serving /metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[METRICS] %v", err)
		}
	}()
	return srv
}

// #endregion metrics
