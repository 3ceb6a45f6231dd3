package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"saccochain/observability/logging"
	telemetry "saccochain/observability/otel"
	"saccochain/services/ledger-indexer/config"
	"saccochain/services/ledger-indexer/indexer"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/ledger-indexer/config.yaml", "path to ledger-indexer config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("SACCO_ENV"))
	logging.Setup("ledger-indexer", env)
	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:   "ledger-indexer",
		Environment:   env,
		Endpoint:      otlpEndpoint,
		Insecure:      insecure,
		Headers:       otlpHeaders,
		EnableMetrics: true,
		EnableTraces:  true,
	})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := indexer.OpenDatabase(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open mirror database: %v", err)
	}
	ix, err := indexer.New(db)
	if err != nil {
		log.Fatalf("init indexer: %v", err)
	}
	runner, err := indexer.NewRunner(ix, cfg.WSURL, cfg.Reconnect.MinBackoff.Duration, cfg.Reconnect.MaxBackoff.Duration)
	if err != nil {
		log.Fatalf("init runner: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	adminSrv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("ledger-indexer admin endpoints on %s", cfg.ListenAddress)
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("admin server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := runner.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = adminSrv.Shutdown(shutdownCtx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Fatalf("stream runner: %v", runErr)
	}
	log.Println("ledger-indexer stopped")
}
