package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"saccochain/cmd/internal/passphrase"
	"saccochain/config"
	"saccochain/core"
	"saccochain/core/events"
	"saccochain/crypto"
	"saccochain/gateway"
	"saccochain/integrations/webhooks"
	"saccochain/native/docs"
	"saccochain/observability/logging"
	"saccochain/observability/metrics"
	telemetry "saccochain/observability/otel"
	"saccochain/rpc"
	"saccochain/storage"
)

const (
	operatorPassEnv     = "SACCO_OPERATOR_PASS"
	genesisPathEnv      = "SACCO_GENESIS"
	allowAutogenesisEnv = "SACCO_ALLOW_AUTOGENESIS"

	gaugeRefreshInterval = 15 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides SACCO_GENESIS and config GenesisFile)")
	allowAutogenesisFlag := flag.Bool("allow-autogenesis", false, "DEV ONLY: allow automatic genesis creation when no stored genesis exists")
	flag.Parse()

	allowAutogenesisCLISet := flagWasProvided("allow-autogenesis")

	env := strings.TrimSpace(os.Getenv("SACCO_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if err := config.Validate(cfg); err != nil {
		panic(fmt.Sprintf("Invalid config: %v", err))
	}
	if cfg.Environment != "" && env == "" {
		env = cfg.Environment
	}

	var rotation *logging.FileRotation
	if strings.TrimSpace(cfg.LogFile) != "" {
		rotation = &logging.FileRotation{Path: cfg.LogFile}
	}
	logger := logging.SetupWithRotation("saccod", env, rotation)

	if cfg.Telemetry.EnableTraces || cfg.Telemetry.EnableMetrics {
		shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
			ServiceName:   "saccod",
			Environment:   env,
			Endpoint:      cfg.Telemetry.Endpoint,
			Insecure:      cfg.Telemetry.Insecure,
			Headers:       telemetry.ParseHeaders(cfg.Telemetry.Headers),
			EnableTraces:  cfg.Telemetry.EnableTraces,
			EnableMetrics: cfg.Telemetry.EnableMetrics,
		})
		if err != nil {
			logger.Error("Failed to initialise telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			_ = shutdownTelemetry(context.Background())
		}()
	}

	allowAutogenesis, err := resolveAllowAutogenesis(cfg.AllowAutogenesis, allowAutogenesisCLISet, *allowAutogenesisFlag, os.LookupEnv)
	if err != nil {
		logger.Error("Failed to resolve autogenesis setting", slog.Any("error", err))
		os.Exit(1)
	}
	genesisPath, err := resolveGenesisPath(*genesisFlag, cfg.GenesisFile, allowAutogenesis, os.LookupEnv)
	if err != nil {
		logger.Error("Failed to resolve genesis path", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	operatorKey, err := loadOperatorKey(cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to load operator key: %v", err))
	}
	operator := operatorKey.PubKey().Address()

	node, err := core.NewNode(db, operator, genesisPath, allowAutogenesis)
	if err != nil {
		panic(fmt.Sprintf("Failed to create node: %v", err))
	}

	node.SetQuotaConfig(cfg.QuotaMap())

	yieldSource, err := cfg.YieldSourceAddress()
	if err != nil {
		panic(fmt.Sprintf("Failed to parse yield source: %v", err))
	}
	if !yieldSource.IsZero() {
		node.SetYieldSource(yieldSource)
	}

	if path := strings.TrimSpace(cfg.DocsBackupPath); path != "" {
		backup, err := docs.OpenBackup(path, nil)
		if err != nil {
			panic(fmt.Sprintf("Failed to open docs backup: %v", err))
		}
		defer backup.Close()
		node.SetDocsBackup(backup)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var dispatcher *webhooks.Dispatcher
	if cfg.Webhooks.Enabled {
		secret := strings.TrimSpace(os.Getenv(cfg.Webhooks.SecretEnv))
		if secret == "" {
			logger.Error("Webhook signing secret is empty", slog.String("env", cfg.Webhooks.SecretEnv))
			os.Exit(1)
		}
		dispatcher, err = webhooks.NewDispatcher(cfg.Webhooks.Endpoint, []byte(secret))
		if err != nil {
			logger.Error("Failed to initialise webhook dispatcher", slog.Any("error", err))
			os.Exit(1)
		}
		defer dispatcher.Close()
		logger.Info("Webhook dispatcher enabled",
			slog.String("endpoint", cfg.Webhooks.Endpoint),
			logging.MaskField("secret", secret))
	}
	go relayEvents(ctx, node, dispatcher, logger)
	go refreshGauges(ctx, node)

	rpcServer := rpc.NewServer(node)
	rpcServer.SetPrivacyShielded(cfg.PrivacyShielded)
	rpcErrCh := make(chan error, 1)
	go func() {
		err := rpcServer.Start(cfg.RPCAddress)
		rpcErrCh <- err
		close(rpcErrCh)
	}()
	if err := waitForRPCStartup(cfg.RPCAddress, rpcErrCh, 5*time.Second); err != nil {
		logger.Error("RPC server failed to start", slog.Any("error", err))
		os.Exit(1)
	}
	go func() {
		if err, ok := <-rpcErrCh; ok && err != nil {
			logger.Error("RPC server terminated", slog.Any("error", err))
		}
	}()

	if cfg.Gateway.Enabled {
		secret := strings.TrimSpace(os.Getenv(cfg.Gateway.JWTSecretEnv))
		if secret == "" {
			logger.Error("Gateway JWT secret is empty", slog.String("env", cfg.Gateway.JWTSecretEnv))
			os.Exit(1)
		}
		gw, err := gateway.New(node, gateway.Options{
			JWTSecret:         secret,
			Issuer:            cfg.NetworkName,
			Audience:          "sacco-gateway",
			RateLimitPerMin:   cfg.Gateway.RateLimitPerMin,
			IdempotencyDBPath: cfg.Gateway.IdempotencyDBPath,
			AuditDBPath:       cfg.Gateway.AuditDBPath,
		})
		if err != nil {
			logger.Error("Failed to initialise gateway", slog.Any("error", err))
			os.Exit(1)
		}
		defer gw.Close()
		logger.Info("Gateway enabled",
			slog.String("addr", cfg.GatewayAddress),
			logging.MaskField("jwt_secret", secret))
		go func() {
			if err := gw.Start(cfg.GatewayAddress); err != nil {
				logger.Error("Gateway terminated", slog.Any("error", err))
			}
		}()
	}

	if addr := strings.TrimSpace(cfg.MetricsAddress); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			logger.Info("metrics endpoint listening", slog.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil {
				logger.Error("Metrics server terminated", slog.Any("error", err))
			}
		}()
	}

	logger.Info("saccod initialised and running",
		slog.String("network", cfg.NetworkName),
		slog.String("operator", operator.String()),
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")
}

// relayEvents drains the node's event stream, keeping the reward metrics
// current and forwarding the externally interesting events to the webhook
// dispatcher when one is configured.
func relayEvents(ctx context.Context, node *core.Node, dispatcher *webhooks.Dispatcher, logger *slog.Logger) {
	updates, cancel, backlog, err := node.SubscribeEvents(ctx, "")
	if err != nil {
		logger.Error("Failed to subscribe to event stream", slog.Any("error", err))
		return
	}
	defer cancel()

	for _, update := range backlog {
		forwardEvent(update, dispatcher, logger)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			forwardEvent(update, dispatcher, logger)
		}
	}
}

func forwardEvent(update core.EventUpdate, dispatcher *webhooks.Dispatcher, logger *slog.Logger) {
	switch update.Event.Type {
	case events.TypeCoopInterestDistributed:
		metrics.Coop().RecordDistribution("interest")
	case events.TypeCoopYieldDistributed:
		metrics.Coop().RecordDistribution("yield")
	case events.TypeCoopRewardsClaimed:
		metrics.Coop().RecordClaim(update.Event.Attributes["category"])
	}
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Relay(update); err != nil {
		logger.Warn("webhook relay failed",
			slog.String("event", update.Event.Type),
			slog.Uint64("sequence", update.Sequence),
			slog.Any("error", err),
		)
	}
}

// refreshGauges periodically snapshots the ledger aggregates the dashboards
// watch: membership, the outstanding loan book, and the treasury balance.
func refreshGauges(ctx context.Context, node *core.Node) {
	ticker := time.NewTicker(gaugeRefreshInterval)
	defer ticker.Stop()
	for {
		snapshotGauges(node)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func snapshotGauges(node *core.Node) {
	if counters, err := node.CoopCounters(); err == nil && counters != nil {
		metrics.Coop().SetMembership(counters.ActiveMembers)
	}
	treasury, err := node.CoopTreasuryBalance()
	if err != nil {
		return
	}
	metrics.Coop().SetTreasury(treasury)
	ids, err := node.CoopActiveLoanIDs()
	if err != nil {
		return
	}
	lent := new(big.Int)
	for _, id := range ids {
		loan, err := node.CoopLoan(id)
		if err != nil || loan == nil {
			continue
		}
		lent.Add(lent, loan.Principal)
	}
	metrics.Coop().SetLoanBook(len(ids), lent, treasury)
}

type envLookupFunc func(string) (string, bool)

func resolveGenesisPath(cliPath string, cfgPath string, allowAutogenesis bool, lookup envLookupFunc) (string, error) {
	trimmedCLI := strings.TrimSpace(cliPath)
	if trimmedCLI != "" {
		return trimmedCLI, nil
	}

	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok {
			trimmedEnv := strings.TrimSpace(value)
			if trimmedEnv != "" {
				return trimmedEnv, nil
			}
		}
	}

	trimmedCfg := strings.TrimSpace(cfgPath)
	if trimmedCfg != "" {
		return trimmedCfg, nil
	}

	if allowAutogenesis {
		return "", nil
	}

	return "", fmt.Errorf("no genesis file provided; supply one via --genesis, %s, or config, or explicitly enable autogenesis (--allow-autogenesis / %s / config)", genesisPathEnv, allowAutogenesisEnv)
}

func resolveAllowAutogenesis(cfgValue bool, cliSet bool, cliValue bool, lookup envLookupFunc) (bool, error) {
	allow := cfgValue

	if lookup != nil {
		if value, ok := lookup(allowAutogenesisEnv); ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				parsed, err := strconv.ParseBool(trimmed)
				if err != nil {
					return false, fmt.Errorf("invalid %s value %q: %w", allowAutogenesisEnv, trimmed, err)
				}
				allow = parsed
			}
		}
	}

	if cliSet {
		allow = cliValue
	}

	return allow, nil
}

func flagWasProvided(name string) bool {
	provided := false
	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == name {
			provided = true
		}
	})
	return provided
}

// loadOperatorKey decrypts the operator keystore. An explicit passphrase env
// wins; otherwise the unprotected dev keystore created by config defaulting
// is tried before prompting on the terminal.
func loadOperatorKey(cfg *config.Config) (*crypto.PrivateKey, error) {
	path := strings.TrimSpace(cfg.OperatorKeystorePath)
	if path == "" {
		return nil, fmt.Errorf("operator keystore path not configured")
	}

	if value, ok := os.LookupEnv(operatorPassEnv); ok {
		return crypto.LoadFromKeystore(path, value)
	}

	if key, err := crypto.LoadFromKeystore(path, ""); err == nil {
		return key, nil
	}

	source := passphrase.NewSource(operatorPassEnv)
	pass, err := source.Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

func waitForRPCStartup(addr string, errCh <-chan error, timeout time.Duration) error {
	dialAddr := dialAddressFor(addr)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err, ok := <-errCh:
			if !ok {
				return fmt.Errorf("RPC server terminated before startup confirmation")
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("RPC server exited before startup confirmation")
		default:
		}

		conn, err := net.DialTimeout("tcp", dialAddr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case err, ok := <-errCh:
			if !ok {
				return fmt.Errorf("RPC server terminated before startup confirmation")
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("RPC server exited before startup confirmation")
		case <-ticker.C:
		case <-deadline.C:
			return fmt.Errorf("timed out waiting for RPC server to start on %s", addr)
		}
	}
}

func dialAddressFor(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
