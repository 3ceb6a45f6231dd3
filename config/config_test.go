package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"saccochain/crypto"
	"saccochain/native/coop"
	"saccochain/native/docs"
)

func TestLoadParsesLedgerSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	keystorePath := filepath.Join(dir, "operator.keystore")
	contents := fmt.Sprintf(`RPCAddress = "0.0.0.0:9000"
GatewayAddress = "0.0.0.0:9001"
MetricsAddress = ":9100"
DataDir = "./data"
GenesisFile = "genesis.json"
AllowAutogenesis = false
OperatorKeystorePath = "%s"
NetworkName = "testnet"
Environment = "staging"
DocsBackupPath = "./docs.db"
PrivacyShielded = true
LogFile = "./sacco.log"

[Quotas.Coop]
MaxRequestsPerMin = 30
MaxWeiPerEpoch = 1000000
EpochSeconds = 60

[Quotas.Docs]
MaxRequestsPerMin = 10

[Gateway]
Enabled = true
JWTSecretEnv = "SACCO_GATEWAY_SECRET"
RateLimitPerMin = 120
IdempotencyDBPath = "./gateway.db"
AuditDBPath = "./audit.db"

[Telemetry]
Endpoint = "otel-collector:4318"
Insecure = true
EnableTraces = true
EnableMetrics = true
Headers = "x-team=ledger"
`, keystorePath)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.RPCAddress != "0.0.0.0:9000" || cfg.GatewayAddress != "0.0.0.0:9001" {
		t.Fatalf("unexpected addresses: %+v", cfg)
	}
	if cfg.NetworkName != "testnet" || cfg.Environment != "staging" {
		t.Fatalf("unexpected network settings: %+v", cfg)
	}
	if !cfg.PrivacyShielded {
		t.Fatalf("expected PrivacyShielded to parse as true")
	}
	if cfg.Quotas.Coop.MaxRequestsPerMin != 30 || cfg.Quotas.Coop.MaxWeiPerEpoch != 1_000_000 {
		t.Fatalf("unexpected coop quota: %+v", cfg.Quotas.Coop)
	}
	if cfg.Quotas.Docs.MaxRequestsPerMin != 10 {
		t.Fatalf("unexpected docs quota: %+v", cfg.Quotas.Docs)
	}
	if !cfg.Gateway.Enabled || cfg.Gateway.JWTSecretEnv != "SACCO_GATEWAY_SECRET" {
		t.Fatalf("unexpected gateway settings: %+v", cfg.Gateway)
	}
	if cfg.Telemetry.Endpoint != "otel-collector:4318" || !cfg.Telemetry.EnableTraces {
		t.Fatalf("unexpected telemetry settings: %+v", cfg.Telemetry)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}

	quotas := cfg.QuotaMap()
	if len(quotas) != 2 {
		t.Fatalf("expected two enforced quotas, got %d", len(quotas))
	}
	if quotas[coop.ModuleName].MaxWeiPerEpoch != 1_000_000 {
		t.Fatalf("coop quota not mapped: %+v", quotas)
	}
	if quotas[docs.ModuleName].MaxRequestsPerMin != 10 {
		t.Fatalf("docs quota not mapped: %+v", quotas)
	}
}

func TestLoadCreatesDefaultWithKeystore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress == "" || cfg.DataDir == "" {
		t.Fatalf("default config missing addresses: %+v", cfg)
	}
	if !cfg.AllowAutogenesis {
		t.Fatalf("default config should allow autogenesis")
	}
	if _, err := os.Stat(cfg.OperatorKeystorePath); err != nil {
		t.Fatalf("keystore not created: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not persisted: %v", err)
	}

	// A second load reuses the persisted file and keystore.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.OperatorKeystorePath != cfg.OperatorKeystorePath {
		t.Fatalf("keystore path changed across loads: %s vs %s", again.OperatorKeystorePath, cfg.OperatorKeystorePath)
	}
}

func TestLoadRejectsDeprecatedOperatorKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `RPCAddress = ":8080"
OperatorKey = "raw-hex-key"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "deprecated OperatorKey") {
		t.Fatalf("expected deprecated-key rejection, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	valid := key.PubKey().Address().String()

	cases := []struct {
		name string
		cfg  Config
	}{
		{name: "missing rpc address", cfg: Config{}},
		{name: "gateway without secret", cfg: Config{RPCAddress: ":8080", GatewayAddress: ":8081", Gateway: Gateway{Enabled: true}}},
		{name: "bad yield source", cfg: Config{RPCAddress: ":8080", YieldSource: "not-bech32"}},
		{name: "telemetry without endpoint", cfg: Config{RPCAddress: ":8080", Telemetry: Telemetry{EnableTraces: true}}},
	}
	for _, tc := range cases {
		if err := Validate(&tc.cfg); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}

	ok := Config{RPCAddress: ":8080", YieldSource: valid}
	if err := Validate(&ok); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	addr, err := ok.YieldSourceAddress()
	if err != nil {
		t.Fatalf("yield source parse: %v", err)
	}
	if addr.IsZero() {
		t.Fatalf("expected configured yield source to parse non-zero")
	}
}
