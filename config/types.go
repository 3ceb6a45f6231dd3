package config

// Quota defines rate limits for module interactions on a per-address basis.
// Zero limits disable the corresponding check.
type Quota struct {
	MaxRequestsPerMin uint32
	MaxWeiPerEpoch    uint64
	EpochSeconds      uint32
}

// Quotas groups quotas for each ledger module.
type Quotas struct {
	Coop      Quota
	Identity  Quota
	Docs      Quota
	Restaking Quota
}

// Gateway configures the REST facade served next to the JSON-RPC endpoint.
type Gateway struct {
	Enabled           bool
	JWTSecretEnv      string
	RateLimitPerMin   int
	IdempotencyDBPath string
	AuditDBPath       string
}

// Webhooks configures the signed outbound notifications relayed from the
// ledger event stream.
type Webhooks struct {
	Enabled   bool
	Endpoint  string
	SecretEnv string
}

// Telemetry configures the OTLP exporters. Headers uses the standard
// comma-separated key=value form.
type Telemetry struct {
	Endpoint      string
	Insecure      bool
	Headers       string
	EnableTraces  bool
	EnableMetrics bool
}
