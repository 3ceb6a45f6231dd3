package config

import (
	"fmt"
	"strings"

	"saccochain/crypto"
	nativecommon "saccochain/native/common"
	"saccochain/native/coop"
	"saccochain/native/docs"
	"saccochain/native/identity"
	"saccochain/native/restaking"
)

// QuotaMap converts the configured quotas into the per-module runtime form
// the node enforces. Modules whose quota is entirely zero are omitted, which
// disables enforcement for them.
func (c *Config) QuotaMap() map[string]nativecommon.Quota {
	out := make(map[string]nativecommon.Quota, 4)
	add := func(module string, q Quota) {
		if q.MaxRequestsPerMin == 0 && q.MaxWeiPerEpoch == 0 {
			return
		}
		out[module] = nativecommon.Quota{
			MaxRequestsPerMin: q.MaxRequestsPerMin,
			MaxWeiPerEpoch:    q.MaxWeiPerEpoch,
			EpochSeconds:      q.EpochSeconds,
		}
	}
	add(coop.ModuleName, c.Quotas.Coop)
	add(identity.ModuleName, c.Quotas.Identity)
	add(docs.ModuleName, c.Quotas.Docs)
	add(restaking.ModuleName, c.Quotas.Restaking)
	return out
}

// YieldSourceAddress parses the configured strategy address. A zero address
// and nil error mean no strategy is configured.
func (c *Config) YieldSourceAddress() (crypto.Address, error) {
	source := strings.TrimSpace(c.YieldSource)
	if source == "" {
		return crypto.Address{}, nil
	}
	addr, err := crypto.DecodeAddress(source)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid YieldSource: %w", err)
	}
	return addr, nil
}
