package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"saccochain/crypto"
)

// decodeParams unpacks the single positional params object used by every
// method. Methods without parameters accept an empty params array.
func decodeParams(req *RPCRequest, dst interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one params object, got %d", len(req.Params))
	}
	if err := json.Unmarshal(req.Params[0], dst); err != nil {
		return fmt.Errorf("invalid params payload: %w", err)
	}
	return nil
}

func requireNoParams(req *RPCRequest) error {
	if len(req.Params) != 0 {
		return fmt.Errorf("method takes no params, got %d", len(req.Params))
	}
	return nil
}

func parseAddress(value, field string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("%s is required", field)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return addr, nil
}

// parseAmount reads a base-10 wei string. Sign and zero checks stay with the
// engines so transport and state agree on one rule.
func parseAmount(value, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: not a base-10 integer", field)
	}
	return amount, nil
}
