package state

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"saccochain/crypto"
)

// ModuleAddress derives the deterministic account address that holds a
// module's pooled funds. No private key exists for these addresses, so the
// balances can only move through module operations.
func ModuleAddress(module string) crypto.Address {
	hash := ethcrypto.Keccak256([]byte("module/" + module))
	return crypto.NewAddress(hash[len(hash)-crypto.AddressLength:])
}
