package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"saccochain/core/types"
	"saccochain/crypto"
)

var accountPrefix = []byte("account/")

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

func accountKey(addr crypto.Address) []byte {
	raw := addr.Raw()
	buf := make([]byte, len(accountPrefix)+len(raw))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], raw[:])
	return ethcrypto.Keccak256(buf)
}

// GetAccount reconstructs the account stored under the provided address.
// Unknown addresses yield a zero-valued account rather than an error so
// balance transfers never need an existence pre-check.
func (m *Manager) GetAccount(addr crypto.Address) (*types.Account, error) {
	data, err := m.db.Get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	account := &types.Account{Balance: big.NewInt(0)}
	if len(data) == 0 {
		return account, nil
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, err
	}
	account.Nonce = stored.Nonce
	if stored.Balance != nil {
		account.Balance = new(big.Int).Set(stored.Balance)
	}
	return account, nil
}

// PutAccount persists the provided account under the supplied address.
// Negative balances are rejected: every transfer debits before it credits,
// so a negative balance can only mean a bug upstream.
func (m *Manager) PutAccount(addr crypto.Address, account *types.Account) error {
	if addr.IsZero() {
		return fmt.Errorf("state: account address must not be zero")
	}
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	account.EnsureDefaults()
	if account.Balance.Sign() < 0 {
		return fmt.Errorf("state: negative balance for %s", addr.String())
	}
	stored := &storedAccount{
		Nonce:   account.Nonce,
		Balance: new(big.Int).Set(account.Balance),
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return m.db.Put(accountKey(addr), encoded)
}
