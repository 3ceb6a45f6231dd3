package state

import (
	"fmt"

	"saccochain/crypto"
)

var (
	identityAliasPrefix  = []byte("identity/alias/")
	identityOwnerPrefix  = []byte("identity/owner/")
	identityWeightPrefix = []byte("identity/weight/")
)

func identityAliasKey(alias string) []byte {
	buf := make([]byte, len(identityAliasPrefix)+len(alias))
	copy(buf, identityAliasPrefix)
	copy(buf[len(identityAliasPrefix):], alias)
	return buf
}

func identityOwnerKey(addr crypto.Address) []byte {
	raw := addr.Raw()
	buf := make([]byte, len(identityOwnerPrefix)+len(raw))
	copy(buf, identityOwnerPrefix)
	copy(buf[len(identityOwnerPrefix):], raw[:])
	return buf
}

func identityWeightKey(addr crypto.Address) []byte {
	raw := addr.Raw()
	buf := make([]byte, len(identityWeightPrefix)+len(raw))
	copy(buf, identityWeightPrefix)
	copy(buf[len(identityWeightPrefix):], raw[:])
	return buf
}

// IdentityAliasOwner resolves a normalised alias to its owning address.
func (m *Manager) IdentityAliasOwner(alias string) (crypto.Address, bool, error) {
	if alias == "" {
		return crypto.Address{}, false, fmt.Errorf("identity state: alias must not be empty")
	}
	var raw [20]byte
	ok, err := m.KVGet(identityAliasKey(alias), &raw)
	if err != nil || !ok {
		return crypto.Address{}, false, err
	}
	owner := crypto.AddressFromRaw(raw)
	if owner.IsZero() {
		return crypto.Address{}, false, nil
	}
	return owner, true, nil
}

// IdentitySetAliasOwner binds a normalised alias to an owner. A zero owner
// releases the alias.
func (m *Manager) IdentitySetAliasOwner(alias string, owner crypto.Address) error {
	if alias == "" {
		return fmt.Errorf("identity state: alias must not be empty")
	}
	return m.KVPut(identityAliasKey(alias), owner.Raw())
}

// IdentityAliasOf returns the alias registered for the supplied address.
func (m *Manager) IdentityAliasOf(addr crypto.Address) (string, bool, error) {
	var alias string
	ok, err := m.KVGet(identityOwnerKey(addr), &alias)
	if err != nil || !ok {
		return "", false, err
	}
	if alias == "" {
		return "", false, nil
	}
	return alias, true, nil
}

// IdentitySetAliasOf records the alias owned by the supplied address. An
// empty alias clears the reverse mapping.
func (m *Manager) IdentitySetAliasOf(addr crypto.Address, alias string) error {
	if addr.IsZero() {
		return fmt.Errorf("identity state: address must not be zero")
	}
	return m.KVPut(identityOwnerKey(addr), alias)
}

// IdentityVotingWeight returns the governance weight multiplier configured
// for the supplied address. Zero means no override; voting treats such
// addresses as weight one.
func (m *Manager) IdentityVotingWeight(addr crypto.Address) (uint64, error) {
	var weight uint64
	if _, err := m.KVGet(identityWeightKey(addr), &weight); err != nil {
		return 0, err
	}
	return weight, nil
}

// IdentitySetVotingWeight persists a governance weight multiplier.
func (m *Manager) IdentitySetVotingWeight(addr crypto.Address, weight uint64) error {
	if addr.IsZero() {
		return fmt.Errorf("identity state: address must not be zero")
	}
	return m.KVPut(identityWeightKey(addr), weight)
}
