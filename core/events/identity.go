package events

import (
	"strconv"

	"saccochain/core/types"
	"saccochain/crypto"
)

const (
	TypeIdentityAliasSet     = "identity.alias.set"
	TypeIdentityAliasRenamed = "identity.alias.renamed"
	TypeIdentityWeightSet    = "identity.weight.set"
)

// IdentityAliasSet is emitted when an address registers an alias for the first time.
type IdentityAliasSet struct {
	Alias   string
	Address [20]byte
}

// EventType implements the Event interface.
func (IdentityAliasSet) EventType() string { return TypeIdentityAliasSet }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e IdentityAliasSet) Event() *types.Event {
	return &types.Event{
		Type: TypeIdentityAliasSet,
		Attributes: map[string]string{
			"alias":   e.Alias,
			"address": crypto.AddressFromRaw(e.Address).String(),
		},
	}
}

// IdentityAliasRenamed is emitted when an existing alias is moved to a new value for the same address.
type IdentityAliasRenamed struct {
	OldAlias string
	NewAlias string
	Address  [20]byte
}

// EventType implements the Event interface.
func (IdentityAliasRenamed) EventType() string { return TypeIdentityAliasRenamed }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e IdentityAliasRenamed) Event() *types.Event {
	return &types.Event{
		Type: TypeIdentityAliasRenamed,
		Attributes: map[string]string{
			"old":     e.OldAlias,
			"new":     e.NewAlias,
			"address": crypto.AddressFromRaw(e.Address).String(),
		},
	}
}

// IdentityWeightSet is emitted when an address receives a voting-weight
// multiplier used by weighted cooperative tallies.
type IdentityWeightSet struct {
	Address [20]byte
	Weight  uint64
}

// EventType implements the Event interface.
func (IdentityWeightSet) EventType() string { return TypeIdentityWeightSet }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e IdentityWeightSet) Event() *types.Event {
	return &types.Event{
		Type: TypeIdentityWeightSet,
		Attributes: map[string]string{
			"address": crypto.AddressFromRaw(e.Address).String(),
			"weight":  strconv.FormatUint(e.Weight, 10),
		},
	}
}
