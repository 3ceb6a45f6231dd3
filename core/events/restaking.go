package events

import (
	"math/big"

	"saccochain/core/types"
	"saccochain/crypto"
)

const (
	TypeRestakingAllocated  = "restaking.allocated"
	TypeRestakingRecalled   = "restaking.recalled"
	TypeRestakingYieldNoted = "restaking.yield.noted"
)

// RestakingAllocated is emitted when treasury funds are moved to the external
// yield strategy account.
type RestakingAllocated struct {
	Strategy  [20]byte
	Amount    *big.Int
	Allocated *big.Int
}

// EventType implements the Event interface.
func (RestakingAllocated) EventType() string { return TypeRestakingAllocated }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e RestakingAllocated) Event() *types.Event {
	return &types.Event{
		Type: TypeRestakingAllocated,
		Attributes: map[string]string{
			"strategy":  crypto.AddressFromRaw(e.Strategy).String(),
			"amount":    amountString(e.Amount),
			"allocated": amountString(e.Allocated),
		},
	}
}

// RestakingRecalled is emitted when funds are pulled back from the strategy
// account into the treasury.
type RestakingRecalled struct {
	Strategy  [20]byte
	Amount    *big.Int
	Allocated *big.Int
}

// EventType implements the Event interface.
func (RestakingRecalled) EventType() string { return TypeRestakingRecalled }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e RestakingRecalled) Event() *types.Event {
	return &types.Event{
		Type: TypeRestakingRecalled,
		Attributes: map[string]string{
			"strategy":  crypto.AddressFromRaw(e.Strategy).String(),
			"amount":    amountString(e.Amount),
			"allocated": amountString(e.Allocated),
		},
	}
}

// RestakingYieldNoted is emitted when the strategy reports realised yield.
// The cooperative module emits its own distribution event alongside this one.
type RestakingYieldNoted struct {
	Strategy [20]byte
	Amount   *big.Int
	Total    *big.Int
}

// EventType implements the Event interface.
func (RestakingYieldNoted) EventType() string { return TypeRestakingYieldNoted }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e RestakingYieldNoted) Event() *types.Event {
	return &types.Event{
		Type: TypeRestakingYieldNoted,
		Attributes: map[string]string{
			"strategy": crypto.AddressFromRaw(e.Strategy).String(),
			"amount":   amountString(e.Amount),
			"total":    amountString(e.Total),
		},
	}
}
