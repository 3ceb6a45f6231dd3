package events

import (
	"strconv"

	"saccochain/core/types"
	"saccochain/crypto"
)

const (
	TypeModulePauseUpdated = "system.pause.updated"
	TypeQuotaExceeded      = "system.quota.exceeded"
)

// ModulePauseUpdated is emitted when an operator toggles a module pause switch.
type ModulePauseUpdated struct {
	Module string
	Paused bool
}

// EventType implements the Event interface.
func (ModulePauseUpdated) EventType() string { return TypeModulePauseUpdated }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e ModulePauseUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeModulePauseUpdated,
		Attributes: map[string]string{
			"module": e.Module,
			"paused": strconv.FormatBool(e.Paused),
		},
	}
}

// QuotaExceeded is emitted when a caller trips a per-module request quota.
type QuotaExceeded struct {
	Module  string
	Address [20]byte
}

// EventType implements the Event interface.
func (QuotaExceeded) EventType() string { return TypeQuotaExceeded }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e QuotaExceeded) Event() *types.Event {
	return &types.Event{
		Type: TypeQuotaExceeded,
		Attributes: map[string]string{
			"module":  e.Module,
			"address": crypto.AddressFromRaw(e.Address).String(),
		},
	}
}
