package events

import (
	"encoding/hex"

	"saccochain/core/types"
	"saccochain/crypto"
)

const TypeDocRegistered = "docs.registered"

// DocRegistered is emitted when a document content hash is added to an
// entity's registry.
type DocRegistered struct {
	EntityID string
	Category string
	Hash     [32]byte
	Actor    [20]byte
}

// EventType implements the Event interface.
func (DocRegistered) EventType() string { return TypeDocRegistered }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e DocRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeDocRegistered,
		Attributes: map[string]string{
			"entityId": e.EntityID,
			"category": e.Category,
			"hash":     hex.EncodeToString(e.Hash[:]),
			"actor":    crypto.AddressFromRaw(e.Actor).String(),
		},
	}
}
