package state

import (
	"fmt"
	"math/big"

	"saccochain/native/restaking"
)

var restakingPositionKey = []byte("restaking/position")

// storedRestakingPosition mirrors restaking.Position for RLP encoding.
type storedRestakingPosition struct {
	Allocated     *big.Int
	YieldReported *big.Int
	LastYieldAt   uint64
}

// RestakingPosition returns the strategy allocation record, zeroed when the
// module has never allocated.
func (m *Manager) RestakingPosition() (*restaking.Position, error) {
	var stored storedRestakingPosition
	ok, err := m.KVGet(restakingPositionKey, &stored)
	if err != nil {
		return nil, err
	}
	position := &restaking.Position{}
	if ok {
		position.LastYieldAt = stored.LastYieldAt
		if stored.Allocated != nil {
			position.Allocated = new(big.Int).Set(stored.Allocated)
		}
		if stored.YieldReported != nil {
			position.YieldReported = new(big.Int).Set(stored.YieldReported)
		}
	}
	position.EnsureDefaults()
	return position, nil
}

// RestakingSetPosition persists the strategy allocation record.
func (m *Manager) RestakingSetPosition(position *restaking.Position) error {
	if position == nil {
		return fmt.Errorf("state: restaking position must not be nil")
	}
	stored := storedRestakingPosition{LastYieldAt: position.LastYieldAt}
	if position.Allocated != nil {
		stored.Allocated = new(big.Int).Set(position.Allocated)
	} else {
		stored.Allocated = big.NewInt(0)
	}
	if position.YieldReported != nil {
		stored.YieldReported = new(big.Int).Set(position.YieldReported)
	} else {
		stored.YieldReported = big.NewInt(0)
	}
	return m.KVPut(restakingPositionKey, stored)
}
