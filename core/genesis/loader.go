package genesis

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"saccochain/core/state"
	"saccochain/crypto"
	"saccochain/native/coop"
	"saccochain/storage"
)

var genesisAppliedKey = []byte("genesis/applied")

// Applied summarises what the loader wrote so callers can log or assert the
// initial state.
type Applied struct {
	Policy          coop.Policy
	Admins          []crypto.Address
	Members         int
	TreasuryBalance *big.Int
}

// IsApplied reports whether a genesis spec has already been applied to the
// supplied database.
func IsApplied(db storage.Database) (bool, error) {
	if db == nil {
		return false, fmt.Errorf("database must not be nil")
	}
	manager := state.NewManager(db)
	var done bool
	ok, err := manager.KVGet(genesisAppliedKey, &done)
	if err != nil {
		return false, err
	}
	return ok && done, nil
}

// Apply writes the genesis state described by the spec. The database must be
// fresh; reapplying genesis over existing state is refused so a node restart
// can never reset the ledger.
func Apply(spec *GenesisSpec, db storage.Database) (*Applied, error) {
	if spec == nil {
		return nil, fmt.Errorf("genesis spec must not be nil")
	}
	if db == nil {
		return nil, fmt.Errorf("database must not be nil")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	done, err := IsApplied(db)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, fmt.Errorf("genesis already applied")
	}

	manager := state.NewManager(db)
	if err := state.EnsureStateVersion(db, false); err != nil {
		return nil, err
	}

	policy := spec.ResolvedPolicy()
	if err := manager.CoopSetPolicy(&policy); err != nil {
		return nil, fmt.Errorf("persist policy: %w", err)
	}

	admins := make([]crypto.Address, 0, len(spec.Admins))
	for _, adminStr := range spec.Admins {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(adminStr))
		if err != nil {
			return nil, fmt.Errorf("admins: %w", err)
		}
		admins = append(admins, addr)
	}
	if err := manager.CoopSetAdmins(admins); err != nil {
		return nil, fmt.Errorf("persist admins: %w", err)
	}

	// Allocations, addresses sorted for determinism.
	allocAddresses := make([]string, 0, len(spec.Alloc))
	for addrStr := range spec.Alloc {
		allocAddresses = append(allocAddresses, addrStr)
	}
	sort.Strings(allocAddresses)
	for _, addrStr := range allocAddresses {
		addr, err := crypto.DecodeAddress(addrStr)
		if err != nil {
			return nil, fmt.Errorf("alloc[%q]: %w", addrStr, err)
		}
		amount, err := parseAmountString(spec.Alloc[addrStr])
		if err != nil {
			return nil, fmt.Errorf("alloc[%q]: %w", addrStr, err)
		}
		account, err := manager.GetAccount(addr)
		if err != nil {
			return nil, fmt.Errorf("load account %q: %w", addrStr, err)
		}
		account.Balance = new(big.Int).Set(amount)
		if err := manager.PutAccount(addr, account); err != nil {
			return nil, fmt.Errorf("persist account %q: %w", addrStr, err)
		}
	}

	// Founding members. Each contributes the policy amount; the treasury is
	// credited by the same total so the exit-share arithmetic holds from the
	// first block of activity.
	contribution := policy.MembershipContributionWei
	treasuryTotal := new(big.Int).Mul(contribution, big.NewInt(int64(len(spec.Members))))
	for i := range spec.Members {
		memberSpec := &spec.Members[i]
		addr, err := crypto.DecodeAddress(strings.TrimSpace(memberSpec.Address))
		if err != nil {
			return nil, fmt.Errorf("members[%d]: %w", i, err)
		}
		member := &coop.Member{
			Address:            addr,
			Status:             coop.MemberStatusActive,
			JoinedAt:           memberSpec.joinedAtUnix,
			ContributionAmount: new(big.Int).Set(contribution),
			ShareBalance:       new(big.Int).Set(contribution),
		}
		if err := manager.CoopPutMember(member); err != nil {
			return nil, fmt.Errorf("members[%d]: %w", i, err)
		}
		if err := manager.CoopAppendMemberAddress(addr); err != nil {
			return nil, fmt.Errorf("members[%d]: %w", i, err)
		}
	}
	if len(spec.Members) > 0 {
		counters := &coop.Counters{
			TotalMembers:  uint64(len(spec.Members)),
			ActiveMembers: uint64(len(spec.Members)),
		}
		if err := manager.CoopSetCounters(counters); err != nil {
			return nil, fmt.Errorf("persist counters: %w", err)
		}
	}

	if spec.treasurySeedAmt != nil && spec.treasurySeedAmt.Sign() > 0 {
		treasuryTotal.Add(treasuryTotal, spec.treasurySeedAmt)
	}
	treasuryAddr := state.ModuleAddress(coop.ModuleName)
	if treasuryTotal.Sign() > 0 {
		treasury, err := manager.GetAccount(treasuryAddr)
		if err != nil {
			return nil, fmt.Errorf("load treasury: %w", err)
		}
		treasury.Balance = new(big.Int).Set(treasuryTotal)
		if err := manager.PutAccount(treasuryAddr, treasury); err != nil {
			return nil, fmt.Errorf("persist treasury: %w", err)
		}
	}

	weightAddresses := make([]string, 0, len(spec.VotingWeights))
	for addrStr := range spec.VotingWeights {
		weightAddresses = append(weightAddresses, addrStr)
	}
	sort.Strings(weightAddresses)
	for _, addrStr := range weightAddresses {
		addr, err := crypto.DecodeAddress(addrStr)
		if err != nil {
			return nil, fmt.Errorf("votingWeights[%q]: %w", addrStr, err)
		}
		if err := manager.IdentitySetVotingWeight(addr, spec.VotingWeights[addrStr]); err != nil {
			return nil, fmt.Errorf("votingWeights[%q]: %w", addrStr, err)
		}
	}

	if err := manager.KVPut(genesisAppliedKey, true); err != nil {
		return nil, fmt.Errorf("mark genesis applied: %w", err)
	}

	return &Applied{
		Policy:          policy,
		Admins:          admins,
		Members:         len(spec.Members),
		TreasuryBalance: new(big.Int).Set(treasuryTotal),
	}, nil
}
