package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"saccochain/crypto"
	"saccochain/native/coop"
)

// GenesisSpec describes the initial ledger state: the cooperative policy, the
// administrator set, prefunded accounts, and optionally a founding member
// roster seeded without individual register calls.
type GenesisSpec struct {
	GenesisTime   string            `json:"genesisTime"`
	Policy        *PolicySpec       `json:"policy,omitempty"`
	Admins        []string          `json:"admins"`
	Alloc         map[string]string `json:"alloc,omitempty"`         // addr -> wei
	Members       []MemberSpec      `json:"members,omitempty"`       // founding roster
	TreasurySeed  string            `json:"treasurySeed,omitempty"`  // extra wei on top of contributions
	VotingWeights map[string]uint64 `json:"votingWeights,omitempty"` // addr -> multiplier

	genesisTimestamp time.Time
	treasurySeedAmt  *big.Int
}

// PolicySpec mirrors coop.Policy with string amounts so operators can write
// wei values without scientific notation.
type PolicySpec struct {
	MembershipContributionWei string `json:"membershipContributionWei"`
	MinMembershipSeconds      uint64 `json:"minMembershipSeconds"`
	MaxLoanDurationSeconds    uint64 `json:"maxLoanDurationSeconds"`
	CooldownSeconds           uint64 `json:"cooldownSeconds"`
	EditingPeriodSeconds      uint64 `json:"editingPeriodSeconds"`
	VotingPeriodSeconds       uint64 `json:"votingPeriodSeconds"`
	MinInterestRateBps        uint64 `json:"minInterestRateBps"`
	MaxInterestRateBps        uint64 `json:"maxInterestRateBps"`
	LoanQuorumBps             uint64 `json:"loanQuorumBps"`
	TreasuryQuorumBps         uint64 `json:"treasuryQuorumBps"`
	WeightedVoting            bool   `json:"weightedVoting"`
}

// MemberSpec seeds a founding member. The contribution is the policy's
// membership contribution; the loader credits the treasury accordingly.
type MemberSpec struct {
	Address  string `json:"address"`
	JoinedAt string `json:"joinedAt,omitempty"` // RFC3339, defaults to genesisTime

	joinedAtUnix uint64
}

// LoadGenesisSpec reads and validates a genesis file.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec %q: %w", path, err)
	}
	return &spec, nil
}

// DevSpec builds a throwaway single-admin genesis for local development, with
// the default policy, no funded accounts, and no founding members.
func DevSpec(operator crypto.Address, genesisTime time.Time) *GenesisSpec {
	return &GenesisSpec{
		GenesisTime: genesisTime.UTC().Format(time.RFC3339),
		Admins:      []string{operator.String()},
	}
}

// GenesisTimestamp returns the parsed genesis time. Validate must have run.
func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// Validate checks the spec's structural invariants and caches the parsed
// values consumed by the loader.
func (s *GenesisSpec) Validate() error {
	parsed, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsed

	if s.Policy != nil && strings.TrimSpace(s.Policy.MembershipContributionWei) != "" {
		if _, ok := new(big.Int).SetString(strings.TrimSpace(s.Policy.MembershipContributionWei), 10); !ok {
			return fmt.Errorf("policy: invalid membershipContributionWei %q", s.Policy.MembershipContributionWei)
		}
	}
	policy := s.ResolvedPolicy()
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	if len(s.Admins) == 0 {
		return fmt.Errorf("admins: at least one administrator must be provided")
	}
	adminSeen := make(map[string]struct{}, len(s.Admins))
	for i, adminStr := range s.Admins {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(adminStr))
		if err != nil {
			return fmt.Errorf("admins[%d]: %w", i, err)
		}
		key := string(addr.Bytes())
		if _, dup := adminSeen[key]; dup {
			return fmt.Errorf("admins[%d]: duplicate address %q", i, adminStr)
		}
		adminSeen[key] = struct{}{}
	}

	if len(s.Alloc) > 0 {
		accounts := make([]string, 0, len(s.Alloc))
		for account := range s.Alloc {
			accounts = append(accounts, account)
		}
		sort.Strings(accounts)
		for _, account := range accounts {
			if _, err := crypto.DecodeAddress(account); err != nil {
				return fmt.Errorf("alloc[%q]: %w", account, err)
			}
			amount, err := parseAmountString(s.Alloc[account])
			if err != nil {
				return fmt.Errorf("alloc[%q]: %w", account, err)
			}
			if amount.Sign() == 0 {
				return fmt.Errorf("alloc[%q]: amount must be positive", account)
			}
		}
	}

	memberSeen := make(map[string]struct{}, len(s.Members))
	for i := range s.Members {
		member := &s.Members[i]
		addr, err := crypto.DecodeAddress(strings.TrimSpace(member.Address))
		if err != nil {
			return fmt.Errorf("members[%d]: %w", i, err)
		}
		key := string(addr.Bytes())
		if _, dup := memberSeen[key]; dup {
			return fmt.Errorf("members[%d]: duplicate address %q", i, member.Address)
		}
		memberSeen[key] = struct{}{}

		member.joinedAtUnix = uint64(s.genesisTimestamp.Unix())
		if strings.TrimSpace(member.JoinedAt) != "" {
			joined, err := parseGenesisTime(member.JoinedAt)
			if err != nil {
				return fmt.Errorf("members[%d]: joinedAt: %w", i, err)
			}
			if joined.After(s.genesisTimestamp) {
				return fmt.Errorf("members[%d]: joinedAt must not be after genesisTime", i)
			}
			member.joinedAtUnix = uint64(joined.Unix())
		}
	}

	seed, err := parseAmountString(s.TreasurySeed)
	if err != nil {
		return fmt.Errorf("treasurySeed: %w", err)
	}
	s.treasurySeedAmt = seed

	for addrStr, weight := range s.VotingWeights {
		if _, err := crypto.DecodeAddress(addrStr); err != nil {
			return fmt.Errorf("votingWeights[%q]: %w", addrStr, err)
		}
		if weight == 0 {
			return fmt.Errorf("votingWeights[%q]: weight must be positive", addrStr)
		}
	}
	return nil
}

// ResolvedPolicy materialises the coop policy the loader will persist,
// falling back to defaults for an omitted policy block.
func (s *GenesisSpec) ResolvedPolicy() coop.Policy {
	policy := coop.DefaultPolicy()
	p := s.Policy
	if p == nil {
		return policy
	}
	if strings.TrimSpace(p.MembershipContributionWei) != "" {
		if amount, ok := new(big.Int).SetString(strings.TrimSpace(p.MembershipContributionWei), 10); ok {
			policy.MembershipContributionWei = amount
		} else {
			policy.MembershipContributionWei = big.NewInt(0)
		}
	}
	if p.MinMembershipSeconds != 0 {
		policy.MinMembershipSeconds = p.MinMembershipSeconds
	}
	if p.MaxLoanDurationSeconds != 0 {
		policy.MaxLoanDurationSeconds = p.MaxLoanDurationSeconds
	}
	if p.CooldownSeconds != 0 {
		policy.CooldownSeconds = p.CooldownSeconds
	}
	if p.EditingPeriodSeconds != 0 {
		policy.EditingPeriodSeconds = p.EditingPeriodSeconds
	}
	if p.VotingPeriodSeconds != 0 {
		policy.VotingPeriodSeconds = p.VotingPeriodSeconds
	}
	if p.MinInterestRateBps != 0 {
		policy.MinInterestRateBps = p.MinInterestRateBps
	}
	if p.MaxInterestRateBps != 0 {
		policy.MaxInterestRateBps = p.MaxInterestRateBps
	}
	if p.LoanQuorumBps != 0 {
		policy.LoanQuorumBps = p.LoanQuorumBps
	}
	if p.TreasuryQuorumBps != 0 {
		policy.TreasuryQuorumBps = p.TreasuryQuorumBps
	}
	policy.WeightedVoting = p.WeightedVoting
	return policy
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}
