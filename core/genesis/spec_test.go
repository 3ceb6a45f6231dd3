package genesis

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"saccochain/core/state"
	"saccochain/crypto"
	"saccochain/native/coop"
	"saccochain/storage"
)

func genesisAddress(suffix byte) string {
	raw := make([]byte, crypto.AddressLength)
	raw[crypto.AddressLength-1] = suffix
	return crypto.NewAddress(raw).String()
}

func writeSpecFile(t *testing.T, spec *GenesisSpec) string {
	t.Helper()
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		t.Fatalf("marshal spec: %v", err)
	}
	path := filepath.Join(t.TempDir(), "genesis.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return path
}

func testSpec() *GenesisSpec {
	return &GenesisSpec{
		GenesisTime: "2024-01-01T00:00:00Z",
		Policy: &PolicySpec{
			MembershipContributionWei: "100",
			LoanQuorumBps:             6000,
		},
		Admins: []string{genesisAddress(0x01)},
		Alloc: map[string]string{
			genesisAddress(0x02): "5000",
		},
		Members: []MemberSpec{
			{Address: genesisAddress(0x03)},
			{Address: genesisAddress(0x04), JoinedAt: "2023-12-01T00:00:00Z"},
		},
		TreasurySeed: "50",
		VotingWeights: map[string]uint64{
			genesisAddress(0x03): 3,
		},
	}
}

func TestLoadGenesisSpecRoundTrip(t *testing.T) {
	path := writeSpecFile(t, testSpec())

	loaded, err := LoadGenesisSpec(path)
	if err != nil {
		t.Fatalf("load spec: %v", err)
	}
	if loaded.GenesisTimestamp().Unix() != 1704067200 {
		t.Fatalf("unexpected genesis time %d", loaded.GenesisTimestamp().Unix())
	}

	policy := loaded.ResolvedPolicy()
	if policy.MembershipContributionWei.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("contribution override lost: %s", policy.MembershipContributionWei)
	}
	if policy.LoanQuorumBps != 6000 {
		t.Fatalf("quorum override lost: %d", policy.LoanQuorumBps)
	}
	// Untouched fields keep their defaults.
	if policy.TreasuryQuorumBps != coop.DefaultTreasuryQuorumBps {
		t.Fatalf("treasury quorum should default, got %d", policy.TreasuryQuorumBps)
	}
	if loaded.Members[1].joinedAtUnix != 1701388800 {
		t.Fatalf("unexpected joinedAt %d", loaded.Members[1].joinedAtUnix)
	}
	if loaded.Members[0].joinedAtUnix != 1704067200 {
		t.Fatalf("default joinedAt should match genesis time, got %d", loaded.Members[0].joinedAtUnix)
	}
}

func TestLoadGenesisSpecRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")
	raw := `{"genesisTime":"2024-01-01T00:00:00Z","admins":["` + genesisAddress(0x01) + `"],"blockInterval":5}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	if _, err := LoadGenesisSpec(path); err == nil {
		t.Fatalf("expected unknown field rejection")
	}
}

func TestGenesisSpecValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*GenesisSpec)
		detail string
	}{
		{
			name:   "missing genesis time",
			mutate: func(s *GenesisSpec) { s.GenesisTime = "" },
			detail: "genesisTime",
		},
		{
			name:   "no admins",
			mutate: func(s *GenesisSpec) { s.Admins = nil },
			detail: "administrator",
		},
		{
			name:   "bad admin address",
			mutate: func(s *GenesisSpec) { s.Admins = []string{"nope"} },
			detail: "admins[0]",
		},
		{
			name: "duplicate member",
			mutate: func(s *GenesisSpec) {
				s.Members = append(s.Members, MemberSpec{Address: s.Members[0].Address})
			},
			detail: "duplicate",
		},
		{
			name: "member joined after genesis",
			mutate: func(s *GenesisSpec) {
				s.Members[0].JoinedAt = "2025-01-01T00:00:00Z"
			},
			detail: "joinedAt",
		},
		{
			name:   "malformed contribution",
			mutate: func(s *GenesisSpec) { s.Policy.MembershipContributionWei = "1e18" },
			detail: "membershipContributionWei",
		},
		{
			name:   "negative treasury seed",
			mutate: func(s *GenesisSpec) { s.TreasurySeed = "-5" },
			detail: "treasurySeed",
		},
		{
			name: "zero voting weight",
			mutate: func(s *GenesisSpec) {
				s.VotingWeights = map[string]uint64{genesisAddress(0x03): 0}
			},
			detail: "weight must be positive",
		},
		{
			name:   "zero alloc amount",
			mutate: func(s *GenesisSpec) { s.Alloc[genesisAddress(0x02)] = "0" },
			detail: "amount must be positive",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := testSpec()
			tc.mutate(spec)
			err := spec.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.detail) {
				t.Fatalf("expected error mentioning %q, got %v", tc.detail, err)
			}
		})
	}
}

func TestApplySeedsState(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	spec := testSpec()
	applied, err := Apply(spec, db)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied.Members != 2 {
		t.Fatalf("expected 2 members, got %d", applied.Members)
	}
	// Two contributions of 100 plus the explicit seed of 50.
	if applied.TreasuryBalance.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("unexpected treasury %s", applied.TreasuryBalance)
	}

	manager := state.NewManager(db)

	policy, ok, err := manager.CoopPolicy()
	if err != nil || !ok {
		t.Fatalf("policy lookup failed: ok=%t err=%v", ok, err)
	}
	if policy.LoanQuorumBps != 6000 {
		t.Fatalf("policy not persisted: %+v", policy)
	}

	admins, err := manager.CoopAdmins()
	if err != nil {
		t.Fatalf("admins: %v", err)
	}
	if len(admins) != 1 || admins[0].String() != genesisAddress(0x01) {
		t.Fatalf("unexpected admins: %v", admins)
	}

	memberAddr, err := crypto.DecodeAddress(genesisAddress(0x04))
	if err != nil {
		t.Fatalf("decode member: %v", err)
	}
	member, ok, err := manager.CoopMember(memberAddr)
	if err != nil || !ok {
		t.Fatalf("member lookup failed: ok=%t err=%v", ok, err)
	}
	if member.Status != coop.MemberStatusActive {
		t.Fatalf("expected active member, got %v", member.Status)
	}
	if member.JoinedAt != 1701388800 {
		t.Fatalf("unexpected joinedAt %d", member.JoinedAt)
	}
	if member.ContributionAmount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected contribution %s", member.ContributionAmount)
	}

	counters, err := manager.CoopCounters()
	if err != nil {
		t.Fatalf("counters: %v", err)
	}
	if counters.TotalMembers != 2 || counters.ActiveMembers != 2 {
		t.Fatalf("unexpected counters %+v", counters)
	}

	treasury, err := manager.GetAccount(state.ModuleAddress(coop.ModuleName))
	if err != nil {
		t.Fatalf("treasury account: %v", err)
	}
	if treasury.Balance.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("unexpected treasury balance %s", treasury.Balance)
	}

	allocAddr, err := crypto.DecodeAddress(genesisAddress(0x02))
	if err != nil {
		t.Fatalf("decode alloc: %v", err)
	}
	account, err := manager.GetAccount(allocAddr)
	if err != nil {
		t.Fatalf("alloc account: %v", err)
	}
	if account.Balance.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("unexpected alloc balance %s", account.Balance)
	}

	weighted, err := crypto.DecodeAddress(genesisAddress(0x03))
	if err != nil {
		t.Fatalf("decode weighted: %v", err)
	}
	weight, err := manager.IdentityVotingWeight(weighted)
	if err != nil {
		t.Fatalf("weight: %v", err)
	}
	if weight != 3 {
		t.Fatalf("unexpected weight %d", weight)
	}

	done, err := IsApplied(db)
	if err != nil {
		t.Fatalf("is applied: %v", err)
	}
	if !done {
		t.Fatalf("expected applied marker")
	}
	if _, err := Apply(spec, db); err == nil {
		t.Fatalf("expected reapply rejection")
	}
}

func TestApplyWithoutMembers(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	spec := &GenesisSpec{
		GenesisTime:  "2024-01-01T00:00:00Z",
		Admins:       []string{genesisAddress(0x01)},
		TreasurySeed: "75",
	}
	applied, err := Apply(spec, db)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied.Members != 0 {
		t.Fatalf("expected no members, got %d", applied.Members)
	}
	if applied.TreasuryBalance.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("unexpected treasury %s", applied.TreasuryBalance)
	}

	manager := state.NewManager(db)
	counters, err := manager.CoopCounters()
	if err != nil {
		t.Fatalf("counters: %v", err)
	}
	if counters.TotalMembers != 0 {
		t.Fatalf("expected zero members in counters, got %+v", counters)
	}
}
