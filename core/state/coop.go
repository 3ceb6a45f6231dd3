package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"saccochain/crypto"
	"saccochain/native/coop"
)

var (
	coopPolicyKey           = []byte("coop/policy")
	coopCountersKey         = []byte("coop/counters")
	coopMemberPrefix        = []byte("coop/member/")
	coopMemberListKey       = []byte("coop/member-list")
	coopLoanProposalPrefix  = []byte("coop/loan-proposal/")
	coopTreasuryProposalPre = []byte("coop/treasury-proposal/")
	coopVotePrefix          = []byte("coop/vote/")
	coopLoanPrefix          = []byte("coop/loan/")
	coopActiveLoansKey      = []byte("coop/active-loans")
	coopRewardsPrefix       = []byte("coop/rewards/")
	coopRewardTotalsKey     = []byte("coop/reward-totals")
	coopAdminListKey        = []byte("coop/admins")
	coopAuditPrefix         = []byte("coop/audit/")
	coopAuditSeqKey         = []byte("coop/audit-seq")
)

func coopMemberKey(addr crypto.Address) []byte {
	raw := addr.Raw()
	buf := make([]byte, len(coopMemberPrefix)+len(raw))
	copy(buf, coopMemberPrefix)
	copy(buf[len(coopMemberPrefix):], raw[:])
	return buf
}

func coopNumberedKey(prefix []byte, id uint64) []byte {
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[len(prefix):], id)
	return buf
}

func coopVoteKey(domain coop.VoteDomain, proposalID uint64, voter crypto.Address) []byte {
	raw := voter.Raw()
	buf := make([]byte, len(coopVotePrefix)+len(domain)+1+8+1+len(raw))
	offset := copy(buf, coopVotePrefix)
	offset += copy(buf[offset:], domain)
	buf[offset] = '/'
	offset++
	binary.BigEndian.PutUint64(buf[offset:], proposalID)
	offset += 8
	buf[offset] = '/'
	offset++
	copy(buf[offset:], raw[:])
	return buf
}

func coopRewardsKey(addr crypto.Address) []byte {
	raw := addr.Raw()
	buf := make([]byte, len(coopRewardsPrefix)+len(raw))
	copy(buf, coopRewardsPrefix)
	copy(buf[len(coopRewardsPrefix):], raw[:])
	return buf
}

type storedCoopMember struct {
	Address       [20]byte
	Status        uint8
	JoinedAt      uint64
	Contribution  *big.Int
	ShareBalance  *big.Int
	HasActiveLoan bool
	LastLoanAt    uint64
}

func newStoredCoopMember(member *coop.Member) *storedCoopMember {
	stored := &storedCoopMember{
		Address:       member.Address.Raw(),
		Status:        uint8(member.Status),
		JoinedAt:      member.JoinedAt,
		Contribution:  big.NewInt(0),
		ShareBalance:  big.NewInt(0),
		HasActiveLoan: member.HasActiveLoan,
		LastLoanAt:    member.LastLoanAt,
	}
	if member.ContributionAmount != nil {
		stored.Contribution = new(big.Int).Set(member.ContributionAmount)
	}
	if member.ShareBalance != nil {
		stored.ShareBalance = new(big.Int).Set(member.ShareBalance)
	}
	return stored
}

func (s *storedCoopMember) toMember() *coop.Member {
	member := &coop.Member{
		Address:            crypto.AddressFromRaw(s.Address),
		Status:             coop.MemberStatus(s.Status),
		JoinedAt:           s.JoinedAt,
		ContributionAmount: big.NewInt(0),
		ShareBalance:       big.NewInt(0),
		HasActiveLoan:      s.HasActiveLoan,
		LastLoanAt:         s.LastLoanAt,
	}
	if s.Contribution != nil {
		member.ContributionAmount = new(big.Int).Set(s.Contribution)
	}
	if s.ShareBalance != nil {
		member.ShareBalance = new(big.Int).Set(s.ShareBalance)
	}
	return member
}

type storedLoanProposal struct {
	ID              uint64
	Borrower        [20]byte
	Amount          *big.Int
	InterestRateBps uint64
	DurationSeconds uint64
	TotalRepayment  *big.Int
	CreatedAt       uint64
	EditingEndsAt   uint64
	VotingEndsAt    uint64
	Status          uint8
	ForVotes        uint64
	AgainstVotes    uint64
}

func newStoredLoanProposal(proposal *coop.LoanProposal) *storedLoanProposal {
	stored := &storedLoanProposal{
		ID:              proposal.ID,
		Borrower:        proposal.Borrower.Raw(),
		Amount:          big.NewInt(0),
		InterestRateBps: proposal.InterestRateBps,
		DurationSeconds: proposal.DurationSeconds,
		TotalRepayment:  big.NewInt(0),
		CreatedAt:       proposal.CreatedAt,
		EditingEndsAt:   proposal.EditingEndsAt,
		VotingEndsAt:    proposal.VotingEndsAt,
		Status:          uint8(proposal.Status),
		ForVotes:        proposal.ForVotes,
		AgainstVotes:    proposal.AgainstVotes,
	}
	if proposal.Amount != nil {
		stored.Amount = new(big.Int).Set(proposal.Amount)
	}
	if proposal.TotalRepayment != nil {
		stored.TotalRepayment = new(big.Int).Set(proposal.TotalRepayment)
	}
	return stored
}

func (s *storedLoanProposal) toLoanProposal() *coop.LoanProposal {
	proposal := &coop.LoanProposal{
		ID:              s.ID,
		Borrower:        crypto.AddressFromRaw(s.Borrower),
		Amount:          big.NewInt(0),
		InterestRateBps: s.InterestRateBps,
		DurationSeconds: s.DurationSeconds,
		TotalRepayment:  big.NewInt(0),
		CreatedAt:       s.CreatedAt,
		EditingEndsAt:   s.EditingEndsAt,
		VotingEndsAt:    s.VotingEndsAt,
		Status:          coop.ProposalStatus(s.Status),
		ForVotes:        s.ForVotes,
		AgainstVotes:    s.AgainstVotes,
	}
	if s.Amount != nil {
		proposal.Amount = new(big.Int).Set(s.Amount)
	}
	if s.TotalRepayment != nil {
		proposal.TotalRepayment = new(big.Int).Set(s.TotalRepayment)
	}
	return proposal
}

type storedTreasuryProposal struct {
	ID           uint64
	Proposer     [20]byte
	Amount       *big.Int
	Destination  [20]byte
	Reason       string
	CreatedAt    uint64
	VotingEndsAt uint64
	Status       uint8
	ForVotes     uint64
	AgainstVotes uint64
}

func newStoredTreasuryProposal(proposal *coop.TreasuryProposal) *storedTreasuryProposal {
	stored := &storedTreasuryProposal{
		ID:           proposal.ID,
		Proposer:     proposal.Proposer.Raw(),
		Amount:       big.NewInt(0),
		Destination:  proposal.Destination.Raw(),
		Reason:       proposal.Reason,
		CreatedAt:    proposal.CreatedAt,
		VotingEndsAt: proposal.VotingEndsAt,
		Status:       uint8(proposal.Status),
		ForVotes:     proposal.ForVotes,
		AgainstVotes: proposal.AgainstVotes,
	}
	if proposal.Amount != nil {
		stored.Amount = new(big.Int).Set(proposal.Amount)
	}
	return stored
}

func (s *storedTreasuryProposal) toTreasuryProposal() *coop.TreasuryProposal {
	proposal := &coop.TreasuryProposal{
		ID:           s.ID,
		Proposer:     crypto.AddressFromRaw(s.Proposer),
		Amount:       big.NewInt(0),
		Destination:  crypto.AddressFromRaw(s.Destination),
		Reason:       s.Reason,
		CreatedAt:    s.CreatedAt,
		VotingEndsAt: s.VotingEndsAt,
		Status:       coop.ProposalStatus(s.Status),
		ForVotes:     s.ForVotes,
		AgainstVotes: s.AgainstVotes,
	}
	if s.Amount != nil {
		proposal.Amount = new(big.Int).Set(s.Amount)
	}
	return proposal
}

type storedLoan struct {
	ID              uint64
	ProposalID      uint64
	Borrower        [20]byte
	Principal       *big.Int
	InterestRateBps uint64
	TotalRepayment  *big.Int
	StartedAt       uint64
	DueAt           uint64
	Status          uint8
	AmountRepaid    *big.Int
}

func newStoredLoan(loan *coop.Loan) *storedLoan {
	stored := &storedLoan{
		ID:              loan.ID,
		ProposalID:      loan.ProposalID,
		Borrower:        loan.Borrower.Raw(),
		Principal:       big.NewInt(0),
		InterestRateBps: loan.InterestRateBps,
		TotalRepayment:  big.NewInt(0),
		StartedAt:       loan.StartedAt,
		DueAt:           loan.DueAt,
		Status:          uint8(loan.Status),
		AmountRepaid:    big.NewInt(0),
	}
	if loan.Principal != nil {
		stored.Principal = new(big.Int).Set(loan.Principal)
	}
	if loan.TotalRepayment != nil {
		stored.TotalRepayment = new(big.Int).Set(loan.TotalRepayment)
	}
	if loan.AmountRepaid != nil {
		stored.AmountRepaid = new(big.Int).Set(loan.AmountRepaid)
	}
	return stored
}

func (s *storedLoan) toLoan() *coop.Loan {
	loan := &coop.Loan{
		ID:              s.ID,
		ProposalID:      s.ProposalID,
		Borrower:        crypto.AddressFromRaw(s.Borrower),
		Principal:       big.NewInt(0),
		InterestRateBps: s.InterestRateBps,
		TotalRepayment:  big.NewInt(0),
		StartedAt:       s.StartedAt,
		DueAt:           s.DueAt,
		Status:          coop.LoanStatus(s.Status),
		AmountRepaid:    big.NewInt(0),
	}
	if s.Principal != nil {
		loan.Principal = new(big.Int).Set(s.Principal)
	}
	if s.TotalRepayment != nil {
		loan.TotalRepayment = new(big.Int).Set(s.TotalRepayment)
	}
	if s.AmountRepaid != nil {
		loan.AmountRepaid = new(big.Int).Set(s.AmountRepaid)
	}
	return loan
}

type storedVote struct {
	ProposalID uint64
	Voter      [20]byte
	Support    bool
	Weight     uint64
	Timestamp  uint64
}

type storedRewardBalance struct {
	Interest *big.Int
	Yield    *big.Int
}

type storedAuditRecord struct {
	Sequence  uint64
	Timestamp uint64
	Event     string
	SubjectID uint64
	Actor     [20]byte
	Details   string
}

func (s *storedAuditRecord) toAuditRecord() coop.AuditRecord {
	return coop.AuditRecord{
		Sequence:  s.Sequence,
		Timestamp: s.Timestamp,
		Event:     coop.AuditEvent(s.Event),
		SubjectID: s.SubjectID,
		Actor:     crypto.AddressFromRaw(s.Actor),
		Details:   s.Details,
	}
}

// CoopPolicy returns the persisted cooperative policy, if any. Callers fall
// back to coop.DefaultPolicy when the boolean is false.
func (m *Manager) CoopPolicy() (*coop.Policy, bool, error) {
	policy := new(coop.Policy)
	ok, err := m.KVGet(coopPolicyKey, policy)
	if err != nil || !ok {
		return nil, false, err
	}
	if policy.MembershipContributionWei == nil {
		policy.MembershipContributionWei = big.NewInt(0)
	}
	return policy, true, nil
}

// CoopSetPolicy persists the cooperative policy.
func (m *Manager) CoopSetPolicy(policy *coop.Policy) error {
	if policy == nil {
		return fmt.Errorf("coop state: nil policy")
	}
	return m.KVPut(coopPolicyKey, policy.Clone())
}

// CoopCounters returns the cooperative's global counters. A fresh state
// yields zeroed counters.
func (m *Manager) CoopCounters() (*coop.Counters, error) {
	counters := new(coop.Counters)
	if _, err := m.KVGet(coopCountersKey, counters); err != nil {
		return nil, err
	}
	return counters, nil
}

// CoopSetCounters persists the cooperative's global counters.
func (m *Manager) CoopSetCounters(counters *coop.Counters) error {
	if counters == nil {
		return fmt.Errorf("coop state: nil counters")
	}
	return m.KVPut(coopCountersKey, counters)
}

// CoopMember loads the membership record for the supplied address.
func (m *Manager) CoopMember(addr crypto.Address) (*coop.Member, bool, error) {
	stored := new(storedCoopMember)
	ok, err := m.KVGet(coopMemberKey(addr), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toMember(), true, nil
}

// CoopMemberActive reports whether addr holds an active membership, without
// materialising the record.
func (m *Manager) CoopMemberActive(addr crypto.Address) (bool, error) {
	member, ok, err := m.CoopMember(addr)
	if err != nil || !ok {
		return false, err
	}
	return member.Status == coop.MemberStatusActive, nil
}

// CoopPutMember persists the supplied membership record.
func (m *Manager) CoopPutMember(member *coop.Member) error {
	if member == nil {
		return fmt.Errorf("coop state: nil member")
	}
	if member.Address.IsZero() {
		return fmt.Errorf("coop state: member address must not be zero")
	}
	return m.KVPut(coopMemberKey(member.Address), newStoredCoopMember(member))
}

// CoopMemberAddresses returns every address that has ever registered, in
// registration order. Exited members stay in the list; their records carry
// the inactive status.
func (m *Manager) CoopMemberAddresses() ([]crypto.Address, error) {
	var raws [][]byte
	if err := m.KVGetList(coopMemberListKey, &raws); err != nil {
		return nil, err
	}
	addrs := make([]crypto.Address, 0, len(raws))
	for _, raw := range raws {
		addrs = append(addrs, crypto.NewAddress(raw))
	}
	return addrs, nil
}

// CoopAppendMemberAddress records a first-time registration in the member
// index. Re-appends of the same address are ignored.
func (m *Manager) CoopAppendMemberAddress(addr crypto.Address) error {
	if addr.IsZero() {
		return fmt.Errorf("coop state: member address must not be zero")
	}
	return m.KVAppend(coopMemberListKey, addr.Bytes())
}

// CoopLoanProposal loads a loan proposal by identifier.
func (m *Manager) CoopLoanProposal(id uint64) (*coop.LoanProposal, bool, error) {
	stored := new(storedLoanProposal)
	ok, err := m.KVGet(coopNumberedKey(coopLoanProposalPrefix, id), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toLoanProposal(), true, nil
}

// CoopPutLoanProposal persists the supplied loan proposal.
func (m *Manager) CoopPutLoanProposal(proposal *coop.LoanProposal) error {
	if proposal == nil {
		return fmt.Errorf("coop state: nil loan proposal")
	}
	if proposal.ID == 0 {
		return fmt.Errorf("coop state: loan proposal id must not be zero")
	}
	return m.KVPut(coopNumberedKey(coopLoanProposalPrefix, proposal.ID), newStoredLoanProposal(proposal))
}

// CoopTreasuryProposal loads a treasury withdrawal proposal by identifier.
func (m *Manager) CoopTreasuryProposal(id uint64) (*coop.TreasuryProposal, bool, error) {
	stored := new(storedTreasuryProposal)
	ok, err := m.KVGet(coopNumberedKey(coopTreasuryProposalPre, id), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toTreasuryProposal(), true, nil
}

// CoopPutTreasuryProposal persists the supplied treasury proposal.
func (m *Manager) CoopPutTreasuryProposal(proposal *coop.TreasuryProposal) error {
	if proposal == nil {
		return fmt.Errorf("coop state: nil treasury proposal")
	}
	if proposal.ID == 0 {
		return fmt.Errorf("coop state: treasury proposal id must not be zero")
	}
	return m.KVPut(coopNumberedKey(coopTreasuryProposalPre, proposal.ID), newStoredTreasuryProposal(proposal))
}

// CoopVote loads the ballot cast by the supplied voter on the identified
// proposal, if one exists.
func (m *Manager) CoopVote(domain coop.VoteDomain, proposalID uint64, voter crypto.Address) (*coop.Vote, bool, error) {
	stored := new(storedVote)
	ok, err := m.KVGet(coopVoteKey(domain, proposalID, voter), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	vote := &coop.Vote{
		ProposalID: stored.ProposalID,
		Voter:      crypto.AddressFromRaw(stored.Voter),
		Support:    stored.Support,
		Weight:     stored.Weight,
		Timestamp:  stored.Timestamp,
	}
	return vote, true, nil
}

// CoopPutVote persists a ballot under its (domain, proposal, voter) key.
func (m *Manager) CoopPutVote(domain coop.VoteDomain, vote *coop.Vote) error {
	if vote == nil {
		return fmt.Errorf("coop state: nil vote")
	}
	if vote.Voter.IsZero() {
		return fmt.Errorf("coop state: voter address must not be zero")
	}
	stored := &storedVote{
		ProposalID: vote.ProposalID,
		Voter:      vote.Voter.Raw(),
		Support:    vote.Support,
		Weight:     vote.Weight,
		Timestamp:  vote.Timestamp,
	}
	return m.KVPut(coopVoteKey(domain, vote.ProposalID, vote.Voter), stored)
}

// CoopLoan loads a disbursed loan by identifier.
func (m *Manager) CoopLoan(id uint64) (*coop.Loan, bool, error) {
	stored := new(storedLoan)
	ok, err := m.KVGet(coopNumberedKey(coopLoanPrefix, id), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toLoan(), true, nil
}

// CoopPutLoan persists the supplied loan.
func (m *Manager) CoopPutLoan(loan *coop.Loan) error {
	if loan == nil {
		return fmt.Errorf("coop state: nil loan")
	}
	if loan.ID == 0 {
		return fmt.Errorf("coop state: loan id must not be zero")
	}
	return m.KVPut(coopNumberedKey(coopLoanPrefix, loan.ID), newStoredLoan(loan))
}

// CoopActiveLoanIDs returns the identifiers of loans awaiting repayment.
func (m *Manager) CoopActiveLoanIDs() ([]uint64, error) {
	var ids []uint64
	if err := m.KVGetList(coopActiveLoansKey, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// CoopSetActiveLoanIDs replaces the active loan index.
func (m *Manager) CoopSetActiveLoanIDs(ids []uint64) error {
	if ids == nil {
		ids = []uint64{}
	}
	return m.KVPut(coopActiveLoansKey, ids)
}

// CoopRewards returns the claimable reward balance for the supplied address.
// Addresses without accrued rewards yield a zeroed balance.
func (m *Manager) CoopRewards(addr crypto.Address) (*coop.RewardBalance, error) {
	stored := new(storedRewardBalance)
	ok, err := m.KVGet(coopRewardsKey(addr), stored)
	if err != nil {
		return nil, err
	}
	balance := &coop.RewardBalance{Interest: big.NewInt(0), Yield: big.NewInt(0)}
	if !ok {
		return balance, nil
	}
	if stored.Interest != nil {
		balance.Interest = new(big.Int).Set(stored.Interest)
	}
	if stored.Yield != nil {
		balance.Yield = new(big.Int).Set(stored.Yield)
	}
	return balance, nil
}

// CoopPutRewards persists the claimable reward balance for an address.
func (m *Manager) CoopPutRewards(addr crypto.Address, balance *coop.RewardBalance) error {
	if addr.IsZero() {
		return fmt.Errorf("coop state: rewards address must not be zero")
	}
	if balance == nil {
		return fmt.Errorf("coop state: nil reward balance")
	}
	stored := &storedRewardBalance{Interest: big.NewInt(0), Yield: big.NewInt(0)}
	if balance.Interest != nil {
		stored.Interest = new(big.Int).Set(balance.Interest)
	}
	if balance.Yield != nil {
		stored.Yield = new(big.Int).Set(balance.Yield)
	}
	return m.KVPut(coopRewardsKey(addr), stored)
}

// CoopRewardTotals returns the outstanding reward liability across all
// members.
func (m *Manager) CoopRewardTotals() (*coop.RewardTotals, error) {
	stored := new(storedRewardBalance)
	ok, err := m.KVGet(coopRewardTotalsKey, stored)
	if err != nil {
		return nil, err
	}
	totals := &coop.RewardTotals{Interest: big.NewInt(0), Yield: big.NewInt(0)}
	if !ok {
		return totals, nil
	}
	if stored.Interest != nil {
		totals.Interest = new(big.Int).Set(stored.Interest)
	}
	if stored.Yield != nil {
		totals.Yield = new(big.Int).Set(stored.Yield)
	}
	return totals, nil
}

// CoopSetRewardTotals persists the outstanding reward liability.
func (m *Manager) CoopSetRewardTotals(totals *coop.RewardTotals) error {
	if totals == nil {
		return fmt.Errorf("coop state: nil reward totals")
	}
	stored := &storedRewardBalance{Interest: big.NewInt(0), Yield: big.NewInt(0)}
	if totals.Interest != nil {
		stored.Interest = new(big.Int).Set(totals.Interest)
	}
	if totals.Yield != nil {
		stored.Yield = new(big.Int).Set(totals.Yield)
	}
	return m.KVPut(coopRewardTotalsKey, stored)
}

// CoopAdmins returns the configured administrator addresses.
func (m *Manager) CoopAdmins() ([]crypto.Address, error) {
	var raws [][]byte
	if err := m.KVGetList(coopAdminListKey, &raws); err != nil {
		return nil, err
	}
	admins := make([]crypto.Address, 0, len(raws))
	for _, raw := range raws {
		admins = append(admins, crypto.NewAddress(raw))
	}
	return admins, nil
}

// CoopSetAdmins replaces the administrator set.
func (m *Manager) CoopSetAdmins(admins []crypto.Address) error {
	raws := make([][]byte, 0, len(admins))
	for _, admin := range admins {
		if admin.IsZero() {
			return fmt.Errorf("coop state: admin address must not be zero")
		}
		raws = append(raws, admin.Bytes())
	}
	return m.KVPut(coopAdminListKey, raws)
}

// CoopAppendAudit assigns the next audit sequence number to the supplied
// record and persists it. The assigned sequence is returned so callers can
// reference the entry.
func (m *Manager) CoopAppendAudit(record *coop.AuditRecord) (uint64, error) {
	if record == nil {
		return 0, fmt.Errorf("coop state: nil audit record")
	}
	var seq uint64
	if _, err := m.KVGet(coopAuditSeqKey, &seq); err != nil {
		return 0, err
	}
	seq++
	stored := &storedAuditRecord{
		Sequence:  seq,
		Timestamp: record.Timestamp,
		Event:     string(record.Event),
		SubjectID: record.SubjectID,
		Actor:     record.Actor.Raw(),
		Details:   record.Details,
	}
	if err := m.KVPut(coopNumberedKey(coopAuditPrefix, seq), stored); err != nil {
		return 0, err
	}
	if err := m.KVPut(coopAuditSeqKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// CoopAuditHead returns the sequence number of the most recent audit record,
// or zero when the log is empty.
func (m *Manager) CoopAuditHead() (uint64, error) {
	var seq uint64
	if _, err := m.KVGet(coopAuditSeqKey, &seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// CoopAuditLog returns up to limit audit records with sequence numbers
// strictly greater than afterSeq, in sequence order. Operators page through
// the log by passing the last sequence they have seen.
func (m *Manager) CoopAuditLog(afterSeq uint64, limit int) ([]coop.AuditRecord, error) {
	head, err := m.CoopAuditHead()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	records := make([]coop.AuditRecord, 0, limit)
	for seq := afterSeq + 1; seq <= head && len(records) < limit; seq++ {
		stored := new(storedAuditRecord)
		ok, err := m.KVGet(coopNumberedKey(coopAuditPrefix, seq), stored)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		records = append(records, stored.toAuditRecord())
	}
	return records, nil
}
