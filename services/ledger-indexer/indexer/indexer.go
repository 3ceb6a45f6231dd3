package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"saccochain/core/events"
	"saccochain/observability"
)

const checkpointID = 1

// StreamFrame mirrors one websocket frame of the node's event feed.
type StreamFrame struct {
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Indexer projects ledger stream frames into the SQL mirror.
type Indexer struct {
	db *gorm.DB
}

// OpenDatabase opens the SQL mirror for the configured driver.
func OpenDatabase(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("indexer: unsupported driver %q", driver)
	}
}

// New migrates the mirror schema and returns an indexer bound to db.
func New(db *gorm.DB) (*Indexer, error) {
	if db == nil {
		return nil, errors.New("indexer: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Indexer{db: db}, nil
}

// Cursor returns the stream cursor the next subscription should resume from.
func (ix *Indexer) Cursor() (string, error) {
	var checkpoint Checkpoint
	err := ix.db.First(&checkpoint, "id = ?", checkpointID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return checkpoint.Cursor, nil
}

// Apply records the frame in the event feed and updates the projections. The
// sequence number deduplicates backlog replays after a reconnect, so applying
// the same frame twice is a no-op.
func (ix *Indexer) Apply(frame StreamFrame) error {
	if frame.Sequence == 0 {
		return errors.New("indexer: frame missing sequence")
	}
	err := ix.db.Transaction(func(tx *gorm.DB) error {
		encoded, err := json.Marshal(frame.Attributes)
		if err != nil {
			return fmt.Errorf("encode attributes: %w", err)
		}
		event := LedgerEvent{Sequence: frame.Sequence, Type: frame.Type, Attributes: string(encoded)}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&event)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := projectFrame(tx, frame); err != nil {
			return err
		}
		return saveCheckpoint(tx, frame.Cursor)
	})
	if err != nil {
		observability.Indexer().RecordError("apply")
		return err
	}
	observability.Indexer().RecordApplied(frame.Type, frame.Sequence)
	return nil
}

func projectFrame(tx *gorm.DB, frame StreamFrame) error {
	attrs := frame.Attributes
	seq := frame.Sequence
	switch frame.Type {
	case events.TypeCoopMemberRegistered:
		return upsertMember(tx, attrs["address"], func(m *Member) {
			m.State = MemberStateActive
			m.Contribution = attrs["contribution"]
			m.ExitShare = ""
			m.UpdatedSeq = seq
		})
	case events.TypeCoopMemberExited:
		return upsertMember(tx, attrs["address"], func(m *Member) {
			m.State = MemberStateExited
			m.ExitShare = attrs["share"]
			m.UpdatedSeq = seq
		})
	case events.TypeCoopLoanProposed:
		return upsertLoanProposal(tx, parseUintAttr(attrs["proposalId"]), func(p *LoanProposal) {
			p.Borrower = attrs["borrower"]
			p.Amount = attrs["amount"]
			p.RateBps = parseUintAttr(attrs["rateBps"])
			p.TotalRepayment = attrs["repayment"]
			p.EditingEndsAt = parseUintAttr(attrs["editingEndsAt"])
			p.VotingEndsAt = parseUintAttr(attrs["votingEndsAt"])
			p.State = ProposalStateOpen
			p.UpdatedSeq = seq
		})
	case events.TypeCoopLoanEdited:
		return upsertLoanProposal(tx, parseUintAttr(attrs["proposalId"]), func(p *LoanProposal) {
			p.Amount = attrs["amount"]
			p.RateBps = parseUintAttr(attrs["rateBps"])
			p.TotalRepayment = attrs["repayment"]
			p.UpdatedSeq = seq
		})
	case events.TypeCoopLoanVote:
		return upsertLoanProposal(tx, parseUintAttr(attrs["proposalId"]), func(p *LoanProposal) {
			p.ForVotes = parseUintAttr(attrs["for"])
			p.AgainstVotes = parseUintAttr(attrs["against"])
			p.UpdatedSeq = seq
		})
	case events.TypeCoopLoanApproved:
		return upsertLoanProposal(tx, parseUintAttr(attrs["proposalId"]), func(p *LoanProposal) {
			p.State = ProposalStateApproved
			p.ForVotes = parseUintAttr(attrs["for"])
			p.UpdatedSeq = seq
		})
	case events.TypeCoopLoanDisbursed:
		return upsertLoan(tx, parseUintAttr(attrs["loanId"]), func(l *Loan) {
			l.ProposalID = parseUintAttr(attrs["proposalId"])
			l.Borrower = attrs["borrower"]
			l.Principal = attrs["principal"]
			l.DueAt = parseUintAttr(attrs["dueAt"])
			l.State = LoanStateActive
			l.RepaidAmount = "0"
			l.InterestPaid = "0"
			l.UpdatedSeq = seq
		})
	case events.TypeCoopLoanRepaid:
		return upsertLoan(tx, parseUintAttr(attrs["loanId"]), func(l *Loan) {
			l.State = LoanStateRepaid
			l.RepaidAmount = attrs["amount"]
			l.InterestPaid = attrs["interest"]
			l.UpdatedSeq = seq
		})
	case events.TypeCoopTreasuryProposed:
		return upsertTreasuryProposal(tx, parseUintAttr(attrs["proposalId"]), func(p *TreasuryProposal) {
			p.Proposer = attrs["proposer"]
			p.Amount = attrs["amount"]
			p.Destination = attrs["destination"]
			p.VotingEndsAt = parseUintAttr(attrs["votingEndsAt"])
			p.State = ProposalStateOpen
			p.UpdatedSeq = seq
		})
	case events.TypeCoopTreasuryVote:
		return upsertTreasuryProposal(tx, parseUintAttr(attrs["proposalId"]), func(p *TreasuryProposal) {
			p.ForVotes = parseUintAttr(attrs["for"])
			p.AgainstVotes = parseUintAttr(attrs["against"])
			p.UpdatedSeq = seq
		})
	case events.TypeCoopTreasuryApproved:
		return upsertTreasuryProposal(tx, parseUintAttr(attrs["proposalId"]), func(p *TreasuryProposal) {
			p.State = ProposalStateApproved
			p.ForVotes = parseUintAttr(attrs["for"])
			p.UpdatedSeq = seq
		})
	}
	// Other ledger events stay in the raw feed without a projection.
	return nil
}

func upsertMember(tx *gorm.DB, address string, mutate func(*Member)) error {
	if address == "" {
		return errors.New("indexer: member event missing address")
	}
	var member Member
	err := tx.First(&member, "address = ?", address).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		member = Member{Address: address}
		mutate(&member)
		return tx.Create(&member).Error
	case err != nil:
		return err
	}
	mutate(&member)
	return tx.Save(&member).Error
}

func upsertLoanProposal(tx *gorm.DB, id uint64, mutate func(*LoanProposal)) error {
	if id == 0 {
		return errors.New("indexer: proposal event missing id")
	}
	var proposal LoanProposal
	err := tx.First(&proposal, "id = ?", id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		proposal = LoanProposal{ID: id}
		mutate(&proposal)
		return tx.Create(&proposal).Error
	case err != nil:
		return err
	}
	mutate(&proposal)
	return tx.Save(&proposal).Error
}

func upsertLoan(tx *gorm.DB, id uint64, mutate func(*Loan)) error {
	if id == 0 {
		return errors.New("indexer: loan event missing id")
	}
	var loan Loan
	err := tx.First(&loan, "id = ?", id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		loan = Loan{ID: id}
		mutate(&loan)
		return tx.Create(&loan).Error
	case err != nil:
		return err
	}
	mutate(&loan)
	return tx.Save(&loan).Error
}

func upsertTreasuryProposal(tx *gorm.DB, id uint64, mutate func(*TreasuryProposal)) error {
	if id == 0 {
		return errors.New("indexer: treasury event missing id")
	}
	var proposal TreasuryProposal
	err := tx.First(&proposal, "id = ?", id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		proposal = TreasuryProposal{ID: id}
		mutate(&proposal)
		return tx.Create(&proposal).Error
	case err != nil:
		return err
	}
	mutate(&proposal)
	return tx.Save(&proposal).Error
}

func saveCheckpoint(tx *gorm.DB, cursor string) error {
	if cursor == "" {
		return nil
	}
	var checkpoint Checkpoint
	err := tx.First(&checkpoint, "id = ?", checkpointID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return tx.Create(&Checkpoint{ID: checkpointID, Cursor: cursor}).Error
	case err != nil:
		return err
	}
	checkpoint.Cursor = cursor
	return tx.Save(&checkpoint).Error
}

func parseUintAttr(value string) uint64 {
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
