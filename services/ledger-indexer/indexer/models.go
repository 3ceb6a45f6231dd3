package indexer

import (
	"time"

	"gorm.io/gorm"
)

// Member mirror states.
const (
	MemberStateActive = "active"
	MemberStateExited = "exited"
)

// Proposal mirror states.
const (
	ProposalStateOpen     = "open"
	ProposalStateApproved = "approved"
)

// Loan mirror states.
const (
	LoanStateActive = "active"
	LoanStateRepaid = "repaid"
)

// Member mirrors the cooperative membership roster. Amounts stay wei strings
// so the mirror never rounds ledger values.
type Member struct {
	Address      string `gorm:"primaryKey;size:90"`
	State        string `gorm:"size:16;index"`
	Contribution string `gorm:"size:80"`
	ExitShare    string `gorm:"size:80"`
	UpdatedSeq   uint64 `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LoanProposal mirrors the loan governance pipeline.
type LoanProposal struct {
	ID             uint64 `gorm:"primaryKey"`
	Borrower       string `gorm:"size:90;index"`
	Amount         string `gorm:"size:80"`
	RateBps        uint64
	TotalRepayment string `gorm:"size:80"`
	EditingEndsAt  uint64
	VotingEndsAt   uint64
	State          string `gorm:"size:16;index"`
	ForVotes       uint64
	AgainstVotes   uint64
	UpdatedSeq     uint64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Loan mirrors disbursed loans through repayment.
type Loan struct {
	ID           uint64 `gorm:"primaryKey"`
	ProposalID   uint64 `gorm:"index"`
	Borrower     string `gorm:"size:90;index"`
	Principal    string `gorm:"size:80"`
	DueAt        uint64
	State        string `gorm:"size:16;index"`
	RepaidAmount string `gorm:"size:80"`
	InterestPaid string `gorm:"size:80"`
	UpdatedSeq   uint64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TreasuryProposal mirrors withdrawal governance.
type TreasuryProposal struct {
	ID           uint64 `gorm:"primaryKey"`
	Proposer     string `gorm:"size:90;index"`
	Amount       string `gorm:"size:80"`
	Destination  string `gorm:"size:90"`
	VotingEndsAt uint64
	State        string `gorm:"size:16;index"`
	ForVotes     uint64
	AgainstVotes uint64
	UpdatedSeq   uint64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LedgerEvent is the append-only feed of raw stream frames, keyed by the
// stream sequence so replays after a reconnect deduplicate.
type LedgerEvent struct {
	Sequence   uint64 `gorm:"primaryKey;autoIncrement:false"`
	Type       string `gorm:"size:64;index"`
	Attributes string
	CreatedAt  time.Time
}

// Checkpoint stores the stream cursor the next subscription resumes from.
type Checkpoint struct {
	ID        uint   `gorm:"primaryKey"`
	Cursor    string `gorm:"size:32"`
	UpdatedAt time.Time
}

// AutoMigrate performs all schema migrations for the mirror.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Member{},
		&LoanProposal{},
		&Loan{},
		&TreasuryProposal{},
		&LedgerEvent{},
		&Checkpoint{},
	)
}
