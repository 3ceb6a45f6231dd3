package exports

import (
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"saccochain/native/coop"
)

type loanRow struct {
	LoanID            int64  `parquet:"name=loan_id, type=INT64"`
	ProposalID        int64  `parquet:"name=proposal_id, type=INT64"`
	Borrower          string `parquet:"name=borrower, type=BYTE_ARRAY, convertedtype=UTF8"`
	PrincipalWei      string `parquet:"name=principal_wei, type=BYTE_ARRAY, convertedtype=UTF8"`
	InterestRateBps   int32  `parquet:"name=interest_rate_bps, type=INT32"`
	TotalRepaymentWei string `parquet:"name=total_repayment_wei, type=BYTE_ARRAY, convertedtype=UTF8"`
	AmountRepaidWei   string `parquet:"name=amount_repaid_wei, type=BYTE_ARRAY, convertedtype=UTF8"`
	StartedAt         string `parquet:"name=started_at, type=BYTE_ARRAY, convertedtype=UTF8"`
	DueAt             string `parquet:"name=due_at, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status            string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func unixToRFC3339(ts uint64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}

// LoanBookParquet writes the supplied loans as a parquet snapshot at path.
// Amounts stay string-encoded wei so downstream tooling never rounds them.
func LoanBookParquet(path string, loans []*coop.Loan) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("exports: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(loanRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, loan := range loans {
		if loan == nil {
			continue
		}
		row := &loanRow{
			LoanID:            int64(loan.ID),
			ProposalID:        int64(loan.ProposalID),
			Borrower:          loan.Borrower.String(),
			PrincipalWei:      amountString(loan.Principal),
			InterestRateBps:   int32(loan.InterestRateBps),
			TotalRepaymentWei: amountString(loan.TotalRepayment),
			AmountRepaidWei:   amountString(loan.AmountRepaid),
			StartedAt:         unixToRFC3339(loan.StartedAt),
			DueAt:             unixToRFC3339(loan.DueAt),
			Status:            loan.Status.StatusString(),
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			file.Close()
			return fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("exports: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("exports: close parquet file: %w", err)
	}
	return nil
}
