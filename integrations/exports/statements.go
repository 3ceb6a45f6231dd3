package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"saccochain/crypto"
	"saccochain/native/coop"
)

// StatementRow captures one member's outstanding reward balances at export
// time. Amounts are wei-denominated integers.
type StatementRow struct {
	Address     crypto.Address
	JoinedAt    uint64
	Interest    *big.Int
	Yield       *big.Int
	GeneratedAt time.Time
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func (r *StatementRow) total() string {
	total := new(big.Int)
	if r.Interest != nil {
		total.Add(total, r.Interest)
	}
	if r.Yield != nil {
		total.Add(total, r.Yield)
	}
	return total.String()
}

func (r *StatementRow) generatedAt() time.Time {
	if r.GeneratedAt.IsZero() {
		return time.Now().UTC()
	}
	return r.GeneratedAt
}

// StatementsCSV builds a CSV export for the supplied statement rows and
// returns the serialised data alongside a SHA-256 checksum of the payload.
func StatementsCSV(rows []*StatementRow) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	header := []string{"address", "joined_at", "interest_wei", "yield_wei", "total_wei", "generated_at"}
	if err := writer.Write(header); err != nil {
		return nil, "", err
	}
	for _, row := range rows {
		if row == nil {
			continue
		}
		record := []string{
			row.Address.String(),
			fmt.Sprintf("%d", row.JoinedAt),
			amountString(row.Interest),
			amountString(row.Yield),
			row.total(),
			row.generatedAt().UTC().Format(time.RFC3339Nano),
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}

// StatementsJSONL builds a JSON Lines export for the supplied statement rows
// and returns the serialised payload alongside a checksum.
func StatementsJSONL(rows []*StatementRow) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, row := range rows {
		if row == nil {
			continue
		}
		payload := map[string]interface{}{
			"address":      row.Address.String(),
			"joined_at":    row.JoinedAt,
			"interest_wei": amountString(row.Interest),
			"yield_wei":    amountString(row.Yield),
			"total_wei":    row.total(),
			"generated_at": row.generatedAt().UTC().Format(time.RFC3339Nano),
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}

// AuditJSONL serialises ledger audit records as JSON lines so operators can
// archive the trail outside the node.
func AuditJSONL(records []coop.AuditRecord) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, record := range records {
		payload := map[string]interface{}{
			"sequence":   record.Sequence,
			"timestamp":  record.Timestamp,
			"event":      string(record.Event),
			"subject_id": record.SubjectID,
			"actor":      record.Actor.String(),
			"details":    record.Details,
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}
