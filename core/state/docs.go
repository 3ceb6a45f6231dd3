package state

import (
	"fmt"

	"saccochain/crypto"
	"saccochain/native/docs"
)

var docsPrefix = []byte("docs/")

// storedDocRecord mirrors docs.Record with RLP-safe field types.
type storedDocRecord struct {
	Category     string
	Hash         [32]byte
	Actor        [20]byte
	RegisteredAt uint64
}

func docsKey(entityID string) []byte {
	buf := make([]byte, 0, len(docsPrefix)+len(entityID))
	buf = append(buf, docsPrefix...)
	buf = append(buf, entityID...)
	return buf
}

// DocsRecords returns the document registrations for an entity in insertion
// order. Unknown entities yield an empty list.
func (m *Manager) DocsRecords(entityID string) ([]docs.Record, error) {
	var stored []storedDocRecord
	if _, err := m.KVGet(docsKey(entityID), &stored); err != nil {
		return nil, err
	}
	records := make([]docs.Record, 0, len(stored))
	for _, s := range stored {
		records = append(records, docs.Record{
			EntityID:     entityID,
			Category:     s.Category,
			Hash:         s.Hash,
			Actor:        crypto.AddressFromRaw(s.Actor),
			RegisteredAt: s.RegisteredAt,
		})
	}
	return records, nil
}

// DocsAppendRecord adds a registration to the entity's document list.
func (m *Manager) DocsAppendRecord(record *docs.Record) error {
	if record == nil {
		return fmt.Errorf("state: document record must not be nil")
	}
	if record.EntityID == "" {
		return fmt.Errorf("state: document entity id must not be empty")
	}
	var stored []storedDocRecord
	if _, err := m.KVGet(docsKey(record.EntityID), &stored); err != nil {
		return err
	}
	stored = append(stored, storedDocRecord{
		Category:     record.Category,
		Hash:         record.Hash,
		Actor:        record.Actor.Raw(),
		RegisteredAt: record.RegisteredAt,
	})
	return m.KVPut(docsKey(record.EntityID), stored)
}
