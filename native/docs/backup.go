package docs

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"saccochain/crypto"
)

var bucketDocuments = []byte("documents")

// BackupStore mirrors document registrations to a local bolt file so
// operators can recover the registry without replaying the ledger.
type BackupStore struct {
	db *bolt.DB
}

// backupRecord is the JSON payload stored per registration.
type backupRecord struct {
	EntityID     string `json:"entityId"`
	Category     string `json:"category"`
	Hash         string `json:"hash"`
	Actor        string `json:"actor"`
	RegisteredAt uint64 `json:"registeredAt"`
}

// OpenBackup initialises (and migrates) the bolt-backed mirror at path.
func OpenBackup(path string, options *bolt.Options) (*BackupStore, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDocuments)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BackupStore{db: db}, nil
}

// Close releases the underlying bolt database handle.
func (s *BackupStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func backupKey(entityID string, hash [32]byte) []byte {
	return []byte(entityID + "/" + hex.EncodeToString(hash[:]))
}

// Mirror writes one registration to the backup. Mirroring the same record
// twice overwrites the previous copy.
func (s *BackupStore) Mirror(record Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("docs backup: store not open")
	}
	payload, err := json.Marshal(backupRecord{
		EntityID:     record.EntityID,
		Category:     record.Category,
		Hash:         hex.EncodeToString(record.Hash[:]),
		Actor:        record.Actor.String(),
		RegisteredAt: record.RegisteredAt,
	})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDocuments).Put(backupKey(record.EntityID, record.Hash), payload)
	})
}

// Records returns the mirrored registrations for an entity.
func (s *BackupStore) Records(entityID string) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("docs backup: store not open")
	}
	prefix := []byte(entityID + "/")
	records := make([]Record, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bucketDocuments).Cursor()
		for k, v := cursor.Seek(prefix); k != nil && len(k) >= len(prefix) && string(k[:len(prefix)]) == string(prefix); k, v = cursor.Next() {
			var stored backupRecord
			if err := json.Unmarshal(v, &stored); err != nil {
				return err
			}
			record := Record{
				EntityID:     stored.EntityID,
				Category:     stored.Category,
				RegisteredAt: stored.RegisteredAt,
			}
			raw, err := hex.DecodeString(stored.Hash)
			if err != nil || len(raw) != len(record.Hash) {
				return fmt.Errorf("docs backup: corrupt hash for %q", stored.EntityID)
			}
			copy(record.Hash[:], raw)
			if stored.Actor != "" {
				actor, err := crypto.DecodeAddress(stored.Actor)
				if err != nil {
					return fmt.Errorf("docs backup: corrupt actor for %q: %w", stored.EntityID, err)
				}
				record.Actor = actor
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
