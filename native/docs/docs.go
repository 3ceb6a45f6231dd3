package docs

import (
	"errors"
	"strings"
	"time"

	"lukechampine.com/blake3"

	"saccochain/core/events"
	"saccochain/crypto"
	nativecommon "saccochain/native/common"
)

// ModuleName identifies the document registry in pause toggles.
const ModuleName = "docs"

const (
	entityIDMaxLength = 128
	categoryMaxLength = 64
)

var (
	errStateNotConfigured = errors.New("docs engine: state not configured")

	// ErrInvalidEntityID is returned when the entity identifier is empty or
	// oversized.
	ErrInvalidEntityID = errors.New("docs engine: invalid entity id")
	// ErrInvalidCategory is returned when the category label is empty or
	// oversized.
	ErrInvalidCategory = errors.New("docs engine: invalid category")
	// ErrInvalidHash is returned when the content hash is all zeroes.
	ErrInvalidHash = errors.New("docs engine: content hash must not be zero")
	// ErrDuplicateDocument is returned when the same hash is already
	// registered for the entity.
	ErrDuplicateDocument = errors.New("docs engine: document already registered")
	// ErrNotAuthorized is returned when the caller is neither an active
	// member nor an admin.
	ErrNotAuthorized = errors.New("docs engine: caller is not authorized")
	// ErrZeroAddress is returned when the caller address is zero.
	ErrZeroAddress = errors.New("docs engine: address must not be zero")
)

// Checksum computes the 32-byte content digest registered for documents.
func Checksum(data []byte) [32]byte {
	return blake3.Sum256(data)
}

// Record is one registered document hash for an entity (a loan, a proposal,
// or any other ledger object addressed by a caller-chosen identifier).
type Record struct {
	EntityID     string
	Category     string
	Hash         [32]byte
	Actor        crypto.Address
	RegisteredAt uint64
}

// engineState is the persistence surface the engine drives. core/state.Manager
// implements it directly.
type engineState interface {
	DocsRecords(entityID string) ([]Record, error)
	DocsAppendRecord(record *Record) error

	CoopMemberActive(addr crypto.Address) (bool, error)
	CoopAdmins() ([]crypto.Address, error)
}

// Engine keeps the on-ledger registry of document content hashes. Callers
// serialize invocations.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() uint64
}

// NewEngine constructs a document registry engine with default no-op
// dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().UTC().Unix()) },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter wires the engine to an event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetPauses wires the runtime pause switches checked before each mutation.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the unix-seconds clock stamping registrations. Nil
// restores the default UTC clock.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().UTC().Unix()) }
		return
	}
	e.nowFn = now
}

func (e *Engine) ready() error {
	if e.state == nil {
		return errStateNotConfigured
	}
	return nil
}

func (e *Engine) authorized(addr crypto.Address) (bool, error) {
	active, err := e.state.CoopMemberActive(addr)
	if err != nil {
		return false, err
	}
	if active {
		return true, nil
	}
	admins, err := e.state.CoopAdmins()
	if err != nil {
		return false, err
	}
	for _, admin := range admins {
		if admin.Equal(addr) {
			return true, nil
		}
	}
	return false, nil
}

func normalizeEntityID(entityID string) (string, error) {
	trimmed := strings.TrimSpace(entityID)
	if trimmed == "" || len(trimmed) > entityIDMaxLength {
		return "", ErrInvalidEntityID
	}
	return trimmed, nil
}

// Register appends a content hash to the entity's document list. Callers must
// be active members or admins; re-registering the same hash for an entity is
// rejected.
func (e *Engine) Register(caller crypto.Address, entityID, category string, hash [32]byte) (*Record, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if caller.IsZero() {
		return nil, ErrZeroAddress
	}
	entity, err := normalizeEntityID(entityID)
	if err != nil {
		return nil, err
	}
	label := strings.TrimSpace(category)
	if label == "" || len(label) > categoryMaxLength {
		return nil, ErrInvalidCategory
	}
	if hash == ([32]byte{}) {
		return nil, ErrInvalidHash
	}

	ok, err := e.authorized(caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAuthorized
	}

	existing, err := e.state.DocsRecords(entity)
	if err != nil {
		return nil, err
	}
	for _, rec := range existing {
		if rec.Hash == hash {
			return nil, ErrDuplicateDocument
		}
	}

	record := &Record{
		EntityID:     entity,
		Category:     label,
		Hash:         hash,
		Actor:        caller,
		RegisteredAt: e.now(),
	}
	if err := e.state.DocsAppendRecord(record); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.DocRegistered{
		EntityID: entity,
		Category: label,
		Hash:     hash,
		Actor:    caller.Raw(),
	})
	clone := *record
	return &clone, nil
}

// Lookup returns the registered document hashes for an entity in registration
// order.
func (e *Engine) Lookup(entityID string) ([]Record, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	entity, err := normalizeEntityID(entityID)
	if err != nil {
		return nil, err
	}
	return e.state.DocsRecords(entity)
}

func (e *Engine) now() uint64 {
	if e.nowFn == nil {
		return uint64(time.Now().UTC().Unix())
	}
	return e.nowFn()
}
