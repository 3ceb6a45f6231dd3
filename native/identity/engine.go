package identity

import (
	"errors"

	"saccochain/core/events"
	"saccochain/crypto"
	nativecommon "saccochain/native/common"
)

// ModuleName identifies the identity engine in pause toggles.
const ModuleName = "identity"

var (
	errStateNotConfigured = errors.New("identity engine: state not configured")

	// ErrZeroAddress is returned when an operation targets the zero address.
	ErrZeroAddress = errors.New("identity engine: address must not be zero")
	// ErrNotAuthorized is returned when a non-admin attempts a gated operation.
	ErrNotAuthorized = errors.New("identity engine: caller is not authorized")
)

// engineState is the persistence surface the engine drives. core/state.Manager
// implements it directly. Admin membership is shared with the cooperative so
// the same operator set controls both modules.
type engineState interface {
	IdentityAliasOwner(alias string) (crypto.Address, bool, error)
	IdentitySetAliasOwner(alias string, owner crypto.Address) error
	IdentityAliasOf(addr crypto.Address) (string, bool, error)
	IdentitySetAliasOf(addr crypto.Address, alias string) error
	IdentityVotingWeight(addr crypto.Address) (uint64, error)
	IdentitySetVotingWeight(addr crypto.Address, weight uint64) error

	CoopAdmins() ([]crypto.Address, error)
}

// Engine maintains the alias registry and the voting-weight overrides read by
// weighted cooperative tallies. Callers serialize invocations.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

// NewEngine constructs an identity engine with default no-op dependencies.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
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

func (e *Engine) emit(evt events.Event) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	if e.state == nil {
		return errStateNotConfigured
	}
	return nil
}

func (e *Engine) isAdmin(addr crypto.Address) (bool, error) {
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

// SetAlias binds the canonical form of alias to the caller, releasing any
// alias the caller held before. Re-binding the identical alias is a no-op.
func (e *Engine) SetAlias(caller crypto.Address, alias string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return "", err
	}
	if caller.IsZero() {
		return "", ErrZeroAddress
	}
	normalized, err := NormalizeAlias(alias)
	if err != nil {
		return "", err
	}

	owner, found, err := e.state.IdentityAliasOwner(normalized)
	if err != nil {
		return "", err
	}
	if found {
		if owner.Equal(caller) {
			return normalized, nil
		}
		return "", ErrAliasTaken
	}

	previous, hadAlias, err := e.state.IdentityAliasOf(caller)
	if err != nil {
		return "", err
	}
	if hadAlias {
		if err := e.state.IdentitySetAliasOwner(previous, crypto.Address{}); err != nil {
			return "", err
		}
	}
	if err := e.state.IdentitySetAliasOwner(normalized, caller); err != nil {
		return "", err
	}
	if err := e.state.IdentitySetAliasOf(caller, normalized); err != nil {
		return "", err
	}

	if hadAlias {
		e.emit(events.IdentityAliasRenamed{OldAlias: previous, NewAlias: normalized, Address: caller.Raw()})
	} else {
		e.emit(events.IdentityAliasSet{Alias: normalized, Address: caller.Raw()})
	}
	return normalized, nil
}

// Resolve returns the address bound to the canonical form of alias.
func (e *Engine) Resolve(alias string) (crypto.Address, bool, error) {
	if err := e.ready(); err != nil {
		return crypto.Address{}, false, err
	}
	normalized, err := NormalizeAlias(alias)
	if err != nil {
		return crypto.Address{}, false, err
	}
	return e.state.IdentityAliasOwner(normalized)
}

// AliasOf returns the alias currently bound to addr, if any.
func (e *Engine) AliasOf(addr crypto.Address) (string, bool, error) {
	if err := e.ready(); err != nil {
		return "", false, err
	}
	if addr.IsZero() {
		return "", false, ErrZeroAddress
	}
	return e.state.IdentityAliasOf(addr)
}

// SetVotingWeight records a voting-weight multiplier for target. Weight zero
// clears the override so the address falls back to weight one. Only admins
// may change weights.
func (e *Engine) SetVotingWeight(caller, target crypto.Address, weight uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if caller.IsZero() || target.IsZero() {
		return ErrZeroAddress
	}
	ok, err := e.isAdmin(caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthorized
	}
	if err := e.state.IdentitySetVotingWeight(target, weight); err != nil {
		return err
	}
	e.emit(events.IdentityWeightSet{Address: target.Raw(), Weight: weight})
	return nil
}

// VotingWeight returns the effective multiplier for addr: the stored override
// or one when none is set.
func (e *Engine) VotingWeight(addr crypto.Address) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if addr.IsZero() {
		return 0, ErrZeroAddress
	}
	weight, err := e.state.IdentityVotingWeight(addr)
	if err != nil {
		return 0, err
	}
	if weight == 0 {
		return 1, nil
	}
	return weight, nil
}
