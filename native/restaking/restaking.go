// Package restaking manages the slice of treasury capital parked with an
// external yield strategy. Allocations move real ledger funds between the
// cooperative treasury and the strategy account; the position record tracks
// how much is outstanding and how much yield the strategy has reported.
package restaking

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"saccochain/core/events"
	"saccochain/core/types"
	"saccochain/crypto"
	nativecommon "saccochain/native/common"
)

// ModuleName identifies the restaking engine in pause toggles.
const ModuleName = "restaking"

var (
	errStateNotConfigured = errors.New("restaking engine: state not configured")

	ErrStrategyNotConfigured = errors.New("restaking engine: strategy address not configured")
	ErrNotAuthorized         = errors.New("restaking engine: caller not authorized")
	ErrZeroAddress           = errors.New("restaking engine: address must not be zero")
	ErrInvalidAmount         = errors.New("restaking engine: amount must be positive")
	ErrInsufficientTreasury  = errors.New("restaking engine: amount exceeds treasury balance")
	ErrExceedsAllocation     = errors.New("restaking engine: amount exceeds allocated funds")
	ErrInsufficientStrategy  = errors.New("restaking engine: strategy balance below recall amount")
)

// Position is the persistent allocation record. Allocated counts funds
// currently parked with the strategy; YieldReported accumulates over the
// lifetime of the strategy binding.
type Position struct {
	Allocated     *big.Int
	YieldReported *big.Int
	LastYieldAt   uint64
}

// EnsureDefaults replaces nil amounts with zero values.
func (p *Position) EnsureDefaults() {
	if p == nil {
		return
	}
	if p.Allocated == nil {
		p.Allocated = big.NewInt(0)
	}
	if p.YieldReported == nil {
		p.YieldReported = big.NewInt(0)
	}
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{LastYieldAt: p.LastYieldAt}
	if p.Allocated != nil {
		clone.Allocated = new(big.Int).Set(p.Allocated)
	}
	if p.YieldReported != nil {
		clone.YieldReported = new(big.Int).Set(p.YieldReported)
	}
	clone.EnsureDefaults()
	return clone
}

// engineState is the persistence surface the engine drives. core/state.Manager
// implements it directly; the admin set is shared with the cooperative module.
type engineState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error

	RestakingPosition() (*Position, error)
	RestakingSetPosition(position *Position) error

	CoopAdmins() ([]crypto.Address, error)
}

// Engine moves treasury funds in and out of the strategy account and keeps
// the allocation position current. Callers are expected to serialize
// invocations; the engine performs no locking of its own.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	nowFn    func() time.Time
	treasury crypto.Address
	strategy crypto.Address
	pauses   nativecommon.PauseView
}

// NewEngine constructs a restaking engine bound to the cooperative treasury
// address, with default no-op dependencies.
func NewEngine(treasury crypto.Address) *Engine {
	return &Engine{
		treasury: treasury,
		emitter:  events.NoopEmitter{},
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the pause view consulted before every transition.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetStrategy binds the external strategy account. A zero address disables
// allocations until an operator configures one.
func (e *Engine) SetStrategy(strategy crypto.Address) {
	if e == nil {
		return
	}
	e.strategy = strategy
}

// SetNowFunc overrides the time source used to stamp yield reports. Nil
// restores the default UTC clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	e.nowFn = now
}

// Allocate moves amount from the treasury to the strategy account. Only
// cooperative admins may allocate.
func (e *Engine) Allocate(caller crypto.Address, amount *big.Int) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if caller.IsZero() {
		return nil, ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	if e.strategy.IsZero() {
		return nil, ErrStrategyNotConfigured
	}

	treasuryAcc, err := e.loadAccount(e.treasury)
	if err != nil {
		return nil, err
	}
	if treasuryAcc.Balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientTreasury
	}
	strategyAcc, err := e.loadAccount(e.strategy)
	if err != nil {
		return nil, err
	}

	treasuryAcc.Balance = new(big.Int).Sub(treasuryAcc.Balance, amount)
	strategyAcc.Balance = new(big.Int).Add(strategyAcc.Balance, amount)
	if err := e.persistAccount(e.treasury, treasuryAcc); err != nil {
		return nil, err
	}
	if err := e.persistAccount(e.strategy, strategyAcc); err != nil {
		return nil, err
	}

	position, err := e.loadPosition()
	if err != nil {
		return nil, err
	}
	position.Allocated = new(big.Int).Add(position.Allocated, amount)
	if err := e.state.RestakingSetPosition(position); err != nil {
		return nil, err
	}

	e.emit(events.RestakingAllocated{
		Strategy:  e.strategy.Raw(),
		Amount:    new(big.Int).Set(amount),
		Allocated: new(big.Int).Set(position.Allocated),
	})
	return position.Clone(), nil
}

// Recall pulls amount back from the strategy account into the treasury. The
// recall is capped by the outstanding allocation and by the strategy's
// actual ledger balance.
func (e *Engine) Recall(caller crypto.Address, amount *big.Int) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if caller.IsZero() {
		return nil, ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	if e.strategy.IsZero() {
		return nil, ErrStrategyNotConfigured
	}

	position, err := e.loadPosition()
	if err != nil {
		return nil, err
	}
	if position.Allocated.Cmp(amount) < 0 {
		return nil, ErrExceedsAllocation
	}

	strategyAcc, err := e.loadAccount(e.strategy)
	if err != nil {
		return nil, err
	}
	if strategyAcc.Balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientStrategy
	}
	treasuryAcc, err := e.loadAccount(e.treasury)
	if err != nil {
		return nil, err
	}

	strategyAcc.Balance = new(big.Int).Sub(strategyAcc.Balance, amount)
	treasuryAcc.Balance = new(big.Int).Add(treasuryAcc.Balance, amount)
	if err := e.persistAccount(e.strategy, strategyAcc); err != nil {
		return nil, err
	}
	if err := e.persistAccount(e.treasury, treasuryAcc); err != nil {
		return nil, err
	}

	position.Allocated = new(big.Int).Sub(position.Allocated, amount)
	if err := e.state.RestakingSetPosition(position); err != nil {
		return nil, err
	}

	e.emit(events.RestakingRecalled{
		Strategy:  e.strategy.Raw(),
		Amount:    new(big.Int).Set(amount),
		Allocated: new(big.Int).Set(position.Allocated),
	})
	return position.Clone(), nil
}

// NoteYield records yield reported by the strategy. It only updates the
// position statistics; moving the funds into the treasury and distributing
// them to members is the cooperative engine's yield report.
func (e *Engine) NoteYield(caller crypto.Address, amount *big.Int) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if caller.IsZero() {
		return nil, ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	admin, err := e.isAdmin(caller)
	if err != nil {
		return nil, err
	}
	if !admin && (e.strategy.IsZero() || !caller.Equal(e.strategy)) {
		return nil, ErrNotAuthorized
	}

	position, err := e.loadPosition()
	if err != nil {
		return nil, err
	}
	position.YieldReported = new(big.Int).Add(position.YieldReported, amount)
	position.LastYieldAt = e.nowUnix()
	if err := e.state.RestakingSetPosition(position); err != nil {
		return nil, err
	}

	e.emit(events.RestakingYieldNoted{
		Strategy: e.strategy.Raw(),
		Amount:   new(big.Int).Set(amount),
		Total:    new(big.Int).Set(position.YieldReported),
	})
	return position.Clone(), nil
}

// Position returns the current allocation record.
func (e *Engine) Position() (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	position, err := e.loadPosition()
	if err != nil {
		return nil, err
	}
	return position.Clone(), nil
}

// Strategy returns the configured strategy account.
func (e *Engine) Strategy() crypto.Address {
	if e == nil {
		return crypto.Address{}
	}
	return e.strategy
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	return nativecommon.Guard(e.pauses, ModuleName)
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) nowUnix() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().UTC().Unix())
	}
	ts := e.nowFn().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) loadPosition() (*Position, error) {
	position, err := e.state.RestakingPosition()
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &Position{}
	}
	position.EnsureDefaults()
	return position, nil
}

func (e *Engine) loadAccount(addr crypto.Address) (*types.Account, error) {
	account, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &types.Account{}
	}
	account.EnsureDefaults()
	return account, nil
}

func (e *Engine) persistAccount(addr crypto.Address, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("restaking engine: account must not be nil")
	}
	account.EnsureDefaults()
	return e.state.PutAccount(addr, account)
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

func (e *Engine) requireAdmin(addr crypto.Address) error {
	admin, err := e.isAdmin(addr)
	if err != nil {
		return err
	}
	if !admin {
		return ErrNotAuthorized
	}
	return nil
}
