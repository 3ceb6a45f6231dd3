package identity

import (
	"errors"
	"strings"
	"testing"

	"saccochain/core/events"
	"saccochain/crypto"
	nativecommon "saccochain/native/common"
)

type mockEngineState struct {
	owners  map[string]crypto.Address
	aliases map[string]string
	weights map[string]uint64
	admins  []crypto.Address
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		owners:  make(map[string]crypto.Address),
		aliases: make(map[string]string),
		weights: make(map[string]uint64),
	}
}

func (m *mockEngineState) key(addr crypto.Address) string {
	return string(addr.Bytes())
}

func (m *mockEngineState) IdentityAliasOwner(alias string) (crypto.Address, bool, error) {
	owner, ok := m.owners[alias]
	if !ok || owner.IsZero() {
		return crypto.Address{}, false, nil
	}
	return owner, true, nil
}

func (m *mockEngineState) IdentitySetAliasOwner(alias string, owner crypto.Address) error {
	if owner.IsZero() {
		delete(m.owners, alias)
		return nil
	}
	m.owners[alias] = owner
	return nil
}

func (m *mockEngineState) IdentityAliasOf(addr crypto.Address) (string, bool, error) {
	alias, ok := m.aliases[m.key(addr)]
	if !ok || alias == "" {
		return "", false, nil
	}
	return alias, true, nil
}

func (m *mockEngineState) IdentitySetAliasOf(addr crypto.Address, alias string) error {
	if alias == "" {
		delete(m.aliases, m.key(addr))
		return nil
	}
	m.aliases[m.key(addr)] = alias
	return nil
}

func (m *mockEngineState) IdentityVotingWeight(addr crypto.Address) (uint64, error) {
	return m.weights[m.key(addr)], nil
}

func (m *mockEngineState) IdentitySetVotingWeight(addr crypto.Address, weight uint64) error {
	if weight == 0 {
		delete(m.weights, m.key(addr))
		return nil
	}
	m.weights[m.key(addr)] = weight
	return nil
}

func (m *mockEngineState) CoopAdmins() ([]crypto.Address, error) {
	return append([]crypto.Address(nil), m.admins...), nil
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func (c *captureEmitter) lastType() string {
	if len(c.events) == 0 {
		return ""
	}
	return c.events[len(c.events)-1].EventType()
}

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(raw)
}

func newTestEngine(t *testing.T) (*Engine, *mockEngineState, *captureEmitter) {
	t.Helper()
	state := newMockEngineState()
	emitter := &captureEmitter{}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetEmitter(emitter)
	return engine, state, emitter
}

func TestNormalizeAliasCanonicalForm(t *testing.T) {
	got, err := NormalizeAlias("  Frank.Rocks ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "frank.rocks" {
		t.Fatalf("unexpected canonical alias %q", got)
	}

	if _, err := NormalizeAlias("ab"); !errors.Is(err, ErrInvalidAlias) {
		t.Fatalf("expected length rejection, got %v", err)
	}
	if _, err := NormalizeAlias(strings.Repeat("a", 33)); !errors.Is(err, ErrInvalidAlias) {
		t.Fatalf("expected length rejection, got %v", err)
	}
	if _, err := NormalizeAlias("has space"); !errors.Is(err, ErrInvalidAlias) {
		t.Fatalf("expected character rejection, got %v", err)
	}
}

func TestSetAliasBindsAndRenames(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	addr := makeAddress(1)

	normalized, err := engine.SetAlias(addr, "FrankRocks")
	if err != nil {
		t.Fatalf("set alias: %v", err)
	}
	if normalized != "frankrocks" {
		t.Fatalf("unexpected normalized alias %q", normalized)
	}
	if emitter.lastType() != events.TypeIdentityAliasSet {
		t.Fatalf("expected alias-set event, got %q", emitter.lastType())
	}

	owner, found, err := engine.Resolve("frankrocks")
	if err != nil || !found {
		t.Fatalf("resolve: found=%v err=%v", found, err)
	}
	if !owner.Equal(addr) {
		t.Fatalf("alias resolves to %s", owner)
	}

	if _, err := engine.SetAlias(addr, "frankierocks"); err != nil {
		t.Fatalf("rename alias: %v", err)
	}
	if emitter.lastType() != events.TypeIdentityAliasRenamed {
		t.Fatalf("expected alias-renamed event, got %q", emitter.lastType())
	}
	if _, ok := state.owners["frankrocks"]; ok {
		t.Fatal("old alias should be released after rename")
	}
	alias, found, err := engine.AliasOf(addr)
	if err != nil || !found {
		t.Fatalf("alias lookup: found=%v err=%v", found, err)
	}
	if alias != "frankierocks" {
		t.Fatalf("unexpected alias %q", alias)
	}
}

func TestSetAliasIdempotentRebind(t *testing.T) {
	engine, _, emitter := newTestEngine(t)
	addr := makeAddress(1)

	if _, err := engine.SetAlias(addr, "frankrocks"); err != nil {
		t.Fatalf("set alias: %v", err)
	}
	emitted := len(emitter.events)
	if _, err := engine.SetAlias(addr, "FRANKROCKS"); err != nil {
		t.Fatalf("rebind alias: %v", err)
	}
	if len(emitter.events) != emitted {
		t.Fatal("re-binding the same alias should not emit")
	}
}

func TestSetAliasRejectsTaken(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	first := makeAddress(1)
	second := makeAddress(2)

	if _, err := engine.SetAlias(first, "sharedalias"); err != nil {
		t.Fatalf("set alias: %v", err)
	}
	if _, err := engine.SetAlias(second, "sharedalias"); !errors.Is(err, ErrAliasTaken) {
		t.Fatalf("expected ErrAliasTaken, got %v", err)
	}
}

func TestSetAliasHonoursPause(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	pauses := nativecommon.NewPauseSet()
	pauses.SetPaused(ModuleName, true)
	engine.SetPauses(pauses)

	if _, err := engine.SetAlias(makeAddress(1), "frankrocks"); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected pause rejection, got %v", err)
	}
}

func TestVotingWeightAdminGate(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	admin := makeAddress(0xAA)
	member := makeAddress(1)
	state.admins = []crypto.Address{admin}

	if err := engine.SetVotingWeight(member, member, 3); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected authorization rejection, got %v", err)
	}
	if err := engine.SetVotingWeight(admin, member, 3); err != nil {
		t.Fatalf("set weight: %v", err)
	}
	if emitter.lastType() != events.TypeIdentityWeightSet {
		t.Fatalf("expected weight-set event, got %q", emitter.lastType())
	}

	weight, err := engine.VotingWeight(member)
	if err != nil {
		t.Fatalf("voting weight: %v", err)
	}
	if weight != 3 {
		t.Fatalf("expected weight 3, got %d", weight)
	}

	if err := engine.SetVotingWeight(admin, member, 0); err != nil {
		t.Fatalf("clear weight: %v", err)
	}
	weight, err = engine.VotingWeight(member)
	if err != nil {
		t.Fatalf("voting weight: %v", err)
	}
	if weight != 1 {
		t.Fatalf("cleared override should fall back to one, got %d", weight)
	}
}

func TestEngineRequiresState(t *testing.T) {
	engine := NewEngine()
	if _, err := engine.SetAlias(makeAddress(1), "frankrocks"); !errors.Is(err, errStateNotConfigured) {
		t.Fatalf("expected state configuration error, got %v", err)
	}
}
