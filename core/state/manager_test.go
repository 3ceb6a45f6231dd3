package state

import (
	"errors"
	"math/big"
	"testing"

	"saccochain/core/types"
	"saccochain/crypto"
	"saccochain/storage"
)

func testAddress(suffix byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[crypto.AddressLength-1] = suffix
	return crypto.NewAddress(raw)
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewManager(db)
}

func TestKVRoundTrip(t *testing.T) {
	mgr := newTestManager(t)

	type payload struct {
		Name  string
		Count uint64
	}
	if err := mgr.KVPut([]byte("test/payload"), &payload{Name: "alpha", Count: 7}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got := new(payload)
	ok, err := mgr.KVGet([]byte("test/payload"), got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("expected key to exist")
	}
	if got.Name != "alpha" || got.Count != 7 {
		t.Fatalf("unexpected payload: %+v", got)
	}

	ok, err = mgr.KVGet([]byte("test/missing"), got)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if ok {
		t.Fatalf("expected missing key")
	}

	if err := mgr.KVPut(nil, &payload{}); err == nil {
		t.Fatalf("expected empty key rejection")
	}
}

func TestKVAppendDeduplicates(t *testing.T) {
	mgr := newTestManager(t)

	key := []byte("test/list")
	if err := mgr.KVAppend(key, []byte{0x01}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mgr.KVAppend(key, []byte{0x02}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mgr.KVAppend(key, []byte{0x01}); err != nil {
		t.Fatalf("append duplicate: %v", err)
	}
	var list [][]byte
	if err := mgr.KVGetList(key, &list); err != nil {
		t.Fatalf("get list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	if list[0][0] != 0x01 || list[1][0] != 0x02 {
		t.Fatalf("unexpected list order: %v", list)
	}
}

func TestKVGetListInitialisesEmpty(t *testing.T) {
	mgr := newTestManager(t)

	var list [][]byte
	if err := mgr.KVGetList([]byte("test/none"), &list); err != nil {
		t.Fatalf("get list: %v", err)
	}
	if list == nil {
		t.Fatalf("expected empty slice, got nil")
	}
	if len(list) != 0 {
		t.Fatalf("expected empty slice, got %d entries", len(list))
	}

	if err := mgr.KVGetList([]byte("test/none"), nil); err == nil {
		t.Fatalf("expected nil destination rejection")
	}
}

func TestAccountsDefaultToZero(t *testing.T) {
	mgr := newTestManager(t)

	account, err := mgr.GetAccount(testAddress(0x01))
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Nonce != 0 {
		t.Fatalf("expected zero nonce, got %d", account.Nonce)
	}
	if account.Balance == nil || account.Balance.Sign() != 0 {
		t.Fatalf("expected zero balance, got %v", account.Balance)
	}
}

func TestAccountsRoundTrip(t *testing.T) {
	mgr := newTestManager(t)

	addr := testAddress(0x02)
	if err := mgr.PutAccount(addr, &types.Account{Nonce: 3, Balance: big.NewInt(450)}); err != nil {
		t.Fatalf("put account: %v", err)
	}
	account, err := mgr.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Nonce != 3 {
		t.Fatalf("expected nonce 3, got %d", account.Nonce)
	}
	if account.Balance.Cmp(big.NewInt(450)) != 0 {
		t.Fatalf("expected balance 450, got %s", account.Balance)
	}
}

func TestPutAccountRejectsInvalid(t *testing.T) {
	mgr := newTestManager(t)

	if err := mgr.PutAccount(crypto.Address{}, &types.Account{Balance: big.NewInt(1)}); err == nil {
		t.Fatalf("expected zero address rejection")
	}
	if err := mgr.PutAccount(testAddress(0x03), nil); err == nil {
		t.Fatalf("expected nil account rejection")
	}
	if err := mgr.PutAccount(testAddress(0x03), &types.Account{Balance: big.NewInt(-1)}); err == nil {
		t.Fatalf("expected negative balance rejection")
	}
}

func TestEnsureStateVersionStampsFreshDatabase(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	if err := EnsureStateVersion(db, false); err != nil {
		t.Fatalf("ensure fresh: %v", err)
	}
	mgr := NewManager(db)
	version, ok, err := mgr.StateVersion()
	if err != nil {
		t.Fatalf("state version: %v", err)
	}
	if !ok || version != StateVersion {
		t.Fatalf("expected stamped version %d, got %d (present=%t)", StateVersion, version, ok)
	}
	if err := EnsureStateVersion(db, false); err != nil {
		t.Fatalf("ensure matching: %v", err)
	}
}

func TestEnsureStateVersionRejectsMismatch(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db)
	if err := mgr.SetStateVersion(StateVersion + 1); err != nil {
		t.Fatalf("set version: %v", err)
	}
	err := EnsureStateVersion(db, false)
	if !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
	if err := EnsureStateVersion(db, true); err != nil {
		t.Fatalf("expected migration override to pass, got %v", err)
	}
}
