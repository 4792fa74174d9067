package vault

import (
	"errors"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/keys"
	"github.com/Klingon-tech/klingnet-wallet/internal/storage"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/Klingon-tech/klingnet-wallet/pkg/werr"
)

func testBlob(t *testing.T) keys.Blob {
	t.Helper()
	blob, err := keys.Encrypt([]byte("secret"), "123456", keys.Params{Iterations: 64})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	return blob
}

func testState(t *testing.T) *WalletState {
	t.Helper()
	return &WalletState{
		Version:   CurrentVersion,
		CreatedAt: time.Now().Unix(),
		Accounts: []Account{{
			ID:        "acct-1",
			Name:      "Ethereum 1",
			Chain:     types.ChainEVM,
			Address:   "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf",
			Path:      "m/44'/60'/0'/0/0",
			Enc:       testBlob(t),
			CreatedAt: time.Now().Unix(),
		}},
		Origins:     map[string]OriginPermission{},
		MnemonicEnc: testBlob(t),
	}
}

func TestStore_LoadUninitialized(t *testing.T) {
	s := NewStore(storage.NewMemory())

	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if state != nil {
		t.Error("uninitialized vault should load as nil")
	}

	ok, err := s.Initialized()
	if err != nil {
		t.Fatalf("Initialized() error: %v", err)
	}
	if ok {
		t.Error("Initialized() = true for an empty vault")
	}
}

func TestStore_SaveLoadRoundtrip(t *testing.T) {
	s := NewStore(storage.NewMemory())
	want := testState(t)

	if err := s.Save(want); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got == nil {
		t.Fatal("Load() returned nil after Save")
	}
	if len(got.Accounts) != 1 || got.Accounts[0].ID != "acct-1" {
		t.Errorf("loaded accounts = %+v", got.Accounts)
	}
	if got.Accounts[0].Address != want.Accounts[0].Address {
		t.Error("address did not survive the round trip")
	}
	if got.MnemonicEnc.IsZero() {
		t.Error("mnemonic blob missing after round trip")
	}
}

func TestStore_ChecksumCorruption(t *testing.T) {
	db := storage.NewMemory()
	s := NewStore(db)

	if err := s.Save(testState(t)); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	// Flip one byte of the stored payload.
	raw, err := db.Get(stateKey)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	raw[len(raw)-1] ^= 0xFF
	if err := db.Put(stateKey, raw); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	if _, err := s.Load(); !errors.Is(err, werr.ErrStorageInvalid) {
		t.Errorf("Load() after corruption: got %v, want ErrStorageInvalid", err)
	}
}

func TestStore_TruncatedPayload(t *testing.T) {
	db := storage.NewMemory()
	s := NewStore(db)

	if err := db.Put(stateKey, []byte("short")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if _, err := s.Load(); !errors.Is(err, werr.ErrStorageInvalid) {
		t.Errorf("Load() with truncated payload: got %v, want ErrStorageInvalid", err)
	}
}

func TestStore_UpdateUninitialized(t *testing.T) {
	s := NewStore(storage.NewMemory())

	_, err := s.Update(func(state *WalletState) error { return nil })
	if !errors.Is(err, werr.ErrNeedsSetup) {
		t.Errorf("Update() on empty vault: got %v, want ErrNeedsSetup", err)
	}
}

func TestStore_UpdatePersists(t *testing.T) {
	s := NewStore(storage.NewMemory())
	if err := s.Save(testState(t)); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	_, err := s.Update(func(state *WalletState) error {
		state.Origins["https://app.example"] = OriginPermission{
			Allowed:           true,
			SelectedAccountID: "acct-1",
			ConnectedAt:       time.Now().Unix(),
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if _, ok := got.Origins["https://app.example"]; !ok {
		t.Error("Update mutation was not persisted")
	}
}

func TestStore_UpdateErrorDiscardsChanges(t *testing.T) {
	s := NewStore(storage.NewMemory())
	if err := s.Save(testState(t)); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	wantErr := errors.New("boom")
	_, err := s.Update(func(state *WalletState) error {
		state.Accounts[0].Name = "changed"
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Update() error = %v, want %v", err, wantErr)
	}

	got, _ := s.Load()
	if got.Accounts[0].Name != "Ethereum 1" {
		t.Error("failed Update leaked a partial mutation")
	}
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	s := NewStore(storage.NewMemory())
	state := testState(t)
	state.Accounts[0].Address = ""

	if err := s.Save(state); !errors.Is(err, werr.ErrStorageInvalid) {
		t.Errorf("Save() with invalid state: got %v, want ErrStorageInvalid", err)
	}
}

func TestStore_ClearFiresHook(t *testing.T) {
	s := NewStore(storage.NewMemory())
	if err := s.Save(testState(t)); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	fired := false
	s.SetClearHook(func() { fired = true })

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if !fired {
		t.Error("clear hook did not fire")
	}

	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load() after Clear error: %v", err)
	}
	if state != nil {
		t.Error("vault still loads after Clear")
	}
}
