package session

import (
	"errors"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/keys"
	"github.com/Klingon-tech/klingnet-wallet/internal/storage"
	"github.com/Klingon-tech/klingnet-wallet/internal/vault"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/Klingon-tech/klingnet-wallet/pkg/werr"
)

const testPIN = "123456"

// testManager builds a locked manager over an in-memory vault holding a
// single account and a mnemonic ciphertext encrypted under testPIN.
func testManager(t *testing.T, cfg Config) (*Manager, *vault.Store) {
	t.Helper()
	db := storage.NewMemory()
	store := vault.NewStore(storage.NewPrefixDB(db, []byte("v/")))

	mnemonicEnc, err := keys.Encrypt([]byte("legal winner thank year wave"), testPIN, keys.Params{Iterations: 64})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	accountEnc, err := keys.Encrypt(make([]byte, 32), testPIN, keys.Params{Iterations: 64})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	state := &vault.WalletState{
		Version:   vault.CurrentVersion,
		CreatedAt: time.Now().Unix(),
		Accounts: []vault.Account{{
			ID:        "acct-1",
			Name:      "Ethereum 1",
			Chain:     types.ChainEVM,
			Address:   "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf",
			Path:      "m/44'/60'/0'/0/0",
			Enc:       accountEnc,
			CreatedAt: time.Now().Unix(),
		}},
		Origins:     map[string]vault.OriginPermission{},
		MnemonicEnc: mnemonicEnc,
	}
	if err := store.Save(state); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	m := New(store, storage.NewPrefixDB(db, []byte("s/")), cfg)
	return m, store
}

func waitForState(t *testing.T, m *Manager, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session state = %v, want %v", m.State(), want)
}

func TestManager_UnlockWrongPIN(t *testing.T) {
	m, _ := testManager(t, Config{})

	err := m.Unlock("000000", 0)
	if !errors.Is(err, werr.ErrInvalidPIN) {
		t.Fatalf("Unlock() error = %v, want ErrInvalidPIN", err)
	}
	if m.State() != Locked {
		t.Error("failed unlock changed session state")
	}
	if _, err := m.PIN(); !errors.Is(err, werr.ErrWalletLocked) {
		t.Errorf("PIN() after failed unlock error = %v, want ErrWalletLocked", err)
	}
}

func TestManager_UnlockNeedsSetup(t *testing.T) {
	db := storage.NewMemory()
	store := vault.NewStore(storage.NewPrefixDB(db, []byte("v/")))
	m := New(store, storage.NewPrefixDB(db, []byte("s/")), Config{})

	err := m.Unlock(testPIN, 0)
	if !errors.Is(err, werr.ErrNeedsSetup) {
		t.Fatalf("Unlock() on empty vault error = %v, want ErrNeedsSetup", err)
	}
}

func TestManager_UnlockLockCycle(t *testing.T) {
	m, _ := testManager(t, Config{})

	if err := m.RequireUnlocked(); !errors.Is(err, werr.ErrWalletLocked) {
		t.Fatalf("RequireUnlocked() while locked error = %v, want ErrWalletLocked", err)
	}

	if err := m.Unlock(testPIN, time.Minute); err != nil {
		t.Fatalf("Unlock() error: %v", err)
	}
	if m.State() != Unlocked {
		t.Fatal("State() != Unlocked after Unlock")
	}
	if err := m.RequireUnlocked(); err != nil {
		t.Fatalf("RequireUnlocked() error: %v", err)
	}
	pin, err := m.PIN()
	if err != nil {
		t.Fatalf("PIN() error: %v", err)
	}
	if pin != testPIN {
		t.Errorf("PIN() = %q, want %q", pin, testPIN)
	}
	exp := m.ExpiresAt()
	if exp.IsZero() || time.Until(exp) > time.Minute {
		t.Errorf("ExpiresAt() = %v, want within a minute", exp)
	}

	m.Lock()
	if m.State() != Locked {
		t.Fatal("State() != Locked after Lock")
	}
	if !m.ExpiresAt().IsZero() {
		t.Error("ExpiresAt() not cleared by Lock")
	}
	if _, err := m.PIN(); !errors.Is(err, werr.ErrWalletLocked) {
		t.Errorf("PIN() after Lock error = %v, want ErrWalletLocked", err)
	}
}

func TestManager_AutoLock(t *testing.T) {
	m, _ := testManager(t, Config{})

	if err := m.Unlock(testPIN, 30*time.Millisecond); err != nil {
		t.Fatalf("Unlock() error: %v", err)
	}
	waitForState(t, m, Locked)
}

func TestManager_BackgroundShrinksTTL(t *testing.T) {
	m, _ := testManager(t, Config{AutoLockTTL: time.Hour, GraceWindow: 30 * time.Millisecond})

	if err := m.Unlock(testPIN, 0); err != nil {
		t.Fatalf("Unlock() error: %v", err)
	}
	before := m.ExpiresAt()

	m.Background()
	after := m.ExpiresAt()
	if !after.Before(before) {
		t.Fatalf("Background() expiry %v not before original %v", after, before)
	}
	waitForState(t, m, Locked)
}

func TestManager_BackgroundNeverExtends(t *testing.T) {
	m, _ := testManager(t, Config{AutoLockTTL: time.Hour, GraceWindow: time.Hour})

	if err := m.Unlock(testPIN, 50*time.Millisecond); err != nil {
		t.Fatalf("Unlock() error: %v", err)
	}
	before := m.ExpiresAt()

	// Grace window is longer than the remaining ttl, so nothing moves.
	m.Background()
	if !m.ExpiresAt().Equal(before) {
		t.Errorf("Background() extended expiry from %v to %v", before, m.ExpiresAt())
	}
	waitForState(t, m, Locked)
}

func TestManager_BackgroundWhileLocked(t *testing.T) {
	m, _ := testManager(t, Config{})

	m.Background()
	if m.State() != Locked {
		t.Error("Background() on a locked session changed state")
	}
}

func TestManager_Suspend(t *testing.T) {
	m, _ := testManager(t, Config{})

	if err := m.Unlock(testPIN, time.Minute); err != nil {
		t.Fatalf("Unlock() error: %v", err)
	}
	m.Suspend()
	if m.State() != Locked {
		t.Error("Suspend() did not lock the session")
	}
}

func TestManager_Listeners(t *testing.T) {
	m, _ := testManager(t, Config{})

	var locked, unlocked int
	m.OnLock(func() { locked++ })
	m.OnUnlock(func() { unlocked++ })

	if err := m.Unlock(testPIN, time.Minute); err != nil {
		t.Fatalf("Unlock() error: %v", err)
	}
	if unlocked != 1 {
		t.Errorf("unlock listener fired %d times, want 1", unlocked)
	}

	m.Lock()
	if locked != 1 {
		t.Errorf("lock listener fired %d times, want 1", locked)
	}

	// Locking an already-locked session still notifies listeners so the
	// router can flush pending requests unconditionally.
	m.Lock()
	if locked != 2 {
		t.Errorf("lock listener fired %d times after second Lock, want 2", locked)
	}
}

func TestManager_VaultClearLocks(t *testing.T) {
	m, store := testManager(t, Config{})

	if err := m.Unlock(testPIN, time.Minute); err != nil {
		t.Fatalf("Unlock() error: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if m.State() != Locked {
		t.Error("vault Clear did not lock the session")
	}
}

func TestManager_UnlockDefaultTTL(t *testing.T) {
	m, _ := testManager(t, Config{AutoLockTTL: time.Hour})

	if err := m.Unlock(testPIN, 0); err != nil {
		t.Fatalf("Unlock() error: %v", err)
	}
	remaining := time.Until(m.ExpiresAt())
	if remaining < 55*time.Minute || remaining > time.Hour {
		t.Errorf("default ttl remaining = %v, want about an hour", remaining)
	}
}
