package vault

import (
	"errors"
	"strings"
	"testing"

	"github.com/Klingon-tech/klingnet-wallet/internal/chains"
	"github.com/Klingon-tech/klingnet-wallet/internal/keys"
	"github.com/Klingon-tech/klingnet-wallet/internal/storage"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/Klingon-tech/klingnet-wallet/pkg/werr"
)

const restoreMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func testInitializer(t *testing.T) (*Initializer, *Store) {
	t.Helper()
	store := NewStore(storage.NewMemory())
	params := keys.Params{Iterations: 64}
	deriver := keys.NewDeriver(chains.NewRegistry(), params)
	return NewInitializer(store, deriver, params), store
}

func TestInitialize_CreatesAccountPerChain(t *testing.T) {
	in, store := testInitializer(t)

	mnemonic, err := in.Initialize("123456", "")
	if err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if len(strings.Fields(mnemonic)) != 24 {
		t.Errorf("generated mnemonic has %d words, want 24", len(strings.Fields(mnemonic)))
	}

	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(state.Accounts) != len(types.AllChains()) {
		t.Fatalf("accounts = %d, want %d", len(state.Accounts), len(types.AllChains()))
	}
	for _, chain := range types.AllChains() {
		if state.AccountForChain(chain) == nil {
			t.Errorf("no account derived for %s", chain)
		}
	}
	if state.MnemonicEnc.IsZero() {
		t.Error("mnemonic not persisted encrypted")
	}

	// Mnemonic must decrypt back under the PIN, and only that PIN.
	plain, err := keys.Decrypt(state.MnemonicEnc, "123456")
	if err != nil {
		t.Fatalf("Decrypt(mnemonic) error: %v", err)
	}
	if string(plain) != mnemonic {
		t.Error("decrypted mnemonic does not match the returned one")
	}
	if _, err := keys.Decrypt(state.MnemonicEnc, "654321"); err == nil {
		t.Error("mnemonic decrypted under the wrong PIN")
	}
}

func TestInitialize_RestoreDeterministic(t *testing.T) {
	in1, store1 := testInitializer(t)
	in2, store2 := testInitializer(t)

	if _, err := in1.Initialize("123456", restoreMnemonic); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if _, err := in2.Initialize("999999", restoreMnemonic); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	s1, _ := store1.Load()
	s2, _ := store2.Load()
	for _, chain := range types.AllChains() {
		a1 := s1.AccountForChain(chain)
		a2 := s2.AccountForChain(chain)
		if a1.Address != a2.Address {
			t.Errorf("%s: restore gave %s and %s from the same mnemonic", chain, a1.Address, a2.Address)
		}
	}
}

func TestInitialize_Rejections(t *testing.T) {
	in, _ := testInitializer(t)

	if _, err := in.Initialize("", ""); err == nil {
		t.Error("empty PIN should be rejected")
	}
	if _, err := in.Initialize("123456", "not a real mnemonic"); err == nil {
		t.Error("invalid mnemonic should be rejected")
	}

	if _, err := in.Initialize("123456", ""); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if _, err := in.Initialize("123456", ""); err == nil {
		t.Error("second Initialize on an existing vault should fail")
	}
}

func TestAddAccount_NextIndex(t *testing.T) {
	in, store := testInitializer(t)
	if _, err := in.Initialize("123456", restoreMnemonic); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	acct, err := in.AddAccount("123456", types.ChainEVM, "Savings")
	if err != nil {
		t.Fatalf("AddAccount() error: %v", err)
	}
	if acct.Name != "Savings" {
		t.Errorf("name = %s, want Savings", acct.Name)
	}
	if acct.Path != types.ChainEVM.DerivationPath(1) {
		t.Errorf("path = %s, want %s", acct.Path, types.ChainEVM.DerivationPath(1))
	}

	state, _ := store.Load()
	first := state.AccountForChain(types.ChainEVM)
	if acct.Address == first.Address {
		t.Error("second account reused the first account's address")
	}

	third, err := in.AddAccount("123456", types.ChainEVM, "")
	if err != nil {
		t.Fatalf("AddAccount() error: %v", err)
	}
	if third.Address == acct.Address || third.Address == first.Address {
		t.Error("third account reused an earlier address")
	}
	if third.Path != types.ChainEVM.DerivationPath(2) {
		t.Errorf("third path = %s, want %s", third.Path, types.ChainEVM.DerivationPath(2))
	}
}

func TestAddAccount_WrongPIN(t *testing.T) {
	in, _ := testInitializer(t)
	if _, err := in.Initialize("123456", restoreMnemonic); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	if _, err := in.AddAccount("wrong", types.ChainEVM, ""); !errors.Is(err, werr.ErrDecryptionFailed) {
		t.Errorf("AddAccount with wrong PIN: got %v, want ErrDecryptionFailed", err)
	}
}

func TestAddAccount_NeedsSetup(t *testing.T) {
	in, _ := testInitializer(t)

	if _, err := in.AddAccount("123456", types.ChainEVM, ""); !errors.Is(err, werr.ErrNeedsSetup) {
		t.Errorf("AddAccount on empty vault: got %v, want ErrNeedsSetup", err)
	}
}
