package vault

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Klingon-tech/klingnet-wallet/internal/keys"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/Klingon-tech/klingnet-wallet/pkg/werr"
)

// Initializer creates or restores a vault from a mnemonic, deriving
// one account per supported chain.
type Initializer struct {
	store   *Store
	deriver *keys.Deriver
	params  keys.Params
}

// NewInitializer creates an initializer.
func NewInitializer(store *Store, deriver *keys.Deriver, params keys.Params) *Initializer {
	return &Initializer{store: store, deriver: deriver, params: params}
}

// Initialize creates a fresh vault under the given PIN. When mnemonic
// is empty a new 24-word mnemonic is generated; otherwise the given
// one is validated and used (restore). The mnemonic is returned for
// one-time display and is otherwise persisted only encrypted.
func (in *Initializer) Initialize(pin, mnemonic string) (string, error) {
	exists, err := in.store.Initialized()
	if err != nil {
		return "", err
	}
	if exists {
		return "", werr.New(werr.CodeInvalidParams, "wallet is already set up")
	}
	if pin == "" {
		return "", werr.New(werr.CodeInvalidParams, "pin is required")
	}

	if mnemonic == "" {
		mnemonic, err = keys.GenerateMnemonic()
		if err != nil {
			return "", fmt.Errorf("generate mnemonic: %w", err)
		}
	} else if !keys.ValidateMnemonic(mnemonic) {
		return "", werr.New(werr.CodeInvalidParams, "invalid mnemonic")
	}

	seed, err := keys.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return "", err
	}
	defer keys.Zero(seed)

	now := time.Now().Unix()
	state := &WalletState{
		Version:   CurrentVersion,
		CreatedAt: now,
		Accounts:  []Account{},
		Origins:   make(map[string]OriginPermission),
	}

	for _, chain := range types.AllChains() {
		derived, err := in.deriver.DeriveAccount(seed, chain, 0, pin)
		if err != nil {
			return "", fmt.Errorf("derive %s account: %w", chain, err)
		}
		state.Accounts = append(state.Accounts, Account{
			ID:        uuid.NewString(),
			Name:      fmt.Sprintf("%s 1", chain.DisplayName()),
			Chain:     chain,
			Pubkey:    hex.EncodeToString(derived.Pub),
			Address:   derived.Address,
			Path:      derived.Path,
			Enc:       derived.Enc,
			CreatedAt: now,
		})
	}

	state.MnemonicEnc, err = keys.Encrypt([]byte(mnemonic), pin, in.params)
	if err != nil {
		return "", fmt.Errorf("encrypt mnemonic: %w", err)
	}

	if err := in.store.Save(state); err != nil {
		return "", err
	}
	return mnemonic, nil
}

// AddAccount derives the next account for a chain under the current
// PIN and appends it to the vault. Re-deriving the same (seed, path)
// yields the same address, so restores are idempotent: an account
// whose address already exists is returned as-is.
func (in *Initializer) AddAccount(pin string, chain types.Chain, name string) (*Account, error) {
	state, err := in.store.Load()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, werr.ErrNeedsSetup
	}

	mnemonic, err := keys.Decrypt(state.MnemonicEnc, pin)
	if err != nil {
		return nil, err
	}
	defer keys.Zero(mnemonic)

	seed, err := keys.SeedFromMnemonic(string(mnemonic), "")
	if err != nil {
		return nil, err
	}
	defer keys.Zero(seed)

	// Next index on this chain.
	var index uint32
	for i := range state.Accounts {
		if state.Accounts[i].Chain == chain {
			index++
		}
	}

	derived, err := in.deriver.DeriveAccount(seed, chain, index, pin)
	if err != nil {
		return nil, fmt.Errorf("derive %s account: %w", chain, err)
	}

	if name == "" {
		name = fmt.Sprintf("%s %d", chain.DisplayName(), index+1)
	}

	var out Account
	_, err = in.store.Update(func(st *WalletState) error {
		for i := range st.Accounts {
			if st.Accounts[i].Address == derived.Address {
				out = st.Accounts[i]
				return nil
			}
		}
		out = Account{
			ID:        uuid.NewString(),
			Name:      name,
			Chain:     chain,
			Pubkey:    hex.EncodeToString(derived.Pub),
			Address:   derived.Address,
			Path:      derived.Path,
			Enc:       derived.Enc,
			CreatedAt: time.Now().Unix(),
		}
		st.Accounts = append(st.Accounts, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
