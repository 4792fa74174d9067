// Package vault persists the wallet's encrypted state: accounts with
// encrypted secrets, origin permissions, and the encrypted mnemonic.
package vault

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-wallet/internal/keys"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/Klingon-tech/klingnet-wallet/pkg/werr"
)

// CurrentVersion is the schema version stamped on every save.
const CurrentVersion = 2

// Account is one chain identity. Address and pubkey are plaintext so
// lookups work without unlocking; the private key lives only inside
// Enc.
type Account struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Chain     types.Chain `json:"chain"`
	Pubkey    string      `json:"pubkey"` // hex
	Address   string      `json:"address"`
	Path      string      `json:"path"`
	Enc       keys.Blob   `json:"enc"`
	CreatedAt int64       `json:"createdAt"` // unix seconds
}

// OriginPermission records a connection grant for one origin. Entries
// are deleted entirely on revoke; an entry with Allowed=false is never
// written.
type OriginPermission struct {
	Allowed           bool        `json:"allowed"`
	SelectedAccountID string      `json:"selectedAccountId"`
	ChainOverride     types.Chain `json:"chainOverride,omitempty"`
	ConnectedAt       int64       `json:"connectedAt"`
	LastUsed          int64       `json:"lastUsed"`
}

// WatchedAsset is a token an origin asked the wallet to track for an
// account.
type WatchedAsset struct {
	Chain    types.Chain `json:"chain"`
	Address  string      `json:"address"` // token contract / mint
	Symbol   string      `json:"symbol"`
	Decimals int         `json:"decimals"`
	AddedAt  int64       `json:"addedAt"`
}

// WalletState is the whole vault for one installation. Every mutation
// is a full-state replace-and-persist; there is no partial merge.
type WalletState struct {
	Version     int                         `json:"version"`
	CreatedAt   int64                       `json:"createdAt"`
	Accounts    []Account                   `json:"accounts"`
	Origins     map[string]OriginPermission `json:"origins"`
	MnemonicEnc keys.Blob                   `json:"mnemonicEnc,omitempty"`
	// WatchedAssets is keyed by account id.
	WatchedAssets map[string][]WatchedAsset `json:"watchedAssets,omitempty"`
}

// AccountByID returns the account with the given id, or nil.
func (s *WalletState) AccountByID(id string) *Account {
	for i := range s.Accounts {
		if s.Accounts[i].ID == id {
			return &s.Accounts[i]
		}
	}
	return nil
}

// AccountForChain returns the first account on the given chain, or nil.
func (s *WalletState) AccountForChain(chain types.Chain) *Account {
	for i := range s.Accounts {
		if s.Accounts[i].Chain == chain {
			return &s.Accounts[i]
		}
	}
	return nil
}

// Validate checks the schema invariants before the state is handed to
// callers. Malformed state is rejected as werr.ErrStorageInvalid, not
// silently accepted.
func (s *WalletState) Validate() error {
	if s.CreatedAt <= 0 {
		return fmt.Errorf("%w: createdAt missing", werr.ErrStorageInvalid)
	}
	if s.Accounts == nil {
		return fmt.Errorf("%w: accounts is not an array", werr.ErrStorageInvalid)
	}
	if s.Origins == nil {
		return fmt.Errorf("%w: origins is not a map", werr.ErrStorageInvalid)
	}
	seen := make(map[string]struct{}, len(s.Accounts))
	for i := range s.Accounts {
		a := &s.Accounts[i]
		if a.ID == "" {
			return fmt.Errorf("%w: account %d missing id", werr.ErrStorageInvalid, i)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: duplicate account id %s", werr.ErrStorageInvalid, a.ID)
		}
		seen[a.ID] = struct{}{}
		if !a.Chain.Valid() {
			return fmt.Errorf("%w: account %s has unknown chain %q", werr.ErrStorageInvalid, a.ID, a.Chain)
		}
		if a.Address == "" {
			return fmt.Errorf("%w: account %s missing address", werr.ErrStorageInvalid, a.ID)
		}
		if a.Enc.IsZero() {
			return fmt.Errorf("%w: account %s missing encrypted secret", werr.ErrStorageInvalid, a.ID)
		}
	}
	for origin, perm := range s.Origins {
		if origin == "" {
			return fmt.Errorf("%w: empty origin key", werr.ErrStorageInvalid)
		}
		if perm.SelectedAccountID != "" && s.AccountByID(perm.SelectedAccountID) == nil {
			return fmt.Errorf("%w: origin %s references unknown account %s",
				werr.ErrStorageInvalid, origin, perm.SelectedAccountID)
		}
	}
	return nil
}

// migrate upgrades older-shaped state in place and reports whether
// anything changed. Running it on already-migrated state is a no-op.
func (s *WalletState) migrate() bool {
	changed := false
	if s.Origins == nil {
		s.Origins = make(map[string]OriginPermission)
		changed = true
	}
	if s.Version < CurrentVersion {
		// v1 accounts predate per-account timestamps.
		for i := range s.Accounts {
			if s.Accounts[i].CreatedAt == 0 {
				s.Accounts[i].CreatedAt = s.CreatedAt
				changed = true
			}
		}
		s.Version = CurrentVersion
		changed = true
	}
	return changed
}
