// Package origins manages per-origin connection grants. The origin (the
// requesting website's identity) is the unit of permission.
package origins

import (
	"time"

	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/session"
	"github.com/Klingon-tech/klingnet-wallet/internal/vault"
	"github.com/Klingon-tech/klingnet-wallet/pkg/werr"
)

// Store reads and mutates the origins map inside the wallet state. All
// mutations go through the vault store's single save path.
type Store struct {
	vault   *vault.Store
	session *session.Manager
	logger  zerolog.Logger
}

// New creates an origin permission store.
func New(vaultStore *vault.Store, sess *session.Manager) *Store {
	return &Store{
		vault:   vaultStore,
		session: sess,
		logger:  klog.Origins,
	}
}

// Grant records a connection grant for the origin, selecting the given
// account. Overwrites any previous grant for the origin.
func (s *Store) Grant(origin, accountID string) (*vault.Account, error) {
	var granted vault.Account
	_, err := s.vault.Update(func(state *vault.WalletState) error {
		acct := state.AccountByID(accountID)
		if acct == nil {
			return werr.Newf(werr.CodeInvalidParams, "unknown account %s", accountID)
		}
		now := time.Now().Unix()
		state.Origins[origin] = vault.OriginPermission{
			Allowed:           true,
			SelectedAccountID: accountID,
			ConnectedAt:       now,
			LastUsed:          now,
		}
		granted = *acct
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("origin", origin).Str("account", accountID).Msg("connection granted")
	return &granted, nil
}

// Revoke deletes the origin's grant entirely. No "allowed:false" ghost
// entry is ever left behind. Revoking an origin with no grant is a
// no-op.
func (s *Store) Revoke(origin string) error {
	_, err := s.vault.Update(func(state *vault.WalletState) error {
		delete(state.Origins, origin)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info().Str("origin", origin).Msg("connection revoked")
	return nil
}

// Granted reports whether the origin currently holds a grant. Safe to
// call while locked; it reads only plaintext metadata.
func (s *Store) Granted(origin string) (bool, error) {
	state, err := s.vault.Load()
	if err != nil {
		return false, err
	}
	if state == nil {
		return false, nil
	}
	perm, ok := state.Origins[origin]
	return ok && perm.Allowed, nil
}

// ConnectedAccount returns the origin's selected account, but only
// while the session is Unlocked and the grant exists. A locked session
// never reveals a connected account.
func (s *Store) ConnectedAccount(origin string) (*vault.Account, error) {
	if err := s.session.RequireUnlocked(); err != nil {
		return nil, err
	}
	state, err := s.vault.Load()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, werr.ErrNeedsSetup
	}
	perm, ok := state.Origins[origin]
	if !ok || !perm.Allowed {
		return nil, werr.ErrNotConnected
	}
	acct := state.AccountByID(perm.SelectedAccountID)
	if acct == nil {
		return nil, werr.ErrNotConnected
	}
	out := *acct
	return &out, nil
}

// Touch updates the origin's lastUsed timestamp. Failures are logged
// and swallowed; a missed timestamp never fails a request.
func (s *Store) Touch(origin string) {
	_, err := s.vault.Update(func(state *vault.WalletState) error {
		perm, ok := state.Origins[origin]
		if !ok {
			return nil
		}
		perm.LastUsed = time.Now().Unix()
		state.Origins[origin] = perm
		return nil
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("origin", origin).Msg("touch failed")
	}
}
