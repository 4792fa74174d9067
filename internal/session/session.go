// Package session implements the wallet's lock/unlock state machine.
//
// A Manager is constructed once at startup and passed by reference to
// every component that needs it; there is no package-level session
// singleton.
package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-wallet/internal/keys"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/storage"
	"github.com/Klingon-tech/klingnet-wallet/internal/vault"
	"github.com/Klingon-tech/klingnet-wallet/pkg/werr"
)

// State is the session state.
type State int

const (
	Locked State = iota
	Unlocked
)

func (s State) String() string {
	if s == Unlocked {
		return "unlocked"
	}
	return "locked"
}

// Config holds session timing parameters.
type Config struct {
	// AutoLockTTL is the default unlock lifetime.
	AutoLockTTL time.Duration
	// GraceWindow is the shortened lifetime applied when the host
	// reports backgrounding.
	GraceWindow time.Duration
}

// Manager is the lock/unlock state machine. The PIN is held in memory
// only while Unlocked and is never written to any persistent store in
// plaintext.
type Manager struct {
	mu        sync.Mutex
	state     State
	pin       string
	expiresAt time.Time
	timer     *time.Timer

	vault  *vault.Store
	db     storage.DB // session-scoped namespace
	cfg    Config
	logger zerolog.Logger

	lockListeners   []func()
	unlockListeners []func()
}

// New creates a locked session manager. db must be a session-scoped
// namespace of the wallet database (it holds the remembered-PIN blob
// and the installation secret, never the PIN itself).
func New(vaultStore *vault.Store, db storage.DB, cfg Config) *Manager {
	if cfg.AutoLockTTL <= 0 {
		cfg.AutoLockTTL = 10 * time.Minute
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = 30 * time.Second
	}
	m := &Manager{
		state:  Locked,
		vault:  vaultStore,
		db:     db,
		cfg:    cfg,
		logger: klog.Session,
	}
	// Wiping the vault always forces a lock.
	vaultStore.SetClearHook(m.Lock)
	return m
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ExpiresAt returns when the session will auto-lock (zero when locked).
func (m *Manager) ExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiresAt
}

// OnLock registers a listener fired synchronously whenever the session
// transitions to Locked. The router uses this to reject every
// outstanding pending request.
func (m *Manager) OnLock(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockListeners = append(m.lockListeners, fn)
}

// OnUnlock registers a listener fired whenever the session transitions
// to Unlocked. The router uses this to replay the pending-unlock queue.
func (m *Manager) OnUnlock(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlockListeners = append(m.unlockListeners, fn)
}

// Unlock validates the PIN against the canary ciphertext (the stored
// encrypted mnemonic) and transitions to Unlocked for ttl (the
// configured default when ttl <= 0). A failed decrypt leaves the
// session Locked and returns INVALID_PIN.
func (m *Manager) Unlock(pin string, ttl time.Duration) error {
	state, err := m.vault.Load()
	if err != nil {
		return err
	}
	if state == nil || state.MnemonicEnc.IsZero() {
		return werr.ErrNeedsSetup
	}

	plaintext, err := keys.Decrypt(state.MnemonicEnc, pin)
	if err != nil {
		// The canary is known-good here, so a decrypt failure means
		// a wrong PIN.
		m.logger.Warn().Msg("unlock failed")
		return werr.ErrInvalidPIN
	}
	keys.Zero(plaintext)

	if ttl <= 0 {
		ttl = m.cfg.AutoLockTTL
	}

	m.mu.Lock()
	m.state = Unlocked
	m.pin = pin
	m.expiresAt = time.Now().Add(ttl)
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(ttl, m.autoLock)
	listeners := append([]func(){}, m.unlockListeners...)
	m.mu.Unlock()

	m.logger.Info().Dur("ttl", ttl).Msg("session unlocked")
	for _, fn := range listeners {
		fn()
	}
	return nil
}

// Lock wipes the in-memory PIN, cancels the auto-lock timer, and
// transitions to Locked. Lock listeners run synchronously so no
// pending request is left hanging.
func (m *Manager) Lock() {
	m.mu.Lock()
	wasUnlocked := m.state == Unlocked
	m.state = Locked
	m.pin = ""
	m.expiresAt = time.Time{}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	listeners := append([]func(){}, m.lockListeners...)
	m.mu.Unlock()

	if wasUnlocked {
		m.logger.Info().Msg("session locked")
	}
	for _, fn := range listeners {
		fn()
	}
}

func (m *Manager) autoLock() {
	m.logger.Info().Msg("auto-lock timer fired")
	m.Lock()
}

// RequireUnlocked is the guard every privileged operation calls before
// touching the vault.
func (m *Manager) RequireUnlocked() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Unlocked {
		return werr.ErrWalletLocked
	}
	return nil
}

// PIN returns the in-memory PIN for decrypt/sign paths. Fails with
// WALLET_LOCKED when the session is not Unlocked.
func (m *Manager) PIN() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Unlocked {
		return "", werr.ErrWalletLocked
	}
	return m.pin, nil
}

// Background handles a visibility/backgrounding signal: the remaining
// ttl shrinks to the grace window, tolerating brief context switches.
// The window never extends the session.
func (m *Manager) Background() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Unlocked {
		return
	}
	grace := time.Now().Add(m.cfg.GraceWindow)
	if grace.After(m.expiresAt) {
		return
	}
	m.expiresAt = grace
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.cfg.GraceWindow, m.autoLock)
	m.logger.Debug().Dur("grace", m.cfg.GraceWindow).Msg("backgrounded, ttl shrunk")
}

// Suspend handles a hard suspend signal: immediate lock, no grace.
func (m *Manager) Suspend() {
	m.Lock()
}
