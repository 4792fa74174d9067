package session

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Klingon-tech/klingnet-wallet/internal/keys"
	"github.com/Klingon-tech/klingnet-wallet/internal/storage"
)

// Remembered-PIN storage keys (within the session namespace).
var (
	rememberedPINKey = []byte("remembered_pin")
	installSecretKey = []byte("install_secret")
	installIDKey     = []byte("install_id")
)

// RememberPIN opts in to PIN persistence: the current PIN is encrypted
// under the installation-bound secret (a random key for this install,
// not a user secret) and stored separately from the vault. Requires an
// unlocked session.
func (m *Manager) RememberPIN() error {
	pin, err := m.PIN()
	if err != nil {
		return err
	}

	secret, err := m.installSecret()
	if err != nil {
		return err
	}
	defer keys.Zero(secret)

	blob, err := keys.EncryptWithKey([]byte(pin), secret)
	if err != nil {
		return fmt.Errorf("encrypt remembered pin: %w", err)
	}
	raw, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("marshal remembered pin: %w", err)
	}
	if err := m.db.Put(rememberedPINKey, raw); err != nil {
		return fmt.Errorf("store remembered pin: %w", err)
	}
	m.logger.Info().Msg("pin remembered for this installation")
	return nil
}

// ForgetPIN revokes the remembered PIN independently of the session
// state.
func (m *Manager) ForgetPIN() error {
	if err := m.db.Delete(rememberedPINKey); err != nil {
		return fmt.Errorf("delete remembered pin: %w", err)
	}
	return nil
}

// HasRememberedPIN reports whether a remembered-PIN blob exists.
func (m *Manager) HasRememberedPIN() (bool, error) {
	return m.db.Has(rememberedPINKey)
}

// TryRestore attempts an automatic unlock from the remembered-PIN blob
// at process start. Any failure (undecryptable blob, stale PIN) clears
// the blob rather than looping, and leaves the session Locked.
func (m *Manager) TryRestore(ttl time.Duration) bool {
	raw, err := m.db.Get(rememberedPINKey)
	if err != nil {
		return false
	}

	var blob keys.Blob
	if err := json.Unmarshal(raw, &blob); err != nil {
		m.logger.Warn().Msg("remembered pin blob malformed, clearing")
		_ = m.ForgetPIN()
		return false
	}

	secret, err := m.installSecret()
	if err != nil {
		return false
	}
	defer keys.Zero(secret)

	pin, err := keys.DecryptWithKey(blob, secret)
	if err != nil {
		m.logger.Warn().Msg("remembered pin undecryptable, clearing")
		_ = m.ForgetPIN()
		return false
	}

	if err := m.Unlock(string(pin), ttl); err != nil {
		keys.Zero(pin)
		m.logger.Warn().Msg("remembered pin no longer valid, clearing")
		_ = m.ForgetPIN()
		return false
	}
	keys.Zero(pin)
	m.logger.Info().Msg("session restored from remembered pin")
	return true
}

// ClearPersisted removes the remembered-PIN blob, installation secret,
// and installation id. Used by the vault reset path.
func (m *Manager) ClearPersisted() error {
	if err := m.db.Delete(rememberedPINKey); err != nil {
		return err
	}
	if err := m.db.Delete(installSecretKey); err != nil {
		return err
	}
	return m.db.Delete(installIDKey)
}

// installSecret returns the installation-bound secret, creating it on
// first use. Callers zero the returned slice.
func (m *Manager) installSecret() ([]byte, error) {
	secret, err := m.db.Get(installSecretKey)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load install secret: %w", err)
	}

	secret = make([]byte, keys.KeySize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate install secret: %w", err)
	}
	if err := m.db.Put(installSecretKey, secret); err != nil {
		return nil, fmt.Errorf("store install secret: %w", err)
	}
	if err := m.db.Put(installIDKey, []byte(uuid.NewString())); err != nil {
		return nil, fmt.Errorf("store install id: %w", err)
	}
	return secret, nil
}

// InstallID returns the installation id, if one has been created.
func (m *Manager) InstallID() string {
	id, err := m.db.Get(installIDKey)
	if err != nil {
		return ""
	}
	return string(id)
}
