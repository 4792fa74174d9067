package vault

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/storage"
	"github.com/Klingon-tech/klingnet-wallet/pkg/werr"
)

// stateKey is the storage key the serialized WalletState lives under.
var stateKey = []byte("state")

// checksumSize is the BLAKE3 digest length prepended to the payload.
const checksumSize = 32

// Store persists exactly one WalletState. All writes serialize through
// a single mutex and replace the entire state, so concurrent mutations
// can never merge partial diffs.
type Store struct {
	mu     sync.Mutex
	db     storage.DB
	logger zerolog.Logger

	// onClear is invoked after Clear wipes the state; the session
	// manager registers its Lock here.
	onClear func()
}

// NewStore creates a vault store over the given database.
func NewStore(db storage.DB) *Store {
	return &Store{
		db:     db,
		logger: klog.Vault,
	}
}

// SetClearHook registers a function to run after Clear. Used to force
// the session to Locked when the vault is wiped.
func (s *Store) SetClearHook(fn func()) {
	s.onClear = fn
}

// Load reads, verifies, validates, and (if needed) migrates the
// persisted state. Returns (nil, nil) when the vault has never been
// initialized.
func (s *Store) Load() (*WalletState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Initialized reports whether a vault exists.
func (s *Store) Initialized() (bool, error) {
	return s.db.Has(stateKey)
}

// Save validates and persists the full state, stamping the current
// schema version.
func (s *Store) Save(state *WalletState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(state)
}

// Update runs fn on the freshly loaded state and persists the result.
// This is the single read-modify-write path every mutation goes
// through. fn must not retain the state past its return.
func (s *Store) Update(fn func(*WalletState) error) (*WalletState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, werr.ErrNeedsSetup
	}
	if err := fn(state); err != nil {
		return nil, err
	}
	if err := s.saveLocked(state); err != nil {
		return nil, err
	}
	return state, nil
}

// Clear deletes the persisted state and fires the clear hook.
func (s *Store) Clear() error {
	s.mu.Lock()
	err := s.db.Delete(stateKey)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("clear vault: %w", err)
	}
	s.logger.Info().Msg("vault cleared")
	if s.onClear != nil {
		s.onClear()
	}
	return nil
}

func (s *Store) loadLocked() (*WalletState, error) {
	raw, err := s.db.Get(stateKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load vault: %w", err)
	}

	if len(raw) < checksumSize {
		return nil, fmt.Errorf("%w: truncated payload", werr.ErrStorageInvalid)
	}
	sum := blake3.Sum256(raw[checksumSize:])
	if !bytes.Equal(sum[:], raw[:checksumSize]) {
		return nil, fmt.Errorf("%w: checksum mismatch", werr.ErrStorageInvalid)
	}

	var state WalletState
	if err := json.Unmarshal(raw[checksumSize:], &state); err != nil {
		return nil, fmt.Errorf("%w: %v", werr.ErrStorageInvalid, err)
	}

	migrated := state.migrate()
	if err := state.Validate(); err != nil {
		return nil, err
	}
	if migrated {
		s.logger.Info().Int("version", state.Version).Msg("migrated wallet state")
		if err := s.saveLocked(&state); err != nil {
			return nil, err
		}
	}
	return &state, nil
}

func (s *Store) saveLocked(state *WalletState) error {
	state.Version = CurrentVersion
	if err := state.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal vault: %w", err)
	}
	sum := blake3.Sum256(payload)

	value := make([]byte, 0, checksumSize+len(payload))
	value = append(value, sum[:]...)
	value = append(value, payload...)

	if err := s.db.Put(stateKey, value); err != nil {
		return fmt.Errorf("save vault: %w", err)
	}
	return nil
}
