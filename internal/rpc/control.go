package rpc

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/pkg/werr"
)

// Control endpoints drive the operator surface: setup, lock state,
// lifecycle signals. They are expected to be reachable only from
// localhost (the IP allowlist enforces this in the default config).

type controlUnlockParams struct {
	PIN string `json:"pin"`
}

type controlInitParams struct {
	PIN      string `json:"pin"`
	Mnemonic string `json:"mnemonic,omitempty"`
}

// initResult carries the mnemonic back exactly once, at creation,
// for the operator to write down. It is never retrievable again
// in plaintext without the PIN.
type initResult struct {
	Mnemonic string `json:"mnemonic"`
}

type statusResult struct {
	Initialized  bool   `json:"initialized"`
	State        string `json:"state"`
	ExpiresAt    int64  `json:"expiresAt,omitempty"`
	PendingCount int    `json:"pendingCount"`
	RememberPIN  bool   `json:"rememberPin"`
	InstallID    string `json:"installId,omitempty"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/control/")

	if action == "status" {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			writeFailure(w, nil, werr.New(werr.CodeInvalidParams, "only GET or POST is allowed"))
			return
		}
		s.controlStatus(w)
		return
	}

	if r.Method != http.MethodPost {
		writeFailure(w, nil, werr.New(werr.CodeInvalidParams, "only POST method is allowed"))
		return
	}

	switch action {
	case "init":
		s.controlInit(w, r, false)
	case "restore":
		s.controlInit(w, r, true)
	case "unlock":
		s.controlUnlock(w, r)
	case "lock":
		s.session.Lock()
		writeJSON(w, envelope{OK: true, Result: true})
	case "background":
		s.session.Background()
		writeJSON(w, envelope{OK: true, Result: true})
	case "suspend":
		s.session.Suspend()
		writeJSON(w, envelope{OK: true, Result: true})
	case "remember-pin":
		if err := s.session.RememberPIN(); err != nil {
			writeFailure(w, nil, werr.From(err))
			return
		}
		writeJSON(w, envelope{OK: true, Result: true})
	case "forget-pin":
		if err := s.session.ForgetPIN(); err != nil {
			writeFailure(w, nil, werr.From(err))
			return
		}
		writeJSON(w, envelope{OK: true, Result: true})
	case "reset":
		s.controlReset(w)
	default:
		writeFailure(w, nil, werr.Newf(werr.CodeMethodNotFound, "unknown control action %q", action))
	}
}

func (s *Server) controlStatus(w http.ResponseWriter) {
	initialized, err := s.vault.Initialized()
	if err != nil {
		writeFailure(w, nil, werr.From(err))
		return
	}
	remembered, _ := s.session.HasRememberedPIN()

	res := statusResult{
		Initialized:  initialized,
		State:        s.session.State().String(),
		PendingCount: s.router.PendingCount(),
		RememberPIN:  remembered,
		InstallID:    s.session.InstallID(),
	}
	if exp := s.session.ExpiresAt(); !exp.IsZero() {
		res.ExpiresAt = exp.Unix()
	}
	writeJSON(w, envelope{OK: true, Result: res})
}

// controlInit creates a fresh wallet (restore=false generates a new
// mnemonic) or restores one from a supplied mnemonic.
func (s *Server) controlInit(w http.ResponseWriter, r *http.Request, restore bool) {
	var p controlInitParams
	if !decodeControlBody(w, r, &p) {
		return
	}
	if p.PIN == "" {
		writeFailure(w, nil, werr.New(werr.CodeInvalidParams, "pin is required"))
		return
	}
	if restore && p.Mnemonic == "" {
		writeFailure(w, nil, werr.New(werr.CodeInvalidParams, "mnemonic is required for restore"))
		return
	}

	mnemonic, err := s.setup.Initialize(p.PIN, p.Mnemonic)
	if err != nil {
		writeFailure(w, nil, werr.From(err))
		return
	}

	// Unlock immediately; a freshly created wallet should not make
	// the operator type the PIN twice.
	if err := s.session.Unlock(p.PIN, s.autoLockTTL); err != nil {
		writeFailure(w, nil, werr.From(err))
		return
	}

	if restore {
		writeJSON(w, envelope{OK: true, Result: true})
		return
	}
	writeJSON(w, envelope{OK: true, Result: initResult{Mnemonic: mnemonic}})
}

func (s *Server) controlUnlock(w http.ResponseWriter, r *http.Request) {
	var p controlUnlockParams
	if !decodeControlBody(w, r, &p) {
		return
	}
	if p.PIN == "" {
		writeFailure(w, nil, werr.New(werr.CodeInvalidParams, "pin is required"))
		return
	}
	if err := s.session.Unlock(p.PIN, s.autoLockTTL); err != nil {
		writeFailure(w, nil, werr.From(err))
		return
	}
	writeJSON(w, envelope{OK: true, Result: statusExpiry(s.session.ExpiresAt())})
}

// controlReset wipes the vault and any persisted session material.
// The vault's clear hook locks the session as a side effect.
func (s *Server) controlReset(w http.ResponseWriter) {
	if err := s.vault.Clear(); err != nil {
		writeFailure(w, nil, werr.From(err))
		return
	}
	if err := s.session.ClearPersisted(); err != nil {
		writeFailure(w, nil, werr.From(err))
		return
	}
	writeJSON(w, envelope{OK: true, Result: true})
}

func decodeControlBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := readBody(r)
	if err != nil {
		writeFailure(w, nil, werr.From(err))
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeFailure(w, nil, werr.New(werr.CodeInvalidParams, "invalid JSON"))
		return false
	}
	return true
}

func statusExpiry(t time.Time) map[string]int64 {
	if t.IsZero() {
		return map[string]int64{}
	}
	return map[string]int64{"expiresAt": t.Unix()}
}
