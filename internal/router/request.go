// Package router classifies inbound wallet requests, queues privileged
// ones for user approval, enforces timeouts, and dispatches approved
// requests to their handlers.
package router

import (
	"encoding/json"
	"fmt"
	"time"
)

// Request is one inbound request from a page origin. ID is the
// canonical string form (see CanonicalID).
type Request struct {
	ID     string
	Method string
	Params json.RawMessage
	Origin string
}

// CanonicalID converts an incoming JSON id (string or number) to the
// single string representation carried through the entire request
// lifecycle, so lookups can never miss on type. numeric reports whether
// the inbound value was a JSON number, for FormatID.
func CanonicalID(raw json.RawMessage) (id string, numeric bool, err error) {
	if len(raw) == 0 {
		return "", false, fmt.Errorf("id is required")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", false, fmt.Errorf("id must not be empty")
		}
		return s, false, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true, nil
	}
	return "", false, fmt.Errorf("id must be a string or number")
}

// FormatID renders a canonical id back to its JSON value. Only ids that
// arrived as JSON numbers go back out as numbers; string ids echo
// verbatim, even when they look numeric.
func FormatID(id string, numeric bool) interface{} {
	if numeric {
		return json.Number(id)
	}
	return id
}

// Class is a request classification.
type Class int

const (
	// ClassPublic requests are answered immediately; the vault is
	// never touched.
	ClassPublic Class = iota
	// ClassIdentity requests reveal connected-account data: immediate
	// for granted origins, an empty answer otherwise.
	ClassIdentity
	// ClassPrivileged requests always run the full approval workflow.
	ClassPrivileged
)

// Supported methods.
const (
	MethodChainID           = "wallet_chainId"
	MethodSupportedChains   = "wallet_supportedChains"
	MethodAccounts          = "wallet_accounts"
	MethodConnect           = "wallet_connect"
	MethodSignMessage       = "wallet_signMessage"
	MethodSignTransaction   = "wallet_signTransaction"
	MethodSendTransaction   = "wallet_sendTransaction"
	MethodSignTypedData     = "wallet_signTypedData"
	MethodWatchAsset        = "wallet_watchAsset"
	MethodRequestPermission = "wallet_requestPermissions"
	MethodRevokePermission  = "wallet_revokePermissions"
)

// Classify returns the class for a method, or ok=false for unknown
// methods.
func Classify(method string) (Class, bool) {
	switch method {
	case MethodChainID, MethodSupportedChains:
		return ClassPublic, true
	case MethodAccounts:
		return ClassIdentity, true
	case MethodConnect, MethodSignMessage, MethodSignTransaction,
		MethodSendTransaction, MethodSignTypedData, MethodWatchAsset,
		MethodRequestPermission, MethodRevokePermission:
		return ClassPrivileged, true
	}
	return 0, false
}

// PendingInfo is the approval-surface view of one queued request:
// id, method, origin, and decoded params. Never any secret material.
type PendingInfo struct {
	ID        string          `json:"id"`
	Method    string          `json:"method"`
	Origin    string          `json:"origin"`
	Params    json.RawMessage `json:"params,omitempty"`
	Kind      string          `json:"kind"` // "approval" or "unlock"
	CreatedAt time.Time       `json:"createdAt"`
}
