// Package werr defines the wallet's caller-visible error taxonomy.
//
// Every error that crosses the transport boundary is (or wraps) an
// *Error carrying a numeric code and a stable reason string. Error
// payloads never contain decrypted secret material.
package werr

import (
	"errors"
	"fmt"
)

// Wire error codes. The 4xxx range follows the provider-request
// conventions dApps expect; the -32xxx range is JSON-RPC.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeInvalidParams     = 4200
	CodeRequestTimeout    = 4408
	CodeUnrecognizedChain = 4902
	CodeMethodNotFound    = -32601
	CodeInternal          = -32603
)

// Reason strings carried in Error.Data for 4100-class errors, so
// callers can distinguish the unauthorized sub-cases without new codes.
const (
	ReasonWalletLocked = "WALLET_LOCKED"
	ReasonInvalidPIN   = "INVALID_PIN"
	ReasonNotConnected = "NOT_CONNECTED"
	ReasonNeedsSetup   = "NEEDS_SETUP"
)

// Error is a typed wallet error with a wire code.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

// New creates an Error with the given code and message.
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Sentinel errors used across component boundaries.
var (
	// ErrWalletLocked is raised by privileged operations while the
	// session is Locked.
	ErrWalletLocked = &Error{Code: CodeUnauthorized, Message: "wallet is locked", Data: ReasonWalletLocked}

	// ErrInvalidPIN is raised when a PIN fails the canary decrypt.
	ErrInvalidPIN = &Error{Code: CodeUnauthorized, Message: "invalid PIN", Data: ReasonInvalidPIN}

	// ErrNotConnected is raised when an origin without a grant asks
	// for connected-account data.
	ErrNotConnected = &Error{Code: CodeUnauthorized, Message: "origin is not connected", Data: ReasonNotConnected}

	// ErrNeedsSetup is raised when the vault has never been initialized.
	ErrNeedsSetup = &Error{Code: CodeUnauthorized, Message: "wallet is not set up", Data: ReasonNeedsSetup}

	// ErrUserRejected is raised when the user declines an approval.
	ErrUserRejected = &Error{Code: CodeUserRejected, Message: "user rejected the request"}

	// ErrRequestTimeout is raised when an approval is not answered
	// within the ceiling.
	ErrRequestTimeout = &Error{Code: CodeRequestTimeout, Message: "request timed out awaiting approval"}

	// ErrConnectionLost is the connection-lost-class rejection used
	// when a lock cancels outstanding requests.
	ErrConnectionLost = &Error{Code: CodeUnauthorized, Message: "wallet locked while request was pending", Data: ReasonWalletLocked}

	// ErrDecryptionFailed covers both a wrong PIN and tampered
	// ciphertext; the two cases are intentionally indistinguishable.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrStorageInvalid is raised when persisted state fails schema
	// validation.
	ErrStorageInvalid = errors.New("stored wallet state is invalid")
)

// From converts any error into an *Error suitable for the wire.
// Known typed errors pass through; everything else becomes an
// internal error with a generic message (the original error is for
// logs only, never the caller).
func From(err error) *Error {
	var we *Error
	if errors.As(err, &we) {
		return we
	}
	if errors.Is(err, ErrDecryptionFailed) {
		return &Error{Code: CodeUnauthorized, Message: "decryption failed", Data: ReasonInvalidPIN}
	}
	if errors.Is(err, ErrStorageInvalid) {
		return &Error{Code: CodeInternal, Message: "stored wallet state is invalid", Data: "STORAGE_INVALID"}
	}
	return &Error{Code: CodeInternal, Message: "internal error"}
}
