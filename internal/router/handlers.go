package router

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/chains"
	"github.com/Klingon-tech/klingnet-wallet/internal/keys"
	"github.com/Klingon-tech/klingnet-wallet/internal/vault"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/Klingon-tech/klingnet-wallet/pkg/werr"
)

// ── Result types ────────────────────────────────────────────────────────

// AccountInfo is the public view of an account: plaintext metadata
// only, never key material.
type AccountInfo struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Chain   types.Chain `json:"chain"`
	Address string      `json:"address"`
}

// ConnectResult is returned by wallet_connect.
type ConnectResult struct {
	AccountID string      `json:"accountId"`
	Address   string      `json:"address"`
	Chain     types.Chain `json:"chain"`
	ChainID   string      `json:"chainId"`
}

// SignResult is returned by the signing methods.
type SignResult struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// SendResult is returned by wallet_sendTransaction.
type SendResult struct {
	Address string `json:"address"`
	TxHash  string `json:"txHash"`
}

// PermissionInfo describes one origin grant.
type PermissionInfo struct {
	Origin      string `json:"origin"`
	Capability  string `json:"capability"`
	AccountID   string `json:"accountId"`
	ConnectedAt int64  `json:"connectedAt"`
}

// ChainInfo is returned by wallet_supportedChains.
type ChainInfo struct {
	Chain   types.Chain `json:"chain"`
	ChainID string      `json:"chainId"`
	Name    string      `json:"name"`
}

// ── Param types ─────────────────────────────────────────────────────────

type chainParam struct {
	Chain types.Chain `json:"chain,omitempty"`
}

type connectParams struct {
	Chain     types.Chain `json:"chain,omitempty"`
	AccountID string      `json:"accountId,omitempty"`
}

type signParams struct {
	Chain     types.Chain     `json:"chain,omitempty"`
	AccountID string          `json:"accountId,omitempty"`
	Message   string          `json:"message,omitempty"`
	Tx        string          `json:"tx,omitempty"`
	TypedData json.RawMessage `json:"typedData,omitempty"`
}

type watchAssetParams struct {
	Chain    types.Chain `json:"chain,omitempty"`
	Address  string      `json:"address"`
	Symbol   string      `json:"symbol"`
	Decimals int         `json:"decimals"`
}

// connectApproval is the optional payload the approval surface sends
// with an approved connect: the account the user picked in the prompt.
type connectApproval struct {
	AccountID string `json:"accountId,omitempty"`
}

func parseParams(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return werr.Newf(werr.CodeInvalidParams, "malformed params: %v", err)
	}
	return nil
}

// ── Dispatch ────────────────────────────────────────────────────────────

// dispatch executes the method-specific handler for an authorized
// request. Any panic is converted to INTERNAL_ERROR so the associated
// PendingRequest is never abandoned unresolved.
func (r *Router) dispatch(req Request, approval json.RawMessage) (result interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Interface("panic", p).Str("id", req.ID).Str("method", req.Method).Msg("handler panicked")
			result, err = nil, werr.New(werr.CodeInternal, "internal error")
		}
	}()

	// The guard runs last-thing before any vault access, so a request
	// arriving with a superficially-approved flag still cannot execute
	// while locked.
	if err := r.session.RequireUnlocked(); err != nil {
		return nil, err
	}

	switch req.Method {
	case MethodAccounts:
		return r.handleAccounts(req)
	case MethodConnect:
		return r.handleConnect(req, approval)
	case MethodRequestPermission:
		return r.handleRequestPermissions(req, approval)
	case MethodRevokePermission:
		return r.handleRevokePermissions(req)
	case MethodSignMessage:
		return r.handleSignMessage(req)
	case MethodSignTransaction:
		return r.handleSignTransaction(req, false)
	case MethodSendTransaction:
		return r.handleSignTransaction(req, true)
	case MethodSignTypedData:
		return r.handleSignTypedData(req)
	case MethodWatchAsset:
		return r.handleWatchAsset(req)
	default:
		return nil, werr.Newf(werr.CodeMethodNotFound, "method %q not found", req.Method)
	}
}

// handlePublic answers static reads without touching the vault.
func (r *Router) handlePublic(req Request) (interface{}, error) {
	switch req.Method {
	case MethodChainID:
		var p chainParam
		if err := parseParams(req.Params, &p); err != nil {
			return nil, err
		}
		chain := p.Chain
		if chain == "" {
			chain = types.ChainEVM
		}
		if !chain.Valid() {
			return nil, werr.Newf(werr.CodeUnrecognizedChain, "unrecognized chain %q", chain)
		}
		return chain.ID(), nil
	case MethodSupportedChains:
		infos := make([]ChainInfo, 0, len(types.AllChains()))
		for _, c := range types.AllChains() {
			infos = append(infos, ChainInfo{Chain: c, ChainID: c.ID(), Name: c.DisplayName()})
		}
		return infos, nil
	default:
		return nil, werr.Newf(werr.CodeMethodNotFound, "method %q not found", req.Method)
	}
}

// handleAccounts lists the origin's connected account. A revoked or
// never-connected origin sees an empty list.
func (r *Router) handleAccounts(req Request) (interface{}, error) {
	acct, err := r.origins.ConnectedAccount(req.Origin)
	if err != nil {
		if errors.Is(err, werr.ErrNotConnected) {
			return []AccountInfo{}, nil
		}
		return nil, err
	}
	r.origins.Touch(req.Origin)
	return []AccountInfo{accountInfo(acct)}, nil
}

func (r *Router) handleConnect(req Request, approval json.RawMessage) (interface{}, error) {
	acct, err := r.grantFor(req, approval)
	if err != nil {
		return nil, err
	}
	return ConnectResult{
		AccountID: acct.ID,
		Address:   acct.Address,
		Chain:     acct.Chain,
		ChainID:   acct.Chain.ID(),
	}, nil
}

func (r *Router) handleRequestPermissions(req Request, approval json.RawMessage) (interface{}, error) {
	acct, err := r.grantFor(req, approval)
	if err != nil {
		return nil, err
	}
	return []PermissionInfo{{
		Origin:      req.Origin,
		Capability:  "accounts",
		AccountID:   acct.ID,
		ConnectedAt: time.Now().Unix(),
	}}, nil
}

// grantFor resolves the account a connect-class request grants: the
// user's pick from the approval surface wins, then the request's chain
// preference, then the existing grant, then the default EVM account.
func (r *Router) grantFor(req Request, approval json.RawMessage) (*vault.Account, error) {
	var p connectParams
	if err := parseParams(req.Params, &p); err != nil {
		return nil, err
	}
	var chosen connectApproval
	if err := parseParams(approval, &chosen); err != nil {
		return nil, err
	}

	accountID := chosen.AccountID
	if accountID == "" {
		accountID = p.AccountID
	}
	if accountID == "" {
		if existing, err := r.origins.ConnectedAccount(req.Origin); err == nil &&
			(p.Chain == "" || existing.Chain == p.Chain) {
			accountID = existing.ID
		}
	}
	if accountID == "" {
		chain := p.Chain
		if chain == "" {
			chain = types.ChainEVM
		}
		if !chain.Valid() {
			return nil, werr.Newf(werr.CodeUnrecognizedChain, "unrecognized chain %q", chain)
		}
		state, err := r.vault.Load()
		if err != nil {
			return nil, err
		}
		if state == nil {
			return nil, werr.ErrNeedsSetup
		}
		acct := state.AccountForChain(chain)
		if acct == nil {
			return nil, werr.Newf(werr.CodeInvalidParams, "no account for chain %q", chain)
		}
		accountID = acct.ID
	}

	return r.origins.Grant(req.Origin, accountID)
}

func (r *Router) handleRevokePermissions(req Request) (interface{}, error) {
	if err := r.origins.Revoke(req.Origin); err != nil {
		return nil, err
	}
	return true, nil
}

func (r *Router) handleSignMessage(req Request) (interface{}, error) {
	var p signParams
	if err := parseParams(req.Params, &p); err != nil {
		return nil, err
	}
	if p.Message == "" {
		return nil, werr.New(werr.CodeInvalidParams, "message is required")
	}
	payload, err := decodePayload(p.Message)
	if err != nil {
		return nil, err
	}

	acct, err := r.selectAccount(req.Origin, p.Chain, p.AccountID)
	if err != nil {
		return nil, err
	}
	sig, err := r.sign(acct, payload)
	if err != nil {
		return nil, err
	}
	r.origins.Touch(req.Origin)
	return SignResult{Address: acct.Address, Signature: sig}, nil
}

func (r *Router) handleSignTransaction(req Request, send bool) (interface{}, error) {
	var p signParams
	if err := parseParams(req.Params, &p); err != nil {
		return nil, err
	}
	if p.Tx == "" {
		return nil, werr.New(werr.CodeInvalidParams, "tx is required")
	}
	rawTx, err := decodePayload(p.Tx)
	if err != nil {
		return nil, err
	}

	acct, err := r.selectAccount(req.Origin, p.Chain, p.AccountID)
	if err != nil {
		return nil, err
	}

	if send {
		var txHash string
		err = r.withSecret(acct, func(adapter chains.Adapter, priv []byte) error {
			var sendErr error
			txHash, sendErr = adapter.SendTransaction(priv, rawTx)
			return sendErr
		})
		if err != nil {
			return nil, err
		}
		r.origins.Touch(req.Origin)
		return SendResult{Address: acct.Address, TxHash: txHash}, nil
	}

	sig, err := r.sign(acct, rawTx)
	if err != nil {
		return nil, err
	}
	r.origins.Touch(req.Origin)
	return SignResult{Address: acct.Address, Signature: sig}, nil
}

func (r *Router) handleSignTypedData(req Request) (interface{}, error) {
	var p signParams
	if err := parseParams(req.Params, &p); err != nil {
		return nil, err
	}
	if len(p.TypedData) == 0 {
		return nil, werr.New(werr.CodeInvalidParams, "typedData is required")
	}

	// Canonicalize before signing so semantically equal documents
	// produce the same signature.
	var compact map[string]interface{}
	if err := json.Unmarshal(p.TypedData, &compact); err != nil {
		return nil, werr.Newf(werr.CodeInvalidParams, "malformed typedData: %v", err)
	}
	payload, err := json.Marshal(compact)
	if err != nil {
		return nil, werr.Newf(werr.CodeInvalidParams, "malformed typedData: %v", err)
	}

	acct, err := r.selectAccount(req.Origin, p.Chain, p.AccountID)
	if err != nil {
		return nil, err
	}
	sig, err := r.sign(acct, payload)
	if err != nil {
		return nil, err
	}
	r.origins.Touch(req.Origin)
	return SignResult{Address: acct.Address, Signature: sig}, nil
}

func (r *Router) handleWatchAsset(req Request) (interface{}, error) {
	var p watchAssetParams
	if err := parseParams(req.Params, &p); err != nil {
		return nil, err
	}
	if p.Address == "" || p.Symbol == "" {
		return nil, werr.New(werr.CodeInvalidParams, "asset address and symbol are required")
	}

	acct, err := r.origins.ConnectedAccount(req.Origin)
	if err != nil {
		return nil, err
	}
	chain := p.Chain
	if chain == "" {
		chain = acct.Chain
	}
	if !chain.Valid() {
		return nil, werr.Newf(werr.CodeUnrecognizedChain, "unrecognized chain %q", chain)
	}

	_, err = r.vault.Update(func(state *vault.WalletState) error {
		if state.WatchedAssets == nil {
			state.WatchedAssets = make(map[string][]vault.WatchedAsset)
		}
		for _, asset := range state.WatchedAssets[acct.ID] {
			if asset.Chain == chain && asset.Address == p.Address {
				return nil
			}
		}
		state.WatchedAssets[acct.ID] = append(state.WatchedAssets[acct.ID], vault.WatchedAsset{
			Chain:    chain,
			Address:  p.Address,
			Symbol:   p.Symbol,
			Decimals: p.Decimals,
			AddedAt:  time.Now().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.origins.Touch(req.Origin)
	return true, nil
}

// ── Helpers ─────────────────────────────────────────────────────────────

// selectAccount resolves which account a signing request binds to: an
// explicit account id, the origin's granted account, or the first
// account on the requested chain.
func (r *Router) selectAccount(origin string, chain types.Chain, accountID string) (*vault.Account, error) {
	if chain != "" && !chain.Valid() {
		return nil, werr.Newf(werr.CodeUnrecognizedChain, "unrecognized chain %q", chain)
	}

	state, err := r.vault.Load()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, werr.ErrNeedsSetup
	}

	if accountID != "" {
		acct := state.AccountByID(accountID)
		if acct == nil {
			return nil, werr.Newf(werr.CodeInvalidParams, "unknown account %s", accountID)
		}
		out := *acct
		return &out, nil
	}

	if acct, err := r.origins.ConnectedAccount(origin); err == nil {
		if chain == "" || acct.Chain == chain {
			return acct, nil
		}
	}

	if chain == "" {
		chain = types.ChainEVM
	}
	acct := state.AccountForChain(chain)
	if acct == nil {
		return nil, werr.Newf(werr.CodeInvalidParams, "no account for chain %q", chain)
	}
	out := *acct
	return &out, nil
}

// withSecret decrypts the account's secret under the session PIN,
// hands it to fn, and zeroes it afterwards. The plaintext secret
// never escapes this call.
func (r *Router) withSecret(acct *vault.Account, fn func(adapter chains.Adapter, priv []byte) error) error {
	pin, err := r.session.PIN()
	if err != nil {
		return err
	}
	adapter, err := r.adapters.Get(acct.Chain)
	if err != nil {
		return err
	}
	priv, err := keys.Decrypt(acct.Enc, pin)
	if err != nil {
		return err
	}
	defer keys.Zero(priv)
	return fn(adapter, priv)
}

// sign signs payload with the account's key and returns the hex
// signature.
func (r *Router) sign(acct *vault.Account, payload []byte) (string, error) {
	var sig []byte
	err := r.withSecret(acct, func(adapter chains.Adapter, priv []byte) error {
		var signErr error
		sig, signErr = adapter.Sign(priv, payload)
		return signErr
	})
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// decodePayload decodes a 0x-prefixed hex payload, or falls back to
// the raw string bytes.
func decodePayload(s string) ([]byte, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := hex.DecodeString(s[2:])
		if err != nil {
			return nil, werr.Newf(werr.CodeInvalidParams, "malformed hex payload: %v", err)
		}
		return b, nil
	}
	return []byte(s), nil
}

func accountInfo(acct *vault.Account) AccountInfo {
	return AccountInfo{
		ID:      acct.ID,
		Name:    acct.Name,
		Chain:   acct.Chain,
		Address: acct.Address,
	}
}
