// Package chains defines the signing-capability interface the wallet
// core consumes, plus reference adapters for each supported chain
// family. Adapters receive decrypted secret material transiently; they
// never persist or log it, and callers zero it after the call returns.
package chains

import (
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
	"github.com/Klingon-tech/klingnet-wallet/pkg/werr"
)

// Adapter is the per-chain signing capability.
type Adapter interface {
	// Chain returns the chain tag this adapter serves.
	Chain() types.Chain

	// PublicKey derives the public key for a 32-byte private key
	// (compressed 33-byte for secp256k1, 32-byte for ed25519).
	PublicKey(priv []byte) ([]byte, error)

	// Address derives the chain's display address from a public key.
	Address(pub []byte) (string, error)

	// Sign produces a signature over payload in the chain's native
	// format.
	Sign(priv, payload []byte) ([]byte, error)

	// SendTransaction signs a raw transaction and returns its hash.
	// Broadcast to chain nodes is delegated to the configured
	// Broadcaster; without one the signed transaction is returned to
	// the caller by hash only.
	SendTransaction(priv, rawTx []byte) (string, error)
}

// Broadcaster submits a signed transaction to a chain network. The
// core never talks to chain nodes itself.
type Broadcaster interface {
	Broadcast(chain types.Chain, signedTx []byte) (string, error)
}

// Registry holds the adapter for each supported chain.
type Registry struct {
	adapters map[types.Chain]Adapter
}

// NewRegistry creates a registry with all built-in adapters.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[types.Chain]Adapter)}
	r.Register(&evmAdapter{chain: types.ChainEVM})
	r.Register(&evmAdapter{chain: types.ChainHedera})
	r.Register(&bitcoinAdapter{hrp: types.BitcoinMainnetHRP})
	r.Register(&ed25519Adapter{chain: types.ChainSolana})
	r.Register(&ed25519Adapter{chain: types.ChainSui})
	r.Register(&ed25519Adapter{chain: types.ChainTON})
	return r
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Chain()] = a
}

// Get returns the adapter for a chain, or an unrecognized-chain error.
func (r *Registry) Get(chain types.Chain) (Adapter, error) {
	a, ok := r.adapters[chain]
	if !ok {
		return nil, werr.Newf(werr.CodeUnrecognizedChain, "unrecognized chain %q", chain)
	}
	return a, nil
}
