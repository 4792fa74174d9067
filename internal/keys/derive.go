package keys

import (
	"fmt"

	"github.com/tyler-smith/go-bip32"

	"github.com/Klingon-tech/klingnet-wallet/internal/chains"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
)

// Derived is the outcome of deriving one chain account from the seed.
// The private key is already encrypted; only public material is
// carried in plaintext.
type Derived struct {
	Chain   types.Chain
	Path    string
	Pub     []byte
	Address string
	Enc     Blob
}

// Deriver turns one seed into chain-specific accounts. Derivation is
// deterministic: the same (seed, chain, index) always yields the same
// address, which is what makes wallet restore idempotent.
type Deriver struct {
	registry *chains.Registry
	params   Params
}

// NewDeriver creates a deriver using the given adapter registry and
// encryption parameters.
func NewDeriver(registry *chains.Registry, params Params) *Deriver {
	return &Deriver{registry: registry, params: params}
}

// DeriveAccount derives the keypair for (chain, index), encrypts the
// private key under the PIN, and returns the account material. The
// plaintext private key does not outlive this call.
func (d *Deriver) DeriveAccount(seed []byte, chain types.Chain, index uint32, pin string) (*Derived, error) {
	adapter, err := d.registry.Get(chain)
	if err != nil {
		return nil, err
	}

	priv, err := DerivePrivate(seed, chain, index)
	if err != nil {
		return nil, err
	}
	defer Zero(priv)

	pub, err := adapter.PublicKey(priv)
	if err != nil {
		return nil, fmt.Errorf("derive pubkey: %w", err)
	}
	address, err := adapter.Address(pub)
	if err != nil {
		return nil, fmt.Errorf("derive address: %w", err)
	}
	enc, err := Encrypt(priv, pin, d.params)
	if err != nil {
		return nil, fmt.Errorf("encrypt secret: %w", err)
	}

	return &Derived{
		Chain:   chain,
		Path:    chain.DerivationPath(index),
		Pub:     pub,
		Address: address,
		Enc:     enc,
	}, nil
}

// DerivePrivate derives the 32-byte private key for (chain, index) using
// the curve-appropriate scheme.
func DerivePrivate(seed []byte, chain types.Chain, index uint32) ([]byte, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	if chain.Curve() == types.CurveEd25519 {
		return SLIP10Derive(seed, hardenedPath(chain, index))
	}
	return deriveSecp(seed, secpPath(chain, index))
}

// secpPath returns the BIP-32 index sequence for a secp256k1 chain.
func secpPath(chain types.Chain, index uint32) []uint32 {
	switch chain {
	case types.ChainBitcoin:
		// BIP-84 native segwit.
		return []uint32{84 + Hardened, 0 + Hardened, 0 + Hardened, 0, index}
	default:
		return []uint32{44 + Hardened, chain.CoinType() + Hardened, 0 + Hardened, 0, index}
	}
}

// hardenedPath returns the SLIP-0010 index sequence for an ed25519
// chain (all components hardened).
func hardenedPath(chain types.Chain, index uint32) []uint32 {
	switch chain {
	case types.ChainSolana:
		return []uint32{44 + Hardened, 501 + Hardened, index + Hardened, 0 + Hardened}
	case types.ChainSui:
		return []uint32{44 + Hardened, 784 + Hardened, 0 + Hardened, 0 + Hardened, index + Hardened}
	default: // TON
		return []uint32{44 + Hardened, 607 + Hardened, index + Hardened}
	}
}

// deriveSecp walks a BIP-32 path and returns the raw 32-byte private key.
func deriveSecp(seed []byte, path []uint32) ([]byte, error) {
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	for _, index := range path {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", index, err)
		}
	}

	// bip32 Key.Key carries a leading 0x00 pad for private keys.
	raw := key.Key
	if len(raw) == 33 && raw[0] == 0 {
		raw = raw[1:]
	}
	priv := make([]byte, len(raw))
	copy(priv, raw)
	return priv, nil
}
