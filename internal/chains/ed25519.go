package chains

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
)

// suiED25519Flag is the scheme flag prepended to the pubkey when
// hashing a Sui address.
const suiED25519Flag = 0x00

// ed25519Adapter serves the ed25519 chain family (Solana, Sui, TON).
// Keys are 32-byte SLIP-0010 seeds; only the address rendering differs
// per chain.
type ed25519Adapter struct {
	chain types.Chain
}

func (a *ed25519Adapter) Chain() types.Chain { return a.chain }

func (a *ed25519Adapter) PublicKey(priv []byte) ([]byte, error) {
	if len(priv) != ed25519.SeedSize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.SeedSize, len(priv))
	}
	key := ed25519.NewKeyFromSeed(priv)
	pub := make([]byte, ed25519.PublicKeySize)
	copy(pub, key[ed25519.SeedSize:])
	keyBytes := []byte(key)
	for i := range keyBytes {
		keyBytes[i] = 0
	}
	return pub, nil
}

func (a *ed25519Adapter) Address(pub []byte) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("pubkey must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	switch a.chain {
	case types.ChainSolana:
		return base58.Encode(pub), nil
	case types.ChainSui:
		digest := blake2b.Sum256(append([]byte{suiED25519Flag}, pub...))
		return "0x" + hex.EncodeToString(digest[:]), nil
	case types.ChainTON:
		// Raw workchain-0 form. The user-friendly bounceable form is
		// a wallet-contract concern handled outside the core.
		digest := sha256.Sum256(pub)
		return "0:" + hex.EncodeToString(digest[:]), nil
	default:
		return "", fmt.Errorf("no ed25519 address form for chain %q", a.chain)
	}
}

func (a *ed25519Adapter) Sign(priv, payload []byte) ([]byte, error) {
	if len(priv) != ed25519.SeedSize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.SeedSize, len(priv))
	}
	key := ed25519.NewKeyFromSeed(priv)
	sig := ed25519.Sign(key, payload)
	keyBytes := []byte(key)
	for i := range keyBytes {
		keyBytes[i] = 0
	}
	return sig, nil
}

func (a *ed25519Adapter) SendTransaction(priv, rawTx []byte) (string, error) {
	sig, err := a.Sign(priv, rawTx)
	if err != nil {
		return "", err
	}
	switch a.chain {
	case types.ChainSolana:
		// A Solana transaction id is its first signature.
		return base58.Encode(sig), nil
	case types.ChainSui:
		digest := blake2b.Sum256(rawTx)
		return base58.Encode(digest[:]), nil
	default:
		digest := sha256.Sum256(rawTx)
		return hex.EncodeToString(digest[:]), nil
	}
}
