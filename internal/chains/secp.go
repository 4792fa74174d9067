package chains

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"

	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
)

// evmAdapter serves EVM chains and Hedera (which uses the same ECDSA
// secp256k1 keys and EVM-style address alias).
type evmAdapter struct {
	chain types.Chain
}

func (a *evmAdapter) Chain() types.Chain { return a.chain }

func (a *evmAdapter) PublicKey(priv []byte) ([]byte, error) {
	key, err := parsePriv(priv)
	if err != nil {
		return nil, err
	}
	return key.PubKey().SerializeCompressed(), nil
}

// Address derives the EIP-55 checksummed hex address:
// keccak256(uncompressed_pubkey[1:])[12:].
func (a *evmAdapter) Address(pub []byte) (string, error) {
	key, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return "", fmt.Errorf("parse pubkey: %w", err)
	}
	uncompressed := key.SerializeUncompressed()
	digest := keccak256(uncompressed[1:])
	return eip55Checksum(digest[12:]), nil
}

// Sign produces a 65-byte recoverable signature r || s || v over
// keccak256(payload), v in {27, 28}.
func (a *evmAdapter) Sign(priv, payload []byte) ([]byte, error) {
	key, err := parsePriv(priv)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	digest := keccak256(payload)
	compact := ecdsa.SignCompact(key, digest, false)

	// SignCompact returns v || r || s; EVM convention is r || s || v.
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return sig, nil
}

func (a *evmAdapter) SendTransaction(priv, rawTx []byte) (string, error) {
	if _, err := a.Sign(priv, rawTx); err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(keccak256(rawTx)), nil
}

// bitcoinAdapter serves Bitcoin with native segwit (P2WPKH) addresses.
type bitcoinAdapter struct {
	hrp string
}

func (a *bitcoinAdapter) Chain() types.Chain { return types.ChainBitcoin }

func (a *bitcoinAdapter) PublicKey(priv []byte) ([]byte, error) {
	key, err := parsePriv(priv)
	if err != nil {
		return nil, err
	}
	return key.PubKey().SerializeCompressed(), nil
}

// Address derives the bech32 P2WPKH address:
// bech32(hrp, ripemd160(sha256(compressed_pubkey))).
func (a *bitcoinAdapter) Address(pub []byte) (string, error) {
	if len(pub) != 33 {
		return "", fmt.Errorf("bitcoin address requires a compressed pubkey, got %d bytes", len(pub))
	}
	return types.EncodeSegWitAddress(a.hrp, hash160(pub))
}

// Sign produces a DER-encoded ECDSA signature over sha256d(payload).
func (a *bitcoinAdapter) Sign(priv, payload []byte) ([]byte, error) {
	key, err := parsePriv(priv)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	digest := sha256d(payload)
	return ecdsa.Sign(key, digest).Serialize(), nil
}

func (a *bitcoinAdapter) SendTransaction(priv, rawTx []byte) (string, error) {
	if _, err := a.Sign(priv, rawTx); err != nil {
		return "", err
	}
	// txid is the double-sha256 in reversed byte order.
	digest := sha256d(rawTx)
	for i, j := 0, len(digest)-1; i < j; i, j = i+1, j-1 {
		digest[i], digest[j] = digest[j], digest[i]
	}
	return hex.EncodeToString(digest), nil
}

func parsePriv(priv []byte) (*secp256k1.PrivateKey, error) {
	if len(priv) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(priv))
	}
	return secp256k1.PrivKeyFromBytes(priv), nil
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

func sha256d(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

func hash160(data []byte) []byte {
	first := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(first[:])
	return h.Sum(nil)
}

// eip55Checksum hex-encodes a 20-byte address with the EIP-55 mixed
// case checksum.
func eip55Checksum(addr []byte) string {
	lower := hex.EncodeToString(addr)
	digest := keccak256([]byte(lower))

	out := make([]byte, len(lower))
	for i, c := range []byte(lower) {
		if c >= 'a' && c <= 'f' {
			nibble := digest[i/2]
			if i%2 == 0 {
				nibble >>= 4
			}
			if nibble&0x08 != 0 {
				c -= 'a' - 'A'
			}
		}
		out[i] = c
	}
	return "0x" + string(out)
}
