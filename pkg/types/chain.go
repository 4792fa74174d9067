// Package types defines chain tags and address encodings shared
// across the wallet.
package types

import "fmt"

// Chain identifies a supported chain family.
type Chain string

// Supported chains.
const (
	ChainEVM     Chain = "evm"
	ChainBitcoin Chain = "bitcoin"
	ChainSolana  Chain = "solana"
	ChainSui     Chain = "sui"
	ChainTON     Chain = "ton"
	ChainHedera  Chain = "hedera"
)

// Curve is the signature curve a chain's keys live on.
type Curve int

const (
	CurveSecp256k1 Curve = iota
	CurveEd25519
)

// AllChains lists every supported chain in derivation order.
func AllChains() []Chain {
	return []Chain{ChainEVM, ChainBitcoin, ChainSolana, ChainSui, ChainTON, ChainHedera}
}

// Valid reports whether c is a supported chain tag.
func (c Chain) Valid() bool {
	switch c {
	case ChainEVM, ChainBitcoin, ChainSolana, ChainSui, ChainTON, ChainHedera:
		return true
	}
	return false
}

// Curve returns the signature curve for the chain.
func (c Chain) Curve() Curve {
	switch c {
	case ChainSolana, ChainSui, ChainTON:
		return CurveEd25519
	default:
		return CurveSecp256k1
	}
}

// CoinType returns the SLIP-0044 coin type for the chain.
func (c Chain) CoinType() uint32 {
	switch c {
	case ChainEVM:
		return 60
	case ChainBitcoin:
		return 0
	case ChainSolana:
		return 501
	case ChainSui:
		return 784
	case ChainTON:
		return 607
	case ChainHedera:
		return 3030
	default:
		return 0
	}
}

// DisplayName returns the human-facing chain name.
func (c Chain) DisplayName() string {
	switch c {
	case ChainEVM:
		return "Ethereum"
	case ChainBitcoin:
		return "Bitcoin"
	case ChainSolana:
		return "Solana"
	case ChainSui:
		return "Sui"
	case ChainTON:
		return "TON"
	case ChainHedera:
		return "Hedera"
	default:
		return string(c)
	}
}

// ID returns the static chain identifier answered by public chain-id
// reads, in CAIP-2 style.
func (c Chain) ID() string {
	switch c {
	case ChainEVM:
		return "eip155:1"
	case ChainBitcoin:
		return "bip122:000000000019d6689c085ae165831e93"
	case ChainSolana:
		return "solana:mainnet"
	case ChainSui:
		return "sui:mainnet"
	case ChainTON:
		return "ton:mainnet"
	case ChainHedera:
		return "hedera:mainnet"
	default:
		return ""
	}
}

// DerivationPath returns the display form of the account derivation
// path for the given account index. secp256k1 chains use BIP-44
// (Bitcoin uses the BIP-84 purpose for native segwit); ed25519 chains
// use the hardened-only SLIP-0010 conventions their ecosystems expect.
func (c Chain) DerivationPath(index uint32) string {
	switch c {
	case ChainEVM, ChainHedera:
		return fmt.Sprintf("m/44'/%d'/0'/0/%d", c.CoinType(), index)
	case ChainBitcoin:
		return fmt.Sprintf("m/84'/0'/0'/0/%d", index)
	case ChainSolana:
		return fmt.Sprintf("m/44'/501'/%d'/0'", index)
	case ChainSui:
		return fmt.Sprintf("m/44'/784'/0'/0'/%d'", index)
	case ChainTON:
		return fmt.Sprintf("m/44'/607'/%d'", index)
	default:
		return ""
	}
}
