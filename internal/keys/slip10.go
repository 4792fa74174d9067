package keys

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
)

// SLIP-0010 ed25519 derivation. Only hardened derivation is defined
// for ed25519, so every path component has the hardened bit set.

// Hardened is the hardened-derivation index offset.
const Hardened uint32 = 0x80000000

// slip10MasterKey is the HMAC key for the ed25519 master node.
var slip10MasterKey = []byte("ed25519 seed")

// SLIP10Master derives the ed25519 master node (key, chain code) from
// a BIP-39 seed.
func SLIP10Master(seed []byte) (key, chainCode []byte) {
	mac := hmac.New(sha512.New, slip10MasterKey)
	mac.Write(seed)
	i := mac.Sum(nil)
	return i[:32], i[32:]
}

// SLIP10Derive derives the ed25519 private key seed at the given path.
// All indices must be hardened.
func SLIP10Derive(seed []byte, path []uint32) ([]byte, error) {
	key, chainCode := SLIP10Master(seed)
	for _, index := range path {
		if index < Hardened {
			return nil, fmt.Errorf("slip10: ed25519 requires hardened index, got %d", index)
		}
		key, chainCode = slip10Child(key, chainCode, index)
	}
	Zero(chainCode)
	return key, nil
}

// slip10Child derives one hardened child node.
func slip10Child(key, chainCode []byte, index uint32) (childKey, childChainCode []byte) {
	data := make([]byte, 0, 1+32+4)
	data = append(data, 0x00)
	data = append(data, key...)
	data = binary.BigEndian.AppendUint32(data, index)

	mac := hmac.New(sha512.New, chainCode)
	mac.Write(data)
	i := mac.Sum(nil)
	return i[:32], i[32:]
}
