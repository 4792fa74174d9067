package chains

import (
	"encoding/hex"
	"testing"

	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
)

// privOne is the secp256k1 private key with scalar 1; its public key
// is the curve generator, which has well-known address encodings.
func privOne() []byte {
	priv := make([]byte, 32)
	priv[31] = 1
	return priv
}

func TestEVMAdapter_AddressKnownVector(t *testing.T) {
	a := &evmAdapter{chain: types.ChainEVM}

	pub, err := a.PublicKey(privOne())
	if err != nil {
		t.Fatalf("PublicKey() error: %v", err)
	}
	addr, err := a.Address(pub)
	if err != nil {
		t.Fatalf("Address() error: %v", err)
	}

	want := "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
	if addr != want {
		t.Errorf("address = %s, want %s", addr, want)
	}
}

func TestEVMAdapter_EIP55Checksum(t *testing.T) {
	// Reference addresses from the EIP-55 spec.
	tests := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, want := range tests {
		raw, _ := hex.DecodeString(want[2:])
		if got := eip55Checksum(raw); got != want {
			t.Errorf("eip55Checksum = %s, want %s", got, want)
		}
	}
}

func TestEVMAdapter_SignShape(t *testing.T) {
	a := &evmAdapter{chain: types.ChainEVM}

	sig, err := a.Sign(privOne(), []byte("hello"))
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature length = %d, want 65", len(sig))
	}
	if v := sig[64]; v != 27 && v != 28 {
		t.Errorf("recovery byte = %d, want 27 or 28", v)
	}

	// Deterministic ECDSA (RFC 6979): same input, same signature.
	sig2, err := a.Sign(privOne(), []byte("hello"))
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if hex.EncodeToString(sig) != hex.EncodeToString(sig2) {
		t.Error("signing the same payload twice gave different signatures")
	}
}

func TestEVMAdapter_SendTransaction(t *testing.T) {
	a := &evmAdapter{chain: types.ChainEVM}

	hash, err := a.SendTransaction(privOne(), []byte{0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("SendTransaction() error: %v", err)
	}
	if len(hash) != 2+64 || hash[:2] != "0x" {
		t.Errorf("tx hash %q is not 0x-prefixed 32-byte hex", hash)
	}
}

func TestBitcoinAdapter_AddressKnownVector(t *testing.T) {
	a := &bitcoinAdapter{hrp: types.BitcoinMainnetHRP}

	pub, err := a.PublicKey(privOne())
	if err != nil {
		t.Fatalf("PublicKey() error: %v", err)
	}
	addr, err := a.Address(pub)
	if err != nil {
		t.Fatalf("Address() error: %v", err)
	}

	// P2WPKH of the generator point's compressed pubkey (BIP-173 vector).
	want := "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
	if addr != want {
		t.Errorf("address = %s, want %s", addr, want)
	}
}

func TestBitcoinAdapter_RejectsUncompressedPubkey(t *testing.T) {
	a := &bitcoinAdapter{hrp: types.BitcoinMainnetHRP}
	if _, err := a.Address(make([]byte, 65)); err == nil {
		t.Error("uncompressed pubkey should be rejected")
	}
}

func TestBitcoinAdapter_SendTransaction(t *testing.T) {
	a := &bitcoinAdapter{hrp: types.BitcoinMainnetHRP}

	txid, err := a.SendTransaction(privOne(), []byte("rawtx"))
	if err != nil {
		t.Fatalf("SendTransaction() error: %v", err)
	}
	if len(txid) != 64 {
		t.Errorf("txid length = %d, want 64 hex chars", len(txid))
	}
}

func TestParsePriv_BadLength(t *testing.T) {
	if _, err := parsePriv(make([]byte, 31)); err == nil {
		t.Error("31-byte key should be rejected")
	}
	if _, err := parsePriv(nil); err == nil {
		t.Error("nil key should be rejected")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	for _, chain := range types.AllChains() {
		a, err := r.Get(chain)
		if err != nil {
			t.Fatalf("Get(%s) error: %v", chain, err)
		}
		if a.Chain() != chain {
			t.Errorf("adapter for %s reports chain %s", chain, a.Chain())
		}
	}

	if _, err := r.Get("dogecoin"); err == nil {
		t.Error("unknown chain should return an error")
	}
}
