// derive_addresses.go prints the index-0 address on every supported
// chain for a mnemonic read from a file. Useful for checking a backup
// against a running wallet without importing it.
// Usage: go run scripts/derive_addresses.go <mnemonic-file> [index]
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Klingon-tech/klingnet-wallet/internal/chains"
	"github.com/Klingon-tech/klingnet-wallet/internal/keys"
	"github.com/Klingon-tech/klingnet-wallet/pkg/types"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: derive_addresses <mnemonic-file> [index]")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	mnemonic := strings.TrimSpace(string(data))
	if !keys.ValidateMnemonic(mnemonic) {
		fmt.Fprintln(os.Stderr, "invalid mnemonic")
		os.Exit(1)
	}

	index := uint32(0)
	if len(os.Args) > 2 {
		n, err := strconv.ParseUint(os.Args[2], 10, 32)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		index = uint32(n)
	}

	seed, err := keys.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer keys.Zero(seed)

	registry := chains.NewRegistry()
	for _, chain := range types.AllChains() {
		adapter, err := registry.Get(chain)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		priv, err := keys.DerivePrivate(seed, chain, index)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		pub, err := adapter.PublicKey(priv)
		if err == nil {
			addr, aerr := adapter.Address(pub)
			if aerr == nil {
				fmt.Printf("%-8s %s  %s\n", chain, chain.DerivationPath(index), addr)
			}
			err = aerr
		}
		keys.Zero(priv)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}
