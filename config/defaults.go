package config

import (
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/keys"
)

// Default returns the default walletd configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       8560,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Session: SessionConfig{
			AutoLockTTL:     10 * time.Minute,
			GraceWindow:     30 * time.Second,
			ApprovalTimeout: 5 * time.Minute,
			RememberPIN:     false,
		},
		KDF: KDFConfig{
			Iterations: keys.DefaultIterations,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
