package config

import (
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/keys"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir must not be empty")
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	if cfg.Session.AutoLockTTL <= 0 {
		return fmt.Errorf("session.autolock must be positive")
	}
	if cfg.Session.GraceWindow < 0 {
		return fmt.Errorf("session.grace must not be negative")
	}
	if cfg.Session.ApprovalTimeout <= 0 || cfg.Session.ApprovalTimeout > 5*time.Minute {
		return fmt.Errorf("session.approval_timeout must be in range (0, 5m]")
	}
	if cfg.KDF.Iterations < keys.MinIterations {
		return fmt.Errorf("kdf.iterations must be at least %d", keys.MinIterations)
	}
	return nil
}
