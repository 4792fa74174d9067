// Package config handles walletd runtime configuration.
//
// Everything here is operational: storage locations, listen addresses,
// session timing, KDF cost. None of it affects what is stored in the
// vault, so nodes (and upgrades) can change it freely.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Config holds walletd runtime configuration.
type Config struct {
	// Core
	DataDir string `conf:"datadir"`

	// RPC server
	RPC RPCConfig

	// Session timing
	Session SessionConfig

	// Key derivation cost
	KDF KDFConfig

	// Logging
	Log LogConfig
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
}

// SessionConfig holds unlock-session timing.
type SessionConfig struct {
	AutoLockTTL     time.Duration `conf:"session.autolock"`
	GraceWindow     time.Duration `conf:"session.grace"`
	ApprovalTimeout time.Duration `conf:"session.approval_timeout"`
	RememberPIN     bool          `conf:"session.remember_pin"`
}

// KDFConfig holds PIN-stretching cost settings.
type KDFConfig struct {
	Iterations int `conf:"kdf.iterations"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingnet-wallet
//	macOS:   ~/Library/Application Support/KlingnetWallet
//	Windows: %APPDATA%\KlingnetWallet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingnet-wallet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "KlingnetWallet")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "KlingnetWallet")
		}
		return filepath.Join(home, "AppData", "Roaming", "KlingnetWallet")
	default:
		return filepath.Join(home, ".klingnet-wallet")
	}
}

// VaultDir returns the vault database directory.
func (c *Config) VaultDir() string {
	return filepath.Join(c.DataDir, "vault")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "walletd.conf")
}
