package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate(Default()) error: %v", err)
	}
	if cfg.RPC.Port != 8560 {
		t.Errorf("default port = %d, want 8560", cfg.RPC.Port)
	}
	if len(cfg.RPC.AllowedIPs) != 1 || cfg.RPC.AllowedIPs[0] != "127.0.0.1" {
		t.Errorf("default allowlist = %v, want loopback only", cfg.RPC.AllowedIPs)
	}
	if cfg.Session.RememberPIN {
		t.Error("remember_pin defaults on; PIN persistence must be opt-in")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty datadir", func(c *Config) { c.DataDir = "" }},
		{"negative port", func(c *Config) { c.RPC.Port = -1 }},
		{"port too large", func(c *Config) { c.RPC.Port = 70000 }},
		{"zero autolock", func(c *Config) { c.Session.AutoLockTTL = 0 }},
		{"negative grace", func(c *Config) { c.Session.GraceWindow = -time.Second }},
		{"zero approval timeout", func(c *Config) { c.Session.ApprovalTimeout = 0 }},
		{"approval timeout above ceiling", func(c *Config) { c.Session.ApprovalTimeout = 6 * time.Minute }},
		{"weak kdf", func(c *Config) { c.KDF.Iterations = 1000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Errorf("Validate() accepted %s", tt.name)
			}
		})
	}
	if err := Validate(nil); err == nil {
		t.Error("Validate(nil) did not fail")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walletd.conf")
	content := `# comment
rpc.port = 9000
rpc.allowed = 127.0.0.1, 192.168.1.0/24
session.autolock = 15m
session.remember_pin = yes
log.level = "debug"
unknown.key = ignored
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	cfg := Default()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig() error: %v", err)
	}

	if cfg.RPC.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.RPC.Port)
	}
	if len(cfg.RPC.AllowedIPs) != 2 || cfg.RPC.AllowedIPs[1] != "192.168.1.0/24" {
		t.Errorf("allowlist = %v", cfg.RPC.AllowedIPs)
	}
	if cfg.Session.AutoLockTTL != 15*time.Minute {
		t.Errorf("autolock = %v, want 15m", cfg.Session.AutoLockTTL)
	}
	if !cfg.Session.RememberPIN {
		t.Error("remember_pin not applied")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug (quotes stripped)", cfg.Log.Level)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("LoadFile() on missing file error: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("missing file values = %v, want empty", values)
	}
}

func TestLoadFile_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walletd.conf")
	if err := os.WriteFile(path, []byte("this is not key value\n"), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() accepted a malformed line")
	}
}

func TestApplyFileConfig_BadValue(t *testing.T) {
	cfg := Default()
	err := ApplyFileConfig(cfg, map[string]string{"session.autolock": "soon"})
	if err == nil {
		t.Error("ApplyFileConfig() accepted an unparseable duration")
	}
	err = ApplyFileConfig(cfg, map[string]string{"rpc.port": "eight"})
	if err == nil {
		t.Error("ApplyFileConfig() accepted a non-numeric port")
	}
}

func TestWriteDefaultConfig_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walletd.conf")
	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("WriteDefaultConfig() error: %v", err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	cfg := Default()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig() error: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("generated default config does not validate: %v", err)
	}
}

func TestConfigPaths(t *testing.T) {
	cfg := &Config{DataDir: "/data"}
	if got := cfg.VaultDir(); got != filepath.Join("/data", "vault") {
		t.Errorf("VaultDir() = %q", got)
	}
	if got := cfg.LogsDir(); got != filepath.Join("/data", "logs") {
		t.Errorf("LogsDir() = %q", got)
	}
	if got := cfg.ConfigFile(); !strings.HasSuffix(got, "walletd.conf") {
		t.Errorf("ConfigFile() = %q", got)
	}
}
