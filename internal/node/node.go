// Package node provides a reusable wallet daemon core that can be
// embedded in any binary (daemon, CLI test harness, etc.).
package node

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-wallet/config"
	"github.com/Klingon-tech/klingnet-wallet/internal/chains"
	"github.com/Klingon-tech/klingnet-wallet/internal/keys"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/origins"
	"github.com/Klingon-tech/klingnet-wallet/internal/router"
	"github.com/Klingon-tech/klingnet-wallet/internal/rpc"
	"github.com/Klingon-tech/klingnet-wallet/internal/session"
	"github.com/Klingon-tech/klingnet-wallet/internal/storage"
	"github.com/Klingon-tech/klingnet-wallet/internal/vault"
)

// Storage namespaces within the wallet database.
var (
	nsVault   = []byte("v/")
	nsSession = []byte("s/")
)

// Node is a fully-initialized wallet daemon.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Core
	db       storage.DB
	vault    *vault.Store
	setup    *vault.Initializer
	session  *session.Manager
	origins  *origins.Store
	adapters *chains.Registry
	router   *router.Router

	// Transport
	rpcServer *rpc.Server
}

// New creates and initializes a Node. It performs all setup steps
// (logger, storage, vault, session, router, RPC) but does NOT start
// serving. Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0700); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = logsDir + "/walletd.log"
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("node")

	// ── 2. Open storage ─────────────────────────────────────────────
	db, err := storage.NewBadger(cfg.VaultDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.VaultDir(), err)
	}
	logger.Info().Str("path", cfg.VaultDir()).Msg("Database opened")

	// ── 3. Core components ──────────────────────────────────────────
	vaultStore := vault.NewStore(storage.NewPrefixDB(db, nsVault))

	sess := session.New(vaultStore, storage.NewPrefixDB(db, nsSession), session.Config{
		AutoLockTTL: cfg.Session.AutoLockTTL,
		GraceWindow: cfg.Session.GraceWindow,
	})

	adapters := chains.NewRegistry()
	params := keys.Params{Iterations: cfg.KDF.Iterations}
	deriver := keys.NewDeriver(adapters, params)
	setup := vault.NewInitializer(vaultStore, deriver, params)
	orig := origins.New(vaultStore, sess)

	rt := router.New(router.Config{
		ApprovalTimeout: cfg.Session.ApprovalTimeout,
	}, sess, vaultStore, orig, adapters)

	n := &Node{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		vault:    vaultStore,
		setup:    setup,
		session:  sess,
		origins:  orig,
		adapters: adapters,
		router:   rt,
	}

	// ── 4. RPC server ───────────────────────────────────────────────
	if cfg.RPC.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		n.rpcServer = rpc.New(addr, rt, sess, vaultStore, setup,
			cfg.Session.AutoLockTTL, cfg.RPC)
	}

	return n, nil
}

// Start begins serving. If the operator opted into remembered PINs,
// a restore attempt runs first so the daemon comes back unlocked
// after a restart.
func (n *Node) Start() error {
	initialized, err := n.vault.Initialized()
	if err != nil {
		return fmt.Errorf("checking vault: %w", err)
	}
	n.logger.Info().Bool("initialized", initialized).Msg("Starting wallet daemon")

	if n.cfg.Session.RememberPIN && initialized {
		if n.session.TryRestore(n.cfg.Session.AutoLockTTL) {
			n.logger.Info().Msg("Session restored from remembered PIN")
		}
	}

	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			return err
		}
		n.logger.Info().Str("addr", n.rpcServer.Addr()).Msg("RPC server listening")
	}
	return nil
}

// Stop locks the session, shuts down the RPC server, and closes
// storage.
func (n *Node) Stop() {
	n.logger.Info().Msg("Stopping wallet daemon")

	if n.rpcServer != nil {
		if err := n.rpcServer.Stop(); err != nil {
			n.logger.Error().Err(err).Msg("RPC server shutdown error")
		}
	}

	n.session.Lock()

	if err := n.db.Close(); err != nil {
		n.logger.Error().Err(err).Msg("Database close error")
	}
}

// Router exposes the request router (used by embedding binaries and
// tests).
func (n *Node) Router() *router.Router { return n.router }

// Session exposes the session manager.
func (n *Node) Session() *session.Manager { return n.session }

// Vault exposes the vault store.
func (n *Node) Vault() *vault.Store { return n.vault }

// Setup exposes the wallet initializer.
func (n *Node) Setup() *vault.Initializer { return n.setup }

// RPCAddr returns the RPC listener address, or "" when RPC is
// disabled.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}
