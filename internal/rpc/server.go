// Package rpc implements the wallet's HTTP API server.
//
// Two surfaces share one listener: the provider surface (POST /rpc,
// origin-scoped, what a dApp talks to) and the operator surface
// (/approvals and /control/*, what the approval UI and CLI talk to).
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-wallet/config"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/router"
	"github.com/Klingon-tech/klingnet-wallet/internal/session"
	"github.com/Klingon-tech/klingnet-wallet/internal/vault"
	"github.com/Klingon-tech/klingnet-wallet/pkg/werr"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// Server is the wallet HTTP server.
type Server struct {
	addr        string
	router      *router.Router
	session     *session.Manager
	vault       *vault.Store
	setup       *vault.Initializer
	server      *http.Server
	logger      zerolog.Logger
	ln          net.Listener
	allowedNets []*net.IPNet // Empty = allow all.
	corsOrigins []string     // Empty = no CORS headers.
	autoLockTTL time.Duration
}

// New creates a wallet RPC server. The rpcCfg parameter controls IP
// filtering and CORS; a zero-value RPCConfig allows all IPs and
// disables CORS.
func New(addr string, rt *router.Router, sess *session.Manager, vaultStore *vault.Store,
	setup *vault.Initializer, autoLockTTL time.Duration, rpcCfg ...config.RPCConfig) *Server {

	s := &Server{
		addr:        addr,
		router:      rt,
		session:     sess,
		vault:       vaultStore,
		setup:       setup,
		autoLockTTL: autoLockTTL,
		logger:      klog.RPC,
	}

	if len(rpcCfg) > 0 {
		s.allowedNets = parseAllowedIPs(rpcCfg[0].AllowedIPs)
		s.corsOrigins = rpcCfg[0].CORSOrigins
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", s.guard(s.handleRPC))
	mux.HandleFunc("/approvals", s.guard(s.handleApprovals))
	mux.HandleFunc("/approvals/respond", s.guard(s.handleApprovalRespond))
	mux.HandleFunc("/control/", s.guard(s.handleControl))

	s.server = &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// Provider requests block while a prompt sits unanswered, up
		// to the approval ceiling.
		WriteTimeout: 10 * time.Minute,
	}

	return s
}

// parseAllowedIPs converts string IP/CIDR entries into net.IPNet.
func parseAllowedIPs(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		_, ipNet, err := net.ParseCIDR(entry)
		if err == nil {
			nets = append(nets, ipNet)
			continue
		}
		// Try as a single IP (add /32 or /128).
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// Start begins listening and serving in a background goroutine.
// It returns immediately after the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("RPC server error")
		}
	}()

	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// guard wraps a handler with IP filtering and CORS.
func (s *Server) guard(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.allowedNets) > 0 {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			ip := net.ParseIP(host)
			if ip == nil || !s.isIPAllowed(ip) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		h(w, r)
	}
}

// providerRequest is one inbound provider call. The id may be a JSON
// string or number; it is canonicalized before routing.
type providerRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// envelope is the response shape for both surfaces.
type envelope struct {
	OK     bool        `json:"ok"`
	ID     interface{} `json:"id,omitempty"`
	Result interface{} `json:"result,omitempty"`
	Error  *werr.Error `json:"error,omitempty"`
}

// handleRPC is the provider surface: origin-scoped wallet methods.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeFailure(w, nil, werr.New(werr.CodeInvalidParams, "only POST method is allowed"))
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeFailure(w, nil, werr.From(err))
		return
	}

	var req providerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeFailure(w, nil, werr.New(werr.CodeInvalidParams, "invalid JSON"))
		return
	}

	id, numeric, err := router.CanonicalID(req.ID)
	if err != nil {
		writeFailure(w, nil, werr.New(werr.CodeInvalidParams, "request id must be a string or number"))
		return
	}
	wireID := router.FormatID(id, numeric)

	origin := r.Header.Get("Origin")
	if origin == "" {
		writeFailure(w, wireID, werr.New(werr.CodeInvalidParams, "Origin header is required"))
		return
	}

	result, herr := s.router.Handle(r.Context(), router.Request{
		ID:     id,
		Method: req.Method,
		Params: req.Params,
		Origin: origin,
	})
	if herr != nil {
		writeFailure(w, wireID, werr.From(herr))
		return
	}
	writeJSON(w, envelope{OK: true, ID: wireID, Result: result})
}

// handleApprovals lists prompts awaiting an answer.
func (s *Server) handleApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeFailure(w, nil, werr.New(werr.CodeInvalidParams, "only GET method is allowed"))
		return
	}
	writeJSON(w, envelope{OK: true, Result: s.router.Pending()})
}

// handleApprovalRespond resolves one pending prompt.
func (s *Server) handleApprovalRespond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeFailure(w, nil, werr.New(werr.CodeInvalidParams, "only POST method is allowed"))
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeFailure(w, nil, werr.From(err))
		return
	}

	var resp router.ApprovalResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		writeFailure(w, nil, werr.New(werr.CodeInvalidParams, "invalid JSON"))
		return
	}
	if err := s.router.Respond(resp); err != nil {
		writeFailure(w, nil, werr.From(err))
		return
	}
	writeJSON(w, envelope{OK: true, Result: true})
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, werr.New(werr.CodeInvalidParams, "failed to read request body")
	}
	if len(body) > maxBodySize {
		return nil, werr.New(werr.CodeInvalidParams, "request body too large")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, resp envelope) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeFailure(w http.ResponseWriter, id interface{}, e *werr.Error) {
	writeJSON(w, envelope{OK: false, ID: id, Error: e})
}

// isIPAllowed checks if the IP is in the allowed networks list.
func (s *Server) isIPAllowed(ip net.IP) bool {
	for _, n := range s.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// setCORSHeaders adds CORS headers based on the configured origins.
func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsOrigins) == 0 {
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	allowed := false
	for _, o := range s.corsOrigins {
		if o == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			allowed = true
			break
		}
		if o == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			allowed = true
			break
		}
	}

	if allowed {
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}
}
