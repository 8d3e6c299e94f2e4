package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/civicledger/corechain/chain"
	"github.com/civicledger/corechain/logger"
	"github.com/civicledger/corechain/mempool"
	"github.com/civicledger/corechain/readack"
	"github.com/civicledger/corechain/rpcmodel"
	"github.com/civicledger/corechain/snapshot"
)

var log = logger.NewSubsystem("RPCS")

// Handler serves one classified method's params and returns either a
// JSON-marshalable result or a typed error.
type Handler func(ctx context.Context, s *Server, params json.RawMessage) (any, *rpcmodel.Error)

// Config bundles the gating tunables of spec.md §4.15/§6.2.
type Config struct {
	AdminToken       string
	MaxClients       int32
	MaxBodyBytes     int64
	RequestTimeout   time.Duration
	RateTokensPerSec float64
	RateBurst        float64
	BanDuration      time.Duration
	AllowedHosts     []string
	AllowedOrigins   []string
	DomainTag        []byte
	RelayOnly        bool
}

// DefaultConfig matches the defaults implied by spec.md §6.4.
func DefaultConfig() Config {
	return Config{
		MaxClients:       128,
		MaxBodyBytes:     1 << 20, // 1 MiB
		RequestTimeout:   5 * time.Second,
		RateTokensPerSec: 50,
		RateBurst:        100,
	}
}

// Server is the gated JSON-RPC dispatcher of spec.md §4.15: HTTP transport,
// connection-count ceiling, rate limiting, host/CORS policy, method
// classification/auth, nonce-replay guard, and the method table itself.
// Grounded on daglabs-btcd/infrastructure/network/rpc/rpcserver.go's
// Server, whose gating pipeline (limitConnections -> checkAuth ->
// standardCmdResult) this mirrors.
type Server struct {
	cfg Config

	Pool     *mempool.Pool
	State    *chain.State
	Snapshot *snapshot.Engine
	Acks     *readack.Batcher

	limiter    *RateLimiter
	hostPolicy *HostPolicy
	nonces     *NonceGuard

	numClients    int32
	miningEnabled int32
	handlers      map[string]Handler
}

// New builds a Server wired to pool/state/snap/acks, with the built-in
// method table registered.
func New(cfg Config, pool *mempool.Pool, state *chain.State, snap *snapshot.Engine, acks *readack.Batcher) *Server {
	s := &Server{
		cfg:        cfg,
		Pool:       pool,
		State:      state,
		Snapshot:   snap,
		Acks:       acks,
		limiter:    NewRateLimiterWithBanDuration(cfg.RateTokensPerSec, cfg.RateBurst, cfg.BanDuration),
		hostPolicy: NewHostPolicy(cfg.AllowedHosts, cfg.AllowedOrigins),
		nonces:     NewNonceGuard(),
		handlers:   make(map[string]Handler),
	}
	if !cfg.RelayOnly {
		s.miningEnabled = 1
	}
	s.registerDefaultHandlers()
	return s
}

// SweepNonces evicts replay-guard entries older than their TTL, bounding
// memory; callers run this on a periodic background tick.
func (s *Server) SweepNonces(now time.Time) {
	s.nonces.Sweep(now)
}

// Register binds a handler to an already-classified method name. Panics on
// an unclassified name, since every servable method must appear in
// methodTable (spec.md §6.2 — no implicit default tier).
func (s *Server) Register(method string, h Handler) {
	if _, ok := classify(method); !ok {
		panic("rpc: method " + method + " has no entry in methodTable")
	}
	s.handlers[method] = h
}

// ServeHTTP implements the full gating pipeline before dispatch, in this
// order: connection ceiling, host policy, CORS, per-IP ban and rate limit,
// body-size limit, then, once the method is known, auth by method class,
// the replay guard, and the request timeout around the handler call.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	if atomic.AddInt32(&s.numClients, 1) > s.cfg.MaxClients {
		atomic.AddInt32(&s.numClients, -1)
		http.Error(w, "503 too busy, try again later", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.numClients, -1)

	if !s.hostPolicy.AllowHost(r) {
		http.Error(w, "403 forbidden host", http.StatusForbidden)
		return
	}
	if !s.hostPolicy.ApplyCORS(w, r) {
		return // OPTIONS preflight already answered
	}

	ip := clientIP(r)
	now := time.Now()
	if s.limiter.IsBanned(ip, now) {
		writeRPCError(w, nil, rpcmodel.CodeBanned, "client banned for sustained rate-limit violations")
		return
	}
	if !s.limiter.Allow(ip, now) {
		writeRPCError(w, nil, rpcmodel.CodeRateLimited, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeRPCError(w, nil, rpcmodel.CodeBodyTooLarge, "request body too large or unreadable")
		return
	}

	var req rpcmodel.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		writeRPCError(w, nil, rpcmodel.CodeParseError, "invalid JSON")
		return
	}
	if req.JSONRPC != rpcmodel.Version || req.Method == "" {
		writeRPCError(w, req.ID, rpcmodel.CodeInvalidRequest, "malformed JSON-RPC 2.0 request")
		return
	}

	class, known := classify(req.Method)
	if !known {
		writeRPCError(w, req.ID, rpcmodel.CodeMethodNotFound, "unknown method "+req.Method)
		return
	}
	if isReserved(req.Method) {
		writeRPCError(w, req.ID, rpcmodel.CodeNotImplemented, "method "+req.Method+" names an external-collaborator subsystem not implemented by this node")
		return
	}

	switch class {
	case ClassAdmin, ClassDebug:
		if !CheckAdminToken(r, s.cfg.AdminToken) {
			writeRPCError(w, req.ID, rpcmodel.CodeUnauthorized, "admin authentication required")
			return
		}
	case ClassLocalOnly:
		if !IsLoopback(r) {
			writeRPCError(w, req.ID, rpcmodel.CodeMethodForbidden, "method restricted to loopback callers")
			return
		}
	}

	if isReplayGuarded(req.Method) {
		if nonce := requestNonce(req.Params); nonce != "" {
			if !s.nonces.Check(req.Method+":"+nonce, now) {
				writeRPCError(w, req.ID, rpcmodel.CodeReplayedNonce, "request_nonce already used for "+req.Method)
				return
			}
		}
	}

	handler, ok := s.handlers[req.Method]
	if !ok {
		writeRPCError(w, req.ID, rpcmodel.CodeMethodNotFound, "method "+req.Method+" has no registered handler")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	log.Debugf("request %s method=%s class=%d ip=%s", requestID, req.Method, class, ip)
	result, rpcErr := handler(ctx, s, req.Params)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}
	resp, err := rpcmodel.NewResult(req.ID, result)
	if err != nil {
		writeRPCError(w, req.ID, rpcmodel.CodeInternalError, "failed to marshal result")
		return
	}
	writeJSON(w, resp)
}

// requestNonce peeks a top-level "request_nonce" string field out of a
// method's params without requiring every handler's own params struct to
// carry it, so the replay guard stays orthogonal to per-method decoding.
func requestNonce(params json.RawMessage) string {
	var peek struct {
		RequestNonce string `json:"request_nonce"`
	}
	if err := json.Unmarshal(params, &peek); err != nil {
		return ""
	}
	return peek.RequestNonce
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	writeJSON(w, rpcmodel.NewError(id, code, message, nil))
}

// registerDefaultHandlers binds every name in methodTable to its
// implementation.
func (s *Server) registerDefaultHandlers() {
	s.Register("get_node_info", handleGetNodeInfo)
	s.Register("get_chain_tip", handleGetChainTip)
	s.Register("get_block", handleGetBlock)
	s.Register("get_account", handleGetAccount)
	s.Register("get_mempool_stats", handleGetMempoolStats)
	s.Register("submit_transaction", handleSubmitTransaction)
	s.Register("get_transaction", handleGetTransaction)
	s.Register("submit_session_transaction", handleSubmitTransaction)
	s.Register("admin_set_subsidy_coefficients", handleAdminSetSubsidyCoefficients)
	s.Register("admin_set_industrial_multiplier", handleAdminSetIndustrialMultiplier)
	s.Register("admin_force_snapshot", handleAdminForceSnapshot)
	s.Register("set_snapshot_interval", handleSetSnapshotInterval)
	s.Register("metrics", handleMetrics)
	s.Register("submit_read_ack", handleSubmitReadAck)
	s.Register("debug_dump_accounts", handleDebugDumpAccounts)
	s.Register("debug_dump_mempool", handleDebugDumpMempool)
	s.Register("local_shutdown", handleLocalShutdown)

	// spec.md §6.1's stable-contract names for the account/tx/mempool
	// surface above, registered as plain aliases onto the same handlers
	// rather than a second implementation (SPEC_FULL.md §C).
	s.Register("balance", handleGetAccount)
	s.Register("submit_tx", handleSubmitTransaction)
	s.Register("tx_status", handleGetTransaction)
	s.Register("mempool.stats", handleGetMempoolStats)
	s.Register("mempool.qos_event", handleMempoolQoSEvent)

	s.Register("start_mining", handleStartMining)
	s.Register("stop_mining", handleStopMining)
	s.Register("set_difficulty", handleSetDifficulty)
	s.Register("consensus.difficulty", handleConsensusDifficulty)
}
