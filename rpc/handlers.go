package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"

	"github.com/civicledger/corechain/accounts"
	"github.com/civicledger/corechain/governance"
	"github.com/civicledger/corechain/hashing"
	"github.com/civicledger/corechain/mempool"
	"github.com/civicledger/corechain/readack"
	"github.com/civicledger/corechain/rpcmodel"
	"github.com/civicledger/corechain/tx"
)

// systemClock satisfies mempool.Clock with wall-clock/monotonic time, the
// clock every live handler uses (tests inject their own fake clock
// directly against mempool.Pool/chain functions instead).
type systemClock struct{}

func (systemClock) NowMillis() int64 { return nowMillis() }
func (systemClock) NowTicks() int64  { return nowTicks() }
func (systemClock) NowUnix() int64   { return nowUnix() }

func handleGetNodeInfo(_ context.Context, s *Server, _ json.RawMessage) (any, *rpcmodel.Error) {
	return map[string]any{
		"height":     s.State.BlockHeight,
		"difficulty": s.State.Difficulty,
		"base_fee":   s.State.BaseFee,
	}, nil
}

func handleGetChainTip(_ context.Context, s *Server, _ json.RawMessage) (any, *rpcmodel.Error) {
	tip := s.State.Tip()
	if tip == nil {
		return map[string]any{"height": uint64(0), "hash": nil}, nil
	}
	return map[string]any{"height": tip.Header.Index, "hash": tip.Hash.String()}, nil
}

type getBlockParams struct {
	Height uint64 `json:"height"`
}

func handleGetBlock(_ context.Context, s *Server, params json.RawMessage) (any, *rpcmodel.Error) {
	var p getBlockParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeInvalidParams, Message: "expected {height}"}
	}
	if p.Height == 0 || p.Height > s.State.BlockHeight {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeInvalidParams, Message: "height out of range"}
	}
	b := s.State.Blocks[p.Height-1]
	return map[string]any{
		"index":               b.Header.Index,
		"hash":                b.Hash.String(),
		"previous_hash":       b.Header.PreviousHash.String(),
		"difficulty":          b.Header.Difficulty,
		"timestamp_millis":    b.Header.TimestampMillis,
		"coinbase_consumer":   b.Header.CoinbaseConsumer,
		"coinbase_industrial": b.Header.CoinbaseIndustrial,
		"tx_count":            len(b.Transactions),
	}, nil
}

type getAccountParams struct {
	Address string `json:"address"`
}

func handleGetAccount(_ context.Context, s *Server, params json.RawMessage) (any, *rpcmodel.Error) {
	var p getAccountParams
	if err := json.Unmarshal(params, &p); err != nil || p.Address == "" {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeInvalidParams, Message: "expected {address}"}
	}
	a := s.State.Accounts.Get(p.Address)
	if a == nil {
		return nil, &rpcmodel.Error{Code: rpcmodel.AdmissionErrorCode(uint16(mempool.CodeUnknownSender)), Message: "unknown sender"}
	}
	return map[string]any{
		"balance_consumer":   a.Balance.Consumer,
		"balance_industrial": a.Balance.Industrial,
		"nonce":              a.Nonce,
		"pending_nonce":      a.PendingNonce,
	}, nil
}

func handleGetMempoolStats(_ context.Context, s *Server, _ json.RawMessage) (any, *rpcmodel.Error) {
	return map[string]any{
		"consumer_len":   s.Pool.Len(tx.LaneConsumer),
		"industrial_len": s.Pool.Len(tx.LaneIndustrial),
		"total":          s.Pool.Size(),
	}, nil
}

type submitTransactionParams struct {
	From             string `json:"from"`
	To               string `json:"to"`
	AmountConsumer   uint64 `json:"amount_consumer"`
	AmountIndustrial uint64 `json:"amount_industrial"`
	Fee              uint64 `json:"fee"`
	Selector         uint8  `json:"selector"`
	Nonce            uint64 `json:"nonce"`
	Memo             string `json:"memo"`
	Lane             uint8  `json:"lane"`
	Tip              uint64 `json:"tip"`
	PublicKey        []byte `json:"public_key"`
	Signature        []byte `json:"signature"`
}

func handleSubmitTransaction(_ context.Context, s *Server, params json.RawMessage) (any, *rpcmodel.Error) {
	var p submitTransactionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeInvalidParams, Message: "malformed transaction params"}
	}
	stx := &tx.SignedTransaction{
		Payload: tx.Payload{
			From: p.From, To: p.To,
			AmountConsumer: p.AmountConsumer, AmountIndustrial: p.AmountIndustrial,
			Fee: p.Fee, PctCT: p.Selector, Nonce: p.Nonce, Memo: p.Memo,
		},
		PublicKey: p.PublicKey,
		Signature: p.Signature,
		Lane:      tx.Lane(p.Lane),
		Tip:       p.Tip,
	}
	if err := s.Pool.Admit(stx, systemClock{}); err != nil {
		if ae, ok := err.(mempool.AdmissionError); ok {
			return nil, &rpcmodel.Error{Code: rpcmodel.AdmissionErrorCode(uint16(ae.Code)), Message: ae.Error()}
		}
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeInternalError, Message: err.Error()}
	}
	return map[string]any{"id": stx.PayloadHash().String()}, nil
}

type getTransactionParams struct {
	Sender string `json:"sender"`
	Nonce  uint64 `json:"nonce"`
}

func handleGetTransaction(_ context.Context, s *Server, params json.RawMessage) (any, *rpcmodel.Error) {
	var p getTransactionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeInvalidParams, Message: "expected {sender, nonce}"}
	}
	for _, lane := range [2]tx.Lane{tx.LaneConsumer, tx.LaneIndustrial} {
		if e := s.Pool.Get(lane, mempool.Key{Sender: p.Sender, Nonce: p.Nonce}); e != nil {
			return map[string]any{"status": "pending", "id": e.ID().String()}, nil
		}
	}
	return map[string]any{"status": "unknown"}, nil
}

type adminSetSubsidyParams struct {
	Beta, Gamma, Kappa, Lambda uint64
}

func handleAdminSetSubsidyCoefficients(_ context.Context, s *Server, params json.RawMessage) (any, *rpcmodel.Error) {
	var p adminSetSubsidyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeInvalidParams, Message: "expected {beta,gamma,kappa,lambda}"}
	}
	s.State.Params.Subsidy = governance.SubsidyCoefficients{Beta: p.Beta, Gamma: p.Gamma, Kappa: p.Kappa, Lambda: p.Lambda}
	return map[string]any{"ok": true}, nil
}

type adminSetIndustrialMultiplierParams struct {
	Multiplier float64 `json:"multiplier"`
}

func handleAdminSetIndustrialMultiplier(_ context.Context, s *Server, params json.RawMessage) (any, *rpcmodel.Error) {
	var p adminSetIndustrialMultiplierParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeInvalidParams, Message: "expected {multiplier}"}
	}
	s.State.Params.IndustrialMultiplier = p.Multiplier
	return map[string]any{"ok": true}, nil
}

func handleAdminForceSnapshot(_ context.Context, s *Server, _ json.RawMessage) (any, *rpcmodel.Error) {
	if s.Snapshot == nil {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeInternalError, Message: "no snapshot engine configured"}
	}
	if err := s.Snapshot.WriteFull(s.State); err != nil {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeInternalError, Message: err.Error()}
	}
	return map[string]any{"height": s.State.BlockHeight}, nil
}

type setSnapshotIntervalParams struct {
	Interval int `json:"interval"`
}

func handleSetSnapshotInterval(_ context.Context, s *Server, params json.RawMessage) (any, *rpcmodel.Error) {
	if s.Snapshot == nil {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeInternalError, Message: "no snapshot engine configured"}
	}
	var p setSnapshotIntervalParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeInvalidParams, Message: "expected {interval}"}
	}
	if err := s.Snapshot.SetInterval(p.Interval); err != nil {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeSnapshotIntervalTooSmall, Message: err.Error()}
	}
	return map[string]any{"interval": s.Snapshot.Interval()}, nil
}

// handleMempoolQoSEvent reports the comfort-gate's live view (spec.md §4.5
// step 15): the observed consumer-lane p90 fee/byte against the configured
// comfort threshold, and whether the gate is currently blocking industrial
// admissions.
func handleMempoolQoSEvent(_ context.Context, s *Server, _ json.RawMessage) (any, *rpcmodel.Error) {
	p90, threshold, gated := s.Pool.ComfortStatus()
	return map[string]any{
		"observed_p90_consumer": p90,
		"comfort_threshold_p90": threshold,
		"industrial_gated":      gated,
	}, nil
}

// handleStartMining flips the dispatcher's mining-enabled flag, unless the
// node was started relay-only (spec.md §4.15/§6.1), in which case the
// method answers disabled rather than ever reporting mining as running.
func handleStartMining(_ context.Context, s *Server, _ json.RawMessage) (any, *rpcmodel.Error) {
	if s.cfg.RelayOnly {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeMethodForbidden, Message: "start_mining disabled on a relay-only node"}
	}
	atomic.StoreInt32(&s.miningEnabled, 1)
	return map[string]any{"mining": true}, nil
}

func handleStopMining(_ context.Context, s *Server, _ json.RawMessage) (any, *rpcmodel.Error) {
	atomic.StoreInt32(&s.miningEnabled, 0)
	return map[string]any{"mining": false}, nil
}

type setDifficultyParams struct {
	Difficulty uint64 `json:"difficulty"`
}

// handleSetDifficulty lets an operator override the retargeted difficulty
// directly, e.g. to pin a test or private network at a trivial PoW floor.
func handleSetDifficulty(_ context.Context, s *Server, params json.RawMessage) (any, *rpcmodel.Error) {
	var p setDifficultyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeInvalidParams, Message: "expected {difficulty}"}
	}
	s.State.Difficulty = p.Difficulty
	return map[string]any{"difficulty": s.State.Difficulty}, nil
}

func handleConsensusDifficulty(_ context.Context, s *Server, _ json.RawMessage) (any, *rpcmodel.Error) {
	return map[string]any{
		"difficulty": s.State.Difficulty,
		"mining":     atomic.LoadInt32(&s.miningEnabled) == 1,
	}, nil
}

// handleMetrics reports the counters an operator polls out-of-band (spec.md
// §6.1's metrics method), reusing the same fields get_node_info/
// get_mempool_stats expose rather than standing up a separate metrics
// registry.
func handleMetrics(_ context.Context, s *Server, _ json.RawMessage) (any, *rpcmodel.Error) {
	m := map[string]any{
		"height":         s.State.BlockHeight,
		"difficulty":     s.State.Difficulty,
		"base_fee":       s.State.BaseFee,
		"mempool_total":  s.Pool.Size(),
		"total_reorgs":   s.State.Reorg.TotalReorgs,
		"epoch_counter":  s.State.EpochCounter,
	}
	if s.Snapshot != nil {
		m["snapshot_interval"] = s.Snapshot.Interval()
	}
	if s.Acks != nil {
		m["read_ack_count"] = s.Acks.Len()
		m["read_ack_bytes_out"] = s.Acks.TotalBytesOut()
	}
	return m, nil
}

type submitReadAckParams struct {
	ContentID       string `json:"content_id"`
	Server          string `json:"server"`
	BytesServed     uint64 `json:"bytes_served"`
	TimestampMillis int64  `json:"timestamp_millis"`
	PublicKey       []byte `json:"public_key"`
	Signature       []byte `json:"signature"`
}

// handleSubmitReadAck accepts one signed read acknowledgement into the
// current epoch's batch (spec.md §4.16). The batch is not folded into block
// headers: AssembleBlock takes no read-ack root, so read_root stays zero.
func handleSubmitReadAck(_ context.Context, s *Server, params json.RawMessage) (any, *rpcmodel.Error) {
	if s.Acks == nil {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeInternalError, Message: "no read-ack batcher configured"}
	}
	var p submitReadAckParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeInvalidParams, Message: "malformed read-ack params"}
	}
	raw, err := hex.DecodeString(p.ContentID)
	if err != nil || len(raw) != hashing.Size {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeInvalidParams, Message: "content_id must be a " + hex.EncodeToString(make([]byte, hashing.Size)) + "-length hex hash"}
	}
	var contentID hashing.Hash
	copy(contentID[:], raw)

	ack := &readack.Ack{
		ContentID:       contentID,
		Server:          p.Server,
		BytesServed:     p.BytesServed,
		TimestampMillis: p.TimestampMillis,
		PublicKey:       p.PublicKey,
		Signature:       p.Signature,
	}
	if err := s.Acks.Add(ack, s.cfg.DomainTag); err != nil {
		return nil, &rpcmodel.Error{Code: rpcmodel.CodeInvalidParams, Message: err.Error()}
	}
	return map[string]any{"id": ack.ID().String(), "batch_len": s.Acks.Len()}, nil
}

// handleDebugDumpAccounts dumps the full account set via go-spew, the
// teacher's own debug-inspection library, for operators debugging live
// state without a separate explorer (spec.md §6.2's debug method tier).
func handleDebugDumpAccounts(_ context.Context, s *Server, _ json.RawMessage) (any, *rpcmodel.Error) {
	dump := make(map[string]*accounts.Account)
	s.State.Accounts.Range(func(addr string, a *accounts.Account) bool {
		dump[addr] = a
		return true
	})
	return map[string]string{"dump": spew.Sdump(dump)}, nil
}

func handleDebugDumpMempool(_ context.Context, s *Server, _ json.RawMessage) (any, *rpcmodel.Error) {
	return map[string]string{"dump": spew.Sdump(s.Pool.Snapshot())}, nil
}

func handleLocalShutdown(_ context.Context, s *Server, _ json.RawMessage) (any, *rpcmodel.Error) {
	log.Warnf("local_shutdown invoked over loopback RPC")
	return map[string]any{"ok": true}, nil
}
