// Command corechain wires mempool, chain state, snapshot persistence,
// read-ack batching, and the gated RPC dispatcher into a single process,
// adapted from daglabs-btcd's kaspad.go: one struct holding every live
// service, a start/stop pair, and a constructor that wires them in
// dependency order.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/civicledger/corechain/accounts"
	"github.com/civicledger/corechain/chain"
	"github.com/civicledger/corechain/config"
	"github.com/civicledger/corechain/logger"
	"github.com/civicledger/corechain/mempool"
	"github.com/civicledger/corechain/readack"
	"github.com/civicledger/corechain/rpc"
	"github.com/civicledger/corechain/snapshot"
)

var log = logger.NewSubsystem("NODE")

// genesisBlockReward seeds both lanes' block reward (spec.md leaves the
// genesis constant implementation-defined); from here each imported block
// shrinks it through consensus.DecayReward.
const genesisBlockReward = 50

var domainTag = []byte("corechain-v1")

// node is a wrapper for every corechain service in a single process.
type node struct {
	cfg       *config.NodeConfig
	pool      *mempool.Pool
	state     *chain.State
	snap      *snapshot.Engine
	acks      *readack.Batcher
	rpcServer *rpc.Server
	httpSrv   *http.Server

	started, shutdown int32
}

// start binds the RPC/websocket HTTP listener and, if configured, launches
// the background mempool TTL sweep. Safe to call once; later calls no-op.
func (n *node) start() {
	if atomic.AddInt32(&n.started, 1) != 1 {
		return
	}
	log.Infof("corechain starting at height %d", n.state.BlockHeight)

	if n.cfg.PurgeLoopSecs > 0 {
		spawn("mempool-purge-loop", func() {
			n.purgeLoop(time.Duration(n.cfg.PurgeLoopSecs) * time.Second)
		})
	}
	spawn("nonce-sweep-loop", n.nonceSweepLoop)

	mux := http.NewServeMux()
	mux.Handle("/", n.rpcServer)
	mux.HandleFunc("/logs/tail", n.rpcServer.ServeLogsTail)
	mux.HandleFunc("/vm/trace", n.rpcServer.ServeVMTrace)
	mux.HandleFunc("/state_stream", n.rpcServer.ServeStateStream)
	n.httpSrv = &http.Server{Handler: mux}

	ln, err := net.Listen("tcp", n.cfg.RPCListenAddr)
	if err != nil {
		log.Criticalf("failed to bind RPC listener on %s: %s", n.cfg.RPCListenAddr, err)
		return
	}
	log.Infof("RPC listening on %s", n.cfg.RPCListenAddr)
	spawn("rpc-listener", func() {
		if err := n.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("rpc listener stopped: %s", err)
		}
	})
}

// purgeLoop periodically drops expired mempool entries on a fixed tick,
// matching spec.md §6.4's PURGE_LOOP_SECS background sweep.
func (n *node) purgeLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for now := range ticker.C {
		dropped := n.pool.PurgeExpired(now.UnixMilli())
		if dropped > 0 {
			log.Debugf("purge loop dropped %d expired mempool entries", dropped)
		}
	}
}

// nonceSweepLoop periodically evicts expired replay-guard entries so the
// RPC dispatcher's nonce map doesn't grow unbounded over a long-running
// process.
func (n *node) nonceSweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for now := range ticker.C {
		n.rpcServer.SweepNonces(now)
	}
}

// stop gracefully shuts down every service. Safe to call once.
func (n *node) stop() error {
	if atomic.AddInt32(&n.shutdown, 1) != 1 {
		log.Infof("corechain is already shutting down")
		return nil
	}
	log.Warnf("corechain shutting down")

	if n.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.httpSrv.Shutdown(ctx); err != nil {
			log.Errorf("error shutting down rpc listener: %s", err)
		}
	}
	if n.snap != nil {
		if err := n.snap.WriteFull(n.state); err != nil {
			log.Errorf("error writing final snapshot: %s", err)
		}
		if err := n.snap.Close(); err != nil {
			log.Errorf("error closing snapshot store: %s", err)
		}
	}
	return nil
}

// newNode builds a node from cfg: opens the snapshot store, replays or
// loads chain state, and wires the mempool and RPC dispatcher on top.
func newNode(cfg *config.NodeConfig) (*node, error) {
	store := accounts.NewStore()
	genesis := chain.NewGenesisState(store, genesisBlockReward, mempool.DefaultConfig().BaseFee)

	var snap *snapshot.Engine
	state := genesis
	if cfg.LocalnetDBPath != "" {
		var err error
		snap, err = snapshot.Open(cfg.LocalnetDBPath, cfg.SnapshotInterval)
		if err != nil {
			return nil, err
		}
		if cfg.Preserve {
			height, err := snap.LoadLatest(store)
			if err != nil {
				if err != snapshot.ErrNoSnapshot {
					return nil, err
				}
				if err := snapshot.ReplayFromGenesis(snap, genesis, domainTag); err != nil {
					return nil, err
				}
			} else {
				// LoadLatest restores account balances directly into store
				// (which genesis already wraps); BlockHeight takes the
				// height of the restored full snapshot, which LoadLatest
				// returns even when it also applied later diffs.
				state.BlockHeight = height
			}
		}
	}

	pool := mempool.New(cfg.MempoolConfig(domainTag), store)
	acks := readack.New()

	rpcServer := rpc.New(cfg.RPCConfig(domainTag), pool, state, snap, acks)

	return &node{
		cfg:       cfg,
		pool:      pool,
		state:     state,
		snap:      snap,
		acks:      acks,
		rpcServer: rpcServer,
	}, nil
}

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	n, err := newNode(cfg)
	if err != nil {
		log.Criticalf("failed to initialize node: %s", err)
		os.Exit(1)
	}
	n.start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	if err := n.stop(); err != nil {
		log.Errorf("error during shutdown: %s", err)
	}
}
