// Package config decodes the environment inputs spec.md §6.4 recognizes
// into the concrete Config structs mempool, rpc, and snapshot already
// accept, in the style of daglabs-btcd/cmd's jessevdk/go-flags struct-tag
// decoding (cmd/addsubnetwork/config.go, cmd/txgen/config.go): one flat
// struct, `long`/`env`/`description` tags, a single parser.Parse() call.
package config

import (
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/civicledger/corechain/mempool"
	"github.com/civicledger/corechain/rpc"
	"github.com/civicledger/corechain/snapshot"
)

// NodeConfig is the flat set of environment inputs spec.md §6.4 recognizes.
// Fields decode from either a long CLI flag or the matching environment
// variable (go-flags tries the flag first, falls back to env).
type NodeConfig struct {
	PurgeLoopSecs  int64 `long:"purge-loop-secs" env:"PURGE_LOOP_SECS" description:"background mempool TTL sweep interval; 0 disables"`

	MempoolMax               int     `long:"mempool-max" env:"MEMPOOL_MAX" description:"per-lane mempool capacity" default:"5000"`
	MinFeePerByte            float64 `long:"min-fee-per-byte" env:"MIN_FEE_PER_BYTE" description:"fallback minimum fee/byte when no lane-specific value is set"`
	MinFeePerByteConsumer    float64 `long:"min-fee-per-byte-consumer" env:"MIN_FEE_PER_BYTE_CONSUMER" description:"consumer-lane minimum fee/byte"`
	MinFeePerByteIndustrial  float64 `long:"min-fee-per-byte-industrial" env:"MIN_FEE_PER_BYTE_INDUSTRIAL" description:"industrial-lane minimum fee/byte"`
	ComfortThresholdP90      float64 `long:"comfort-threshold-p90" env:"COMFORT_THRESHOLD_P90" description:"p90 fee/byte threshold used by the comfort-fee estimator"`
	MempoolTTLSecs           int64   `long:"mempool-ttl-secs" env:"MEMPOOL_TTL_SECS" description:"admitted-entry time to live" default:"3600"`
	MempoolAccountCap        uint64  `long:"mempool-account-cap" env:"MEMPOOL_ACCOUNT_CAP" description:"max pending entries per sender" default:"64"`

	RPCTokensPerSec       float64 `long:"rpc-tokens-per-sec" env:"RPC_TOKENS_PER_SEC" description:"per-IP rate limiter refill rate" default:"20"`
	RPCBanSecs            int64   `long:"rpc-ban-secs" env:"RPC_BAN_SECS" description:"ban duration after sustained rate-limit violations" default:"300"`
	RPCClientTimeoutSecs  int64   `long:"rpc-client-timeout-secs" env:"RPC_CLIENT_TIMEOUT_SECS" description:"per-request context timeout" default:"30"`

	SnapshotInterval int    `long:"snapshot-interval" env:"SNAPSHOT_INTERVAL" description:"blocks between full snapshots, floored at snapshot.MinInterval" default:"100"`
	DNSDBPath        string `long:"dns-db-path" env:"DNS_DB_PATH" description:"handle/identity registry store path (out of scope; path recognized for forward-compat)"`
	LocalnetDBPath   string `long:"localnet-db-path" env:"LOCALNET_DB_PATH" description:"snapshot/account leveldb path"`
	Preserve         bool   `long:"preserve" env:"PRESERVE" description:"keep the existing store instead of replaying from genesis on startup"`

	RPCListenAddr  string   `long:"rpc-listen" env:"RPC_LISTEN_ADDR" description:"address the RPC/websocket HTTP listener binds" default:":8545"`
	AdminToken     string   `long:"admin-token" env:"ADMIN_TOKEN" description:"bearer token gating admin/debug/local-only RPC methods"`
	RelayOnly      bool     `long:"relay-only" env:"RELAY_ONLY" description:"disable start_mining; node only relays transactions and blocks"`
	AllowedHosts   []string `long:"allowed-host" env:"ALLOWED_HOSTS" env-delim:"," description:"Host headers accepted by the RPC listener"`
	AllowedOrigins []string `long:"allowed-origin" env:"ALLOWED_ORIGINS" env-delim:"," description:"CORS origins accepted by the RPC listener"`
	MaxClients     int32    `long:"rpc-max-clients" env:"RPC_MAX_CLIENTS" description:"ceiling on concurrent RPC connections" default:"128"`
	MaxBodyBytes   int64    `long:"rpc-max-body-bytes" env:"RPC_MAX_BODY_BYTES" description:"request body size limit" default:"1048576"`
}

// Parse decodes args (typically os.Args[1:]) plus the process environment
// into a NodeConfig, clamping the snapshot interval the same way
// snapshot.Open does so a too-small value never reaches Open as a surprise.
func Parse(args []string) (*NodeConfig, error) {
	cfg := &NodeConfig{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, errors.Wrap(err, "config: parse arguments")
	}
	if cfg.SnapshotInterval < snapshot.MinInterval {
		cfg.SnapshotInterval = snapshot.MinInterval
	}
	return cfg, nil
}

// MempoolConfig projects the relevant fields onto mempool.Config, falling
// back to MinFeePerByte for either lane left at its zero value.
func (c *NodeConfig) MempoolConfig(domainTag []byte) mempool.Config {
	consumerMin := c.MinFeePerByteConsumer
	if consumerMin == 0 {
		consumerMin = c.MinFeePerByte
	}
	industrialMin := c.MinFeePerByteIndustrial
	if industrialMin == 0 {
		industrialMin = c.MinFeePerByte
	}
	return mempool.Config{
		CapacityConsumer:        c.MempoolMax,
		CapacityIndustrial:      c.MempoolMax,
		MinFeePerByteConsumer:   consumerMin,
		MinFeePerByteIndustrial: industrialMin,
		TTLSeconds:              c.MempoolTTLSecs,
		MaxPendingPerAccount:    c.MempoolAccountCap,
		ComfortThresholdP90:     c.ComfortThresholdP90,
		BaseFee:                 mempool.DefaultConfig().BaseFee,
		DomainTag:               domainTag,
	}
}

// RPCConfig projects the relevant fields onto rpc.Config.
func (c *NodeConfig) RPCConfig(domainTag []byte) rpc.Config {
	return rpc.Config{
		AdminToken:       c.AdminToken,
		MaxClients:       c.MaxClients,
		MaxBodyBytes:     c.MaxBodyBytes,
		RequestTimeout:   time.Duration(c.RPCClientTimeoutSecs) * time.Second,
		RateTokensPerSec: c.RPCTokensPerSec,
		RateBurst:        c.RPCTokensPerSec,
		BanDuration:      time.Duration(c.RPCBanSecs) * time.Second,
		AllowedHosts:     c.AllowedHosts,
		AllowedOrigins:   c.AllowedOrigins,
		DomainTag:        domainTag,
		RelayOnly:        c.RelayOnly,
	}
}
