package rpc

// MethodClass is the gating tier a method belongs to (spec.md §6.2): public
// methods need no authentication, admin methods require the admin bearer
// token, debug methods dump internal state and are gated by the same admin
// token check (there is no separate switch that disables them), and
// local-only methods are refused unless the request originates from a
// loopback address. ServeHTTP performs no check for ClassBadge: badge
// methods are served to any caller, and no session-key badge is verified.
type MethodClass int

const (
	ClassPublic MethodClass = iota
	ClassAdmin
	ClassDebug
	ClassBadge
	ClassLocalOnly
)

// methodTable classifies every method this dispatcher serves. Namespaces
// belonging to out-of-scope subsystems (gossip, VM execution, proposal
// lifecycle — spec.md §1) are absent rather than stubbed with fake success
// responses, and an unlisted method surfaces CodeMethodNotFound; the few
// external-collaborator placeholders listed at the end of the table answer
// CodeNotImplemented instead.
var methodTable = map[string]MethodClass{
	"get_node_info":      ClassPublic,
	"get_chain_tip":      ClassPublic,
	"get_block":          ClassPublic,
	"get_account":        ClassPublic,
	"get_mempool_stats":  ClassPublic,
	"submit_transaction": ClassPublic,
	"get_transaction":    ClassPublic,
	"metrics":            ClassPublic,
	"submit_read_ack":    ClassPublic,

	"submit_session_transaction": ClassBadge,

	// spec.md §6.1 stable-contract aliases: same tier as the handler they
	// route to (SPEC_FULL.md §C).
	"balance":              ClassPublic,
	"submit_tx":            ClassPublic,
	"tx_status":            ClassPublic,
	"mempool.stats":        ClassPublic,
	"mempool.qos_event":    ClassPublic,
	"consensus.difficulty": ClassPublic,

	"admin_set_subsidy_coefficients":  ClassAdmin,
	"admin_set_industrial_multiplier": ClassAdmin,
	"admin_force_snapshot":            ClassAdmin,
	"set_snapshot_interval":           ClassAdmin,
	"start_mining":                    ClassAdmin,
	"stop_mining":                     ClassAdmin,
	"set_difficulty":                  ClassAdmin,

	"debug_dump_accounts": ClassDebug,
	"debug_dump_mempool":  ClassDebug,

	"local_shutdown": ClassLocalOnly,

	// External-collaborator namespaces (DNS auctions, legal/energy
	// settlement, the compute market and gateway/bridge subsystems) are out
	// of scope, but their method names still route through the full gating
	// pipeline and answer with a structured not-implemented error rather
	// than a bare 404, matching the original dispatch table's single
	// method-name space.
	"dns.register":   ClassPublic,
	"dns.resolve":    ClassPublic,
	"le.submit_case": ClassPublic,
	"energy.settle":  ClassPublic,
}

// reservedNamespaces lists the method names classified above that have no
// real handler — classify still recognizes them (so gating runs uniformly)
// but dispatch answers rpcmodel.CodeNotImplemented instead of
// CodeMethodNotFound.
var reservedNamespaces = map[string]struct{}{
	"dns.register":   {},
	"dns.resolve":    {},
	"le.submit_case": {},
	"energy.settle":  {},
}

// isReserved reports whether method is a classified-but-unimplemented
// external-collaborator placeholder.
func isReserved(method string) bool {
	_, ok := reservedNamespaces[method]
	return ok
}

// classify returns the method's gating tier and whether it is known at all.
func classify(method string) (MethodClass, bool) {
	c, ok := methodTable[method]
	return c, ok
}

// replayGuardedMethods are the state-mutating calls spec.md §4.15 point 8
// subjects to the nonce replay guard: each scoped by method name, a
// repeated (method, request_nonce) pair is rejected outright.
var replayGuardedMethods = map[string]struct{}{
	"submit_transaction":              {},
	"submit_session_transaction":      {},
	"submit_tx":                       {},
	"admin_set_subsidy_coefficients":  {},
	"admin_set_industrial_multiplier": {},
	"set_snapshot_interval":           {},
	"set_difficulty":                  {},
}

func isReplayGuarded(method string) bool {
	_, ok := replayGuardedMethods[method]
	return ok
}
