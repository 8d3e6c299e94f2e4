package rpc

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/btcsuite/websocket"

	"github.com/civicledger/corechain/logger"
)

// wsUpgrade upgrades r using the same free-function signature
// rpcserver.go's handleWebsocketHelp path calls (read/write buffer sizes,
// no extra response header). No host or origin check runs on this path:
// the websocket endpoints are mounted directly on the HTTP mux, outside
// Server.ServeHTTP's HostPolicy.AllowHost/ApplyCORS steps.
func wsUpgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return websocket.Upgrade(w, r, nil, 1024, 4096)
}

// ServeLogsTail upgrades to a websocket and streams every subsequently
// logged line to the client, admin-gated since log lines may carry
// sensitive operational detail. Uses the teacher's own websocket fork
// (github.com/btcsuite/websocket), the same import
// infrastructure/network/rpc/rpcserver.go uses for its notification
// sockets.
func (s *Server) ServeLogsTail(w http.ResponseWriter, r *http.Request) {
	if !CheckAdminToken(r, s.cfg.AdminToken) {
		http.Error(w, "401 unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := wsUpgrade(w, r)
	if err != nil {
		log.Warnf("logs/tail upgrade failed: %s", err)
		return
	}
	defer conn.Close()

	ch := logger.Default.Subscribe()
	defer logger.Default.Unsubscribe(ch)
	for line := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, line); err != nil {
			return
		}
	}
}

// ServeVMTrace answers the vm/trace subscription endpoint named in the
// original namespace with an explicit "not supported" close: VM execution
// is out of scope (spec.md §1), so this is a thin stub rather than a stub
// that pretends to stream real traces.
func (s *Server) ServeVMTrace(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrade(w, r)
	if err != nil {
		return
	}
	defer conn.Close()
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"vm execution is out of scope; trace streaming not supported"}`))
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "not supported"), time.Now().Add(time.Second))
}

// stateStreamFrame is one periodic tick of /state_stream.
type stateStreamFrame struct {
	Height     uint64 `json:"height"`
	Difficulty uint64 `json:"difficulty"`
	BaseFee    uint64 `json:"base_fee"`
}

// ServeStateStream streams the chain tip's vitals once a second, closing
// only when a write fails (for example because the client disconnected).
func (s *Server) ServeStateStream(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrade(w, r)
	if err != nil {
		log.Warnf("state_stream upgrade failed: %s", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		frame := stateStreamFrame{Height: s.State.BlockHeight, Difficulty: s.State.Difficulty, BaseFee: s.State.BaseFee}
		payload, err := json.Marshal(frame)
		if err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
