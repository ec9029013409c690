package ws

import (
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"nestbox.dev/internal/persistence/tracelog"
	"nestbox.dev/internal/protocol"
	"nestbox.dev/internal/puzzles"
)

const rowScript = `DEFINE BOX #room SIZE (4,1)
DEFINE BOX #crate SOLID
DEFINE BOX #spare SOLID
PLACE #crate AT (0,0) IN #room
`

func newTestCatalog(t *testing.T) *puzzles.Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "row.box")
	if err := os.WriteFile(path, []byte(rowScript), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	cfg := puzzles.Config{Puzzles: []puzzles.Spec{{ID: "row", Name: "Row", Path: path}}}
	cfg.Normalize()
	cat, err := puzzles.Open(cfg)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	return cat
}

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(newTestCatalog(t), opts, log.New(io.Discard, "", 0))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn, wantType string, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		t.Fatalf("decode %q: %v", msg, err)
	}
	if base.Type != wantType {
		t.Fatalf("got %s, want %s: %s", base.Type, wantType, msg)
	}
	if err := json.Unmarshal(msg, v); err != nil {
		t.Fatalf("unmarshal %s: %v", wantType, err)
	}
}

func sayHello(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test"}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("send HELLO: %v", err)
	}
	var w protocol.WelcomeMsg
	readMsg(t, conn, protocol.TypeWelcome, &w)
	return w
}

func write(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write %T: %v", v, err)
	}
}

func readError(t *testing.T, conn *websocket.Conn) protocol.ErrorMsg {
	t.Helper()
	var e protocol.ErrorMsg
	readMsg(t, conn, protocol.TypeError, &e)
	if !protocol.IsKnownCode(e.Code) {
		t.Fatalf("unknown error code %q", e.Code)
	}
	return e
}

func TestServer_JoinPushReset(t *testing.T) {
	srv, ts := newTestServer(t, Options{})
	conn := dial(t, ts)

	welcome := sayHello(t, conn)
	if welcome.SessionID == "" {
		t.Fatalf("empty session id")
	}
	if len(welcome.Puzzles) != 1 || welcome.Puzzles[0].ID != "row" || welcome.Puzzles[0].Name != "Row" {
		t.Fatalf("manifest = %+v", welcome.Puzzles)
	}

	write(t, conn, protocol.JoinMsg{Type: protocol.TypeJoin, ProtocolVersion: protocol.Version, PuzzleID: "row"})
	var st protocol.StateMsg
	readMsg(t, conn, protocol.TypeState, &st)
	if st.PuzzleID != "row" || st.Seq != 0 {
		t.Fatalf("STATE = %+v", st)
	}
	if len(st.Containers) != 1 {
		t.Fatalf("containers = %+v", st.Containers)
	}
	room := st.Containers[0]
	if room.Name != "room" || room.W != 4 || room.H != 1 || room.Solid {
		t.Fatalf("room = %+v", room)
	}
	if len(room.Occupants) != 1 || room.Occupants[0].Entity != "crate" || room.Occupants[0].Kind != "box" || room.Occupants[0].X != 0 {
		t.Fatalf("occupants = %+v", room.Occupants)
	}
	initialDigest := st.Digest

	write(t, conn, protocol.PushMsg{Type: protocol.TypePush, ProtocolVersion: protocol.Version, Entity: "crate", Direction: "east"})
	var res protocol.ResultMsg
	readMsg(t, conn, protocol.TypeResult, &res)
	if res.Seq != 1 || res.Outcome != "MOVED" || res.Reason != "" {
		t.Fatalf("RESULT = %+v", res)
	}
	if len(res.Moves) != 1 || res.Moves[0].Entity != "crate" || res.Moves[0].To != (protocol.Cell{X: 1, Y: 0}) {
		t.Fatalf("moves = %+v", res.Moves)
	}
	if res.Digest == initialDigest {
		t.Fatalf("digest unchanged after a move")
	}

	write(t, conn, protocol.ResetMsg{Type: protocol.TypeReset, ProtocolVersion: protocol.Version})
	readMsg(t, conn, protocol.TypeState, &st)
	if st.Digest != initialDigest || st.Seq != 0 {
		t.Fatalf("reset STATE = %+v", st)
	}

	m := srv.Metrics()
	if m.Joins != 1 || m.Pushes != 1 || m.Moved != 1 || m.Blocked != 0 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestServer_BlockedPushKeepsDigest(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	conn := dial(t, ts)
	sayHello(t, conn)

	write(t, conn, protocol.JoinMsg{Type: protocol.TypeJoin, ProtocolVersion: protocol.Version, PuzzleID: "row"})
	var st protocol.StateMsg
	readMsg(t, conn, protocol.TypeState, &st)

	write(t, conn, protocol.PushMsg{Type: protocol.TypePush, ProtocolVersion: protocol.Version, Entity: "crate", Direction: "west"})
	var res protocol.ResultMsg
	readMsg(t, conn, protocol.TypeResult, &res)
	if res.Outcome != "BLOCKED" || res.Reason != "boundary" {
		t.Fatalf("RESULT = %+v", res)
	}
	if len(res.Moves) != 0 {
		t.Fatalf("moves = %+v", res.Moves)
	}
	if res.Digest != st.Digest {
		t.Fatalf("digest changed on blocked push: %s != %s", res.Digest, st.Digest)
	}
}

func TestServer_ErrorCodes(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	conn := dial(t, ts)
	sayHello(t, conn)

	write(t, conn, protocol.PushMsg{Type: protocol.TypePush, ProtocolVersion: protocol.Version, Entity: "crate", Direction: "east"})
	if e := readError(t, conn); e.Code != protocol.ErrNoPuzzle {
		t.Fatalf("push before join: %s", e.Code)
	}

	write(t, conn, protocol.ResetMsg{Type: protocol.TypeReset, ProtocolVersion: protocol.Version})
	if e := readError(t, conn); e.Code != protocol.ErrNoPuzzle {
		t.Fatalf("reset before join: %s", e.Code)
	}

	write(t, conn, protocol.JoinMsg{Type: protocol.TypeJoin, ProtocolVersion: protocol.Version, PuzzleID: "nope"})
	if e := readError(t, conn); e.Code != protocol.ErrUnknownPuzzle {
		t.Fatalf("unknown puzzle: %s", e.Code)
	}

	write(t, conn, protocol.JoinMsg{Type: protocol.TypeJoin, ProtocolVersion: protocol.Version, PuzzleID: "row"})
	var st protocol.StateMsg
	readMsg(t, conn, protocol.TypeState, &st)

	write(t, conn, protocol.PushMsg{Type: protocol.TypePush, ProtocolVersion: protocol.Version, Entity: "crate", Direction: "up"})
	if e := readError(t, conn); e.Code != protocol.ErrBadDirection {
		t.Fatalf("bad direction: %s", e.Code)
	}

	write(t, conn, protocol.PushMsg{Type: protocol.TypePush, ProtocolVersion: protocol.Version, Entity: "ghost", Direction: "north"})
	if e := readError(t, conn); e.Code != protocol.ErrUnknownEntity {
		t.Fatalf("unknown entity: %s", e.Code)
	}

	write(t, conn, protocol.PushMsg{Type: protocol.TypePush, ProtocolVersion: protocol.Version, Entity: "spare", Direction: "north"})
	if e := readError(t, conn); e.Code != protocol.ErrNotPlaced {
		t.Fatalf("unplaced entity: %s", e.Code)
	}

	write(t, conn, protocol.BaseMessage{Type: "DANCE", ProtocolVersion: protocol.Version})
	if e := readError(t, conn); e.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("unknown type: %s", e.Code)
	}
}

func TestServer_HandshakeRejectsBadVersion(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	conn := dial(t, ts)

	write(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.9"})
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err = %v, want policy violation close", err)
	}
}

func TestServer_HandshakeRequiresHello(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	conn := dial(t, ts)

	write(t, conn, protocol.JoinMsg{Type: protocol.TypeJoin, ProtocolVersion: protocol.Version, PuzzleID: "row"})
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err = %v, want policy violation close", err)
	}
}

func TestServer_RecordsTraces(t *testing.T) {
	dataDir := t.TempDir()
	traces := tracelog.NewPushWriter(dataDir)
	_, ts := newTestServer(t, Options{Traces: traces})
	conn := dial(t, ts)
	sayHello(t, conn)

	write(t, conn, protocol.JoinMsg{Type: protocol.TypeJoin, ProtocolVersion: protocol.Version, PuzzleID: "row"})
	var st protocol.StateMsg
	readMsg(t, conn, protocol.TypeState, &st)

	var res protocol.ResultMsg
	write(t, conn, protocol.PushMsg{Type: protocol.TypePush, ProtocolVersion: protocol.Version, Entity: "crate", Direction: "east"})
	readMsg(t, conn, protocol.TypeResult, &res)
	write(t, conn, protocol.PushMsg{Type: protocol.TypePush, ProtocolVersion: protocol.Version, Entity: "crate", Direction: "west"})
	readMsg(t, conn, protocol.TypeResult, &res)

	// record runs inside Push, before RESULT is queued, so both entries
	// are on disk once the second RESULT arrives.
	if err := traces.Close(); err != nil {
		t.Fatalf("close traces: %v", err)
	}
	files, err := tracelog.Files(dataDir)
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d trace files, want 1", len(files))
	}
	entries, err := tracelog.ReadFile(files[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Source != "ws" || entries[0].PuzzleID != "row" || entries[0].RunID == "" {
		t.Fatalf("entry context = %+v", entries[0])
	}
	if entries[0].RunID != entries[1].RunID {
		t.Fatalf("run ids diverge: %s vs %s", entries[0].RunID, entries[1].RunID)
	}
	if entries[0].Seq != 1 || entries[1].Seq != 2 {
		t.Fatalf("seqs = %d, %d", entries[0].Seq, entries[1].Seq)
	}
}
