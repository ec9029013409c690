package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"nestbox.dev/internal/engine"
	"nestbox.dev/internal/persistence/indexdb"
	"nestbox.dev/internal/persistence/tracelog"
	"nestbox.dev/internal/protocol"
	"nestbox.dev/internal/puzzles"
)

// Server serves the puzzle protocol over websockets. Each connection owns
// a private world built from the joined puzzle's script, so the engine
// never sees concurrent pushes.
type Server struct {
	cat *puzzles.Catalog
	log *log.Logger

	traces *tracelog.JSONLZstdWriter
	index  *indexdb.SQLiteIndex

	upgrader websocket.Upgrader

	sessions atomic.Int64
	joins    atomic.Uint64
	pushes   atomic.Uint64
	moved    atomic.Uint64
	blocked  atomic.Uint64
}

// Options carries the optional recording backends. Either may be nil.
type Options struct {
	Traces *tracelog.JSONLZstdWriter
	Index  *indexdb.SQLiteIndex
}

func NewServer(cat *puzzles.Catalog, opts Options, logger *log.Logger) *Server {
	s := &Server{
		cat:    cat,
		log:    logger,
		traces: opts.Traces,
		index:  opts.Index,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

// Metrics is a point-in-time snapshot for the metrics endpoint.
type Metrics struct {
	Sessions int64
	Joins    uint64
	Pushes   uint64
	Moved    uint64
	Blocked  uint64
}

func (s *Server) Metrics() Metrics {
	return Metrics{
		Sessions: s.sessions.Load(),
		Joins:    s.joins.Load(),
		Pushes:   s.pushes.Load(),
		Moved:    s.moved.Load(),
		Blocked:  s.blocked.Load(),
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}

		s.sessions.Add(1)
		defer s.sessions.Add(-1)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sess.cancel = cancel

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-sess.out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				sess.sendError(protocol.ErrProtoBadRequest, "malformed message")
				continue
			}
			switch base.Type {
			case protocol.TypeJoin:
				var join protocol.JoinMsg
				if err := json.Unmarshal(msg, &join); err != nil {
					sess.sendError(protocol.ErrProtoBadRequest, "malformed JOIN")
					continue
				}
				sess.handleJoin(join)
			case protocol.TypePush:
				var push protocol.PushMsg
				if err := json.Unmarshal(msg, &push); err != nil {
					sess.sendError(protocol.ErrProtoBadRequest, "malformed PUSH")
					continue
				}
				sess.handlePush(push)
			case protocol.TypeReset:
				sess.handleReset()
			default:
				sess.sendError(protocol.ErrProtoBadRequest, fmt.Sprintf("unexpected %s", base.Type))
			}
		}

		// Cleanup.
		sess.finishRun("disconnect")
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil
	}

	sess := &session{
		srv:  s,
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan []byte, 32),
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.id,
		Puzzles:         s.cat.Manifest(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	return sess
}

// session is one websocket connection after a completed handshake. All
// fields are owned by the reader goroutine; only out crosses to the
// writer.
type session struct {
	srv    *Server
	id     string
	conn   *websocket.Conn
	out    chan []byte
	cancel context.CancelFunc

	puzzleID string
	world    *engine.World
	runID    string
	seq      uint64
	last     engine.PushTrace
}

func (sess *session) send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		sess.srv.log.Printf("session %s: marshal %T: %v", sess.id, v, err)
		return
	}
	select {
	case sess.out <- b:
	default:
		// Slow consumer: closing beats blocking the reader. Control
		// frames may be written concurrently with the writer goroutine.
		_ = sess.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, protocol.ErrBusy),
			time.Now().Add(time.Second))
		sess.cancel()
	}
}

func (sess *session) sendError(code, message string) {
	sess.send(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	})
}

func (sess *session) handleJoin(join protocol.JoinMsg) {
	w, err := sess.srv.cat.Build(join.PuzzleID)
	if err != nil {
		if errors.Is(err, puzzles.ErrUnknownPuzzle) {
			sess.sendError(protocol.ErrUnknownPuzzle, err.Error())
		} else {
			sess.sendError(protocol.ErrInternal, err.Error())
		}
		return
	}
	sess.finishRun("abandoned")
	sess.startRun(join.PuzzleID, w)
	sess.srv.joins.Add(1)
	sess.send(sess.stateMsg())
}

func (sess *session) handlePush(push protocol.PushMsg) {
	if sess.world == nil {
		sess.sendError(protocol.ErrNoPuzzle, "no puzzle joined")
		return
	}
	dir, ok := engine.ParseDirection(push.Direction)
	if !ok {
		sess.sendError(protocol.ErrBadDirection, fmt.Sprintf("bad direction %q", push.Direction))
		return
	}
	id, err := sess.world.Resolve(push.Entity)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrAliasCycle):
			sess.sendError(protocol.ErrAliasCycle, err.Error())
		case errors.Is(err, engine.ErrUnknownEntity):
			sess.sendError(protocol.ErrUnknownEntity, err.Error())
		default:
			sess.sendError(protocol.ErrInternal, err.Error())
		}
		return
	}
	out, err := sess.world.Push(id, dir)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNotPlaced):
			sess.sendError(protocol.ErrNotPlaced, err.Error())
		case errors.Is(err, engine.ErrAliasCycle):
			sess.sendError(protocol.ErrAliasCycle, err.Error())
		default:
			sess.sendError(protocol.ErrInternal, err.Error())
		}
		return
	}

	sess.srv.pushes.Add(1)
	if out == engine.Moved {
		sess.srv.moved.Add(1)
	} else {
		sess.srv.blocked.Add(1)
	}

	// The trace sink fired inside Push; last holds this push's record.
	sess.send(resultMsg(sess.last))
}

func (sess *session) handleReset() {
	if sess.world == nil {
		sess.sendError(protocol.ErrNoPuzzle, "no puzzle joined")
		return
	}
	w, err := sess.srv.cat.Build(sess.puzzleID)
	if err != nil {
		sess.sendError(protocol.ErrInternal, err.Error())
		return
	}
	sess.finishRun("reset")
	sess.startRun(sess.puzzleID, w)
	sess.send(sess.stateMsg())
}

func (sess *session) startRun(puzzleID string, w *engine.World) {
	sess.puzzleID = puzzleID
	sess.world = w
	sess.runID = uuid.NewString()
	sess.seq = 0
	sess.last = engine.PushTrace{}
	if sess.srv.index != nil {
		sha, _ := sess.srv.cat.ScriptSHA(puzzleID)
		_ = sess.srv.index.StartRun(indexdb.RunStart{
			RunID:     sess.runID,
			PuzzleID:  puzzleID,
			Source:    "ws",
			ScriptSHA: sha,
			StartedAt: time.Now().UTC(),
		})
	}
	w.SetTraceSink(engine.TraceFunc(sess.record))
}

func (sess *session) record(t engine.PushTrace) {
	sess.last = t
	sess.seq = t.Seq
	if sess.srv.traces != nil {
		e := tracelog.Entry{
			RunID:     sess.runID,
			PuzzleID:  sess.puzzleID,
			Source:    "ws",
			At:        time.Now().UTC(),
			PushTrace: t,
		}
		if err := sess.srv.traces.Write(e); err != nil {
			sess.srv.log.Printf("session %s: trace write: %v", sess.id, err)
		}
	}
	if sess.srv.index != nil {
		_ = sess.srv.index.RecordPush(sess.runID, t)
	}
}

func (sess *session) finishRun(status string) {
	if sess.runID == "" {
		return
	}
	if sess.srv.index != nil {
		sess.srv.index.FinishRun(sess.runID, status)
	}
	sess.runID = ""
}

func (sess *session) stateMsg() protocol.StateMsg {
	w := sess.world
	containers := []protocol.ContainerState{}
	for _, id := range w.Containers() {
		size, ok := w.GridSize(id)
		if !ok {
			continue
		}
		c := protocol.ContainerState{
			Name:      w.Name(id),
			W:         size.W,
			H:         size.H,
			Solid:     w.IsSolid(id),
			Occupants: []protocol.Occupant{},
		}
		for y := 0; y < size.H; y++ {
			for x := 0; x < size.W; x++ {
				occ, ok := w.OccupantAt(id, engine.Point{X: x, Y: y})
				if !ok {
					continue
				}
				c.Occupants = append(c.Occupants, protocol.Occupant{
					Entity: w.Name(occ),
					Kind:   w.KindOf(occ).String(),
					X:      x,
					Y:      y,
				})
			}
		}
		containers = append(containers, c)
	}
	return protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		PuzzleID:        sess.puzzleID,
		Seq:             sess.seq,
		Digest:          w.Digest(),
		Containers:      containers,
	}
}

func resultMsg(t engine.PushTrace) protocol.ResultMsg {
	moves := make([]protocol.Move, 0, len(t.Moves))
	for _, m := range t.Moves {
		moves = append(moves, protocol.Move{
			Entity:    m.Name,
			Container: m.Container,
			From:      protocol.Cell{X: m.From.X, Y: m.From.Y},
			To:        protocol.Cell{X: m.To.X, Y: m.To.Y},
		})
	}
	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Seq:             t.Seq,
		Outcome:         t.Outcome,
		Reason:          t.Reason,
		Moves:           moves,
		Digest:          t.Digest,
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
