package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"nestbox.dev/internal/protocol"
)

var errBusy = errors.New("server busy")

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		puzzleID = flag.String("puzzle", "", "puzzle id (random pick if empty)")
		interval = flag.Duration("interval", 500*time.Millisecond, "delay between pushes")
		count    = flag.Int("pushes", 0, "stop after this many pushes (0 = run until interrupted)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for {
		err := runSession(*url, *puzzleID, *interval, *count, rng, logger, stop)
		if err == nil {
			return
		}
		if !errors.Is(err, errBusy) {
			logger.Fatalf("%v", err)
		}
		logger.Printf("server busy; backing off")
		select {
		case <-stop:
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func runSession(url, puzzleID string, interval time.Duration, count int, rng *rand.Rand, logger *log.Logger, stop <-chan os.Signal) error {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "bot",
	}
	if err := conn.WriteJSON(hello); err != nil {
		return fmt.Errorf("send HELLO: %w", err)
	}
	var welcome protocol.WelcomeMsg
	if err := readNext(conn, protocol.TypeWelcome, &welcome); err != nil {
		return fmt.Errorf("read WELCOME: %w", err)
	}
	if len(welcome.Puzzles) == 0 {
		return fmt.Errorf("server offers no puzzles")
	}
	if puzzleID == "" {
		puzzleID = welcome.Puzzles[rng.Intn(len(welcome.Puzzles))].ID
	}
	logger.Printf("session=%s joining %s", welcome.SessionID, puzzleID)

	join := protocol.JoinMsg{
		Type:            protocol.TypeJoin,
		ProtocolVersion: protocol.Version,
		PuzzleID:        puzzleID,
	}
	if err := conn.WriteJSON(join); err != nil {
		return fmt.Errorf("send JOIN: %w", err)
	}
	var state protocol.StateMsg
	if err := readNext(conn, protocol.TypeState, &state); err != nil {
		return fmt.Errorf("read STATE: %w", err)
	}
	entities := pushable(state)
	if len(entities) == 0 {
		return fmt.Errorf("puzzle %s has no boxes to push", puzzleID)
	}

	dirs := []string{"north", "south", "east", "west"}
	digest := state.Digest
	seq := state.Seq
	for pushed := 0; count == 0 || pushed < count; pushed++ {
		select {
		case <-stop:
			return nil
		case <-time.After(interval):
		}

		entity := entities[rng.Intn(len(entities))]
		dir := dirs[rng.Intn(len(dirs))]
		push := protocol.PushMsg{
			Type:            protocol.TypePush,
			ProtocolVersion: protocol.Version,
			Entity:          entity,
			Direction:       dir,
		}
		if err := conn.WriteJSON(push); err != nil {
			return fmt.Errorf("send PUSH: %w", err)
		}
		var res protocol.ResultMsg
		if err := readNext(conn, protocol.TypeResult, &res); err != nil {
			return fmt.Errorf("read RESULT: %w", err)
		}

		if res.Seq != seq+1 {
			return fmt.Errorf("seq gap: got %d after %d", res.Seq, seq)
		}
		seq = res.Seq
		if res.Outcome == "BLOCKED" {
			if len(res.Moves) != 0 {
				return fmt.Errorf("blocked push #%s %s reported %d moves", entity, dir, len(res.Moves))
			}
			if res.Digest != digest {
				return fmt.Errorf("blocked push #%s %s changed digest", entity, dir)
			}
		} else if len(res.Moves) == 0 {
			return fmt.Errorf("moved push #%s %s reported no moves", entity, dir)
		}
		digest = res.Digest
		logger.Printf("push %d #%s %s: %s reason=%s moves=%d", res.Seq, entity, dir, res.Outcome, res.Reason, len(res.Moves))
	}
	return nil
}

// readNext skips frames until the wanted type arrives. ERROR frames and
// an E_BUSY close both end the session.
func readNext(conn *websocket.Conn, want string, v any) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
				return errBusy
			}
			return err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		if base.Type == protocol.TypeError {
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				continue
			}
			return fmt.Errorf("server error %s: %s", e.Code, e.Message)
		}
		if base.Type != want {
			continue
		}
		return json.Unmarshal(msg, v)
	}
}

// pushable lists each box once, in board order. Nonsolid containers are
// fair targets; their pushes come back BLOCKED with a reason.
func pushable(state protocol.StateMsg) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range state.Containers {
		for _, o := range c.Occupants {
			if o.Kind != "box" || seen[o.Entity] {
				continue
			}
			seen[o.Entity] = true
			out = append(out, o.Entity)
		}
	}
	return out
}
