package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "runs":
			runsCmd(os.Args[2:])
			return
		case "run":
			runCmd(os.Args[2:])
			return
		case "puzzles":
			puzzlesCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin runs|run|puzzles [flags]")
	os.Exit(2)
}

func openDB(path string) *sql.DB {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return db
}

func runsCmd(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	dbPath := fs.String("db", "./data/index.sqlite", "run index path")
	limit := fs.Int("limit", 20, "result limit")
	puzzle := fs.String("puzzle", "", "puzzle id filter")
	_ = fs.Parse(args)

	if *limit <= 0 {
		*limit = 20
	}
	db := openDB(*dbPath)
	defer db.Close()

	q := `SELECT run_id,puzzle_id,source,script_sha,started_at,COALESCE(finished_at,''),status,pushes,final_digest FROM runs ORDER BY started_at DESC LIMIT ?`
	qargs := []any{*limit}
	if strings.TrimSpace(*puzzle) != "" {
		q = `SELECT run_id,puzzle_id,source,script_sha,started_at,COALESCE(finished_at,''),status,pushes,final_digest FROM runs WHERE puzzle_id=? ORDER BY started_at DESC LIMIT ?`
		qargs = []any{strings.TrimSpace(*puzzle), *limit}
	}
	rows, err := db.Query(q, qargs...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			RunID       string `json:"run_id"`
			PuzzleID    string `json:"puzzle_id"`
			Source      string `json:"source"`
			ScriptSHA   string `json:"script_sha"`
			StartedAt   string `json:"started_at"`
			FinishedAt  string `json:"finished_at,omitempty"`
			Status      string `json:"status"`
			Pushes      int    `json:"pushes"`
			FinalDigest string `json:"final_digest,omitempty"`
		}
		if err := rows.Scan(&r.RunID, &r.PuzzleID, &r.Source, &r.ScriptSHA, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Pushes, &r.FinalDigest); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		printJSON(r)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

// traceRow is one pushes row; raw_json carries the full trace record.
type traceRow struct {
	Seq       int64           `json:"seq"`
	Entity    string          `json:"entity"`
	Direction string          `json:"direction"`
	Outcome   string          `json:"outcome"`
	Reason    string          `json:"reason,omitempty"`
	Push      json.RawMessage `json:"push"`
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dbPath := fs.String("db", "./data/index.sqlite", "run index path")
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: admin run [-db PATH] RUN_ID")
		os.Exit(2)
	}
	runID := strings.TrimSpace(fs.Arg(0))

	db := openDB(*dbPath)
	defer db.Close()

	var out struct {
		RunID       string     `json:"run_id"`
		PuzzleID    string     `json:"puzzle_id"`
		Source      string     `json:"source"`
		ScriptSHA   string     `json:"script_sha"`
		StartedAt   string     `json:"started_at"`
		FinishedAt  string     `json:"finished_at,omitempty"`
		Status      string     `json:"status"`
		Pushes      int        `json:"pushes"`
		FinalDigest string     `json:"final_digest,omitempty"`
		Trace       []traceRow `json:"trace"`
	}
	row := db.QueryRow(`SELECT run_id,puzzle_id,source,script_sha,started_at,COALESCE(finished_at,''),status,pushes,final_digest FROM runs WHERE run_id=?`, runID)
	if err := row.Scan(&out.RunID, &out.PuzzleID, &out.Source, &out.ScriptSHA, &out.StartedAt, &out.FinishedAt, &out.Status, &out.Pushes, &out.FinalDigest); err != nil {
		fmt.Fprintln(os.Stderr, "scan:", err)
		os.Exit(1)
	}

	rows, err := db.Query(`SELECT seq,entity,direction,outcome,COALESCE(reason,''),raw_json FROM pushes WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	for rows.Next() {
		var p traceRow
		var raw []byte
		if err := rows.Scan(&p.Seq, &p.Entity, &p.Direction, &p.Outcome, &p.Reason, &raw); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		p.Push = json.RawMessage(raw)
		out.Trace = append(out.Trace, p)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
	printJSON(out)
}

func puzzlesCmd(args []string) {
	fs := flag.NewFlagSet("puzzles", flag.ExitOnError)
	dbPath := fs.String("db", "./data/index.sqlite", "run index path")
	_ = fs.Parse(args)

	db := openDB(*dbPath)
	defer db.Close()

	rows, err := db.Query(`SELECT id,name,path,script_sha,updated_at FROM puzzles ORDER BY id`)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			Path      string `json:"path"`
			ScriptSHA string `json:"script_sha"`
			UpdatedAt string `json:"updated_at"`
		}
		if err := rows.Scan(&r.ID, &r.Name, &r.Path, &r.ScriptSHA, &r.UpdatedAt); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		printJSON(r)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
