package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"nestbox.dev/internal/engine"
	"nestbox.dev/internal/persistence/tracelog"
	"nestbox.dev/internal/puzzles"
)

func main() {
	var (
		dataDir      = flag.String("data", "./data", "data directory holding traces/")
		tracePath    = flag.String("trace", "", "single trace file (overrides -data)")
		manifestPath = flag.String("puzzles", "", "puzzle manifest path (built-in set if empty); must match the recording")
		runFilter    = flag.String("run", "", "replay only this run id")
	)
	flag.Parse()

	var files []string
	if strings.TrimSpace(*tracePath) != "" {
		files = []string{*tracePath}
	} else {
		var err error
		files, err = tracelog.Files(*dataDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list traces:", err)
			os.Exit(1)
		}
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no trace files found in", *dataDir)
		os.Exit(1)
	}

	cfg, err := puzzles.Load(strings.TrimSpace(*manifestPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "load puzzles:", err)
		os.Exit(1)
	}
	cat, err := puzzles.Open(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open catalog:", err)
		os.Exit(1)
	}

	// Hourly files interleave runs; group by run id, keeping first-seen
	// order and each run's own write order.
	var order []string
	byRun := map[string][]tracelog.Entry{}
	for _, path := range files {
		entries, err := tracelog.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read trace:", err)
			os.Exit(1)
		}
		for _, e := range entries {
			if *runFilter != "" && e.RunID != *runFilter {
				continue
			}
			if _, seen := byRun[e.RunID]; !seen {
				order = append(order, e.RunID)
			}
			byRun[e.RunID] = append(byRun[e.RunID], e)
		}
	}
	if len(order) == 0 {
		fmt.Fprintln(os.Stderr, "no matching runs in trace files")
		os.Exit(1)
	}

	var pushes int
	for _, runID := range order {
		n, err := replayRun(cat, runID, byRun[runID])
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		pushes += n
	}
	fmt.Printf("replay ok: %d runs, %d pushes\n", len(order), pushes)
}

// replayRun rebuilds the run's puzzle and re-applies its pushes,
// verifying outcome and digest after every step.
func replayRun(cat *puzzles.Catalog, runID string, entries []tracelog.Entry) (int, error) {
	puzzleID := entries[0].PuzzleID
	w, err := cat.Build(puzzleID)
	if err != nil {
		return 0, fmt.Errorf("run %s: build %s: %w", runID, puzzleID, err)
	}
	for i, e := range entries {
		if want := uint64(i + 1); e.Seq != want {
			return 0, fmt.Errorf("run %s: seq mismatch: want=%d got=%d", runID, want, e.Seq)
		}
		if e.PuzzleID != puzzleID {
			return 0, fmt.Errorf("run %s: puzzle changed mid-run: %s -> %s", runID, puzzleID, e.PuzzleID)
		}
		dir, ok := engine.ParseDirection(e.Direction)
		if !ok {
			return 0, fmt.Errorf("run %s seq %d: bad direction %q", runID, e.Seq, e.Direction)
		}
		id, err := w.Resolve(e.Entity)
		if err != nil {
			return 0, fmt.Errorf("run %s seq %d: resolve %s: %w", runID, e.Seq, e.Entity, err)
		}
		out, err := w.Push(id, dir)
		if err != nil {
			return 0, fmt.Errorf("run %s seq %d: push: %w", runID, e.Seq, err)
		}
		if out.String() != e.Outcome {
			return 0, fmt.Errorf("run %s seq %d: outcome mismatch: got=%s want=%s", runID, e.Seq, out, e.Outcome)
		}
		if got := w.Digest(); got != e.Digest {
			return 0, fmt.Errorf("run %s seq %d: digest mismatch: got=%s want=%s", runID, e.Seq, got, e.Digest)
		}
	}
	fmt.Printf("run %s: puzzle=%s pushes=%d ok\n", runID, puzzleID, len(entries))
	return len(entries), nil
}
