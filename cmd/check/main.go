package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"nestbox.dev/internal/engine"
	"nestbox.dev/internal/persistence/indexdb"
	"nestbox.dev/internal/persistence/tracelog"
	"nestbox.dev/internal/script"
	"nestbox.dev/internal/textgrid"
)

func main() {
	var (
		render   = flag.Bool("render", false, "render each scenario's final world")
		traceDir = flag.String("trace", "", "data directory for push trace logs (optional)")
		dbPath   = flag.String("db", "", "run index database path (optional)")
		verbose  = flag.Bool("v", false, "print each statement as it executes")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: check [flags] scenario.box|dir ...")
		os.Exit(2)
	}
	paths, err := collectScenarios(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "collect scenarios:", err)
		os.Exit(2)
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "no .box scenarios found")
		os.Exit(2)
	}

	var idx *indexdb.SQLiteIndex
	if strings.TrimSpace(*dbPath) != "" {
		idx, err = indexdb.OpenSQLite(*dbPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open run index:", err)
			os.Exit(2)
		}
	}

	failed := 0
	for _, path := range paths {
		if err := checkFile(path, *render, *traceDir, idx, *verbose); err != nil {
			failed++
			fmt.Printf("FAIL %s\n", path)
			var se *script.Error
			if errors.As(err, &se) {
				fmt.Print(se.Render())
			} else {
				fmt.Println(err)
			}
		} else {
			fmt.Printf("PASS %s\n", path)
		}
	}
	fmt.Printf("%d scenarios, %d failed\n", len(paths), failed)
	// Close flushes the index's batched writes; os.Exit skips defers.
	if idx != nil {
		_ = idx.Close()
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// collectScenarios expands directory arguments one level deep, keeping
// each directory's .box files in name order.
func collectScenarios(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			out = append(out, arg)
			continue
		}
		ents, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(ents))
		for _, e := range ents {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".box") {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			out = append(out, filepath.Join(arg, name))
		}
	}
	return out, nil
}

func checkFile(path string, render bool, traceDir string, idx *indexdb.SQLiteIndex, verbose bool) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cmds, err := script.Parse(filepath.Base(path), src)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Printf("%s: %s\n", path, script.Summary(cmds))
	}

	scenarioID := strings.TrimSuffix(filepath.Base(path), ".box")
	runID := uuid.NewString()
	sum := sha256.Sum256(src)
	scriptSHA := hex.EncodeToString(sum[:])

	var sink multiTraceSink
	var traces *tracelog.PushLogger
	if strings.TrimSpace(traceDir) != "" {
		traces = tracelog.NewPushLogger(traceDir, runID, scenarioID, "check")
		defer traces.Close()
		sink.a = traces.Sink(func(err error) {
			fmt.Fprintln(os.Stderr, "trace:", err)
		})
	}
	if idx != nil {
		_ = idx.StartRun(indexdb.RunStart{
			RunID:     runID,
			PuzzleID:  scenarioID,
			Source:    "check",
			ScriptSHA: scriptSHA,
			StartedAt: time.Now().UTC(),
		})
		sink.b = engine.TraceFunc(func(tr engine.PushTrace) {
			_ = idx.RecordPush(runID, tr)
		})
	}

	r := script.NewRunner(cmds)
	if sink.a != nil || sink.b != nil {
		r.World.SetTraceSink(sink)
	}

	var runErr error
	for !r.Done() {
		cmd, err := r.Step()
		if verbose {
			fmt.Printf("  %s\n", cmd)
		}
		if err != nil {
			runErr = err
			break
		}
	}

	if idx != nil {
		status := "pass"
		if runErr != nil {
			status = "fail"
		}
		idx.FinishRun(runID, status)
	}
	if render {
		fmt.Print(textgrid.Render(r.World, textgrid.Options{}))
	}
	return runErr
}

type multiTraceSink struct {
	a engine.TraceSink
	b engine.TraceSink
}

func (m multiTraceSink) RecordPush(t engine.PushTrace) {
	if m.a != nil {
		m.a.RecordPush(t)
	}
	if m.b != nil {
		m.b.RecordPush(t)
	}
}
