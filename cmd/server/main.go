package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"nestbox.dev/internal/persistence/indexdb"
	"nestbox.dev/internal/persistence/tracelog"
	"nestbox.dev/internal/puzzles"
	"nestbox.dev/internal/transport/ws"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		manifestPath = flag.String("puzzles", "./configs/puzzles.yaml", "puzzle manifest path (built-in set if missing)")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		disableDB    = flag.Bool("disable_db", false, "disable the run index (trace logs are still written)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	manifest := strings.TrimSpace(*manifestPath)
	if manifest != "" {
		if _, err := os.Stat(manifest); os.IsNotExist(err) {
			logger.Printf("manifest %s not found; using built-in puzzles", manifest)
			manifest = ""
		}
	}
	cfg, err := puzzles.Load(manifest)
	if err != nil {
		logger.Fatalf("load puzzles: %v", err)
	}
	cat, err := puzzles.Open(cfg)
	if err != nil {
		logger.Fatalf("open catalog: %v", err)
	}
	logger.Printf("catalog: %d puzzles", len(cat.Specs()))

	// Optional: run index (does not affect push resolution).
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.sqlite"))
		if err != nil {
			logger.Fatalf("open run index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertPuzzles(cat); err != nil {
			logger.Printf("run index: upsert puzzles: %v", err)
		}
	} else {
		logger.Printf("run index disabled (-disable_db)")
	}

	traces := tracelog.NewPushWriter(*dataDir)
	defer traces.Close()

	ctx, cancel := signalContext()
	defer cancel()

	wsSrv := ws.NewServer(cat, ws.Options{Traces: traces, Index: idx}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthzHandler())
	mux.HandleFunc("/metrics", metricsHandler(wsSrv, cat))
	if envBool("NB_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (NB_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func healthzHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	}
}

func metricsHandler(srv *ws.Server, cat *puzzles.Catalog) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := srv.Metrics()

		// Prometheus text format, no client library.
		fmt.Fprintf(rw, "# HELP nestbox_sessions Currently connected sessions.\n")
		fmt.Fprintf(rw, "# TYPE nestbox_sessions gauge\n")
		fmt.Fprintf(rw, "nestbox_sessions %d\n", m.Sessions)

		fmt.Fprintf(rw, "# HELP nestbox_puzzles Puzzles in the served catalog.\n")
		fmt.Fprintf(rw, "# TYPE nestbox_puzzles gauge\n")
		fmt.Fprintf(rw, "nestbox_puzzles %d\n", len(cat.Specs()))

		fmt.Fprintf(rw, "# HELP nestbox_joins_total Total runs started by JOIN.\n")
		fmt.Fprintf(rw, "# TYPE nestbox_joins_total counter\n")
		fmt.Fprintf(rw, "nestbox_joins_total %d\n", m.Joins)

		fmt.Fprintf(rw, "# HELP nestbox_pushes_total Total pushes resolved, by outcome.\n")
		fmt.Fprintf(rw, "# TYPE nestbox_pushes_total counter\n")
		fmt.Fprintf(rw, "nestbox_pushes_total{outcome=%q} %d\n", "moved", m.Moved)
		fmt.Fprintf(rw, "nestbox_pushes_total{outcome=%q} %d\n", "blocked", m.Blocked)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
