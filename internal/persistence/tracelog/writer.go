package tracelog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"nestbox.dev/internal/engine"
)

// JSONLZstdWriter appends JSON lines to hourly-rotated zstd files. Safe
// for concurrent use.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// Entry is one recorded push with its run context. The embedded trace
// fields flatten into the same JSON object.
type Entry struct {
	RunID    string    `json:"run_id"`
	PuzzleID string    `json:"puzzle_id"`
	Source   string    `json:"source,omitempty"`
	At       time.Time `json:"at"`

	engine.PushTrace
}

// NewPushWriter opens the hourly push trace writer under dataDir. Every
// recorder in a process shares one writer; entries carry their run id.
func NewPushWriter(dataDir string) *JSONLZstdWriter {
	return NewJSONLZstdWriter(filepath.Join(dataDir, "traces"), "pushes")
}

// PushLogger writes one compressed JSONL entry per resolved push.
type PushLogger struct {
	runID    string
	puzzleID string
	source   string
	w        *JSONLZstdWriter
}

func NewPushLogger(dataDir, runID, puzzleID, source string) *PushLogger {
	return &PushLogger{
		runID:    runID,
		puzzleID: puzzleID,
		source:   source,
		w:        NewPushWriter(dataDir),
	}
}

func (l *PushLogger) Record(t engine.PushTrace) error {
	return l.w.Write(Entry{
		RunID:     l.runID,
		PuzzleID:  l.puzzleID,
		Source:    l.source,
		At:        time.Now().UTC(),
		PushTrace: t,
	})
}

// Sink adapts the logger to engine.TraceSink. Write failures go to
// onErr; the push itself already committed.
func (l *PushLogger) Sink(onErr func(error)) engine.TraceSink {
	return engine.TraceFunc(func(t engine.PushTrace) {
		if err := l.Record(t); err != nil && onErr != nil {
			onErr(err)
		}
	})
}

func (l *PushLogger) Close() error { return l.w.Close() }
