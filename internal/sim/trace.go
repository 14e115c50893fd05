package sim

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/zeusync/sentry/internal/core/npc"
)

// TraceEntry is one line of a trace: the transitions and effects of a tick.
type TraceEntry struct {
	Tick        int              `json:"tick"`
	At          time.Time        `json:"at"`
	Transitions []npc.Transition `json:"transitions,omitempty"`
	Effects     []npc.Effect     `json:"effects,omitempty"`
	Alerts      []npc.Alert      `json:"alerts,omitempty"`
}

// TraceRecorder writes zstd-compressed JSONL. Quiet ticks are skipped.
type TraceRecorder struct {
	mu    sync.Mutex
	f     io.Closer
	enc   *zstd.Encoder
	w     *bufio.Writer
	lines int
}

// CreateTrace creates (or truncates) a trace file at path.
func CreateTrace(path string) (*TraceRecorder, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	t, err := NewTraceRecorder(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	t.f = f
	return t, nil
}

// NewTraceRecorder writes to w. Closing the recorder does not close w.
func NewTraceRecorder(w io.Writer) (*TraceRecorder, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return &TraceRecorder{enc: enc, w: bufio.NewWriterSize(enc, 128*1024)}, nil
}

func (t *TraceRecorder) Observe(f Frame) error {
	if len(f.Transitions) == 0 && len(f.Effects) == 0 && len(f.Alerts) == 0 {
		return nil
	}
	return t.Write(TraceEntry{Tick: f.Tick, At: f.At, Transitions: f.Transitions, Effects: f.Effects, Alerts: f.Alerts})
}

func (t *TraceRecorder) Write(e TraceEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return os.ErrClosed
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := t.w.Write(b); err != nil {
		return err
	}
	if err := t.w.WriteByte('\n'); err != nil {
		return err
	}
	t.lines++
	return nil
}

// Lines is the number of entries written.
func (t *TraceRecorder) Lines() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lines
}

// Close flushes the stream and finishes the zstd frame.
func (t *TraceRecorder) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return nil
	}
	errFlush := t.w.Flush()
	errEnc := t.enc.Close()
	var errFile error
	if t.f != nil {
		errFile = t.f.Close()
	}
	t.w, t.enc, t.f = nil, nil, nil
	return errors.Join(errFlush, errEnc, errFile)
}

// ReadTrace decodes a whole trace stream.
func ReadTrace(r io.Reader) ([]TraceEntry, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []TraceEntry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e TraceEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
