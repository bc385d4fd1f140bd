// Package log persists one session's tick stream as zstd-compressed
// JSONL. The stream is the input to cmd/replay: it carries the seed,
// every applied input, and a digest per tick to verify against.
package log

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

	"plantcourier.game/internal/protocol"
	"plantcourier.game/internal/sim/orders"
)

// Record kinds.
const (
	KindHeader = "header"
	KindTick   = "tick"
)

// Header is the first record of a session log.
type Header struct {
	Kind       string `json:"kind"`
	SessionID  string `json:"session_id"`
	MapID      string `json:"map_id"`
	MapDigest  string `json:"map_digest"`
	Seed       int64  `json:"seed"`
	TickRateHz int    `json:"tick_rate_hz"`
	RecordedAt string `json:"recorded_at"`
}

// TickRecord is one simulation frame: the inputs applied before the
// tick, the elapsed time, and the resulting state digest.
type TickRecord struct {
	Kind   string              `json:"kind"`
	Tick   uint64              `json:"tick"`
	DT     float64             `json:"dt"`
	Inputs []protocol.InputMsg `json:"inputs,omitempty"`
	Events []orders.Event      `json:"events,omitempty"`
	Digest string              `json:"digest"`
}

// Writer appends session records to <dir>/<session>.jsonl.zst.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// NewWriter creates the log file and writes the header.
func NewWriter(dir string, hdr Header) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(Path(dir, hdr.SessionID), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w := &Writer{f: f, enc: enc, w: bufio.NewWriterSize(enc, 64*1024)}
	hdr.Kind = KindHeader
	if hdr.RecordedAt == "" {
		hdr.RecordedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if err := w.write(hdr); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

// Path returns the log file path for a session id.
func Path(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+".jsonl.zst")
}

// WriteTick appends one tick record.
func (w *Writer) WriteTick(rec TickRecord) error {
	rec.Kind = KindTick
	return w.write(rec)
}

func (w *Writer) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Close flushes and closes the log.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		return err
	}
	if err := w.enc.Close(); err != nil {
		return err
	}
	return w.f.Close()
}

// Reader decodes a session log sequentially.
type Reader struct {
	f   *os.File
	dec *zstd.Decoder
	sc  *bufio.Scanner
}

// OpenReader opens a log and consumes its header.
func OpenReader(path string) (*Reader, Header, error) {
	var hdr Header
	f, err := os.Open(path)
	if err != nil {
		return nil, hdr, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, hdr, err
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !sc.Scan() {
		_ = f.Close()
		return nil, hdr, errors.New("session log is empty")
	}
	if err := json.Unmarshal(sc.Bytes(), &hdr); err != nil || hdr.Kind != KindHeader {
		_ = f.Close()
		return nil, hdr, errors.New("session log has no header")
	}
	return &Reader{f: f, dec: dec, sc: sc}, hdr, nil
}

// Next returns the next tick record, or io.EOF at the end.
func (r *Reader) Next() (TickRecord, error) {
	var rec TickRecord
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return rec, err
		}
		return rec, io.EOF
	}
	if err := json.Unmarshal(r.sc.Bytes(), &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// Close releases the decoder and file.
func (r *Reader) Close() error {
	r.dec.Close()
	return r.f.Close()
}
