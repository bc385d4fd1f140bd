package log

import (
	"errors"
	"io"
	"testing"

	"plantcourier.game/internal/protocol"
	"plantcourier.game/internal/sim/orders"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	hdr := Header{
		SessionID:  "s1",
		MapID:      "map1",
		MapDigest:  "abc123",
		Seed:       1337,
		TickRateHz: 30,
	}

	w, err := NewWriter(dir, hdr)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	zoom := 2.0
	recs := []TickRecord{
		{Tick: 1, DT: 1.0 / 30, Digest: "d1"},
		{Tick: 2, DT: 1.0 / 30, Digest: "d2",
			Inputs: []protocol.InputMsg{{Type: protocol.TypeInput, Seq: 7, Zoom: &zoom}},
			Events: []orders.Event{{Type: orders.EventBatchScheduled, At: 0.066}}},
	}
	for _, rec := range recs {
		if err := w.WriteTick(rec); err != nil {
			t.Fatalf("write tick %d: %v", rec.Tick, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	r, gotHdr, err := OpenReader(Path(dir, "s1"))
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	if gotHdr.SessionID != "s1" || gotHdr.MapDigest != "abc123" || gotHdr.Seed != 1337 {
		t.Fatalf("header: %+v", gotHdr)
	}
	if gotHdr.RecordedAt == "" {
		t.Fatal("recorded_at not stamped")
	}

	for i, want := range recs {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if got.Tick != want.Tick || got.Digest != want.Digest {
			t.Fatalf("record %d: got %+v", i, got)
		}
		if got.Kind != KindTick {
			t.Fatalf("record %d kind: %q", i, got.Kind)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("after last record: got %v, want io.EOF", err)
	}
}

func TestRoundTrip_PreservesInputs(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, Header{SessionID: "s2", TickRateHz: 30})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	in := protocol.InputMsg{
		Type: protocol.TypeInput,
		Seq:  3,
		Deliver: &protocol.DeliverMsg{
			OrderID: "kielo_1", Plant: "saintpaulia.png", Qty: 2,
		},
	}
	if err := w.WriteTick(TickRecord{Tick: 1, DT: 0.1, Inputs: []protocol.InputMsg{in}, Digest: "d"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, _, err := OpenReader(Path(dir, "s2"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	rec, err := r.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if len(rec.Inputs) != 1 {
		t.Fatalf("inputs: %+v", rec.Inputs)
	}
	got := rec.Inputs[0]
	if got.Seq != 3 || got.Deliver == nil || got.Deliver.OrderID != "kielo_1" || got.Deliver.Qty != 2 {
		t.Fatalf("input: %+v", got)
	}
}

func TestOpenReader_RejectsHeaderlessFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, Header{SessionID: "s3", TickRateHz: 30})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// A valid log with zero ticks still opens; only a missing or
	// malformed header is fatal.
	r, hdr, err := OpenReader(Path(dir, "s3"))
	if err != nil {
		t.Fatalf("open empty log: %v", err)
	}
	defer r.Close()
	if hdr.SessionID != "s3" {
		t.Fatalf("header: %+v", hdr)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("empty log next: got %v, want io.EOF", err)
	}
}
