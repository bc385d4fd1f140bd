package host

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"plantcourier.game/internal/protocol"
	"plantcourier.game/internal/sim/catalogs"
	"plantcourier.game/internal/sim/session"
	"plantcourier.game/internal/sim/tuning"
)

func newTestHost(t *testing.T) *Host {
	t.Helper()
	cats, err := catalogs.Load("../../../configs/maps/map1", "../../../schemas")
	if err != nil {
		t.Fatalf("load map: %v", err)
	}
	sess := session.New("s1", cats, tuning.Default(), 1)
	cfg := Config{TickRateHz: 30, MapID: "map1", MapName: "Kotikylä", MapDigest: cats.Digest, Seed: 1}
	return New(cfg, sess, nil, nil, nil)
}

func TestCommandFromInput_ExactlyOneField(t *testing.T) {
	zoom := 2.0

	if _, err := CommandFromInput(protocol.InputMsg{}); err == nil {
		t.Fatal("empty input accepted")
	}
	two := protocol.InputMsg{Zoom: &zoom, Accept: "kielo_1"}
	if _, err := CommandFromInput(two); err == nil {
		t.Fatal("two-field input accepted")
	}

	cmd, err := CommandFromInput(protocol.InputMsg{Move: &protocol.PointMsg{X: 10, Y: 20}})
	if err != nil {
		t.Fatalf("move input: %v", err)
	}
	if cmd.Move == nil || cmd.Move.X != 10 || cmd.Move.Y != 20 {
		t.Fatalf("move command: %+v", cmd)
	}

	cmd, err = CommandFromInput(protocol.InputMsg{Deliver: &protocol.DeliverMsg{OrderID: "o", Plant: "p", Qty: 3}})
	if err != nil {
		t.Fatalf("deliver input: %v", err)
	}
	if cmd.Deliver == nil || cmd.Deliver.Qty != 3 {
		t.Fatalf("deliver command: %+v", cmd)
	}
}

func TestStep_RepliesAndBroadcasts(t *testing.T) {
	h := newTestHost(t)

	sub := make(chan []byte, 4)
	h.subs[sub] = struct{}{}

	zoom := 3.0
	reply := make(chan protocol.ResultMsg, 1)
	h.inbox <- Envelope{Msg: protocol.InputMsg{Type: protocol.TypeInput, Seq: 11, Zoom: &zoom}, Reply: reply}

	h.step(1.0 / 30)

	res := <-reply
	if !res.OK || res.Seq != 11 || res.Code != "" {
		t.Fatalf("result: %+v", res)
	}

	raw := <-sub
	var state protocol.StateMsg
	if err := json.Unmarshal(raw, &state); err != nil {
		t.Fatalf("state unmarshal: %v", err)
	}
	if state.Type != protocol.TypeState || state.Frame.Tick != 1 {
		t.Fatalf("state: type=%s tick=%d", state.Type, state.Frame.Tick)
	}
	if state.Frame.Camera.Zoom != 3 {
		t.Fatalf("zoom not applied: %v", state.Frame.Camera.Zoom)
	}
}

func TestStep_RejectionsCarryCodes(t *testing.T) {
	h := newTestHost(t)

	reply := make(chan protocol.ResultMsg, 1)
	h.inbox <- Envelope{
		Msg:   protocol.InputMsg{Type: protocol.TypeInput, Seq: 5, Accept: "no_such_order"},
		Reply: reply,
	}
	h.step(1.0 / 30)

	res := <-reply
	if res.OK {
		t.Fatal("accept of unknown order succeeded")
	}
	if res.Code != protocol.ErrUnknownOrder || res.Seq != 5 {
		t.Fatalf("result: %+v", res)
	}
	if !protocol.IsKnownCode(res.Code) {
		t.Fatalf("code %q not known", res.Code)
	}
}

func TestStep_MalformedInputIsProtocolError(t *testing.T) {
	h := newTestHost(t)

	reply := make(chan protocol.ResultMsg, 1)
	h.inbox <- Envelope{Msg: protocol.InputMsg{Type: protocol.TypeInput, Seq: 9}, Reply: reply}
	h.step(1.0 / 30)

	res := <-reply
	if res.OK || res.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("result: %+v", res)
	}
}

// Attach and Detach must not hang a connection goroutine once the
// loop has exited.
func TestAttachDetach_AfterRunStops(t *testing.T) {
	h := newTestHost(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("run: %v", err)
	}

	select {
	case <-h.Done():
	default:
		t.Fatal("done not closed after Run returned")
	}

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ch := make(chan []byte, 1)
		h.Attach(ch)
		h.Detach(ch)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("attach/detach blocked against a stopped loop")
	}
}

func TestStep_SlowSubscriberDropsFrames(t *testing.T) {
	h := newTestHost(t)

	full := make(chan []byte) // unbuffered, never read
	h.subs[full] = struct{}{}

	// Must not block the loop.
	h.step(1.0 / 30)
	h.step(1.0 / 30)
}
