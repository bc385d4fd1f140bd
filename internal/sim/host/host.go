// Package host drives one session at a fixed tick rate and owns the
// boundary between the single-threaded simulation and its clients:
// inputs come in over a channel, state frames fan out to subscribers.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	stdlog "log"
	"time"

	flog "plantcourier.game/internal/persistence/log"
	"plantcourier.game/internal/persistence/scoredb"
	"plantcourier.game/internal/protocol"
	"plantcourier.game/internal/sim/geom"
	"plantcourier.game/internal/sim/session"
)

// Envelope carries one client input into the loop. Reply, if set,
// receives exactly one RESULT.
type Envelope struct {
	Msg   protocol.InputMsg
	Reply chan protocol.ResultMsg
}

// Config is the host-level setup for one run.
type Config struct {
	TickRateHz int
	MapID      string
	MapName    string
	MapDigest  string
	Seed       int64
}

// Host owns the session loop. All session access happens on the Run
// goroutine.
type Host struct {
	cfg    Config
	sess   *session.Session
	logw   *flog.Writer
	db     *scoredb.DB
	logger *stdlog.Logger

	inbox  chan Envelope
	attach chan chan []byte
	detach chan chan []byte
	subs   map[chan []byte]struct{}

	// done closes when Run returns so boundary calls never block
	// against a stopped loop.
	done chan struct{}

	recorded bool
}

// New wires a host around a session. Frame log and score DB are
// optional; a nil logger discards log output.
func New(cfg Config, sess *session.Session, logw *flog.Writer, db *scoredb.DB, logger *stdlog.Logger) *Host {
	if logger == nil {
		logger = stdlog.New(discard{}, "", 0)
	}
	return &Host{
		cfg:    cfg,
		sess:   sess,
		logw:   logw,
		db:     db,
		logger: logger,
		inbox:  make(chan Envelope, 64),
		attach: make(chan chan []byte, 4),
		detach: make(chan chan []byte, 4),
		subs:   map[chan []byte]struct{}{},
		done:   make(chan struct{}),
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Inbox accepts client inputs.
func (h *Host) Inbox() chan<- Envelope { return h.inbox }

// Done closes when the loop has stopped.
func (h *Host) Done() <-chan struct{} { return h.done }

// Attach subscribes a frame stream. The channel receives marshaled
// STATE messages; slow subscribers drop frames rather than block the
// loop. A no-op once the loop has stopped.
func (h *Host) Attach(ch chan []byte) {
	select {
	case h.attach <- ch:
	case <-h.done:
	}
}

// Detach removes a subscriber. A no-op once the loop has stopped.
func (h *Host) Detach(ch chan []byte) {
	select {
	case h.detach <- ch:
	case <-h.done:
	}
}

// Run steps the session until ctx is canceled. Each tick drains
// pending inputs, advances the clock by the fixed dt, logs the frame,
// and broadcasts state.
func (h *Host) Run(ctx context.Context) error {
	defer close(h.done)

	dt := 1.0 / float64(h.cfg.TickRateHz)
	ticker := time.NewTicker(time.Second / time.Duration(h.cfg.TickRateHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch := <-h.attach:
			h.subs[ch] = struct{}{}
		case ch := <-h.detach:
			delete(h.subs, ch)
			close(ch)
		case <-ticker.C:
			h.step(dt)
		}
	}
}

func (h *Host) step(dt float64) {
	var inputs []protocol.InputMsg

	// Drain everything queued since the last tick; apply in arrival
	// order before time advances.
drain:
	for {
		select {
		case env := <-h.inbox:
			inputs = append(inputs, env.Msg)
			res := h.applyInput(env.Msg)
			if env.Reply != nil {
				select {
				case env.Reply <- res:
				default:
				}
			}
		default:
			break drain
		}
	}

	frame := h.sess.Advance(dt)

	if h.logw != nil {
		rec := flog.TickRecord{
			Tick:   frame.Tick,
			DT:     dt,
			Inputs: inputs,
			Events: frame.Events,
			Digest: h.sess.Digest(),
		}
		if err := h.logw.WriteTick(rec); err != nil {
			h.logger.Printf("frame log write failed: %v", err)
			h.logw = nil
		}
	}

	b, err := json.Marshal(protocol.StateMsg{Type: protocol.TypeState, Frame: frame})
	if err == nil {
		for ch := range h.subs {
			select {
			case ch <- b:
			default:
			}
		}
	}

	if (frame.Status == session.StatusWon || frame.Status == session.StatusStalled) && !h.recorded {
		h.recorded = true
		h.recordOutcome(frame)
	}
}

func (h *Host) applyInput(msg protocol.InputMsg) protocol.ResultMsg {
	res := protocol.ResultMsg{Type: protocol.TypeResult, Seq: msg.Seq}
	cmd, err := CommandFromInput(msg)
	if err != nil {
		res.Code = protocol.ErrProtoBadRequest
		res.Message = err.Error()
		return res
	}
	if err := h.sess.Apply(cmd); err != nil {
		res.Code = protocol.CodeFor(err)
		res.Message = err.Error()
		return res
	}
	res.OK = true
	return res
}

func (h *Host) recordOutcome(frame session.Frame) {
	h.logger.Printf("session %s finished: status=%s orders=%d plants=%d score=%d",
		h.sess.ID, frame.Status, frame.CompletedCount, frame.PlantsDelivered, frame.Score)
	if h.db == nil {
		return
	}
	row := scoredb.SessionRow{
		SessionID:       h.sess.ID,
		MapID:           h.cfg.MapID,
		MapDigest:       h.cfg.MapDigest,
		Seed:            h.cfg.Seed,
		Status:          string(frame.Status),
		Ticks:           frame.Tick,
		PlaySeconds:     frame.Now,
		OrdersCompleted: frame.CompletedCount,
		PlantsDelivered: frame.PlantsDelivered,
		Score:           frame.Score,
	}
	if err := h.db.RecordSession(row, h.sess.Scores().Orders()); err != nil {
		h.logger.Printf("score db write failed: %v", err)
	}
}

// CommandFromInput converts a wire input into a session command.
// Exactly one command field must be set.
func CommandFromInput(msg protocol.InputMsg) (session.Command, error) {
	var cmd session.Command
	set := 0
	if msg.Move != nil {
		cmd.Move = &geom.Point{X: msg.Move.X, Y: msg.Move.Y}
		set++
	}
	if msg.Zoom != nil {
		cmd.Zoom = msg.Zoom
		set++
	}
	if msg.Accept != "" {
		cmd.Accept = msg.Accept
		set++
	}
	if msg.Deliver != nil {
		cmd.Deliver = &session.DeliverCmd{
			OrderID: msg.Deliver.OrderID,
			Plant:   msg.Deliver.Plant,
			Qty:     msg.Deliver.Qty,
		}
		set++
	}
	if set != 1 {
		return session.Command{}, fmt.Errorf("input must set exactly one command, got %d", set)
	}
	return cmd, nil
}
