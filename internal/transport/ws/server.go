// Package ws is the websocket boundary between the simulation host
// and the rendering client: HELLO/WELCOME handshake, INPUT messages
// in, STATE and RESULT messages out.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"plantcourier.game/internal/protocol"
	"plantcourier.game/internal/sim/host"
)

type Server struct {
	host    *host.Host
	welcome protocol.WelcomeMsg
	log     *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(h *host.Host, welcome protocol.WelcomeMsg, logger *log.Logger) *Server {
	s := &Server{
		host:    h,
		welcome: welcome,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if !s.handshake(conn) {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		frames := make(chan []byte, 8)
		s.host.Attach(frames)
		defer s.host.Detach(frames)

		results := make(chan protocol.ResultMsg, 16)

		// Writer goroutine: frames and command results share the
		// connection.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-frames:
					if !ok {
						return
					}
					if s.writeRaw(conn, b) != nil {
						cancel()
						return
					}
				case res := <-results:
					b, err := json.Marshal(res)
					if err != nil {
						continue
					}
					if s.writeRaw(conn, b) != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeInput {
				continue
			}
			var input protocol.InputMsg
			if err := json.Unmarshal(msg, &input); err != nil {
				continue
			}
			if input.ProtocolVersion != protocol.Version {
				continue
			}
			// Never block against a full inbox or a stopped loop.
			select {
			case s.host.Inbox() <- host.Envelope{Msg: input, Reply: results}:
			case <-s.host.Done():
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Server) writeRaw(conn *websocket.Conn, b []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) handshake(conn *websocket.Conn) bool {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return false
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"),
			time.Now().Add(time.Second))
		return false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "protocol version mismatch"),
			time.Now().Add(time.Second))
		return false
	}

	b, err := json.Marshal(s.welcome)
	if err != nil {
		return false
	}
	if s.writeRaw(conn, b) != nil {
		return false
	}
	if s.log != nil {
		s.log.Printf("client connected: %q", hello.PlayerName)
	}
	return true
}
