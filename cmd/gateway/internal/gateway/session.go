package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/showmarket/pkg/models"
)

const (
	maxMessageSize = 512 * 1024
)

type State int32

const (
	StateJoin State = iota
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateJoin:
		return "join"
	case StateStreaming:
		return "streaming"
	default:
		return "closed"
	}
}

// Session streams hub ticks to one websocket peer. The peer only ever receives; inbound
// data frames are drained, pings are answered.
type Session struct {
	conn   net.Conn
	source hub.Source
	logger *zap.Logger
	now    func() time.Time
	state  atomic.Int32
	// pings carries ping payloads from the reader to the writer
	pings chan []byte

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewSession(conn net.Conn, source hub.Source, logger *zap.Logger) *Session {
	return &Session{
		conn:       conn,
		source:     source,
		logger:     logger.With(zap.String("peer", conn.RemoteAddr().String())),
		now:        time.Now,
		pings:      make(chan []byte, 1),
		writeWait:  5 * time.Second,
		pongWait:   60 * time.Second,
		pingPeriod: 50 * time.Second,
	}
}

func (s *Session) State() State { return State(s.state.Load()) }

// Serve runs the session until the peer goes away, a send fails, or ctx is done. The
// subscription and the connection are always released on return.
func (s *Session) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	snapshot, ok, sub := s.source.Join()
	defer func() {
		s.state.Store(int32(StateClosed))
		sub.Close()
		s.conn.Close()
		s.logger.Debug("Session closed")
	}()

	go s.readPump(cancel)

	if ok {
		if err := s.writeTick(snapshot); err != nil {
			s.logger.Debug("Snapshot send failed", zap.Error(err))
			return
		}
	}
	s.state.Store(int32(StateStreaming))

	ticks := make(chan models.PriceTick)
	go s.forward(ctx, sub, ticks)

	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			s.conn.Write(ws.CompiledClose)
			return

		case tick, ok := <-ticks:
			if !ok {
				return
			}
			if err := s.writeTick(tick); err != nil {
				s.logger.Debug("Send failed", zap.Error(err))
				return
			}

		case payload := <-s.pings:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := wsutil.WriteServerMessage(s.conn, ws.OpPong, payload); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := wsutil.WriteServerMessage(s.conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}

// forward moves ticks from the subscription to the writer. Lag is skipped.
func (s *Session) forward(ctx context.Context, sub *hub.Subscription, out chan<- models.PriceTick) {
	defer close(out)
	for {
		tick, err := sub.Recv(ctx)
		if err != nil {
			if hub.IsLagged(err) {
				s.logger.Debug("Subscriber lagging", zap.Error(err))
				continue
			}
			return
		}
		select {
		case out <- tick:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) writeTick(tick models.PriceTick) error {
	msg, err := json.Marshal(protocol.NewTickMessage(tick, s.now().UnixMilli()))
	if err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
	return wsutil.WriteServerText(s.conn, msg)
}

// readPump watches the peer and cancels the session when it closes, stops answering pings,
// or sends a message larger than maxMessageSize (summed over its fragments).
func (s *Session) readPump(cancel context.CancelFunc) {
	defer cancel()

	s.conn.SetReadDeadline(time.Now().Add(s.pongWait))

	var messageSize int64
	for {
		header, err := ws.ReadHeader(s.conn)
		if err != nil {
			return
		}

		if header.OpCode.IsControl() {
			payload := make([]byte, header.Length)
			if _, err := io.ReadFull(s.conn, payload); err != nil {
				return
			}
			if header.Masked {
				ws.Cipher(payload, header.Mask, 0)
			}

			switch header.OpCode {
			case ws.OpClose:
				return
			case ws.OpPong:
				s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
			case ws.OpPing:
				select {
				case s.pings <- payload:
				default:
				}
			}
			continue
		}

		messageSize += header.Length
		if messageSize > int64(maxMessageSize) {
			s.logger.Warn("Msg too big", zap.Int64("size", messageSize))
			return
		}
		if _, err := io.CopyN(io.Discard, s.conn, header.Length); err != nil {
			return
		}
		if header.Fin {
			messageSize = 0
		}
	}
}
