package feed

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shubham-shewale/showmarket/pkg/models"
)

const (
	DefaultConnectRetryDelay = 5 * time.Second
	DefaultReconnectDelay    = 2 * time.Second
	DefaultReadTimeout       = 60 * time.Second

	pongWriteWait = time.Second
)

// Conn is an upstream push connection. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	SetReadDeadline(t time.Time) error
	SetPingHandler(h func(appData string) error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer adapts *websocket.Dialer.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Decoder turns one inbound frame into a tick. ok=false drops the frame.
type Decoder func(frame []byte) (tick models.PriceTick, ok bool)

// StreamerOptions holds the reconnect policy. Delays are constant; there is no retry limit.
type StreamerOptions struct {
	// ConnectRetryDelay is the wait after a failed dial.
	ConnectRetryDelay time.Duration
	// ReconnectDelay is the wait after an established connection ends.
	ReconnectDelay time.Duration
	// ReadTimeout drops a connection that delivers neither frames nor pings for this long.
	// Zero disables it.
	ReadTimeout time.Duration
	// Wait pauses between attempts and reports false once ctx is done. Defaults to a timer.
	Wait func(ctx context.Context, d time.Duration) bool
}

// Streamer keeps one push connection open and publishes every decodable frame.
type Streamer struct {
	name   string
	url    string
	dialer Dialer
	decode Decoder
	opts   StreamerOptions
	logger *zap.Logger
}

func NewStreamer(name, url string, dialer Dialer, decode Decoder, opts StreamerOptions, logger *zap.Logger) *Streamer {
	if opts.Wait == nil {
		opts.Wait = sleepContext
	}
	return &Streamer{
		name:   name,
		url:    url,
		dialer: dialer,
		decode: decode,
		opts:   opts,
		logger: logger.With(zap.String("source", name)),
	}
}

func (s *Streamer) Name() string { return s.name }

// Start dials, consumes, and reconnects until ctx is done.
func (s *Streamer) Start(ctx context.Context, sink Sink) {
	for {
		s.logger.Info("Connecting", zap.String("url", s.url))
		conn, err := s.dialer.Dial(ctx, s.url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("Connect failed", zap.Error(err), zap.Duration("retry_in", s.opts.ConnectRetryDelay))
			if !s.opts.Wait(ctx, s.opts.ConnectRetryDelay) {
				return
			}
			continue
		}

		s.logger.Info("Connected")
		err = s.consume(ctx, conn, sink)
		if ctx.Err() != nil {
			s.logger.Info("Streamer stopped")
			return
		}
		s.logger.Warn("Connection closed", zap.Error(err), zap.Duration("reconnect_in", s.opts.ReconnectDelay))
		if !s.opts.Wait(ctx, s.opts.ReconnectDelay) {
			return
		}
	}
}

// consume reads frames until the connection fails or ctx is done.
func (s *Streamer) consume(ctx context.Context, conn Conn, sink Sink) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	if s.opts.ReadTimeout > 0 {
		conn.SetPingHandler(func(appData string) error {
			conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
			err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(pongWriteWait))
			var netErr net.Error
			if err == websocket.ErrCloseSent || (errors.As(err, &netErr) && netErr.Timeout()) {
				return nil
			}
			return err
		})
	}

	for {
		if s.opts.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		}
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		tick, ok := s.decode(frame)
		if !ok {
			continue
		}
		sink.Publish(tick)
	}
}
