package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/DoyleJ11/second-law-lobby/internal/coordinator"
	"github.com/DoyleJ11/second-law-lobby/internal/protocol"
)

type Options struct {
	// ReadTimeout bounds the silence allowed between inbound frames.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// PingInterval is the server-side keepalive; zero disables it.
	PingInterval   time.Duration
	OutboxSize     int
	OriginPatterns []string
}

func DefaultOptions() Options {
	return Options{
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 3 * time.Second,
		PingInterval: 25 * time.Second,
		OutboxSize:   32,
	}
}

// Handler upgrades to a websocket and bridges it to the coordinator. Each
// connection gets a fresh identity; its close is reported as a Disconnect.
func Handler(c *coordinator.Coordinator, opts Options, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		clog := log.With(zap.String("conn", connID))
		out := make(chan protocol.Message, opts.OutboxSize)

		if !post(c, coordinator.Connect{ConnID: connID, Outbox: out}) {
			conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		}
		defer post(c, coordinator.Disconnect{ConnID: connID})
		clog.Debug("connected", zap.String("remote", r.RemoteAddr))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine
		go func() {
			defer cancel()
			for m := range out {
				if err := write(ctx, conn, m, opts.WriteTimeout); err != nil {
					clog.Debug("write failed", zap.Error(err))
					return
				}
			}
			// Outbox closed: dropped as slow, or shutting down.
			conn.Close(websocket.StatusGoingAway, "closing")
		}()

		if opts.PingInterval > 0 {
			go keepalive(ctx, conn, opts.PingInterval, opts.WriteTimeout, clog)
		}

		// Reader loop
		for {
			rctx, rcancel := context.WithTimeout(ctx, opts.ReadTimeout)
			_, data, err := conn.Read(rctx)
			rcancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					clog.Debug("closed by peer")
				default:
					clog.Debug("read ended", zap.Error(err))
				}
				return
			}

			m, err := protocol.DecodeInbound(data)
			if err != nil {
				clog.Info("undecodable frame", zap.Error(err))
				if werr := write(ctx, conn, protocol.ErrorMessage(err), opts.WriteTimeout); werr != nil {
					return
				}
				continue
			}

			if !post(c, coordinator.FromClient{ConnID: connID, Msg: m}) {
				return
			}
		}
	}
}

// post gives up once the coordinator has shut down.
func post(c *coordinator.Coordinator, m coordinator.Msg) bool {
	select {
	case c.Inbox() <- m:
		return true
	case <-c.Done():
		return false
	}
}

func write(ctx context.Context, conn *websocket.Conn, m protocol.Message, timeout time.Duration) error {
	payload, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

func keepalive(ctx context.Context, conn *websocket.Conn, every, timeout time.Duration, log *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, timeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Debug("ping failed", zap.Error(err))
				}
				conn.Close(websocket.StatusPolicyViolation, "ping timeout")
				return
			}
		}
	}
}
