package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/connect-four-backend/internal/engine"
	"github.com/DoyleJ11/connect-four-backend/internal/hub"
	"github.com/DoyleJ11/connect-four-backend/internal/logging"
	"github.com/DoyleJ11/connect-four-backend/internal/metrics"
	"github.com/DoyleJ11/connect-four-backend/internal/room"
	"github.com/DoyleJ11/connect-four-backend/internal/types"
	ptypes "github.com/DoyleJ11/connect-four-backend/pkg/types"
)

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrBadJSON     = errors.New("bad json")
	ErrRateLimited = errors.New("rate limited")
)

// Hub is the part of *hub.Hub a connection talks to.
type Hub interface {
	Inbox() chan<- hub.HubMsg
	Room(id int) *room.Room
}

type Options struct {
	OriginPatterns []string
	Rate           float64
	Burst          int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	OutboxSize     int
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.Rate <= 0 {
		o.Rate = 10
	}
	if o.Burst <= 0 {
		o.Burst = 20
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 32
	}
	o.Logger = logging.OrNop(o.Logger)
	return o
}

// Handler upgrades GET /ws?id=<identity>. A missing or malformed identity is
// replaced by a fresh one, announced in the welcome message.
func Handler(h Hub, opts Options) http.HandlerFunc {
	opts = opts.withDefaults()

	return func(w http.ResponseWriter, r *http.Request) {
		identity := r.URL.Query().Get("id")
		if _, err := uuid.Parse(identity); err != nil {
			identity = uuid.NewString()
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			opts.Logger.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.CloseNow()

		client := types.NewClient(uuid.NewString(), identity, opts.OutboxSize)
		log := opts.Logger.With(zap.String("conn", client.ID), zap.String("identity", identity))
		opts.Metrics.ConnOpened()
		defer opts.Metrics.ConnClosed()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		client.Send(types.ServerMessage{Type: ptypes.MsgWelcome, Identity: identity})
		if err := toHub(ctx, h, hub.Connect{Client: client}); err != nil {
			return
		}
		defer func() {
			// the request context is gone by now
			dctx, dcancel := context.WithTimeout(context.Background(), time.Second)
			defer dcancel()
			if err := toHub(dctx, h, hub.Disconnect{Client: client}); err != nil {
				log.Warn("disconnect not delivered", zap.Error(err))
			}
		}()

		go writePump(ctx, cancel, conn, client, opts)

		limiter := rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst)
		readPump(ctx, conn, h, client, limiter, opts.Metrics)

		log.Debug("connection closed")
		conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

func readPump(ctx context.Context, conn *websocket.Conn, h Hub, c *types.Client, limiter *rate.Limiter, m *metrics.Metrics) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if !limiter.Allow() {
			m.ActionRejected(ErrRateLimited.Error())
			c.Send(types.ErrorMessage(ErrRateLimited))
			continue
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			c.Send(types.ErrorMessage(ErrBadJSON))
			continue
		}
		if err := dispatch(ctx, h, c, cm); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.Send(types.ErrorMessage(err))
		}
	}
}

// writePump owns all writes to conn. Pings keep idle players from being cut
// by proxies; a failed write or ping ends the connection. When the client is
// closed by the hub, queued messages are flushed before the close frame.
func writePump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, c *types.Client, opts Options) {
	defer cancel()

	ping := time.NewTicker(opts.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-c.Out:
			if err := write(ctx, conn, msg, opts.WriteTimeout); err != nil {
				return
			}

		case <-c.Done():
			if err := flush(ctx, conn, c, opts.WriteTimeout); err == nil {
				conn.Close(websocket.StatusPolicyViolation, hub.ErrReplaced.Error())
			}
			return

		case <-ping.C:
			pctx, pcancel := context.WithTimeout(ctx, opts.WriteTimeout)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage, timeout time.Duration) error {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return wsjson.Write(wctx, conn, msg)
}

func flush(ctx context.Context, conn *websocket.Conn, c *types.Client, timeout time.Duration) error {
	for {
		select {
		case msg := <-c.Out:
			if err := write(ctx, conn, msg, timeout); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// dispatch routes one client message. Seat changes go through the hub so it
// can keep identities unique across rooms; moves and ready go straight to the
// room.
func dispatch(ctx context.Context, h Hub, c *types.Client, m types.ClientMessage) error {
	switch m.Type {
	case ptypes.MsgWatchLobby:
		return toHub(ctx, h, hub.WatchLobby{Client: c})

	case ptypes.MsgUnwatchLobby:
		return toHub(ctx, h, hub.UnwatchLobby{Client: c})

	case ptypes.MsgClaimSeat:
		role, ok := engine.ParseRole(m.Role)
		if !ok {
			return engine.ErrInvalidRole
		}
		return toHub(ctx, h, hub.ClaimSeat{Client: c, RoomID: m.RoomID, Role: role})

	case ptypes.MsgLeave:
		return toHub(ctx, h, hub.ReleaseSeat{Identity: c.Identity})

	case ptypes.MsgCancelRejoin:
		return toHub(ctx, h, hub.CancelRejoin{Identity: c.Identity})

	case ptypes.MsgDrop:
		rm := h.Room(m.RoomID)
		if rm == nil {
			return hub.ErrUnknownRoom
		}
		return toRoom(ctx, rm, room.Drop{Identity: c.Identity, Column: m.Column})

	case ptypes.MsgReady:
		rm := h.Room(m.RoomID)
		if rm == nil {
			return hub.ErrUnknownRoom
		}
		return toRoom(ctx, rm, room.Ready{Identity: c.Identity})

	default:
		return ErrUnknownType
	}
}

func toHub(ctx context.Context, h Hub, m hub.HubMsg) error {
	select {
	case h.Inbox() <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func toRoom(ctx context.Context, rm *room.Room, m room.Msg) error {
	select {
	case rm.Inbox() <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
