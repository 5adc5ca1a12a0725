package hub

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/DoyleJ11/connect-four-backend/internal/engine"
	"github.com/DoyleJ11/connect-four-backend/internal/logging"
	"github.com/DoyleJ11/connect-four-backend/internal/metrics"
	"github.com/DoyleJ11/connect-four-backend/internal/reconnect"
	"github.com/DoyleJ11/connect-four-backend/internal/room"
	"github.com/DoyleJ11/connect-four-backend/internal/store"
	"github.com/DoyleJ11/connect-four-backend/internal/types"
	ptypes "github.com/DoyleJ11/connect-four-backend/pkg/types"
)

var (
	ErrUnknownRoom = errors.New("unknown room")
	ErrReplaced    = errors.New("replaced by a newer connection")
)

type HubMsg interface{ isHubMsg() }

// Connect registers a live connection. An identity has one connection at a
// time: an older one is told and closed. If the identity still holds a seat
// the seat is rebound to it and any grace timer is cancelled.
type Connect struct{ Client *types.Client }

type Disconnect struct{ Client *types.Client }

type WatchLobby struct{ Client *types.Client }

type UnwatchLobby struct{ Client *types.Client }

type ClaimSeat struct {
	Client *types.Client
	RoomID int
	Role   engine.Role
}

type ReleaseSeat struct{ Identity string }

// CancelRejoin is the answer "no" to a rejoin prompt.
type CancelRejoin struct{ Identity string }

type GetOccupancy struct {
	Reply chan []types.Occupancy
}

type graceExpired struct{ Identity string }

type ShutdownHub struct{}

func (Connect) isHubMsg()      {}
func (Disconnect) isHubMsg()   {}
func (WatchLobby) isHubMsg()   {}
func (UnwatchLobby) isHubMsg() {}
func (ClaimSeat) isHubMsg()    {}
func (ReleaseSeat) isHubMsg()  {}
func (CancelRejoin) isHubMsg() {}
func (GetOccupancy) isHubMsg() {}
func (graceExpired) isHubMsg() {}
func (ShutdownHub) isHubMsg()  {}

type Config struct {
	Rooms        int
	TurnDuration time.Duration
	Grace        time.Duration
	Clock        clock.Clock
	Logger       *zap.Logger
	Recorder     store.Recorder
	Metrics      *metrics.Metrics
}

type Hub struct {
	inbox chan HubMsg
	// rooms never changes after NewHub, so Room is safe from any goroutine.
	rooms      []*room.Room
	watchers   map[string]*types.Client // by connection id
	conns      map[string]*types.Client // identity -> current connection
	supervisor *reconnect.Supervisor
	log        *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Rooms <= 0 {
		cfg.Rooms = 3
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	log := logging.OrNop(cfg.Logger)

	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		watchers: make(map[string]*types.Client),
		conns:    make(map[string]*types.Client),
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for id := 1; id <= cfg.Rooms; id++ {
		h.rooms = append(h.rooms, room.New(ctx, id, room.Config{
			TurnDuration: cfg.TurnDuration,
			Clock:        cfg.Clock,
			Logger:       log,
			Recorder:     cfg.Recorder,
			Metrics:      cfg.Metrics,
		}))
	}
	h.supervisor = reconnect.New(reconnect.Config{
		Grace:   cfg.Grace,
		Clock:   cfg.Clock,
		Logger:  log,
		Metrics: cfg.Metrics,
	}, h.onGraceExpired)

	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub goroutine has exited.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Room returns nil for ids outside 1..N.
func (h *Hub) Room(id int) *room.Room {
	if id < 1 || id > len(h.rooms) {
		return nil
	}
	return h.rooms[id-1]
}

func (h *Hub) NumRooms() int { return len(h.rooms) }

func (h *Hub) onGraceExpired(identity string) {
	select {
	case h.inbox <- graceExpired{Identity: identity}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Connect:
				h.connect(msg.Client)

			case Disconnect:
				h.disconnect(msg.Client)

			case WatchLobby:
				if msg.Client == nil {
					break
				}
				h.watchers[msg.Client.ID] = msg.Client
				msg.Client.Send(types.LobbyMessage(h.occupancy()))

			case UnwatchLobby:
				if msg.Client != nil {
					delete(h.watchers, msg.Client.ID)
				}

			case ClaimSeat:
				h.claimSeat(msg)

			case ReleaseSeat:
				if h.release(msg.Identity, false) {
					h.broadcastOccupancy()
				}

			case CancelRejoin:
				h.supervisor.Reconnected(msg.Identity)
				if h.release(msg.Identity, false) {
					h.broadcastOccupancy()
				}

			case graceExpired:
				if c := h.conns[msg.Identity]; c != nil {
					h.log.Debug("grace expiry for a connected identity dropped", zap.String("identity", msg.Identity))
					break
				}
				h.log.Info("evicting after grace period", zap.String("identity", msg.Identity))
				if h.release(msg.Identity, true) {
					h.broadcastOccupancy()
				}

			case GetOccupancy:
				msg.Reply <- h.occupancy()

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) connect(c *types.Client) {
	if c == nil {
		return
	}
	if old := h.conns[c.Identity]; old != nil && old.ID != c.ID {
		h.log.Info("connection replaced",
			zap.String("identity", c.Identity),
			zap.String("old", old.ID),
			zap.String("conn", c.ID))
		delete(h.watchers, old.ID)
		old.Send(types.ErrorMessage(ErrReplaced))
		old.Close()
	}
	h.conns[c.Identity] = c
	rejoined := h.supervisor.Reconnected(c.Identity)

	v, ok := h.seatOf(c.Identity)
	if !ok {
		return
	}
	if rejoined {
		h.log.Info("identity rejoined", zap.String("identity", c.Identity), zap.Int("room", v.ID))
	}
	rm := h.Room(v.ID)
	rm.Inbox() <- room.Attach{Client: c}
	switch v.State.Phase {
	case engine.PhaseInProgress, engine.PhaseOver:
		c.Send(types.ServerMessage{Type: ptypes.MsgRejoin, RoomID: v.ID})
	}
}

func (h *Hub) disconnect(c *types.Client) {
	if c == nil {
		return
	}
	delete(h.watchers, c.ID)

	// a newer connection for the same identity already took over
	if cur := h.conns[c.Identity]; cur == nil || cur.ID != c.ID {
		return
	}
	delete(h.conns, c.Identity)

	v, ok := h.seatOf(c.Identity)
	if !ok {
		return
	}
	h.Room(v.ID).Inbox() <- room.Detach{Identity: c.Identity, ConnID: c.ID}
	h.supervisor.Disconnected(c.Identity)
}

func (h *Hub) claimSeat(msg ClaimSeat) {
	c := msg.Client
	if c == nil {
		return
	}
	target := h.Room(msg.RoomID)
	if target == nil {
		c.Send(types.ErrorMessage(ErrUnknownRoom))
		return
	}
	if !msg.Role.Valid() {
		c.Send(types.ErrorMessage(engine.ErrInvalidRole))
		return
	}

	// an identity holds at most one seat across the registry
	for _, v := range h.views() {
		if v.ID == msg.RoomID {
			continue
		}
		if _, seated := v.State.RoleOf(c.Identity); seated {
			h.Room(v.ID).Inbox() <- room.Leave{Identity: c.Identity}
		}
	}
	target.Inbox() <- room.Claim{Client: c, Role: msg.Role}
	h.broadcastOccupancy()
}

// release removes identity from every room that seats it and reports whether
// any room did.
func (h *Hub) release(identity string, evict bool) bool {
	if identity == "" {
		return false
	}
	found := false
	for _, v := range h.views() {
		if _, seated := v.State.RoleOf(identity); !seated {
			continue
		}
		found = true
		var m room.Msg = room.Leave{Identity: identity}
		if evict {
			m = room.Evict{Identity: identity}
		}
		h.Room(v.ID).Inbox() <- m
	}
	return found
}

func (h *Hub) seatOf(identity string) (room.View, bool) {
	for _, v := range h.views() {
		if _, ok := v.State.RoleOf(identity); ok {
			return v, true
		}
	}
	return room.View{}, false
}

// views asks every room for its state. Room inboxes are FIFO, so a view
// requested after a Claim or Leave already reflects it.
func (h *Hub) views() []room.View {
	out := make([]room.View, 0, len(h.rooms))
	for _, rm := range h.rooms {
		reply := make(chan room.View, 1)
		select {
		case rm.Inbox() <- room.GetState{Reply: reply}:
		case <-h.ctx.Done():
			return out
		}
		select {
		case v := <-reply:
			out = append(out, v)
		case <-rm.Done():
		case <-h.ctx.Done():
			return out
		}
	}
	return out
}

func (h *Hub) occupancy() []types.Occupancy {
	views := h.views()
	out := make([]types.Occupancy, 0, len(views))
	for _, v := range views {
		out = append(out, types.Occupancy{
			RoomID: v.ID,
			SeatA:  v.State.Seat(engine.RoleA).Identity,
			SeatB:  v.State.Seat(engine.RoleB).Identity,
		})
	}
	return out
}

// broadcastOccupancy is recomputed on every call and only reaches lobby
// watchers.
func (h *Hub) broadcastOccupancy() {
	if len(h.watchers) == 0 {
		return
	}
	msg := types.LobbyMessage(h.occupancy())
	for _, c := range h.watchers {
		c.Send(msg)
	}
}

func (h *Hub) shutdown() {
	h.supervisor.Stop()
	for _, rm := range h.rooms {
		select {
		case rm.Inbox() <- room.Shutdown{}:
		default:
		}
	}
	clear(h.watchers)
	clear(h.conns)
	h.cancel()
}
