package room

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/DoyleJ11/connect-four-backend/internal/engine"
	"github.com/DoyleJ11/connect-four-backend/internal/logging"
	"github.com/DoyleJ11/connect-four-backend/internal/metrics"
	"github.com/DoyleJ11/connect-four-backend/internal/store"
	"github.com/DoyleJ11/connect-four-backend/internal/timer"
	"github.com/DoyleJ11/connect-four-backend/internal/types"
)

type Msg interface{ isRoomMsg() }

// Claim seats Client.Identity in Role. A role switch inside this room is
// handled here; leaving other rooms is the hub's job.
type Claim struct {
	Client *types.Client
	Role   engine.Role
}

func (Claim) isRoomMsg() {}

type Leave struct{ Identity string }

func (Leave) isRoomMsg() {}

// Evict is a Leave issued by the reconnection supervisor.
type Evict struct{ Identity string }

func (Evict) isRoomMsg() {}

type Ready struct{ Identity string }

func (Ready) isRoomMsg() {}

type Drop struct {
	Identity string
	Column   int
}

func (Drop) isRoomMsg() {}

// Attach rebinds a seat to a new connection and replays the current snapshot
// to that connection only. The other seat gets a presence update.
type Attach struct{ Client *types.Client }

func (Attach) isRoomMsg() {}

// Detach unbinds the seat held by Identity if ConnID is still the bound
// connection. A stale detach from a replaced connection is ignored.
type Detach struct {
	Identity string
	ConnID   string
}

func (Detach) isRoomMsg() {}

type turnExpired struct{ gen uint64 }

func (turnExpired) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type View struct {
	ID           int
	Version      int
	State        engine.State
	Remaining    int
	TimerRunning bool
	ConnIDs      [2]string
}

func (v View) Connected(r engine.Role) bool {
	return r.Valid() && v.ConnIDs[r.Index()] != ""
}

type Config struct {
	TurnDuration time.Duration
	Clock        clock.Clock
	Logger       *zap.Logger
	Recorder     store.Recorder
	Metrics      *metrics.Metrics
}

type Room struct {
	id      int
	inbox   chan Msg
	state   engine.State
	version int
	conns   [2]*types.Client

	countdown *timer.Countdown
	turnGen   uint64

	cfg    Config
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, id int, cfg Config) *Room {
	ctx, cancel := context.WithCancel(parent)
	if cfg.TurnDuration <= 0 {
		cfg.TurnDuration = 92 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	r := &Room{
		id:     id,
		inbox:  make(chan Msg, 64),
		state:  engine.NewEmptyState(),
		cfg:    cfg,
		log:    logging.OrNop(cfg.Logger).With(zap.Int("room", id)),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.countdown = timer.New(cfg.Clock, r.onTurnExpired)

	go r.loop()
	return r
}

func (r *Room) ID() int { return r.id }

func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Done is closed once the room goroutine has exited.
func (r *Room) Done() <-chan struct{} { return r.done }

// onTurnExpired runs on the timer's goroutine and only enqueues.
func (r *Room) onTurnExpired(gen uint64) {
	select {
	case r.inbox <- turnExpired{gen: gen}:
	case <-r.ctx.Done():
	}
}

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Claim:
				if msg.Client == nil {
					break
				}
				r.apply(msg.Client, engine.Command{
					Type:     engine.CmdClaimSeat,
					Identity: msg.Client.Identity,
					Role:     msg.Role,
				}, func() {
					r.conns[msg.Role.Index()] = msg.Client
				})

			case Leave:
				r.apply(r.connOf(msg.Identity), engine.Command{Type: engine.CmdLeave, Identity: msg.Identity}, nil)

			case Evict:
				r.apply(nil, engine.Command{Type: engine.CmdEvict, Identity: msg.Identity}, nil)

			case Ready:
				r.apply(r.connOf(msg.Identity), engine.Command{Type: engine.CmdReady, Identity: msg.Identity}, nil)

			case Drop:
				r.apply(r.connOf(msg.Identity), engine.Command{
					Type:     engine.CmdDropDisc,
					Identity: msg.Identity,
					Column:   msg.Column,
				}, nil)

			case turnExpired:
				if msg.gen != r.turnGen || r.state.Phase != engine.PhaseInProgress {
					r.log.Debug("stale turn expiry dropped", zap.Uint64("gen", msg.gen), zap.Uint64("current", r.turnGen))
					break
				}
				r.apply(nil, engine.Command{Type: engine.CmdTurnExpired}, nil)

			case Attach:
				r.attach(msg.Client)

			case Detach:
				r.detach(msg.Identity, msg.ConnID)

			case GetState:
				msg.Reply <- r.view()

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

// apply runs cmd through the engine and commits the result as a whole.
// bind runs after a successful commit, before connections are reconciled.
func (r *Room) apply(actor *types.Client, cmd engine.Command, bind func()) {
	prev := r.state
	events, next, err := engine.Apply(r.state, cmd)
	if err != nil {
		r.reject(actor, cmd, err)
		return
	}

	r.state = next
	if bind != nil {
		bind()
	}
	r.syncConns()

	for _, ev := range events {
		switch ev.Type {
		case engine.EvtTimerStarted:
			r.turnGen = r.countdown.Start(r.cfg.TurnDuration)
		case engine.EvtTimerStopped:
			r.countdown.Reset()
		case engine.EvtTimerExpired:
			// the countdown went idle on its own
		case engine.EvtMatchStarted:
			r.cfg.Metrics.MatchStarted()
			r.log.Info("match started",
				zap.Int("match", next.Match),
				zap.String("first", string(next.FirstTurn)))
		case engine.EvtMatchWon, engine.EvtMatchDrawn:
			r.finished(prev, next)
		}
	}

	r.version++
	r.broadcast(r.snapshot())
}

func (r *Room) reject(actor *types.Client, cmd engine.Command, err error) {
	r.log.Debug("action rejected",
		zap.String("cmd", string(cmd.Type)),
		zap.String("identity", cmd.Identity),
		zap.String("phase", string(r.state.Phase)),
		zap.Error(err))
	r.cfg.Metrics.ActionRejected(err.Error())
	if actor != nil && !errors.Is(err, engine.ErrUnsupportedCommand) {
		actor.Send(types.ErrorMessage(err))
	}
}

// syncConns drops connection handles of seats that are now empty.
func (r *Room) syncConns() {
	for i, seat := range r.state.Seats {
		if seat.Empty() {
			r.conns[i] = nil
		} else if c := r.conns[i]; c != nil && c.Identity != seat.Identity {
			r.conns[i] = nil
		}
	}
}

func (r *Room) connOf(identity string) *types.Client {
	role, ok := r.state.RoleOf(identity)
	if !ok {
		return nil
	}
	return r.conns[role.Index()]
}

func (r *Room) attach(c *types.Client) {
	if c == nil {
		return
	}
	role, ok := r.state.RoleOf(c.Identity)
	if !ok {
		r.log.Warn("attach for identity without a seat", zap.String("identity", c.Identity))
		return
	}
	r.conns[role.Index()] = c
	r.version++
	c.Send(types.SnapshotMessage(r.snapshot()))

	if other := r.conns[role.Opponent().Index()]; other != nil {
		other.Send(types.PresenceMessage(types.Presence{
			RoomID:    r.id,
			Version:   r.version,
			Role:      role,
			Connected: true,
		}))
	}
}

func (r *Room) detach(identity, connID string) {
	role, ok := r.state.RoleOf(identity)
	if !ok {
		return
	}
	c := r.conns[role.Index()]
	if c == nil || c.ID != connID {
		return
	}
	r.conns[role.Index()] = nil
	r.version++
	r.broadcast(r.snapshot())
}

// finished records the ended match off the mutation path. prev still holds
// the identity of a player who forfeited by leaving.
func (r *Room) finished(prev, next engine.State) {
	res := next.Result
	r.cfg.Metrics.MatchFinished(string(res.Outcome))
	r.log.Info("match over",
		zap.Int("match", next.Match),
		zap.String("outcome", string(res.Outcome)),
		zap.String("winner", string(res.Winner)))

	if r.cfg.Recorder == nil {
		return
	}
	mr := store.MatchResult{
		RoomID:     r.id,
		Match:      next.Match,
		PlayerA:    prev.Seats[0].Identity,
		PlayerB:    prev.Seats[1].Identity,
		FirstTurn:  string(next.FirstTurn),
		Outcome:    string(res.Outcome),
		Winner:     string(res.Winner),
		Discs:      engine.DiscCount(next.Board),
		FinishedAt: r.cfg.Clock.Now().UTC(),
	}
	if res.Winner.Valid() {
		mr.WinnerIdentity = prev.Seat(res.Winner).Identity
	}

	rec, log := r.cfg.Recorder, r.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rec.RecordMatch(ctx, mr); err != nil {
			log.Warn("record match failed", zap.Error(err))
		}
	}()
}

func (r *Room) snapshot() types.Snapshot {
	s := r.state
	snap := types.Snapshot{
		RoomID:               r.id,
		Version:              r.version,
		RemainingTurnSeconds: r.countdown.RemainingSeconds(),
		SeatA:                r.seatView(engine.RoleA),
		SeatB:                r.seatView(engine.RoleB),
		Board:                s.Board,
		Turn:                 s.Turn,
		WhoWentFirst:         s.FirstTurn,
		State:                s.Phase,
		Outcome:              s.Result.Outcome,
		Winner:               s.Result.Winner,
		WinningLine:          s.Result.Line,
	}
	if s.Phase != engine.PhaseInProgress {
		snap.RemainingTurnSeconds = int(r.cfg.TurnDuration / time.Second)
	}
	return snap
}

func (r *Room) seatView(role engine.Role) types.SeatView {
	seat := r.state.Seat(role)
	return types.SeatView{
		Identity:  seat.Identity,
		Ready:     seat.Ready,
		Connected: r.conns[role.Index()] != nil,
	}
}

func (r *Room) view() View {
	v := View{
		ID:           r.id,
		Version:      r.version,
		State:        r.state,
		Remaining:    r.countdown.RemainingSeconds(),
		TimerRunning: r.countdown.Running(),
	}
	for i, c := range r.conns {
		if c != nil {
			v.ConnIDs[i] = c.ID
		}
	}
	return v
}

// broadcast sends to both seats without blocking. A full outbox misses this
// snapshot; the next one carries the whole state again.
func (r *Room) broadcast(snap types.Snapshot) {
	msg := types.SnapshotMessage(snap)
	for i, c := range r.conns {
		if c == nil {
			continue
		}
		if !c.Send(msg) {
			r.log.Debug("snapshot dropped for slow connection",
				zap.String("role", string(engine.Roles[i])),
				zap.String("conn", c.ID))
		}
	}
}

func (r *Room) shutdown() {
	r.countdown.Reset()
	r.conns = [2]*types.Client{}
	r.cancel()
}
