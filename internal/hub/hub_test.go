package hub

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/connect-four-backend/internal/engine"
	"github.com/DoyleJ11/connect-four-backend/internal/room"
	"github.com/DoyleJ11/connect-four-backend/internal/types"
	ptypes "github.com/DoyleJ11/connect-four-backend/pkg/types"
)

const wait = 500 * time.Millisecond

func newTestHub(t *testing.T) (*Hub, *clock.Mock) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mock := clock.NewMock()
	h := NewHub(ctx, Config{
		Rooms: 3,
		// long enough that only the grace timer matters in these tests
		TurnDuration: time.Hour,
		Grace:        120 * time.Second,
		Clock:        mock,
	})
	return h, mock
}

func client(connID, identity string) *types.Client {
	return types.NewClient(connID, identity, 32)
}

// recvType skips messages of other types until one of type typ arrives.
func recvType(t *testing.T, c *types.Client, typ string, within time.Duration) types.ServerMessage {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case m := <-c.Out:
			if m.Type == typ {
				return m
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q on %s", typ, c.ID)
			return types.ServerMessage{}
		}
	}
}

func recvNoType(t *testing.T, c *types.Client, typ string, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case m := <-c.Out:
			if m.Type == typ {
				t.Fatalf("expected no %q within %v, got %+v", typ, within, m)
			}
		case <-deadline:
			return
		}
	}
}

func occupancy(t *testing.T, h *Hub) []types.Occupancy {
	t.Helper()
	reply := make(chan []types.Occupancy, 1)
	h.Inbox() <- GetOccupancy{Reply: reply}
	select {
	case occ := <-reply:
		return occ
	case <-time.After(wait):
		t.Fatalf("timed out waiting for occupancy")
		return nil
	}
}

func roomView(t *testing.T, h *Hub, id int) room.View {
	t.Helper()
	reply := make(chan room.View, 1)
	h.Room(id).Inbox() <- room.GetState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(wait):
		t.Fatalf("timed out waiting for room view")
		return room.View{}
	}
}

// seatPair connects alice and bob and starts a match in room 1.
func seatPair(t *testing.T, h *Hub) (alice, bob *types.Client) {
	t.Helper()
	alice = client("c-alice", "alice")
	bob = client("c-bob", "bob")
	h.Inbox() <- Connect{Client: alice}
	h.Inbox() <- Connect{Client: bob}
	h.Inbox() <- ClaimSeat{Client: alice, RoomID: 1, Role: engine.RoleA}
	h.Inbox() <- ClaimSeat{Client: bob, RoomID: 1, Role: engine.RoleB}

	snap := recvType(t, bob, ptypes.MsgSnapshot, wait).Snapshot
	require.Equal(t, engine.PhaseInProgress, snap.State)
	recvType(t, alice, ptypes.MsgSnapshot, wait)
	recvType(t, alice, ptypes.MsgSnapshot, wait)
	return alice, bob
}

func TestHub_RoomLookup(t *testing.T) {
	h, _ := newTestHub(t)

	assert.Equal(t, 3, h.NumRooms())
	assert.Nil(t, h.Room(0))
	assert.Nil(t, h.Room(4))
	require.NotNil(t, h.Room(1))
	assert.Equal(t, 3, h.Room(3).ID())
	assert.Same(t, h.Room(2), h.Room(2))
}

func TestHub_ClaimMovesSeatAcrossRooms(t *testing.T) {
	h, _ := newTestHub(t)
	alice := client("c-alice", "alice")
	h.Inbox() <- Connect{Client: alice}

	h.Inbox() <- ClaimSeat{Client: alice, RoomID: 1, Role: engine.RoleA}
	assert.Equal(t, []types.Occupancy{
		{RoomID: 1, SeatA: "alice"},
		{RoomID: 2},
		{RoomID: 3},
	}, occupancy(t, h))

	h.Inbox() <- ClaimSeat{Client: alice, RoomID: 2, Role: engine.RoleB}
	assert.Equal(t, []types.Occupancy{
		{RoomID: 1},
		{RoomID: 2, SeatB: "alice"},
		{RoomID: 3},
	}, occupancy(t, h))

	assert.Equal(t, engine.PhaseInactive, roomView(t, h, 1).State.Phase)
}

func TestHub_ClaimRejectsUnknownRoomAndRole(t *testing.T) {
	h, _ := newTestHub(t)
	alice := client("c-alice", "alice")

	h.Inbox() <- ClaimSeat{Client: alice, RoomID: 9, Role: engine.RoleA}
	m := recvType(t, alice, ptypes.MsgError, wait)
	assert.Equal(t, ErrUnknownRoom.Error(), m.Error)

	h.Inbox() <- ClaimSeat{Client: alice, RoomID: 1, Role: engine.Role("z")}
	recvType(t, alice, ptypes.MsgError, wait)

	for _, occ := range occupancy(t, h) {
		assert.Empty(t, occ.SeatA)
		assert.Empty(t, occ.SeatB)
	}
}

func TestHub_OccupancyGoesToWatchersOnly(t *testing.T) {
	h, _ := newTestHub(t)
	watcher := client("c-watch", "watcher")
	alice := client("c-alice", "alice")

	h.Inbox() <- WatchLobby{Client: watcher}
	initial := recvType(t, watcher, ptypes.MsgLobby, wait)
	assert.Len(t, initial.Rooms, 3)

	h.Inbox() <- ClaimSeat{Client: alice, RoomID: 3, Role: engine.RoleA}
	update := recvType(t, watcher, ptypes.MsgLobby, wait)
	assert.Equal(t, types.Occupancy{RoomID: 3, SeatA: "alice"}, update.Rooms[2])
	recvNoType(t, alice, ptypes.MsgLobby, 30*time.Millisecond)

	h.Inbox() <- UnwatchLobby{Client: watcher}
	h.Inbox() <- ReleaseSeat{Identity: "alice"}
	recvNoType(t, watcher, ptypes.MsgLobby, 30*time.Millisecond)
	assert.Empty(t, occupancy(t, h)[2].SeatA)
}

func TestHub_GraceExpiryForfeitsMatch(t *testing.T) {
	h, mock := newTestHub(t)
	alice, bob := seatPair(t, h)

	h.Inbox() <- Disconnect{Client: bob}
	snap := recvType(t, alice, ptypes.MsgSnapshot, wait).Snapshot
	assert.False(t, snap.SeatB.Connected)
	assert.Equal(t, engine.PhaseInProgress, snap.State)
	require.Eventually(t, func() bool { return h.supervisor.Pending("bob") }, wait, 5*time.Millisecond)

	mock.Add(119 * time.Second)
	recvNoType(t, alice, ptypes.MsgSnapshot, 30*time.Millisecond)

	mock.Add(time.Second)
	snap = recvType(t, alice, ptypes.MsgSnapshot, wait).Snapshot
	assert.Equal(t, engine.PhaseOver, snap.State)
	assert.Equal(t, engine.OutcomeAbandoned, snap.Outcome)
	assert.Equal(t, engine.RoleA, snap.Winner)
	assert.Empty(t, snap.SeatB.Identity)

	assert.Equal(t, types.Occupancy{RoomID: 1, SeatA: "alice"}, occupancy(t, h)[0])
	assert.False(t, h.supervisor.Pending("bob"))
}

func TestHub_ReconnectBeforeExpiryKeepsSeat(t *testing.T) {
	h, mock := newTestHub(t)
	alice, bob := seatPair(t, h)

	h.Inbox() <- Disconnect{Client: bob}
	recvType(t, alice, ptypes.MsgSnapshot, wait)
	mock.Add(60 * time.Second)

	bob2 := client("c-bob-2", "bob")
	h.Inbox() <- Connect{Client: bob2}
	prompt := recvType(t, bob2, ptypes.MsgRejoin, wait)
	assert.Equal(t, 1, prompt.RoomID)

	v := roomView(t, h, 1)
	assert.Equal(t, "c-bob-2", v.ConnIDs[engine.RoleB.Index()])
	assert.False(t, h.supervisor.Pending("bob"))

	mock.Add(5 * time.Minute)
	recvNoType(t, alice, ptypes.MsgSnapshot, 30*time.Millisecond)
	assert.Equal(t, engine.PhaseInProgress, roomView(t, h, 1).State.Phase)
}

func TestHub_ReplayGoesToRejoiningConnectionOnly(t *testing.T) {
	h, _ := newTestHub(t)
	alice, bob := seatPair(t, h)

	h.Inbox() <- Disconnect{Client: bob}
	recvType(t, alice, ptypes.MsgSnapshot, wait)

	bob2 := client("c-bob-2", "bob")
	h.Inbox() <- Connect{Client: bob2}
	snap := recvType(t, bob2, ptypes.MsgSnapshot, wait).Snapshot
	assert.Equal(t, engine.PhaseInProgress, snap.State)
	assert.True(t, snap.SeatB.Connected)
	p := recvType(t, alice, ptypes.MsgPresence, wait).Presence
	assert.Equal(t, snap.Version, p.Version)
	assert.True(t, p.Connected)
	recvNoType(t, alice, ptypes.MsgSnapshot, 30*time.Millisecond)
}

func TestHub_StaleDisconnectIsIgnored(t *testing.T) {
	h, _ := newTestHub(t)
	_, bob := seatPair(t, h)

	// bob opens a second tab; the first one closing must not start a timer
	bob2 := client("c-bob-2", "bob")
	h.Inbox() <- Connect{Client: bob2}
	h.Inbox() <- Disconnect{Client: bob}

	occupancy(t, h) // barrier: both messages handled
	assert.False(t, h.supervisor.Pending("bob"))
	assert.Equal(t, "c-bob-2", roomView(t, h, 1).ConnIDs[engine.RoleB.Index()])
}

func TestHub_CancelRejoinForfeits(t *testing.T) {
	h, _ := newTestHub(t)
	alice, bob := seatPair(t, h)

	h.Inbox() <- Disconnect{Client: bob}
	bob2 := client("c-bob-2", "bob")
	h.Inbox() <- Connect{Client: bob2}
	recvType(t, bob2, ptypes.MsgRejoin, wait)

	h.Inbox() <- CancelRejoin{Identity: "bob"}
	var snap *types.Snapshot
	for snap == nil || snap.State != engine.PhaseOver {
		snap = recvType(t, alice, ptypes.MsgSnapshot, wait).Snapshot
	}
	assert.Equal(t, engine.OutcomeForfeit, snap.Outcome)
	assert.Equal(t, engine.RoleA, snap.Winner)
	assert.Equal(t, types.Occupancy{RoomID: 1, SeatA: "alice"}, occupancy(t, h)[0])
}

func TestHub_ShutdownStopsEverything(t *testing.T) {
	h, _ := newTestHub(t)
	seatPair(t, h)

	h.Inbox() <- ShutdownHub{}
	select {
	case <-h.Done():
	case <-time.After(wait):
		t.Fatalf("hub did not stop")
	}
	select {
	case <-h.Room(1).Done():
	case <-time.After(wait):
		t.Fatalf("room did not stop")
	}
}

func TestHub_NewConnectionClosesOlderOne(t *testing.T) {
	h, _ := newTestHub(t)
	alice, _ := seatPair(t, h)

	alice2 := client("c-alice-2", "alice")
	h.Inbox() <- Connect{Client: alice2}
	m := recvType(t, alice, ptypes.MsgError, wait)
	assert.Equal(t, ErrReplaced.Error(), m.Error)
	select {
	case <-alice.Done():
	case <-time.After(wait):
		t.Fatalf("older connection was not closed")
	}
	occupancy(t, h) // barrier: Attach for alice2 is queued
	assert.Equal(t, "c-alice-2", roomView(t, h, 1).ConnIDs[engine.RoleA.Index()])

	// the closed connection going away changes nothing
	h.Inbox() <- Disconnect{Client: alice}
	occupancy(t, h)
	assert.False(t, h.supervisor.Pending("alice"))

	// the live one going away leaves alice with no connection at all
	h.Inbox() <- Disconnect{Client: alice2}
	occupancy(t, h)
	assert.True(t, h.supervisor.Pending("alice"))
	assert.False(t, roomView(t, h, 1).Connected(engine.RoleA))
}

func TestHub_ReconnectWithSameConnectionKeepsIt(t *testing.T) {
	h, _ := newTestHub(t)
	alice, _ := seatPair(t, h)

	h.Inbox() <- Connect{Client: alice}
	occupancy(t, h)
	select {
	case <-alice.Done():
		t.Fatalf("connection closed by its own reconnect")
	default:
	}
}
