package types

import (
	"sync"

	"github.com/DoyleJ11/connect-four-backend/internal/engine"
	ptypes "github.com/DoyleJ11/connect-four-backend/pkg/types"
)

type ClientMessage struct {
	Type   string `json:"type"`
	RoomID int    `json:"roomId,omitempty"`
	Role   string `json:"role,omitempty"`
	Column int    `json:"column"`
}

type ServerMessage struct {
	Type     string      `json:"type"`
	Identity string      `json:"identity,omitempty"`
	RoomID   int         `json:"roomId,omitempty"`
	Snapshot *Snapshot   `json:"snapshot,omitempty"`
	Rooms    []Occupancy `json:"rooms,omitempty"`
	Presence *Presence   `json:"presence,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Presence tells a seated player that the other seat's connection changed
// without resending the whole room.
type Presence struct {
	RoomID    int         `json:"roomId"`
	Version   int         `json:"version"`
	Role      engine.Role `json:"role"`
	Connected bool        `json:"connected"`
}

type SeatView struct {
	Identity  string `json:"identity"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
}

type Snapshot struct {
	RoomID               int            `json:"roomId"`
	Version              int            `json:"version"`
	RemainingTurnSeconds int            `json:"remainingTurnSeconds"`
	SeatA                SeatView       `json:"seatA"`
	SeatB                SeatView       `json:"seatB"`
	Board                engine.Board   `json:"board"`
	Turn                 engine.Role    `json:"turn"`
	WhoWentFirst         engine.Role    `json:"whoWentFirst"`
	State                engine.Phase   `json:"state"`
	Outcome              engine.Outcome `json:"outcome,omitempty"`
	Winner               engine.Role    `json:"winner,omitempty"`
	WinningLine          []engine.Coord `json:"winningLine,omitempty"`
}

// Occupancy is the lobby's view of one room. Empty seats are "".
type Occupancy struct {
	RoomID int    `json:"roomId"`
	SeatA  string `json:"seatA"`
	SeatB  string `json:"seatB"`
}

// Client is one live connection. Identity survives reconnects, ID does not.
type Client struct {
	ID       string
	Identity string
	Out      chan ServerMessage

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(id, identity string, buffer int) *Client {
	return &Client{
		ID:       id,
		Identity: identity,
		Out:      make(chan ServerMessage, buffer),
		done:     make(chan struct{}),
	}
}

// Close asks the transport to drop this connection, e.g. because a newer one
// took over its identity. Safe to call more than once.
func (c *Client) Close() {
	if c == nil || c.done == nil {
		return
	}
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed by Close. It is nil for a Client not built by NewClient.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		return nil
	}
	return c.done
}

// Send never blocks. Out is never closed because rooms, the hub and the
// connection itself all write to it; the connection stops reading instead.
func (c *Client) Send(m ServerMessage) bool {
	if c == nil {
		return false
	}
	select {
	case c.Out <- m:
		return true
	default:
		return false
	}
}

func SnapshotMessage(s Snapshot) ServerMessage {
	return ServerMessage{Type: ptypes.MsgSnapshot, Snapshot: &s}
}

func PresenceMessage(p Presence) ServerMessage {
	return ServerMessage{Type: ptypes.MsgPresence, Presence: &p}
}

func ErrorMessage(err error) ServerMessage {
	return ServerMessage{Type: ptypes.MsgError, Error: err.Error()}
}

func LobbyMessage(rooms []Occupancy) ServerMessage {
	return ServerMessage{Type: ptypes.MsgLobby, Rooms: rooms}
}
