package types

// Client -> Server
//
// watch_lobby / unwatch_lobby: {}
//   subscribe to room occupancy updates
//
// claim_seat:
//   roomId: number (1..N)
//   role: "a" | "b"
//
// leave: {}
//   give up whatever seat the identity holds (forfeits a running match)
//
// drop:
//   roomId: number
//   column: number (0..6)
//
// ready:
//   roomId: number
//
// cancel_rejoin: {}
//   decline the rejoin prompt; same as leave
const (
	MsgWatchLobby   = "watch_lobby"
	MsgUnwatchLobby = "unwatch_lobby"
	MsgClaimSeat    = "claim_seat"
	MsgLeave        = "leave"
	MsgDrop         = "drop"
	MsgReady        = "ready"
	MsgCancelRejoin = "cancel_rejoin"
)

// Server -> Client
//
// welcome:
//   identity: string   // keep it and reconnect with /ws?id=<identity>
//
// snapshot:
//   snapshot: {
//     roomId, version, remainingTurnSeconds,
//     seatA: {identity, ready, connected}, seatB: {...},
//     board: string[7][6]   // [column][row], row 0 is the bottom, "" | "a" | "b"
//     turn, whoWentFirst: "a" | "b"
//     state: "inactive" | "waiting" | "in_progress" | "over"
//     outcome?: "win" | "draw" | "timeout" | "forfeit" | "abandoned"
//     winner?: "a" | "b"
//     winningLine?: [{col, row}] x4
//   }
//
// lobby:
//   rooms: [{roomId, seatA, seatB}]
//
// rejoin:
//   roomId: number     // a seat is still held for you
//
// presence:
//   presence: {roomId, version, role, connected}
//   // the other seat reconnected; same version as the rejoiner's snapshot
//
// error:
//   error: string
const (
	MsgWelcome  = "welcome"
	MsgSnapshot = "snapshot"
	MsgLobby    = "lobby"
	MsgRejoin   = "rejoin"
	MsgPresence = "presence"
	MsgError    = "error"
)
