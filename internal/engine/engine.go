package engine

import (
	"errors"
)

var ErrNotYourTurn = errors.New("not your turn")
var ErrRoomFull = errors.New("seat already taken")
var ErrUnknownIdentity = errors.New("identity not seated")
var ErrNotInProgress = errors.New("match not in progress")
var ErrAlreadySeated = errors.New("identity already holds this seat")
var ErrAlreadyReady = errors.New("already ready")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Phase string

const (
	PhaseInactive   Phase = "inactive"
	PhaseWaiting    Phase = "waiting"
	PhaseInProgress Phase = "in_progress"
	PhaseOver       Phase = "over"
)

type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeWin       Outcome = "win"
	OutcomeDraw      Outcome = "draw"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeForfeit   Outcome = "forfeit"   // occupant left mid-match
	OutcomeAbandoned Outcome = "abandoned" // occupant evicted after the grace period
)

// Seat holds the durable part of a player record. The connection handle lives
// with the room actor so that State stays a plain value.
type Seat struct {
	Identity string
	Ready    bool
}

func (s Seat) Empty() bool { return s.Identity == "" }

type Result struct {
	Outcome Outcome
	Winner  Role
	Line    []Coord
}

type State struct {
	Phase     Phase
	Board     Board
	Seats     [2]Seat
	Turn      Role
	FirstTurn Role
	// Armed is set once a match has started since the session last left
	// Inactive. Every later start flips FirstTurn.
	Armed  bool
	Match  int
	Result Result
}

type CommandType string

const (
	CmdClaimSeat   CommandType = "ClaimSeat"
	CmdLeave       CommandType = "Leave"
	CmdEvict       CommandType = "Evict"
	CmdReady       CommandType = "Ready"
	CmdDropDisc    CommandType = "DropDisc"
	CmdTurnExpired CommandType = "TurnExpired"
)

/*
	CmdClaimSeat   -> EvtSeatClaimed -> (EvtMatchStarted -> EvtTimerStarted)
	CmdReady       -> EvtPlayerReady -> (EvtMatchStarted -> EvtTimerStarted)
	CmdDropDisc    -> EvtDiscDropped -> EvtTurnAdvanced -> EvtTimerStarted
	                                 or EvtMatchWon / EvtMatchDrawn -> EvtTimerStopped
	CmdTurnExpired -> EvtTimerExpired -> EvtMatchWon
	CmdLeave/Evict -> EvtSeatVacated -> EvtMatchWon -> EvtTimerStopped (in progress)
	                                 or EvtSessionRearmed (both seats empty)
*/

type Command struct {
	Type     CommandType
	Identity string
	Role     Role
	Column   int
}

type EventType string

const (
	EvtSeatClaimed    EventType = "SeatClaimed"
	EvtSeatVacated    EventType = "SeatVacated"
	EvtPlayerReady    EventType = "PlayerReady"
	EvtMatchStarted   EventType = "MatchStarted"
	EvtDiscDropped    EventType = "DiscDropped"
	EvtTurnAdvanced   EventType = "TurnAdvanced"
	EvtMatchWon       EventType = "MatchWon"
	EvtMatchDrawn     EventType = "MatchDrawn"
	EvtTimerStarted   EventType = "TimerStarted"
	EvtTimerStopped   EventType = "TimerStopped"
	EvtTimerExpired   EventType = "TimerExpired"
	EvtSessionRearmed EventType = "SessionRearmed"
)

type Event struct {
	Type     EventType
	Role     Role
	Identity string
	Column   int
	Row      int
	Outcome  Outcome
}

// Apply computes the next state for cmd. On error the returned state is s and
// no events are produced, so callers can treat every error as a no-op.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdClaimSeat:
		return claimSeat(s, cmd.Identity, cmd.Role)
	case CmdLeave:
		return vacate(s, cmd.Identity, OutcomeForfeit)
	case CmdEvict:
		return vacate(s, cmd.Identity, OutcomeAbandoned)
	case CmdReady:
		return ready(s, cmd.Identity)
	case CmdDropDisc:
		return dropDisc(s, cmd.Identity, cmd.Column)
	case CmdTurnExpired:
		return turnExpired(s)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func claimSeat(s State, identity string, role Role) ([]Event, State, error) {
	if identity == "" {
		return nil, s, ErrUnknownIdentity
	}
	if !role.Valid() {
		return nil, s, ErrInvalidRole
	}
	seat := s.Seat(role)
	if seat.Identity == identity {
		return nil, s, ErrAlreadySeated
	}
	if !seat.Empty() {
		return nil, s, ErrRoomFull
	}

	newState := s
	var events []Event

	// Switching roles inside the same room goes through a normal departure
	// first so that invariants hold at every step.
	if held, ok := s.RoleOf(identity); ok && held != role {
		evts, next, err := vacate(newState, identity, OutcomeForfeit)
		if err != nil {
			return nil, s, err
		}
		events = append(events, evts...)
		newState = next
	}

	newState.Seats[role.Index()] = Seat{Identity: identity, Ready: true}
	events = append(events, Event{Type: EvtSeatClaimed, Role: role, Identity: identity})

	switch newState.Phase {
	case PhaseInactive, PhaseOver:
		newState.Phase = PhaseWaiting
	}

	if evts, started := maybeStart(&newState); started {
		events = append(events, evts...)
	}
	return events, newState, nil
}

func vacate(s State, identity string, reason Outcome) ([]Event, State, error) {
	role, ok := s.RoleOf(identity)
	if !ok {
		return nil, s, ErrUnknownIdentity
	}

	newState := s
	newState.Seats[role.Index()] = Seat{}
	events := []Event{{Type: EvtSeatVacated, Role: role, Identity: identity}}

	if s.Phase == PhaseInProgress {
		winner := role.Opponent()
		finish(&newState, Result{Outcome: reason, Winner: winner})
		events = append(events,
			Event{Type: EvtMatchWon, Role: winner, Outcome: reason},
			Event{Type: EvtTimerStopped},
		)
		return events, newState, nil
	}

	if newState.Seats[0].Empty() && newState.Seats[1].Empty() {
		rearm(&newState)
		events = append(events, Event{Type: EvtSessionRearmed})
		return events, newState, nil
	}

	// one occupant remains and has to confirm again for the next opponent
	remaining := role.Opponent()
	newState.Seats[remaining.Index()].Ready = false
	newState.Phase = PhaseWaiting
	return events, newState, nil
}

func ready(s State, identity string) ([]Event, State, error) {
	role, ok := s.RoleOf(identity)
	if !ok {
		return nil, s, ErrUnknownIdentity
	}
	if s.Phase == PhaseInProgress {
		return nil, s, ErrAlreadyReady
	}
	if s.Seat(role).Ready {
		return nil, s, ErrAlreadyReady
	}

	newState := s
	newState.Seats[role.Index()].Ready = true
	events := []Event{{Type: EvtPlayerReady, Role: role, Identity: identity}}

	if evts, started := maybeStart(&newState); started {
		events = append(events, evts...)
	}
	return events, newState, nil
}

func dropDisc(s State, identity string, col int) ([]Event, State, error) {
	if s.Phase != PhaseInProgress {
		return nil, s, ErrNotInProgress
	}
	role, ok := s.RoleOf(identity)
	if !ok {
		return nil, s, ErrUnknownIdentity
	}
	if role != s.Turn {
		return nil, s, ErrNotYourTurn
	}

	row := DiscsInColumn(s.Board, col)
	board, err := DropDisc(s.Board, col, role)
	if err != nil {
		return nil, s, err
	}

	newState := s
	newState.Board = board
	events := []Event{{Type: EvtDiscDropped, Role: role, Identity: identity, Column: col, Row: row}}

	if line := FindWinningLine(board); line != nil {
		finish(&newState, Result{Outcome: OutcomeWin, Winner: role, Line: line})
		events = append(events,
			Event{Type: EvtMatchWon, Role: role, Outcome: OutcomeWin},
			Event{Type: EvtTimerStopped},
		)
		return events, newState, nil
	}

	if IsFull(board) {
		finish(&newState, Result{Outcome: OutcomeDraw})
		events = append(events,
			Event{Type: EvtMatchDrawn, Outcome: OutcomeDraw},
			Event{Type: EvtTimerStopped},
		)
		return events, newState, nil
	}

	newState.Turn = role.Opponent()
	events = append(events,
		Event{Type: EvtTurnAdvanced, Role: newState.Turn},
		Event{Type: EvtTimerStarted},
	)
	return events, newState, nil
}

// turnExpired is only valid while a match runs; stale expiries are rejected
// here as a second line of defence behind the timer generation check.
func turnExpired(s State) ([]Event, State, error) {
	if s.Phase != PhaseInProgress {
		return nil, s, ErrNotInProgress
	}
	newState := s
	winner := s.Turn.Opponent()
	finish(&newState, Result{Outcome: OutcomeTimeout, Winner: winner})
	events := []Event{
		{Type: EvtTimerExpired, Role: s.Turn},
		{Type: EvtMatchWon, Role: winner, Outcome: OutcomeTimeout},
	}
	return events, newState, nil
}

func maybeStart(s *State) ([]Event, bool) {
	if s.Phase != PhaseWaiting && s.Phase != PhaseOver {
		return nil, false
	}
	a, b := s.Seats[0], s.Seats[1]
	if a.Empty() || b.Empty() || !a.Ready || !b.Ready {
		return nil, false
	}

	if s.Armed {
		s.FirstTurn = s.FirstTurn.Opponent()
	} else {
		s.Armed = true
		s.FirstTurn = RoleA
	}
	s.Board = Board{}
	s.Turn = s.FirstTurn
	s.Result = Result{}
	s.Match++
	s.Phase = PhaseInProgress

	return []Event{
		{Type: EvtMatchStarted, Role: s.FirstTurn},
		{Type: EvtTimerStarted},
	}, true
}

func finish(s *State, res Result) {
	s.Phase = PhaseOver
	s.Result = res
	s.Seats[0].Ready = false
	s.Seats[1].Ready = false
}

func rearm(s *State) {
	s.Phase = PhaseInactive
	s.Board = Board{}
	s.Turn = RoleA
	s.FirstTurn = RoleA
	s.Armed = false
	s.Result = Result{}
}
