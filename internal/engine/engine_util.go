package engine

func NewEmptyState() State {
	return State{
		Phase:     PhaseInactive,
		Turn:      RoleA,
		FirstTurn: RoleA,
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func (s State) Seat(r Role) Seat {
	if !r.Valid() {
		return Seat{}
	}
	return s.Seats[r.Index()]
}

func (s State) RoleOf(identity string) (Role, bool) {
	if identity == "" {
		return RoleNone, false
	}
	for _, r := range Roles {
		if s.Seats[r.Index()].Identity == identity {
			return r, true
		}
	}
	return RoleNone, false
}

// Occupied reports whether both seats are filled.
func (s State) Occupied() bool {
	return !s.Seats[0].Empty() && !s.Seats[1].Empty()
}
