package engine

import "errors"

const (
	Cols      = 7
	Rows      = 6
	WinLength = 4
)

var ErrColumnFull = errors.New("column full")
var ErrInvalidColumn = errors.New("invalid column")
var ErrInvalidRole = errors.New("invalid role")

// Board is indexed [column][row], row 0 is the bottom. An empty cell is "".
type Board [Cols][Rows]Role

type Coord struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// Ray directions checked from every occupied cell. The order is part of the
// contract: together with the column-major scan it decides which line is
// reported when several exist.
var rays = [4]Coord{
	{Col: 0, Row: 1},  // up
	{Col: 1, Row: 0},  // right
	{Col: 1, Row: 1},  // up-right
	{Col: 1, Row: -1}, // down-right
}

// DropDisc returns a copy of b with a disc for role placed in the lowest empty
// cell of col. b itself is never modified.
func DropDisc(b Board, col int, role Role) (Board, error) {
	if col < 0 || col >= Cols {
		return b, ErrInvalidColumn
	}
	if !role.Valid() {
		return b, ErrInvalidRole
	}
	row := DiscsInColumn(b, col)
	if row >= Rows {
		return b, ErrColumnFull
	}
	b[col][row] = role
	return b, nil
}

// FindWinningLine returns the first four-in-a-row found, or nil.
func FindWinningLine(b Board) []Coord {
	for col := 0; col < Cols; col++ {
		for row := 0; row < Rows; row++ {
			owner := b[col][row]
			if owner == RoleNone {
				continue
			}
			for _, d := range rays {
				if line, ok := lineFrom(b, col, row, d, owner); ok {
					return line
				}
			}
		}
	}
	return nil
}

func lineFrom(b Board, col, row int, d Coord, owner Role) ([]Coord, bool) {
	line := make([]Coord, 0, WinLength)
	for i := 0; i < WinLength; i++ {
		c, r := col+i*d.Col, row+i*d.Row
		if !inBounds(c, r) || b[c][r] != owner {
			return nil, false
		}
		line = append(line, Coord{Col: c, Row: r})
	}
	return line, true
}

func inBounds(col, row int) bool {
	return col >= 0 && col < Cols && row >= 0 && row < Rows
}

func IsFull(b Board) bool {
	return OpenColumnCount(b) == 0
}

func IsEmpty(b Board) bool {
	return DiscCount(b) == 0
}

func OpenColumnCount(b Board) int {
	open := 0
	for col := 0; col < Cols; col++ {
		if b[col][Rows-1] == RoleNone {
			open++
		}
	}
	return open
}

// DiscsInColumn relies on gravity: the first empty cell from the bottom ends
// the stack.
func DiscsInColumn(b Board, col int) int {
	if col < 0 || col >= Cols {
		return 0
	}
	n := 0
	for row := 0; row < Rows && b[col][row] != RoleNone; row++ {
		n++
	}
	return n
}

func DiscCount(b Board) int {
	total := 0
	for col := 0; col < Cols; col++ {
		total += DiscsInColumn(b, col)
	}
	return total
}

// ValidBoard reports whether every cell holds a known role and no disc floats
// above an empty cell. Boards coming from clients are checked with it.
func ValidBoard(b Board) bool {
	for col := 0; col < Cols; col++ {
		seenEmpty := false
		for row := 0; row < Rows; row++ {
			cell := b[col][row]
			switch {
			case cell == RoleNone:
				seenEmpty = true
			case !cell.Valid():
				return false
			case seenEmpty:
				return false
			}
		}
	}
	return true
}
