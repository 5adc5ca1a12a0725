package ai

import "github.com/DoyleJ11/connect-four-backend/internal/engine"

const (
	winScore        = 100000
	centerScore     = 4
	lineOf2Score    = 2
	lineOf3Score    = 5
	oppCenterScore  = -4
	oppLineOf2Score = -6
	oppLineOf3Score = -100
)

// cell is a board square as seen by the line scanners. Off-board squares are
// neither empty nor owned, so they block a line without opening it.
type cell int8

const (
	offBoard cell = iota
	empty
	ownedA
	ownedB
)

func cellOf(r engine.Role) cell {
	switch r {
	case engine.RoleA:
		return ownedA
	case engine.RoleB:
		return ownedB
	default:
		return empty
	}
}

func at(b engine.Board, col, row int) cell {
	if col < 0 || col >= engine.Cols || row < 0 || row >= engine.Rows {
		return offBoard
	}
	return cellOf(b[col][row])
}

// All eight directions. Lines are read from every disc in every direction,
// so most lines are seen twice; the counters below only correct some of that.
var scanDirs = [8]engine.Coord{
	{Col: 1, Row: 0}, {Col: 0, Row: 1}, {Col: -1, Row: 0}, {Col: 0, Row: -1},
	{Col: 1, Row: 1}, {Col: -1, Row: 1}, {Col: -1, Row: -1}, {Col: 1, Row: -1},
}

// window is four squares starting at a disc, plus the two squares behind it.
type window struct {
	line [4]cell
	back [2]cell
}

func windowsFrom(b engine.Board, col, row int, visit func(w window)) {
	for _, d := range scanDirs {
		var w window
		for i := range w.line {
			w.line[i] = at(b, col+i*d.Col, row+i*d.Row)
		}
		w.back[0] = at(b, col-d.Col, row-d.Row)
		w.back[1] = at(b, col-2*d.Col, row-2*d.Row)
		visit(w)
	}
}

func count(line [4]cell, c cell) int {
	n := 0
	for _, x := range line {
		if x == c {
			n++
		}
	}
	return n
}

func opponentOf(p cell) cell {
	if p == ownedA {
		return ownedB
	}
	return ownedA
}

// linesOf2 counts pairs of p's discs that can still grow into a four. A pair
// with both ends open is counted more than once; X _ _ X pairs are halved.
func linesOf2(b engine.Board, p cell) float64 {
	opp := opponentOf(p)
	found, doubled := 0, 0

	isLineOf2 := func(w window) bool {
		if count(w.line, p) != 2 {
			return false
		}

		open := false
		for _, x := range w.line[1:] {
			if x == p {
				open = true
				break
			}
			if x == opp {
				break
			}
		}
		if !open {
			return false
		}

		// not part of a three
		switch {
		case w.line[3] == p:
		case w.line[2] == p:
			if w.back[0] == p {
				return false
			}
		case w.line[1] == p:
			if w.back[0] == p || w.back[1] == p {
				return false
			}
		}

		// room to reach four
		switch {
		case w.line[3] == p:
			doubled++
			return true
		case w.line[2] == p:
			return w.line[3] == empty || w.back[0] == empty
		case w.line[1] == p:
			return w.line[2] == empty && (w.line[3] == empty || w.back[0] == empty)
		}
		return false
	}

	for col := 0; col < engine.Cols; col++ {
		for row := 0; row < engine.Rows; row++ {
			if at(b, col, row) != p {
				continue
			}
			windowsFrom(b, col, row, func(w window) {
				if isLineOf2(w) {
					found++
				}
			})
		}
	}
	return float64(found) - float64(doubled)/2
}

// linesOf3 counts windows holding three of p's discs and a gap.
func linesOf3(b engine.Board, p cell) float64 {
	found, doubled := 0, 0
	for col := 0; col < engine.Cols; col++ {
		for row := 0; row < engine.Rows; row++ {
			if at(b, col, row) != p {
				continue
			}
			windowsFrom(b, col, row, func(w window) {
				if count(w.line, p) != 3 || count(w.line, empty) == 0 {
					return
				}
				found++
				if w.line[1] == empty || w.line[2] == empty {
					doubled++
				}
			})
		}
	}
	return float64(found) - float64(doubled)/2
}

// evaluate scores from A's point of view. A win decides everything; otherwise
// centre discs and open lines count, with the opponent's threats weighted
// heavier than A's own.
func evaluate(b engine.Board) float64 {
	if line := engine.FindWinningLine(b); line != nil {
		first := line[0]
		if b[first.Col][first.Row] == engine.RoleA {
			return winScore
		}
		return -winScore
	}

	score := 0.0
	for _, r := range b[centerCol] {
		switch r {
		case engine.RoleA:
			score += centerScore
		case engine.RoleB:
			score += oppCenterScore
		}
	}
	score += linesOf2(b, ownedA) * lineOf2Score
	score += linesOf3(b, ownedA) * lineOf3Score
	score += linesOf2(b, ownedB) * oppLineOf2Score
	score += linesOf3(b, ownedB) * oppLineOf3Score
	return score
}
