package ai

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/DoyleJ11/connect-four-backend/internal/engine"
)

var ErrNoMoves = errors.New("no legal moves")
var ErrUnknownDifficulty = errors.New("unknown difficulty")

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(s)); d {
	case Easy, Medium, Hard:
		return d, nil
	default:
		return "", ErrUnknownDifficulty
	}
}

// velocity controls how fast sub-optimal picks become likely as the board
// fills up. Lower is stronger.
func (d Difficulty) velocity() float64 {
	switch d {
	case Medium:
		return 18
	case Hard:
		return 15
	default:
		return 24
	}
}

const (
	searchDepth = 4
	centerCol   = engine.Cols / 2
	totalCells  = engine.Cols * engine.Rows
)

// Computer plays seat B and therefore minimizes the score.
const Computer = engine.RoleB

// Chooser ranks moves by minimax and picks among the best three with a bias
// towards the best one. It is safe for concurrent use.
type Chooser struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewChooser(rng *rand.Rand) *Chooser {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Chooser{rng: rng}
}

type Move struct {
	Column int
	Score  float64
}

// ChooseMove returns a column for the computer. The board is not modified.
func (c *Chooser) ChooseMove(b engine.Board, d Difficulty) (int, error) {
	best := RankMoves(b)
	if len(best) == 0 {
		return 0, ErrNoMoves
	}

	open := totalCells - engine.DiscCount(b)
	if open == 0 {
		open = 1
	}

	c.mu.Lock()
	draw := c.rng.Float64()
	c.mu.Unlock()

	idx := pickIndex(weightsFor(len(best)), draw*(1/float64(open))*d.velocity())
	return best[idx].Column, nil
}

// RankMoves returns up to three columns ordered from best to worst for the
// computer. Ties keep the lower column first.
func RankMoves(b engine.Board) []Move {
	limit := min(3, engine.OpenColumnCount(b))
	best := make([]Move, 0, limit)

	for col := 0; col < engine.Cols; col++ {
		child, err := engine.DropDisc(b, col, Computer)
		if err != nil {
			continue
		}
		score := minimax(child, searchDepth, true, math.Inf(-1), math.Inf(1))

		pos := len(best)
		for i := range best {
			if score < best[i].Score {
				pos = i
				break
			}
		}
		if pos >= limit {
			continue
		}
		best = append(best, Move{})
		copy(best[pos+1:], best[pos:])
		best[pos] = Move{Column: col, Score: score}
		if len(best) > limit {
			best = best[:limit]
		}
	}
	return best
}

func weightsFor(n int) []float64 {
	switch n {
	case 3:
		return []float64{0.5, 0.4, 0.1}
	case 2:
		return []float64{0.5, 0.5}
	default:
		return []float64{1}
	}
}

// pickIndex walks the cumulative weights. r is clamped to 1, so a late-game
// draw can reach the last index while an early one stays on the first.
func pickIndex(weights []float64, r float64) int {
	if r > 1 {
		r = 1
	}
	sum := 0.0
	for i, w := range weights {
		sum += w
		if r <= sum {
			return i
		}
	}
	return 0
}

func minimax(b engine.Board, depth int, maximizing bool, alpha, beta float64) float64 {
	if depth == 0 || engine.FindWinningLine(b) != nil || engine.IsFull(b) {
		return evaluate(b)
	}

	role := engine.RoleB
	if maximizing {
		role = engine.RoleA
	}

	best := math.Inf(1)
	if maximizing {
		best = math.Inf(-1)
	}
	for col := 0; col < engine.Cols; col++ {
		child, err := engine.DropDisc(b, col, role)
		if err != nil {
			continue
		}
		score := minimax(child, depth-1, !maximizing, alpha, beta)
		if maximizing {
			best = max(best, score)
			alpha = max(alpha, score)
		} else {
			best = min(best, score)
			beta = min(beta, score)
		}
		if alpha >= beta {
			break
		}
	}
	return best
}
