package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/DoyleJ11/connect-four-backend/internal/ai"
	"github.com/DoyleJ11/connect-four-backend/internal/engine"
	"github.com/DoyleJ11/connect-four-backend/internal/hub"
	"github.com/DoyleJ11/connect-four-backend/internal/store"
	"github.com/DoyleJ11/connect-four-backend/internal/types"
)

const (
	defaultMatchLimit = 20
	maxMatchLimit     = 100
)

var (
	ErrBoardShape    = errors.New("board must be 7 columns of 6 rows")
	ErrBadBoard      = errors.New("board does not obey gravity")
	ErrBoardFinished = errors.New("board already has a winner or is full")
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Rooms reports who sits where, in room order.
func Rooms(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan []types.Occupancy, 1)
		select {
		case h.Inbox() <- hub.GetOccupancy{Reply: reply}:
		case <-r.Context().Done():
			return
		case <-h.Done():
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}

		select {
		case occ := <-reply:
			writeJSON(w, http.StatusOK, struct {
				Rooms []types.Occupancy `json:"rooms"`
			}{Rooms: occ})
		case <-r.Context().Done():
		case <-h.Done():
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
		}
	}
}

func Matches(rec store.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultMatchLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, store.ErrInvalidLimit)
				return
			}
			limit = min(n, maxMatchLimit)
		}

		results, err := rec.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if results == nil {
			results = []store.MatchResult{}
		}
		writeJSON(w, http.StatusOK, struct {
			Matches []store.MatchResult `json:"matches"`
		}{Matches: results})
	}
}

// Board arrives as nested slices so a wrong shape is refused rather than
// padded or truncated by the decoder.
type soloMoveRequest struct {
	Board      [][]engine.Role `json:"board"`
	Difficulty string          `json:"difficulty"`
}

func toBoard(cols [][]engine.Role) (engine.Board, error) {
	var b engine.Board
	if len(cols) != engine.Cols {
		return b, ErrBoardShape
	}
	for c, rows := range cols {
		if len(rows) != engine.Rows {
			return b, ErrBoardShape
		}
		copy(b[c][:], rows)
	}
	return b, nil
}

type soloMoveResponse struct {
	Column      int            `json:"column"`
	Board       engine.Board   `json:"board"`
	WinningLine []engine.Coord `json:"winningLine,omitempty"`
	Full        bool           `json:"full"`
}

// SoloMove plays the computer's reply on a posted board. The computer always
// holds seat b.
func SoloMove(c *ai.Chooser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req soloMoveRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		d := ai.Medium
		if req.Difficulty != "" {
			var err error
			if d, err = ai.ParseDifficulty(req.Difficulty); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}
		board, err := toBoard(req.Board)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if !engine.ValidBoard(board) {
			writeError(w, http.StatusBadRequest, ErrBadBoard)
			return
		}
		if engine.FindWinningLine(board) != nil || engine.IsFull(board) {
			writeError(w, http.StatusConflict, ErrBoardFinished)
			return
		}

		col, err := c.ChooseMove(board, d)
		if err != nil {
			writeError(w, http.StatusConflict, err)
			return
		}
		next, err := engine.DropDisc(board, col, ai.Computer)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusOK, soloMoveResponse{
			Column:      col,
			Board:       next,
			WinningLine: engine.FindWinningLine(next),
			Full:        engine.IsFull(next),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}
