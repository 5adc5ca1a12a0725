package store

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidLimit = errors.New("limit must be positive")

// MatchResult is one finished match. Seats are identities at the moment the
// match ended, including a player who forfeited by leaving.
type MatchResult struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RoomID         int       `gorm:"index" json:"roomId"`
	Match          int       `json:"match"`
	PlayerA        string    `gorm:"size:64" json:"playerA"`
	PlayerB        string    `gorm:"size:64" json:"playerB"`
	FirstTurn      string    `gorm:"size:1" json:"firstTurn"`
	Outcome        string    `gorm:"size:16;index" json:"outcome"`
	Winner         string    `gorm:"size:1" json:"winner,omitempty"`
	WinnerIdentity string    `gorm:"size:64" json:"winnerIdentity,omitempty"`
	Discs          int       `json:"discs"`
	FinishedAt     time.Time `gorm:"index" json:"finishedAt"`
}

type Recorder interface {
	RecordMatch(ctx context.Context, res MatchResult) error
	// Recent returns at most limit results, newest first.
	Recent(ctx context.Context, limit int) ([]MatchResult, error)
}
