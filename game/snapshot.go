package game

import (
	"time"

	"github.com/samber/lo"
)

// PlayerSnapshot is the wire view of a player.
type PlayerSnapshot struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Attempts  int     `json:"attempts"`
	BestScore float64 `json:"bestScore"`
	JoinedAt  int64   `json:"joinedAt"`
}

// Snapshot is the full room state sent to clients as gameInfo.
// Timestamps are unix milliseconds; unset ones are null.
type Snapshot struct {
	RoomID      string           `json:"roomId"`
	HostID      string           `json:"hostId"`
	TargetColor string           `json:"targetColor"`
	GameState   State            `json:"gameState"`
	StartTime   *int64           `json:"startTime"`
	EndTime     *int64           `json:"endTime"`
	Players     []PlayerSnapshot `json:"players"`
	MaxPlayers  int              `json:"maxPlayers"`
	Leaderboard []PlayerSnapshot `json:"leaderboard"`
}

// Summary is the listing view of a room.
type Summary struct {
	RoomID      string `json:"roomId"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
	GameState   State  `json:"gameState"`
	TargetColor string `json:"targetColor"`
}

func (r *Room) Snapshot() Snapshot {
	return Snapshot{
		RoomID:      r.Code,
		HostID:      r.HostID,
		TargetColor: r.TargetColor,
		GameState:   r.State,
		StartTime:   unixMilli(r.StartTime),
		EndTime:     unixMilli(r.EndTime),
		Players: lo.Map(r.players, func(p *Player, _ int) PlayerSnapshot {
			return p.snapshot()
		}),
		MaxPlayers: r.MaxPlayers,
		Leaderboard: lo.Map(r.leaderboard, func(p Player, _ int) PlayerSnapshot {
			return p.snapshot()
		}),
	}
}

func (r *Room) Summary() Summary {
	return Summary{
		RoomID:      r.Code,
		PlayerCount: len(r.players),
		MaxPlayers:  r.MaxPlayers,
		GameState:   r.State,
		TargetColor: r.TargetColor,
	}
}

func (p Player) snapshot() PlayerSnapshot {
	return PlayerSnapshot{
		ID:        p.ID,
		Name:      p.Name,
		Score:     p.Score,
		Attempts:  p.Attempts,
		BestScore: p.BestScore,
		JoinedAt:  p.JoinedAt.UnixMilli(),
	}
}

func unixMilli(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
