package game

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"golang.org/x/exp/slices"
)

// MaxPlayers is the occupancy limit of every room.
const MaxPlayers = 8

type State int

const (
	StateWaiting State = iota
	StatePlaying
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StatePlaying:
		return "playing"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "waiting":
		*s = StateWaiting
	case "playing":
		*s = StatePlaying
	case "finished":
		*s = StateFinished
	default:
		return fmt.Errorf("unknown game state %q", text)
	}
	return nil
}

type Player struct {
	ID        string
	Name      string
	Score     float64
	Attempts  int
	BestScore float64
	JoinedAt  time.Time
}

func (p *Player) resetScores() {
	p.Score = 0
	p.Attempts = 0
	p.BestScore = 0
}

// Room is a single multiplayer lobby. Players are kept in join order, which
// decides host succession and leaderboard tie-breaks.
type Room struct {
	Code         string
	HostID       string
	TargetColor  string
	State        State
	StartTime    time.Time
	EndTime      time.Time
	MaxPlayers   int
	CreatedAt    time.Time
	LastActivity time.Time

	players     []*Player
	leaderboard []Player
}

func newRoom(code string, now time.Time) *Room {
	return &Room{
		Code:         code,
		State:        StateWaiting,
		MaxPlayers:   MaxPlayers,
		CreatedAt:    now,
		LastActivity: now,
		players:      make([]*Player, 0, MaxPlayers),
	}
}

// Players returns the members in join order.
func (r *Room) Players() []*Player {
	return slices.Clone(r.players)
}

func (r *Room) Player(id string) (*Player, bool) {
	i := r.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return r.players[i], true
}

func (r *Room) Len() int {
	return len(r.players)
}

func (r *Room) Full() bool {
	return len(r.players) >= r.MaxPlayers
}

func (r *Room) IsHost(id string) bool {
	return r.HostID == id
}

// Leaderboard is empty until the round finishes.
func (r *Room) Leaderboard() []Player {
	return slices.Clone(r.leaderboard)
}

// MemberIDs returns the connection ids of every member in join order.
func (r *Room) MemberIDs() []string {
	return lo.Map(r.players, func(p *Player, _ int) string {
		return p.ID
	})
}

func (r *Room) indexOf(id string) int {
	return slices.IndexFunc(r.players, func(p *Player) bool {
		return p.ID == id
	})
}

func (r *Room) add(p *Player) {
	r.players = append(r.players, p)
}

// remove deletes the player and hands the host role to the earliest
// remaining member if needed. It reports whether the host changed.
func (r *Room) remove(id string) (removed, hostChanged bool) {
	i := r.indexOf(id)
	if i < 0 {
		return false, false
	}

	r.players = slices.Delete(r.players, i, i+1)

	if r.HostID == id && len(r.players) > 0 {
		r.HostID = r.players[0].ID
		hostChanged = true
	}

	return true, hostChanged
}

func (r *Room) allAttempted() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if p.Attempts < 1 {
			return false
		}
	}
	return true
}

func (r *Room) start(now time.Time) {
	r.State = StatePlaying
	r.StartTime = now
	r.EndTime = time.Time{}
	r.leaderboard = nil
	for _, p := range r.players {
		p.resetScores()
	}
}

func (r *Room) finish(now time.Time) {
	r.State = StateFinished
	r.EndTime = now

	scored := lo.Filter(r.players, func(p *Player, _ int) bool {
		return p.BestScore > 0
	})

	r.leaderboard = lo.Map(scored, func(p *Player, _ int) Player {
		return *p
	})

	slices.SortStableFunc(r.leaderboard, func(a, b Player) int {
		switch {
		case a.BestScore > b.BestScore:
			return -1
		case a.BestScore < b.BestScore:
			return 1
		default:
			return 0
		}
	})
}
