package game

import (
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/exp/slices"
)

// Manager owns every active room and the connection to room index.
// It is not safe for concurrent use; one goroutine must own it.
type Manager struct {
	rooms    map[string]*Room
	sessions map[string]string
	now      func() time.Time
	newCode  func() string
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithCodeGenerator(gen func() string) Option {
	return func(m *Manager) {
		m.newCode = gen
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		rooms:    make(map[string]*Room),
		sessions: make(map[string]string),
		now:      time.Now,
		newCode:  RandomCode,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// LeaveResult describes what happened when a connection left a room.
// Room is nil when the connection was not a member of any room.
type LeaveResult struct {
	Room        *Room
	PlayerID    string
	Closed      bool
	HostChanged bool
	Finished    bool
}

// Left reports whether a player was actually removed.
func (l LeaveResult) Left() bool {
	return l.Room != nil
}

type JoinResult struct {
	Room     *Room
	Player   *Player
	Previous LeaveResult
}

// ClosedRoom is a room removed by the idle sweep.
type ClosedRoom struct {
	Code      string
	MemberIDs []string
}

// CreateRoom opens a new waiting room hosted by connID. If connID was in
// another room it leaves that room first; the result of that is returned.
func (m *Manager) CreateRoom(connID, name, targetColor string) (*Room, LeaveResult) {
	previous := m.Disconnect(connID)

	now := m.now()
	room := newRoom(m.uniqueCode(), now)
	room.HostID = connID
	room.TargetColor = targetColor
	room.add(&Player{ID: connID, Name: name, JoinedAt: now})

	m.rooms[room.Code] = room
	m.sessions[connID] = room.Code

	return room, previous
}

func (m *Manager) JoinRoom(code, connID, name string) (JoinResult, error) {
	room, ok := m.rooms[code]
	if !ok {
		return JoinResult{}, ErrRoomNotFound
	}

	if room.State != StateWaiting {
		return JoinResult{}, ErrGameInProgress
	}

	if room.Full() {
		return JoinResult{}, ErrRoomFull
	}

	// already a member of this room; nothing changes
	if p, ok := room.Player(connID); ok {
		return JoinResult{Room: room, Player: p}, nil
	}

	previous := m.Disconnect(connID)

	now := m.now()
	player := &Player{ID: connID, Name: name, JoinedAt: now}
	room.add(player)
	room.LastActivity = now
	m.sessions[connID] = code

	return JoinResult{Room: room, Player: player, Previous: previous}, nil
}

// StartGame begins a fresh round. It is allowed from any state so a
// finished room can be replayed.
func (m *Manager) StartGame(code, connID string) (*Room, error) {
	room, ok := m.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}

	if !room.IsHost(connID) {
		return nil, ErrNotHost
	}

	if room.Len() < 2 {
		return nil, ErrNotEnoughPlayers
	}

	now := m.now()
	room.start(now)
	room.LastActivity = now

	return room, nil
}

func (m *Manager) SetTargetColor(code, connID, color string) (*Room, error) {
	room, ok := m.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}

	if !room.IsHost(connID) {
		return nil, ErrNotHost
	}

	if room.State != StateWaiting {
		return nil, ErrColorLocked
	}

	room.TargetColor = color
	room.LastActivity = m.now()

	return room, nil
}

// SubmitScore records one attempt. finished is true when this submission
// completed the round.
func (m *Manager) SubmitScore(code, connID string, score float64) (room *Room, finished bool, err error) {
	room, ok := m.rooms[code]
	if !ok {
		return nil, false, ErrRoomNotFound
	}

	if room.State != StatePlaying {
		return nil, false, ErrGameNotInProgress
	}

	player, ok := room.Player(connID)
	if !ok {
		return nil, false, ErrPlayerNotFound
	}

	player.Attempts++
	player.Score = score
	if score > player.BestScore {
		player.BestScore = score
	}

	now := m.now()
	room.LastActivity = now

	if room.allAttempted() {
		room.finish(now)
		finished = true
	}

	return room, finished, nil
}

// LeaveRoom removes connID from the room. It is a no-op when connID is not
// a member.
func (m *Manager) LeaveRoom(code, connID string) LeaveResult {
	room, ok := m.rooms[code]
	if !ok {
		return LeaveResult{}
	}

	removed, hostChanged := room.remove(connID)
	if !removed {
		return LeaveResult{}
	}

	if m.sessions[connID] == code {
		delete(m.sessions, connID)
	}

	res := LeaveResult{Room: room, PlayerID: connID, HostChanged: hostChanged}

	if room.Len() == 0 {
		delete(m.rooms, code)
		res.Closed = true
		return res
	}

	now := m.now()
	room.LastActivity = now

	if room.State == StatePlaying && room.allAttempted() {
		room.finish(now)
		res.Finished = true
	}

	return res
}

// Disconnect resolves the room through the session index and leaves it.
func (m *Manager) Disconnect(connID string) LeaveResult {
	code, ok := m.sessions[connID]
	if !ok {
		return LeaveResult{}
	}

	res := m.LeaveRoom(code, connID)
	delete(m.sessions, connID)

	return res
}

func (m *Manager) Room(code string) (*Room, error) {
	room, ok := m.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// RoomOf returns the code of the room connID is in.
func (m *Manager) RoomOf(connID string) (string, bool) {
	code, ok := m.sessions[connID]
	return code, ok
}

// List returns a summary of every active room, oldest first.
func (m *Manager) List() []Summary {
	rooms := lo.Values(m.rooms)

	slices.SortFunc(rooms, func(a, b *Room) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Code, b.Code)
	})

	return lo.Map(rooms, func(r *Room, _ int) Summary {
		return r.Summary()
	})
}

func (m *Manager) Len() int {
	return len(m.rooms)
}

// SweepIdle removes rooms with no activity for longer than maxIdle and
// returns them with the members they had.
func (m *Manager) SweepIdle(now time.Time, maxIdle time.Duration) []ClosedRoom {
	var closed []ClosedRoom

	for code, room := range m.rooms {
		if now.Sub(room.LastActivity) <= maxIdle {
			continue
		}

		members := room.MemberIDs()
		for _, id := range members {
			if m.sessions[id] == code {
				delete(m.sessions, id)
			}
		}

		delete(m.rooms, code)
		closed = append(closed, ClosedRoom{Code: code, MemberIDs: members})
	}

	slices.SortFunc(closed, func(a, b ClosedRoom) int {
		return strings.Compare(a.Code, b.Code)
	})

	return closed
}

func (m *Manager) uniqueCode() string {
	for {
		code := m.newCode()
		if _, taken := m.rooms[code]; !taken {
			return code
		}
	}
}
