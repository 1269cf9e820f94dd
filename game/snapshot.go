package game

type PlayerView struct {
	SocketID   string `json:"socketId"`
	Name       string `json:"name"`
	Avatar     string `json:"avatar,omitempty"`
	IsHost     bool   `json:"isHost"`
	HasAccount bool   `json:"hasAccount"`
}

// playersView derives isHost by comparing against the room's host
// identity; it is never a stored flag.
func playersView(room *Room) []PlayerView {
	views := make([]PlayerView, 0, len(room.players))
	for _, p := range room.players {
		views = append(views, PlayerView{
			SocketID:   p.SocketID,
			Name:       p.Name,
			Avatar:     p.Avatar,
			IsHost:     room.IsHost(p.SocketID),
			HasAccount: p.AccountID != "",
		})
	}
	return views
}

// RoomUpdatedPayload is broadcast on any membership or profile change.
// Caller must hold the registry lock.
func RoomUpdatedPayload(room *Room) map[string]any {
	return map[string]any{
		"roomCode":     room.Code,
		"hostSocketId": room.HostSocketID,
		"players":      playersView(room),
	}
}

// StagePlanPayload goes to the host while the plan is being edited.
func StagePlanPayload(room *Room) map[string]any {
	return map[string]any{
		"roomCode":  room.Code,
		"stagePlan": room.StagePlan,
	}
}

// GameStatePayload is the full snapshot fanned out on any in-game
// mutation. Caller must hold the registry lock.
func GameStatePayload(room *Room) map[string]any {
	var stageIndex any
	if room.CurrentStage >= 0 {
		stageIndex = room.CurrentStage
	}
	var roundView any
	if round := room.CurrentRound(); round != nil {
		roundView = round.PublicView(room)
	}
	var stageConfig any
	if cfg := room.CurrentStageConfig(); cfg != nil {
		stageConfig = cfg
	}
	return map[string]any{
		"roomCode":           room.Code,
		"phase":              room.Phase,
		"hostSocketId":       room.HostSocketID,
		"players":            playersView(room),
		"stagePlan":          room.StagePlan,
		"currentStageIndex":  stageIndex,
		"currentStageConfig": stageConfig,
		"currentRoundState":  roundView,
		"scoreboard":         room.scoreboard,
	}
}

// WithRoom runs fn with the registry lock held and the room resolved,
// for callers that need a consistent snapshot alongside other state.
func (g *Registry) WithRoom(code string, fn func(*Room) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.getRoom(code)
	if !ok {
		return ErrRoomNotFound
	}
	return fn(room)
}

// Scoreboard returns the live scoreboard entry for an identity, nil if
// none. Test hook; takes the lock itself.
func (g *Registry) Scoreboard(code, socketID string) *ScoreboardEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.getRoom(code)
	if !ok {
		return nil
	}
	return room.scoreboard[socketID]
}
