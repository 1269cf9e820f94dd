package game

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// TokenVerifier resolves a bearer token to a stable account id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Server is the connection gateway: it upgrades websockets, attaches
// identity, and dispatches the command protocol against the registry
// and the minigame set.
type Server struct {
	reg      *Registry
	hub      *Hub
	games    *MinigameSet
	tokens   TokenVerifier
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewServer(reg *Registry, hub *Hub, games *MinigameSet, tokens TokenVerifier, log zerolog.Logger) *Server {
	return &Server{
		reg:    reg,
		hub:    hub,
		games:  games,
		tokens: tokens,
		log:    log.With().Str("component", "gateway").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // origin is enforced by middleware
		},
	}
}

// WebsocketHandler authenticates and upgrades one connection. A valid
// token attaches the account id; no token means an anonymous guest.
func (s *Server) WebsocketHandler(ctx *gin.Context) {
	accountID := ""
	if token := ctx.Query("token"); token != "" {
		id, err := s.tokens.Verify(token)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid-token"})
			return
		}
		accountID = id
	}

	conn, err := s.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		s.log.Error().Err(err).Str("ip", ctx.ClientIP()).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(uuid.NewString(), accountID, NewWebsocketSession(conn))
	client.Profile.DisplayName = ctx.Query("displayName")
	client.Profile.Avatar = ctx.Query("avatar")
	s.hub.Add(client)
	s.log.Info().Str("socket", client.SocketID).Bool("guest", accountID == "").Msg("client connected")

	go client.WritePump()
	go s.readPump(client)
}

// readPump dispatches under the client's connection context, not the
// upgrade request's: the request context is canceled as soon as the
// handler returns, which would kill every later collaborator call.
func (s *Server) readPump(c *Client) {
	defer s.disconnect(c)
	for {
		data, err := c.session.Read()
		if err != nil {
			return
		}
		var env commandEnvelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			s.ack(c, env.ReqID, nil, ErrBadRequest)
			continue
		}
		if !c.limiter.Allow() {
			s.ack(c, env.ReqID, nil, ErrRateLimited)
			continue
		}
		ackData, err := s.dispatch(c.ctx, c, env)
		s.ack(c, env.ReqID, ackData, err)
	}
}

// disconnect runs the leave flow for a dropped connection: detach from
// the hub, remove from the room, and let everyone else know.
func (s *Server) disconnect(c *Client) {
	c.close("")
	code := s.hub.Remove(c)
	if code == "" {
		return
	}
	deleted, err := s.reg.RemovePlayer(code, c.SocketID)
	if err != nil || deleted {
		return
	}
	s.broadcastRoomState(code)
}

type commandEnvelope struct {
	Type  string          `json:"type"`
	ReqID string          `json:"reqId"`
	Data  json.RawMessage `json:"data"`
}

type ackEnvelope struct {
	Type  string `json:"type"`
	ReqID string `json:"reqId,omitempty"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

func (s *Server) ack(c *Client, reqID string, data any, err error) {
	out := ackEnvelope{Type: "ack", ReqID: reqID, OK: err == nil, Data: data}
	if err != nil {
		out.Error = errCode(err)
	}
	encoded, marshalErr := json.Marshal(out)
	if marshalErr != nil {
		s.log.Error().Err(marshalErr).Msg("ack marshal failed")
		return
	}
	c.enqueue(encoded)
}

type roomCommand struct {
	RoomCode    string        `json:"roomCode"`
	DisplayName string        `json:"displayName"`
	Avatar      string        `json:"avatar"`
	StagePlan   []StageConfig `json:"stagePlan"`
}

func (s *Server) dispatch(ctx context.Context, c *Client, env commandEnvelope) (any, error) {
	if strings.HasPrefix(env.Type, "minigame:") {
		return nil, s.dispatchMinigame(ctx, c, env)
	}

	var cmd roomCommand
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return nil, ErrBadRequest
		}
	}

	switch env.Type {
	case "createRoom":
		profile := c.Profile
		if cmd.DisplayName != "" {
			profile.DisplayName = cmd.DisplayName
		}
		code, err := s.reg.CreateRoom(c.SocketID, profile)
		if err != nil {
			return nil, err
		}
		s.hub.Watch(c, code)
		s.broadcastRoomState(code)
		return map[string]any{"roomCode": code}, nil

	case "joinRoom":
		profile := c.Profile
		if cmd.DisplayName != "" {
			profile.DisplayName = cmd.DisplayName
		}
		if err := s.reg.JoinRoom(cmd.RoomCode, c.SocketID, profile); err != nil {
			return nil, err
		}
		s.hub.Watch(c, cmd.RoomCode)
		s.broadcastRoomState(cmd.RoomCode)
		return map[string]any{"roomCode": cmd.RoomCode}, nil

	case "leaveRoom":
		deleted, err := s.reg.RemovePlayer(cmd.RoomCode, c.SocketID)
		if err != nil {
			return nil, err
		}
		s.hub.Unwatch(c)
		if !deleted {
			s.broadcastRoomState(cmd.RoomCode)
		}
		return nil, nil

	case "updateProfile":
		if cmd.DisplayName != "" {
			c.Profile.DisplayName = cmd.DisplayName
		}
		if cmd.Avatar != "" {
			c.Profile.Avatar = cmd.Avatar
		}
		for _, code := range s.reg.UpdateProfile(c.SocketID, cmd.DisplayName, cmd.Avatar) {
			s.broadcastRoomState(code)
		}
		return nil, nil

	case "enterStageConfig":
		if err := s.reg.EnterStageConfig(cmd.RoomCode, c.SocketID); err != nil {
			return nil, err
		}
		s.sendStagePlan(cmd.RoomCode)
		return nil, nil

	case "updateStagePlan":
		if err := s.reg.UpdateStagePlan(cmd.RoomCode, c.SocketID, cmd.StagePlan); err != nil {
			return nil, err
		}
		s.sendStagePlan(cmd.RoomCode)
		return nil, nil

	case "lockStagePlanAndStart":
		if err := s.reg.StartGame(cmd.RoomCode, c.SocketID); err != nil {
			return nil, err
		}
		s.broadcastGameState(cmd.RoomCode)
		return nil, nil

	case "advanceStageOrRound":
		if err := s.reg.AdvanceStageOrRound(cmd.RoomCode, c.SocketID); err != nil {
			return nil, err
		}
		s.broadcastGameState(cmd.RoomCode)
		return nil, nil
	}

	return nil, ErrUnknownCommand
}

// dispatchMinigame routes "minigame:<id>:<action>" commands at the
// registered implementation for <id>.
func (s *Server) dispatchMinigame(ctx context.Context, c *Client, env commandEnvelope) error {
	parts := strings.SplitN(env.Type, ":", 3)
	if len(parts) != 3 {
		return ErrUnknownCommand
	}
	minigame, ok := s.games.Get(MinigameID(parts[1]))
	if !ok {
		return ErrUnknownCommand
	}

	var cmd roomCommand
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return ErrBadRequest
		}
	}
	if cmd.RoomCode == "" {
		return ErrBadRequest
	}

	switch parts[2] {
	case "startRound":
		return minigame.StartRound(ctx, cmd.RoomCode, c.SocketID)
	case "submitAnswer", "submitGuess":
		return minigame.SubmitAnswer(ctx, cmd.RoomCode, c.SocketID, env.Data)
	case "reveal", "forceReveal":
		return minigame.Reveal(ctx, cmd.RoomCode, c.SocketID)
	}
	return ErrUnknownCommand
}

// broadcastRoomState fans out roomUpdated, plus the full game snapshot
// when a game is running, since membership changes shift tallies.
func (s *Server) broadcastRoomState(code string) {
	s.reg.WithRoom(code, func(room *Room) error {
		s.hub.Broadcast(code, "roomUpdated", RoomUpdatedPayload(room))
		if room.Phase == PhaseInGame || room.Phase == PhaseCompleted {
			s.hub.Broadcast(code, "gameStateUpdated", GameStatePayload(room))
		}
		return nil
	})
}

func (s *Server) broadcastGameState(code string) {
	s.reg.WithRoom(code, func(room *Room) error {
		s.hub.Broadcast(code, "gameStateUpdated", GameStatePayload(room))
		return nil
	})
}

// sendStagePlan goes to the host only; other clients see the plan once
// the game starts.
func (s *Server) sendStagePlan(code string) {
	s.reg.WithRoom(code, func(room *Room) error {
		s.hub.SendTo(room.HostSocketID, "stagePlanUpdated", StagePlanPayload(room))
		return nil
	})
}
