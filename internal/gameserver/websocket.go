package gameserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/duskfall/internal/config"
	"github.com/cory-johannsen/duskfall/internal/game/message"
	"github.com/cory-johannsen/duskfall/internal/game/session"
	"github.com/cory-johannsen/duskfall/internal/game/world"
)

// PlayerSource loads or creates the player record backing a new session.
type PlayerSource interface {
	Fetch(ctx context.Context, uid, name string) (*session.Player, error)
}

// Fresh-player baseline stats used when no durable record exists.
const (
	baseMaxHP  = 50
	baseDamage = 5
)

// MemoryPlayerSource mints a fresh level-1 player at the start room on every
// connect. Used by hosts running without a database.
type MemoryPlayerSource struct {
	// StartRoomID is where new players appear.
	StartRoomID string
}

// Fetch returns a fresh player for uid.
func (s MemoryPlayerSource) Fetch(_ context.Context, uid, name string) (*session.Player, error) {
	return &session.Player{
		UID:       uid,
		Name:      name,
		RoomID:    s.StartRoomID,
		CurrentHP: baseMaxHP,
		MaxHP:     baseMaxHP,
		Level:     1,
		Damage:    baseDamage,
	}, nil
}

// WebSocketServer accepts client connections, attaches sessions, parses
// command lines, and drains each session's outbound channel onto the wire.
type WebSocketServer struct {
	cfg      config.WebSocketConfig
	sessions *session.Registry
	worldMgr *world.Manager
	players  PlayerSource
	combat   *CombatHandler
	parties  *PartyHandler
	loot     *LootHandler
	logger   *zap.Logger
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// NewWebSocketServer creates the transport adapter.
//
// Precondition: all arguments must be non-nil.
func NewWebSocketServer(
	cfg config.WebSocketConfig,
	sessions *session.Registry,
	worldMgr *world.Manager,
	players PlayerSource,
	combat *CombatHandler,
	parties *PartyHandler,
	loot *LootHandler,
	logger *zap.Logger,
) *WebSocketServer {
	s := &WebSocketServer{
		cfg:      cfg,
		sessions: sessions,
		worldMgr: worldMgr,
		players:  players,
		combat:   combat,
		parties:  parties,
		loot:     loot,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.handleConnect)
	s.httpSrv = &http.Server{
		Addr:    cfg.Addr(),
		Handler: mux,
	}
	return s
}

// Start runs the HTTP listener. Blocks until Stop is called.
//
// Postcondition: Returns nil on graceful shutdown, or the listener error.
func (s *WebSocketServer) Start() error {
	s.logger.Info("websocket listener starting",
		zap.String("addr", s.cfg.Addr()),
		zap.String("path", s.cfg.Path),
	)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket listener: %w", err)
	}
	return nil
}

// Stop shuts the listener down, allowing in-flight writes to drain.
func (s *WebSocketServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Warn("websocket shutdown", zap.Error(err))
	}
}

// Handler exposes the HTTP handler. Intended for tests.
func (s *WebSocketServer) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *WebSocketServer) handleConnect(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		http.Error(w, "uid query parameter is required", http.StatusBadRequest)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = uid
	}

	p, err := s.players.Fetch(r.Context(), uid, name)
	if err != nil {
		s.logger.Error("loading player", zap.String("uid", uid), zap.Error(err))
		http.Error(w, "failed to load player", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", zap.String("uid", uid), zap.Error(err))
		return
	}

	p.Conn = session.NewConn(uid, s.cfg.SendBuffer)
	if _, err := s.sessions.Add(p); err != nil {
		s.logger.Warn("session attach", zap.String("uid", uid), zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "already connected"),
			time.Now().Add(s.cfg.WriteTimeout))
		_ = conn.Close()
		return
	}

	s.logger.Info("player connected",
		zap.String("uid", uid),
		zap.String("room", p.RoomID),
	)

	go s.writePump(conn, p.Conn)

	s.welcome(p)
	s.readLoop(conn, uid)

	if err := s.sessions.Remove(uid); err != nil {
		s.logger.Warn("session detach", zap.String("uid", uid), zap.Error(err))
	}
	_ = conn.Close()
	s.logger.Info("player disconnected", zap.String("uid", uid))
}

func (s *WebSocketServer) welcome(p *session.Player) {
	roomName := p.RoomID
	if room, ok := s.worldMgr.GetRoom(p.RoomID); ok {
		roomName = room.Title
	}
	s.sessions.SendToPlayer(p.UID, message.System(
		fmt.Sprintf("Welcome, %s. You are in %s.", p.Name, roomName)))
	s.sessions.SendToRoom(p.RoomID, message.Message{
		Kind:   message.KindMovement,
		Actor:  p.Name,
		RoomID: p.RoomID,
		Text:   p.Name + " arrives.",
	}, p.UID)
}

// writePump serializes the session's outbound channel onto the socket and
// keeps the connection alive with periodic pings. Exits when the channel
// closes or a write fails.
func (s *WebSocketServer) writePump(conn *websocket.Conn, c *session.Conn) {
	pinger := time.NewTicker(s.cfg.PingInterval)
	defer pinger.Stop()

	for {
		select {
		case msg, ok := <-c.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(s.cfg.WriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Debug("write failed", zap.String("uid", c.UID()), zap.Error(err))
				return
			}
		case <-pinger.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WebSocketServer) readLoop(conn *websocket.Conn, uid string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("read failed", zap.String("uid", uid), zap.Error(err))
			}
			return
		}
		line := strings.TrimSpace(string(data))
		if line == "" {
			continue
		}
		s.dispatch(uid, line)
	}
}

// dispatch parses one command line and routes it to the owning handler.
// Command errors go back to the player as system messages; they never close
// the connection.
func (s *WebSocketServer) dispatch(uid, line string) {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	var err error
	switch cmd {
	case "attack":
		if len(args) == 0 {
			err = fmt.Errorf("attack what?")
			break
		}
		err = s.combat.Attack(uid, strings.Join(args, " "))
	case "flee":
		var escaped bool
		escaped, err = s.combat.Flee(uid)
		if err == nil && !escaped {
			s.sessions.SendToPlayer(uid, message.System("You fail to get away!"))
		}
	case "party":
		err = s.dispatchParty(uid, args)
	case "pickup":
		if len(args) == 0 {
			err = fmt.Errorf("pickup what?")
			break
		}
		_, err = s.loot.Pickup(uid, args[0])
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		s.sessions.SendToPlayer(uid, message.System(err.Error()))
	}
}

func (s *WebSocketServer) dispatchParty(uid string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("party what? (invite/accept/decline/leave/lootrule)")
	}
	sub := strings.ToLower(args[0])
	rest := args[1:]

	switch sub {
	case "invite":
		if len(rest) == 0 {
			return fmt.Errorf("party invite whom?")
		}
		return s.parties.Invite(uid, rest[0])
	case "accept":
		if len(rest) == 0 {
			return fmt.Errorf("party accept whom?")
		}
		return s.parties.Accept(uid, rest[0])
	case "decline":
		if len(rest) == 0 {
			return fmt.Errorf("party decline whom?")
		}
		return s.parties.Decline(uid, rest[0])
	case "leave":
		return s.parties.Leave(uid)
	case "lootrule":
		if len(rest) == 0 {
			return fmt.Errorf("party lootrule which? (leader_only/round_robin)")
		}
		return s.parties.SetLootRule(uid, rest[0])
	default:
		return fmt.Errorf("unknown party subcommand %q", sub)
	}
}
