package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"marketmania/internal/arena"
	"marketmania/internal/auth"
	"marketmania/internal/broadcast"
	"marketmania/internal/catalog"
	"marketmania/internal/config"
	"marketmania/internal/rooms"
	"marketmania/internal/score"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"
)

type contextKey string

const userContextKey contextKey = "user"

type UserContext struct {
	UserID   string
	Email    string
	Username string
	Token    string
}

type Server struct {
	cfg      config.APIConfig
	log      *slog.Logger
	verifier auth.Verifier
	rooms    *rooms.Service
	registry *arena.Registry
	scores   *score.Reconciler
	hub      *broadcast.Hub
	mux      *chi.Mux

	mu       sync.Mutex
	rand     *mathrand.Rand
	upgrader websocket.Upgrader
}

func New(cfg config.APIConfig, logger *slog.Logger, verifier auth.Verifier, roomSvc *rooms.Service, registry *arena.Registry, scores *score.Reconciler, hub *broadcast.Hub) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		log:      logger,
		verifier: verifier,
		rooms:    roomSvc,
		registry: registry,
		scores:   scores,
		hub:      hub,
		mux:      chi.NewRouter(),
		rand:     mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/me", s.handleMe)

			r.Post("/rooms", s.handleCreateRoom)
			r.Get("/rooms/{roomID}", s.handleRoomShow)
			r.Post("/rooms/{roomID}/join", s.handleJoinRoom)
			r.Post("/rooms/{roomID}/start", s.handleStartRoom)
			r.Get("/rooms/{roomID}/stocks", s.handleRoomStocks)
			r.Get("/rooms/{roomID}/portfolio", s.handlePortfolio)
			r.Post("/rooms/{roomID}/trades", s.handleTrade)
			r.Get("/rooms/{roomID}/events", s.handleRoomEvents)

			r.Post("/games/{gameID}/scores", s.handleSubmitScore)
			r.Get("/games/{gameID}/leaderboard/{round}", s.handleRoundLeaderboard)
			r.Post("/games/{gameID}/final-score", s.handleSubmitFinalScore)
			r.Get("/games/{gameID}/final-leaderboard", s.handleFinalLeaderboard)
			r.Post("/games/{gameID}/chats", s.handlePostChat)
			r.Get("/games/{gameID}/chats", s.handleListChats)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			// Browser websocket clients cannot set headers.
			token = strings.TrimSpace(r.URL.Query().Get("token"))
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Sprintf("invalid token: %v", err))
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			UserID:   user.ID,
			Email:    user.Email,
			Username: user.Username,
			Token:    token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	v := ctx.Value(userContextKey)
	user, ok := v.(UserContext)
	if !ok || user.UserID == "" {
		return UserContext{}, errors.New("missing auth context")
	}
	return user, nil
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  user.UserID,
		"email":    user.Email,
		"username": user.Username,
	})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		RoomID      string  `json:"room_id"`
		Name        string  `json:"name"`
		NumStocks   int     `json:"num_stocks"`
		RoundTime   int     `json:"round_time"`
		MaxPlayers  int     `json:"max_players"`
		NumRounds   int     `json:"num_rounds"`
		InitialCash float64 `json:"initial_money"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	room, err := s.rooms.CreateRoom(r.Context(), rooms.CreateRoomInput{
		RoomID:      in.RoomID,
		Name:        in.Name,
		NumStocks:   in.NumStocks,
		RoundTime:   in.RoundTime,
		MaxPlayers:  in.MaxPlayers,
		NumRounds:   in.NumRounds,
		InitialCash: in.InitialCash,
		CreatedBy:   user.UserID,
		Username:    user.Username,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) handleRoomShow(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	room, err := s.rooms.Get(r.Context(), roomID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	participants, err := s.rooms.Participants(r.Context(), roomID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := arena.StatusIdle
	round := 0
	if g, err := s.registry.Get(roomID); err == nil {
		status = g.Status()
		round = g.Round()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room":         room,
		"participants": participants,
		"status":       status,
		"round":        round,
	})
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	room, err := s.rooms.Join(r.Context(), chi.URLParam(r, "roomID"), user.UserID, user.Username)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// handleStartRoom spins up the room's game. Only the host may start, and
// a room runs one game at a time.
func (s *Server) handleStartRoom(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	roomID := chi.URLParam(r, "roomID")
	room, err := s.rooms.Get(r.Context(), roomID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if room.CreatedBy != user.UserID {
		writeError(w, http.StatusForbidden, "only the host can start the game")
		return
	}

	s.mu.Lock()
	picked := catalog.Pick(s.rand, room.NumStocks)
	s.mu.Unlock()

	game, err := s.registry.Create(arena.Config{
		RoomID:      roomID,
		TotalRounds: room.NumRounds,
		RoundEvery:  time.Duration(room.RoundTime) * time.Second,
		Grace:       s.cfg.StartGrace,
		InitialCash: room.InitialCash,
		Stocks:      picked,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	game.Start()
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id": roomID,
		"status":  game.Status(),
		"stocks":  game.Stocks(),
	})
}

func (s *Server) handleRoomStocks(w http.ResponseWriter, r *http.Request) {
	g, err := s.registry.Get(chi.URLParam(r, "roomID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"round":  g.Round(),
		"stocks": g.Stocks(),
	})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	g, err := s.registry.Get(chi.URLParam(r, "roomID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Portfolio(user.UserID))
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	g, err := s.registry.Get(chi.URLParam(r, "roomID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var in struct {
		Stock    string `json:"stock"`
		Side     string `json:"side"`
		Quantity int64  `json:"quantity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var result arena.TradeResult
	switch strings.ToLower(strings.TrimSpace(in.Side)) {
	case "buy":
		result, err = g.Buy(user.UserID, in.Stock, in.Quantity)
	case "sell":
		result, err = g.Sell(user.UserID, in.Stock, in.Quantity)
	case "short":
		result, err = g.Short(user.UserID, in.Stock, in.Quantity)
	default:
		writeError(w, http.StatusBadRequest, "side must be buy, sell or short")
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRoomEvents upgrades to a websocket and streams the room's round
// broadcasts until the client disconnects.
func (s *Server) handleRoomEvents(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if _, err := s.rooms.Get(r.Context(), roomID); err != nil {
		writeDomainError(w, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "room_id", roomID, "err", err)
		return
	}
	s.hub.Subscribe(roomID, conn)
}

func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Round          int     `json:"round_number"`
		Cash           float64 `json:"cash"`
		PortfolioValue float64 `json:"portfolio_value"`
		NetWorth       float64 `json:"net_worth"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.scores.SubmitRoundScore(r.Context(), score.RoundScore{
		GameID:         chi.URLParam(r, "gameID"),
		UserID:         user.UserID,
		Round:          in.Round,
		Cash:           in.Cash,
		PortfolioValue: in.PortfolioValue,
		NetWorth:       in.NetWorth,
	}); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRoundLeaderboard(w http.ResponseWriter, r *http.Request) {
	round, err := strconv.Atoi(chi.URLParam(r, "round"))
	if err != nil || round <= 0 {
		writeError(w, http.StatusBadRequest, "invalid round number")
		return
	}
	rows, err := s.scores.RoundLeaderboard(r.Context(), chi.URLParam(r, "gameID"), round)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if len(rows) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"rows":    []score.RoundScore{},
			"message": "No scores submitted yet",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) handleSubmitFinalScore(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		FinalNetWorth float64 `json:"final_net_worth"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.scores.SubmitFinalScore(r.Context(), chi.URLParam(r, "gameID"), user.UserID, in.FinalNetWorth); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleFinalLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := s.scores.FinalLeaderboard(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if len(rows) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"rows":    []score.FinalScore{},
			"message": "No scores submitted yet",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) handlePostChat(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	msg, err := s.rooms.AddChatMessage(r.Context(), chi.URLParam(r, "gameID"), user.UserID, user.Username, in.Message)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := s.rooms.Chats(r.Context(), chi.URLParam(r, "gameID"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rooms.ErrRoomNotFound), errors.Is(err, arena.ErrGameNotFound), errors.Is(err, pgx.ErrNoRows):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, arena.ErrInvalidQuantity), errors.Is(err, arena.ErrUnknownStock),
		errors.Is(err, arena.ErrInsufficientFunds), errors.Is(err, arena.ErrInsufficientShares),
		errors.Is(err, score.ErrInvalidRound):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, rooms.ErrRoomFull):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, rooms.ErrRoomExists), errors.Is(err, arena.ErrAlreadyRunning), errors.Is(err, arena.ErrGameOver):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
