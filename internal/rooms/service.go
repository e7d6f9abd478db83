package rooms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room id already taken")
	ErrRoomFull     = errors.New("room is full")
)

// Room is the lobby-level configuration a game is started from.
// RoundTime is seconds per round.
type Room struct {
	RoomID      string    `json:"room_id"`
	Name        string    `json:"name"`
	NumStocks   int       `json:"num_stocks"`
	RoundTime   int       `json:"round_time"`
	MaxPlayers  int       `json:"max_players"`
	NumRounds   int       `json:"num_rounds"`
	InitialCash float64   `json:"initial_money"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type Participant struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joined_at"`
}

type ChatMessage struct {
	ID       string    `json:"id"`
	GameID   string    `json:"game_id"`
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Body     string    `json:"message"`
	SentAt   time.Time `json:"sent_at"`
}

type CreateRoomInput struct {
	RoomID      string
	Name        string
	NumStocks   int
	RoundTime   int
	MaxPlayers  int
	NumRounds   int
	InitialCash float64
	CreatedBy   string
	Username    string
}

type Service struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewService(db *pgxpool.Pool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, log: logger}
}

func (s *Service) CreateRoom(ctx context.Context, in CreateRoomInput) (Room, error) {
	var out Room
	in.RoomID = strings.TrimSpace(in.RoomID)
	if in.RoomID == "" {
		in.RoomID = uuid.NewString()
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		in.Name = "Trading Room"
	}
	if in.NumStocks <= 0 {
		in.NumStocks = 6
	}
	if in.RoundTime <= 0 {
		in.RoundTime = 60
	}
	if in.MaxPlayers <= 0 {
		in.MaxPlayers = 8
	}
	if in.NumRounds <= 0 {
		in.NumRounds = 10
	}
	if in.InitialCash <= 0 {
		in.InitialCash = 10000
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return out, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO game.rooms (room_id, name, num_stocks, round_time_seconds, max_players, num_rounds, initial_cash, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING room_id, name, num_stocks, round_time_seconds, max_players, num_rounds, initial_cash, created_by, created_at
	`, in.RoomID, in.Name, in.NumStocks, in.RoundTime, in.MaxPlayers, in.NumRounds, in.InitialCash, in.CreatedBy).Scan(
		&out.RoomID, &out.Name, &out.NumStocks, &out.RoundTime, &out.MaxPlayers, &out.NumRounds, &out.InitialCash, &out.CreatedBy, &out.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return out, ErrRoomExists
		}
		return out, err
	}

	// The host is a participant from the start.
	if _, err := tx.Exec(ctx, `
		INSERT INTO game.room_participants (room_id, user_id, username)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, user_id) DO NOTHING
	`, out.RoomID, in.CreatedBy, in.Username); err != nil {
		return out, err
	}

	if err := tx.Commit(ctx); err != nil {
		return out, err
	}
	s.log.Info("room created", "room_id", out.RoomID, "created_by", out.CreatedBy)
	return out, nil
}

// Join adds the user as a participant. Re-joining an already joined room
// succeeds without consuming a seat.
func (s *Service) Join(ctx context.Context, roomID, userID, username string) (Room, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return Room{}, err
	}
	defer tx.Rollback(ctx)

	room, err := getRoomTx(ctx, tx, roomID)
	if err != nil {
		return Room{}, err
	}

	var already bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM game.room_participants
			WHERE room_id = $1 AND user_id = $2
		)
	`, roomID, userID).Scan(&already); err != nil {
		return Room{}, err
	}
	if !already {
		var seated int
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(1) FROM game.room_participants WHERE room_id = $1
		`, roomID).Scan(&seated); err != nil {
			return Room{}, err
		}
		if seated >= room.MaxPlayers {
			return Room{}, ErrRoomFull
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO game.room_participants (room_id, user_id, username)
			VALUES ($1, $2, $3)
		`, roomID, userID, username); err != nil {
			return Room{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Room{}, err
	}
	return room, nil
}

func (s *Service) Get(ctx context.Context, roomID string) (Room, error) {
	var out Room
	err := s.db.QueryRow(ctx, `
		SELECT room_id, name, num_stocks, round_time_seconds, max_players, num_rounds, initial_cash, created_by, created_at
		FROM game.rooms
		WHERE room_id = $1
	`, roomID).Scan(&out.RoomID, &out.Name, &out.NumStocks, &out.RoundTime, &out.MaxPlayers, &out.NumRounds, &out.InitialCash, &out.CreatedBy, &out.CreatedAt)
	if err == pgx.ErrNoRows {
		return out, ErrRoomNotFound
	}
	return out, err
}

func (s *Service) Participants(ctx context.Context, roomID string) ([]Participant, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, username, joined_at
		FROM game.room_participants
		WHERE room_id = $1
		ORDER BY joined_at ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.UserID, &p.Username, &p.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Service) AddChatMessage(ctx context.Context, gameID, userID, username, body string) (ChatMessage, error) {
	var out ChatMessage
	body = strings.TrimSpace(body)
	if body == "" {
		return out, fmt.Errorf("message is required")
	}
	body = clampUTF8(body, maxChatBytes)
	err := s.db.QueryRow(ctx, `
		INSERT INTO game.room_chats (id, game_id, user_id, username, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, game_id, user_id, username, message, sent_at
	`, uuid.NewString(), gameID, userID, username, body).Scan(&out.ID, &out.GameID, &out.UserID, &out.Username, &out.Body, &out.SentAt)
	return out, err
}

const maxChatBytes = 500

// clampUTF8 cuts s to at most n bytes without splitting a rune, so the
// stored message stays valid UTF-8.
func clampUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (s *Service) Chats(ctx context.Context, gameID string, limit int) ([]ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, game_id, user_id, username, message, sent_at
		FROM game.room_chats
		WHERE game_id = $1
		ORDER BY sent_at ASC
		LIMIT $2
	`, gameID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.GameID, &m.UserID, &m.Username, &m.Body, &m.SentAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func getRoomTx(ctx context.Context, tx pgx.Tx, roomID string) (Room, error) {
	var out Room
	err := tx.QueryRow(ctx, `
		SELECT room_id, name, num_stocks, round_time_seconds, max_players, num_rounds, initial_cash, created_by, created_at
		FROM game.rooms
		WHERE room_id = $1
		FOR UPDATE
	`, roomID).Scan(&out.RoomID, &out.Name, &out.NumStocks, &out.RoundTime, &out.MaxPlayers, &out.NumRounds, &out.InitialCash, &out.CreatedBy, &out.CreatedAt)
	if err == pgx.ErrNoRows {
		return out, ErrRoomNotFound
	}
	return out, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
