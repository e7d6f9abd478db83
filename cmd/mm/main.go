package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"marketmania/internal/broadcast"
	cl "marketmania/internal/cli"
	"marketmania/internal/config"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "mm",
		Short:        "MarketMania CLI game client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newMeCmd(&apiBase),
		newRoomCmd(&apiBase),
		newTradeCmd(&apiBase),
		newScoreCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
		newChatCmd(&apiBase),
		newWatchCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func loadSession() (cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return cl.Session{}, fmt.Errorf("login required: %w", err)
	}
	return sess, nil
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Store an access token for the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := promptRequired("Access token")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			me, err := client.Me(ctx, token)
			if err != nil {
				return err
			}
			sess := cl.Session{AccessToken: token}
			if v, ok := me["user_id"].(string); ok {
				sess.UserID = v
			}
			if v, ok := me["email"].(string); ok {
				sess.Email = v
			}
			if v, ok := me["username"].(string); ok {
				sess.Username = v
			}
			if err := cl.SaveSession(sess); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Logged in as %s.", firstNonEmpty(sess.Username, sess.Email, sess.UserID)))
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newMeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the logged-in player",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Me(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			accent.Println("\n== ME ==")
			for _, key := range []string{"username", "email", "user_id"} {
				if v, ok := out[key].(string); ok && v != "" {
					fmt.Printf("%-10s %s\n", key+":", v)
				}
			}
			fmt.Println()
			return nil
		},
	}
}

func newRoomCmd(apiBase *string) *cobra.Command {
	room := &cobra.Command{
		Use:     "room",
		Short:   "Trading room commands",
		Aliases: []string{"rooms"},
	}
	room.AddCommand(newRoomCreateCmd(apiBase))
	room.AddCommand(newRoomJoinCmd(apiBase))
	room.AddCommand(newRoomShowCmd(apiBase))
	room.AddCommand(newRoomStartCmd(apiBase))
	room.AddCommand(newRoomStocksCmd(apiBase))
	room.AddCommand(newRoomPortfolioCmd(apiBase))
	return room
}

func newRoomCreateCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a trading room",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			name, err := promptRequired("Room name")
			if err != nil {
				return err
			}
			roomID, err := promptOptional("Room id (blank for random)")
			if err != nil {
				return err
			}
			numStocks, err := promptInt("Stocks in play", 1)
			if err != nil {
				return err
			}
			roundTime, err := promptInt("Seconds per round", 5)
			if err != nil {
				return err
			}
			numRounds, err := promptInt("Rounds", 1)
			if err != nil {
				return err
			}
			maxPlayers, err := promptInt("Max players", 1)
			if err != nil {
				return err
			}
			initialCash, err := promptFloat("Starting cash", 1)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).CreateRoom(ctx, sess.AccessToken, map[string]any{
				"room_id":       roomID,
				"name":          name,
				"num_stocks":    numStocks,
				"round_time":    roundTime,
				"num_rounds":    numRounds,
				"max_players":   maxPlayers,
				"initial_money": initialCash,
			})
			if err != nil {
				return err
			}
			if id, ok := out["room_id"].(string); ok {
				printSuccess("Room created: " + id)
			}
			return nil
		},
	}
}

func newRoomJoinCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "join ROOM_ID",
		Short: "Join a trading room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).JoinRoom(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			name, _ := out["name"].(string)
			printSuccess(fmt.Sprintf("Joined %s.", firstNonEmpty(name, args[0])))
			return nil
		},
	}
}

func newRoomShowCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show ROOM_ID",
		Short: "Show a room and its players",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).ShowRoom(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			return renderRoom(out)
		},
	}
}

func newRoomStartCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start ROOM_ID",
		Short: "Start the game (host only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).StartRoom(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			printSuccess("Game started.")
			return renderStocks(out)
		},
	}
}

func newRoomStocksCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stocks ROOM_ID",
		Short: "Show live prices for a running room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).RoomStocks(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			return renderStocks(out)
		},
	}
}

func newRoomPortfolioCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio ROOM_ID",
		Short: "Show your cash and positions in a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Portfolio(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			return renderPortfolio(out)
		},
	}
}

func newTradeCmd(apiBase *string) *cobra.Command {
	trade := &cobra.Command{
		Use:   "trade",
		Short: "Buy, sell or short a stock",
	}
	for _, side := range []string{"buy", "sell", "short"} {
		side := side
		trade.AddCommand(&cobra.Command{
			Use:   side + " ROOM_ID STOCK QTY",
			Short: strings.ToUpper(side[:1]) + side[1:] + " shares",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, err := loadSession()
				if err != nil {
					return err
				}
				qty, err := strconv.ParseInt(args[2], 10, 64)
				if err != nil {
					return fmt.Errorf("quantity must be a whole number")
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				out, err := newClient(apiBase).Trade(ctx, sess.AccessToken, args[0], args[1], side, qty)
				if err != nil {
					return err
				}
				return renderTrade(out)
			},
		})
	}
	return trade
}

func newScoreCmd(apiBase *string) *cobra.Command {
	sc := &cobra.Command{
		Use:   "score",
		Short: "Submit round and final scores",
	}
	sc.AddCommand(&cobra.Command{
		Use:   "submit GAME_ID ROUND",
		Short: "Submit your net worth for a round",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			round, err := strconv.Atoi(args[1])
			if err != nil || round <= 0 {
				return fmt.Errorf("round must be a positive number")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)

			// Pull the live portfolio so the submission matches the arena.
			pf, err := client.Portfolio(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			cash, _ := pf["cash"].(float64)
			holdings, _ := pf["portfolio_value"].(float64)
			netWorth, _ := pf["net_worth"].(float64)

			if _, err := client.SubmitScore(ctx, sess.AccessToken, args[0], round, cash, holdings, netWorth); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Round %d score submitted: %s", round, formatMoney(netWorth)))
			return nil
		},
	})
	sc.AddCommand(&cobra.Command{
		Use:   "final GAME_ID",
		Short: "Submit your final net worth",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)

			pf, err := client.Portfolio(ctx, sess.AccessToken, args[0])
			netWorth := 0.0
			if err == nil {
				netWorth, _ = pf["net_worth"].(float64)
			} else {
				// The arena is gone once the game finishes; fall back to
				// a manual figure.
				netWorth, err = promptFloat("Final net worth", 0)
				if err != nil {
					return err
				}
			}
			if _, err := client.SubmitFinalScore(ctx, sess.AccessToken, args[0], netWorth); err != nil {
				return err
			}
			printSuccess("Final score submitted: " + formatMoney(netWorth))
			return nil
		},
	})
	return sc
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	lb := &cobra.Command{
		Use:     "leaderboard",
		Short:   "Round and final leaderboards",
		Aliases: []string{"lb"},
	}
	lb.AddCommand(&cobra.Command{
		Use:   "round GAME_ID ROUND",
		Short: "Show a round's leaderboard",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			round, err := strconv.Atoi(args[1])
			if err != nil || round <= 0 {
				return fmt.Errorf("round must be a positive number")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).RoundLeaderboard(ctx, sess.AccessToken, args[0], round)
			if err != nil {
				return err
			}
			return renderRoundLeaderboard(out, round)
		},
	})
	lb.AddCommand(&cobra.Command{
		Use:   "final GAME_ID",
		Short: "Show the final leaderboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).FinalLeaderboard(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			return renderFinalLeaderboard(out)
		},
	})
	return lb
}

func newChatCmd(apiBase *string) *cobra.Command {
	chat := &cobra.Command{
		Use:   "chat",
		Short: "Room chat",
	}
	chat.AddCommand(&cobra.Command{
		Use:   "send GAME_ID MESSAGE...",
		Short: "Send a chat message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := newClient(apiBase).SendChat(ctx, sess.AccessToken, args[0], strings.Join(args[1:], " ")); err != nil {
				return err
			}
			printSuccess("Sent.")
			return nil
		},
	})
	chat.AddCommand(&cobra.Command{
		Use:   "list GAME_ID",
		Short: "Show recent chat messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).ListChats(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			return renderChats(out)
		},
	})
	return chat
}

// newWatchCmd tails a room's live event stream over websocket until
// interrupted or the game ends.
func newWatchCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch ROOM_ID",
		Short: "Follow a room's rounds, news and prices live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			wsURL := newClient(apiBase).EventsURL(args[0], sess.AccessToken)
			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), wsURL, nil)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer conn.Close()
			printInfo("Watching " + args[0] + " (ctrl-c to stop)")

			for {
				var msg broadcast.Message
				if err := conn.ReadJSON(&msg); err != nil {
					return nil
				}
				printWatchEvent(msg)
				if msg.Event == broadcast.EventGameOver {
					printInfo("Game over.")
					return nil
				}
			}
		},
	}
}

func printWatchEvent(msg broadcast.Message) {
	prefix := fmt.Sprintf("[%s]", timestamp())
	switch msg.Event {
	case broadcast.EventGameStarted:
		success.Printf("%s game started\n", prefix)
	case broadcast.EventNewRound:
		accent.Printf("%s %s\n", prefix, summarizePayload(msg.Payload, "round"))
	case broadcast.EventNewsUpdate:
		for _, line := range payloadNews(msg.Payload) {
			warn.Printf("%s NEWS %s\n", prefix, line)
		}
	case broadcast.EventPriceUpdate:
		neutral.Printf("%s prices updated\n", prefix)
	case broadcast.EventGameOver:
		danger.Printf("%s game over\n", prefix)
	default:
		neutral.Printf("%s %s\n", prefix, msg.Event)
	}
}

func summarizePayload(payload any, key string) string {
	m, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	if v, ok := m[key].(float64); ok {
		return fmt.Sprintf("%s %d", key, int(v))
	}
	raw, _ := json.Marshal(m)
	return string(raw)
}

func payloadNews(payload any) []string {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	items, ok := m["news"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
