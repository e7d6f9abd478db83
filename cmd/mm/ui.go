package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"marketmania/internal/arena"
	"marketmania/internal/market"
	"marketmania/internal/rooms"
	"marketmania/internal/score"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type stocksPayload struct {
	Round  int            `json:"round"`
	Stocks []market.Stock `json:"stocks"`
}

type roomShowPayload struct {
	Room         rooms.Room          `json:"room"`
	Participants []rooms.Participant `json:"participants"`
	Status       string              `json:"status"`
	Round        int                 `json:"round"`
}

type roundLeaderboardPayload struct {
	Rows    []score.RoundScore `json:"rows"`
	Message string             `json:"message"`
}

type finalLeaderboardPayload struct {
	Rows    []score.FinalScore `json:"rows"`
	Message string             `json:"message"`
}

type chatsPayload struct {
	Messages []rooms.ChatMessage `json:"messages"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func promptInt(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func promptFloat(label string, min float64) (float64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			printWarn("Enter a valid number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %.2f", min))
			continue
		}
		return v, nil
	}
}

func renderRoom(raw map[string]any) error {
	out, err := decodeInto[roomShowPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== ROOM %s ==\n", out.Room.RoomID)
	fmt.Printf("Name:         %s\n", out.Room.Name)
	fmt.Printf("Host:         %s\n", out.Room.CreatedBy)
	fmt.Printf("Status:       %s\n", out.Status)
	fmt.Printf("Round:        %d/%d\n", out.Round, out.Room.NumRounds)
	fmt.Printf("Round time:   %ds\n", out.Room.RoundTime)
	fmt.Printf("Stocks:       %d\n", out.Room.NumStocks)
	fmt.Printf("Start cash:   %s\n", formatMoney(out.Room.InitialCash))
	fmt.Printf("Players:      %d/%d\n", len(out.Participants), out.Room.MaxPlayers)
	for _, p := range out.Participants {
		fmt.Printf("  - %s (joined %s)\n", p.Username, p.JoinedAt.Local().Format("15:04:05"))
	}
	fmt.Println()
	return nil
}

func renderStocks(raw map[string]any) error {
	out, err := decodeInto[stocksPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== MARKET (round %d) ==\n", out.Round)
	if len(out.Stocks) == 0 {
		printInfo("No stocks in play.")
		return nil
	}
	fmt.Printf("%-16s %12s %8s %12s %-24s\n", "STOCK", "PRICE", "P/E", "VOLUME", "SECTORS")
	for _, s := range out.Stocks {
		fmt.Printf("%-16s %12s %8.1f %12d %-24s\n",
			truncate(s.Name, 16),
			formatMoney(s.Price),
			s.PERatio,
			s.TotalVolume,
			truncate(strings.Join(s.Sectors, ","), 24),
		)
	}
	fmt.Println()
	return nil
}

func renderPortfolio(raw map[string]any) error {
	out, err := decodeInto[arena.PortfolioView](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== PORTFOLIO ==")
	fmt.Printf("Cash:       %s\n", formatMoney(out.Cash))
	fmt.Printf("Holdings:   %s\n", colorizeMoney(out.PortfolioValue))
	fmt.Printf("Net Worth:  %s\n", formatMoney(out.NetWorth))
	if len(out.Positions) == 0 {
		printInfo("No open positions.")
		return nil
	}
	fmt.Println()
	fmt.Printf("%-16s %10s %12s %14s\n", "STOCK", "QTY", "PRICE", "VALUE")
	for _, p := range out.Positions {
		fmt.Printf("%-16s %10d %12s %14s\n",
			truncate(p.Stock, 16),
			p.Quantity,
			formatMoney(p.Price),
			colorizeMoney(p.Value),
		)
	}
	fmt.Println()
	return nil
}

func renderTrade(raw map[string]any) error {
	out, err := decodeInto[arena.TradeResult](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== %s %s ==\n", strings.ToUpper(out.Side), out.Stock)
	fmt.Printf("Quantity:   %d\n", out.Quantity)
	fmt.Printf("Fill price: %s\n", formatMoney(out.FillPrice))
	fmt.Printf("New price:  %s\n", formatMoney(out.NewPrice))
	fmt.Printf("Cash:       %s\n", formatMoney(out.Cash))
	fmt.Printf("Position:   %d\n", out.Position)
	fmt.Println()
	return nil
}

func renderRoundLeaderboard(raw map[string]any, round int) error {
	out, err := decodeInto[roundLeaderboardPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== LEADERBOARD round %d ==\n", round)
	if len(out.Rows) == 0 {
		printInfo(firstNonEmpty(out.Message, "No scores submitted yet."))
		return nil
	}
	fmt.Printf("%-6s %-24s %14s %14s %14s\n", "POS", "PLAYER", "CASH", "HOLDINGS", "NET WORTH")
	for i, row := range out.Rows {
		fmt.Printf("%-6d %-24s %14s %14s %14s\n",
			i+1,
			truncate(row.UserID, 24),
			formatMoney(row.Cash),
			formatMoney(row.PortfolioValue),
			formatMoney(row.NetWorth),
		)
	}
	fmt.Println()
	return nil
}

func renderFinalLeaderboard(raw map[string]any) error {
	out, err := decodeInto[finalLeaderboardPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== FINAL LEADERBOARD ==")
	if len(out.Rows) == 0 {
		printInfo(firstNonEmpty(out.Message, "No scores submitted yet."))
		return nil
	}
	fmt.Printf("%-6s %-24s %14s\n", "RANK", "PLAYER", "NET WORTH")
	for _, row := range out.Rows {
		fmt.Printf("%-6d %-24s %14s\n",
			row.FinalRank,
			truncate(row.UserID, 24),
			formatMoney(row.FinalNetWorth),
		)
	}
	fmt.Println()
	return nil
}

func renderChats(raw map[string]any) error {
	out, err := decodeInto[chatsPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== CHAT ==")
	if len(out.Messages) == 0 {
		printInfo("No messages yet.")
		return nil
	}
	for _, m := range out.Messages {
		fmt.Printf("[%s] %s: %s\n", m.SentAt.Local().Format("15:04:05"), m.Username, m.Body)
	}
	fmt.Println()
	return nil
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func colorizeMoney(v float64) string {
	text := formatMoney(v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func formatMoney(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}
