package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"c4solver/bitboard"
	"c4solver/config"
	"c4solver/solver"
)

func main() {
	cfg := &config.Config{}
	if err := cfg.Load(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	output.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}
	output.FormatMessage = func(i interface{}) string {
		return fmt.Sprintf("%s", i)
	}
	output.FormatFieldName = func(i interface{}) string {
		return fmt.Sprintf("%s:", i)
	}
	var logger zerolog.Logger
	if cfg.GetBool("debug") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		logger = zerolog.New(output).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		logger = zerolog.New(output).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	}
	zerolog.DefaultContextLogger = &logger
	log.Logger = logger

	s := solver.New()
	s.SetThreads(cfg.GetInt("threads"))
	s.SetTableMemFraction(cfg.GetFloat64("table-mem-fraction"))
	s.SetNodeBudget(cfg.GetUint64("node-budget"))

	if moves := cfg.GetString("moves"); moves != "" {
		if err := solveOnce(s, moves); err != nil {
			log.Err(err).Msg("solve-failed")
			os.Exit(1)
		}
		return
	}
	if err := interactive(s); err != nil {
		log.Err(err).Msg("interactive-loop-failed")
		os.Exit(1)
	}
}

func solveOnce(s *solver.Solver, moves string) error {
	pos, err := bitboard.FromMoves(moves)
	if err != nil {
		return err
	}
	fmt.Print(pos)
	tstart := time.Now()
	score, err := s.Score(context.Background(), pos)
	if err != nil {
		return err
	}
	out := solver.Evaluate(score, pos.Plies())
	log.Info().
		Int("score", score).
		Uint64("nodes", s.Nodes()).
		Float64("time-elapsed-sec", time.Since(tstart).Seconds()).
		Msg("solved")
	fmt.Printf("%s (score %d)\n", out, score)
	return nil
}

func interactive(s *solver.Solver) error {
	fmt.Println("Place a stone by typing the column number 1-7. " +
		"Press s to score every legal move, p to play the best move, q to quit.")

	pos := bitboard.Position{}
	scanner := bufio.NewScanner(os.Stdin)
	for !pos.HasWinner() && !pos.IsDraw() {
		fmt.Print(pos)
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "q":
			return nil
		case line == "s":
			printScores(s, pos)
		case line == "p":
			moves, err := s.BestMoves(context.Background(), pos)
			if err != nil {
				return err
			}
			next, err := pos.Play(moves[0])
			if err != nil {
				return err
			}
			pos = next
		case len(line) == 1 && line[0] >= '1' && line[0] <= '7':
			next, err := pos.Play(int(line[0] - '1'))
			if err != nil {
				fmt.Println(err)
				continue
			}
			pos = next
		default:
			fmt.Println("Invalid input.")
		}
	}
	fmt.Print(pos)
	if pos.HasWinner() {
		fmt.Println("Game over: four in a row.")
	} else {
		fmt.Println("Game over: board is full.")
	}
	return nil
}

func printScores(s *solver.Solver, pos bitboard.Position) {
	for col := 0; col < bitboard.Width; col++ {
		if !pos.CanPlay(col) {
			continue
		}
		if pos.IsWinningMove(col) {
			fmt.Printf("%d: win in 1 ply.\n", col+1)
			continue
		}
		child, err := pos.Play(col)
		if err != nil {
			fmt.Println(err)
			return
		}
		childScore, err := s.Score(context.Background(), child)
		if err != nil {
			fmt.Println(err)
			return
		}
		// The child's score is the opponent's; negate for the mover.
		out := solver.Evaluate(-childScore, pos.Plies())
		fmt.Printf("%d: %s\n", col+1, out)
	}
}
