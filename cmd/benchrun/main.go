package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"c4solver/bitboard"
	"c4solver/config"
	"c4solver/solver"
)

// benchCase is one line of a benchmark file: a move sequence and the
// exact score expected after applying it from the empty board.
type benchCase struct {
	moves    string
	expected int
}

func parseFile(path string) ([]benchCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := lo.Filter(strings.Split(string(data), "\n"), func(line string, _ int) bool {
		line = strings.TrimSpace(line)
		return line != "" && !strings.HasPrefix(line, "#")
	})
	return lo.Map(lines, func(line string, _ int) benchCase {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			log.Fatal().Str("line", line).Msg("malformed benchmark line")
		}
		expected, err := strconv.Atoi(fields[1])
		if err != nil {
			log.Fatal().Str("line", line).Err(err).Msg("malformed expected score")
		}
		return benchCase{moves: fields[0], expected: expected}
	}), nil
}

func main() {
	cfg := &config.Config{}
	if err := cfg.Load(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cfg.GetBool("debug") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if len(cfg.Args()) == 0 {
		fmt.Fprintln(os.Stderr, "usage: benchrun [flags] <benchfile> [<benchfile> ...]")
		os.Exit(2)
	}

	s := solver.New()
	s.SetThreads(cfg.GetInt("threads"))
	s.SetTableMemFraction(cfg.GetFloat64("table-mem-fraction"))
	s.SetNodeBudget(cfg.GetUint64("node-budget"))

	exitCode := 0
	for _, path := range cfg.Args() {
		cases, err := parseFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("cannot-load-benchmark")
		}

		var failures int
		var totalNodes uint64
		tstart := time.Now()
		for _, bc := range cases {
			pos, err := bitboard.FromMoves(bc.moves)
			if err != nil {
				log.Error().Err(err).Str("moves", bc.moves).Msg("bad-sequence")
				failures++
				continue
			}
			got, err := s.Score(context.Background(), pos)
			if err != nil {
				log.Error().Err(err).Str("moves", bc.moves).Msg("solve-aborted")
				failures++
				continue
			}
			totalNodes += s.Nodes()
			if got != bc.expected {
				log.Error().Str("moves", bc.moves).
					Int("expected", bc.expected).Int("got", got).Msg("MISMATCH")
				failures++
			}
		}
		elapsed := time.Since(tstart)
		log.Info().Str("file", path).
			Int("cases", len(cases)).
			Int("failures", failures).
			Uint64("total-nodes", totalNodes).
			Float64("time-elapsed-sec", elapsed.Seconds()).
			Float64("avg-ms-per-case", float64(elapsed.Milliseconds())/float64(len(cases))).
			Msg("benchmark-file-done")
		if failures > 0 {
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}
