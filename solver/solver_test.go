package solver

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"

	"c4solver/bitboard"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

func mustFromMoves(t testing.TB, moves string) bitboard.Position {
	t.Helper()
	p, err := bitboard.FromMoves(moves)
	if err != nil {
		t.Fatalf("FromMoves(%q): %v", moves, err)
	}
	return p
}

// scoreSlow is the exhaustive reference: plain negamax with no
// pruning, ordering, or caching. Only usable near the end of the game.
func scoreSlow(p bitboard.Position) int {
	if p.IsDraw() {
		return 0
	}
	for col := 0; col < bitboard.Width; col++ {
		if p.IsWinningMove(col) {
			return (bitboard.BoardSize + 1 - p.Plies()) / 2
		}
	}
	best := -bitboard.BoardSize
	for col := 0; col < bitboard.Width; col++ {
		if !p.CanPlay(col) {
			continue
		}
		child, err := p.Play(col)
		if err != nil {
			panic(err)
		}
		if v := -scoreSlow(child); v > best {
			best = v
		}
	}
	return best
}

// randomLivePosition plays random non-winning moves until target plies
// are on the board. Reports false if the playout got stuck before then.
func randomLivePosition(target int) (bitboard.Position, bool) {
	var p bitboard.Position
	for p.Plies() < target {
		var cols []int
		for col := 0; col < bitboard.Width; col++ {
			if p.CanPlay(col) && !p.IsWinningMove(col) {
				cols = append(cols, col)
			}
		}
		if len(cols) == 0 {
			return p, false
		}
		next, err := p.Play(cols[frand.Intn(len(cols))])
		if err != nil {
			return p, false
		}
		p = next
	}
	return p, true
}

func TestKnownEndgames(t *testing.T) {
	is := is.New(t)
	s := New()
	for _, tc := range []struct {
		moves string
		score int
	}{
		// Three stacked stones, win on top.
		{"121212", 18},
		{"767676", 18},
		// Immediate horizontal completion.
		{"1223344", 18},
		// Playing column 5 (or 2) builds an unstoppable double threat.
		{"3344", 18},
		// The same double threat seen from the defender.
		{"33445", -18},
	} {
		got, err := s.Score(context.Background(), mustFromMoves(t, tc.moves))
		is.NoErr(err)
		if got != tc.score {
			t.Errorf("Score(%q) = %d, want %d", tc.moves, got, tc.score)
		}
	}
}

func TestFastestLossOutcome(t *testing.T) {
	is := is.New(t)
	s := New()
	pos := mustFromMoves(t, "33445")
	score, err := s.Score(context.Background(), pos)
	is.NoErr(err)
	is.Equal(score, -18)

	out := Evaluate(score, pos.Plies())
	is.Equal(out.Verdict, VerdictLoss)
	// Defender blocks one end, the winner takes the other: two plies.
	is.Equal(out.PliesToEnd, 2)
}

func TestNegamaxConsistency(t *testing.T) {
	// score(P) must equal the best negated child score, and exactly
	// the winning value when an immediate win exists.
	require := require.New(t)
	s := New()
	ctx := context.Background()

	tested := 0
	for tested < 12 {
		p, ok := randomLivePosition(32)
		if !ok {
			continue
		}
		tested++

		if p.CanWinNext() {
			got, err := s.Score(ctx, p)
			require.NoError(err)
			require.Equal((bitboard.BoardSize+1-p.Plies())/2, got)
			continue
		}

		got, err := s.Score(ctx, p)
		require.NoError(err)
		best := -bitboard.BoardSize
		for _, col := range OrderedColumns(p) {
			child, err := p.Play(col)
			require.NoError(err)
			childScore, err := s.Score(ctx, child)
			require.NoError(err)
			if v := -childScore; v > best {
				best = v
			}
		}
		require.Equal(best, got, "position:\n%s", p)
	}
}

func TestMirrorSymmetry(t *testing.T) {
	require := require.New(t)
	s := New()
	ctx := context.Background()

	tested := 0
	for tested < 15 {
		p, ok := randomLivePosition(31)
		if !ok {
			continue
		}
		tested++
		got, err := s.Score(ctx, p)
		require.NoError(err)
		mirrored, err := s.Score(ctx, p.Mirror())
		require.NoError(err)
		require.Equal(got, mirrored, "position:\n%s", p)
		require.GreaterOrEqual(got, MinScore)
		require.LessOrEqual(got, MaxScore)
	}
}

func TestAgainstExhaustiveSearch(t *testing.T) {
	require := require.New(t)
	s := New()
	ctx := context.Background()

	tested := 0
	for tested < 20 {
		p, ok := randomLivePosition(36)
		if !ok {
			continue
		}
		tested++
		got, err := s.Score(ctx, p)
		require.NoError(err)
		require.Equal(scoreSlow(p), got, "position:\n%s", p)
	}
}

func TestCacheTransparency(t *testing.T) {
	// Disabling the table must never change a score, only the cost.
	require := require.New(t)
	cached := New()
	uncached := New()
	uncached.SetTranspositionTableOptim(false)
	ctx := context.Background()

	positions := []bitboard.Position{
		mustFromMoves(t, "3344"),
		mustFromMoves(t, "33445"),
		mustFromMoves(t, "1223344"),
	}
	for i := 0; i < 8; i++ {
		if p, ok := randomLivePosition(34); ok {
			positions = append(positions, p)
		}
	}
	for _, p := range positions {
		want, err := cached.Score(ctx, p)
		require.NoError(err)
		got, err := uncached.Score(ctx, p)
		require.NoError(err)
		require.Equal(want, got, "position:\n%s", p)
	}
}

func TestFullBoardIsDrawn(t *testing.T) {
	is := is.New(t)
	p, err := bitboard.FromBoardString(`
		xoxoxox
		xoxoxox
		oxoxoxo
		oxoxoxo
		xoxoxox
		ooxoxox
	`)
	is.NoErr(err)
	is.True(p.IsDraw())
	s := New()
	score, err := s.Score(context.Background(), p)
	is.NoErr(err)
	is.Equal(score, 0)
	is.Equal(Evaluate(score, p.Plies()).Verdict, VerdictDraw)
}

func TestScoreRejectsDecidedPosition(t *testing.T) {
	is := is.New(t)
	s := New()
	_, err := s.Score(context.Background(), mustFromMoves(t, "1212121"))
	is.True(errors.Is(err, bitboard.ErrIllegalState))
	_, err = s.BestMoves(context.Background(), mustFromMoves(t, "1212121"))
	is.True(errors.Is(err, bitboard.ErrIllegalState))
}

func TestNodeBudget(t *testing.T) {
	is := is.New(t)
	s := New()
	s.SetTranspositionTable(&TranspositionTable{})
	s.SetTableMemFraction(0.01)
	s.SetNodeBudget(100)
	_, err := s.Score(context.Background(), mustFromMoves(t, "44"))
	is.True(errors.Is(err, ErrBudgetExceeded))
}

func TestContextCancellation(t *testing.T) {
	is := is.New(t)
	s := New()
	s.SetTranspositionTable(&TranspositionTable{})
	s.SetTableMemFraction(0.01)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Score(ctx, mustFromMoves(t, "44"))
	is.True(errors.Is(err, context.Canceled))
}

func TestBestMovesFindsTheWin(t *testing.T) {
	is := is.New(t)
	s := New()

	// A winning column dominates everything else.
	moves, err := s.BestMoves(context.Background(), mustFromMoves(t, "121212"))
	is.NoErr(err)
	is.Equal(moves, []int{0})

	// Both double-threat columns win equally fast from "3344".
	moves, err = s.BestMoves(context.Background(), mustFromMoves(t, "3344"))
	is.NoErr(err)
	is.Equal(len(moves), 2)
	has := map[int]bool{}
	for _, m := range moves {
		has[m] = true
	}
	is.True(has[1] && has[4])
}

func TestParallelRootSplit(t *testing.T) {
	require := require.New(t)
	serial := New()
	parallel := New()
	parallel.SetThreads(2)
	parallel.SetTableMemFraction(0.02)
	ctx := context.Background()

	for _, moves := range []string{"3344", "33445", "1223344"} {
		p := mustFromMoves(t, moves)
		want, err := serial.Score(ctx, p)
		require.NoError(err)
		got, err := parallel.Score(ctx, p)
		require.NoError(err)
		require.Equal(want, got, "moves %q", moves)
	}

	tested := 0
	for tested < 6 {
		p, ok := randomLivePosition(33)
		if !ok {
			continue
		}
		tested++
		want, err := serial.Score(ctx, p)
		require.NoError(err)
		got, err := parallel.Score(ctx, p)
		require.NoError(err)
		require.Equal(want, got, "position:\n%s", p)
	}
}

func TestEmptyBoardIsFirstPlayerWin(t *testing.T) {
	if os.Getenv("C4SOLVE_FULL_SOLVE") == "" {
		t.Skip("set C4SOLVE_FULL_SOLVE to solve the whole game")
	}
	assert := assert.New(t)
	s := New()
	score, err := s.Score(context.Background(), bitboard.Position{})
	assert.NoError(err)
	// The documented theoretical result: the first player forces a win
	// with the last stone they have.
	assert.Equal(1, score)
}
