// Package solver computes the exact game-theoretic value of Connect
// Four positions: recursive negamax with alpha-beta pruning over a
// transposition table, driven by an iterative-narrowing loop of
// null-window probes.
package solver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/frand"

	"c4solver/bitboard"
)

// thanks Wikipedia:
/*
function negamax(node, depth, α, β, color) is
    if depth = 0 or node is a terminal node then
        return color × the heuristic value of node

    childNodes := generateMoves(node)
    childNodes := orderMoves(childNodes)
    value := −∞
    foreach child in childNodes do
        value := max(value, −negamax(child, depth − 1, −β, −α, −color))
        α := max(α, value)
        if α ≥ β then
            break (* cut-off *)
    return value
(* Initial call for Player A's root node *)
negamax(rootNode, depth, −∞, +∞, 1)
**/

// Score scale: 0 is a draw under perfect play. A positive score N means
// the player to move forces a win, placing the winning stone when
// 43 - 2N (or 42 - 2N, parity deciding) stones are on the board; larger
// N is a faster win. Negative is the mirror image for the opponent.
// score = (42 + 1 - pliesOnBoardBeforeWinningStone) / 2.

const (
	// MinScore and MaxScore bound every reachable score: a win needs
	// at least seven plies on the board.
	MinScore = -(bitboard.BoardSize)/2 + 3
	MaxScore = (bitboard.BoardSize+1)/2 - 3
)

// ErrBudgetExceeded aborts a solve that ran past its node budget. The
// position's outcome is then unknown, which callers must keep distinct
// from a draw.
var ErrBudgetExceeded = errors.New("node budget exceeded")

// budgetCheckMask throttles how often the context and node budget are
// polled inside the search.
const budgetCheckMask = (1 << 12) - 1

// Solver owns the search state: the transposition table and the solve
// configuration. A Solver is not safe for concurrent use; the table it
// points at may be shared between Solvers.
type Solver struct {
	ttable                  *TranspositionTable
	transpositionTableOptim bool
	tableMemFraction        float64
	threads                 int
	nodeBudget              uint64
	nodes                   atomic.Uint64
}

// New returns a Solver with the transposition table enabled, backed by
// the global table, and single-threaded search.
func New() *Solver {
	return &Solver{
		ttable:                  GlobalTranspositionTable,
		transpositionTableOptim: true,
		tableMemFraction:        0.25,
		threads:                 1,
	}
}

// SetThreads configures the root-split parallel mode. Anything below 2
// keeps the solve single-threaded.
func (s *Solver) SetThreads(threads int) {
	if threads < 2 {
		s.threads = 1
		return
	}
	s.threads = threads
}

// SetTranspositionTableOptim turns the cache on or off. Disabling it
// never changes a returned score, only the time to compute it.
func (s *Solver) SetTranspositionTableOptim(tt bool) {
	s.transpositionTableOptim = tt
}

// SetTranspositionTable points the solver at a specific table instead
// of the global one.
func (s *Solver) SetTranspositionTable(tt *TranspositionTable) {
	s.ttable = tt
}

// SetTableMemFraction sets the fraction of system memory the table is
// sized to when it has to be (re)allocated.
func (s *Solver) SetTableMemFraction(f float64) {
	s.tableMemFraction = f
}

// SetNodeBudget caps the number of nodes a single Score call may
// expand; 0 means unlimited. An exhausted budget aborts the solve with
// ErrBudgetExceeded.
func (s *Solver) SetNodeBudget(n uint64) {
	s.nodeBudget = n
}

// Nodes returns the number of nodes expanded by the last Score call.
func (s *Solver) Nodes() uint64 {
	return s.nodes.Load()
}

// Score returns the exact score of pos. It is an error to score a
// position that already contains a four-in-a-row; the bit representation
// alone cannot tell a finished game from a live one, so the caller has
// to detect the win when it happens.
func (s *Solver) Score(ctx context.Context, pos bitboard.Position) (int, error) {
	if pos.HasWinner() {
		return 0, fmt.Errorf("score: %w", bitboard.ErrIllegalState)
	}
	if s.threads == 1 && s.transpositionTableOptim && !s.ttable.initialized() {
		s.ttable.Reset(s.tableMemFraction)
	}
	s.nodes.Store(0)
	tstart := time.Now()

	g := &errgroup.Group{}
	done := make(chan bool)
	g.Go(func() error {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		var lastNodes uint64
		for {
			select {
			case <-done:
				return nil
			case <-ticker.C:
				nodes := s.nodes.Load()
				log.Debug().Uint64("nps", nodes-lastNodes).Msg("nodes-per-second")
				lastNodes = nodes
			}
		}
	})

	var score int
	g.Go(func() error {
		var err error
		if s.threads > 1 {
			score, err = s.scoreRootSplit(ctx, pos)
		} else {
			score, err = s.iterativelyNarrow(ctx, pos)
		}
		done <- true
		return err
	})
	err := g.Wait()

	log.Debug().
		Uint64("nodes", s.nodes.Load()).
		Uint64("ttable-created", s.ttable.created.Load()).
		Uint64("ttable-lookups", s.ttable.lookups.Load()).
		Uint64("ttable-hits", s.ttable.hits.Load()).
		Uint64("ttable-t2collisions", s.ttable.t2collisions.Load()).
		Float64("time-elapsed-sec", time.Since(tstart).Seconds()).
		Msg("score-returning")
	return score, err
}

// iterativelyNarrow converges on the exact score with null-window
// probes. A window of width one prunes far more aggressively than a
// wide one, and the transposition table recycles most of the work
// between probes, so O(log range) probes beat one full-width search.
func (s *Solver) iterativelyNarrow(ctx context.Context, pos bitboard.Position) (int, error) {
	min := -(bitboard.BoardSize - pos.Plies()) / 2
	max := (bitboard.BoardSize + 1 - pos.Plies()) / 2

	for min < max {
		med := min + (max-min)/2
		// Probe near zero first: most positions are decided late, so
		// small magnitudes are the likeliest answers.
		if med <= 0 && min/2 < med {
			med = min / 2
		} else if med >= 0 && max/2 > med {
			med = max / 2
		}
		r, err := s.negamax(ctx, pos, med, med+1)
		if err != nil {
			return 0, err
		}
		if r <= med {
			max = r
		} else {
			min = r
		}
		log.Debug().Int("probe", med).Int("result", r).
			Int("min", min).Int("max", max).Msg("narrowing")
	}
	return min, nil
}

// negamax returns the exact score of pos if it falls inside
// (alpha, beta); otherwise it returns a bound on the correct side of
// the window. The score is always from the perspective of the player
// to move, so a child's value is negated before use.
func (s *Solver) negamax(ctx context.Context, pos bitboard.Position, alpha, beta int) (int, error) {
	if nodes := s.nodes.Add(1); nodes&budgetCheckMask == 0 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if s.nodeBudget > 0 && nodes > s.nodeBudget {
			return 0, ErrBudgetExceeded
		}
	}

	// A full board with no prior win is a draw.
	if pos.IsDraw() {
		return 0, nil
	}

	// A one-move win is always the search-ending best move; no
	// recursion needed.
	for col := 0; col < bitboard.Width; col++ {
		if pos.IsWinningMove(col) {
			return (bitboard.BoardSize + 1 - pos.Plies()) / 2, nil
		}
	}

	// If every move hands the opponent an immediate win, the game ends
	// with their stone two plies from now.
	nonLosing := pos.PossibleNonLosingMoves()
	if nonLosing == 0 {
		return -(bitboard.BoardSize - pos.Plies()) / 2, nil
	}

	// Since we can't win this move, the best case is winning two plies
	// from now; cap beta accordingly.
	max := (bitboard.BoardSize - 1 - pos.Plies()) / 2
	if beta > max {
		beta = max
		if alpha >= beta {
			return alpha, nil
		}
	}

	alphaOrig := alpha
	if s.transpositionTableOptim {
		entry := s.ttable.lookup(pos.Key())
		if entry.valid() {
			v := int(entry.score)
			switch entry.flag {
			case ttExact:
				return v, nil
			case ttLower:
				if v > alpha {
					alpha = v
				}
			case ttUpper:
				if v < beta {
					beta = v
				}
			}
			if alpha >= beta {
				return v, nil
			}
		}
	}

	bestValue := -bitboard.BoardSize
	for _, col := range OrderedColumns(pos) {
		// Moves that lose on the spot score strictly worse than any
		// surviving move, so skipping them never changes the maximum.
		if pos.LandingCell(col)&nonLosing == 0 {
			continue
		}
		child, err := pos.Play(col)
		if err != nil {
			return 0, err
		}
		value, err := s.negamax(ctx, child, -beta, -alpha)
		if err != nil {
			return 0, err
		}
		if -value > bestValue {
			bestValue = -value
		}
		if bestValue > alpha {
			alpha = bestValue
		}
		if bestValue >= beta {
			break // beta cut-off
		}
	}

	if s.transpositionTableOptim {
		var flag uint8
		switch {
		case bestValue <= alphaOrig:
			flag = ttUpper
		case bestValue >= beta:
			flag = ttLower
		default:
			flag = ttExact
		}
		s.ttable.store(pos.Key(), int16(bestValue), flag)
	}
	return bestValue, nil
}

// scoreRootSplit solves the root by distributing its children over
// worker goroutines, each with a private transposition table. Results
// are combined exactly like a serial root expansion, so the score is
// identical to the single-threaded one.
func (s *Solver) scoreRootSplit(ctx context.Context, pos bitboard.Position) (int, error) {
	if pos.IsDraw() {
		return 0, nil
	}
	for col := 0; col < bitboard.Width; col++ {
		if pos.IsWinningMove(col) {
			return (bitboard.BoardSize + 1 - pos.Plies()) / 2, nil
		}
	}

	cols := OrderedColumns(pos)
	// Randomizing the assignment spreads the expensive central columns
	// across workers.
	frand.Shuffle(len(cols), func(i, j int) {
		cols[i], cols[j] = cols[j], cols[i]
	})

	workers := s.threads
	if workers > len(cols) {
		workers = len(cols)
	}
	log.Debug().Int("workers", workers).Ints("root-order", cols).Msg("root-split")

	scores := make([]int, len(cols))
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			ws := &Solver{
				ttable:                  &TranspositionTable{},
				transpositionTableOptim: s.transpositionTableOptim,
				tableMemFraction:        s.tableMemFraction / float64(workers),
				threads:                 1,
				nodeBudget:              s.nodeBudget,
			}
			if ws.transpositionTableOptim {
				ws.ttable.Reset(ws.tableMemFraction)
			}
			for i := w; i < len(cols); i += workers {
				child, err := pos.Play(cols[i])
				if err != nil {
					return err
				}
				v, err := ws.iterativelyNarrow(gctx, child)
				if err != nil {
					return err
				}
				scores[i] = v
				s.nodes.Add(ws.nodes.Load())
				ws.nodes.Store(0)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	best := -bitboard.BoardSize
	for _, v := range scores {
		if -v > best {
			best = -v
		}
	}
	return best, nil
}

// BestMoves returns the columns whose child positions score worst for
// the opponent, i.e. the optimal moves for the player to move. Several
// columns can tie for best.
func (s *Solver) BestMoves(ctx context.Context, pos bitboard.Position) ([]int, error) {
	if pos.HasWinner() {
		return nil, fmt.Errorf("best moves: %w", bitboard.ErrIllegalState)
	}
	best := -bitboard.BoardSize - 1
	var moves []int
	for _, col := range OrderedColumns(pos) {
		var v int
		if pos.IsWinningMove(col) {
			v = (bitboard.BoardSize + 1 - pos.Plies()) / 2
		} else {
			child, err := pos.Play(col)
			if err != nil {
				return nil, err
			}
			childScore, err := s.Score(ctx, child)
			if err != nil {
				return nil, err
			}
			v = -childScore
		}
		switch {
		case v > best:
			best = v
			moves = moves[:0]
			moves = append(moves, col)
		case v == best:
			moves = append(moves, col)
		}
	}
	return moves, nil
}
