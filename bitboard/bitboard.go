// Package bitboard holds the compact representation of a Connect Four
// position. Each column occupies seven bits of a uint64: six playable
// cells plus one sentinel bit on top that stops carries from bleeding
// into the neighboring column.
//
// Bit layout (bit index per cell, columns left to right):
//
//	.  .  .  .  .  .  .   <- sentinel row, always 0
//	5 12 19 26 33 40 47
//	4 11 18 25 32 39 46
//	3 10 17 24 31 38 45
//	2  9 16 23 30 37 44
//	1  8 15 22 29 36 43
//	0  7 14 21 28 35 42
package bitboard

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

const (
	// Width and Height of the standard board.
	Width  = 7
	Height = 6
	// BoardSize is the total number of playable cells.
	BoardSize = Width * Height
	// Center is the index of the middle column.
	Center = Width / 2

	// stride is the number of bits per column (Height playable plus
	// the sentinel).
	stride = Height + 1
)

// bottomMask has one bit set at the bottom cell of every column.
const bottomMask uint64 = 0x0040810204081

// boardMask covers every playable cell (sentinel bits excluded).
const boardMask uint64 = bottomMask * ((1 << Height) - 1)

var (
	// ErrIllegalMove is returned when a move targets a full or
	// out-of-range column, or a game that is already decided.
	ErrIllegalMove = errors.New("illegal move")
	// ErrIllegalState is returned when an operation requires a live
	// position but the board already contains a four-in-a-row.
	ErrIllegalState = errors.New("position is already decided")
)

// Position is an immutable snapshot of a game. The zero value is the
// empty board with the first player to move. Deriving a child with Play
// never mutates the receiver, so values can be shared freely.
type Position struct {
	// current holds the stones of the player to move.
	current uint64
	// mask holds the stones of both players.
	mask  uint64
	plies int
}

// Plies returns the number of stones placed so far.
func (p Position) Plies() int {
	return p.plies
}

// CanPlay reports whether a stone can be dropped into col.
func (p Position) CanPlay(col int) bool {
	if col < 0 || col >= Width {
		return false
	}
	return p.mask&topMaskCol(col) == 0
}

// Play returns the position after the player to move drops a stone into
// col. The roles swap: the returned position's current player is the
// opponent. Playing into a full or out-of-range column is an error,
// never a silent no-op.
func (p Position) Play(col int) (Position, error) {
	if !p.CanPlay(col) {
		return Position{}, fmt.Errorf("column %d: %w", col+1, ErrIllegalMove)
	}
	return Position{
		current: p.current ^ p.mask,
		mask:    p.mask | (p.mask + bottomMaskCol(col)),
		plies:   p.plies + 1,
	}, nil
}

// IsWinningMove reports whether dropping a stone into col completes a
// four-in-a-row for the player to move. Full or out-of-range columns
// are never winning. This is a constant-time bit test, not a scan.
func (p Position) IsWinningMove(col int) bool {
	if !p.CanPlay(col) {
		return false
	}
	stone := (p.mask + bottomMaskCol(col)) & columnMask(col)
	return aligned(p.current | stone)
}

// CanWinNext reports whether the player to move has at least one
// immediately winning column.
func (p Position) CanWinNext() bool {
	return winningPositions(p.current, p.mask)&p.possible() != 0
}

// IsDraw reports whether the board is completely full. A full board
// that still contains a four-in-a-row is not a draw; callers detect
// that case with HasWinner before the last stone is placed.
func (p Position) IsDraw() bool {
	return p.plies == BoardSize
}

// HasWinner reports whether either player already has four in a row.
// After a sequence of legal plays only the opponent (the player who
// just moved) can be aligned, but arbitrary constructions are checked
// on both sides.
func (p Position) HasWinner() bool {
	return aligned(p.current) || aligned(p.current^p.mask)
}

// Key returns the canonical 64-bit key of the position: current + mask
// uniquely identifies a reachable position, and the smaller of the key
// and its horizontal mirror is used so that mirror-image positions
// share one transposition-table entry.
func (p Position) Key() uint64 {
	key := p.current + p.mask
	mc, mm := p.mirrored()
	if mk := mc + mm; mk < key {
		return mk
	}
	return key
}

// Mirror returns the position with the column order reversed.
func (p Position) Mirror() Position {
	mc, mm := p.mirrored()
	return Position{current: mc, mask: mm, plies: p.plies}
}

func (p Position) mirrored() (current, mask uint64) {
	for col := 0; col < Center; col++ {
		mcol := Width - 1 - col
		shift := uint64((mcol - col) * stride)
		current |= (p.current & columnMask(col)) << shift
		current |= (p.current & columnMask(mcol)) >> shift
		mask |= (p.mask & columnMask(col)) << shift
		mask |= (p.mask & columnMask(mcol)) >> shift
	}
	current |= p.current & columnMask(Center)
	mask |= p.mask & columnMask(Center)
	return current, mask
}

// MoveScore counts the open four-in-a-row alignments the player to move
// would participate in after dropping a stone into col. Higher counts
// make stronger moves; the solver's move ordering uses this as its
// heuristic. The column must be playable.
func (p Position) MoveScore(col int) int {
	stone := (p.mask + bottomMaskCol(col)) & columnMask(col)
	return bits.OnesCount64(winningPositions(p.current|stone, p.mask))
}

// PossibleNonLosingMoves returns a cell mask of moves that do not hand
// the opponent an immediate win: if the opponent threatens a cell we
// must play it (two such threats are hopeless, mask is 0), and we never
// play directly below an opponent threat.
func (p Position) PossibleNonLosingMoves() uint64 {
	possible := p.possible()
	oppWins := winningPositions(p.current^p.mask, p.mask)
	forced := possible & oppWins
	if forced != 0 {
		if forced&(forced-1) != 0 {
			return 0
		}
		possible = forced
	}
	return possible &^ (oppWins >> 1)
}

// LandingCell returns the bit of the cell a stone dropped into col
// would occupy, or 0 for a full or out-of-range column. Useful for
// intersecting a candidate move with a cell mask such as
// PossibleNonLosingMoves.
func (p Position) LandingCell(col int) uint64 {
	if !p.CanPlay(col) {
		return 0
	}
	return (p.mask + bottomMaskCol(col)) & columnMask(col)
}

// possible returns a mask of the cells the next stone can land in.
func (p Position) possible() uint64 {
	return (p.mask + bottomMask) & boardMask
}

// aligned reports whether stones contains four in a row in any of the
// four directions. Shifting by 1x and 2x the direction offset and
// AND-ing leaves a bit set only where four consecutive cells are
// occupied; the sentinel row keeps columns from interfering.
func aligned(stones uint64) bool {
	// Horizontal.
	m := stones & (stones >> stride)
	if m&(m>>(2*stride)) != 0 {
		return true
	}
	// Diagonal, bottom-left to top-right.
	m = stones & (stones >> (stride + 1))
	if m&(m>>(2*(stride+1))) != 0 {
		return true
	}
	// Diagonal, top-left to bottom-right.
	m = stones & (stones >> (stride - 1))
	if m&(m>>(2*(stride-1))) != 0 {
		return true
	}
	// Vertical.
	m = stones & (stones >> 1)
	return m&(m>>2) != 0
}

// winningPositions returns a mask of every open cell that would
// complete a four-in-a-row for the player owning stones. Cells already
// occupied by either player are excluded; unreachable floating cells
// are not.
func winningPositions(stones, mask uint64) uint64 {
	// Vertical: only winnable by stacking a fourth stone on three.
	r := (stones << 1) & (stones << 2) & (stones << 3)

	// The other three directions admit a completion at either end or
	// in a one-cell gap.
	for _, shift := range [3]uint64{stride, stride + 1, stride - 1} {
		p2 := (stones << shift) & (stones << (2 * shift))
		r |= p2 & (stones << (3 * shift))
		r |= p2 & (stones >> shift)
		p2 >>= 3 * shift
		r |= p2 & (stones << shift)
		r |= p2 & (stones >> (3 * shift))
	}
	return r & (boardMask ^ mask)
}

// String renders the board with X for the first player and O for the
// second, bottom row last, with a 1-based column footer.
func (p Position) String() string {
	playerOne := p.current
	if p.plies%2 == 1 {
		playerOne = p.current ^ p.mask
	}
	var sb strings.Builder
	for row := Height - 1; row >= 0; row-- {
		for col := 0; col < Width; col++ {
			bit := uint64(1) << (col*stride + row)
			switch {
			case playerOne&bit != 0:
				sb.WriteString("|X")
			case p.mask&bit != 0:
				sb.WriteString("|O")
			default:
				sb.WriteString("| ")
			}
		}
		sb.WriteString("|\n")
	}
	sb.WriteString("---------------\n 1 2 3 4 5 6 7\n")
	return sb.String()
}

func topMaskCol(col int) uint64 {
	return uint64(1) << (col*stride + Height - 1)
}

func bottomMaskCol(col int) uint64 {
	return uint64(1) << (col * stride)
}

func columnMask(col int) uint64 {
	return ((uint64(1) << Height) - 1) << (col * stride)
}
