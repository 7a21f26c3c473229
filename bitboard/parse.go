package bitboard

import (
	"fmt"
	"math/bits"
	"strings"
)

// FromMoves builds a position by replaying a move sequence, one digit
// per ply with players alternating implicitly. Columns are 1-based on
// the wire, so the digits 1 through 7 are valid. Illegal moves (bad
// digit, full column, or a move after the game is decided) surface an
// error rather than being skipped.
func FromMoves(moves string) (Position, error) {
	var p Position
	for i, c := range moves {
		if c < '1' || c > '7' {
			return Position{}, fmt.Errorf("move %d: character %q: %w", i+1, c, ErrIllegalMove)
		}
		if p.HasWinner() {
			return Position{}, fmt.Errorf("move %d: game already decided: %w", i+1, ErrIllegalMove)
		}
		next, err := p.Play(int(c - '1'))
		if err != nil {
			return Position{}, fmt.Errorf("move %d: %w", i+1, err)
		}
		p = next
	}
	return p, nil
}

// FromBoardString builds a position from a 42-cell drawing of the
// board, read row by row from the top-left to the bottom-right. 'x' is
// the player to move, 'o' the opponent and '.' an empty cell; every
// other character is ignored, so the drawing may contain newlines and
// spacing. The drawing must respect gravity.
func FromBoardString(board string) (Position, error) {
	board = strings.ToLower(board)
	cells := make([]rune, 0, BoardSize)
	for _, c := range board {
		if c == '.' || c == 'x' || c == 'o' {
			cells = append(cells, c)
		}
	}
	if len(cells) != BoardSize {
		return Position{}, fmt.Errorf("board drawing has %d cells, want %d", len(cells), BoardSize)
	}

	var p Position
	for i, c := range cells {
		if c == '.' {
			continue
		}
		row := Height - i/Width - 1
		col := i % Width
		bit := uint64(1) << (col*stride + row)
		if c == 'x' {
			p.current |= bit
		}
		p.mask |= bit
		p.plies++
	}

	// Gravity check: the occupied cells of every column must form a
	// contiguous run starting at the bottom.
	for col := 0; col < Width; col++ {
		colBits := p.mask & columnMask(col)
		height := bits.OnesCount64(colBits)
		want := ((uint64(1) << height) - 1) << (col * stride)
		if colBits != want {
			return Position{}, fmt.Errorf("column %d has floating stones", col+1)
		}
	}
	return p, nil
}
