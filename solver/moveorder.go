package solver

import (
	"sort"

	"c4solver/bitboard"
)

// columnOrder is the static exploration preference: center first, then
// alternating outward. Central columns take part in more alignments,
// so they tend to produce cutoffs earlier.
var columnOrder = [bitboard.Width]int{3, 2, 4, 1, 5, 0, 6}

// OrderedColumns returns the legal columns of p, best candidates first.
// Columns are ranked by the number of open alignments the move would
// join (see bitboard.MoveScore); ties keep the static center-out order.
// The order is advisory: exploring in any order yields the same score,
// a good order just prunes more of the tree.
func OrderedColumns(p bitboard.Position) []int {
	type scoredCol struct {
		col   int
		score int
	}
	moves := make([]scoredCol, 0, bitboard.Width)
	for _, col := range columnOrder {
		if !p.CanPlay(col) {
			continue
		}
		moves = append(moves, scoredCol{col: col, score: p.MoveScore(col)})
	}
	sort.SliceStable(moves, func(i, j int) bool {
		return moves[i].score > moves[j].score
	})
	cols := make([]int, len(moves))
	for i, m := range moves {
		cols[i] = m.col
	}
	return cols
}
