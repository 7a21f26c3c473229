package solver

import (
	"fmt"

	"c4solver/bitboard"
)

// Verdict is the qualitative result of a solved position, from the
// point of view of the player to move.
type Verdict int

const (
	// VerdictUnknown marks an aborted solve (budget or cancellation).
	// It is never conflated with a draw.
	VerdictUnknown Verdict = iota
	VerdictDraw
	VerdictWin
	VerdictLoss
)

func (v Verdict) String() string {
	switch v {
	case VerdictDraw:
		return "draw"
	case VerdictWin:
		return "win"
	case VerdictLoss:
		return "loss"
	default:
		return "unknown"
	}
}

// Outcome is the translated form of a raw search score.
type Outcome struct {
	Verdict Verdict
	// Score is the raw signed score the verdict was derived from.
	Score int
	// PliesToEnd is the number of plies until the game ends under
	// perfect play by both sides: until the winning stone for a win or
	// loss, until the board fills up for a draw. Zero for unknown.
	PliesToEnd int
}

func (o Outcome) String() string {
	switch o.Verdict {
	case VerdictDraw:
		return fmt.Sprintf("draw in %d plies", o.PliesToEnd)
	case VerdictWin:
		return fmt.Sprintf("win in %d plies", o.PliesToEnd)
	case VerdictLoss:
		return fmt.Sprintf("loss in %d plies", o.PliesToEnd)
	default:
		return "unknown"
	}
}

// Evaluate translates a raw score for a position with plies stones on
// the board. Pure function; a well-formed score cannot fail.
//
// The winning stone lands at ply 44-2N or 43-2N (N the score
// magnitude); which of the two follows from whose turn it is, since
// the winner's stones land on every second ply.
func Evaluate(score, plies int) Outcome {
	if score == 0 {
		return Outcome{Verdict: VerdictDraw, Score: 0, PliesToEnd: bitboard.BoardSize - plies}
	}

	n := score
	if n < 0 {
		n = -n
	}
	winPly := bitboard.BoardSize + 2 - 2*n
	if score > 0 {
		// The player to move wins; their stones land at plies+1,
		// plies+3, ... so the distance to the winning stone is odd.
		if (winPly-plies)%2 == 0 {
			winPly--
		}
	} else {
		// The opponent wins at an even distance.
		if (winPly-plies)%2 != 0 {
			winPly--
		}
	}

	v := VerdictWin
	if score < 0 {
		v = VerdictLoss
	}
	return Outcome{Verdict: v, Score: score, PliesToEnd: winPly - plies}
}
