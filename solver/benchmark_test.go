package solver

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"c4solver/bitboard"
)

func loadEndgames(t testing.TB) []struct {
	moves string
	score int
} {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", "endgames.txt"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var cases []struct {
		moves string
		score int
	}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			t.Fatalf("malformed line %q", line)
		}
		score, err := strconv.Atoi(fields[1])
		if err != nil {
			t.Fatalf("malformed score in %q: %v", line, err)
		}
		cases = append(cases, struct {
			moves string
			score int
		}{fields[0], score})
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	return cases
}

func TestEndgameSuite(t *testing.T) {
	require := require.New(t)
	s := New()
	for _, tc := range loadEndgames(t) {
		p, err := bitboard.FromMoves(tc.moves)
		require.NoError(err)
		got, err := s.Score(context.Background(), p)
		require.NoError(err)
		require.Equal(tc.score, got, "moves %q", tc.moves)
	}
}

func BenchmarkEndgameSuite(b *testing.B) {
	cases := loadEndgames(b)
	positions := make([]bitboard.Position, len(cases))
	for i, tc := range cases {
		p, err := bitboard.FromMoves(tc.moves)
		if err != nil {
			b.Fatal(err)
		}
		positions[i] = p
	}
	s := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, p := range positions {
			if _, err := s.Score(context.Background(), p); err != nil {
				b.Fatal(err)
			}
		}
	}
}
