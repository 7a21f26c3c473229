package solver

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/cespare/xxhash"
	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"
)

// Bound kinds for a stored score.
const (
	ttExact = 0x01
	ttLower = 0x02 // search failed high: true score >= stored score
	ttUpper = 0x03 // search failed low: true score <= stored score
)

const entrySize = 8

const bottom3ByteMask = (1 << 24) - 1

// 8 bytes (entrySize)
type tableEntry struct {
	// Don't store the full hash, but the top 5 bytes. The bottom 3
	// bytes can be determined from the bucket in the array.
	top4bytes uint32
	score     int16
	fifthbyte uint8
	flag      uint8
}

// fullHash calculates the full 64-bit hash for this table entry, given
// the bottom bytes in idx.
func (t tableEntry) fullHash(idx uint64) uint64 {
	return uint64(t.top4bytes)<<32 + uint64(t.fifthbyte)<<24 + (idx & bottom3ByteMask)
}

func (t tableEntry) valid() bool {
	// a stored flag is 1, 2, or 3.
	return t.flag != 0
}

// TranspositionTable caches the score bound computed for a canonical
// position key. It is a flat fixed-size array with an always-replace
// policy; hits are verified against the stored partial hash, so a slot
// collision can only cost a miss, never a wrong answer. Writes are
// deliberately lock-free: losing a racing write is as harmless as a
// collision.
type TranspositionTable struct {
	table        []tableEntry
	created      atomic.Uint64
	lookups      atomic.Uint64
	hits         atomic.Uint64
	sizePowerOf2 int
	sizeMask     uint64
	// "type 2" collisions. A type 2 collision happens when two
	// positions share the same slot. A type 1 collision happens when
	// two positions share the same full hash; we have no cheap way to
	// detect those, but they should be far rarer.
	t2collisions atomic.Uint64
}

// GlobalTranspositionTable is a singleton instance. Transposition
// tables take up a large enough amount of memory that we only want to
// keep one around by default, to avoid re-allocation costs between
// solves.
var GlobalTranspositionTable = &TranspositionTable{}

// mix spreads a canonical board key over all 64 bits. Raw keys are
// heavily structured (the low bits are the leftmost columns), which
// would cluster slot indices badly.
func mix(key uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], key)
	return xxhash.Sum64(b[:])
}

func (t *TranspositionTable) lookup(key uint64) tableEntry {
	t.lookups.Add(1)
	h := mix(key)
	idx := h & t.sizeMask
	entry := t.table[idx]
	if entry.fullHash(idx) != h {
		if entry.valid() {
			// There is another unrelated node in this slot.
			t.t2collisions.Add(1)
		}
		return tableEntry{}
	}
	t.hits.Add(1)
	// Otherwise, assume the same hash is the same position. This fails
	// very, very rarely, but it could happen.
	return entry
}

func (t *TranspositionTable) store(key uint64, score int16, flag uint8) {
	h := mix(key)
	idx := h & t.sizeMask
	// Just overwrite whatever is there.
	t.table[idx] = tableEntry{
		top4bytes: uint32(h >> 32),
		fifthbyte: uint8(h >> 24),
		score:     score,
		flag:      flag,
	}
	t.created.Add(1)
}

// Reset sizes the table to roughly fractionOfMemory of total system
// memory and clears it. The size is rounded down to a power of two and
// never drops below 2^24 elements: anything less and the 5-byte full
// hash proxy won't work.
func (t *TranspositionTable) Reset(fractionOfMemory float64) {
	totalMem := memory.TotalMemory()
	desiredNElems := fractionOfMemory * (float64(totalMem) / float64(entrySize))
	// find biggest power of 2 lower than desired.
	t.sizePowerOf2 = int(math.Log2(desiredNElems))
	if t.sizePowerOf2 < 24 {
		t.sizePowerOf2 = 24
	}

	numElems := 1 << t.sizePowerOf2
	t.sizeMask = uint64(numElems - 1)
	reset := false
	if t.table != nil && len(t.table) == numElems {
		reset = true
		clear(t.table)
	} else {
		t.table = make([]tableEntry, numElems)
	}

	log.Info().Int("num-elems", numElems).
		Float64("desired-num-elems", desiredNElems).
		Int("estimated-total-memory-bytes", numElems*entrySize).
		Uint64("total-system-memory-bytes", totalMem).
		Bool("reset", reset).
		Msg("transposition-table-size")

	t.created.Store(0)
	t.lookups.Store(0)
	t.hits.Store(0)
	t.t2collisions.Store(0)
}

func (t *TranspositionTable) initialized() bool {
	return t.table != nil
}
