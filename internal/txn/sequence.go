package txn

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/surrealcore/coredb/internal/kv"
)

// SequenceState is a batched allocation range: the caller has been handed
// every id in [Start, End) and may allocate from it without a round trip
// to the backend until the range is exhausted.
type SequenceState struct {
	Start int64
	End   int64
}

func (s *SequenceState) exhausted() bool { return s.Start >= s.End }

func (s *SequenceState) next() int64 {
	id := s.Start
	s.Start++
	return id
}

// batchSize controls how many ids are reserved per round trip to the
// backend. A larger batch amortizes contention on the sequence-head key
// at the cost of leaving a gap of unused ids if the process restarts.
const batchSize = 64

// NextID allocates the next id from the sequence identified by headKey
// (typically a C1 DocumentSequenceHead or IndexSequenceHead key),
// refilling its batch from the backend via a compare-and-swap Put against
// the stored head value when the in-memory range is exhausted.
func (t *Transaction) NextID(ctx context.Context, headKey []byte) (int64, error) {
	t.store.seqMu.Lock()
	state, ok := t.store.seqs[string(headKey)]
	t.store.seqMu.Unlock()

	if ok && !state.exhausted() {
		t.store.seqMu.Lock()
		id := state.next()
		t.store.seqMu.Unlock()
		return id, nil
	}

	for {
		cur, err := t.tx.Get(ctx, headKey)
		var curVal int64
		var expect []byte
		if err == nil {
			curVal = decodeSequenceHead(cur)
			expect = cur
		} else {
			curVal = 0
			expect = nil
		}
		newVal := curVal + batchSize
		next := encodeSequenceHead(newVal)
		if err := t.tx.Put(ctx, headKey, next, expect); err != nil {
			// Another transaction won the race to refill; retry with a
			// fresh read rather than surfacing the conflict to the caller,
			// since sequence allocation has no user-visible transaction
			// boundary of its own.
			if errors.Is(err, kv.ErrConflict) || errors.Is(err, kv.ErrKeyExists) {
				continue
			}
			return 0, fmt.Errorf("txn: sequence refill: %w", err)
		}
		newState := &SequenceState{Start: curVal + 1, End: newVal}
		t.store.seqMu.Lock()
		t.store.seqs[string(headKey)] = newState
		t.store.seqMu.Unlock()
		return curVal, nil
	}
}

func encodeSequenceHead(v int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return buf[:]
}

func decodeSequenceHead(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}
