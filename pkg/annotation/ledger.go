package annotation

import "sort"

// OffsetLedger remembers the fresh-strategy offsets already presented to
// one session so they are not drawn again.
type OffsetLedger struct {
	seen map[int]struct{}
}

func NewOffsetLedger() *OffsetLedger {
	return &OffsetLedger{seen: make(map[int]struct{})}
}

func (l *OffsetLedger) Record(offset int) {
	l.seen[offset] = struct{}{}
}

func (l *OffsetLedger) Contains(offset int) bool {
	_, ok := l.seen[offset]
	return ok
}

func (l *OffsetLedger) Len() int {
	return len(l.seen)
}

func (l *OffsetLedger) Reset() {
	clear(l.seen)
}

// Draw picks an offset uniformly from [0, count) excluding recorded ones.
// It reports false when every offset in the range has been recorded.
func (l *OffsetLedger) Draw(count int, rnd Rand) (int, bool) {
	if count <= 0 {
		return 0, false
	}

	taken := make([]int, 0, len(l.seen))
	for o := range l.seen {
		if o >= 0 && o < count {
			taken = append(taken, o)
		}
	}
	free := count - len(taken)
	if free <= 0 {
		return 0, false
	}
	sort.Ints(taken)

	// The r-th free offset: skip over every taken offset at or below it.
	offset := rnd.IntN(free)
	for _, t := range taken {
		if t > offset {
			break
		}
		offset++
	}
	return offset, true
}
