package checkpoint

import "github.com/boro-db/checkpointstore/bitmap"

// allocator owns the used bitmap, the free-block count, and the
// rotating search cursor described in the spec's allocator component.
// It does not know about files, I/O, or checkpoint validity; callers
// that also track a validSet are responsible for keeping its length in
// lockstep with used (invariant 1: used.length == valid.length)
// outside explicit initialization windows.
type allocator struct {
	used      *bitmap.Bitmap
	freeCount uint64
	cursor    uint64
}

func newAllocator() *allocator {
	return &allocator{
		used: bitmap.New(0),
	}
}

// allocate hands out a block number per the cursor-rotated, bounded
// search described in the spec. The forward pass from cursor and the
// wrapped pass from 0 share one budget of SearchLimit used positions;
// once it is spent, allocate falls back to an append.
func (a *allocator) allocate() uint64 {
	if a.freeCount > 0 {
		length := a.used.Len()
		startPos := a.cursor
		pos := startPos
		count := 0
		allocatePos := int64(-1)

		for ; pos < length; pos++ {
			if !a.used.Get(pos) {
				allocatePos = int64(pos)
				break
			}
			count++
			if count >= SearchLimit {
				break
			}
		}
		if allocatePos == -1 && count < SearchLimit {
			for pos = 0; pos < startPos; pos++ {
				if !a.used.Get(pos) {
					allocatePos = int64(pos)
					break
				}
				count++
				if count >= SearchLimit {
					break
				}
			}
		}

		a.cursor = pos + 1
		if a.cursor >= length {
			a.cursor = 0
		}

		if allocatePos != -1 {
			p := uint64(allocatePos)
			a.setUsed(p, true)
			return p
		}
	}

	// No free block within the capped scan (or freeCount was already
	// zero): grow used by one true bit. The appended bit was never part
	// of [0,length) so it was never counted in freeCount; no adjustment
	// needed.
	return a.used.Append(true)
}

func (a *allocator) free(blockNo uint64) {
	a.setUsed(blockNo, false)
}

// setUsed flips the used bit for blockNo and keeps freeCount consistent,
// adjusting it only when the bit actually changes value.
func (a *allocator) setUsed(blockNo uint64, flag bool) {
	old := a.used.Get(blockNo)
	a.used.Set(blockNo, flag)
	if flag && !old {
		a.freeCount--
	} else if !flag && old {
		a.freeCount++
	}
}

func (a *allocator) getUsed(blockNo uint64) bool {
	return a.used.Get(blockNo)
}

// initializeUsed resets used to blockCount false bits and freeCount to
// blockCount, for recovery-style callers rebuilding state from external
// metadata.
func (a *allocator) initializeUsed(blockCount uint64) {
	a.used.Clear()
	a.used.Reserve(blockCount)
	for i := uint64(0); i < blockCount; i++ {
		a.used.Append(false)
	}
	a.freeCount = blockCount
	a.cursor = 0
}

func (a *allocator) length() uint64 {
	return a.used.Len()
}
