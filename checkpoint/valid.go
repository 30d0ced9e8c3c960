package checkpoint

import "github.com/boro-db/checkpointstore/bitmap"

// validSet tracks which blocks belong to the most recently completed
// checkpoint, independent of the allocator's used bitmap. A block can
// be used but not valid (freshly allocated, not yet part of a
// checkpoint) or valid but not used only transiently during a
// checkpoint swap; the two bitmaps are never folded into one because
// they answer different questions (invariant: valid implies it was
// used at some point, but used does not imply valid).
type validSet struct {
	bits *bitmap.Bitmap
}

func newValidSet() *validSet {
	return &validSet{bits: bitmap.New(0)}
}

func (v *validSet) get(blockNo uint64) bool {
	return v.bits.Get(blockNo)
}

func (v *validSet) set(blockNo uint64, flag bool) {
	v.bits.Set(blockNo, flag)
}

// initialize resets valid to blockCount false bits, for recovery-style
// callers rebuilding state from external checkpoint metadata.
func (v *validSet) initialize(blockCount uint64) {
	v.bits.Clear()
	v.bits.Reserve(blockCount)
	for i := uint64(0); i < blockCount; i++ {
		v.bits.Append(false)
	}
}

func (v *validSet) length() uint64 {
	return v.bits.Len()
}
