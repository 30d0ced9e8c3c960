package checkpoint

// blockMapper turns a logical block number or byte offset into the
// (file index, file-local byte offset) pair the file set uses to
// dispatch I/O. It is a pure function of (splitCount, stripeSize,
// blockSize); once constructed for a given store those never change.
type blockMapper struct {
	splitCount uint32
	stripeSize uint64
	blockSize  uint64
}

func newBlockMapper(splitCount uint32, stripeSize uint64, blockSize uint64) blockMapper {
	return blockMapper{
		splitCount: splitCount,
		stripeSize: stripeSize,
		blockSize:  blockSize,
	}
}

// fileIndexForBlock returns the split file index that block b maps to.
func (m blockMapper) fileIndexForBlock(b uint64) uint32 {
	if m.splitCount <= 1 {
		return 0
	}
	return uint32((b / m.stripeSize) % uint64(m.splitCount))
}

// fileOffsetForBlock returns the file-local byte offset block b maps to.
func (m blockMapper) fileOffsetForBlock(b uint64) uint64 {
	if m.splitCount <= 1 {
		return b * m.blockSize
	}
	run := b / m.stripeSize
	localBlock := (run/uint64(m.splitCount))*m.stripeSize + (b % m.stripeSize)
	return localBlock * m.blockSize
}

// fileIndex and fileOffset are the byte-offset-addressed counterparts
// used by writers and hole-punchers that sometimes address sub-block
// byte ranges. They convert the byte offset to a block number, map it,
// and re-add the intra-block remainder.
func (m blockMapper) fileIndex(byteOffset uint64) uint32 {
	return m.fileIndexForBlock(byteOffset / m.blockSize)
}

func (m blockMapper) fileOffset(byteOffset uint64) uint64 {
	block := byteOffset / m.blockSize
	remainder := byteOffset % m.blockSize
	return m.fileOffsetForBlock(block) + remainder
}
