package checkpoint

import "github.com/phuslu/log"

// CheckpointFile is the top-level block-addressed checkpoint store: a
// flat array of fixed-size blocks spread across one or more striped
// backing files, with allocation tracked by a used bitmap and
// last-checkpoint membership tracked by a parallel valid bitmap. It
// assumes a single writer; no method locks against concurrent callers.
type CheckpointFile struct {
	opts    *Options
	mapper  blockMapper
	files   *fileSet
	io      *ioEngine
	alloc   *allocator
	valid   *validSet
	monitor Monitor
	logger  *log.Logger
}

// New constructs a CheckpointFile from validated Options. It does not
// touch the filesystem; call Open to bring backing files into
// existence or attach to existing ones.
func New(opts Options) (*CheckpointFile, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	o := opts
	monitor := o.Monitor
	if monitor == nil {
		if o.Logger != nil {
			monitor = NewLogMonitor(o.Logger, o.ioWarningThreshold())
		} else {
			monitor = NoopMonitor{}
		}
	}
	o.Monitor = monitor

	mapper := newBlockMapper(o.SplitCount, uint64(o.StripeSize), o.blockSize())
	files := newFileSet(&o, mapper, monitor)

	return &CheckpointFile{
		opts:    &o,
		mapper:  mapper,
		files:   files,
		io:      newIOEngine(&o, mapper, files, monitor),
		alloc:   newAllocator(),
		valid:   newValidSet(),
		monitor: monitor,
		logger:  o.Logger,
	}, nil
}

// Open brings every backing file into existence (or attaches to an
// existing one) per mode and rebuilds blockCount from file sizes. It
// returns whether the store was freshly empty. When it was, the
// used/valid bitmaps are reset to empty; otherwise they are left at
// their prior in-memory state, and callers recovering from an external
// checkpoint manager call InitializeUsed/InitializeValid plus bulk
// SetUsed/SetValid afterward.
func (c *CheckpointFile) Open(mode OpenMode) (bool, error) {
	freshEmpty, err := c.files.open(mode)
	if err != nil {
		c.reportError("open", err)
		return false, err
	}
	if freshEmpty {
		c.alloc.initializeUsed(0)
		c.valid.initialize(0)
	}
	return freshEmpty, nil
}

// Close releases every lock and closes every backing file. Idempotent.
func (c *CheckpointFile) Close() {
	c.files.close()
}

// Truncate recreates every backing file empty, re-takes locks, and
// resets blockCount, the used/valid bitmaps, the allocation cursor,
// and the readBlocks/writtenBlocks counters to zero. Retry counters
// are left untouched; they reflect cumulative I/O behavior across the
// store's lifetime, not a single checkpoint generation.
func (c *CheckpointFile) Truncate() error {
	if err := c.files.truncate(); err != nil {
		c.reportError("truncate", err)
		return err
	}
	c.alloc.initializeUsed(0)
	c.valid.initialize(0)
	c.io.resetReadBlocks()
	c.io.resetWrittenBlocks()
	return nil
}

// Flush issues a durability sync on every open backing file.
func (c *CheckpointFile) Flush() error {
	return c.files.flush(c.opts.PgID)
}

// Advise forwards an fadvise-style hint to every open backing file.
func (c *CheckpointFile) Advise(hint int) {
	c.files.advise(hint)
}

// Allocate hands out the next block number per the cursor-rotated,
// bounded free-block search, falling back to an append on a miss or
// when no block is currently free.
func (c *CheckpointFile) Allocate() uint64 {
	p := c.alloc.allocate()
	if p >= c.valid.length() {
		c.valid.set(p, false)
	}
	return p
}

// Free releases blockNo back to the allocator. It does not clear the
// block's valid bit; the checkpoint protocol owns that decision.
func (c *CheckpointFile) Free(blockNo uint64) {
	c.alloc.free(blockNo)
}

// SetUsed / GetUsed expose direct bitmap access for recovery-style
// callers reconstructing allocation state from external metadata.
func (c *CheckpointFile) SetUsed(blockNo uint64, flag bool) {
	c.alloc.setUsed(blockNo, flag)
}

func (c *CheckpointFile) GetUsed(blockNo uint64) bool {
	return c.alloc.getUsed(blockNo)
}

// InitializeUsed resets the used bitmap to blockCount false bits and
// freeCount to blockCount.
func (c *CheckpointFile) InitializeUsed(blockCount uint64) {
	c.alloc.initializeUsed(blockCount)
}

// SetValid / GetValid / InitializeValid mirror the used-bitmap
// accessors for the valid bitmap, without a free-count companion.
func (c *CheckpointFile) SetValid(blockNo uint64, flag bool) {
	c.valid.set(blockNo, flag)
}

func (c *CheckpointFile) GetValid(blockNo uint64) bool {
	return c.valid.get(blockNo)
}

func (c *CheckpointFile) InitializeValid(blockCount uint64) {
	c.valid.initialize(blockCount)
}

// BlockCount returns the sum of the backing files' block counts. Each
// file's count is its own highest written local block plus one, so in
// split mode the sum is below the highest logical block written plus
// one whenever the files have gaps or uneven fill.
func (c *CheckpointFile) BlockCount() uint64 {
	var total uint64
	for _, fh := range c.files.files {
		total += fh.blockCount
	}
	return total
}

// WriteBlock writes nBlocks consecutive blocks' worth of buf starting
// at blockNo.
func (c *CheckpointFile) WriteBlock(buf []byte, nBlocks uint64, blockNo uint64) error {
	if err := c.io.writeBlock(buf, nBlocks, blockNo); err != nil {
		c.reportError("writeBlock", err)
		return err
	}
	return nil
}

// WritePartialBlock writes buf at an arbitrary byte offset.
func (c *CheckpointFile) WritePartialBlock(buf []byte, byteOffset uint64) error {
	if err := c.io.writePartialBlock(buf, byteOffset); err != nil {
		c.reportError("writePartialBlock", err)
		return err
	}
	return nil
}

// ReadBlock reads nBlocks consecutive blocks starting at blockNo into
// buf, against the file owning blockNo's own blockCount.
func (c *CheckpointFile) ReadBlock(buf []byte, blockNo uint64, nBlocks uint64) error {
	idx := c.mapper.fileIndexForBlock(blockNo)
	blockCount := c.files.files[idx].blockCount
	if err := c.io.readBlock(buf, blockNo, nBlocks, blockCount); err != nil {
		c.reportError("readBlock", err)
		return err
	}
	return nil
}

// PunchHoleBlock deallocates storage for nBlocks consecutive blocks
// starting at blockNo.
func (c *CheckpointFile) PunchHoleBlock(blockNo uint64, nBlocks uint64) error {
	if err := c.io.punchHoleBlock(blockNo, nBlocks); err != nil {
		c.reportError("punchHoleBlock", err)
		return err
	}
	return nil
}

// ZerofillUnusedBlocks punches a hole for every unused block from 1 to
// used.length-1, using the allocator's own used bitmap as the source
// of truth.
func (c *CheckpointFile) ZerofillUnusedBlocks() error {
	if err := c.io.zerofillUnusedBlocks(c.alloc.length(), func(b uint64) bool {
		return c.alloc.getUsed(b)
	}); err != nil {
		c.reportError("zerofillUnusedBlocks", err)
		return err
	}
	return nil
}

// Counters returns a snapshot of the monotonic read/write/retry
// counters.
func (c *CheckpointFile) Counters() CounterSnapshot {
	return c.io.snapshot()
}

// ResetReadBlocks / ResetWrittenBlocks / ResetReadRetries /
// ResetWriteRetries zero one counter independently. Truncate already
// resets ResetReadBlocks/ResetWrittenBlocks as part of its own
// semantics; these are for callers that want to reset a counter
// without truncating the store.
func (c *CheckpointFile) ResetReadBlocks() {
	c.io.resetReadBlocks()
}

func (c *CheckpointFile) ResetWrittenBlocks() {
	c.io.resetWrittenBlocks()
}

func (c *CheckpointFile) ResetReadRetries() {
	c.io.resetReadRetries()
}

func (c *CheckpointFile) ResetWriteRetries() {
	c.io.resetWriteRetries()
}

func (c *CheckpointFile) reportError(op string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Error().Err(err).Str("op", op).Uint32("pgId", c.opts.PgID).Msg("checkpoint file operation failed")
}
