package checkpoint

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIOEngine(t *testing.T, splitCount uint32, stripeSize uint32) (*ioEngine, *fileSet) {
	t.Helper()
	dir := t.TempDir()

	opts := &Options{
		BlockExpSize: 12, // 4096
		BaseDir:      dir,
		PgID:         1,
		Monitor:      NoopMonitor{},
	}
	if splitCount > 0 {
		opts.SplitCount = splitCount
		opts.StripeSize = stripeSize
		opts.ConfigDirList = []string{dir}
	}
	require.NoError(t, opts.validate())

	mapper := newBlockMapper(opts.SplitCount, uint64(opts.StripeSize), opts.blockSize())
	files := newFileSet(opts, mapper, opts.Monitor)
	_, err := files.open(CreateIfMissing)
	require.NoError(t, err)

	return newIOEngine(opts, mapper, files, opts.Monitor), files
}

func TestIOEngineWriteReadRoundTrip(t *testing.T) {
	e, files := newTestIOEngine(t, 0, 0)
	defer files.close()

	blockSize := e.opts.blockSize()
	buf := make([]byte, blockSize)
	for i := range buf {
		buf[i] = byte(i)
	}

	require.NoError(t, e.writeBlock(buf, 1, 0))
	assert.Equal(t, uint64(1), files.files[0].blockCount)

	out := make([]byte, blockSize)
	require.NoError(t, e.readBlock(out, 0, 1, files.files[0].blockCount))
	assert.Equal(t, buf, out)
}

func TestIOEngineReadRejectsZeroNBlocks(t *testing.T) {
	e, files := newTestIOEngine(t, 0, 0)
	defer files.close()

	buf := make([]byte, e.opts.blockSize())
	err := e.readBlock(buf, 0, 0, 1)
	var ipErr *InvalidParameterError
	assert.ErrorAs(t, err, &ipErr)
}

func TestIOEngineReadRejectsRangePastBlockCount(t *testing.T) {
	e, files := newTestIOEngine(t, 0, 0)
	defer files.close()

	buf := make([]byte, e.opts.blockSize())
	err := e.readBlock(buf, 0, 1, 0)
	var ipErr *InvalidParameterError
	assert.ErrorAs(t, err, &ipErr)
}

func TestIOEngineWriteGrowsBlockCountAcrossNonContiguousWrites(t *testing.T) {
	e, files := newTestIOEngine(t, 0, 0)
	defer files.close()

	blockSize := e.opts.blockSize()
	buf := make([]byte, blockSize)

	require.NoError(t, e.writeBlock(buf, 1, 5))
	assert.Equal(t, uint64(6), files.files[0].blockCount)

	require.NoError(t, e.writeBlock(buf, 1, 2))
	assert.Equal(t, uint64(6), files.files[0].blockCount)
}

func TestIOEngineWriteCreatesFileTransparentlyInSplitMode(t *testing.T) {
	e, files := newTestIOEngine(t, 2, 4)
	defer files.close()

	blockSize := e.opts.blockSize()
	buf := make([]byte, blockSize)

	// block 5 maps to file index 1, which has no prior writes; drop the
	// file that open(CreateIfMissing) made so the write has to create it
	files.closeOne(files.files[1])
	require.NoError(t, os.Remove(files.files[1].path))
	require.NoError(t, e.writeBlock(buf, 1, 5))
	assert.NotNil(t, files.files[1].file)
}

func TestIOEnginePunchHoleThenReadReturnsZeros(t *testing.T) {
	e, files := newTestIOEngine(t, 0, 0)
	defer files.close()

	blockSize := e.opts.blockSize()
	buf := make([]byte, blockSize)
	for i := range buf {
		buf[i] = 0xFF
	}
	require.NoError(t, e.writeBlock(buf, 1, 0))
	require.NoError(t, e.punchHoleBlock(0, 1))

	out := make([]byte, blockSize)
	require.NoError(t, e.readBlock(out, 0, 1, files.files[0].blockCount))
	for _, b := range out {
		assert.Equal(t, byte(0), b)
	}
}

func TestIOEngineReadFromAbsentFileReturnsZeros(t *testing.T) {
	e, files := newTestIOEngine(t, 2, 4)
	defer files.close()

	// block 5 maps to file index 1, never written; drop the file that
	// open(CreateIfMissing) made so it is absent on disk
	files.closeOne(files.files[1])
	require.NoError(t, os.Remove(files.files[1].path))
	out := make([]byte, e.opts.blockSize())
	require.NoError(t, e.readBlock(out, 5, 1, 100))
	for _, b := range out {
		assert.Equal(t, byte(0), b)
	}
}

func TestIOEngineCountersAdvance(t *testing.T) {
	e, files := newTestIOEngine(t, 0, 0)
	defer files.close()

	buf := make([]byte, e.opts.blockSize())
	require.NoError(t, e.writeBlock(buf, 1, 0))
	require.NoError(t, e.readBlock(buf, 0, 1, files.files[0].blockCount))

	assert.Equal(t, uint64(1), e.writtenBlocks)
	assert.Equal(t, uint64(1), e.readBlocks)
}

func TestIOEngineWriteMultipleBlocksInOneCall(t *testing.T) {
	e, files := newTestIOEngine(t, 0, 0)
	defer files.close()

	blockSize := e.opts.blockSize()
	buf := make([]byte, 3*blockSize)
	for i := range buf {
		buf[i] = byte(i)
	}

	require.NoError(t, e.writeBlock(buf, 3, 0))
	assert.Equal(t, uint64(3), files.files[0].blockCount)
	assert.Equal(t, uint64(3), e.writtenBlocks)

	out := make([]byte, 3*blockSize)
	require.NoError(t, e.readBlock(out, 0, 3, files.files[0].blockCount))
	assert.Equal(t, buf, out)
}

func TestIOEngineWriteRejectsMismatchedBufferLength(t *testing.T) {
	e, files := newTestIOEngine(t, 0, 0)
	defer files.close()

	buf := make([]byte, e.opts.blockSize())
	err := e.writeBlock(buf, 2, 0)
	var ipErr *InvalidParameterError
	assert.ErrorAs(t, err, &ipErr)
}

func TestIOEngineWriteRejectsZeroNBlocks(t *testing.T) {
	e, files := newTestIOEngine(t, 0, 0)
	defer files.close()

	buf := make([]byte, e.opts.blockSize())
	err := e.writeBlock(buf, 0, 0)
	var ipErr *InvalidParameterError
	assert.ErrorAs(t, err, &ipErr)
}
