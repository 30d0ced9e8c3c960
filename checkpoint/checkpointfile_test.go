package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMonitor collects every reported event for assertions.
type recordingMonitor struct {
	events []Event
}

func (m *recordingMonitor) Report(ev Event) {
	m.events = append(m.events, ev)
}

func TestScenarioFreshStoreSingleFile(t *testing.T) {
	dir := t.TempDir()
	cf, err := New(Options{
		BlockExpSize: 16, // 65536
		BaseDir:      dir,
		PgID:         0,
	})
	require.NoError(t, err)

	freshEmpty, err := cf.Open(CreateIfMissing)
	require.NoError(t, err)
	assert.True(t, freshEmpty)
	defer cf.Close()

	assert.Equal(t, uint64(0), cf.Allocate())
	assert.Equal(t, uint64(1), cf.Allocate())
	cf.Free(0)
	assert.Equal(t, uint64(0), cf.Allocate())

	_, statErr := os.Stat(filepath.Join(dir, "gs_cp_0_1.dat"))
	assert.NoError(t, statErr)
}

func TestScenarioSplitStoreBlockMapping(t *testing.T) {
	m := newBlockMapper(2, 4, 4096)

	for b := uint64(0); b < 4; b++ {
		assert.Equal(t, uint32(0), m.fileIndexForBlock(b))
		assert.Equal(t, b*4096, m.fileOffsetForBlock(b))
	}
	for b := uint64(4); b < 8; b++ {
		assert.Equal(t, uint32(1), m.fileIndexForBlock(b))
		assert.Equal(t, (b-4)*4096, m.fileOffsetForBlock(b))
	}
	for b := uint64(8); b < 12; b++ {
		assert.Equal(t, uint32(0), m.fileIndexForBlock(b))
		assert.Equal(t, (4+(b-8))*4096, m.fileOffsetForBlock(b))
	}
}

func TestScenarioSearchLimitFallThrough(t *testing.T) {
	a := newAllocator()
	a.initializeUsed(0)

	for i := 0; i < 2000; i++ {
		a.used.Append(true)
	}
	a.used.Append(false)
	a.freeCount = 1
	a.cursor = 0

	assert.Equal(t, uint64(2001), a.allocate())
}

func TestScenarioHolePunchReclamation(t *testing.T) {
	dir := t.TempDir()
	monitor := &recordingMonitor{}
	cf, err := New(Options{
		BlockExpSize: 12, // 4096
		BaseDir:      dir,
		PgID:         0,
		Monitor:      monitor,
	})
	require.NoError(t, err)
	_, err = cf.Open(CreateIfMissing)
	require.NoError(t, err)
	defer cf.Close()

	buf := make([]byte, cf.opts.blockSize())
	for b := uint64(0); b < 4; b++ {
		require.NoError(t, cf.WriteBlock(buf, 1, b))
		assert.Equal(t, b, cf.Allocate())
	}
	cf.Free(1)
	cf.Free(3)

	require.NoError(t, cf.ZerofillUnusedBlocks())

	var punches []Event
	for _, ev := range monitor.events {
		if ev.Kind == EventPunchHole {
			punches = append(punches, ev)
		}
	}
	require.Len(t, punches, 2)
	assert.Equal(t, uint64(1*4096), punches[0].Offset)
	assert.Equal(t, uint64(4096), punches[0].Size)
	assert.Equal(t, uint64(3*4096), punches[1].Offset)
	assert.Equal(t, uint64(4096), punches[1].Size)
}

func TestScenarioNameParsing(t *testing.T) {
	parsed, ok := ParseFileName("gs_cp_17_3.dat")
	assert.True(t, ok)
	assert.Equal(t, uint32(17), parsed.PgID)
	assert.Equal(t, int32(3), parsed.SplitIndex)

	_, ok = ParseFileName("gs_cp_17.dat")
	assert.False(t, ok)

	_, ok = ParseFileName("gs_cp_17_3.dat.bak")
	assert.False(t, ok)
}

func TestScenarioTruncateResets(t *testing.T) {
	dir := t.TempDir()
	cf, err := New(Options{
		BlockExpSize: 12,
		BaseDir:      dir,
		PgID:         0,
	})
	require.NoError(t, err)
	_, err = cf.Open(CreateIfMissing)
	require.NoError(t, err)
	defer cf.Close()

	buf := make([]byte, cf.opts.blockSize())
	require.NoError(t, cf.WriteBlock(buf, 1, 0))
	require.NoError(t, cf.WriteBlock(buf, 1, 1))
	cf.Allocate()
	cf.Allocate()

	require.NoError(t, cf.Truncate())

	assert.Equal(t, uint64(0), cf.BlockCount())
	assert.Equal(t, uint64(0), cf.alloc.freeCount)
	assert.Equal(t, uint64(0), cf.alloc.length())
	assert.Equal(t, uint64(0), cf.valid.length())
	assert.Equal(t, uint64(0), cf.Allocate())
}

func TestReadOnEmptyStoreFailsInvalidParameter(t *testing.T) {
	dir := t.TempDir()
	cf, err := New(Options{
		BlockExpSize: 12,
		BaseDir:      dir,
		PgID:         0,
	})
	require.NoError(t, err)
	_, err = cf.Open(CreateIfMissing)
	require.NoError(t, err)
	defer cf.Close()

	buf := make([]byte, cf.opts.blockSize())
	err = cf.ReadBlock(buf, 0, 1)
	var ipErr *InvalidParameterError
	assert.ErrorAs(t, err, &ipErr)
}
