package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFileNameRoundTrip(t *testing.T) {
	opts := &Options{PgID: 17, SplitCount: 3}
	name := opts.fileNameFor(2)

	parsed, ok := ParseFileName(name)
	assert.True(t, ok)
	assert.Equal(t, uint32(17), parsed.PgID)
	assert.Equal(t, int32(2), parsed.SplitIndex)
}

func TestParseFileNameNonSplitRoundTrip(t *testing.T) {
	opts := &Options{PgID: 5}
	name := opts.fileNameFor(0)

	parsed, ok := ParseFileName(name)
	assert.True(t, ok)
	assert.Equal(t, uint32(5), parsed.PgID)
	assert.Equal(t, int32(nonSplitFileIndex), parsed.SplitIndex)
}

func TestParseFileNameNegativeSplitIndex(t *testing.T) {
	parsed, ok := ParseFileName("gs_cp_3_-1.dat")
	assert.True(t, ok)
	assert.Equal(t, uint32(3), parsed.PgID)
	assert.Equal(t, int32(-1), parsed.SplitIndex)
}

func TestParseFileNameRejectsMissingSplitIndex(t *testing.T) {
	_, ok := ParseFileName("gs_cp_17.dat")
	assert.False(t, ok)
}

func TestParseFileNameRejectsTrailingGarbage(t *testing.T) {
	_, ok := ParseFileName("gs_cp_17_3.dat.bak")
	assert.False(t, ok)
}

func TestParseFileNameRejectsWrongPrefix(t *testing.T) {
	_, ok := ParseFileName("other_17_3.dat")
	assert.False(t, ok)
}

func TestParseFileNameRejectsNonNumericFields(t *testing.T) {
	_, ok := ParseFileName("gs_cp_abc_3.dat")
	assert.False(t, ok)

	_, ok = ParseFileName("gs_cp_17_abc.dat")
	assert.False(t, ok)
}
