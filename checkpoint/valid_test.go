package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidSetGetSet(t *testing.T) {
	v := newValidSet()
	v.initialize(4)

	assert.False(t, v.get(2))
	v.set(2, true)
	assert.True(t, v.get(2))
	v.set(2, false)
	assert.False(t, v.get(2))
}

func TestValidSetInitializeResetsLength(t *testing.T) {
	v := newValidSet()
	v.set(10, true)
	assert.Equal(t, uint64(11), v.length())

	v.initialize(3)
	assert.Equal(t, uint64(3), v.length())
	for i := uint64(0); i < 3; i++ {
		assert.False(t, v.get(i))
	}
}

func TestValidSetGrowsOnSetBeyondLength(t *testing.T) {
	v := newValidSet()
	v.initialize(2)

	v.set(5, true)
	assert.Equal(t, uint64(6), v.length())
	assert.True(t, v.get(5))
	assert.False(t, v.get(3))
}
