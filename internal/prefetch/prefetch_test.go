package prefetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeInjector struct {
	calls []struct{ ip, base, pf uint64 }
}

func (f *fakeInjector) PrefetchLine(cpu int, ip, baseAddr, pfAddr uint64, fillLevel int, metadata uint32) bool {
	if CrossesPage(baseAddr, pfAddr) {
		return false
	}
	f.calls = append(f.calls, struct{ ip, base, pf uint64 }{ip, baseAddr, pfAddr})
	return true
}

func TestNextLine_RequestsSequentialLineOnMiss(t *testing.T) {
	inj := &fakeInjector{}
	p := NewNextLine(inj, 2)

	p.Operate(0, 0x1000, 0xdead, false, 0)
	if assert.Len(t, inj.calls, 1) {
		assert.EqualValues(t, 0x1001, inj.calls[0].pf, "the next line is one block number up")
	}
}

func TestNextLine_SkipsOnHit(t *testing.T) {
	inj := &fakeInjector{}
	p := NewNextLine(inj, 2)
	p.Operate(0, 0x1000, 0, true, 0)
	assert.Empty(t, inj.calls)
}

func TestCrossesPage(t *testing.T) {
	// 64 blocks per 4KB page: block numbers 0x40..0x7f share a page.
	assert.False(t, CrossesPage(0x40, 0x41))
	assert.False(t, CrossesPage(0x40, 0x7f))
	assert.True(t, CrossesPage(0x3f, 0x40))
	assert.True(t, CrossesPage(0x7f, 0x80))
}
