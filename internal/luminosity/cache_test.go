package luminosity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCachePutGet(t *testing.T) {
	c := New(16)
	k := Key{PID: 21, XIndex: 3, ScaleIndex: 1}

	_, ok := c.Get(k)
	assert.False(t, ok)

	c.Put(k, 1.5)
	v, ok := c.Get(k)
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)
}

func TestCacheDistinguishesKeys(t *testing.T) {
	c := New(16)
	a := Key{PID: 21, XIndex: 3, ScaleIndex: 1}
	b := Key{PID: -21, XIndex: 3, ScaleIndex: 1}

	c.Put(a, 1.0)
	c.Put(b, 2.0)

	va, ok := c.Get(a)
	assert.True(t, ok)
	assert.Equal(t, 1.0, va)

	vb, ok := c.Get(b)
	assert.True(t, ok)
	assert.Equal(t, 2.0, vb)
}

func TestCacheOverwrite(t *testing.T) {
	c := New(16)
	k := Key{PID: 1, XIndex: 0, ScaleIndex: 0}
	c.Put(k, 1.0)
	c.Put(k, 2.0)
	v, ok := c.Get(k)
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)
}

func TestCacheReset(t *testing.T) {
	c := New(16)
	k := Key{PID: 1, XIndex: 0, ScaleIndex: 0}
	c.Put(k, 1.0)
	c.Reset()
	_, ok := c.Get(k)
	assert.False(t, ok)
}

func TestCacheHandlesManyKeys(t *testing.T) {
	c := New(512)
	for pid := int32(-6); pid <= 6; pid++ {
		for x := int32(0); x < 20; x++ {
			for s := int32(0); s < 3; s++ {
				c.Put(Key{PID: pid, XIndex: x, ScaleIndex: s}, float64(pid)+float64(x)*0.1+float64(s)*0.01)
			}
		}
	}
	for pid := int32(-6); pid <= 6; pid++ {
		for x := int32(0); x < 20; x++ {
			for s := int32(0); s < 3; s++ {
				v, ok := c.Get(Key{PID: pid, XIndex: x, ScaleIndex: s})
				assert.True(t, ok)
				assert.Equal(t, float64(pid)+float64(x)*0.1+float64(s)*0.01, v)
			}
		}
	}
}
