package bridge

import (
	"sync"
	"sync/atomic"
)

// bufferAlign is the legacy allocator's alignment contract: every
// buffer's capacity is a multiple of 64 bytes so sample and pixel
// rows never straddle it.
const bufferAlign = 64

// maxPooledClass caps which size classes are pooled; larger buffers
// go straight to the allocator.
const maxPooledClass = 1 << 20

// Buffers emulates the legacy buffer allocation subsystem with pooled
// power-of-two size classes.
type Buffers struct {
	pools map[int]*sync.Pool
	live  atomic.Int64
}

func newBuffers() *Buffers {
	b := &Buffers{pools: make(map[int]*sync.Pool)}
	for size := bufferAlign; size <= maxPooledClass; size <<= 1 {
		capacity := size
		b.pools[capacity] = &sync.Pool{
			New: func() any {
				return make([]byte, capacity)
			},
		}
	}
	return b
}

// Alloc returns a zeroed buffer of exactly size bytes, backed by the
// smallest pooled class that fits.
func (b *Buffers) Alloc(size uint32) []byte {
	b.live.Add(1)
	capacity := classFor(int(size))
	if pool, ok := b.pools[capacity]; ok {
		buf := pool.Get().([]byte)[:size]
		clear(buf)
		return buf
	}
	return make([]byte, size, capacity)
}

// Free returns a buffer to its pool. Buffers not allocated by Alloc
// are dropped silently.
func (b *Buffers) Free(buf []byte) {
	b.live.Add(-1)
	capacity := cap(buf)
	if pool, ok := b.pools[capacity]; ok {
		pool.Put(buf[:capacity])
	}
}

// Live reports allocations not yet freed.
func (b *Buffers) Live() int64 {
	return b.live.Load()
}

// classFor rounds size up to the next pooled class, keeping the
// alignment contract for oversized buffers too.
func classFor(size int) int {
	if size <= bufferAlign {
		return bufferAlign
	}
	c := bufferAlign
	for c < size && c < maxPooledClass {
		c <<= 1
	}
	if c < size {
		// Above the largest class: round up to the alignment unit.
		return (size + bufferAlign - 1) &^ (bufferAlign - 1)
	}
	return c
}
