package pool

import (
	"bytes"
	"sync"
)

// Buffers larger than this are dropped instead of pooled.
const maxPooledBufSize = 64 * 1024

var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// GetBuf returns an empty buffer. Release it with ReleaseBuf.
func GetBuf() *bytes.Buffer {
	return bufPool.Get().(*bytes.Buffer)
}

// ReleaseBuf resets b and puts it back. The caller must not use b afterwards.
func ReleaseBuf(b *bytes.Buffer) {
	if b == nil || b.Cap() > maxPooledBufSize {
		return
	}
	b.Reset()
	bufPool.Put(b)
}
