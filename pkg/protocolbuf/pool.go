// Package protocolbuf pools the buffers used to build text replies.
package protocolbuf

import (
	"bytes"
	"sync"
)

// maxRetained is the largest buffer capacity returned to the pool.
const maxRetained = 64 * 1024

var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// GetBuffer returns an empty buffer from the pool.
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns buf to the pool. The caller must not use buf or any slice
// obtained from it afterwards.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxRetained {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}
