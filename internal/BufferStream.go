/*
Copyright 2011-2026 Frederic Langlet
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package internal

import (
	"errors"
	"io"
)

// BufferStream a closable read/write stream of bytes backed by a slice
type BufferStream struct {
	buf    []byte
	off    int
	closed bool
}

// NewBufferStream creates a new instance of BufferStream. If a slice is
// provided, its content is available for reading and writes are appended to it.
func NewBufferStream(args ...[]byte) *BufferStream {
	this := &BufferStream{}

	if len(args) == 1 {
		this.buf = args[0]
	} else {
		this.buf = make([]byte, 0)
	}

	return this
}

// Write returns an error if the stream is closed, otherwise appends the given
// data to the internal buffer (growing the buffer as needed).
// Returns the number of bytes written.
func (this *BufferStream) Write(b []byte) (int, error) {
	if this.closed {
		return 0, errors.New("Stream closed")
	}

	this.buf = append(this.buf, b...)
	return len(b), nil
}

// Read returns an error if the stream is closed, otherwise reads data from
// the internal buffer at the read offset position.
// Returns the number of bytes read or (0, io.EOF) when no more data remains.
func (this *BufferStream) Read(b []byte) (int, error) {
	if this.closed {
		return 0, errors.New("Stream closed")
	}

	if len(b) == 0 {
		return 0, nil
	}

	if this.off >= len(this.buf) {
		return 0, io.EOF
	}

	n := copy(b, this.buf[this.off:])
	this.off += n
	return n, nil
}

// Close makes the stream unavailable for future reads or writes.
func (this *BufferStream) Close() error {
	this.closed = true
	return nil
}

// Len returns the number of bytes not read yet
func (this *BufferStream) Len() int {
	return len(this.buf) - this.off
}

// Bytes returns the unread portion of the stream. The slice is only valid
// until the next write.
func (this *BufferStream) Bytes() []byte {
	return this.buf[this.off:]
}
