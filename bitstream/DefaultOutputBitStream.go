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

// Package bitstream provides MSB-first bit level writers and readers on top
// of byte streams.
package bitstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultOutputBitStream is the default implementation of OutputBitStream.
// Bits are packed most significant bit first. Full 64-bit words are moved to
// an internal buffer which is flushed to the underlying writer when full.
type DefaultOutputBitStream struct {
	closed    bool
	written   uint64 // bits flushed to the underlying writer
	position  int    // index of current byte in buffer
	availBits uint   // free bits in current
	current   uint64 // cached bits
	os        io.Writer
	buffer    []byte
}

// NewDefaultOutputBitStream creates a bitstream for writing, using the provided stream as
// the underlying I/O object.
func NewDefaultOutputBitStream(stream io.Writer, bufferSize uint) (*DefaultOutputBitStream, error) {
	if stream == nil {
		return nil, errors.New("Invalid null output stream parameter")
	}

	if bufferSize < 1024 {
		return nil, errors.New("Invalid buffer size parameter (must be at least 1024 bytes)")
	}

	if bufferSize > 1<<29 {
		return nil, errors.New("Invalid buffer size parameter (must be at most 536870912 bytes)")
	}

	if bufferSize&7 != 0 {
		return nil, errors.New("Invalid buffer size (must be a multiple of 8)")
	}

	this := new(DefaultOutputBitStream)
	this.buffer = make([]byte, bufferSize)
	this.os = stream
	this.availBits = 64
	return this, nil
}

// WriteBit writes the least significant bit of the input integer. Panics if the bitstream is closed
func (this *DefaultOutputBitStream) WriteBit(bit int) {
	if this.closed {
		panic(errors.New("Stream closed"))
	}

	this.availBits--
	this.current |= uint64(bit&1) << this.availBits

	if this.availBits == 0 {
		this.pushCurrent()
	}
}

// WriteBits writes the 'count' least significant bits of 'value' to the bitstream,
// most significant bit first.
// Panics if the bitstream is closed or 'count' is outside of [1..64].
// Returns the number of written bits.
func (this *DefaultOutputBitStream) WriteBits(value uint64, count uint) uint {
	if count == 0 || count > 64 {
		panic(fmt.Errorf("Invalid bit count: %d (must be in [1..64])", count))
	}

	if this.closed {
		panic(errors.New("Stream closed"))
	}

	value &= 0xFFFFFFFFFFFFFFFF >> (64 - count)

	if this.availBits > count {
		// Enough spots available in 'current'
		this.availBits -= count
		this.current |= value << this.availBits
		return count
	}

	// Not enough spots available in 'current'
	remaining := count - this.availBits
	this.current |= value >> remaining
	this.pushCurrent()

	if remaining > 0 {
		this.current = value << (64 - remaining)
		this.availBits -= remaining
	}

	return count
}

// Push 64 bits of current value into buffer.
func (this *DefaultOutputBitStream) pushCurrent() {
	binary.BigEndian.PutUint64(this.buffer[this.position:this.position+8], this.current)
	this.availBits = 64
	this.current = 0
	this.position += 8

	if this.position >= len(this.buffer) {
		if err := this.flush(); err != nil {
			panic(err)
		}
	}
}

// Write buffer into underlying stream
func (this *DefaultOutputBitStream) flush() error {
	if this.position > 0 {
		if _, err := this.os.Write(this.buffer[0:this.position]); err != nil {
			return err
		}

		this.written += uint64(this.position) << 3
		this.position = 0
	}

	return nil
}

// Close pads the last byte with zero bits, flushes the internal buffer and
// prevents further writes. The underlying stream is not closed.
func (this *DefaultOutputBitStream) Close() (bool, error) {
	if this.closed {
		return true, nil
	}

	used := 64 - this.availBits
	meaningful := this.written + uint64(this.position)<<3 + uint64(used)
	savedPosition := this.position

	// Push last bytes (the very last byte may be incomplete)
	for shift := uint(56); used > 0; shift -= 8 {
		this.buffer[this.position] = byte(this.current >> shift)
		this.position++

		if used < 8 {
			break
		}

		used -= 8
	}

	if err := this.flush(); err != nil {
		// Revert position to allow subsequent attempts in case of transient failure
		this.position = savedPosition
		return false, err
	}

	this.closed = true
	this.written = meaningful
	this.availBits = 64
	this.current = 0
	return true, nil
}

// Written returns the number of meaningful bits written so far. Padding bits
// added by Close are not counted.
func (this *DefaultOutputBitStream) Written() uint64 {
	if this.closed {
		return this.written
	}

	// Number of bits flushed + bytes written in memory + bits written in current
	return this.written + uint64(this.position)<<3 + uint64(64-this.availBits)
}

// Closed says whether this stream can be written to
func (this *DefaultOutputBitStream) Closed() bool {
	return this.closed
}
