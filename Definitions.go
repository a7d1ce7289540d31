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

// Package qpk defines the top level interfaces and error values shared by
// the qpk static Huffman compressor/decompressor.
//
// The implementations live in sub-folders: bitstream for bit level I/O,
// entropy for frequency analysis, code tree and code table construction,
// and io for the QPK container format plus the Writer and Reader used to
// compress and decompress data.
package qpk

import (
	"errors"
)

const (
	ERR_MISSING_PARAM       = 1
	ERR_CREATE_COMPRESSOR   = 4
	ERR_CREATE_DECOMPRESSOR = 5
	ERR_OUTPUT_IS_DIR       = 6
	ERR_OVERWRITE_FILE      = 7
	ERR_CREATE_FILE         = 8
	ERR_OPEN_FILE           = 10
	ERR_READ_FILE           = 11
	ERR_WRITE_FILE          = 12
	ERR_PROCESS_BLOCK       = 13
	ERR_INVALID_FILE        = 15
	ERR_INVALID_PARAM       = 18
	ERR_CAPACITY            = 20
	ERR_UNKNOWN             = 127
)

var (
	// ErrInvalidFormat reports a compressed buffer that cannot be decoded:
	// bad magic, truncated header or payload, or an invalid code table.
	ErrInvalidFormat = errors.New("invalid QPK data")

	// ErrCapacity reports an input that the container format cannot represent.
	ErrCapacity = errors.New("capacity of the QPK format exceeded")

	// ErrEmptyAlphabet reports an attempt to build a code tree without symbols.
	ErrEmptyAlphabet = errors.New("empty alphabet")
)

// InputBitStream is a bitstream reader
type InputBitStream interface {
	// ReadBit returns the next bit in the bitstream. Panics if closed or EOS is reached.
	ReadBit() int

	// ReadBits reads 'length' (in [1..64]) bits from the bitstream.
	// Returns the bits read as an uint64.
	// Panics if closed or EOS is reached.
	ReadBits(length uint) uint64

	// Close makes the bitstream unavailable for further reads.
	Close() (bool, error)

	// Read returns the number of bits read
	Read() uint64
}

// OutputBitStream is a bitstream writer
type OutputBitStream interface {
	// WriteBit writes the least significant bit of the input integer.
	// Panics if closed or an IO error is received.
	WriteBit(bit int)

	// WriteBits writes the least significant bits of 'bits' to the bitstream,
	// most significant bit first. Length is the number of bits to write (in [1..64]).
	// Returns the number of bits written.
	// Panics if closed or an IO error is received.
	WriteBits(bits uint64, length uint) uint

	// Close pads the last byte with zero bits, flushes and makes the
	// bitstream unavailable for further writes.
	Close() (bool, error)

	// Written returns the number of meaningful bits written (padding excluded)
	Written() uint64
}
