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

package io

import (
	"encoding/binary"
	"fmt"
	"io"

	qpk "github.com/flanglet/qpk-go"
	"github.com/flanglet/qpk-go/entropy"
)

const (
	_MAGIC               = "QPK"
	_HEADER_SIZE         = 8 // magic + bit length + tuple count
	_RECORD_SIZE         = 6 // symbol + code + length
	_MAX_STANDARD_TUPLES = 255
)

// Header is the QPK container header: the exact number of meaningful
// payload bits followed by the flat code table. The payload starts right
// after the last code table record.
//
// Layout (little endian):
//
//	magic "QPK" (3 bytes) | bitLength (4 bytes) | tupleCount (1 byte)
//	tupleCount x [symbol (1 byte) | code (4 bytes) | length (1 byte)]
//
// A tuple count of 0 with a non zero bit length announces 256 records
// (extended alphabet).
type Header struct {
	BitLength uint32
	Table     *entropy.CodeTable
	Extended  bool // allow a 256 symbol table
}

// Size returns the number of bytes taken by the serialized header
func (this *Header) Size() int {
	n := 0

	if this.Table != nil {
		n = this.Table.Len()
	}

	return _HEADER_SIZE + n*_RECORD_SIZE
}

// WriteTo serializes the header. A 256 symbol table is rejected with a
// capacity error unless Extended is set.
func (this *Header) WriteTo(w io.Writer) (int64, error) {
	var entries []entropy.CodeEntry

	if this.Table != nil {
		entries = this.Table.Entries()
	}

	count := len(entries)

	if count > _MAX_STANDARD_TUPLES {
		if this.Extended == false {
			return 0, fmt.Errorf("Cannot write header: %d distinct symbols (max %d): %w",
				count, _MAX_STANDARD_TUPLES, qpk.ErrCapacity)
		}

		if this.BitLength == 0 {
			return 0, fmt.Errorf("Cannot write header: extended table without payload: %w", qpk.ErrInvalidFormat)
		}

		count = 0
	}

	buf := make([]byte, this.Size())
	copy(buf, _MAGIC)
	binary.LittleEndian.PutUint32(buf[3:], this.BitLength)
	buf[7] = byte(count)
	idx := _HEADER_SIZE

	for _, e := range entries {
		buf[idx] = e.Symbol
		binary.LittleEndian.PutUint32(buf[idx+1:], e.Code)
		buf[idx+5] = e.Length
		idx += _RECORD_SIZE
	}

	n, err := w.Write(buf)
	return int64(n), err
}

// ReadHeader parses and validates the header at the start of src.
// Returns the header and its size in bytes (the payload offset).
func ReadHeader(src []byte) (*Header, int, error) {
	if len(src) < len(_MAGIC) || string(src[0:len(_MAGIC)]) != _MAGIC {
		return nil, 0, fmt.Errorf("Invalid header: missing QPK magic: %w", qpk.ErrInvalidFormat)
	}

	if len(src) < _HEADER_SIZE {
		return nil, 0, fmt.Errorf("Invalid header: truncated (%d bytes): %w", len(src), qpk.ErrInvalidFormat)
	}

	res := &Header{BitLength: binary.LittleEndian.Uint32(src[3:])}
	count := int(src[7])

	if count == 0 && res.BitLength > 0 {
		count = 256
		res.Extended = true
	}

	size := _HEADER_SIZE + count*_RECORD_SIZE

	if len(src) < size {
		return nil, 0, fmt.Errorf("Invalid header: %d code table records need %d bytes, got %d: %w",
			count, size, len(src), qpk.ErrInvalidFormat)
	}

	entries := make([]entropy.CodeEntry, count)
	idx := _HEADER_SIZE

	for i := range entries {
		entries[i] = entropy.CodeEntry{
			Symbol: src[idx],
			Code:   binary.LittleEndian.Uint32(src[idx+1:]),
			Length: src[idx+5],
		}

		idx += _RECORD_SIZE
	}

	table, err := entropy.NewCodeTable(entries)

	if err != nil {
		return nil, 0, err
	}

	res.Table = table
	return res, size, nil
}

// IsQPK returns true if the data starts with the QPK magic
func IsQPK(src []byte) bool {
	return len(src) >= len(_MAGIC) && string(src[0:len(_MAGIC)]) == _MAGIC
}
