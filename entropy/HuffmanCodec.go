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

package entropy

import (
	"errors"
	"fmt"

	qpk "github.com/flanglet/qpk-go"
	"github.com/flanglet/qpk-go/bitstream"
	"github.com/flanglet/qpk-go/internal"
)

const (
	_PACK_BUFFER_SIZE = 65536
)

// HuffmanEncoder writes the codes of symbols to a bitstream using a static
// code table.
type HuffmanEncoder struct {
	bitstream qpk.OutputBitStream
	codes     [256]uint32
	sizes     [256]uint8
}

// NewHuffmanEncoder creates an instance of HuffmanEncoder writing to the
// bitstream with the codes of the provided table.
func NewHuffmanEncoder(bs qpk.OutputBitStream, table *CodeTable) (*HuffmanEncoder, error) {
	if bs == nil {
		return nil, errors.New("Huffman codec: Invalid null bitstream parameter")
	}

	if table == nil {
		return nil, errors.New("Huffman codec: Invalid null code table parameter")
	}

	this := &HuffmanEncoder{bitstream: bs}

	for _, e := range table.entries {
		this.codes[e.Symbol] = e.Code
		this.sizes[e.Symbol] = e.Length
	}

	return this, nil
}

// Write encodes the data in the block and writes the codes to the bitstream.
// Returns the number of symbols written. Fails if a symbol has no code.
// Panics if the bitstream fails.
func (this *HuffmanEncoder) Write(block []byte) (int, error) {
	for i, b := range block {
		if this.sizes[b] == 0 {
			return i, fmt.Errorf("Huffman codec: no code for symbol %d", b)
		}

		this.bitstream.WriteBits(uint64(this.codes[b]), uint(this.sizes[b]))
	}

	return len(block), nil
}

// HuffmanDecoder reads codes from a bitstream and maps them back to
// symbols using a static code table.
type HuffmanDecoder struct {
	bitstream qpk.InputBitStream
	index     map[uint64]byte // (length << 32 | code) -> symbol
	minLength uint
	maxLength uint
}

// NewHuffmanDecoder creates an instance of HuffmanDecoder reading from the
// bitstream with the codes of the provided table.
func NewHuffmanDecoder(bs qpk.InputBitStream, table *CodeTable) (*HuffmanDecoder, error) {
	if bs == nil {
		return nil, errors.New("Huffman codec: Invalid null bitstream parameter")
	}

	if table == nil {
		return nil, errors.New("Huffman codec: Invalid null code table parameter")
	}

	this := &HuffmanDecoder{
		bitstream: bs,
		index:     make(map[uint64]byte, len(table.entries)),
		minLength: table.minLength(),
		maxLength: table.maxLength,
	}

	for _, e := range table.entries {
		this.index[uint64(e.Length)<<32|uint64(e.Code)] = e.Symbol
	}

	return this, nil
}

// Read decodes exactly 'bitCount' bits from the bitstream and appends the
// symbols to dst. Fails if the bits do not form a sequence of complete
// codes or if the bitstream runs out of data.
func (this *HuffmanDecoder) Read(dst []byte, bitCount uint64) (res []byte, err error) {
	res = dst

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("Huffman codec: truncated payload (%v): %w", r, qpk.ErrInvalidFormat)
		}
	}()

	if bitCount > 0 && this.maxLength == 0 {
		return res, fmt.Errorf("Huffman codec: no code to decode %d bits: %w", bitCount, qpk.ErrInvalidFormat)
	}

	code := uint64(0)
	length := uint(0)

	for n := uint64(0); n < bitCount; {
		if length == 0 && this.minLength > 1 && bitCount-n >= uint64(this.minLength) {
			// No code is shorter than minLength
			code = this.bitstream.ReadBits(this.minLength)
			length = this.minLength
			n += uint64(this.minLength)
		} else {
			code = (code << 1) | uint64(this.bitstream.ReadBit())
			length++
			n++
		}

		if s, ok := this.index[uint64(length)<<32|code]; ok {
			res = append(res, s)
			code = 0
			length = 0
			continue
		}

		if length >= this.maxLength {
			return res, fmt.Errorf("Huffman codec: invalid code ending at bit %d: %w", n-1, qpk.ErrInvalidFormat)
		}
	}

	if length != 0 {
		return res, fmt.Errorf("Huffman codec: payload ends inside a code: %w", qpk.ErrInvalidFormat)
	}

	return res, nil
}

// Pack encodes the block with the table and returns the zero padded
// payload along with the number of meaningful bits.
func Pack(block []byte, table *CodeTable) ([]byte, uint64, error) {
	bs := internal.NewBufferStream(make([]byte, 0, len(block)/2+8))
	obs, err := bitstream.NewDefaultOutputBitStream(bs, _PACK_BUFFER_SIZE)

	if err != nil {
		return nil, 0, err
	}

	enc, err := NewHuffmanEncoder(obs, table)

	if err != nil {
		return nil, 0, err
	}

	if _, err = enc.Write(block); err != nil {
		return nil, 0, err
	}

	if _, err = obs.Close(); err != nil {
		return nil, 0, err
	}

	return bs.Bytes(), obs.Written(), nil
}

// Unpack decodes exactly 'bitCount' bits of the payload with the table.
func Unpack(payload []byte, bitCount uint64, table *CodeTable) ([]byte, error) {
	if uint64(len(payload)) < (bitCount+7)>>3 {
		return nil, fmt.Errorf("Huffman codec: payload holds %d bytes, %d bits expected: %w",
			len(payload), bitCount, qpk.ErrInvalidFormat)
	}

	if bitCount == 0 {
		return []byte{}, nil
	}

	ibs, err := bitstream.NewDefaultInputBitStream(internal.NewBufferStream(payload), _PACK_BUFFER_SIZE)

	if err != nil {
		return nil, err
	}

	dec, err := NewHuffmanDecoder(ibs, table)

	if err != nil {
		return nil, err
	}

	capacity := bitCount

	if table.maxLength > 0 {
		capacity = bitCount / uint64(table.minLength())
	}

	if capacity > 1<<24 {
		capacity = 1 << 24
	}

	res, err := dec.Read(make([]byte, 0, capacity), bitCount)
	ibs.Close()
	return res, err
}
