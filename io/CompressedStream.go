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

// Package io implements the QPK container: one shot Encode and Decode
// functions plus a Writer and a Reader built on top of them.
package io

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	qpk "github.com/flanglet/qpk-go"
	"github.com/flanglet/qpk-go/entropy"
)

// IOError an extended error containing a message, a code value and
// optionally the error that caused it
type IOError struct {
	msg  string
	code int
	err  error
}

// NewIOError creates an IOError. The code is derived from the cause when
// it is a format or capacity error.
func NewIOError(msg string, code int, cause error) *IOError {
	if errors.Is(cause, qpk.ErrInvalidFormat) {
		code = qpk.ERR_INVALID_FILE
	} else if errors.Is(cause, qpk.ErrCapacity) {
		code = qpk.ERR_CAPACITY
	}

	if cause != nil {
		msg = msg + ": " + cause.Error()
	}

	return &IOError{msg: msg, code: code, err: cause}
}

// Error returns the underlying error
func (this IOError) Error() string {
	return fmt.Sprintf("%v (code %v)", this.msg, this.code)
}

// Message returns the message string associated with the error
func (this IOError) Message() string {
	return this.msg
}

// ErrorCode returns the code value associated with the error
func (this IOError) ErrorCode() int {
	return this.code
}

// Unwrap returns the cause of the error (may be nil)
func (this IOError) Unwrap() error {
	return this.err
}

// Encode compresses src into a QPK container.
// Context keys:
//   - "extendedAlphabet" (bool): accept inputs using all 256 byte values
//   - "checksum" (bool): attach 64 bit hashes of the raw data to events
func Encode(src []byte, ctx map[string]any, listeners ...qpk.Listener) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(src)/2 + _HEADER_SIZE)

	if _, _, err := encode(&buf, src, ctx, listeners); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode decompresses a QPK container. Bytes following the payload are
// ignored.
// Context keys:
//   - "checksum" (bool): attach a 64 bit hash of the decoded data to the
//     end event
func Decode(src []byte, ctx map[string]any, listeners ...qpk.Listener) ([]byte, error) {
	res, _, err := decode(src, ctx, listeners)
	return res, err
}

// decode parses the header and decodes the payload of the container
func decode(src []byte, ctx map[string]any, listeners []qpk.Listener) (res []byte, hdr *Header, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = NewIOError(fmt.Sprintf("Decoding failed: %v", r), qpk.ERR_READ_FILE, qpk.ErrInvalidFormat)
		}
	}()

	checksum := getBool(ctx, "checksum")

	if len(listeners) > 0 {
		evt := qpk.NewEvent(qpk.EVT_DECOMPRESSION_START, 0, int64(len(src)), 0, qpk.EVT_HASH_NONE, time.Now())
		notifyListeners(listeners, evt)
	}

	hdr, hdrSize, err := ReadHeader(src)

	if err != nil {
		return nil, nil, NewIOError("Cannot read header", qpk.ERR_INVALID_FILE, err)
	}

	if len(listeners) > 0 {
		evt := qpk.NewEvent(qpk.EVT_AFTER_HEADER_DECODING, hdr.Table.Len(), int64(hdrSize), 0, qpk.EVT_HASH_NONE, time.Now())
		notifyListeners(listeners, evt)
	}

	res, err = entropy.Unpack(src[hdrSize:], uint64(hdr.BitLength), hdr.Table)

	if err != nil {
		return nil, hdr, NewIOError("Cannot decode payload", qpk.ERR_PROCESS_BLOCK, err)
	}

	if len(listeners) > 0 {
		hash, hashType := uint64(0), qpk.EVT_HASH_NONE

		if checksum {
			hash, hashType = xxhash.Sum64(res), qpk.EVT_HASH_64BITS
		}

		evt := qpk.NewEvent(qpk.EVT_DECOMPRESSION_END, hdr.Table.Len(), int64(len(res)), hash, hashType, time.Now())
		notifyListeners(listeners, evt)
	}

	return res, hdr, nil
}

// encode runs both passes over src and writes the container to w.
// Returns the number of bytes written and the code table.
func encode(w io.Writer, src []byte, ctx map[string]any, listeners []qpk.Listener) (written int64, table *entropy.CodeTable, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewIOError(fmt.Sprintf("Encoding failed: %v", r), qpk.ERR_PROCESS_BLOCK, nil)
		}
	}()

	extended := getBool(ctx, "extendedAlphabet")
	checksum := getBool(ctx, "checksum")
	hash, hashType := uint64(0), qpk.EVT_HASH_NONE

	if checksum {
		hash, hashType = xxhash.Sum64(src), qpk.EVT_HASH_64BITS
	}

	if len(listeners) > 0 {
		evt := qpk.NewEvent(qpk.EVT_COMPRESSION_START, 0, int64(len(src)), hash, hashType, time.Now())
		notifyListeners(listeners, evt)
	}

	// First pass: statistics and code table
	freqs := entropy.ComputeFrequencies(src)

	if len(freqs) > _MAX_STANDARD_TUPLES && extended == false {
		msg := fmt.Sprintf("Cannot encode %d distinct symbols without extended alphabet", len(freqs))
		return 0, nil, NewIOError(msg, qpk.ERR_CAPACITY, qpk.ErrCapacity)
	}

	table = &entropy.CodeTable{}

	if len(freqs) > 0 {
		root, err := entropy.BuildCodeTree(freqs)

		if err != nil {
			return 0, nil, NewIOError("Cannot build code tree", qpk.ERR_PROCESS_BLOCK, err)
		}

		if table, err = entropy.GenerateCodeTable(root); err != nil {
			return 0, nil, NewIOError("Cannot generate code table", qpk.ERR_PROCESS_BLOCK, err)
		}
	}

	bitLength := table.EncodedBits(freqs)

	if bitLength > math.MaxUint32 {
		msg := fmt.Sprintf("Cannot encode %d payload bits (max %d)", bitLength, uint64(math.MaxUint32))
		return 0, nil, NewIOError(msg, qpk.ERR_CAPACITY, qpk.ErrCapacity)
	}

	if len(listeners) > 0 {
		evt := qpk.NewEvent(qpk.EVT_AFTER_ANALYSIS, table.Len(), int64((bitLength+7)>>3), 0, qpk.EVT_HASH_NONE, time.Now())
		notifyListeners(listeners, evt)
	}

	hdr := &Header{BitLength: uint32(bitLength), Table: table, Extended: extended}

	if written, err = hdr.WriteTo(w); err != nil {
		return written, table, NewIOError("Cannot write header", qpk.ERR_WRITE_FILE, err)
	}

	if len(listeners) > 0 {
		evt := qpk.NewEvent(qpk.EVT_AFTER_HEADER_ENCODING, table.Len(), written, 0, qpk.EVT_HASH_NONE, time.Now())
		notifyListeners(listeners, evt)
	}

	// Second pass: payload
	payload, bits, err := entropy.Pack(src, table)

	if err != nil {
		return written, table, NewIOError("Cannot encode payload", qpk.ERR_PROCESS_BLOCK, err)
	}

	if bits != bitLength {
		msg := fmt.Sprintf("Payload size mismatch: %d bits written, %d expected", bits, bitLength)
		return written, table, NewIOError(msg, qpk.ERR_PROCESS_BLOCK, nil)
	}

	n, err := w.Write(payload)
	written += int64(n)

	if err != nil {
		return written, table, NewIOError("Cannot write payload", qpk.ERR_WRITE_FILE, err)
	}

	if len(listeners) > 0 {
		evt := qpk.NewEvent(qpk.EVT_COMPRESSION_END, table.Len(), written, hash, hashType, time.Now())
		notifyListeners(listeners, evt)
	}

	return written, table, nil
}

func getBool(ctx map[string]any, key string) bool {
	if ctx == nil {
		return false
	}

	if v, ok := ctx[key].(bool); ok {
		return v
	}

	return false
}

func notifyListeners(listeners []qpk.Listener, evt *qpk.Event) {
	defer func() {
		//lint:ignore SA9003 ignore panics in listeners
		if r := recover(); r != nil {
			// Ignore panics in listeners
		}
	}()

	for _, bl := range listeners {
		bl.ProcessEvent(evt)
	}
}

func addListener(listeners []qpk.Listener, bl qpk.Listener) ([]qpk.Listener, bool) {
	if bl == nil {
		return listeners, false
	}

	return append(listeners, bl), true
}

func removeListener(listeners []qpk.Listener, bl qpk.Listener) ([]qpk.Listener, bool) {
	if bl == nil {
		return listeners, false
	}

	for i, e := range listeners {
		if e == bl {
			return append(listeners[:i], listeners[i+1:]...), true
		}
	}

	return listeners, false
}

// Writer an io.WriteCloser that compresses data into a QPK container.
// Huffman coding needs the statistics of the whole input before the first
// code can be emitted, so the data is buffered and the container is
// produced on Close.
type Writer struct {
	os        io.WriteCloser
	ctx       map[string]any
	buffer    []byte
	listeners []qpk.Listener
	table     *entropy.CodeTable
	written   int64
	closed    bool
}

// NewWriter creates a new instance of Writer writing the container to os
func NewWriter(os io.WriteCloser, ctx map[string]any) (*Writer, error) {
	if os == nil {
		return nil, &IOError{msg: "Invalid null writer parameter", code: qpk.ERR_CREATE_COMPRESSOR}
	}

	if ctx == nil {
		return nil, &IOError{msg: "Invalid null context parameter", code: qpk.ERR_CREATE_COMPRESSOR}
	}

	return &Writer{os: os, ctx: ctx, buffer: make([]byte, 0, 65536)}, nil
}

// AddListener adds an event listener to this writer.
// Returns true if the listener has been added.
func (this *Writer) AddListener(bl qpk.Listener) bool {
	var res bool
	this.listeners, res = addListener(this.listeners, bl)
	return res
}

// RemoveListener removes an event listener from this writer.
// Returns true if the listener has been removed.
func (this *Writer) RemoveListener(bl qpk.Listener) bool {
	var res bool
	this.listeners, res = removeListener(this.listeners, bl)
	return res
}

// Write buffers the data. Returns an error if the writer is closed.
func (this *Writer) Write(block []byte) (int, error) {
	if this.closed {
		return 0, &IOError{msg: "Stream closed", code: qpk.ERR_WRITE_FILE}
	}

	this.buffer = append(this.buffer, block...)
	return len(block), nil
}

// Close encodes the buffered data, writes the container and closes the
// underlying writer. Calling Close again has no effect.
func (this *Writer) Close() error {
	if this.closed {
		return nil
	}

	this.closed = true
	n, table, err := encode(this.os, this.buffer, this.ctx, this.listeners)
	this.written = n
	this.table = table
	this.buffer = nil

	if err != nil {
		this.os.Close()
		return err
	}

	if err = this.os.Close(); err != nil {
		return NewIOError("Cannot close output", qpk.ERR_WRITE_FILE, err)
	}

	return nil
}

// CodeTable returns the code table used to encode the data (nil before Close)
func (this *Writer) CodeTable() *entropy.CodeTable {
	return this.table
}

// GetWritten returns the number of compressed bytes written so far
func (this *Writer) GetWritten() uint64 {
	return uint64(this.written)
}

// Reader an io.ReadCloser that decompresses a QPK container. The whole
// container is read and decoded on the first call to Read.
type Reader struct {
	is        io.ReadCloser
	ctx       map[string]any
	data      []byte
	offset    int
	header    *Header
	listeners []qpk.Listener
	read      int64
	err       error
	decoded   bool
	closed    bool
}

// NewReader creates a new instance of Reader decoding the container read from is
func NewReader(is io.ReadCloser, ctx map[string]any) (*Reader, error) {
	if is == nil {
		return nil, &IOError{msg: "Invalid null reader parameter", code: qpk.ERR_CREATE_DECOMPRESSOR}
	}

	if ctx == nil {
		return nil, &IOError{msg: "Invalid null context parameter", code: qpk.ERR_CREATE_DECOMPRESSOR}
	}

	return &Reader{is: is, ctx: ctx}, nil
}

// AddListener adds an event listener to this reader.
// Returns true if the listener has been added.
func (this *Reader) AddListener(bl qpk.Listener) bool {
	var res bool
	this.listeners, res = addListener(this.listeners, bl)
	return res
}

// RemoveListener removes an event listener from this reader.
// Returns true if the listener has been removed.
func (this *Reader) RemoveListener(bl qpk.Listener) bool {
	var res bool
	this.listeners, res = removeListener(this.listeners, bl)
	return res
}

// Read fills the block with decompressed data. Returns io.EOF once all
// the data has been returned.
func (this *Reader) Read(block []byte) (int, error) {
	if this.closed {
		return 0, &IOError{msg: "Stream closed", code: qpk.ERR_READ_FILE}
	}

	if this.decoded == false {
		this.decoded = true
		src, err := io.ReadAll(this.is)
		this.read = int64(len(src))

		if err != nil {
			this.err = NewIOError("Cannot read input", qpk.ERR_READ_FILE, err)
		} else {
			this.data, this.header, this.err = decode(src, this.ctx, this.listeners)
		}
	}

	if this.err != nil {
		return 0, this.err
	}

	if this.offset >= len(this.data) {
		return 0, io.EOF
	}

	n := copy(block, this.data[this.offset:])
	this.offset += n
	return n, nil
}

// Close releases the decoded data and closes the underlying reader.
// Calling Close again has no effect.
func (this *Reader) Close() error {
	if this.closed {
		return nil
	}

	this.closed = true
	this.data = nil

	if err := this.is.Close(); err != nil {
		return NewIOError("Cannot close input", qpk.ERR_READ_FILE, err)
	}

	return nil
}

// Header returns the container header (nil before the first Read)
func (this *Reader) Header() *Header {
	return this.header
}

// GetRead returns the number of compressed bytes read so far
func (this *Reader) GetRead() uint64 {
	return uint64(this.read)
}
