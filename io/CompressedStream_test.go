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
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"testing"

	"github.com/cespare/xxhash/v2"
	qpk "github.com/flanglet/qpk-go"
	"github.com/flanglet/qpk-go/internal"
	"github.com/klauspost/compress/huff0"
	"github.com/klauspost/compress/zstd"
)

func TestCompressedStream(t *testing.T) {
	if err := testRoundTrips(); err != nil {
		t.Error(err)
	}
}

func TestWriterReader(t *testing.T) {
	if err := testWriterReader(); err != nil {
		t.Error(err)
	}
}

func TestHeaderLayout(t *testing.T) {
	if err := testHeaderLayout(); err != nil {
		t.Error(err)
	}
}

func TestExtendedAlphabet(t *testing.T) {
	if err := testExtendedAlphabet(); err != nil {
		t.Error(err)
	}
}

func TestDecodeErrors(t *testing.T) {
	if err := testDecodeErrors(); err != nil {
		t.Error(err)
	}
}

func TestListeners(t *testing.T) {
	if err := testListeners(); err != nil {
		t.Error(err)
	}
}

func roundTrip(block []byte, ctx map[string]any) error {
	compressed, err := Encode(block, ctx)

	if err != nil {
		return err
	}

	res, err := Decode(compressed, ctx)

	if err != nil {
		return err
	}

	if bytes.Equal(res, block) == false {
		return fmt.Errorf("Decoded data differs from original (%d bytes)", len(block))
	}

	return nil
}

func testRoundTrips() error {
	ctx := make(map[string]any)

	if err := roundTrip([]byte{}, ctx); err != nil {
		return fmt.Errorf("Empty input: %v", err)
	}

	if err := roundTrip([]byte{'x'}, ctx); err != nil {
		return fmt.Errorf("Single byte input: %v", err)
	}

	if err := roundTrip(bytes.Repeat([]byte{0x55}, 100000), ctx); err != nil {
		return fmt.Errorf("Repeated byte input: %v", err)
	}

	values := make([]byte, 1<<18)

	for test := 1; test <= 20; test++ {
		length := 1 + rand.Intn(len(values))

		for i := range values[0:length] {
			values[i] = byte(rand.Intn(4*test + 1))
		}

		if err := roundTrip(values[0:length], ctx); err != nil {
			return fmt.Errorf("Iteration %d: %v", test, err)
		}
	}

	return nil
}

func testWriterReader() error {
	block := make([]byte, 100000)

	for i := range block {
		block[i] = byte(rand.Intn(32) + 'A')
	}

	bs := internal.NewBufferStream()
	w, err := NewWriter(bs, map[string]any{})

	if err != nil {
		return err
	}

	// Several writes are buffered until Close
	for off := 0; off < len(block); off += 4096 {
		end := min(off+4096, len(block))

		if _, err = w.Write(block[off:end]); err != nil {
			return err
		}
	}

	if err = w.Close(); err != nil {
		return err
	}

	if _, err = w.Write(block); err == nil {
		return errors.New("Write after Close should fail")
	}

	if w.GetWritten() == 0 || w.CodeTable() == nil || w.CodeTable().Len() != 32 {
		return errors.New("Invalid writer state after Close")
	}

	compressed := append([]byte(nil), bs.Bytes()...)
	r, err := NewReader(internal.NewBufferStream(compressed), map[string]any{})

	if err != nil {
		return err
	}

	res, err := io.ReadAll(r)

	if err != nil {
		return err
	}

	if bytes.Equal(res, block) == false {
		return errors.New("Decoded data differs from original")
	}

	if r.GetRead() != uint64(len(compressed)) || r.Header() == nil {
		return errors.New("Invalid reader state")
	}

	r.Close()

	if _, err = r.Read(res); err == nil {
		return errors.New("Read after Close should fail")
	}

	if _, err = NewWriter(nil, map[string]any{}); err == nil {
		return errors.New("Expected error for null writer")
	}

	if _, err = NewReader(nil, map[string]any{}); err == nil {
		return errors.New("Expected error for null reader")
	}

	return nil
}

func testHeaderLayout() error {
	compressed, err := Encode([]byte("AAABBC"), nil)

	if err != nil {
		return err
	}

	expected := []byte{
		'Q', 'P', 'K',
		9, 0, 0, 0,         // bit length
		3,                  // tuple count
		'A', 0, 0, 0, 0, 1, // A => 0
		'C', 2, 0, 0, 0, 2, // C => 10
		'B', 3, 0, 0, 0, 2, // B => 11
		0x1F, 0x00,         // 000 11 11 10 + padding
	}

	if bytes.Equal(compressed, expected) == false {
		return fmt.Errorf("Invalid container:\n%x\nexpected:\n%x", compressed, expected)
	}

	hdr, size, err := ReadHeader(compressed)

	if err != nil {
		return err
	}

	if size != 26 || hdr.BitLength != 9 || hdr.Table.Len() != 3 || hdr.Size() != size {
		return fmt.Errorf("Invalid header: size %d, bit length %d", size, hdr.BitLength)
	}

	// Empty input: header only
	compressed, _ = Encode(nil, nil)

	if bytes.Equal(compressed, []byte{'Q', 'P', 'K', 0, 0, 0, 0, 0}) == false {
		return fmt.Errorf("Invalid container for empty input: %x", compressed)
	}

	// Single symbol: one bit per symbol
	compressed, _ = Encode([]byte("xxxx"), nil)
	hdr, _, err = ReadHeader(compressed)

	if err != nil || hdr.BitLength != 4 || len(compressed) != 8+6+1 {
		return fmt.Errorf("Invalid container for single symbol input: %x", compressed)
	}

	// Decode recovers the exact table and payload size
	block := make([]byte, 10000)

	for i := range block {
		block[i] = byte(rand.Intn(100))
	}

	compressed, _ = Encode(block, nil)
	hdr, size, _ = ReadHeader(compressed)

	if uint64(len(compressed)-size) != (uint64(hdr.BitLength)+7)>>3 {
		return fmt.Errorf("Invalid payload size: %d bytes for %d bits", len(compressed)-size, hdr.BitLength)
	}

	if IsQPK(compressed) == false || IsQPK(block[0:2]) == true {
		return errors.New("Invalid magic detection")
	}

	return nil
}

func testExtendedAlphabet() error {
	block := make([]byte, 4096)

	for i := range block {
		block[i] = byte(i)
	}

	_, err := Encode(block, map[string]any{})

	if errors.Is(err, qpk.ErrCapacity) == false {
		return fmt.Errorf("Expected capacity error without extended alphabet, got %v", err)
	}

	var ioerr *IOError

	if errors.As(err, &ioerr) == false || ioerr.ErrorCode() != qpk.ERR_CAPACITY {
		return fmt.Errorf("Expected IOError with capacity code, got %v", err)
	}

	ctx := map[string]any{"extendedAlphabet": true}
	compressed, err := Encode(block, ctx)

	if err != nil {
		return err
	}

	if compressed[7] != 0 || len(compressed) < 8+256*6 {
		return fmt.Errorf("Invalid extended header: tuple count %d", compressed[7])
	}

	hdr, _, err := ReadHeader(compressed)

	if err != nil || hdr.Table.Len() != 256 || hdr.Extended == false {
		return fmt.Errorf("Invalid extended header: %v", err)
	}

	// Uniform distribution over 256 symbols: 8 bits per symbol
	if hdr.BitLength != uint32(8*len(block)) {
		return fmt.Errorf("Invalid bit length: %d", hdr.BitLength)
	}

	// Decoding does not need the option
	return roundTrip(block, ctx)
}

func testDecodeErrors() error {
	compressed, _ := Encode([]byte("AAABBC"), nil)
	invalid := map[string][]byte{
		"bad magic":          append([]byte("QPX"), compressed[3:]...),
		"empty":              {},
		"magic only":         compressed[0:3],
		"truncated header":   compressed[0:7],
		"truncated tuples":   compressed[0:20],
		"truncated payload":  compressed[0:26],
		"invalid length":     patch(compressed, 13, 0),
		"duplicate symbol":   patch(compressed, 14, 'A'),
		"not prefix free":    patch(compressed, 15, 1),
		"extended truncated": []byte{'Q', 'P', 'K', 8, 0, 0, 0, 0, 'A', 0, 0, 0, 0, 1},
	}

	for name, src := range invalid {
		_, err := Decode(src, nil)

		if errors.Is(err, qpk.ErrInvalidFormat) == false {
			return fmt.Errorf("%s: expected invalid format error, got %v", name, err)
		}

		var ioerr *IOError

		if errors.As(err, &ioerr) == false || ioerr.ErrorCode() != qpk.ERR_INVALID_FILE {
			return fmt.Errorf("%s: expected IOError with invalid file code, got %v", name, err)
		}
	}

	// Trailing bytes are ignored
	res, err := Decode(append(append([]byte(nil), compressed...), 0xFF, 0xFF), nil)

	if err != nil || string(res) != "AAABBC" {
		return fmt.Errorf("Trailing bytes: got %q (%v)", res, err)
	}

	return nil
}

func patch(src []byte, idx int, val byte) []byte {
	res := append([]byte(nil), src...)
	res[idx] = val
	return res
}

type eventCounter struct {
	events []*qpk.Event
}

func (this *eventCounter) ProcessEvent(evt *qpk.Event) {
	this.events = append(this.events, evt)
}

func testListeners() error {
	block := []byte("listeners receive the codec events")
	ctx := map[string]any{"checksum": true}
	ec := &eventCounter{}
	compressed, err := Encode(block, ctx, ec)

	if err != nil {
		return err
	}

	expected := []int{qpk.EVT_COMPRESSION_START, qpk.EVT_AFTER_ANALYSIS,
		qpk.EVT_AFTER_HEADER_ENCODING, qpk.EVT_COMPRESSION_END}

	if len(ec.events) != len(expected) {
		return fmt.Errorf("Invalid number of compression events: %d", len(ec.events))
	}

	for i, evt := range ec.events {
		if evt.Type() != expected[i] {
			return fmt.Errorf("Event %d: expected %s, got %s", i, qpk.EventTypeName(expected[i]), qpk.EventTypeName(evt.Type()))
		}
	}

	last := ec.events[len(ec.events)-1]

	if last.HashType() != qpk.EVT_HASH_64BITS || last.Hash() != xxhash.Sum64(block) || last.Size() != int64(len(compressed)) {
		return fmt.Errorf("Invalid compression end event: %v", last)
	}

	ec = &eventCounter{}
	bs := internal.NewBufferStream(compressed)
	r, _ := NewReader(bs, ctx)

	if r.AddListener(ec) == false || r.AddListener(nil) == true {
		return errors.New("Invalid listener registration")
	}

	if _, err = io.ReadAll(r); err != nil {
		return err
	}

	if len(ec.events) != 3 || ec.events[2].Type() != qpk.EVT_DECOMPRESSION_END {
		return fmt.Errorf("Invalid decompression events: %v", ec.events)
	}

	if ec.events[2].Hash() != xxhash.Sum64(block) {
		return errors.New("Invalid decompression hash")
	}

	if r.RemoveListener(ec) == false || r.RemoveListener(ec) == true {
		return errors.New("Invalid listener removal")
	}

	return nil
}

func FuzzDecode(f *testing.F) {
	compressed, _ := Encode([]byte("AAABBC"), nil)
	f.Add(compressed)
	f.Add([]byte("QPK"))
	f.Add([]byte{'Q', 'P', 'K', 255, 255, 255, 255, 0})

	f.Fuzz(func(t *testing.T, src []byte) {
		res, err := Decode(src, nil)

		if err != nil {
			if errors.Is(err, qpk.ErrInvalidFormat) == false {
				t.Fatalf("Unexpected error type: %v", err)
			}

			return
		}

		// Whatever decodes must encode back to a valid container
		if _, err = Encode(res, map[string]any{"extendedAlphabet": true}); err != nil {
			t.Fatal(err)
		}
	})
}

func benchmarkData(size int) []byte {
	res := make([]byte, size)
	r := rand.New(rand.NewSource(12345))

	for i := range res {
		// Skewed distribution
		res[i] = byte(r.ExpFloat64() * 16)
	}

	return res
}

func BenchmarkQPKEncode(b *testing.B) {
	data := benchmarkData(1 << 20)
	ctx := map[string]any{"extendedAlphabet": true}
	var out []byte
	b.SetBytes(int64(len(data)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		out, _ = Encode(data, ctx)
	}

	b.ReportMetric(float64(len(out))/float64(len(data)), "ratio")
}

func BenchmarkQPKDecode(b *testing.B) {
	data := benchmarkData(1 << 20)
	compressed, _ := Encode(data, map[string]any{"extendedAlphabet": true})
	b.SetBytes(int64(len(data)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := Decode(compressed, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkHuff0Compress1X(b *testing.B) {
	data := benchmarkData(1 << 20)
	var scratch huff0.Scratch
	var out []byte
	b.SetBytes(int64(len(data)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		var err error

		// huff0 compresses at most BlockSizeMax bytes per call
		out = out[:0]

		for off := 0; off < len(data); off += huff0.BlockSizeMax {
			end := min(off+huff0.BlockSizeMax, len(data))
			var res []byte

			if res, _, err = huff0.Compress1X(data[off:end], &scratch); err != nil {
				b.Fatal(err)
			}

			out = append(out, res...)
		}
	}

	b.ReportMetric(float64(len(out))/float64(len(data)), "ratio")
}

func BenchmarkZstdEncodeAll(b *testing.B) {
	data := benchmarkData(1 << 20)
	enc, err := zstd.NewWriter(nil)

	if err != nil {
		b.Fatal(err)
	}

	defer enc.Close()
	var out []byte
	b.SetBytes(int64(len(data)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		out = enc.EncodeAll(data, out[:0])
	}

	b.ReportMetric(float64(len(out))/float64(len(data)), "ratio")
}
