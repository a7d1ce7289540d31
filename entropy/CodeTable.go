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
	"fmt"
	"strings"

	qpk "github.com/flanglet/qpk-go"
)

const (
	MAX_CODE_LENGTH = 31 // longest code the container can describe
)

// CodeEntry is the prefix code assigned to a symbol. Only the low Length
// bits of Code are meaningful, emitted most significant bit first.
type CodeEntry struct {
	Symbol byte
	Code   uint32
	Length uint8
}

// CodeTable maps each present symbol to its code. Entries keep the order
// in which they were generated (or read from a header).
type CodeTable struct {
	entries   []CodeEntry
	positions [256]int16 // index+1 of the symbol entry, 0 if absent
	maxLength uint
}

// GenerateCodeTable walks the tree depth first, appending 0 for a left edge
// and 1 for a right edge. A tree reduced to one leaf yields a single one bit
// code 0 so that the symbol still consumes bits.
func GenerateCodeTable(root *Node) (*CodeTable, error) {
	if root == nil {
		return nil, fmt.Errorf("Could not generate code table: %w", qpk.ErrEmptyAlphabet)
	}

	entries := make([]CodeEntry, 0, 256)

	if root.IsLeaf() {
		entries = append(entries, CodeEntry{Symbol: root.symbol, Code: 0, Length: 1})
	} else {
		var err error

		if entries, err = walkTree(root, 0, 0, entries); err != nil {
			return nil, err
		}
	}

	return newCodeTable(entries), nil
}

func walkTree(node *Node, code uint64, depth uint, entries []CodeEntry) ([]CodeEntry, error) {
	if node.IsLeaf() {
		if depth > MAX_CODE_LENGTH {
			return entries, fmt.Errorf("Could not generate code table: code length %d for symbol %d exceeds %d bits: %w",
				depth, node.symbol, MAX_CODE_LENGTH, qpk.ErrCapacity)
		}

		return append(entries, CodeEntry{Symbol: node.symbol, Code: uint32(code), Length: uint8(depth)}), nil
	}

	if depth >= MAX_CODE_LENGTH {
		return entries, fmt.Errorf("Could not generate code table: code length exceeds %d bits: %w",
			MAX_CODE_LENGTH, qpk.ErrCapacity)
	}

	var err error

	if entries, err = walkTree(node.left, code<<1, depth+1, entries); err != nil {
		return entries, err
	}

	return walkTree(node.right, (code<<1)|1, depth+1, entries)
}

// NewCodeTable validates externally supplied entries (typically read from
// a container header) and builds a table from them. Every length must be
// in [1..31], every code must fit in its length, symbols must be unique
// and the code set must be prefix free.
func NewCodeTable(entries []CodeEntry) (*CodeTable, error) {
	if len(entries) > 256 {
		return nil, fmt.Errorf("Invalid code table: %d entries: %w", len(entries), qpk.ErrInvalidFormat)
	}

	var seen [256]bool

	for _, e := range entries {
		if e.Length == 0 || e.Length > MAX_CODE_LENGTH {
			return nil, fmt.Errorf("Invalid code table: symbol %d has code length %d: %w",
				e.Symbol, e.Length, qpk.ErrInvalidFormat)
		}

		if uint64(e.Code) >= uint64(1)<<e.Length {
			return nil, fmt.Errorf("Invalid code table: code %d of symbol %d does not fit in %d bits: %w",
				e.Code, e.Symbol, e.Length, qpk.ErrInvalidFormat)
		}

		if seen[e.Symbol] {
			return nil, fmt.Errorf("Invalid code table: duplicate symbol %d: %w", e.Symbol, qpk.ErrInvalidFormat)
		}

		seen[e.Symbol] = true
	}

	res := newCodeTable(append([]CodeEntry(nil), entries...))

	if res.IsPrefixFree() == false {
		return nil, fmt.Errorf("Invalid code table: codes are not prefix free: %w", qpk.ErrInvalidFormat)
	}

	return res, nil
}

func newCodeTable(entries []CodeEntry) *CodeTable {
	this := &CodeTable{entries: entries}

	for i, e := range entries {
		this.positions[e.Symbol] = int16(i + 1)

		if uint(e.Length) > this.maxLength {
			this.maxLength = uint(e.Length)
		}
	}

	return this
}

// Len returns the number of symbols in the table
func (this *CodeTable) Len() int {
	return len(this.entries)
}

// Entries returns a copy of the entries in table order
func (this *CodeTable) Entries() []CodeEntry {
	return append([]CodeEntry(nil), this.entries...)
}

// Lookup returns the entry for the symbol if present
func (this *CodeTable) Lookup(symbol byte) (CodeEntry, bool) {
	idx := this.positions[symbol]

	if idx == 0 {
		return CodeEntry{}, false
	}

	return this.entries[idx-1], true
}

// MaxLength returns the length of the longest code (0 for an empty table)
func (this *CodeTable) MaxLength() uint {
	return this.maxLength
}

func (this *CodeTable) minLength() uint {
	res := uint(MAX_CODE_LENGTH)

	for _, e := range this.entries {
		if uint(e.Length) < res {
			res = uint(e.Length)
		}
	}

	return res
}

// EncodedBits returns the size in bits of the payload produced by encoding
// symbols with the given frequencies. Symbols missing from the table are
// ignored.
func (this *CodeTable) EncodedBits(table FrequencyTable) uint64 {
	res := uint64(0)

	for _, sf := range table {
		if e, ok := this.Lookup(sf.Symbol); ok {
			res += uint64(sf.Frequency) * uint64(e.Length)
		}
	}

	return res
}

// IsPrefixFree returns true if no code is a prefix of another one
func (this *CodeTable) IsPrefixFree() bool {
	for i := range this.entries {
		a := this.entries[i]

		for j := i + 1; j < len(this.entries); j++ {
			b := this.entries[j]

			if a.Length <= b.Length {
				if b.Code>>(b.Length-a.Length) == a.Code {
					return false
				}
			} else if a.Code>>(a.Length-b.Length) == b.Code {
				return false
			}
		}
	}

	return true
}

// String returns one line per entry: symbol, code bits and length
func (this *CodeTable) String() string {
	var sb strings.Builder

	for _, e := range this.entries {
		sb.WriteString(fmt.Sprintf("%3d  %0*b  (%d)\n", e.Symbol, int(e.Length), e.Code, e.Length))
	}

	return sb.String()
}
