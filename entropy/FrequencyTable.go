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

// Package entropy implements the static Huffman coder: order 0 frequency
// analysis, code tree construction, code table generation, and the encoder
// and decoder moving symbols to and from a bitstream.
package entropy

import (
	"math"
	"sort"
)

// SymbolFrequency associates a symbol with its number of occurrences
type SymbolFrequency struct {
	Symbol    byte
	Frequency int
}

// FrequencyTable lists the symbols present in a block by decreasing
// frequency. Symbols with the same frequency appear by increasing value.
// Absent symbols are omitted.
type FrequencyTable []SymbolFrequency

// ComputeHistogram computes the order 0 histogram for the input block
// and returns it in the 'freqs' slice (length at least 256).
func ComputeHistogram(block []byte, freqs []int) {
	for i := range freqs {
		freqs[i] = 0
	}

	f0 := [256]int{}
	f1 := [256]int{}
	f2 := [256]int{}
	f3 := [256]int{}
	end4 := len(block) & -4

	for i := 0; i < end4; i += 4 {
		f0[block[i]]++
		f1[block[i+1]]++
		f2[block[i+2]]++
		f3[block[i+3]]++
	}

	for i := end4; i < len(block); i++ {
		freqs[block[i]]++
	}

	for i := 0; i < 256; i++ {
		freqs[i] += f0[i] + f1[i] + f2[i] + f3[i]
	}
}

// ComputeFrequencies returns the frequency table of the block. An empty
// block yields an empty table.
func ComputeFrequencies(block []byte) FrequencyTable {
	var freqs [256]int
	ComputeHistogram(block, freqs[:])
	return NewFrequencyTable(freqs[:])
}

// NewFrequencyTable builds a frequency table from a 256 slot histogram.
func NewFrequencyTable(freqs []int) FrequencyTable {
	res := make(FrequencyTable, 0, 256)

	for i := 0; i < 256 && i < len(freqs); i++ {
		if freqs[i] > 0 {
			res = append(res, SymbolFrequency{Symbol: byte(i), Frequency: freqs[i]})
		}
	}

	// Stable sort keeps increasing symbol order among equal frequencies
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Frequency > res[j].Frequency
	})

	return res
}

// Total returns the number of symbols counted
func (this FrequencyTable) Total() int {
	total := 0

	for _, sf := range this {
		total += sf.Frequency
	}

	return total
}

// EntropyBits returns the order 0 entropy of the counted block, in bits.
// This is the lower bound for the size of any prefix coded payload.
func (this FrequencyTable) EntropyBits() float64 {
	total := this.Total()

	if total == 0 {
		return 0
	}

	res := 0.0

	for _, sf := range this {
		p := float64(sf.Frequency) / float64(total)
		res -= float64(sf.Frequency) * math.Log2(p)
	}

	return res
}
