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
	"container/heap"
	"fmt"

	qpk "github.com/flanglet/qpk-go"
)

// Node is a node of the Huffman code tree. Leaves carry a symbol, internal
// nodes carry the sum of the frequencies of their children.
type Node struct {
	symbol    byte
	frequency int
	left      *Node
	right     *Node
}

func (this *Node) Symbol() byte {
	return this.symbol
}

func (this *Node) Frequency() int {
	return this.frequency
}

func (this *Node) Left() *Node {
	return this.left
}

func (this *Node) Right() *Node {
	return this.right
}

func (this *Node) IsLeaf() bool {
	return this.left == nil && this.right == nil
}

type heapItem struct {
	node *Node
	seq  int
}

// Min heap ordered by frequency then insertion sequence
type nodeHeap []heapItem

func (this nodeHeap) Len() int {
	return len(this)
}

func (this nodeHeap) Less(i, j int) bool {
	if this[i].node.frequency != this[j].node.frequency {
		return this[i].node.frequency < this[j].node.frequency
	}

	return this[i].seq < this[j].seq
}

func (this nodeHeap) Swap(i, j int) {
	this[i], this[j] = this[j], this[i]
}

func (this *nodeHeap) Push(x any) {
	*this = append(*this, x.(heapItem))
}

func (this *nodeHeap) Pop() any {
	old := *this
	n := len(old)
	item := old[n-1]
	old[n-1] = heapItem{}
	*this = old[0 : n-1]
	return item
}

// BuildCodeTree merges the two least frequent nodes until one root is left.
// Leaves enter the queue in reverse table order (increasing frequency) and
// merged nodes are queued after existing nodes of equal frequency. The first
// node removed becomes the left child. The result is fully determined by
// the table.
func BuildCodeTree(table FrequencyTable) (*Node, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("Could not build Huffman tree: %w", qpk.ErrEmptyAlphabet)
	}

	h := make(nodeHeap, 0, len(table))
	seq := 0

	for i := len(table) - 1; i >= 0; i-- {
		if table[i].Frequency <= 0 {
			return nil, fmt.Errorf("Could not build Huffman tree: invalid frequency %d for symbol %d",
				table[i].Frequency, table[i].Symbol)
		}

		h = append(h, heapItem{node: &Node{symbol: table[i].Symbol, frequency: table[i].Frequency}, seq: seq})
		seq++
	}

	heap.Init(&h)

	for h.Len() > 1 {
		left := heap.Pop(&h).(heapItem)
		right := heap.Pop(&h).(heapItem)
		parent := &Node{
			frequency: left.node.frequency + right.node.frequency,
			left:      left.node,
			right:     right.node,
		}
		heap.Push(&h, heapItem{node: parent, seq: seq})
		seq++
	}

	return h[0].node, nil
}
