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

package qpk

import (
	"fmt"
	"time"
)

const (
	EVT_COMPRESSION_START     = 0 // Compression starts
	EVT_DECOMPRESSION_START   = 1 // Decompression starts
	EVT_AFTER_ANALYSIS        = 2 // Frequencies counted and code table built
	EVT_AFTER_HEADER_ENCODING = 3 // Container header written
	EVT_AFTER_HEADER_DECODING = 4 // Container header parsed
	EVT_COMPRESSION_END       = 5 // Compression ends
	EVT_DECOMPRESSION_END     = 6 // Decompression ends

	EVT_HASH_NONE   = 0
	EVT_HASH_64BITS = 64
)

// Event a compression/decompression event
type Event struct {
	eventType int
	symbols   int
	size      int64
	hash      uint64
	hashType  int
	eventTime time.Time
}

// NewEvent creates a new Event instance with size and hash info.
// 'symbols' is the size of the alphabet in use, or -1 if not known yet.
// Returns nil if the hashType is not in { EVT_HASH_NONE, EVT_HASH_64BITS }
func NewEvent(evtType, symbols int, size int64, hash uint64, hashType int, evtTime time.Time) *Event {
	if evtTime.IsZero() {
		evtTime = time.Now()
	}

	if hashType != EVT_HASH_NONE && hashType != EVT_HASH_64BITS {
		return nil
	}

	return &Event{eventType: evtType, symbols: symbols, size: size, hash: hash,
		hashType: hashType, eventTime: evtTime}
}

// Type returns the type info
func (this *Event) Type() int {
	return this.eventType
}

// Symbols returns the number of distinct symbols (-1 if unknown)
func (this *Event) Symbols() int {
	return this.symbols
}

// Time returns the time info
func (this *Event) Time() time.Time {
	return this.eventTime
}

// Size returns the size info
func (this *Event) Size() int64 {
	return this.size
}

// Hash returns the hash info
func (this *Event) Hash() uint64 {
	return this.hash
}

// HashType returns EVT_HASH_NONE or EVT_HASH_64BITS
func (this *Event) HashType() int {
	return this.hashType
}

// String returns a JSON-like representation of this event
func (this *Event) String() string {
	hash := ""
	symbols := ""

	if this.hashType != EVT_HASH_NONE {
		hash = fmt.Sprintf(", \"hash\": %016x", this.hash)
	}

	if this.symbols >= 0 {
		symbols = fmt.Sprintf(", \"symbols\": %d", this.symbols)
	}

	return fmt.Sprintf("{ \"type\":\"%s\"%s, \"size\":%d, \"time\":%d%s }", EventTypeName(this.eventType),
		symbols, this.size, this.eventTime.UnixNano()/1000000, hash)
}

// EventTypeName returns the display name of an event type
func EventTypeName(evtType int) string {
	switch evtType {
	case EVT_COMPRESSION_START:
		return "COMPRESSION_START"

	case EVT_DECOMPRESSION_START:
		return "DECOMPRESSION_START"

	case EVT_AFTER_ANALYSIS:
		return "AFTER_ANALYSIS"

	case EVT_AFTER_HEADER_ENCODING:
		return "AFTER_HEADER_ENCODING"

	case EVT_AFTER_HEADER_DECODING:
		return "AFTER_HEADER_DECODING"

	case EVT_COMPRESSION_END:
		return "COMPRESSION_END"

	case EVT_DECOMPRESSION_END:
		return "DECOMPRESSION_END"
	}

	return "UNKNOWN"
}

// Listener is an interface implemented by event processors
type Listener interface {
	// ProcessEvent is the method called whenever a Listener receives an event.
	ProcessEvent(evt *Event)
}
