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

package main

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	qpk "github.com/flanglet/qpk-go"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// An implementation of Listener to display codec information (verbose option
// of the FileCompressor/FileDecompressor)

const (
	// COMPRESSION event type
	COMPRESSION = 0
	// DECOMPRESSION event type
	DECOMPRESSION = 1
)

// InfoPrinter renders the events of one compression or decompression
type InfoPrinter struct {
	writer    io.Writer
	infoType  uint
	level     uint
	printer   *message.Printer
	lock      sync.Mutex
	startTime time.Time
	lastTime  time.Time
	inputSize int64
}

// NewInfoPrinter creates a new instance of InfoPrinter
func NewInfoPrinter(infoLevel, infoType uint, writer io.Writer) (*InfoPrinter, error) {
	if writer == nil {
		return nil, errors.New("invalid null writer parameter")
	}

	this := &InfoPrinter{}
	this.infoType = infoType & 1
	this.level = infoLevel
	this.writer = writer
	this.printer = message.NewPrinter(language.English)
	return this, nil
}

// ProcessEvent receives an event and writes a log record to the internal writer
func (this *InfoPrinter) ProcessEvent(evt *qpk.Event) {
	this.lock.Lock()
	defer this.lock.Unlock()

	if this.level >= 5 {
		fmt.Fprintln(this.writer, evt)
	}

	switch evt.Type() {
	case qpk.EVT_COMPRESSION_START, qpk.EVT_DECOMPRESSION_START:
		this.startTime = evt.Time()
		this.lastTime = evt.Time()
		this.inputSize = evt.Size()

	case qpk.EVT_AFTER_ANALYSIS:
		if this.level >= 4 {
			this.printer.Fprintf(this.writer, "Analysis:  %d symbols, payload %d bytes [%d ms]\n",
				evt.Symbols(), evt.Size(), this.elapsed(evt))
		}

	case qpk.EVT_AFTER_HEADER_ENCODING, qpk.EVT_AFTER_HEADER_DECODING:
		if this.level >= 4 {
			this.printer.Fprintf(this.writer, "Header:    %d symbols, %d bytes [%d ms]\n",
				evt.Symbols(), evt.Size(), this.elapsed(evt))
		}

	case qpk.EVT_COMPRESSION_END, qpk.EVT_DECOMPRESSION_END:
		if this.level >= 4 {
			this.printer.Fprintf(this.writer, "Payload:   [%d ms]\n", this.elapsed(evt))
		}

		if this.level >= 3 {
			durationMS := evt.Time().Sub(this.startTime).Milliseconds()

			if this.infoType == COMPRESSION {
				this.printer.Fprintf(this.writer, "Encoded:   %d => %d bytes [%d ms]\n",
					this.inputSize, evt.Size(), durationMS)
			} else {
				this.printer.Fprintf(this.writer, "Decoded:   %d => %d bytes [%d ms]\n",
					this.inputSize, evt.Size(), durationMS)
			}

			if evt.HashType() == qpk.EVT_HASH_64BITS {
				fmt.Fprintf(this.writer, "Hash:      %016x\n", evt.Hash())
			}
		}
	}
}

func (this *InfoPrinter) elapsed(evt *qpk.Event) int64 {
	res := evt.Time().Sub(this.lastTime).Milliseconds()
	this.lastTime = evt.Time()
	return res
}
