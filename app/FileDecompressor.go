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
	"os"
	"strings"
	"time"

	qpk "github.com/flanglet/qpk-go"
	qio "github.com/flanglet/qpk-go/io"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	_DECOMP_DEFAULT_BUFFER_SIZE = 32768
)

// FileDecompressor main file decompressor struct
type FileDecompressor struct {
	verbosity    uint
	overwrite    bool
	checksum     bool
	removeSource bool
	noDotFiles   bool
	noLinks      bool
	inputName    string
	outputName   string
	jobs         uint
	listeners    []qpk.Listener
	cpuProf      string
}

// NewFileDecompressor creates a new instance of FileDecompressor given
// a map of argument name/value pairs.
func NewFileDecompressor(argsMap map[string]any) (*FileDecompressor, error) {
	this := &FileDecompressor{}
	this.listeners = make([]qpk.Listener, 0)
	this.overwrite = popBool(argsMap, "overwrite")
	this.checksum = popBool(argsMap, "checksum")
	this.removeSource = popBool(argsMap, "remove")
	this.noDotFiles = popBool(argsMap, "noDotFiles")
	this.noLinks = popBool(argsMap, "noLinks")
	this.verbosity = argsMap["verbosity"].(uint)
	delete(argsMap, "verbosity")
	this.inputName = argsMap["inputName"].(string)
	delete(argsMap, "inputName")

	if len(this.inputName) == 0 {
		this.inputName = _STDIN
	}

	this.outputName = argsMap["outputName"].(string)
	delete(argsMap, "outputName")

	if len(this.outputName) == 0 && strings.EqualFold(this.inputName, _STDIN) {
		this.outputName = _STDOUT
	}

	this.jobs = popJobs(argsMap, this.verbosity)

	if prof, prst := argsMap["cpuProf"]; prst == true {
		this.cpuProf = prof.(string)
		delete(argsMap, "cpuProf")
	}

	if this.verbosity > 3 && len(argsMap) > 0 {
		for k := range argsMap {
			log.Println("Warning: ignoring invalid option ["+k+"]", this.verbosity > 0)
		}
	}

	return this, nil
}

// AddListener adds an event listener to this decompressor.
// Returns true if the listener has been added.
func (this *FileDecompressor) AddListener(bl qpk.Listener) bool {
	if bl == nil {
		return false
	}

	this.listeners = append(this.listeners, bl)
	return true
}

// RemoveListener removes an event listener from this decompressor.
// Returns true if the listener has been removed.
func (this *FileDecompressor) RemoveListener(bl qpk.Listener) bool {
	for i, e := range this.listeners {
		if e == bl {
			this.listeners = append(this.listeners[:i], this.listeners[i+1:]...)
			return true
		}
	}

	return false
}

// CPUProf returns the name of the CPU profile data file (maybe be empty)
func (this *FileDecompressor) CPUProf() string {
	return this.cpuProf
}

// Decompress is the main function to decompress the file or files based on
// the input name provided at construction. Files may be processed concurrently
// depending on the number of jobs provided at construction.
// Returns exit code, number of bytes written.
func (this *FileDecompressor) Decompress() (int, uint64) {
	before := time.Now()
	targets, code := resolveTargets(this.inputName, this.outputName, _BAK_EXTENSION, "decompress",
		this.noLinks, this.noDotFiles, this.verbosity)

	if code != 0 {
		return code, 0
	}

	// Limit verbosity level when output is stdout
	if strings.EqualFold(this.outputName, _STDOUT) {
		this.verbosity = 0
	}

	// Limit verbosity level when files are processed concurrently
	if this.jobs > 1 && len(targets) > 1 && this.verbosity > 1 {
		log.Println("Warning: limiting verbosity to 1 due to concurrent processing of input files.\n", true)
		this.verbosity = 1
	}

	if this.verbosity > 2 {
		log.Println(fmt.Sprintf("Verbosity: %d", this.verbosity), true)
		log.Println(fmt.Sprintf("Overwrite: %t", this.overwrite), true)
		log.Println(fmt.Sprintf("Checksum: %t", this.checksum), true)
		log.Println(fmt.Sprintf("Using %d job(s)", this.jobs), true)

		if listener, err := NewInfoPrinter(this.verbosity, DECOMPRESSION, os.Stdout); err == nil {
			this.AddListener(listener)
		}
	}

	tasks := make([]fileTask, len(targets))

	for i, t := range targets {
		ctx := make(map[string]any)
		ctx["verbosity"] = this.verbosity
		ctx["overwrite"] = this.overwrite
		ctx["remove"] = this.removeSource
		ctx["checksum"] = this.checksum
		ctx["inputName"] = t.inputName
		ctx["outputName"] = t.outputName
		tasks[i] = &fileDecompressTask{ctx: ctx, listeners: this.listeners}
	}

	res, written := runFileTasks(tasks, this.jobs)

	if len(targets) > 1 {
		after := time.Now()
		p := message.NewPrinter(language.English)
		log.Println("", this.verbosity > 0)
		log.Println("Total decompression time: "+formatDuration(after.Sub(before)), this.verbosity > 0)
		log.Println(p.Sprintf("Total output size: %d byte(s)", written), this.verbosity > 0)
	}

	return res, written
}

type fileDecompressTask struct {
	ctx       map[string]any
	listeners []qpk.Listener
}

func (this *fileDecompressTask) call() (int, uint64, error) {
	verbosity := this.ctx["verbosity"].(uint)
	inputName := this.ctx["inputName"].(string)
	outputName := this.ctx["outputName"].(string)
	overwrite := this.ctx["overwrite"].(bool)
	p := message.NewPrinter(language.English)

	if verbosity > 2 {
		log.Println("Input file name: '"+inputName+"'", true)
		log.Println("Output file name: '"+outputName+"'", true)
	}

	var input io.ReadCloser

	if strings.EqualFold(inputName, _STDIN) {
		input = io.NopCloser(os.Stdin)
	} else {
		var err error

		if input, err = os.Open(inputName); err != nil {
			fmt.Printf("Cannot open input file '%s': %v\n", inputName, err)
			return qpk.ERR_OPEN_FILE, 0, err
		}
	}

	output, code, err := openOutput(inputName, outputName, overwrite)

	if err != nil {
		input.Close()
		return code, 0, err
	}

	defer output.Close()

	log.Println("\nDecompressing "+inputName+" ...", verbosity > 1)
	log.Println("", verbosity > 3)
	before := time.Now()

	cis, err := qio.NewReader(input, map[string]any{"checksum": this.ctx["checksum"]})

	if err != nil {
		input.Close()
		discardOutput(output, outputName)
		return reportIOError(err, qpk.ERR_CREATE_DECOMPRESSOR)
	}

	for _, bl := range this.listeners {
		cis.AddListener(bl)
	}

	buffer := make([]byte, _DECOMP_DEFAULT_BUFFER_SIZE)
	decoded := uint64(0)

	for {
		n, err := cis.Read(buffer)

		if n > 0 {
			if _, err := output.Write(buffer[0:n]); err != nil {
				cis.Close()
				discardOutput(output, outputName)
				fmt.Printf("Failed to write decompressed data to file '%s': %v\n", outputName, err)
				return qpk.ERR_WRITE_FILE, decoded, err
			}

			decoded += uint64(n)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			cis.Close()
			discardOutput(output, outputName)
			rcode, _, _ := reportIOError(err, qpk.ERR_PROCESS_BLOCK)
			return rcode, decoded, err
		}
	}

	if verbosity >= 5 && cis.Header() != nil {
		log.Println("Code table (symbol, code, length):\n"+cis.Header().Table.String(), true)
	}

	read := cis.GetRead()

	// Close streams to ensure all data are flushed
	if err := cis.Close(); err != nil {
		return qpk.ERR_READ_FILE, decoded, err
	}

	if err := output.Close(); err != nil {
		discardOutput(output, outputName)
		fmt.Printf("Failed to close output file '%s': %v\n", outputName, err)
		return qpk.ERR_WRITE_FILE, decoded, err
	}

	after := time.Now()

	if verbosity >= 1 {
		duration := formatDuration(after.Sub(before))

		if verbosity > 1 {
			log.Println("", true)
			log.Println("Decompression time: "+duration, true)
			log.Println(p.Sprintf("Input size:         %d", read), true)
			log.Println(p.Sprintf("Output size:        %d", decoded), true)
		} else {
			log.Println(p.Sprintf("Decompressed %s: %d => %d in %s", inputName, read, decoded, duration), true)
		}

		if delta := after.Sub(before).Milliseconds(); verbosity > 1 && delta > 0 {
			log.Println(p.Sprintf("Throughput (KiB/s):  %d", ((int64(decoded)*1000)>>10)/delta), true)
		}

		log.Println("", verbosity > 1)
	}

	if this.ctx["remove"].(bool) == true {
		removeInput(inputName, verbosity)
	}

	return 0, decoded, nil
}
