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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	qpk "github.com/flanglet/qpk-go"
	"github.com/flanglet/qpk-go/entropy"
	"github.com/flanglet/qpk-go/internal"
	qio "github.com/flanglet/qpk-go/io"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	_MAX_CONCURRENCY = 64
	_NONE            = "NONE"
	_STDIN           = "STDIN"
	_STDOUT          = "STDOUT"
	_QPK_EXTENSION   = ".qpk"
	_BAK_EXTENSION   = ".bak"
)

// FileCompressor main file compressor struct
type FileCompressor struct {
	verbosity    uint
	overwrite    bool
	checksum     bool
	extended     bool
	skip         bool
	removeSource bool
	noDotFiles   bool
	noLinks      bool
	inputName    string
	outputName   string
	jobs         uint
	listeners    []qpk.Listener
	cpuProf      string
}

// NewFileCompressor creates a new instance of FileCompressor given
// a map of argument name/value pairs.
func NewFileCompressor(argsMap map[string]any) (*FileCompressor, error) {
	this := &FileCompressor{}
	this.listeners = make([]qpk.Listener, 0)
	this.overwrite = popBool(argsMap, "overwrite")
	this.checksum = popBool(argsMap, "checksum")
	this.extended = popBool(argsMap, "extended")
	this.skip = popBool(argsMap, "skip")
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

func popBool(argsMap map[string]any, key string) bool {
	if v, prst := argsMap[key]; prst == true {
		delete(argsMap, key)
		return v.(bool)
	}

	return false
}

func popJobs(argsMap map[string]any, verbosity uint) uint {
	concurrency := uint(1)

	if c, prst := argsMap["jobs"].(uint); prst == true {
		delete(argsMap, "jobs")
		concurrency = c

		if c == 0 {
			concurrency = uint(runtime.NumCPU()) // use all cores
		} else if c > _MAX_CONCURRENCY {
			msg := fmt.Sprintf("Warning: the number of jobs is too high, defaulting to %d\n", _MAX_CONCURRENCY)
			log.Println(msg, verbosity > 0)
			concurrency = _MAX_CONCURRENCY
		}
	} else if runtime.NumCPU() > 1 {
		concurrency = uint(runtime.NumCPU() / 2) // defaults to half the cores
	}

	return max(min(concurrency, _MAX_CONCURRENCY), 1)
}

// AddListener adds an event listener to this compressor.
// Returns true if the listener has been added.
func (this *FileCompressor) AddListener(bl qpk.Listener) bool {
	if bl == nil {
		return false
	}

	this.listeners = append(this.listeners, bl)
	return true
}

// RemoveListener removes an event listener from this compressor.
// Returns true if the listener has been removed.
func (this *FileCompressor) RemoveListener(bl qpk.Listener) bool {
	for i, e := range this.listeners {
		if e == bl {
			this.listeners = append(this.listeners[:i], this.listeners[i+1:]...)
			return true
		}
	}

	return false
}

// CPUProf returns the name of the CPU profile data file (maybe be empty)
func (this *FileCompressor) CPUProf() string {
	return this.cpuProf
}

// Compress is the main function to compress the file or files based on the
// input name provided at construction. Files may be processed concurrently
// depending on the number of jobs provided at construction.
// Returns exit code, number of bytes written.
func (this *FileCompressor) Compress() (int, uint64) {
	before := time.Now()
	targets, code := resolveTargets(this.inputName, this.outputName, _QPK_EXTENSION, "compress",
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
		log.Println(fmt.Sprintf("Extended alphabet: %t", this.extended), true)
		log.Println(fmt.Sprintf("Skip: %t", this.skip), true)
		log.Println(fmt.Sprintf("Using %d job(s)", this.jobs), true)

		if listener, err := NewInfoPrinter(this.verbosity, COMPRESSION, os.Stdout); err == nil {
			this.AddListener(listener)
		}
	}

	tasks := make([]fileTask, len(targets))

	for i, t := range targets {
		ctx := make(map[string]any)
		ctx["verbosity"] = this.verbosity
		ctx["overwrite"] = this.overwrite
		ctx["remove"] = this.removeSource
		ctx["skip"] = this.skip
		ctx["checksum"] = this.checksum
		ctx["extendedAlphabet"] = this.extended
		ctx["inputName"] = t.inputName
		ctx["outputName"] = t.outputName
		tasks[i] = &fileCompressTask{ctx: ctx, listeners: this.listeners}
	}

	res, written := runFileTasks(tasks, this.jobs)

	if len(targets) > 1 {
		after := time.Now()
		p := message.NewPrinter(language.English)
		log.Println("", this.verbosity > 0)
		log.Println("Total compression time: "+formatDuration(after.Sub(before)), this.verbosity > 0)
		log.Println(p.Sprintf("Total output size: %d byte(s)", written), this.verbosity > 0)
	}

	return res, written
}

type fileTarget struct {
	inputName  string
	outputName string
}

// resolveTargets expands the input name into a list of files and derives the
// output name of each file.
func resolveTargets(inputName, outputName, ext, action string, noLinks, noDotFiles bool, verbosity uint) ([]fileTarget, int) {
	specialOutput := strings.EqualFold(outputName, _NONE) || strings.EqualFold(outputName, _STDOUT)

	if strings.EqualFold(inputName, _STDIN) {
		return []fileTarget{{inputName: _STDIN, outputName: outputName}}, 0
	}

	fi, err := os.Stat(inputName)

	if err != nil {
		fmt.Printf("Cannot access %s\n", inputName)
		return nil, qpk.ERR_OPEN_FILE
	}

	files, err := internal.CreateFileList(inputName, noLinks, noDotFiles)

	if err != nil {
		fmt.Printf("An unexpected condition happened. Exiting ...\n%s\n", err.Error())
		return nil, qpk.ERR_OPEN_FILE
	}

	if len(files) == 0 {
		fmt.Printf("Cannot find any file to %s in '%s'\n", action, inputName)
		return nil, qpk.ERR_OPEN_FILE
	}

	if len(files) > 1 {
		log.Println(fmt.Sprintf("%d files to %s\n", len(files), action), verbosity > 0)
	} else {
		log.Println(fmt.Sprintf("1 file to %s\n", action), verbosity > 0)
	}

	inputIsDir := fi.IsDir()

	if len(outputName) > 0 && specialOutput == false {
		ofi, err := os.Stat(outputName)

		if inputIsDir == true {
			if err != nil || ofi.IsDir() == false {
				fmt.Println("Output must be an existing directory (or 'NONE')")
				return nil, qpk.ERR_CREATE_FILE
			}
		} else if err == nil && ofi.IsDir() {
			fmt.Println("Output must be a file (or 'NONE')")
			return nil, qpk.ERR_OUTPUT_IS_DIR
		}
	}

	res := make([]fileTarget, len(files))

	for i, f := range files {
		oName := outputName

		if len(oName) == 0 {
			oName = deriveOutputName(f.FullPath, ext)
		} else if inputIsDir == true && specialOutput == false {
			rel, err := filepath.Rel(inputName, f.FullPath)

			if err != nil {
				rel = f.Name
			}

			oName = deriveOutputName(filepath.Join(outputName, rel), ext)
		}

		res[i] = fileTarget{inputName: f.FullPath, outputName: oName}
	}

	return res, 0
}

// deriveOutputName appends the compressed file extension when compressing.
// When decompressing, it strips it (or appends '.bak' if absent).
func deriveOutputName(name, ext string) string {
	if ext == _QPK_EXTENSION {
		return name + _QPK_EXTENSION
	}

	if strings.HasSuffix(name, _QPK_EXTENSION) && len(name) > len(_QPK_EXTENSION) {
		return name[0 : len(name)-len(_QPK_EXTENSION)]
	}

	return name + _BAK_EXTENSION
}

type fileTask interface {
	call() (int, uint64, error)
}

// runFileTasks processes the tasks with at most 'jobs' concurrent
// goroutines. The first failure stops the scheduling of the remaining
// tasks. Returns the code of the first failure (or 0) and the total
// number of bytes written.
func runFileTasks(tasks []fileTask, jobs uint) (int, uint64) {
	if len(tasks) == 1 {
		code, written, _ := tasks[0].call()
		return code, written
	}

	g, gctx := errgroup.WithContext(context.Background())
	g.SetLimit(int(jobs))
	var total atomic.Uint64
	res := 0
	var once sync.Once

	for _, t := range tasks {
		if gctx.Err() != nil {
			break
		}

		t := t // per-iteration copy (go 1.21 loop semantics)

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			code, written, err := t.call()
			total.Add(written)

			if code != 0 {
				once.Do(func() { res = code })

				if err == nil {
					err = fmt.Errorf("task failed with code %d", code)
				}

				return err
			}

			return nil
		})
	}

	g.Wait()
	return res, total.Load()
}

// openOutput creates the output stream for the output name. NONE discards
// the data and STDOUT writes to the standard output.
func openOutput(inputName, outputName string, overwrite bool) (io.WriteCloser, int, error) {
	if strings.EqualFold(outputName, _NONE) {
		return nullOutputStream{}, 0, nil
	}

	if strings.EqualFold(outputName, _STDOUT) {
		return stdoutStream{}, 0, nil
	}

	if output, err := os.OpenFile(outputName, os.O_RDWR, 0666); err == nil {
		// File exists
		output.Close()

		if overwrite == false {
			fmt.Printf("File '%s' exists and the 'force' command ", outputName)
			fmt.Println("line option has not been provided")
			return nil, qpk.ERR_OVERWRITE_FILE, errors.New("output file exists")
		}

		path1, _ := filepath.Abs(inputName)
		path2, _ := filepath.Abs(outputName)

		if path1 == path2 {
			fmt.Println("The input and output files must be different")
			return nil, qpk.ERR_CREATE_FILE, errors.New("same input and output file")
		}
	}

	output, err := os.Create(outputName)

	if err != nil {
		// Attempt to create the full folder hierarchy to file
		if err = os.MkdirAll(filepath.Dir(outputName), os.ModePerm); err == nil {
			output, err = os.Create(outputName)
		}

		if err != nil {
			fmt.Printf("Cannot open output file '%s' for writing: %v\n", outputName, err)
			return nil, qpk.ERR_CREATE_FILE, err
		}
	}

	return output, 0, nil
}

// discardOutput closes the output and deletes it when it is a file
func discardOutput(output io.WriteCloser, outputName string) {
	output.Close()

	if _, ok := output.(*os.File); ok {
		os.Remove(outputName)
	}
}

type nullOutputStream struct{}

func (nullOutputStream) Write(b []byte) (int, error) {
	return len(b), nil
}

func (nullOutputStream) Close() error {
	return nil
}

// stdoutStream does not close the standard output
type stdoutStream struct{}

func (stdoutStream) Write(b []byte) (int, error) {
	return os.Stdout.Write(b)
}

func (stdoutStream) Close() error {
	return nil
}

func formatDuration(d time.Duration) string {
	delta := d.Milliseconds()

	if delta >= 100000 {
		return fmt.Sprintf("%.1f s", float64(delta)/1000)
	}

	return fmt.Sprintf("%d ms", delta)
}

func removeInput(inputName string, verbosity uint) {
	if strings.EqualFold(inputName, _STDIN) {
		log.Println("Warning: ignoring remove option with STDIN", verbosity > 0)
	} else if os.Remove(inputName) != nil {
		log.Println("Warning: input file could not be deleted", verbosity > 0)
	}
}

func readInput(inputName string) ([]byte, error) {
	if strings.EqualFold(inputName, _STDIN) {
		return io.ReadAll(os.Stdin)
	}

	return os.ReadFile(inputName)
}

type fileCompressTask struct {
	ctx       map[string]any
	listeners []qpk.Listener
}

func (this *fileCompressTask) call() (int, uint64, error) {
	verbosity := this.ctx["verbosity"].(uint)
	inputName := this.ctx["inputName"].(string)
	outputName := this.ctx["outputName"].(string)
	overwrite := this.ctx["overwrite"].(bool)
	skip := this.ctx["skip"].(bool)
	extended := this.ctx["extendedAlphabet"].(bool)
	p := message.NewPrinter(language.English)

	if verbosity > 2 {
		log.Println("Input file name: '"+inputName+"'", true)
		log.Println("Output file name: '"+outputName+"'", true)
	}

	data, err := readInput(inputName)

	if err != nil {
		fmt.Printf("Cannot read input file '%s': %v\n", inputName, err)
		return qpk.ERR_READ_FILE, 0, err
	}

	if skip == true {
		if reason := skipReason(data, extended); reason != "" {
			log.Println(fmt.Sprintf("Skipping '%s': %s", inputName, reason), verbosity > 0)
			return 0, 0, nil
		}
	}

	output, code, err := openOutput(inputName, outputName, overwrite)

	if err != nil {
		return code, 0, err
	}

	log.Println("\nCompressing "+inputName+" ...", verbosity > 1)
	log.Println("", verbosity > 3)
	before := time.Now()

	cos, err := qio.NewWriter(output, map[string]any{
		"checksum":         this.ctx["checksum"],
		"extendedAlphabet": extended,
	})

	if err != nil {
		discardOutput(output, outputName)
		return reportIOError(err, qpk.ERR_CREATE_COMPRESSOR)
	}

	for _, bl := range this.listeners {
		cos.AddListener(bl)
	}

	if _, err = cos.Write(data); err != nil {
		discardOutput(output, outputName)
		return reportIOError(err, qpk.ERR_WRITE_FILE)
	}

	// Close encodes the data and closes the output
	if err = cos.Close(); err != nil {
		discardOutput(output, outputName)
		return reportIOError(err, qpk.ERR_PROCESS_BLOCK)
	}

	after := time.Now()
	written := cos.GetWritten()

	if verbosity >= 5 && cos.CodeTable() != nil {
		log.Println("Code table (symbol, code, length):\n"+cos.CodeTable().String(), true)
	}

	if verbosity >= 1 {
		duration := formatDuration(after.Sub(before))
		ratio := 0.0

		if len(data) > 0 {
			ratio = float64(written) / float64(len(data))
		}

		if verbosity > 1 {
			log.Println("", true)
			log.Println("Compression time:  "+duration, true)
			log.Println(p.Sprintf("Input size:        %d", len(data)), true)
			log.Println(p.Sprintf("Output size:       %d", written), true)
			log.Println(fmt.Sprintf("Compression ratio: %.6f", ratio), true)
		} else {
			log.Println(p.Sprintf("Compressed %s: %d => %d (%.2f%%) in %s", inputName, len(data),
				written, 100*ratio, duration), true)
		}

		if delta := after.Sub(before).Milliseconds(); verbosity > 1 && delta > 0 {
			log.Println(p.Sprintf("Throughput (KiB/s): %d", ((int64(len(data))*1000)>>10)/delta), true)
		}

		log.Println("", verbosity > 1)
	}

	if this.ctx["remove"].(bool) == true {
		removeInput(inputName, verbosity)
	}

	return 0, written, nil
}

// skipReason returns a non empty reason if compressing the data is pointless
func skipReason(data []byte, extended bool) string {
	if format := internal.DetectCompressedFormat(data); format != "" {
		return "already compressed (" + format + ")"
	}

	freqs := entropy.ComputeFrequencies(data)

	if len(freqs) == 256 && extended == false {
		return "all 256 byte values present"
	}

	// Entropy is a lower bound for the payload, the header adds 8 bytes
	// plus 6 bytes per symbol
	estimated := int(freqs.EntropyBits()/8) + 8 + 6*len(freqs)

	if estimated >= len(data) {
		return "data would not shrink"
	}

	return ""
}

func reportIOError(err error, defaultCode int) (int, uint64, error) {
	var ioerr *qio.IOError

	if errors.As(err, &ioerr) {
		fmt.Printf("%s\n", ioerr.Message())
		return ioerr.ErrorCode(), 0, err
	}

	fmt.Printf("An unexpected condition happened. Exiting ...\n%v\n", err)
	return defaultCode, 0, err
}
