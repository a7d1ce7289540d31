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
	"bufio"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"

	qpk "github.com/flanglet/qpk-go"
)

const (
	//_ARG_IDX_COMPRESS   = 0
	//_ARG_IDX_DECOMPRESS = 1
	_ARG_IDX_INPUT   = 2
	_ARG_IDX_OUTPUT  = 3
	_ARG_IDX_JOBS    = 4
	_ARG_IDX_VERBOSE = 5
	_ARG_IDX_PROFILE = 10
	_QPK_VERSION     = "1.0"
	_APP_HEADER      = "QPK " + _QPK_VERSION + " static Huffman coder"
	_ARG_INPUT       = "--input="
	_ARG_OUTPUT      = "--output="
	_ARG_COMPRESS    = "--compress"
	_ARG_DECOMPRESS  = "--decompress"
	_ARG_VERBOSE     = "--verbose="
	_ARG_JOBS        = "--jobs="
	_ARG_CPUPROF     = "--cpuProf="
	_ARG_FORCE       = "--force"
	_ARG_SKIP        = "--skip"
	_ARG_CHECKSUM    = "--checksum"
	_ARG_EXTENDED    = "--extended"
)

var (
	_CMD_LINE_ARGS = []string{
		"-c", "-d", "-i", "-o", "-j", "-v", "-s", "-x", "-f", "-h", "-p",
	}

	mutex sync.Mutex
	log   = Printer{os: bufio.NewWriter(os.Stdout)}
)

func main() {
	argsMap := make(map[string]any)

	if status := processCommandLine(os.Args, argsMap); status != 0 {
		// Command line processing error ?
		if status < 0 {
			os.Exit(0)
		}

		os.Exit(status)
	}

	// Help mode only ?
	if argsMap["mode"] == nil {
		os.Exit(0)
	}

	mode := argsMap["mode"].(string)
	delete(argsMap, "mode")
	status := 1

	if mode == "c" {
		status = compress(argsMap)
	} else if mode == "d" {
		status = decompress(argsMap)
	} else {
		println("Missing arguments: try --help or -h")
	}

	os.Exit(status)
}

func compress(argsMap map[string]any) int {
	runtime.GOMAXPROCS(runtime.NumCPU())
	code := 0
	verbose := argsMap["verbosity"].(uint)

	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("An unexpected error occurred during compression: %v\n", r)
			code = qpk.ERR_UNKNOWN
		}

		os.Exit(code)
	}()

	fc, err := NewFileCompressor(argsMap)

	if err != nil {
		fmt.Printf("Failed to create file compressor: %v\n", err)
		code = qpk.ERR_CREATE_COMPRESSOR
		return code
	}

	if len(fc.CPUProf()) != 0 {
		stop := startProfile(fc.CPUProf(), verbose)
		defer stop()
	}

	code, _ = fc.Compress()
	return code
}

func decompress(argsMap map[string]any) int {
	runtime.GOMAXPROCS(runtime.NumCPU())
	code := 0
	verbose := argsMap["verbosity"].(uint)

	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("An unexpected error occurred during decompression: %v\n", r)
			code = qpk.ERR_UNKNOWN
		}

		os.Exit(code)
	}()

	fd, err := NewFileDecompressor(argsMap)

	if err != nil {
		fmt.Printf("Failed to create file decompressor: %v\n", err)
		code = qpk.ERR_CREATE_DECOMPRESSOR
		return code
	}

	if len(fd.CPUProf()) != 0 {
		stop := startProfile(fd.CPUProf(), verbose)
		defer stop()
	}

	code, _ = fd.Decompress()
	return code
}

func startProfile(name string, verbose uint) func() {
	f, err := os.Create(name)

	if err != nil {
		log.Println(fmt.Sprintf("Warning: cpu profile unavailable: %v", err), verbose > 0)
		return func() {}
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		log.Println(fmt.Sprintf("Warning: cpu profile unavailable: %v", err), verbose > 0)
		f.Close()
		return func() {}
	}

	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}
}

// processCommandLine parses the arguments into argsMap.
// Returns 0 on success, -1 if only the help was requested and an error
// code otherwise.
func processCommandLine(args []string, argsMap map[string]any) int {
	verbose := 1
	overwrite := false
	checksum := false
	extended := false
	skip := false
	remove := false
	noDotFiles := false
	noLinks := false
	inputName := ""
	outputName := ""
	tasks := -1
	cpuProf := ""
	ctx := -1
	mode := " "
	showHeader := true

	for i, arg := range args {
		if i == 0 {
			continue
		}

		arg = strings.TrimSpace(arg)

		if arg == "-o" {
			ctx = _ARG_IDX_OUTPUT
			continue
		}

		if arg == "-i" {
			ctx = _ARG_IDX_INPUT
			continue
		}

		if strings.HasPrefix(arg, _ARG_OUTPUT) {
			outputName = strings.TrimPrefix(arg, _ARG_OUTPUT)
			ctx = -1
			continue
		}

		if strings.HasPrefix(arg, _ARG_INPUT) {
			inputName = strings.TrimPrefix(arg, _ARG_INPUT)
			ctx = -1
			continue
		}

		if arg == "-v" {
			ctx = _ARG_IDX_VERBOSE
			continue
		}

		// Extract verbosity, output and mode first
		if arg == _ARG_COMPRESS || arg == "-c" {
			if mode == "d" {
				fmt.Println("Both compression and decompression options were provided.")
				return qpk.ERR_INVALID_PARAM
			}

			mode = "c"
			continue
		}

		if arg == _ARG_DECOMPRESS || arg == "-d" {
			if mode == "c" {
				fmt.Println("Both compression and decompression options were provided.")
				return qpk.ERR_INVALID_PARAM
			}

			mode = "d"
			continue
		}

		if strings.HasPrefix(arg, _ARG_VERBOSE) || ctx == _ARG_IDX_VERBOSE {
			verboseLevel := strings.TrimSpace(strings.TrimPrefix(arg, _ARG_VERBOSE))
			var err error

			if verbose, err = strconv.Atoi(verboseLevel); err != nil || verbose < 0 || verbose > 5 {
				fmt.Printf("Invalid verbosity level provided on command line: %v\n", arg)
				return qpk.ERR_INVALID_PARAM
			}
		} else if ctx == _ARG_IDX_OUTPUT {
			outputName = strings.TrimSpace(arg)
		} else if ctx == _ARG_IDX_INPUT {
			inputName = strings.TrimSpace(arg)
		}

		ctx = -1
	}

	// Overwrite verbosity if the output goes to stdout
	if len(inputName) == 0 && len(outputName) == 0 {
		verbose = 0
	} else if strings.EqualFold(outputName, _STDOUT) {
		verbose = 0
	}

	if verbose >= 1 {
		log.Println("\n"+_APP_HEADER+"\n", true)
		showHeader = false
	}

	inputName = ""
	outputName = ""
	ctx = -1
	warningNoValOpt := "Warning: ignoring option [%s] with no value."
	warningCompressOpt := "Warning: ignoring option [%s]. Only applicable in compress mode."
	warningDupOpt := "Warning: ignoring duplicate %s (%s)"
	warningInvalidOpt := "Invalid %s provided on command line: %s"

	if len(args) == 1 {
		printHelp(mode, showHeader)
		return -1
	}

	for i, arg := range args {
		if i == 0 {
			continue
		}

		arg = strings.TrimSpace(arg)

		if arg == "--help" || arg == "-h" {
			printHelp(mode, showHeader)
			return -1
		}

		if arg == _ARG_COMPRESS || arg == "-c" || arg == _ARG_DECOMPRESS || arg == "-d" {
			if ctx != -1 {
				log.Println(fmt.Sprintf(warningNoValOpt, _CMD_LINE_ARGS[ctx]), verbose > 0)
			}

			ctx = -1
			continue
		}

		if arg == _ARG_FORCE || arg == "-f" {
			if ctx != -1 {
				log.Println(fmt.Sprintf(warningNoValOpt, _CMD_LINE_ARGS[ctx]), verbose > 0)
			}

			overwrite = true
			ctx = -1
			continue
		}

		if arg == _ARG_SKIP || arg == "-s" {
			if ctx != -1 {
				log.Println(fmt.Sprintf(warningNoValOpt, _CMD_LINE_ARGS[ctx]), verbose > 0)
			}

			ctx = -1

			if mode != "c" {
				log.Println(fmt.Sprintf(warningCompressOpt, arg), verbose > 0)
				continue
			}

			skip = true
			continue
		}

		if arg == _ARG_CHECKSUM || arg == "-x" {
			if ctx != -1 {
				log.Println(fmt.Sprintf(warningNoValOpt, _CMD_LINE_ARGS[ctx]), verbose > 0)
			}

			checksum = true
			ctx = -1
			continue
		}

		if arg == _ARG_EXTENDED {
			if ctx != -1 {
				log.Println(fmt.Sprintf(warningNoValOpt, _CMD_LINE_ARGS[ctx]), verbose > 0)
			}

			ctx = -1

			if mode != "c" {
				log.Println(fmt.Sprintf(warningCompressOpt, arg), verbose > 0)
				continue
			}

			extended = true
			continue
		}

		if arg == "--rm" || arg == "--remove" {
			if ctx != -1 {
				log.Println(fmt.Sprintf(warningNoValOpt, _CMD_LINE_ARGS[ctx]), verbose > 0)
			}

			remove = true
			ctx = -1
			continue
		}

		if arg == "--no-dot-file" {
			if ctx != -1 {
				log.Println(fmt.Sprintf(warningNoValOpt, _CMD_LINE_ARGS[ctx]), verbose > 0)
			}

			noDotFiles = true
			ctx = -1
			continue
		}

		if arg == "--no-link" {
			if ctx != -1 {
				log.Println(fmt.Sprintf(warningNoValOpt, _CMD_LINE_ARGS[ctx]), verbose > 0)
			}

			noLinks = true
			ctx = -1
			continue
		}

		if ctx == -1 {
			idx := -1

			for i, v := range _CMD_LINE_ARGS {
				if arg == v {
					idx = i
					break
				}
			}

			if idx != -1 {
				ctx = idx
				continue
			}
		}

		if strings.HasPrefix(arg, _ARG_OUTPUT) || ctx == _ARG_IDX_OUTPUT {
			name := strings.TrimPrefix(arg, _ARG_OUTPUT)

			if outputName != "" {
				log.Println(fmt.Sprintf(warningDupOpt, "output name", name), verbose > 0)
			} else {
				outputName = name
			}

			ctx = -1
			continue
		}

		if strings.HasPrefix(arg, _ARG_INPUT) || ctx == _ARG_IDX_INPUT {
			name := strings.TrimPrefix(arg, _ARG_INPUT)

			if inputName != "" {
				log.Println(fmt.Sprintf(warningDupOpt, "input name", name), verbose > 0)
			} else {
				inputName = name
			}

			ctx = -1
			continue
		}

		if strings.HasPrefix(arg, _ARG_CPUPROF) || ctx == _ARG_IDX_PROFILE {
			name := strings.TrimPrefix(arg, _ARG_CPUPROF)

			if cpuProf != "" {
				log.Println(fmt.Sprintf(warningDupOpt, "profile name", name), verbose > 0)
			} else {
				cpuProf = name
			}

			ctx = -1
			continue
		}

		if strings.HasPrefix(arg, _ARG_JOBS) || ctx == _ARG_IDX_JOBS {
			str := strings.TrimSpace(strings.TrimPrefix(arg, _ARG_JOBS))

			if tasks != -1 {
				log.Println(fmt.Sprintf(warningDupOpt, "number of jobs", str), verbose > 0)
				ctx = -1
				continue
			}

			var err error

			if tasks, err = strconv.Atoi(str); err != nil || tasks < 0 {
				fmt.Printf(warningInvalidOpt+"\n", "number of jobs", str)
				return qpk.ERR_INVALID_PARAM
			}

			ctx = -1
			continue
		}

		if strings.HasPrefix(arg, _ARG_VERBOSE) || ctx == _ARG_IDX_VERBOSE {
			// Already processed
			ctx = -1
			continue
		}

		log.Println("Warning: ignoring unknown option ["+arg+"]", verbose > 0)
		ctx = -1
	}

	if ctx != -1 {
		log.Println(fmt.Sprintf(warningNoValOpt, _CMD_LINE_ARGS[ctx]), verbose > 0)
	}

	if mode != "c" && mode != "d" {
		fmt.Println("Missing mode: provide --compress (-c) or --decompress (-d)")
		return qpk.ERR_MISSING_PARAM
	}

	if len(inputName) == 0 {
		inputName = _STDIN
	}

	argsMap["mode"] = mode
	argsMap["verbosity"] = uint(verbose)
	argsMap["inputName"] = inputName
	argsMap["outputName"] = outputName

	if overwrite == true {
		argsMap["overwrite"] = true
	}

	if checksum == true {
		argsMap["checksum"] = true
	}

	if extended == true {
		argsMap["extended"] = true
	}

	if skip == true {
		argsMap["skip"] = true
	}

	if remove == true {
		argsMap["remove"] = true
	}

	if noDotFiles == true {
		argsMap["noDotFiles"] = true
	}

	if noLinks == true {
		argsMap["noLinks"] = true
	}

	if tasks >= 0 {
		argsMap["jobs"] = uint(tasks)
	}

	if len(cpuProf) > 0 {
		argsMap["cpuProf"] = cpuProf
	}

	return 0
}

func printHelp(mode string, showHeader bool) {
	if showHeader == true {
		log.Println("", true)
		log.Println(_APP_HEADER, true)
	}

	log.Println("", true)
	log.Println("   -h, --help", true)
	log.Println("        Display this message\n", true)

	if mode != "c" && mode != "d" {
		log.Println("   -c, --compress", true)
		log.Println("        Compress mode", true)
		log.Println("", true)
		log.Println("   -d, --decompress", true)
		log.Println("        Decompress mode", true)
		log.Println("", true)
	}

	log.Println("   -i, --input=<inputName>", true)
	log.Println("        Name of the input file or directory or 'stdin' (default)", true)
	log.Println("        When the source is a directory, all files in it are processed", true)
	log.Println("        recursively.\n", true)
	log.Println("   -o, --output=<outputName>", true)

	if mode == "c" {
		log.Println("        Optional name of the output file or directory (defaults to", true)
		log.Println("        <inputName.qpk>) or 'none' or 'stdout'.\n", true)
	} else if mode == "d" {
		log.Println("        Optional name of the output file or directory (defaults to", true)
		log.Println("        <inputName> without '.qpk' or <inputName.bak>) or 'none' or 'stdout'.\n", true)
	} else {
		log.Println("        Optional name of the output file or 'none' or 'stdout'.\n", true)
	}

	if mode != "d" {
		log.Println("   -s, --skip", true)
		log.Println("        Skip files that are already compressed or would not shrink.\n", true)
		log.Println("   --extended", true)
		log.Println("        Accept inputs using all 256 byte values.\n", true)
	}

	log.Println("   -x, --checksum", true)
	log.Println("        Display a 64 bit hash of the original data\n", true)
	log.Println("   -j, --jobs=<jobs>", true)
	log.Println("        Maximum number of files processed concurrently", true)
	log.Println("        If 0 is provided, use all available cores (maximum is 64).", true)
	log.Println("        (default is half of available cores).\n", true)
	log.Println("   -v, --verbose=<level>", true)
	log.Println("        Set the verbosity level [0..5]", true)
	log.Println("        0=silent, 1=default, 2=display details, 3=display configuration,", true)
	log.Println("        4=display event timings, 5=display code table", true)
	log.Println("        Verbosity is reduced to 1 when files are processed concurrently", true)
	log.Println("        Verbosity is reduced to 0 when the output is 'stdout'\n", true)
	log.Println("   -f, --force", true)
	log.Println("        Overwrite the output file if it already exists\n", true)
	log.Println("   --rm, --remove", true)
	log.Println("        Remove the input file after successful (de)compression.\n", true)
	log.Println("   --no-link", true)
	log.Println("        Skip links\n", true)
	log.Println("   --no-dot-file", true)
	log.Println("        Skip dot files\n", true)

	if mode == "c" {
		log.Println("EG. qpk -c -i foo.txt -o none -v 3\n", true)
		log.Println("EG. qpk --compress --input=foo.txt --output=foo.qpk --force --checksum\n", true)
	} else if mode == "d" {
		log.Println("EG. qpk -d -i foo.qpk -f -v 2 -j 2\n", true)
		log.Println("EG. qpk --decompress --input=foo.qpk --force --verbose=2 --jobs=2\n", true)
	}
}

// Printer a buffered printer (required in concurrent code)
type Printer struct {
	os *bufio.Writer
}

// Println concurrently safe version (order wise) of Println
func (this *Printer) Println(msg string, printFlag bool) {
	if printFlag == true {
		mutex.Lock()

		// Best effort, ignore error
		if w, _ := this.os.Write([]byte(msg + "\n")); w > 0 {
			_ = this.os.Flush()
		}

		mutex.Unlock()
	}
}
