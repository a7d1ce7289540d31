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
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qpk "github.com/flanglet/qpk-go"
)

func TestProcessCommandLine(t *testing.T) {
	args := []string{"qpk", "-c", "-i", "foo.txt", "-o", "none", "-f", "--checksum",
		"-j", "2", "-v", "0", "--extended", "--no-dot-file"}
	argsMap := make(map[string]any)

	if status := processCommandLine(args, argsMap); status != 0 {
		t.Fatalf("Unexpected status %d", status)
	}

	expected := map[string]any{
		"mode":       "c",
		"inputName":  "foo.txt",
		"outputName": "none",
		"overwrite":  true,
		"checksum":   true,
		"extended":   true,
		"noDotFiles": true,
		"jobs":       uint(2),
		"verbosity":  uint(0),
	}

	for k, v := range expected {
		if argsMap[k] != v {
			t.Errorf("%s: expected %v, got %v", k, v, argsMap[k])
		}
	}

	argsMap = make(map[string]any)
	args = []string{"qpk", "--decompress", "--input=foo.qpk", "--output=foo", "--verbose=0"}

	if status := processCommandLine(args, argsMap); status != 0 {
		t.Fatalf("Unexpected status %d", status)
	}

	if argsMap["mode"] != "d" || argsMap["inputName"] != "foo.qpk" || argsMap["outputName"] != "foo" {
		t.Errorf("Invalid arguments: %v", argsMap)
	}

	invalid := [][]string{
		{"qpk", "-c", "-d", "-i", "foo"},
		{"qpk", "-c", "--verbose=9", "-i", "foo"},
		{"qpk", "-c", "-i", "foo", "--jobs=x", "-v", "0"},
		{"qpk", "-i", "foo", "-v", "0"},
	}

	for _, args := range invalid {
		if status := processCommandLine(args, make(map[string]any)); status <= 0 {
			t.Errorf("%v: expected error status, got %d", args, status)
		}
	}
}

func TestSkipReason(t *testing.T) {
	if skipReason([]byte{0x1F, 0x8B, 0x08, 0x00, 1, 2, 3}, false) == "" {
		t.Error("gzip data should be skipped")
	}

	all := make([]byte, 1024)

	for i := range all {
		all[i] = byte(i)
	}

	if skipReason(all, false) == "" {
		t.Error("Data using all byte values should be skipped without extended alphabet")
	}

	// Uniform data does not shrink
	if skipReason(all, true) == "" {
		t.Error("Uniform data should be skipped")
	}

	text := []byte(strings.Repeat("a static two pass huffman coder ", 100))

	if reason := skipReason(text, false); reason != "" {
		t.Errorf("Text should be compressed, got '%s'", reason)
	}
}

func TestDeriveOutputName(t *testing.T) {
	cases := [][3]string{
		{"foo.txt", _QPK_EXTENSION, "foo.txt.qpk"},
		{"foo.txt.qpk", _BAK_EXTENSION, "foo.txt"},
		{"foo.bin", _BAK_EXTENSION, "foo.bin.bak"},
		{".qpk", _BAK_EXTENSION, ".qpk.bak"},
	}

	for _, c := range cases {
		if res := deriveOutputName(c[0], c[1]); res != c[2] {
			t.Errorf("%s: expected %s, got %s", c[0], c[2], res)
		}
	}
}

func TestFileRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	compDir := t.TempDir()
	dstDir := t.TempDir()
	contents := map[string][]byte{
		"a.txt":     []byte(strings.Repeat("hello huffman ", 1000)),
		"sub/b.bin": randomText(50000),
		"empty":     {},
	}

	for name, data := range contents {
		path := filepath.Join(srcDir, name)
		os.MkdirAll(filepath.Dir(path), 0755)

		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}
	}

	fc, err := NewFileCompressor(map[string]any{
		"verbosity":  uint(0),
		"inputName":  srcDir,
		"outputName": compDir,
		"jobs":       uint(2),
		"checksum":   true,
	})

	if err != nil {
		t.Fatal(err)
	}

	if code, written := fc.Compress(); code != 0 || written == 0 {
		t.Fatalf("Compression failed: code %d, %d bytes written", code, written)
	}

	if _, err = os.Stat(filepath.Join(compDir, "sub", "b.bin"+_QPK_EXTENSION)); err != nil {
		t.Fatalf("Missing compressed file: %v", err)
	}

	// Existing output without --force
	fc, _ = NewFileCompressor(map[string]any{
		"verbosity":  uint(0),
		"inputName":  filepath.Join(srcDir, "a.txt"),
		"outputName": filepath.Join(compDir, "a.txt"+_QPK_EXTENSION),
	})

	if code, _ := fc.Compress(); code != qpk.ERR_OVERWRITE_FILE {
		t.Errorf("Expected overwrite error, got %d", code)
	}

	fd, err := NewFileDecompressor(map[string]any{
		"verbosity":  uint(0),
		"inputName":  compDir,
		"outputName": dstDir,
		"jobs":       uint(2),
	})

	if err != nil {
		t.Fatal(err)
	}

	if code, _ := fd.Decompress(); code != 0 {
		t.Fatalf("Decompression failed: code %d", code)
	}

	for name, data := range contents {
		res, err := os.ReadFile(filepath.Join(dstDir, name))

		if err != nil {
			t.Fatal(err)
		}

		if bytes.Equal(res, data) == false {
			t.Errorf("%s: decompressed data differs from original", name)
		}
	}

	// Not a QPK file
	fd, _ = NewFileDecompressor(map[string]any{
		"verbosity":  uint(0),
		"inputName":  filepath.Join(srcDir, "a.txt"),
		"outputName": _NONE,
	})

	if code, _ := fd.Decompress(); code != qpk.ERR_INVALID_FILE {
		t.Errorf("Expected invalid file error, got %d", code)
	}
}

func TestFailureLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "all.bin")
	all := make([]byte, 1024)

	for i := range all {
		all[i] = byte(i)
	}

	if err := os.WriteFile(input, all, 0644); err != nil {
		t.Fatal(err)
	}

	fc, _ := NewFileCompressor(map[string]any{
		"verbosity":  uint(0),
		"inputName":  input,
		"outputName": "",
	})

	if code, _ := fc.Compress(); code != qpk.ERR_CAPACITY {
		t.Errorf("Expected capacity error, got %d", code)
	}

	if _, err := os.Stat(input + _QPK_EXTENSION); os.IsNotExist(err) == false {
		t.Errorf("Output file should not exist after a failed compression: %v", err)
	}

	// A retry with the extended alphabet succeeds without --force
	fc, _ = NewFileCompressor(map[string]any{
		"verbosity":  uint(0),
		"inputName":  input,
		"outputName": "",
		"extended":   true,
	})

	if code, _ := fc.Compress(); code != 0 {
		t.Errorf("Compression with extended alphabet failed: code %d", code)
	}

	// Corrupted container: valid header, payload cut short
	compressed, err := os.ReadFile(input + _QPK_EXTENSION)

	if err != nil {
		t.Fatal(err)
	}

	corrupted := filepath.Join(dir, "cut.qpk")

	if err = os.WriteFile(corrupted, compressed[0:len(compressed)-10], 0644); err != nil {
		t.Fatal(err)
	}

	fd, _ := NewFileDecompressor(map[string]any{
		"verbosity":  uint(0),
		"inputName":  corrupted,
		"outputName": "",
	})

	if code, _ := fd.Decompress(); code != qpk.ERR_INVALID_FILE {
		t.Errorf("Expected invalid file error, got %d", code)
	}

	if _, err = os.Stat(filepath.Join(dir, "cut")); os.IsNotExist(err) == false {
		t.Errorf("Output file should not exist after a failed decompression: %v", err)
	}
}

func randomText(size int) []byte {
	res := make([]byte, size)

	for i := range res {
		res[i] = byte('a' + rand.Intn(26))
	}

	return res
}
