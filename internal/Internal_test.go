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

package internal

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestDetectCompressedFormat(t *testing.T) {
	cases := []struct {
		data     []byte
		expected string
	}{
		{[]byte{0x1F, 0x8B, 0x08, 0x00}, "gzip"},
		{[]byte{0x28, 0xB5, 0x2F, 0xFD, 0x00}, "zstd"},
		{[]byte{0xFF, 0xD8, 0xFF, 0xE1}, "jpeg"},
		{[]byte("PK\x03\x04"), "zip"},
		{[]byte("BZh9"), "bzip2"},
		{[]byte("QPK\x09"), "qpk"},
		{[]byte("QPK"), "qpk"},
		{[]byte("plain text"), ""},
		{[]byte{0x1F}, ""},
		{nil, ""},
	}

	for _, c := range cases {
		if res := DetectCompressedFormat(c.data); res != c.expected {
			t.Errorf("%x: expected '%s', got '%s'", c.data, c.expected, res)
		}

		if IsDataCompressed(c.data) != (c.expected != "") {
			t.Errorf("%x: invalid compressed flag", c.data)
		}
	}
}

func TestCreateFileList(t *testing.T) {
	dir := t.TempDir()
	files := map[string]int{
		"a.txt":         10,
		"b.txt":         1000,
		"sub/c.txt":     100,
		".hidden":       5,
		".git/config":   5,
		"sub/.dot/file": 5,
	}

	for name, size := range files {
		path := filepath.Join(dir, name)

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
			t.Fatal(err)
		}
	}

	list, err := CreateFileList(dir, false, true)

	if err != nil {
		t.Fatal(err)
	}

	// Sorted by directory, then by decreasing size
	expected := []string{"b.txt", "a.txt", "sub/c.txt"}

	if len(list) != len(expected) {
		t.Fatalf("Expected %d files, got %d: %v", len(expected), len(list), list)
	}

	for i, name := range expected {
		if list[i].FullPath != filepath.Join(dir, name) {
			t.Errorf("File %d: expected %s, got %s", i, filepath.Join(dir, name), list[i].FullPath)
		}
	}

	if list[0].Size != 1000 || list[0].Name != "b.txt" {
		t.Errorf("Invalid file data: %+v", list[0])
	}

	if list, err = CreateFileList(dir, false, false); err != nil || len(list) != len(files) {
		t.Errorf("Expected %d files including dot files, got %d (%v)", len(files), len(list), err)
	}

	if list, err = CreateFileList(filepath.Join(dir, "a.txt"), false, true); err != nil || len(list) != 1 {
		t.Errorf("Expected a single file, got %d (%v)", len(list), err)
	}

	if _, err = CreateFileList(filepath.Join(dir, "missing"), false, true); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestBufferStream(t *testing.T) {
	bs := NewBufferStream()

	if _, err := bs.Write([]byte("hello ")); err != nil {
		t.Fatal(err)
	}

	bs.Write([]byte("world"))
	buf := make([]byte, 4)
	n, _ := bs.Read(buf)

	if n != 4 || string(buf) != "hell" || bs.Len() != 7 {
		t.Errorf("Invalid read: %q, %d left", buf[0:n], bs.Len())
	}

	rest, err := io.ReadAll(bs)

	if err != nil || string(rest) != "o world" {
		t.Errorf("Invalid read: %q (%v)", rest, err)
	}

	if n, err = bs.Read(buf); n != 0 || err != io.EOF {
		t.Errorf("Expected EOF, got %d, %v", n, err)
	}

	bs.Close()

	if _, err = bs.Write(buf); err == nil {
		t.Error("Write after Close should fail")
	}
}
