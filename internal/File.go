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
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileData a file path, split into directory and name, and its size
type FileData struct {
	FullPath string
	Path     string
	Name     string
	Size     int64
}

// NewFileData creates an instance of FileData from a file path and size
func NewFileData(fullPath string, size int64) FileData {
	path, name := filepath.Split(fullPath)
	return FileData{FullPath: fullPath, Path: path, Name: name, Size: size}
}

// CreateFileList returns the regular files found at target. A directory is
// walked recursively. Files are sorted by directory, then by decreasing
// size so that the largest files of a folder are processed first.
func CreateFileList(target string, ignoreLinks, ignoreDotFiles bool) ([]FileData, error) {
	fi, err := os.Lstat(target)

	if err != nil {
		return nil, err
	}

	res := make([]FileData, 0, 16)

	if fi.IsDir() == false {
		if accept(target, fi.Mode(), ignoreLinks, ignoreDotFiles) {
			if fi, err = os.Stat(target); err != nil {
				return nil, err
			}

			res = append(res, NewFileData(target, fi.Size()))
		}

		return res, nil
	}

	err = filepath.WalkDir(target, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if de.IsDir() {
			if path != target && ignoreDotFiles && isDotFile(path) {
				return filepath.SkipDir
			}

			return nil
		}

		if accept(path, de.Type(), ignoreLinks, ignoreDotFiles) == false {
			return nil
		}

		info, err := os.Stat(path)

		if err != nil {
			return err
		}

		if info.Mode().IsRegular() {
			res = append(res, NewFileData(path, info.Size()))
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	sort.Slice(res, func(i, j int) bool {
		if c := strings.Compare(res[i].Path, res[j].Path); c != 0 {
			return c < 0
		}

		return res[i].Size > res[j].Size
	})

	return res, nil
}

func accept(path string, mode fs.FileMode, ignoreLinks, ignoreDotFiles bool) bool {
	if ignoreDotFiles && isDotFile(path) {
		return false
	}

	if mode&fs.ModeSymlink != 0 {
		return ignoreLinks == false
	}

	return mode.IsRegular()
}

func isDotFile(path string) bool {
	name := filepath.Base(path)
	return len(name) > 1 && name[0] == '.' && name != ".."
}
