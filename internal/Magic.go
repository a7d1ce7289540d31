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
	"encoding/binary"
)

const (
	QPK_MAGIC    = 0x51504B // "QPK"
	JPG_MAGIC    = 0xFFD8FFE0
	GIF_MAGIC    = 0x47494638
	ZIP_MAGIC    = 0x504B0304
	LZMA_MAGIC   = 0x377ABCAF
	PNG_MAGIC    = 0x89504E47
	ZSTD_MAGIC   = 0x28B52FFD
	BROTLI_MAGIC = 0x81CFB2CE
	CAB_MAGIC    = 0x4D534346
	FLAC_MAGIC   = 0x664C6143
	XZ_MAGIC     = 0xFD377A58
	RAR_MAGIC    = 0x52617221
	KNZ_MAGIC    = 0x4B414E5A
	BZIP2_MAGIC  = 0x425A68
	MP3_MAGIC    = 0x494433
	GZIP_MAGIC   = 0x1F8B
)

type magicKey struct {
	value uint32
	bits  uint // number of leading bits compared
	name  string
}

// Longest keys first so that a 32 bit match wins over a shorter one
var _MAGIC_KEYS = []magicKey{
	{JPG_MAGIC, 28, "jpeg"},
	{GIF_MAGIC, 32, "gif"},
	{ZIP_MAGIC, 32, "zip"},
	{LZMA_MAGIC, 32, "7z"},
	{PNG_MAGIC, 32, "png"},
	{ZSTD_MAGIC, 32, "zstd"},
	{BROTLI_MAGIC, 32, "brotli"},
	{CAB_MAGIC, 32, "cab"},
	{FLAC_MAGIC, 32, "flac"},
	{XZ_MAGIC, 32, "xz"},
	{RAR_MAGIC, 32, "rar"},
	{KNZ_MAGIC, 32, "kanzi"},
	{QPK_MAGIC, 24, "qpk"},
	{BZIP2_MAGIC, 24, "bzip2"},
	{MP3_MAGIC, 24, "mp3"},
	{GZIP_MAGIC, 16, "gzip"},
}

// DetectCompressedFormat checks the first bytes of the slice against the
// magic values of common compressed formats. Returns the name of the format
// or an empty string.
func DetectCompressedFormat(src []byte) string {
	if len(src) < 4 {
		if len(src) == 3 && string(src) == "QPK" {
			return "qpk"
		}

		return ""
	}

	key := binary.BigEndian.Uint32(src)

	for _, k := range _MAGIC_KEYS {
		shift := 32 - k.bits

		if k.bits == 28 {
			// JPEG: last nibble varies (E0, E1, ...)
			if key&^uint32(0x0F) == k.value {
				return k.name
			}

			continue
		}

		if key>>shift == k.value {
			return k.name
		}
	}

	return ""
}

// IsDataCompressed returns true if the slice starts with the magic value
// of a known compressed format. Huffman coding such data is not worth it.
func IsDataCompressed(src []byte) bool {
	return DetectCompressedFormat(src) != ""
}
