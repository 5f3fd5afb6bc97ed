package walk

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// sniffBytes is how much of a file is read to decide whether it is binary.
const sniffBytes = 8 * 1024

// BinaryDetector rejects files that should not be searched as text.
type BinaryDetector struct {
	binaryExtensions map[string]bool
}

// NewBinaryDetector creates a detector with the built-in extension table.
func NewBinaryDetector() *BinaryDetector {
	extensions := map[string]bool{
		// Fonts
		".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,

		// Images
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
		".ico": true, ".webp": true, ".tiff": true, ".tif": true,
		".svg": false, // XML

		// Archives
		".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true,
		".zst": true, ".7z": true, ".rar": true, ".jar": true, ".war": true,

		// Executables and objects
		".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
		".o": true, ".obj": true, ".bin": true, ".wasm": true,

		// Media
		".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wav": true,
		".flac": true, ".ogg": true, ".mkv": true, ".webm": true,

		// Documents
		".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
		".ppt": true, ".pptx": true,

		// Data
		".db": true, ".sqlite": true, ".sqlite3": true, ".parquet": true,
		".arrow": true, ".feather": true,

		// Bytecode and serialized objects
		".pyc": true, ".pyo": true, ".class": true, ".pickle": true, ".pkl": true,
	}

	return &BinaryDetector{binaryExtensions: extensions}
}

// IsBinaryByExtension checks the extension table without any I/O.
func (bd *BinaryDetector) IsBinaryByExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	return bd.binaryExtensions[ext]
}

// IsBinaryContent inspects the leading bytes of a file: known magic numbers
// or any NUL byte mark it as binary.
func (bd *BinaryDetector) IsBinaryContent(sample []byte) bool {
	if len(sample) == 0 {
		return false
	}
	if len(sample) > sniffBytes {
		sample = sample[:sniffBytes]
	}

	switch {
	case bytes.HasPrefix(sample, []byte{0x1F, 0x8B}): // gzip
		return true
	case bytes.HasPrefix(sample, []byte{0x50, 0x4B, 0x03, 0x04}): // zip
		return true
	case bytes.HasPrefix(sample, []byte{0x89, 0x50, 0x4E, 0x47}): // png
		return true
	case bytes.HasPrefix(sample, []byte{0x25, 0x50, 0x44, 0x46}): // pdf
		return true
	case bytes.HasPrefix(sample, []byte{0x7F, 0x45, 0x4C, 0x46}): // elf
		return true
	case bytes.HasPrefix(sample, []byte{0xCF, 0xFA, 0xED, 0xFE}): // mach-o 64
		return true
	}

	return bytes.IndexByte(sample, 0) >= 0
}

// IsBinaryFile combines the extension table with a content sniff.
// Unreadable files are reported as binary so the walker skips them.
func (bd *BinaryDetector) IsBinaryFile(path string) bool {
	if bd.IsBinaryByExtension(path) {
		return true
	}

	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return true
	}
	return bd.IsBinaryContent(buf[:n])
}
