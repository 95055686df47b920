// Package validation provides checks for user-supplied paths and the file
// type sniffing used before an input is decoded.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// Limits that keep a hostile input from exhausting memory (CWE-400).
const (
	// MaxFileSize is the maximum decompressed archive size (256 MB).
	MaxFileSize = 256 << 20
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrSamePath         = errors.New("input and output refer to the same file")
	ErrIsDirectory      = errors.New("path is a directory")
)

// ValidatePath performs path validation without requiring a base directory.
// It checks length limits and invalid characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}

	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}

	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}

	return nil
}

// ValidateOutputPath checks that output is a usable path distinct from input.
// Overwriting the archive being read would destroy the only copy of the data.
func ValidateOutputPath(input, output string) error {
	if err := ValidatePath(output); err != nil {
		return err
	}
	if strings.HasSuffix(output, string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrIsDirectory, output)
	}
	in, err := filepath.Abs(input)
	if err != nil {
		return fmt.Errorf("failed to resolve input path: %w", err)
	}
	out, err := filepath.Abs(output)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}
	if in == out {
		return ErrSamePath
	}
	return nil
}

// FileType represents a sniffed file type.
type FileType string

const (
	FileTypeZip     FileType = "zip"
	FileTypeGzip    FileType = "gzip"
	FileTypeXZ      FileType = "xz"
	FileTypeNPY     FileType = "npy"
	FileTypeSQLite  FileType = "sqlite"
	FileTypeUnknown FileType = "unknown"
)

// SniffLen is the number of leading bytes DetectFileType needs.
const SniffLen = 16

// magicBytes defines magic byte signatures for file type detection.
var magicBytes = []struct {
	fileType FileType
	magic    []byte
}{
	{FileTypeGzip, []byte{0x1f, 0x8b}},
	{FileTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{FileTypeZip, []byte{0x50, 0x4b, 0x03, 0x04}},
	// empty zip: end-of-central-directory record only
	{FileTypeZip, []byte{0x50, 0x4b, 0x05, 0x06}},
	{FileTypeNPY, []byte("\x93NUMPY")},
	{FileTypeSQLite, []byte("SQLite format 3")},
}

// DetectFileType detects a file type from its leading bytes.
func DetectFileType(buf []byte) FileType {
	for _, sig := range magicBytes {
		if bytes.HasPrefix(buf, sig.magic) {
			return sig.fileType
		}
	}
	return FileTypeUnknown
}
