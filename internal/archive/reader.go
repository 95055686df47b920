// Package archive provides random-access views of input archives.
// Plain zip files are read in place; gzip and xz wrapped inputs are
// decompressed into memory first.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/npzconv/core/errors"
	"github.com/FocuswithJustin/npzconv/internal/validation"
)

// Compression names the outer wrapper found around an archive.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionXZ   Compression = "xz"
)

// MaxDecompressedSize bounds the in-memory size of an unwrapped input.
var MaxDecompressedSize int64 = validation.MaxFileSize

// File is a random-access view of an input archive.
type File struct {
	io.ReaderAt
	Size        int64
	Compression Compression
	closer      io.Closer
}

// Close releases the underlying file, if one is still open.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.closer = nil
	return err
}

// Open opens path and detects its wrapper from the leading magic bytes.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.NewIO("stat", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, errors.NewCorrupt(path, "", "is a directory")
	}

	head := make([]byte, validation.SniffLen)
	n, err := f.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		f.Close()
		return nil, errors.NewIO("read", path, err)
	}

	var (
		dec         io.Reader
		compression Compression
	)
	src := io.NewSectionReader(f, 0, info.Size())
	switch validation.DetectFileType(head[:n]) {
	case validation.FileTypeGzip:
		gzr, err := gzip.NewReader(src)
		if err != nil {
			f.Close()
			return nil, &errors.CorruptArchiveError{Path: path, Message: "gzip reader", Err: err}
		}
		defer gzr.Close()
		dec, compression = gzr, CompressionGzip
	case validation.FileTypeXZ:
		xzr, err := xz.NewReader(src)
		if err != nil {
			f.Close()
			return nil, &errors.CorruptArchiveError{Path: path, Message: "xz reader", Err: err}
		}
		dec, compression = xzr, CompressionXZ
	default:
		return &File{ReaderAt: f, Size: info.Size(), Compression: CompressionNone, closer: f}, nil
	}
	defer f.Close()

	data, err := readBounded(dec)
	if err != nil {
		return nil, &errors.CorruptArchiveError{Path: path, Message: fmt.Sprintf("%s stream: %v", compression, err), Err: err}
	}
	return &File{ReaderAt: bytes.NewReader(data), Size: int64(len(data)), Compression: compression}, nil
}

func readBounded(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDecompressedSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed size exceeds %d bytes", MaxDecompressedSize)
	}
	return data, nil
}
