package npz

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/FocuswithJustin/npzconv/core/npy"
)

// modTime is stamped on every member so identical input gives identical bytes.
var modTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Writer writes arrays to an NPZ archive in the order they are added.
type Writer struct {
	zw     *zip.Writer
	bw     *bufio.Writer
	file   *os.File
	method uint16
	seen   map[string]bool
}

// NewWriter returns a Writer that writes to w. Members are deflated when
// compressed is true, as np.savez_compressed does, and stored otherwise.
func NewWriter(w io.Writer, compressed bool) *Writer {
	bw := bufio.NewWriter(w)
	method := zip.Store
	if compressed {
		method = zip.Deflate
	}
	return &Writer{zw: zip.NewWriter(bw), bw: bw, method: method, seen: make(map[string]bool)}
}

// Create creates the archive file at path.
func Create(path string, compressed bool) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	w := NewWriter(f, compressed)
	w.file = f
	return w, nil
}

// Add writes arr as member name + ".npy".
func (w *Writer) Add(name string, arr *npy.Array) error {
	if w.seen[name] {
		return fmt.Errorf("npz: duplicate entry %q", name)
	}
	w.seen[name] = true

	hdr := &zip.FileHeader{Name: name + Suffix, Method: w.method, Modified: modTime}
	mw, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("npz: create member %s: %w", name, err)
	}
	if err := npy.Write(mw, arr); err != nil {
		return fmt.Errorf("npz: write member %s: %w", name, err)
	}
	return nil
}

// Close finishes the archive and closes the file if the Writer owns one.
func (w *Writer) Close() error {
	err := w.zw.Close()
	if ferr := w.bw.Flush(); err == nil {
		err = ferr
	}
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
