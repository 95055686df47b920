// Package npz reads and writes NPZ archives: zip files whose members are NPY
// arrays. Entry order is the order of the zip central directory, which is the
// order the members were written.
package npz

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/FocuswithJustin/npzconv/core/errors"
	"github.com/FocuswithJustin/npzconv/core/npy"
	"github.com/FocuswithJustin/npzconv/internal/archive"
)

// Suffix is the member name suffix stripped from entry names.
const Suffix = ".npy"

// Archive is an open NPZ archive.
type Archive struct {
	path    string
	src     *archive.File
	names   []string
	members map[string]*zip.File
}

// Member describes one entry without decoding its payload.
type Member struct {
	Name             string
	Header           npy.Header
	Method           string
	CompressedSize   uint64
	UncompressedSize uint64
}

// Open opens the NPZ archive at path. Gzip or xz wrapped archives are
// unwrapped transparently.
func Open(path string) (*Archive, error) {
	src, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	a, err := newArchive(path, src, src.Size)
	if err != nil {
		src.Close()
		return nil, err
	}
	a.src = src
	return a, nil
}

// NewReader reads an NPZ archive from r, which has the given size.
func NewReader(r io.ReaderAt, size int64) (*Archive, error) {
	return newArchive("", r, size)
}

func newArchive(path string, r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, &errors.CorruptArchiveError{Path: path, Message: fmt.Sprintf("not a zip archive: %v", err), Err: err}
	}

	a := &Archive{path: path, members: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		if !strings.HasSuffix(f.Name, Suffix) {
			return nil, errors.NewCorrupt(path, f.Name, "member is not an .npy array")
		}
		name := strings.TrimSuffix(f.Name, Suffix)
		if _, dup := a.members[name]; dup {
			return nil, errors.NewCorrupt(path, name, "duplicate entry name")
		}
		a.members[name] = f
		a.names = append(a.names, name)
	}
	return a, nil
}

// Path returns the path the archive was opened from, if any.
func (a *Archive) Path() string { return a.path }

// Names returns the entry names in archive order.
func (a *Archive) Names() []string { return append([]string(nil), a.names...) }

// Len returns the number of entries.
func (a *Archive) Len() int { return len(a.names) }

// Compression returns the outer wrapper the archive was found in.
func (a *Archive) Compression() archive.Compression {
	if a.src == nil {
		return archive.CompressionNone
	}
	return a.src.Compression
}

// Load decodes the named entry.
func (a *Archive) Load(name string) (*npy.Array, error) {
	f, ok := a.members[name]
	if !ok {
		return nil, errors.NewNotFound("entry", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, a.annotate(name, err)
	}
	defer rc.Close()

	arr, err := npy.Read(rc)
	if err != nil {
		return nil, a.annotate(name, err)
	}
	// drain so the member checksum is verified
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return nil, a.annotate(name, err)
	}
	return arr, nil
}

// Stat reads the named entry's header without decoding its payload.
func (a *Archive) Stat(name string) (Member, error) {
	f, ok := a.members[name]
	if !ok {
		return Member{}, errors.NewNotFound("entry", name)
	}
	rc, err := f.Open()
	if err != nil {
		return Member{}, a.annotate(name, err)
	}
	defer rc.Close()

	h, err := npy.ReadHeader(rc)
	if err != nil {
		return Member{}, a.annotate(name, err)
	}
	return Member{
		Name:             name,
		Header:           h,
		Method:           methodName(f.Method),
		CompressedSize:   f.CompressedSize64,
		UncompressedSize: f.UncompressedSize64,
	}, nil
}

// Close releases the underlying file.
func (a *Archive) Close() error {
	if a.src == nil {
		return nil
	}
	return a.src.Close()
}

// annotate places err in the context of the archive and entry.
func (a *Archive) annotate(name string, err error) error {
	var ca *errors.CorruptArchiveError
	if errors.As(err, &ca) {
		out := *ca
		if out.Path == "" {
			out.Path = a.path
		}
		if out.Entry == "" {
			out.Entry = name
		}
		return &out
	}
	return &errors.CorruptArchiveError{Path: a.path, Entry: name, Message: err.Error(), Err: err}
}

func methodName(m uint16) string {
	switch m {
	case zip.Store:
		return "stored"
	case zip.Deflate:
		return "deflated"
	default:
		return fmt.Sprintf("method %d", m)
	}
}
