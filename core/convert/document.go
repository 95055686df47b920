package convert

import (
	"fmt"

	"github.com/FocuswithJustin/npzconv/core/npy"
)

// Entry is one converted array.
type Entry struct {
	Name  string
	Shape []int
	DType npy.DType
	// Value is a nested []any with one level per dimension, or a bare leaf
	// for a 0-d array.
	Value any
}

// Document is the ordered name to nested-list mapping produced by a
// conversion. Entries keep the order they were added in.
type Document struct {
	entries []Entry
	index   map[string]int
}

// NewDocument returns an empty Document.
func NewDocument() *Document {
	return &Document{index: make(map[string]int)}
}

// Add appends e. Names must be unique.
func (d *Document) Add(e Entry) error {
	if _, dup := d.index[e.Name]; dup {
		return fmt.Errorf("duplicate entry %q", e.Name)
	}
	d.index[e.Name] = len(d.entries)
	d.entries = append(d.entries, e)
	return nil
}

// Len returns the number of entries.
func (d *Document) Len() int { return len(d.entries) }

// Names returns the entry names in order.
func (d *Document) Names() []string {
	names := make([]string, len(d.entries))
	for i, e := range d.entries {
		names[i] = e.Name
	}
	return names
}

// Get returns the converted value for name.
func (d *Document) Get(name string) (any, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.entries[i].Value, true
}

// Entries returns the entries in order.
func (d *Document) Entries() []Entry {
	return append([]Entry(nil), d.entries...)
}

// MarshalJSON encodes the document compactly with default options.
func (d *Document) MarshalJSON() ([]byte, error) {
	return Encode(d, EncodeOptions{})
}
