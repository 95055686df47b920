package convert

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDocument(t *testing.T) {
	d := NewDocument()
	if err := d.Add(Entry{Name: "b", Shape: []int{2}, Value: []any{int64(1), int64(2)}}); err != nil {
		t.Fatal(err)
	}
	if err := d.Add(Entry{Name: "a", Value: 3.5}); err != nil {
		t.Fatal(err)
	}
	if err := d.Add(Entry{Name: "b", Value: nil}); err == nil {
		t.Error("expected error for duplicate name")
	}

	if d.Len() != 2 {
		t.Errorf("Len() = %d, want 2", d.Len())
	}
	if diff := cmp.Diff([]string{"b", "a"}, d.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if v, ok := d.Get("a"); !ok || v != 3.5 {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}
	if _, ok := d.Get("missing"); ok {
		t.Error("Get(missing) reported ok")
	}

	entries := d.Entries()
	entries[0].Name = "changed"
	if d.Names()[0] != "b" {
		t.Error("Entries() exposed internal storage")
	}
}

func TestDocumentMarshalJSON(t *testing.T) {
	d := NewDocument()
	if err := d.Add(Entry{Name: "weights", Value: []any{[]any{int64(1), int64(2)}, []any{int64(3), int64(4)}}}); err != nil {
		t.Fatal(err)
	}
	if err := d.Add(Entry{Name: "scale", Value: 2.0}); err != nil {
		t.Fatal(err)
	}

	got, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"weights":[[1,2],[3,4]],"scale":2.0}` {
		t.Errorf("json.Marshal = %s", got)
	}
}
