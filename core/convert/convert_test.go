package convert

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zip"
	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/npzconv/core/errors"
	"github.com/FocuswithJustin/npzconv/core/npy"
	"github.com/FocuswithJustin/npzconv/core/npz"
	"github.com/FocuswithJustin/npzconv/internal/archive"
)

type namedArray struct {
	name string
	arr  *npy.Array
}

func mustArray[T npy.Element](t *testing.T, shape []int, data []T) *npy.Array {
	t.Helper()
	a, err := npy.NewArray(shape, data)
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}
	return a
}

// writeNPZ writes the arrays, in order, to dir/name.
func writeNPZ(t *testing.T, dir, name string, arrays ...namedArray) string {
	t.Helper()
	path := filepath.Join(dir, name)
	w, err := npz.Create(path, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range arrays {
		if err := w.Add(a.name, a.arr); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

// rawNPY builds an NPY v1 stream from a descr, shape literal and payload.
func rawNPY(descr, shape string, payload []byte) []byte {
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, shape)
	total := len(npy.Magic) + 2 + 2 + len(dict) + 1
	if pad := total % 64; pad != 0 {
		dict += strings.Repeat(" ", 64-pad)
	}
	dict += "\n"

	var buf bytes.Buffer
	buf.WriteString(npy.Magic)
	buf.Write([]byte{1, 0})
	binary.Write(&buf, binary.LittleEndian, uint16(len(dict)))
	buf.WriteString(dict)
	buf.Write(payload)
	return buf.Bytes()
}

func writeRawNPZ(t *testing.T, path string, members ...[2]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, m := range members {
		w, err := zw.Create(m[0])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(m[1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func run(t *testing.T, cfg Config) (*Result, string, error) {
	t.Helper()
	var out bytes.Buffer
	res, err := New(WithOutput(&out)).Run(cfg)
	return res, out.String(), err
}

func TestConvertWeightsExample(t *testing.T) {
	dir := t.TempDir()
	in := writeNPZ(t, dir, "voices.npz", namedArray{"weights", mustArray(t, []int{2, 2}, []int64{1, 2, 3, 4})})
	out := filepath.Join(dir, "voices.json")

	res, console, err := run(t, Config{InputPath: in, OutputPath: out})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"weights":[[1,2],[3,4]]}` {
		t.Errorf("output = %s", got)
	}

	info, err := os.Stat(in)
	if err != nil {
		t.Fatal(err)
	}
	want := "Converted weights: shape (2, 2), dtype int64\n" +
		fmt.Sprintf("Successfully converted %s to %s\n", in, out) +
		fmt.Sprintf("NPZ size: %.1f KB\n", float64(info.Size())/1024) +
		"JSON size: 0.0 KB\n" +
		"\nVoice data summary:\n" +
		"  weights: 2 elements\n"
	if diff := cmp.Diff(want, console); diff != "" {
		t.Errorf("console mismatch (-want +got):\n%s", diff)
	}

	if res.InputBytes != info.Size() || res.OutputBytes != int64(len(got)) {
		t.Errorf("sizes = %d/%d", res.InputBytes, res.OutputBytes)
	}
	if res.Digest.BLAKE3 == "" || res.Digest.SHA256 == "" {
		t.Errorf("digest not recorded: %+v", res.Digest)
	}
	if res.Compression != archive.CompressionNone {
		t.Errorf("Compression = %s", res.Compression)
	}
	if !strings.Contains(res.String(), "1 entries") {
		t.Errorf("String() = %q", res.String())
	}
}

func TestConvertRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cube := make([]float32, 2*3*4)
	for i := range cube {
		cube[i] = float32(i)/8 - 1
	}
	strs, err := npy.NewStrings([]int{2}, []string{"af_bella", "\u00e9t\u00e9"})
	if err != nil {
		t.Fatal(err)
	}
	arrays := []namedArray{
		{"cube", mustArray(t, []int{2, 3, 4}, cube)},
		{"ids", mustArray(t, []int{3}, []int16{-1, 0, 300})},
		{"mask", mustArray(t, []int{2, 2}, []bool{true, false, false, true})},
		{"bytes", mustArray(t, []int{4}, []uint8{0, 1, 254, 255})},
		{"scale", mustArray(t, nil, []float64{0.75})},
		{"names", strs},
		{"empty", mustArray(t, []int{0, 3}, []float64{})},
	}
	in := writeNPZ(t, dir, "voices.npz", arrays...)
	out := filepath.Join(dir, "voices.json")

	doc, err := Convert(Config{InputPath: in, OutputPath: out}, WithOutput(new(bytes.Buffer)))
	if err != nil {
		t.Fatalf("Convert() error: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, data)
	}

	// completeness and order
	var wantNames []string
	for _, a := range arrays {
		wantNames = append(wantNames, a.name)
	}
	if diff := cmp.Diff(wantNames, doc.Names()); diff != "" {
		t.Errorf("document names mismatch (-want +got):\n%s", diff)
	}
	if len(decoded) != len(arrays) {
		t.Errorf("output has %d keys, want %d", len(decoded), len(arrays))
	}
	last := -1
	for _, name := range wantNames {
		i := bytes.Index(data, []byte(`"`+name+`":`))
		if i < last {
			t.Errorf("key %s out of order", name)
		}
		last = i
	}

	for _, a := range arrays {
		v, ok := decoded[a.name]
		if !ok {
			t.Errorf("missing key %s", a.name)
			continue
		}
		checkShape(t, a.name, v, a.arr.Shape())

		flat := flatten(v)
		if len(flat) != a.arr.Len() {
			t.Errorf("%s: %d leaves, want %d", a.name, len(flat), a.arr.Len())
			continue
		}
		for i, leaf := range flat {
			if !leafEqual(leaf, a.arr.At(i)) {
				t.Errorf("%s[%d] = %v, want %v", a.name, i, leaf, a.arr.At(i))
			}
		}
	}
}

// checkShape verifies that v nests as lists of exactly the given lengths.
func checkShape(t *testing.T, name string, v any, shape []int) {
	t.Helper()
	if len(shape) == 0 {
		if _, isList := v.([]any); isList {
			t.Errorf("%s: 0-d value encoded as a list", name)
		}
		return
	}
	list, ok := v.([]any)
	if !ok {
		t.Errorf("%s: got %T, want list of length %d", name, v, shape[0])
		return
	}
	if len(list) != shape[0] {
		t.Errorf("%s: length %d, want %d", name, len(list), shape[0])
	}
	for _, item := range list {
		checkShape(t, name, item, shape[1:])
	}
}

func flatten(v any) []any {
	list, ok := v.([]any)
	if !ok {
		return []any{v}
	}
	var out []any
	for _, item := range list {
		out = append(out, flatten(item)...)
	}
	return out
}

func leafEqual(got, want any) bool {
	switch w := want.(type) {
	case int64:
		n, ok := got.(json.Number)
		return ok && n.String() == fmt.Sprint(w)
	case uint64:
		n, ok := got.(json.Number)
		return ok && n.String() == fmt.Sprint(w)
	case float64:
		n, ok := got.(json.Number)
		if !ok {
			return false
		}
		f, err := n.Float64()
		return err == nil && f == w && strings.ContainsAny(n.String(), ".e")
	default:
		return got == want
	}
}

func TestConvertIdempotent(t *testing.T) {
	dir := t.TempDir()
	in := writeNPZ(t, dir, "voices.npz",
		namedArray{"b", mustArray(t, []int{3}, []float32{0.1, 0.2, 0.3})},
		namedArray{"a", mustArray(t, []int{1, 2}, []int32{5, 6})},
	)
	out := filepath.Join(dir, "voices.json")

	first, console1, err := run(t, Config{InputPath: in, OutputPath: out})
	if err != nil {
		t.Fatal(err)
	}
	data1, _ := os.ReadFile(out)

	second, console2, err := run(t, Config{InputPath: in, OutputPath: out})
	if err != nil {
		t.Fatal(err)
	}
	data2, _ := os.ReadFile(out)

	if !bytes.Equal(data1, data2) {
		t.Errorf("outputs differ:\n%s\n%s", data1, data2)
	}
	if first.Digest != second.Digest {
		t.Errorf("digests differ: %+v vs %+v", first.Digest, second.Digest)
	}

	notice := fmt.Sprintf("JSON file already exists at %s. Overwriting...\n", out)
	if strings.Contains(console1, "Overwriting") {
		t.Error("first run printed the overwrite notice")
	}
	if !strings.HasPrefix(console2, notice) {
		t.Errorf("second run did not start with the notice:\n%s", console2)
	}
	if strings.TrimPrefix(console2, notice) != console1 {
		t.Errorf("runs differ beyond the notice:\n%s\n---\n%s", console1, console2)
	}
}

func TestConvertMissingInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "voices.npz")
	out := filepath.Join(dir, "voices.json")

	_, console, err := run(t, Config{InputPath: in, OutputPath: out})
	if errors.KindOf(err) != errors.KindNotFound {
		t.Fatalf("Run() error = %v, want NotFound", err)
	}
	if !strings.Contains(err.Error(), in) {
		t.Errorf("error %q does not contain the path", err)
	}
	if console != "" {
		t.Errorf("unexpected console output %q", console)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("output file was created")
	}
}

func TestConvertFailuresKeepPreviousOutput(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, in string)
		allowNaN bool
		kind     errors.Kind
	}{
		{
			name: "not a zip",
			setup: func(t *testing.T, in string) {
				if err := os.WriteFile(in, []byte("this is not an archive"), 0644); err != nil {
					t.Fatal(err)
				}
			},
			kind: errors.KindCorruptArchive,
		},
		{
			name: "truncated member",
			setup: func(t *testing.T, in string) {
				writeRawNPZ(t, in, [2]string{"x.npy", string(rawNPY("<f8", "(4,)", make([]byte, 16)))})
			},
			kind: errors.KindCorruptArchive,
		},
		{
			name: "unsupported dtype",
			setup: func(t *testing.T, in string) {
				writeRawNPZ(t, in, [2]string{"x.npy", string(rawNPY("<c16", "(1,)", make([]byte, 16)))})
			},
			kind: errors.KindCorruptArchive,
		},
		{
			name: "nan",
			setup: func(t *testing.T, in string) {
				writeNPZ(t, filepath.Dir(in), filepath.Base(in),
					namedArray{"x", mustArray(t, []int{2}, []float64{1, math.NaN()})})
			},
			kind: errors.KindSerialization,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			in := filepath.Join(dir, "voices.npz")
			out := filepath.Join(dir, "voices.json")
			tt.setup(t, in)
			if err := os.WriteFile(out, []byte(`{"previous":[]}`), 0644); err != nil {
				t.Fatal(err)
			}

			_, _, err := run(t, Config{InputPath: in, OutputPath: out, AllowNaN: tt.allowNaN})
			if errors.KindOf(err) != tt.kind {
				t.Fatalf("Run() error = %v (kind %v), want %v", err, errors.KindOf(err), tt.kind)
			}

			got, _ := os.ReadFile(out)
			if string(got) != `{"previous":[]}` {
				t.Errorf("previous output replaced with %q", got)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 2 {
				t.Errorf("unexpected files left behind: %v", entries)
			}
		})
	}
}

func TestConvertAllowNaN(t *testing.T) {
	dir := t.TempDir()
	in := writeNPZ(t, dir, "voices.npz", namedArray{"x", mustArray(t, []int{3}, []float64{math.NaN(), math.Inf(1), 1})})
	out := filepath.Join(dir, "voices.json")

	if _, _, err := run(t, Config{InputPath: in, OutputPath: out, AllowNaN: true}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	got, _ := os.ReadFile(out)
	if string(got) != `{"x":[NaN,Infinity,1.0]}` {
		t.Errorf("output = %s", got)
	}
}

func TestConvertByteOrderEquivalence(t *testing.T) {
	dir := t.TempDir()

	le := make([]byte, 8)
	be := make([]byte, 8)
	for i, v := range []int32{-7, 65536} {
		binary.LittleEndian.PutUint32(le[i*4:], uint32(v))
		binary.BigEndian.PutUint32(be[i*4:], uint32(v))
	}
	leF := make([]byte, 4)
	beF := make([]byte, 4)
	binary.LittleEndian.PutUint32(leF, math.Float32bits(1.5))
	binary.BigEndian.PutUint32(beF, math.Float32bits(1.5))

	leIn := filepath.Join(dir, "le.npz")
	beIn := filepath.Join(dir, "be.npz")
	writeRawNPZ(t, leIn,
		[2]string{"i.npy", string(rawNPY("<i4", "(2,)", le))},
		[2]string{"f.npy", string(rawNPY("<f4", "(1, 1)", leF))},
	)
	writeRawNPZ(t, beIn,
		[2]string{"i.npy", string(rawNPY(">i4", "(2,)", be))},
		[2]string{"f.npy", string(rawNPY(">f4", "(1, 1)", beF))},
	)

	leOut := filepath.Join(dir, "le.json")
	beOut := filepath.Join(dir, "be.json")
	_, leConsole, err := run(t, Config{InputPath: leIn, OutputPath: leOut})
	if err != nil {
		t.Fatal(err)
	}
	_, beConsole, err := run(t, Config{InputPath: beIn, OutputPath: beOut})
	if err != nil {
		t.Fatal(err)
	}

	a, _ := os.ReadFile(leOut)
	b, _ := os.ReadFile(beOut)
	if string(a) != `{"i":[-7,65536],"f":[[1.5]]}` {
		t.Errorf("little-endian output = %s", a)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("byte orders disagree:\n%s\n%s", a, b)
	}
	if !strings.Contains(leConsole, "dtype int32") || !strings.Contains(beConsole, "dtype >i4") {
		t.Errorf("dtype names not reported as expected:\n%s\n%s", leConsole, beConsole)
	}
}

func TestConvertScalarSummary(t *testing.T) {
	dir := t.TempDir()
	in := writeNPZ(t, dir, "voices.npz",
		namedArray{"speed", mustArray(t, nil, []float64{1.25})},
		namedArray{"ids", mustArray(t, []int{5}, []uint16{1, 2, 3, 4, 5})},
	)
	out := filepath.Join(dir, "voices.json")

	_, console, err := run(t, Config{InputPath: in, OutputPath: out})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Converted speed: shape (), dtype float64\n",
		"Converted ids: shape (5,), dtype uint16\n",
		"  speed: float64\n",
		"  ids: 5 elements\n",
	} {
		if !strings.Contains(console, want) {
			t.Errorf("console missing %q:\n%s", want, console)
		}
	}
	got, _ := os.ReadFile(out)
	if string(got) != `{"speed":1.25,"ids":[1,2,3,4,5]}` {
		t.Errorf("output = %s", got)
	}
}

func TestConvertCompressedInput(t *testing.T) {
	dir := t.TempDir()
	plain := writeNPZ(t, dir, "voices.npz", namedArray{"w", mustArray(t, []int{2}, []int8{-1, 1})})
	xzPath := plain + ".xz"
	writeXZ(t, plain, xzPath)
	out := filepath.Join(dir, "voices.json")

	res, _, err := run(t, Config{InputPath: xzPath, OutputPath: out})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Compression != archive.CompressionXZ {
		t.Errorf("Compression = %s, want xz", res.Compression)
	}
	got, _ := os.ReadFile(out)
	if string(got) != `{"w":[-1,1]}` {
		t.Errorf("output = %s", got)
	}
}

func writeXZ(t *testing.T, src, dst string) {
	t.Helper()
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestConvertInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "voices.npz")

	tests := []struct {
		name      string
		cfg       Config
		wantField string
		wantValue string
	}{
		{"empty input", Config{OutputPath: filepath.Join(dir, "out.json")}, "input", ""},
		{"empty output", Config{InputPath: in}, "output", ""},
		{"same path", Config{InputPath: in, OutputPath: in}, "output", in},
		{"null byte", Config{InputPath: in, OutputPath: "out\x00.json"}, "output", "out\x00.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.cfg)
			if errors.KindOf(err) != errors.KindInvalidConfig {
				t.Errorf("Run() error = %v, want InvalidConfig", err)
			}
			var v *errors.ValidationError
			if !errors.As(err, &v) {
				t.Fatalf("Run() error = %T, want *ValidationError", err)
			}
			if v.Field != tt.wantField || v.Value != tt.wantValue || v.Err == nil {
				t.Errorf("ValidationError = %+v, want field %q value %q with a cause", v, tt.wantField, tt.wantValue)
			}
		})
	}
}

func TestConvertUnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	in := writeNPZ(t, dir, "voices.npz", namedArray{"w", mustArray(t, []int{1}, []int64{1})})

	_, _, err := run(t, Config{InputPath: in, OutputPath: filepath.Join(dir, "missing", "voices.json")})
	if errors.KindOf(err) != errors.KindIO {
		t.Errorf("Run() error = %v, want IOFailure", err)
	}
}
