// Package convert turns an NPZ archive into a compact JSON document of
// nested lists, one key per array, and reports what it did on the console.
package convert

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/FocuswithJustin/npzconv/core/cas"
	"github.com/FocuswithJustin/npzconv/core/errors"
	"github.com/FocuswithJustin/npzconv/core/npy"
	"github.com/FocuswithJustin/npzconv/core/npz"
	"github.com/FocuswithJustin/npzconv/internal/archive"
	"github.com/FocuswithJustin/npzconv/internal/fileutil"
	"github.com/FocuswithJustin/npzconv/internal/logging"
	"github.com/FocuswithJustin/npzconv/internal/printer"
	"github.com/FocuswithJustin/npzconv/internal/validation"
)

// OutputPerm is the mode of the written JSON file.
const OutputPerm = 0644

// Config names the files of one conversion.
type Config struct {
	InputPath  string
	OutputPath string
	// AllowNaN permits NaN and ±Inf in the output (see EncodeOptions).
	AllowNaN bool
}

// Result is the outcome of a successful conversion.
type Result struct {
	Document    *Document
	InputBytes  int64
	OutputBytes int64
	Digest      cas.Digest
	Compression archive.Compression
}

// Option configures a Converter.
type Option func(*Converter)

// WithOutput sends the console report to w.
func WithOutput(w io.Writer) Option {
	return func(c *Converter) {
		c.printer = printer.New(w, w)
	}
}

// WithPrinter sends the console report through p.
func WithPrinter(p *printer.Printer) Option {
	return func(c *Converter) {
		c.printer = p
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		c.logger = l
	}
}

// Converter runs conversions.
type Converter struct {
	printer *printer.Printer
	logger  *slog.Logger
}

// New returns a Converter that reports to stdout and logs to the default
// logger unless configured otherwise.
func New(opts ...Option) *Converter {
	c := &Converter{}
	for _, opt := range opts {
		opt(c)
	}
	if c.printer == nil {
		c.printer = printer.New(os.Stdout, os.Stderr)
	}
	if c.logger == nil {
		c.logger = logging.GetLogger()
	}
	return c
}

// Convert converts cfg.InputPath to cfg.OutputPath and returns the document.
func Convert(cfg Config, opts ...Option) (*Document, error) {
	res, err := New(opts...).Run(cfg)
	if err != nil {
		return nil, err
	}
	return res.Document, nil
}

// Run performs one conversion. The output file is replaced only once the
// whole document has been encoded; on failure any previous output is left
// as it was.
func (c *Converter) Run(cfg Config) (*Result, error) {
	if err := checkConfig(cfg); err != nil {
		return nil, err
	}

	in, err := os.Stat(cfg.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.NotFoundError{Resource: "input archive", ID: cfg.InputPath, Err: err}
		}
		return nil, errors.NewIO("stat", cfg.InputPath, err)
	}
	if _, err := os.Stat(cfg.OutputPath); err == nil {
		c.printer.Warning("JSON file already exists at %s. Overwriting...", cfg.OutputPath)
	}

	doc, compression, err := c.load(cfg.InputPath)
	if err != nil {
		return nil, err
	}

	data, err := Encode(doc, EncodeOptions{AllowNaN: cfg.AllowNaN})
	if err != nil {
		return nil, err
	}

	if err := fileutil.WriteFileAtomic(cfg.OutputPath, data, OutputPerm); err != nil {
		return nil, errors.NewIO("write", cfg.OutputPath, err)
	}

	res := &Result{
		Document:    doc,
		InputBytes:  in.Size(),
		OutputBytes: int64(len(data)),
		Digest:      cas.Sum(data),
		Compression: compression,
	}
	logging.Conversion(c.logger, cfg.InputPath, cfg.OutputPath, doc.Len(), res.OutputBytes, res.Digest.BLAKE3,
		"compression", string(compression))

	c.printer.Success("Successfully converted %s to %s", cfg.InputPath, cfg.OutputPath)
	c.printer.Printf("NPZ size: %.1f KB\n", float64(res.InputBytes)/1024)
	c.printer.Printf("JSON size: %.1f KB\n", float64(res.OutputBytes)/1024)
	c.summary(doc)
	return res, nil
}

// load decodes every entry of the archive at path, in archive order.
func (c *Converter) load(path string) (*Document, archive.Compression, error) {
	arc, err := npz.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer arc.Close()

	c.logger.Debug("archive opened", "path", path, "entries", arc.Len(), "compression", string(arc.Compression()))

	doc := NewDocument()
	for _, name := range arc.Names() {
		arr, err := arc.Load(name)
		if err != nil {
			return nil, "", err
		}
		shape := arr.Shape()
		if err := doc.Add(Entry{Name: name, Shape: shape, DType: arr.DType(), Value: arr.ToList()}); err != nil {
			return nil, "", errors.NewCorrupt(path, name, err.Error())
		}
		c.printer.Step("Converted %s: shape %s, dtype %s", name, npy.FormatShape(shape), arr.DType())
		c.logger.Debug("entry converted", "entry", name, "shape", shape, "dtype", arr.DType().Descr())
	}
	return doc, arc.Compression(), nil
}

// summary prints the top-level length of each list value, or the type of a
// scalar value.
func (c *Converter) summary(doc *Document) {
	c.printer.Println()
	c.printer.Printf("Voice data summary:\n")
	for _, e := range doc.entries {
		if list, ok := e.Value.([]any); ok {
			c.printer.Printf("  %s: %d elements\n", e.Name, len(list))
		} else {
			c.printer.Printf("  %s: %T\n", e.Name, e.Value)
		}
	}
}

func checkConfig(cfg Config) error {
	for _, f := range []struct{ field, path string }{
		{"input", cfg.InputPath},
		{"output", cfg.OutputPath},
	} {
		if err := validation.ValidatePath(f.path); err != nil {
			return invalid(f.field, f.path, err)
		}
	}
	if err := validation.ValidateOutputPath(cfg.InputPath, cfg.OutputPath); err != nil {
		return invalid("output", cfg.OutputPath, err)
	}
	return nil
}

func invalid(field, value string, err error) error {
	v := errors.NewValidation(field, err.Error())
	v.Value = value
	v.Err = err
	return v
}

// String describes the result in one line.
func (r *Result) String() string {
	return fmt.Sprintf("%d entries, %d -> %d bytes, blake3 %s", r.Document.Len(), r.InputBytes, r.OutputBytes, r.Digest.BLAKE3)
}
