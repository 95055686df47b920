// Command npzconv converts NumPy .npz archives into compact JSON documents
// that a browser can load directly.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/npzconv/core/cas"
	"github.com/FocuswithJustin/npzconv/core/convert"
	"github.com/FocuswithJustin/npzconv/core/errors"
	"github.com/FocuswithJustin/npzconv/core/npy"
	"github.com/FocuswithJustin/npzconv/core/npz"
	"github.com/FocuswithJustin/npzconv/core/sqlite"
	"github.com/FocuswithJustin/npzconv/internal/config"
	"github.com/FocuswithJustin/npzconv/internal/logging"
	"github.com/FocuswithJustin/npzconv/internal/printer"
)

const (
	version          = "0.1.0"
	defaultFetchHint = "npm run download-tts"
)

// CLI defines the command-line interface.
type CLI struct {
	Config    kong.ConfigFlag `short:"c" help:"Read flag values from a JSON or YAML file."`
	LogLevel  string          `name:"log-level" help:"Log level (debug, info, warn, error)." default:"warn" enum:"debug,info,warn,error" env:"NPZCONV_LOG_LEVEL"`
	LogFormat string          `name:"log-format" help:"Log format (text, json)." default:"text" enum:"text,json" env:"NPZCONV_LOG_FORMAT"`

	Convert ConvertCmd `cmd:"" default:"withargs" help:"Convert an NPZ archive to JSON"`
	Inspect InspectCmd `cmd:"" help:"List the arrays of an NPZ archive"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// App carries what every command needs once flags are parsed.
type App struct {
	Printer *printer.Printer
	Logger  *slog.Logger
	RunID   string
}

// reportedError is an error that has already been shown to the user.
type reportedError struct {
	error
}

// ConvertCmd converts one archive.
type ConvertCmd struct {
	Input     string `short:"i" help:"NPZ archive to read." required:"" type:"path" env:"NPZCONV_INPUT"`
	Output    string `short:"o" help:"JSON file to write." required:"" type:"path" env:"NPZCONV_OUTPUT"`
	AllowNaN  bool   `name:"allow-nan" help:"Write NaN and Infinity literals instead of failing."`
	SQLite    string `name:"sqlite" help:"Also record the arrays in this SQLite database." type:"path"`
	FetchHint string `name:"fetch-hint" help:"Command suggested when the input is missing." default:"${fetch_hint}"`
}

func (c *ConvertCmd) Run(app *App) error {
	res, err := convert.New(convert.WithPrinter(app.Printer), convert.WithLogger(app.Logger)).Run(convert.Config{
		InputPath:  c.Input,
		OutputPath: c.Output,
		AllowNaN:   c.AllowNaN,
	})
	if err != nil {
		logging.ConversionError(app.Logger, c.Input, errors.KindOf(err), err)
		var nf *errors.NotFoundError
		if errors.As(err, &nf) && nf.ID == c.Input {
			app.Printer.Error("Error: %s not found. Please run '%s' first.", c.Input, c.FetchHint)
		} else {
			app.Printer.Error("Error converting NPZ to JSON: %v", err)
		}
		return reportedError{err}
	}
	app.Logger.Debug("conversion finished", "result", res.String())

	if c.SQLite == "" {
		return nil
	}
	runID, err := sqlite.Export(c.SQLite, res.Document, sqlite.Meta{
		RunID:    app.RunID,
		Source:   c.Input,
		Output:   c.Output,
		Digest:   res.Digest.BLAKE3,
		AllowNaN: c.AllowNaN,
	})
	if err != nil {
		logging.ConversionError(app.Logger, c.Input, errors.KindOf(err), err, "sqlite", c.SQLite)
		app.Printer.Error("Error exporting to SQLite: %v", err)
		return reportedError{err}
	}
	app.Logger.Info("sqlite export", "db", c.SQLite, "run", runID, "driver", sqlite.DriverType())
	return nil
}

// InspectCmd lists the members of an archive without converting it.
type InspectCmd struct {
	Input  string `short:"i" help:"NPZ archive to read." required:"" type:"path" env:"NPZCONV_INPUT"`
	Digest bool   `help:"Also print the SHA-256 and BLAKE3 digests of the file."`
}

func (c *InspectCmd) Run(app *App) error {
	arc, err := npz.Open(c.Input)
	if err != nil {
		return err
	}
	defer arc.Close()

	out := app.Printer.Out()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSHAPE\tDTYPE\tMETHOD\tBYTES")
	for _, name := range arc.Names() {
		m, err := arc.Stat(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			m.Name, npy.FormatShape(m.Header.Shape), m.Header.DType, m.Method, m.UncompressedSize)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	app.Printer.Printf("%d arrays, wrapper: %s\n", arc.Len(), arc.Compression())

	if c.Digest {
		d, err := cas.SumFile(c.Input)
		if err != nil {
			return err
		}
		app.Printer.Printf("sha256: %s\nblake3: %s\n", d.SHA256, d.BLAKE3)
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(app *App) error {
	app.Printer.Printf("npzconv version %s (sqlite driver: %s)\n", version, sqlite.GetInfo().DriverType)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, executes the selected command and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	var cli CLI
	exitCode := -1
	parser, err := kong.New(&cli,
		kong.Name("npzconv"),
		kong.Description("Convert NumPy .npz archives to compact JSON."),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) {
			if exitCode < 0 {
				exitCode = code
			}
		}),
		kong.Configuration(config.Loader),
		kong.Vars{"fetch_hint": defaultFetchHint},
	)
	if err != nil {
		fmt.Fprintf(stderr, "npzconv: %v\n", err)
		return 1
	}

	kctx, err := parser.Parse(args)
	if exitCode >= 0 {
		return exitCode
	}
	if err != nil {
		fmt.Fprintf(stderr, "npzconv: error: %v\n", err)
		fmt.Fprintln(stderr, "Run \"npzconv --help\" for usage.")
		return 1
	}

	level, err := logging.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "npzconv: error: %v\n", err)
		return 1
	}
	format, err := logging.ParseFormat(cli.LogFormat)
	if err != nil {
		fmt.Fprintf(stderr, "npzconv: error: %v\n", err)
		return 1
	}
	logging.InitLogger(level, format, stderr)

	runID := logging.NewRunID()
	ctx := logging.WithRunID(context.Background(), runID)
	app := &App{
		Printer: printer.New(stdout, stderr),
		Logger:  logging.LoggerFromContext(ctx).With("command", kctx.Command()),
		RunID:   runID,
	}

	if err := kctx.Run(app); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			app.Printer.Error("npzconv: error: %v", err)
		}
		return 1
	}
	return 0
}
