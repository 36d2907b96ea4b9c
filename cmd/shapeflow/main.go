package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"
	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/pkg/playground"
	"github.com/speakeasy-api/shapeflow/pkg/pyfmt"
)

const appName = "shapeflow"

var colorErrors = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

func red(s string) string {
	if !colorErrors {
		return s
	}
	return "\x1b[31m" + s + "\x1b[0m"
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  %s optimize [-config file] [-format yaml|openapi|source] [-strict] [file ...]
  %s doc [-config file] <openapi.yaml>      Optimize functions attached to schemas
  %s fmt [-indent n] [file ...]             Print functions as source

Files default to standard input; "-" names it explicitly.
`, appName, appName, appName)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cmd := os.Args[1]; cmd {
	case "optimize":
		os.Exit(cmdOptimize(ctx, os.Args[2:]))
	case "doc":
		os.Exit(cmdDoc(ctx, os.Args[2:]))
	case "fmt":
		os.Exit(cmdFmt(os.Args[2:]))
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", appName, cmd)
		usage()
		os.Exit(2)
	}
}

// readInputs returns the contents of paths, or of standard input when there
// are none. A terminal on standard input is not read.
func readInputs(paths []string) (map[string]string, []string, error) {
	if len(paths) == 0 {
		if isatty.IsTerminal(os.Stdin.Fd()) {
			return nil, nil, fmt.Errorf("no input files and standard input is a terminal")
		}
		paths = []string{"-"}
	}
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		var data []byte
		var err error
		if p == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(p)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("cannot read %s: %w", p, err)
		}
		out[p] = string(data)
	}
	return out, paths, nil
}

func cmdOptimize(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("optimize", flag.ContinueOnError)
	config := fs.String("config", "", "YAML options file")
	format := fs.String("format", string(playground.FormatYAML), "output format: yaml, openapi or source")
	strict := fs.Bool("strict", false, "fail when the optimizer loses precision")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	f, err := playground.ParseFormat(*format)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return 2
	}
	opts, err := shapeflow.LoadOptions(*config)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return 1
	}
	inputs, order, err := readInputs(fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", appName, red(err.Error()))
		return 2
	}

	status := 0
	for i, path := range order {
		out, err := playground.Optimize(ctx, inputs[path], f, opts, *strict)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", path, red(err.Error()))
			status = 1
			continue
		}
		switch {
		case i == 0:
		case f == playground.FormatSource:
			fmt.Println()
		default:
			fmt.Println("---")
		}
		fmt.Print(out)
	}
	return status
}

func cmdDoc(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("doc", flag.ContinueOnError)
	config := fs.String("config", "", "YAML options file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s doc [-config file] <openapi.yaml>\n", appName)
		return 2
	}

	opts, err := shapeflow.LoadOptions(*config)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return 1
	}
	inputs, order, err := readInputs(fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", appName, red(err.Error()))
		return 2
	}
	out, err := playground.OptimizeDocument(ctx, inputs[order[0]], opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return 1
	}
	fmt.Print(out)
	return 0
}

func cmdFmt(args []string) int {
	fs := flag.NewFlagSet("fmt", flag.ContinueOnError)
	indent := fs.Int("indent", pyfmt.DefaultConfig().Indent, "spaces per block level")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	inputs, order, err := readInputs(fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", appName, red(err.Error()))
		return 2
	}

	cfg := pyfmt.DefaultConfig()
	cfg.Indent = *indent
	status := 0
	for i, path := range order {
		fn, err := playground.ParseSource(inputs[path])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", path, red(err.Error()))
			status = 1
			continue
		}
		out, err := pyfmt.Format(fn, cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			return 2
		}
		if i > 0 {
			fmt.Println()
		}
		fmt.Print(out)
	}
	return status
}
