package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/escape"
	"github.com/speakeasy-api/shapeflow/shapes"
)

var color = isatty.IsTerminal(os.Stdout.Fd())

func paint(code, s string) string {
	if !color {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

func main() {
	ops := flag.String("ops", "", "comma-separated operators to dump (default all)")
	left := flag.String("left", "", "only rows whose left shape has this name")
	all := flag.Bool("all", false, "include unsupported combinations")
	flag.Parse()

	selected := shapeflow.Operators()
	if *ops != "" {
		selected = selected[:0]
		for _, name := range strings.Split(*ops, ",") {
			op, err := shapeflow.ParseOperator(strings.TrimSpace(name))
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			selected = append(selected, op)
		}
	}

	for _, op := range selected {
		fmt.Printf("\n=== %s (%s) ===\n", op, op.Symbol())
		var rows [][]string
		for _, l := range shapes.Universe() {
			if *left != "" && l.Name() != *left {
				continue
			}
			if op.IsUnary() {
				if row, ok := cell(op, l, nil, *all); ok {
					rows = append(rows, row)
				}
				continue
			}
			for _, r := range shapes.Universe() {
				if row, ok := cell(op, l, r, *all); ok {
					rows = append(rows, row)
				}
			}
		}
		printRows(rows)
	}

	defects := shapes.TableDefects()
	if len(defects) == 0 {
		return
	}
	fmt.Printf("\n=== %d table defects ===\n", len(defects))
	for _, d := range defects {
		fmt.Println(paint("31", d.String()))
	}
	os.Exit(1)
}

func cell(op shapeflow.Operator, l, r *shapes.TypeShape, all bool) ([]string, bool) {
	result, esc := shapes.Lookup(op, l, r)
	if esc.IsUnsupported() && !all {
		return nil, false
	}
	return []string{l.Name(), name(r), name(result), describe(esc)}, true
}

func name(s *shapes.TypeShape) string {
	if s == nil {
		return ""
	}
	return s.Name()
}

func describe(esc *escape.Descriptor) string {
	switch {
	case esc.IsUnsupported():
		return paint("31", esc.String())
	case esc.IsEscaping():
		return paint("33", esc.String())
	}
	return esc.String()
}

// printRows aligns columns by display width; escape codes are not counted.
func printRows(rows [][]string) {
	if len(rows) == 0 {
		return
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, c := range row[:len(row)-1] {
			widths[i] = max(widths[i], runewidth.StringWidth(c))
		}
	}
	for _, row := range rows {
		var b strings.Builder
		for i, c := range row[:len(row)-1] {
			b.WriteString(runewidth.FillRight(c, widths[i]))
			b.WriteString("  ")
		}
		b.WriteString(row[len(row)-1])
		fmt.Println(strings.TrimRight(b.String(), " "))
	}
}
