// Package cstable renders the human output of sentinelctl.
package cstable

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	isatty "github.com/mattn/go-isatty"
)

const maxColumnWidth = 60

// ShouldColorize resolves "auto" by looking at stdout.
func ShouldColorize(wantColor string) bool {
	switch wantColor {
	case "yes":
		return true
	case "no":
		return false
	default:
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}
}

type Table struct {
	writer table.Writer
	output io.Writer
	fancy  bool
	align  []text.Align
}

func New(out io.Writer, wantColor string) *Table {
	fancy := ShouldColorize(wantColor)

	style := table.Style{
		Box:     table.StyleBoxDefault,
		Format:  table.FormatOptions{},
		HTML:    table.DefaultHTMLOptions,
		Options: table.OptionsDefault,
		Title:   table.TitleOptionsDefault,
	}

	if fancy {
		style.Box = table.StyleBoxRounded
		style.Color = table.ColorOptions{
			Header:    text.Colors{text.Italic},
			Border:    text.Colors{text.FgHiBlack},
			Separator: text.Colors{text.FgHiBlack},
		}
	}

	w := table.NewWriter()
	w.SetStyle(style)

	return &Table{
		writer: w,
		output: out,
		fancy:  fancy,
	}
}

// NewLight has no outer border and no column separators.
func NewLight(out io.Writer, wantColor string) *Table {
	t := New(out, wantColor)

	s := t.writer.Style()
	s.Box.Left = ""
	s.Box.LeftSeparator = ""
	s.Box.TopLeft = ""
	s.Box.BottomLeft = ""
	s.Box.Right = ""
	s.Box.RightSeparator = ""
	s.Box.TopRight = ""
	s.Box.BottomRight = ""
	s.Options.SeparateRows = false
	s.Options.SeparateFooter = false
	s.Options.SeparateHeader = true
	s.Options.SeparateColumns = false

	return t
}

func (t *Table) SetTitle(title string) {
	t.writer.SetTitle(title)
}

func (t *Table) SetHeaders(headers ...string) {
	row := make(table.Row, len(headers))
	t.align = make([]text.Align, len(headers))

	for i, h := range headers {
		row[i] = h
		t.align[i] = text.AlignLeft
	}

	t.writer.AppendHeader(row)
}

// SetAlignment overrides the alignment of the first len(align) columns.
func (t *Table) SetAlignment(align ...text.Align) {
	copy(t.align, align)
}

func (t *Table) AddRow(cells ...string) {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}

	t.writer.AppendRow(row)
}

func (t *Table) Render() {
	configs := make([]table.ColumnConfig, 0, len(t.align))

	for i, a := range t.align {
		configs = append(configs, table.ColumnConfig{
			Number:           i + 1,
			AlignHeader:      text.AlignCenter,
			Align:            a,
			WidthMax:         maxColumnWidth,
			WidthMaxEnforcer: text.WrapSoft,
		})
	}

	t.writer.SetColumnConfigs(configs)

	fmt.Fprintln(t.output, t.writer.Render())
}

var severityColors = map[string]*color.Color{
	"high":     color.New(color.FgRed, color.Bold),
	"critical": color.New(color.FgRed, color.Bold),
	"medium":   color.New(color.FgYellow),
	"low":      color.New(color.FgGreen),
}

// Level paints a severity or threat level when the table is colorized.
func (t *Table) Level(level string) string {
	c, ok := severityColors[level]
	if !t.fancy || !ok {
		return level
	}

	// fatih/color checks the terminal on its own, force it since the caller asked
	c.EnableColor()

	return c.Sprint(level)
}
