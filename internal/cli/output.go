package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"frc-research/internal/models"
	"frc-research/pkg/utils"
)

// style is an ANSI SGR sequence.
type style string

const (
	styleReset  style = "\033[0m"
	styleRed    style = "\033[31m"
	styleGreen  style = "\033[32m"
	styleYellow style = "\033[33m"
	styleCyan   style = "\033[36m"
	styleBold   style = "\033[1m"
	styleDim    style = "\033[2m"
)

var ansiPattern = regexp.MustCompile("\x1b\\[[0-9;]*m")

// Output writes command results either as indented JSON (--json) or as text.
// Text is colored only when it goes to an interactive stdout.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates an Output for cmd's writer and flags.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	w := cmd.OutOrStdout()
	return &Output{
		writer:       w,
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && w == os.Stdout && isTerminal(),
	}
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// IsJSON reports whether --json was given.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON writes data as indented JSON.
func (o *Output) JSON(data interface{}) error {
	enc := json.NewEncoder(o.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

func (o *Output) Success(format string, args ...interface{}) { o.line(styleGreen, format, args...) }
func (o *Output) Error(format string, args ...interface{})   { o.line(styleRed, format, args...) }
func (o *Output) Warning(format string, args ...interface{}) { o.line(styleYellow, format, args...) }
func (o *Output) Info(format string, args ...interface{})    { o.line(styleCyan, format, args...) }
func (o *Output) Bold(format string, args ...interface{})    { o.line(styleBold, format, args...) }
func (o *Output) Dim(format string, args ...interface{})     { o.line(styleDim, format, args...) }

func (o *Output) line(st style, format string, args ...interface{}) {
	fmt.Fprintln(o.writer, o.paint(st, fmt.Sprintf(format, args...)))
}

func (o *Output) paint(st style, text string) string {
	if !o.colorEnabled {
		return text
	}
	return string(st) + text + string(styleReset)
}

func (o *Output) Green(text string) string   { return o.paint(styleGreen, text) }
func (o *Output) Red(text string) string     { return o.paint(styleRed, text) }
func (o *Output) DimText(text string) string { return o.paint(styleDim, text) }

// Change formats a percentage change, green when up and red when down. A nil
// change is not computable and prints as n/a.
func (o *Output) Change(pct *float64) string {
	if pct == nil {
		return o.DimText(utils.NotComputable)
	}
	text := utils.FormatPercentPtr(pct)
	switch {
	case *pct > 0:
		return o.Green(text)
	case *pct < 0:
		return o.Red(text)
	}
	return text
}

// Section formats a section state badge.
func (o *Output) Section(state models.SectionState) string {
	switch state {
	case models.SectionOK:
		return o.Green("● ok")
	case models.SectionEmpty:
		return o.DimText("○ no data")
	case models.SectionUnavailable:
		return o.paint(styleYellow, "⚠ unavailable")
	}
	return string(state)
}

// visibleWidth is the rune width of s without color sequences.
func visibleWidth(s string) int {
	return len([]rune(ansiPattern.ReplaceAllString(s, "")))
}

func padRight(s string, width int) string {
	if n := width - visibleWidth(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

// Table collects rows and prints them as aligned columns.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

func NewTable(output *Output, headers ...string) *Table {
	return &Table{headers: headers, output: output}
}

func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render prints the header, a rule and every row. Cells beyond the header count
// are dropped.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}
	widths := t.widths()

	header := make([]string, len(t.headers))
	rule := make([]string, len(t.headers))
	for i, h := range t.headers {
		header[i] = t.output.paint(styleBold, padRight(h, widths[i]))
		rule[i] = strings.Repeat("─", widths[i])
	}
	t.printCells(header)
	t.output.Println(t.output.paint(styleDim, strings.Join(rule, "──")))

	for _, row := range t.rows {
		cells := make([]string, 0, len(widths))
		for i := 0; i < len(row) && i < len(widths); i++ {
			cells = append(cells, padRight(row[i], widths[i]))
		}
		t.printCells(cells)
	}
}

func (t *Table) widths() []int {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visibleWidth(h)
	}
	for _, row := range t.rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if n := visibleWidth(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}
	return widths
}

func (t *Table) printCells(cells []string) {
	t.output.Println(strings.TrimRight(strings.Join(cells, "  "), " "))
}

// frame holds the border glyphs of a Box.
type frame struct {
	top, middle, bottom [2]string
	horizontal, side    string
}

var (
	plainFrame = frame{
		top: [2]string{"+", "+"}, middle: [2]string{"+", "+"}, bottom: [2]string{"+", "+"},
		horizontal: "-", side: "|",
	}
	unicodeFrame = frame{
		top: [2]string{"┌", "┐"}, middle: [2]string{"├", "┤"}, bottom: [2]string{"└", "┘"},
		horizontal: "─", side: "│",
	}
)

// Box prints content inside a titled border. Terminals get box-drawing glyphs,
// plain writers get ASCII.
func (o *Output) Box(title string, content []string) {
	inner := visibleWidth(title)
	for _, line := range content {
		if n := visibleWidth(line); n > inner {
			inner = n
		}
	}

	f := plainFrame
	if o.colorEnabled {
		f = unicodeFrame
	}
	rule := strings.Repeat(f.horizontal, inner+2)
	side := o.paint(styleDim, f.side)
	edge := func(corners [2]string) {
		o.Println(o.paint(styleDim, corners[0]+rule+corners[1]))
	}
	row := func(text string) {
		o.Printf("%s %s %s\n", side, padRight(text, inner), side)
	}

	edge(f.top)
	row(o.paint(styleBold, title))
	edge(f.middle)
	for _, line := range content {
		row(line)
	}
	edge(f.bottom)
}
