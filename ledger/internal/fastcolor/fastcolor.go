// Package fastcolor writes fixed-width, optionally colored, terminal cells.
package fastcolor

import (
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mattn/go-isatty"
)

// Color is an ANSI escape prefix. The zero value writes plain text.
type Color string

const reset = "\x1b[0m"

var (
	Reset  Color = ""
	Bold   Color = "\x1b[1m"
	FgRed        = Hex("#d7005f")
	FgBlue       = Hex("#5f87d7")
	FgGreen      = Hex("#5faf5f")
)

// Enabled is true when stdout is a terminal and NO_COLOR is unset.
var Enabled = detect()

func detect() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Hex returns a 24-bit foreground color. Invalid input yields Reset.
func Hex(s string) Color {
	c, err := colorful.Hex(s)
	if err != nil {
		return Reset
	}
	r, g, b := c.RGB255()
	return Color("\x1b[38;2;" + strconv.Itoa(int(r)) + ";" + strconv.Itoa(int(g)) + ";" + strconv.Itoa(int(b)) + "m")
}

// WriteStringFixed writes s padded or truncated to width runes.
func (c Color) WriteStringFixed(w io.StringWriter, s string, width int, alignRight bool) {
	n := utf8.RuneCountInString(s)
	if n > width {
		s = string([]rune(s)[:width])
		n = width
	}
	pad := strings.Repeat(" ", width-n)
	colored := Enabled && c != Reset
	if alignRight {
		w.WriteString(pad)
	}
	if colored {
		w.WriteString(string(c))
	}
	w.WriteString(s)
	if colored {
		w.WriteString(reset)
	}
	if !alignRight {
		w.WriteString(pad)
	}
}
