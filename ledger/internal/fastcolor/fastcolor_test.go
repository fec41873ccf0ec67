package fastcolor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteStringFixed(t *testing.T) {
	defer func(old bool) { Enabled = old }(Enabled)
	Enabled = false

	tests := []struct {
		s     string
		width int
		right bool
		want  string
	}{
		{"abc", 5, false, "abc  "},
		{"abc", 5, true, "  abc"},
		{"abcdef", 4, false, "abcd"},
		{"午餐", 3, true, " 午餐"},
		{"", 2, false, "  "},
	}
	for _, tt := range tests {
		var sb strings.Builder
		FgBlue.WriteStringFixed(&sb, tt.s, tt.width, tt.right)
		assert.Equal(t, tt.want, sb.String())
	}
}

func TestWriteStringFixedColored(t *testing.T) {
	defer func(old bool) { Enabled = old }(Enabled)
	Enabled = true

	var sb strings.Builder
	Hex("#ff0000").WriteStringFixed(&sb, "x", 2, true)
	assert.Equal(t, " \x1b[38;2;255;0;0mx\x1b[0m", sb.String())

	sb.Reset()
	Reset.WriteStringFixed(&sb, "x", 2, false)
	assert.Equal(t, "x ", sb.String())
}

func TestHexInvalid(t *testing.T) {
	assert.Equal(t, Reset, Hex("nope"))
}
