package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeNewlines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "plain", input: "a\nb", want: "a\nb"},
		{name: "crlf", input: "a\r\nb", want: "a\nb"},
		{name: "carriage run collapses before crlf folding", input: "a\r\r\nb", want: "a\nb"},
		{name: "long carriage run", input: "a\r\r\r\r\nb", want: "a\nb"},
		{name: "lone carriage return kept", input: "a\rb", want: "a\rb"},
		{name: "carriage run without newline", input: "a\r\r\rb", want: "a\rb"},
		{name: "mixed", input: "x\r\ny\r\r\nz\n", want: "x\ny\nz\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeNewlines(tt.input))
		})
	}
}

func TestChannelBufferEmitsCompleteLines(t *testing.T) {
	var emitted []string
	b := NewChannelBuffer(nil)
	b.OutputCallback = func(lines string) { emitted = append(emitted, lines) }

	b.Append([]byte("first line\nsecond "), true)
	b.Append([]byte("half"), true)
	b.Append([]byte(" done\r\nthird"), true)

	assert.Equal(t, []string{"first line\n", "second half done\n"}, emitted)
	assert.Equal(t, []byte("first line\nsecond half done\r\nthird"), b.Bytes())
}

func TestChannelBufferNoCallbackWithoutEmit(t *testing.T) {
	called := false
	b := NewChannelBuffer(nil)
	b.OutputCallback = func(string) { called = true }

	b.Append([]byte("line\n"), false)
	assert.False(t, called)
	assert.Equal(t, []byte("line\n"), b.Bytes())
}

// A multi-byte sequence split across two appends decodes identically to a
// single append of the concatenated bytes.
func TestChannelBufferSplitMultiByteSequence(t *testing.T) {
	input := []byte("h\xc3\xa9llo\n") // héllo

	var whole []string
	b1 := NewChannelBuffer(nil)
	b1.OutputCallback = func(lines string) { whole = append(whole, lines) }
	b1.Append(input, true)

	var split []string
	b2 := NewChannelBuffer(nil)
	b2.OutputCallback = func(lines string) { split = append(split, lines) }
	b2.Append(input[:2], true) // ends in the middle of é
	b2.Append(input[2:], true)

	assert.Equal(t, []string{"héllo\n"}, whole)
	assert.Equal(t, whole, split)
}

func TestChannelBufferCarriageReturnEmits(t *testing.T) {
	var emitted []string
	b := NewChannelBuffer(nil)
	b.OutputCallback = func(lines string) { emitted = append(emitted, lines) }

	// Progress-style output terminated by \r counts as a completed line.
	b.Append([]byte("50%\r"), true)
	assert.Equal(t, []string{"50%\r"}, emitted)
}
