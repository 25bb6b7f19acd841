package proc

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ChannelBuffer accumulates the raw bytes of one output channel (stdout or
// stderr) and, on request, decodes the newly arrived portion into complete
// lines for an output callback. The decoder is stateful so a multi-byte
// sequence split across two reads decodes the same as a single read.
type ChannelBuffer struct {
	codec                encoding.Encoding
	decoder              *encoding.Decoder
	rawData              []byte
	rawDataPos           int
	incompleteLineBuffer string

	// OutputCallback receives batches of completed, normalized lines when
	// Append is called with emitSignals set.
	OutputCallback func(lines string)
}

// NewChannelBuffer creates a buffer decoding with codec, or UTF-8 when codec
// is nil.
func NewChannelBuffer(codec encoding.Encoding) *ChannelBuffer {
	b := &ChannelBuffer{}
	b.clearForRun(codec)
	return b
}

func (b *ChannelBuffer) clearForRun(codec encoding.Encoding) {
	if codec == nil {
		codec = unicode.UTF8
	}
	b.codec = codec
	b.decoder = codec.NewDecoder()
	b.rawData = nil
	b.rawDataPos = 0
	b.incompleteLineBuffer = ""
}

// Bytes returns the raw accumulated data.
func (b *ChannelBuffer) Bytes() []byte { return b.rawData }

// Append adds data to the raw accumulator. With emitSignals set, any
// completed lines are decoded and handed to the output callback.
func (b *ChannelBuffer) Append(data []byte, emitSignals bool) {
	if len(data) == 0 {
		return
	}
	b.rawData = append(b.rawData, data...)
	if !emitSignals {
		return
	}
	if b.OutputCallback != nil {
		if lines := b.linesRead(); lines != "" {
			b.OutputCallback(lines)
		}
	}
}

// linesRead decodes the bytes appended since the last call, moves complete
// lines out of the pending tail and returns them normalized.
func (b *ChannelBuffer) linesRead() string {
	decoded, consumed := decodeAvailable(b.decoder, b.rawData[b.rawDataPos:])
	b.rawDataPos += consumed
	b.incompleteLineBuffer += decoded

	lastLineIndex := strings.LastIndexAny(b.incompleteLineBuffer, "\n\r")
	if lastLineIndex == -1 {
		return ""
	}

	lines := NormalizeNewlines(b.incompleteLineBuffer[:lastLineIndex+1])
	b.incompleteLineBuffer = b.incompleteLineBuffer[lastLineIndex+1:]
	return lines
}

// decodeAvailable converts as much of src as decodes cleanly, leaving a
// trailing partial sequence unconsumed for the next call.
func decodeAvailable(dec *encoding.Decoder, src []byte) (string, int) {
	var out []byte
	dst := make([]byte, len(src)+16)
	consumed := 0
	for {
		nDst, nSrc, err := dec.Transform(dst, src[consumed:], false)
		out = append(out, dst[:nDst]...)
		consumed += nSrc
		if err == transform.ErrShortDst {
			dst = make([]byte, len(dst)*2)
			continue
		}
		// ErrShortSrc means an incomplete sequence at the end; it stays
		// buffered until more bytes arrive.
		return string(out), consumed
	}
}

// NormalizeNewlines collapses runs of carriage returns to a single one (a
// terminal treats repeated cursor-return the same as one), then folds the
// remaining \r\n pairs into \n.
func NormalizeNewlines(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\r' {
			for i+1 < len(text) && text[i+1] == '\r' {
				i++
			}
		}
		b.WriteByte(c)
	}
	return strings.ReplaceAll(b.String(), "\r\n", "\n")
}
