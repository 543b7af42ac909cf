// Package sse implements incremental parsing of text/event-stream
// responses. Unlike a scanner over a complete body, the Parser accepts
// chunks as the transport delivers them and emits only frames whose
// terminating blank line has fully arrived.
package sse

import "strings"

const (
	eventPrefix = "event:"
	dataPrefix  = "data:"
)

// Frame is one complete event/data unit from the stream. EventName may be
// empty; Data is never empty for frames returned by the parser.
type Frame struct {
	EventName string
	Data      string
}

// Parser splits an event stream into frames across arbitrary chunk
// boundaries. Each stream gets its own Parser; it is not safe for
// concurrent use and holds buffered trailing data between Feed calls.
type Parser struct {
	buf strings.Builder
}

// NewParser returns a parser with an empty buffer.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends chunk to the internal buffer and returns every frame that
// is now complete, in stream order. A call may return zero, one, or many
// frames. Data left after the last complete frame stays buffered for the
// next call; if the stream ends with an unterminated frame, that data is
// never emitted.
func (p *Parser) Feed(chunk string) []Frame {
	if chunk == "" {
		return nil
	}
	p.buf.WriteString(chunk)

	// Normalize CRLF so the boundary scan only ever looks for "\n\n".
	// The whole buffer is re-normalized rather than just the suffix: a
	// "\r" at the end of the previous chunk may pair with a "\n" at the
	// start of this one.
	text := strings.ReplaceAll(p.buf.String(), "\r\n", "\n")

	var frames []Frame
	for {
		idx := strings.Index(text, "\n\n")
		if idx < 0 {
			break
		}
		block := text[:idx]
		text = text[idx+2:]
		if f, ok := parseBlock(block); ok {
			frames = append(frames, f)
		}
	}

	p.buf.Reset()
	p.buf.WriteString(text)
	return frames
}

// parseBlock turns one boundary-delimited block into a Frame. The last
// event: and data: lines win when repeated; anything else is protocol
// comment or padding and is skipped. Blocks without data carry nothing
// actionable and report ok=false.
func parseBlock(block string) (Frame, bool) {
	var f Frame
	for _, line := range strings.Split(block, "\n") {
		switch {
		case strings.HasPrefix(line, eventPrefix):
			f.EventName = strings.TrimSpace(line[len(eventPrefix):])
		case strings.HasPrefix(line, dataPrefix):
			f.Data = strings.TrimSpace(line[len(dataPrefix):])
		}
	}
	if f.Data == "" {
		return Frame{}, false
	}
	return f, true
}
