// Package sse reassembles server-sent event frames from a chunked byte
// stream.
//
// Chunks may be split at any byte offset, including inside a field name or a
// multi-byte character. Lines are only interpreted once their terminating
// newline has arrived, so a frame is never built from a partial line.
package sse

import (
	"bytes"
	"strings"
)

const (
	eventField = "event"
	dataField  = "data"
	idField    = "id"
	retryField = "retry"
)

var bom = []byte("\uFEFF")

// Frame is one logical server message: an optional event name and its
// payload.
type Frame struct {
	Event string
	Data  string
}

// Framing selects where a frame ends.
type Framing int

const (
	// FramingEvent accumulates data lines until a blank line. An event line
	// that arrives while data is pending also ends the pending frame, since
	// the workflow backend writes events back to back without blank lines.
	FramingEvent Framing = iota
	// FramingLine treats every data line as a complete frame and forgets the
	// event name right after using it.
	FramingLine
)

func (f Framing) String() string {
	switch f {
	case FramingEvent:
		return "event"
	case FramingLine:
		return "line"
	default:
		return "unknown"
	}
}

type Option func(*Assembler)

func WithFraming(framing Framing) Option {
	return func(a *Assembler) {
		a.framing = framing
	}
}

// Assembler turns byte chunks into frames. The zero value uses
// [FramingEvent]. It is not safe for concurrent use.
type Assembler struct {
	framing Framing

	buf         []byte
	startedText bool

	eventName string
	dataLines []string
	hasData   bool
}

func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Feed appends a chunk and returns every frame completed by it.
func (a *Assembler) Feed(chunk []byte) []Frame {
	a.buf = append(a.buf, chunk...)

	var frames []Frame
	for {
		i := bytes.IndexByte(a.buf, '\n')
		if i < 0 {
			break
		}
		line := a.buf[:i]
		a.buf = a.buf[i+1:]

		if frame, ok := a.processLine(line); ok {
			frames = append(frames, frame)
		}
	}

	// Release the backing array once everything has been consumed.
	if len(a.buf) == 0 {
		a.buf = nil
	}
	return frames
}

// Close ends the stream. An unterminated trailing line is discarded; data
// built from complete lines that has not been dispatched yet is returned as a
// final frame.
func (a *Assembler) Close() []Frame {
	if len(a.buf) > 0 {
		logger.Debug("discarding partial line at end of stream", "bytes", len(a.buf))
	}
	a.buf = nil

	var frames []Frame
	if frame, ok := a.dispatch(); ok {
		frames = append(frames, frame)
	}
	a.eventName = ""
	return frames
}

func (a *Assembler) processLine(raw []byte) (Frame, bool) {
	if !a.startedText {
		a.startedText = true
		raw = bytes.TrimPrefix(raw, bom)
	}
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	line := strings.ToValidUTF8(string(raw), "\uFFFD")

	if line == "" {
		if a.framing == FramingLine {
			logger.Debug("ignoring blank line")
			return Frame{}, false
		}
		frame, ok := a.dispatch()
		a.eventName = ""
		return frame, ok
	}

	if strings.HasPrefix(line, ":") {
		return Frame{}, false
	}

	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch field {
	case eventField:
		var (
			frame Frame
			ok    bool
		)
		if a.framing == FramingEvent {
			frame, ok = a.dispatch()
		}
		a.eventName = strings.TrimSpace(value)
		return frame, ok

	case dataField:
		if a.framing == FramingLine {
			frame := Frame{Event: a.eventName, Data: value}
			a.eventName = ""
			return frame, true
		}
		a.dataLines = append(a.dataLines, value)
		a.hasData = true
		return Frame{}, false

	case idField, retryField:
		return Frame{}, false

	default:
		logger.Debug("ignoring unrecognised line", "line", line)
		return Frame{}, false
	}
}

func (a *Assembler) dispatch() (Frame, bool) {
	if !a.hasData {
		return Frame{}, false
	}
	frame := Frame{
		Event: a.eventName,
		Data:  strings.Join(a.dataLines, "\n"),
	}
	a.eventName = ""
	a.dataLines = nil
	a.hasData = false
	return frame, true
}
