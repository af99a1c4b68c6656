// Package channels delivers dialog messages to users: to a terminal or any
// other writer, over websockets, or into memory.
package channels

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/muesli/reflow/wordwrap"
)

// Writer writes every message, word wrapped, to an io.Writer.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	width  int
	prefix string
}

type WriterOption func(*Writer)

// WithWrapWidth wraps messages at width columns. Zero disables wrapping.
func WithWrapWidth(width int) WriterOption {
	return func(w *Writer) {
		w.width = width
	}
}

// WithPrefix starts every message with prefix, e.g. a speaker label.
func WithPrefix(prefix string) WriterOption {
	return func(w *Writer) {
		w.prefix = prefix
	}
}

func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	writer := &Writer{w: w}
	for _, opt := range opts {
		opt(writer)
	}
	return writer
}

func (w *Writer) Deliver(_ context.Context, _ string, text string) error {
	text = Wrap(w.prefix+strings.TrimSpace(text), w.width)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintf(w.w, "%s\n\n", text); err != nil {
		return fmt.Errorf("error writing message: %w", err)
	}
	return nil
}

// Wrap word wraps text at width columns, keeping existing line breaks.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	return wordwrap.String(text, width)
}
