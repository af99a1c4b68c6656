package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
)

const readSize = 4096

// Frames reads r until EOF and yields every complete frame. Each call starts
// a fresh assembler, so the sequence can be ranged over again on a new
// reader. Read errors other than io.EOF are yielded once and end the
// sequence; a partial trailing line is never yielded.
func Frames(ctx context.Context, r io.Reader, opts ...Option) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		assembler := NewAssembler(opts...)
		buf := make([]byte, readSize)
		for {
			if err := ctx.Err(); err != nil {
				yield(Frame{}, err)
				return
			}

			n, err := r.Read(buf)
			if n > 0 {
				for _, frame := range assembler.Feed(buf[:n]) {
					if !yield(frame, nil) {
						return
					}
				}
			}

			if errors.Is(err, io.EOF) {
				for _, frame := range assembler.Close() {
					if !yield(frame, nil) {
						return
					}
				}
				return
			} else if err != nil {
				yield(Frame{}, fmt.Errorf("error reading event stream: %w", err))
				return
			}
		}
	}
}
