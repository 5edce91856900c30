package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/tmaxmax/go-sse"
)

// ErrTruncated is yielded when the stream ends before [DONE]
var ErrTruncated = errors.New("stream ended before completion")

const maxEventSize = 1 << 20

// Read yields the chunks of a UI message stream. The sequence is lazy,
// finite and can be ranged over once: it ends after [DONE], on the first
// decode error, or when the body ends early (with ErrTruncated).
func Read(r io.Reader) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		for ev, err := range sse.Read(r, &sse.ReadConfig{MaxEventSize: maxEventSize}) {
			if err != nil {
				yield(Chunk{}, fmt.Errorf("failed to read event stream: %w", err))
				return
			}
			if ev.Data == "" {
				continue
			}
			if ev.Data == DoneMarker {
				return
			}

			var c Chunk
			if err := json.Unmarshal([]byte(ev.Data), &c); err != nil {
				yield(Chunk{}, fmt.Errorf("failed to decode chunk: %w", err))
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		yield(Chunk{}, ErrTruncated)
	}
}
