// Package stream is a small set of context-aware channel pipeline stages.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrMalformedLine = errors.New("malformed line")

// MaxLineBytes is the longest NDJSON line NDJSON will read.
const MaxLineBytes = 1 << 20

// NDJSON decodes one T per line of in, in order.
// Blank lines are skipped. A line that does not decode is reported on the
// error channel as ErrMalformedLine and skipped; a read error is reported and
// ends the stream. Both channels close when the stream ends, and callers
// must drain both.
func NDJSON[T any](ctx context.Context, in io.Reader) (<-chan T, <-chan error) {
	out := make(chan T)
	errs := make(chan error)
	go func() {
		defer close(out)
		defer close(errs)
		sendErr := func(err error) bool {
			select {
			case <-ctx.Done():
				return false
			case errs <- err:
				return true
			}
		}
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
		line := 0
		for scanner.Scan() {
			line++
			b := bytes.TrimSpace(scanner.Bytes())
			if len(b) == 0 {
				continue
			}
			var element T
			if err := json.Unmarshal(b, &element); err != nil {
				if !sendErr(fmt.Errorf("%w %d: %v", ErrMalformedLine, line, err)) {
					return
				}
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- element:
			}
		}
		if err := scanner.Err(); err != nil {
			sendErr(err)
		}
	}()
	return out, errs
}

func Filter[T any](ctx context.Context, predicate func(T) bool, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for element := range in {
			if predicate(element) {
				select {
				case <-ctx.Done():
					return
				case out <- element:
				}
			}
		}
	}()
	return out
}
