// Package sse decodes Server-Sent Events streams returned by LLM providers.
package sse

import (
	"bufio"
	"bytes"
	"io"
)

// maxLineSize bounds a single SSE line. Gemini chunks carrying safety
// ratings and citations can exceed bufio's 64KB default.
const maxLineSize = 1 << 20

// Done is the OpenAI-compatible end-of-stream sentinel payload.
var Done = []byte("[DONE]")

// Decoder reads SSE events from an upstream response body.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{scanner: s}
}

// Next returns the data payload of the next event. Multiple data lines of
// one event are joined with "\n". Comment lines and non-data fields are
// skipped. Next returns io.EOF once the stream is exhausted.
func (d *Decoder) Next() ([]byte, error) {
	var data [][]byte
	for d.scanner.Scan() {
		line := bytes.TrimRight(d.scanner.Bytes(), "\r")
		if len(line) == 0 {
			if len(data) == 0 {
				continue
			}
			return bytes.Join(data, []byte("\n")), nil
		}
		if line[0] == ':' {
			continue
		}
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		val := line[len("data:"):]
		if len(val) > 0 && val[0] == ' ' {
			val = val[1:]
		}
		data = append(data, append([]byte(nil), val...))
	}
	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	// Upstreams sometimes close without a trailing blank line.
	if len(data) > 0 {
		return bytes.Join(data, []byte("\n")), nil
	}
	return nil, io.EOF
}

// IsDone reports whether payload is the [DONE] sentinel.
func IsDone(payload []byte) bool {
	return bytes.Equal(bytes.TrimSpace(payload), Done)
}
