package llmwire

import (
	"bufio"
	"bytes"
	"strings"
)

const (
	dataMarker   = "data:"
	doneSentinel = "[DONE]"
)

// scanDataLines walks a line-oriented event stream and invokes fn for each
// data payload. Lines without the data marker are ignored; the sentinel line
// stops the scan. fn returning false also stops the scan.
func scanDataLines(body []byte, fn func(payload []byte) bool) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, dataMarker) {
			continue
		}
		payload := strings.TrimSpace(line[len(dataMarker):])
		if payload == "" {
			continue
		}
		if payload == doneSentinel {
			return
		}
		if !fn([]byte(payload)) {
			return
		}
	}
}

// looksLikeStream reports whether a body is a line-oriented event stream
// rather than a bare JSON document.
func looksLikeStream(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte(dataMarker)) || bytes.HasPrefix(trimmed, []byte("event:"))
}
