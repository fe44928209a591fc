package gateway

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// BlockScanner decodes an SSE byte stream into event payloads. Events are
// double-newline-delimited blocks; within a block only "data:" lines count,
// joined with newlines so multi-line payloads survive. A trailing partial
// block at EOF is still flushed, tolerating providers that omit the final
// delimiter.
type BlockScanner struct {
	scanner *bufio.Scanner
	payload string
}

func NewBlockScanner(r io.Reader) *BlockScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	s.Split(scanBlocks)
	return &BlockScanner{scanner: s}
}

// Next advances to the next block carrying a data payload. It returns false
// at end of stream; Err reports any read failure.
func (b *BlockScanner) Next() bool {
	for b.scanner.Scan() {
		payload, ok := parseBlock(b.scanner.Bytes())
		if !ok {
			continue
		}
		b.payload = payload
		return true
	}
	return false
}

// Payload is the data payload of the current block.
func (b *BlockScanner) Payload() string { return b.payload }

func (b *BlockScanner) Err() error { return b.scanner.Err() }

// scanBlocks splits on blank lines ("\n\n", tolerating "\r\n\r\n").
func scanBlocks(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i := 0; i+1 < len(data); i++ {
		if data[i] != '\n' {
			continue
		}
		j := i + 1
		if data[j] == '\r' && j+1 < len(data) {
			j++
		}
		if data[j] == '\n' {
			return j + 1, data[:i], nil
		}
	}
	if atEOF {
		// flush whatever is buffered as a final block
		return len(data), data, nil
	}
	return 0, nil, nil
}

// parseBlock joins the block's data lines. Blocks without any data line
// (comments, event-type-only frames) report ok=false.
func parseBlock(block []byte) (string, bool) {
	var parts []string
	for _, line := range bytes.Split(block, []byte("\n")) {
		text := strings.TrimSuffix(string(line), "\r")
		if !strings.HasPrefix(text, "data:") {
			continue
		}
		text = strings.TrimPrefix(text, "data:")
		parts = append(parts, strings.TrimPrefix(text, " "))
	}
	if parts == nil {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}
