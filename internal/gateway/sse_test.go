package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectPayloads(t *testing.T, stream string) []string {
	t.Helper()
	s := NewBlockScanner(strings.NewReader(stream))
	var out []string
	for s.Next() {
		out = append(out, s.Payload())
	}
	require.NoError(t, s.Err())
	return out
}

func TestBlockScannerBasic(t *testing.T) {
	stream := "data: {\"a\":1}\n\ndata: {\"b\":2}\n\ndata: [DONE]\n\n"
	payloads := collectPayloads(t, stream)
	assert.Equal(t, []string{`{"a":1}`, `{"b":2}`, "[DONE]"}, payloads)
}

func TestBlockScannerCRLF(t *testing.T) {
	stream := "data: one\r\n\r\ndata: two\r\n\r\n"
	payloads := collectPayloads(t, stream)
	assert.Equal(t, []string{"one", "two"}, payloads)
}

func TestBlockScannerMultilineData(t *testing.T) {
	// multiple data lines in one block join with a newline
	stream := "data: line1\ndata: line2\n\n"
	payloads := collectPayloads(t, stream)
	assert.Equal(t, []string{"line1\nline2"}, payloads)
}

func TestBlockScannerSkipsNonDataLines(t *testing.T) {
	stream := ": heartbeat comment\n\nevent: update\n\nevent: message\ndata: payload\n\n"
	payloads := collectPayloads(t, stream)
	assert.Equal(t, []string{"payload"}, payloads)
}

func TestBlockScannerFlushesTrailingPartial(t *testing.T) {
	// stream ends without the final delimiter
	stream := "data: first\n\ndata: tail"
	payloads := collectPayloads(t, stream)
	assert.Equal(t, []string{"first", "tail"}, payloads)
}

func TestBlockScannerNoSpaceAfterColon(t *testing.T) {
	payloads := collectPayloads(t, "data:compact\n\n")
	assert.Equal(t, []string{"compact"}, payloads)
}

func TestBlockScannerPreservesInnerSpace(t *testing.T) {
	// only the first space after the colon is stripped
	payloads := collectPayloads(t, "data:  padded\n\n")
	assert.Equal(t, []string{" padded"}, payloads)
}

func TestBlockScannerEmptyStream(t *testing.T) {
	assert.Empty(t, collectPayloads(t, ""))
}
