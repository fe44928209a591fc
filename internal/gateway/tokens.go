package gateway

import (
	"encoding/json"
	"unicode/utf16"

	"github.com/modelrelay/relay/pkg/schema"
)

// EstimateTokens approximates a token count as ceil(utf16-length / 4) when
// the upstream reports nothing authoritative. A crude ~4 chars/token
// heuristic, applied uniformly regardless of script; it is a usage
// approximation and must never be presented as exact.
func EstimateTokens(text string) int {
	units := 0
	for _, r := range text {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		units += n
	}
	return (units + 3) / 4
}

// estimateInputTokens estimates over the JSON-serialized message array.
func estimateInputTokens(messages []schema.ChatMessage) int {
	data, err := json.Marshal(messages)
	if err != nil {
		return 0
	}
	return EstimateTokens(string(data))
}

// estimateOutputTokens estimates over the first choice's visible text.
func estimateOutputTokens(resp *schema.ChatResponse) int {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return 0
	}
	return EstimateTokens(resp.Choices[0].Message.Text())
}
