package llm

import (
	"unicode/utf8"

	"github.com/toolgate/toolgate/internal/session"
)

// EstimateTokens returns a conservative token estimate for a piece of text.
// Not a tokenizer; only used for logging and budget observability, so it
// deliberately over-counts rather than under-counts.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	// BPE tokenizers land around 3-4 chars per token for English-ish text.
	// bytes/3 is a decent conservative bound; runes/2 guards against
	// undercounting short mostly-ASCII strings.
	byBytes := len(text) / 3
	byRunes := utf8.RuneCountInString(text) / 2
	if byBytes < byRunes {
		return byRunes
	}
	return byBytes
}

// EstimateMessages sums the estimate over a transcript, counting tool call
// arguments as text.
func EstimateMessages(msgs []session.Message) int {
	var total int
	for _, m := range msgs {
		total += EstimateTokens(m.Content)
		for _, tc := range m.ToolCalls {
			total += EstimateTokens(tc.Name)
			total += EstimateTokens(string(tc.Args))
		}
	}
	return total
}
