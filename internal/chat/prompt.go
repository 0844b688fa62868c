// ABOUTME: Prompt construction from ordered conversation history
// ABOUTME: Serializes each message into a role-tagged block the runtime can parse

package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// BuildPrompt flattens the ordered message history into a single prompt
// string. The runtime's entry point accepts one prompt, not a structured turn
// list, so each message is wrapped in a role-tagged delimiter block to keep
// role boundaries recoverable:
//
//	[user]
//	How do I sort a slice?
//	[/user]
//
// Blocks appear in input order, one per message.
func BuildPrompt(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s]\n%s\n[/%s]\n\n", m.Role, m.Content, m.Role)
	}
	return strings.TrimSpace(b.String())
}

// EstimateTokens approximates token count as a deterministic function of text
// length: character count divided by 4, rounded up. The empty string is zero.
// Counts runes so multi-byte output does not inflate the estimate.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}
