// Package tmuxfmt builds and splits tmux -F format strings.
package tmuxfmt

import "strings"

// FieldSeparator is the delimiter used in tmux format strings. ASCII Unit
// Separator avoids collision with pane title/content text.
const FieldSeparator = "\x1f"

// Join builds a tmux format string with the canonical delimiter.
func Join(fields ...string) string {
	return strings.Join(fields, FieldSeparator)
}

// SplitLine splits one line of tmux output produced with Join.
func SplitLine(line string, maxParts int) []string {
	if maxParts <= 0 {
		return nil
	}
	return strings.SplitN(line, FieldSeparator, maxParts)
}
