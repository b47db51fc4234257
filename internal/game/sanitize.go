package game

import "strings"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// Escape replaces the five HTML metacharacters. Every chat-sourced string
// passes through here before it leaves the game in an event.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}
