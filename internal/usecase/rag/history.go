package rag

import (
	"strings"

	"github.com/kailas-cloud/realtorbot/internal/domain/chat"
)

var rolePrefixes = map[string]chat.Role{
	"user":        chat.RoleUser,
	"utilizador":  chat.RoleUser,
	"utilizadora": chat.RoleUser,
	"visitante":   chat.RoleUser,
	"cliente":     chat.RoleUser,
	"assistant":   chat.RoleAssistant,
	"assistente":  chat.RoleAssistant,
	"bot":         chat.RoleAssistant,
}

// HistoryLines flattens history entries into non-blank lines.
func HistoryLines(history []string) []string {
	var lines []string
	for _, h := range history {
		for _, l := range strings.Split(h, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, l)
			}
		}
	}
	return lines
}

// ParseTurns converts "role: text" lines into turns. A line without a known
// role prefix continues the previous turn; a leading one is a user turn.
func ParseTurns(lines []string) []chat.Turn {
	var turns []chat.Turn
	for _, line := range lines {
		if role, text, ok := splitRole(line); ok {
			turns = append(turns, chat.Turn{Role: role, Text: text})
			continue
		}
		if len(turns) == 0 {
			turns = append(turns, chat.Turn{Role: chat.RoleUser, Text: line})
			continue
		}
		last := &turns[len(turns)-1]
		last.Text += "\n" + line
	}
	return turns
}

func splitRole(line string) (chat.Role, string, bool) {
	prefix, rest, found := strings.Cut(line, ":")
	if !found {
		return 0, "", false
	}
	role, ok := rolePrefixes[strings.ToLower(strings.TrimSpace(prefix))]
	if !ok {
		return 0, "", false
	}
	return role, strings.TrimSpace(rest), true
}
