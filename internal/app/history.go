package app

import (
	"strings"

	"agentnet/internal/domain"
)

const historyHeader = "Previous conversation:"

// RenderHistory formats the last limit non-blank turns as labeled lines.
// It returns "" when nothing remains.
func RenderHistory(turns []domain.ConversationTurn, limit int) string {
	if limit <= 0 {
		limit = domain.DefaultHistoryTurns
	}
	kept := make([]domain.ConversationTurn, 0, len(turns))
	for _, turn := range turns {
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		kept = append(kept, turn)
	}
	if len(kept) == 0 {
		return ""
	}
	if len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}

	var b strings.Builder
	b.WriteString(historyHeader)
	for _, turn := range kept {
		b.WriteByte('\n')
		if strings.EqualFold(strings.TrimSpace(turn.Role), domain.RoleAssistant) {
			b.WriteString("Assistant: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(strings.TrimSpace(turn.Content))
	}
	return b.String()
}

// WithHistory prepends the rendered history block to instruction.
func WithHistory(instruction string, turns []domain.ConversationTurn, limit int) string {
	rendered := RenderHistory(turns, limit)
	if rendered == "" {
		return instruction
	}
	return rendered + "\n\n" + instruction
}
