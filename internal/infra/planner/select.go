package planner

import (
	"strings"

	"agentnet/internal/domain"
)

// SelectTool picks the tool best suited to task. A tool whose name carries the
// create-pages marker wins outright; otherwise tools are scored on action
// keywords and task tokens, and the first highest score wins. The second
// result is false only when tools is empty.
func SelectTool(task string, tools []domain.ToolDescriptor) (domain.ToolDescriptor, bool) {
	if len(tools) == 0 {
		return domain.ToolDescriptor{}, false
	}
	for _, tool := range tools {
		if strings.Contains(strings.ToLower(tool.Name), domain.CreatePagesToolMarker) {
			return tool, true
		}
	}

	tokens := strings.Fields(strings.ToLower(task))
	best := 0
	bestScore := -1
	for i, tool := range tools {
		score := ScoreTool(tokens, tool)
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	return tools[best], true
}

// ScoreTool rates a tool against lower-cased task tokens.
func ScoreTool(tokens []string, tool domain.ToolDescriptor) int {
	name := strings.ToLower(tool.Name)
	description := strings.ToLower(tool.Description)
	score := 0
	for _, keyword := range domain.ActionKeywords {
		if strings.Contains(name, keyword) {
			score += 2
		}
		if strings.Contains(description, keyword) {
			score++
		}
	}
	for _, token := range tokens {
		switch {
		case strings.Contains(name, token):
			score += 2
		case strings.Contains(description, token):
			score++
		}
	}
	return score
}
