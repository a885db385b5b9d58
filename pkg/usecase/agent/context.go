package agent

import (
	"strings"

	"github.com/thatamjad/cf-ai-amjad/pkg/model"
)

const memoryPreamble = "relevant context from past conversations:"

// BuildContext assembles the prompt for one inference call. Segments are
// added in priority order: the system prompt and the folded memory segment
// are always included, then history messages newest-first until the next
// message would push the estimated token total over the budget. The
// selected history is re-ordered chronologically before being returned,
// and the current input is appended as the final user turn.
func BuildContext(input string, history []*model.Message, memories []*model.MemoryMatch, systemPrompt string, budget int) []model.Segment {
	segments := []model.Segment{
		{Role: model.RoleSystem, Content: systemPrompt},
	}
	used := model.EstimateTokens(systemPrompt)

	if len(memories) > 0 {
		var sb strings.Builder
		sb.WriteString(memoryPreamble)
		for _, m := range memories {
			sb.WriteString("\n- ")
			sb.WriteString(m.Entry.Content)
		}
		folded := sb.String()
		segments = append(segments, model.Segment{Role: model.RoleSystem, Content: folded})
		used += model.EstimateTokens(folded)
	}

	used += model.EstimateTokens(input)

	// Select newest-first; stop at the first message that would overflow
	var selected []*model.Message
	for i := len(history) - 1; i >= 0; i-- {
		cost := model.EstimateTokens(history[i].Content)
		if used+cost > budget {
			break
		}
		selected = append(selected, history[i])
		used += cost
	}

	// Chronological order for the model
	for i := len(selected) - 1; i >= 0; i-- {
		segments = append(segments, model.Segment{Role: selected[i].Role, Content: selected[i].Content})
	}

	segments = append(segments, model.Segment{Role: model.RoleUser, Content: input})
	return segments
}
