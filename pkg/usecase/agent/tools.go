package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/thatamjad/cf-ai-amjad/pkg/adapter"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
	"github.com/thatamjad/cf-ai-amjad/pkg/utils/logging"
)

const maxToolRounds = 4

// runTools lets a tool-equipped model request registry calls before the
// answer is generated. Each requested call is dispatched through the
// registry; its outcome is replayed to the model for the next round and
// folded into the prompt so the answering call can use it. Best effort:
// any failure leaves the prompt as assembled.
func (a *Agent) runTools(ctx context.Context, segments []model.Segment) []model.Segment {
	if a.tools == nil {
		return segments
	}
	fc, ok := a.llm.(adapter.FunctionCaller)
	if !ok {
		return segments
	}

	logger := logging.From(ctx).With("conversation_id", a.id)

	decls, err := a.tools.Declarations()
	if err != nil {
		logger.Warn("failed to convert tool declarations", "error", err)
		return segments
	}
	if len(decls) == 0 {
		return segments
	}

	var rounds []adapter.ToolRound
	for i := 0; i < maxToolRounds; i++ {
		turn, err := fc.GenerateWithTools(ctx, segments, decls, rounds, adapter.GenerateOptions{Model: a.config.PrimaryModel})
		if err != nil {
			logger.Warn("tool selection round failed", "round", i+1, "error", err)
			return segments
		}
		if len(turn.Calls) == 0 {
			return segments
		}

		round := adapter.ToolRound{Calls: turn.Calls}
		for _, call := range turn.Calls {
			result := a.tools.Execute(ctx, call.Name, call.Args)
			round.Responses = append(round.Responses, adapter.ToolResponse{
				Name:   call.Name,
				Result: toolResultPayload(result),
			})
			segments = append(segments, model.Segment{
				Role:    model.RoleSystem,
				Content: formatToolResult(call.Name, result),
			})
			logger.Info("tool call dispatched",
				"tool", call.Name,
				"success", result.Success,
				"duration_ms", result.ExecutionTimeMs,
			)
		}
		rounds = append(rounds, round)
	}

	return segments
}

func toolResultPayload(result *model.ToolResult) map[string]any {
	payload := map[string]any{"success": result.Success}
	if result.Data != nil {
		payload["data"] = result.Data
	}
	if result.Error != "" {
		payload["error"] = result.Error
	}
	return payload
}

// formatToolResult renders a tool outcome as a prompt segment
func formatToolResult(name string, result *model.ToolResult) string {
	if !result.Success {
		return fmt.Sprintf("Tool %s failed: %s", name, result.Error)
	}

	data, err := json.Marshal(result.Data)
	if err != nil {
		return fmt.Sprintf("Tool %s returned an unrenderable result", name)
	}
	return fmt.Sprintf("Tool %s returned: %s", name, data)
}
