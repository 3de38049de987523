package flow

import (
	"fmt"

	"github.com/hupe1980/weathermesh/core"
	internalutil "github.com/hupe1980/weathermesh/internal/util"
	"github.com/hupe1980/weathermesh/model"
)

// InstructionsProcessor handles system prompt and instruction processing.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest resolves the agent instruction and renders it against the
// session state (including state staged in this run).
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	rendered, err := internalutil.RenderTemplate(instructions, runCtx.State())
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	runCtx.LogDebug("agent.instruction.resolved", "agent", agent.GetName(), "length", len(rendered))

	req.Instructions = rendered

	return nil
}

// ContentsProcessor turns the session history into model contents.
//
// Only events visible from the current branch are used. Events authored by
// other agents are rewritten as user text so every provider accepts the
// transcript, and the history is capped at MaxHistoryMessages.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest replaces req.Contents with the visible conversation history.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	var contents []core.Content

	if runCtx.Session != nil {
		for _, ev := range runCtx.Session.GetConversationHistory() {
			if !isVisibleFromBranch(runCtx.Branch, ev.Branch) {
				continue
			}

			if isForeignEvent(ev, agent.GetName()) {
				contents = append(contents, foreignContent(ev))
				continue
			}

			parts := make([]core.Part, len(ev.Content.Parts))
			copy(parts, ev.Content.Parts)
			contents = append(contents, core.Content{Role: ev.Content.Role, Parts: parts})
		}
	}

	if limit := agent.MaxHistoryMessages(); limit > 0 && len(contents) > limit {
		contents = contents[len(contents)-limit:]
		// a tool result without its preceding call is rejected by providers
		for len(contents) > 0 && contents[0].Role == "tool" {
			contents = contents[1:]
		}
	}

	req.Contents = contents

	return nil
}

// isVisibleFromBranch reports whether an event on eventBranch belongs to the
// current branch, one of its ancestors or the root.
func isVisibleFromBranch(current, eventBranch string) bool {
	if current == "" || eventBranch == "" || current == eventBranch {
		return true
	}

	return len(current) > len(eventBranch) &&
		current[:len(eventBranch)] == eventBranch &&
		current[len(eventBranch)] == '.'
}

func isForeignEvent(ev core.Event, agentName string) bool {
	return ev.Author != "" && ev.Author != "user" && ev.Author != agentName
}

// foreignContent renders another agent's event as context for this agent.
func foreignContent(ev core.Event) core.Content {
	parts := []core.Part{core.TextPart{Text: "For context:"}}

	for _, part := range ev.Content.Parts {
		switch p := part.(type) {
		case core.TextPart:
			if p.Text == "" {
				continue
			}
			parts = append(parts, core.TextPart{Text: fmt.Sprintf("[%s] said: %s", ev.Author, p.Text)})
		case core.FunctionCallPart:
			parts = append(parts, core.TextPart{Text: fmt.Sprintf(
				"[%s] called tool `%s` with parameters: %s",
				ev.Author, p.FunctionCall.Name, p.FunctionCall.Arguments,
			)})
		case core.FunctionResponsePart:
			parts = append(parts, core.TextPart{Text: fmt.Sprintf(
				"[%s] `%s` tool returned result: %s",
				ev.Author, p.FunctionResponse.Name, model.EncodeFunctionResponse(p.FunctionResponse),
			)})
		}
	}

	return core.Content{Role: "user", Parts: parts}
}

// OutputKeyProcessor stores the text of a final answer in session state
// under the agent's output key.
type OutputKeyProcessor struct{}

// NewOutputKeyProcessor creates a new output key processor.
func NewOutputKeyProcessor() *OutputKeyProcessor { return &OutputKeyProcessor{} }

// Name returns the processor's identifier.
func (p *OutputKeyProcessor) Name() string { return "output_key" }

// ProcessResponse stages the response text; it is persisted with the event.
func (p *OutputKeyProcessor) ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error {
	key := agent.GetOutputKey()
	if key == "" || resp.Partial {
		return nil
	}

	for _, part := range resp.Content.Parts {
		if _, ok := part.(core.FunctionCallPart); ok {
			return nil
		}
	}

	if text := resp.Content.Text(); text != "" {
		runCtx.SetState(key, text)
	}

	return nil
}
