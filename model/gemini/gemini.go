// Package gemini provides an implementation of model.Model backed by the
// Google Gemini API (github.com/google/generative-ai-go).
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/model"
)

// DefaultModel is the model used when Options.Model is empty.
const DefaultModel = "gemini-2.0-flash-exp"

// Options configures the Gemini model adapter.
type Options struct {
	Model       string
	Temperature float32
}

// Model wraps a genai client behind the generic model.Model interface. A
// fresh GenerativeModel and chat session are derived per request, so one
// Model is safe for concurrent use by parallel agents.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a Gemini model authenticated with apiKey.
func NewModel(ctx context.Context, apiKey string, optFns ...func(o *Options)) (*Model, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return NewModelFromClient(client, optFns...), nil
}

// NewModelFromClient creates a Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       DefaultModel,
		Temperature: 0.7,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Close releases the underlying client.
func (m *Model) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents, err := toGenaiContents(req.Contents)
		if err != nil {
			errCh <- err
			return
		}
		if len(contents) == 0 {
			errCh <- errors.New("gemini: no contents provided")
			return
		}

		gm := m.client.GenerativeModel(m.opts.Model)
		gm.SetTemperature(m.opts.Temperature)

		if req.Instructions != "" {
			gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.Instructions)}}
		}

		if len(req.Tools) > 0 {
			gm.Tools = []*genai.Tool{{FunctionDeclarations: toFunctionDeclarations(req.Tools)}}
		}

		cs := gm.StartChat()
		cs.History = contents[:len(contents)-1]
		last := contents[len(contents)-1]

		if req.Stream {
			m.handleStreaming(ctx, cs, last.Parts, out, errCh)
			return
		}

		resp, err := cs.SendMessage(ctx, last.Parts...)
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}

		out <- fromGenaiResponse(resp)
	}()

	return out, errCh
}

// handleStreaming forwards text chunks as partial responses and aggregates
// text plus function calls into the final response.
func (m *Model) handleStreaming(
	ctx context.Context,
	cs *genai.ChatSession,
	parts []genai.Part,
	out chan<- model.Response,
	errCh chan<- error,
) {
	iter := cs.SendMessageStream(ctx, parts...)

	var (
		text   strings.Builder
		calls  []core.Part
		finish = "stop"
		usage  *model.TokenUsage
	)

	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			errCh <- fmt.Errorf("gemini streaming error: %w", err)
			return
		}

		chunk := fromGenaiResponse(resp)
		for _, p := range chunk.Content.Parts {
			switch v := p.(type) {
			case core.TextPart:
				text.WriteString(v.Text)
				out <- model.Response{
					Partial: true,
					Content: core.Content{Role: "assistant", Parts: []core.Part{v}},
				}
			case core.FunctionCallPart:
				calls = append(calls, v)
			}
		}
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
	}

	final := make([]core.Part, 0, len(calls)+1)
	if text.Len() > 0 {
		final = append(final, core.TextPart{Text: text.String()})
	}
	final = append(final, calls...)

	out <- model.Response{
		Content:      core.Content{Role: "assistant", Parts: final},
		FinishReason: finish,
		Usage:        usage,
	}
}

// toGenaiContents maps weathermesh roles onto Gemini roles ("user" and
// "model"). Tool results become FunctionResponse parts of a user turn.
// Consecutive contents with the same role are merged.
func toGenaiContents(contents []core.Content) ([]*genai.Content, error) {
	var out []*genai.Content

	for _, c := range contents {
		role := "user"
		if c.Role == "assistant" {
			role = "model"
		}
		if c.Role == "system" {
			continue
		}

		parts := make([]genai.Part, 0, len(c.Parts))
		for _, p := range c.Parts {
			switch v := p.(type) {
			case core.TextPart:
				if v.Text != "" {
					parts = append(parts, genai.Text(v.Text))
				}
			case core.DataPart:
				raw, err := json.Marshal(v.Data)
				if err != nil {
					return nil, fmt.Errorf("gemini: encode data part: %w", err)
				}
				parts = append(parts, genai.Text(string(raw)))
			case core.FunctionCallPart:
				args := map[string]any{}
				if v.FunctionCall.Arguments != "" {
					if err := json.Unmarshal([]byte(v.FunctionCall.Arguments), &args); err != nil {
						return nil, fmt.Errorf("gemini: decode arguments of %s: %w", v.FunctionCall.Name, err)
					}
				}
				parts = append(parts, genai.FunctionCall{Name: v.FunctionCall.Name, Args: args})
			case core.FunctionResponsePart:
				parts = append(parts, genai.FunctionResponse{
					Name:     v.FunctionResponse.Name,
					Response: responseMap(v.FunctionResponse),
				})
			}
		}

		if len(parts) == 0 {
			continue
		}

		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, parts...)
			continue
		}

		out = append(out, &genai.Content{Role: role, Parts: parts})
	}

	return out, nil
}

// responseMap converts a tool result into the object Gemini expects.
// Non-object results are wrapped as {"result": v}.
func responseMap(fr core.FunctionResponse) map[string]any {
	if fr.Error != "" {
		return map[string]any{"error": fr.Error}
	}

	if m, ok := fr.Response.(map[string]any); ok {
		return m
	}

	raw, err := json.Marshal(fr.Response)
	if err == nil {
		var m map[string]any
		if json.Unmarshal(raw, &m) == nil && m != nil {
			return m
		}
	}

	return map[string]any{"result": fr.Response}
}

// fromGenaiResponse converts the first candidate of a response.
func fromGenaiResponse(resp *genai.GenerateContentResponse) model.Response {
	out := model.Response{Content: core.Content{Role: "assistant"}}
	if resp == nil {
		return out
	}

	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		if cand.Content != nil {
			for _, p := range cand.Content.Parts {
				switch v := p.(type) {
				case genai.Text:
					if v != "" {
						out.Content.Parts = append(out.Content.Parts, core.TextPart{Text: string(v)})
					}
				case genai.FunctionCall:
					args, _ := json.Marshal(v.Args)
					out.Content.Parts = append(out.Content.Parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
						ID:        core.NewID(),
						Name:      v.Name,
						Arguments: string(args),
					}})
				}
			}
		}
		out.FinishReason = finishReason(cand.FinishReason)
	}

	if u := resp.UsageMetadata; u != nil {
		out.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	return out
}

func finishReason(r genai.FinishReason) string {
	switch r {
	case genai.FinishReasonStop:
		return "stop"
	case genai.FinishReasonMaxTokens:
		return "length"
	case genai.FinishReasonSafety:
		return "safety"
	case genai.FinishReasonRecitation:
		return "recitation"
	case genai.FinishReasonOther:
		return "other"
	default:
		return ""
	}
}

// toFunctionDeclarations converts tool definitions into Gemini declarations.
func toFunctionDeclarations(tools []model.ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))

	for _, t := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
		}

		// Gemini rejects object schemas without properties.
		if schema := toSchema(t.Function.Parameters); schema != nil && len(schema.Properties) > 0 {
			decl.Parameters = schema
		}

		decls = append(decls, decl)
	}

	return decls
}

// toSchema converts a JSON schema map into a genai.Schema.
func toSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}

	s := &genai.Schema{Type: schemaType(m["type"])}

	if desc, ok := m["description"].(string); ok {
		s.Description = desc
	}

	switch enum := m["enum"].(type) {
	case []string:
		s.Enum = enum
	case []any:
		for _, e := range enum {
			if str, ok := e.(string); ok {
				s.Enum = append(s.Enum, str)
			}
		}
	}

	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = toSchema(pm)
			}
		}
	}

	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}

	switch req := m["required"].(type) {
	case []string:
		s.Required = req
	case []any:
		for _, r := range req {
			if str, ok := r.(string); ok {
				s.Required = append(s.Required, str)
			}
		}
	}

	return s
}

func schemaType(v any) genai.Type {
	switch v {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		SupportsTools: true,
	}
}
