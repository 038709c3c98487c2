// Package claude implements assistant.Client against the Anthropic
// Messages API, streaming tool_use/text/thinking blocks as they arrive
// (grounded on the teacher's internal/coding claudeEvent/claudeContentBlock
// decoding of the Claude Code CLI's own JSON stream).
package claude

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel"

	"github.com/archon-run/archon/internal/assistant"
)

var tracer = otel.Tracer("archon.assistant.claude")

// Client streams one-shot Messages API turns. cwd is forwarded as a
// system-prompt directive since the Messages API has no notion of a
// working directory; the backend is expected to run with tool access
// scoped externally to that directory by the caller's sandboxing.
type Client struct {
	api   anthropic.Client
	model anthropic.Model
}

// Config holds the knobs New needs; APIKey may be empty to fall back to
// the ANTHROPIC_API_KEY environment variable the SDK reads itself.
type Config struct {
	APIKey string
	Model  string
}

func New(cfg Config) *Client {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_5
	}
	return &Client{
		api:   anthropic.NewClient(opts...),
		model: model,
	}
}

func (c *Client) SendQuery(ctx context.Context, prompt, cwd, resumeToken string) (<-chan assistant.Chunk, <-chan error) {
	chunks := make(chan assistant.Chunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		ctx, span := tracer.Start(ctx, "claude.SendQuery")
		defer span.End()

		system := fmt.Sprintf("Working directory: %s", cwd)
		if resumeToken != "" {
			system += fmt.Sprintf("\nResuming prior session %s.", resumeToken)
		}

		stream := c.api.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
			Model:     c.model,
			MaxTokens: 8192,
			System: []anthropic.TextBlockParam{
				{Text: system},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})

		message := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				errs <- fmt.Errorf("claude: accumulate event: %w", err)
				return
			}

			switch variant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := variant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					chunks <- assistant.Chunk{Kind: assistant.ChunkAssistant, Content: delta.Text}
				case anthropic.ThinkingDelta:
					chunks <- assistant.Chunk{Kind: assistant.ChunkThinking, Content: delta.Thinking}
				}
			case anthropic.ContentBlockStopEvent:
				block := message.Content[variant.Index]
				if block.Type == "tool_use" {
					input := map[string]any{}
					if len(block.Input) > 0 {
						if err := json.Unmarshal(block.Input, &input); err != nil {
							input["_raw"] = string(block.Input)
						}
					}
					chunks <- assistant.Chunk{Kind: assistant.ChunkTool, ToolName: block.Name, ToolInput: input}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errs <- fmt.Errorf("claude: stream: %w", err)
			return
		}

		chunks <- assistant.Chunk{Kind: assistant.ChunkResult, SessionID: message.ID}
	}()

	return chunks, errs
}
