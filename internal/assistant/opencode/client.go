// Package opencode implements assistant.Client against an OpenAI-compatible
// chat-completions endpoint (the opencode backend), streamed via openai-go.
package opencode

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel"

	"github.com/archon-run/archon/internal/assistant"
)

var tracer = otel.Tracer("archon.assistant.opencode")

type Client struct {
	api   openai.Client
	model openai.ChatModel
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

func New(cfg Config) *Client {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4o
	}
	return &Client{
		api:   openai.NewClient(opts...),
		model: model,
	}
}

func (c *Client) SendQuery(ctx context.Context, prompt, cwd, resumeToken string) (<-chan assistant.Chunk, <-chan error) {
	chunks := make(chan assistant.Chunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		ctx, span := tracer.Start(ctx, "opencode.SendQuery")
		defer span.End()

		system := fmt.Sprintf("Working directory: %s", cwd)
		if resumeToken != "" {
			system += fmt.Sprintf("\nResuming prior session %s.", resumeToken)
		}

		stream := c.api.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
			Model: c.model,
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(prompt),
			},
		})

		acc := openai.ChatCompletionAccumulator{}
		var sessionID string
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if sessionID == "" {
				sessionID = chunk.ID
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					chunks <- assistant.Chunk{Kind: assistant.ChunkAssistant, Content: choice.Delta.Content}
				}
				for _, call := range choice.Delta.ToolCalls {
					if call.Function.Name == "" {
						continue
					}
					chunks <- assistant.Chunk{
						Kind:      assistant.ChunkTool,
						ToolName:  call.Function.Name,
						ToolInput: map[string]any{"arguments": call.Function.Arguments},
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errs <- fmt.Errorf("opencode: stream: %w", err)
			return
		}

		chunks <- assistant.Chunk{Kind: assistant.ChunkResult, SessionID: sessionID}
	}()

	return chunks, errs
}
