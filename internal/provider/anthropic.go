package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 4096

// AnthropicClient talks to the Anthropic Messages API. It supports both
// single-shot completions and streaming; retries are handled by the
// registry, so the SDK's own retry loop is disabled.
type AnthropicClient struct {
	client anthropic.Client
}

var (
	_ Completer = (*AnthropicClient)(nil)
	_ Streamer  = (*AnthropicClient)(nil)
)

// NewAnthropicClient validates the key and constructs the SDK client.
func NewAnthropicClient(apiKey string, opts ...option.RequestOption) (*AnthropicClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY is required", ErrConfiguration)
	}
	options := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	return &AnthropicClient{client: anthropic.NewClient(options...)}, nil
}

func (c *AnthropicClient) Name() string { return "anthropic" }

func (c *AnthropicClient) params(req Request) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
}

// Complete issues one blocking Messages call.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Result, error) {
	message, err := c.client.Messages.New(ctx, c.params(req))
	if err != nil {
		return Result{}, fmt.Errorf("anthropic message: %w", err)
	}
	return resultFromMessage(message)
}

// Stream issues a streaming Messages call, forwarding each text delta
// to onChunk in arrival order.
func (c *AnthropicClient) Stream(ctx context.Context, req Request, onChunk func(text string)) (Result, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.params(req))
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return Result{}, fmt.Errorf("anthropic stream accumulate: %w", err)
		}
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if delta.Text != "" && onChunk != nil {
					onChunk(delta.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return Result{}, fmt.Errorf("anthropic stream: %w", err)
	}
	return resultFromMessage(&message)
}

func resultFromMessage(message *anthropic.Message) (Result, error) {
	usage := Usage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}
	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return Result{Usage: usage}, fmt.Errorf("no text content in anthropic response")
	}
	return Result{Text: text.String(), Usage: usage}, nil
}
