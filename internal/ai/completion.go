package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/smart-care/voice-gateway/internal/config"
)

// ChatPart is one content part of a chat turn. Image parts carry base64 PNG
// data without the data-URL prefix.
type ChatPart struct {
	Text  string
	Image string
}

// CompletionClient is the request/response surface of the AI provider: one
// schema-constrained extraction call and one freeform chat call.
type CompletionClient interface {
	// StructuredCompletion returns the raw JSON content produced for the
	// given system instruction and user input.
	StructuredCompletion(ctx context.Context, system, user string) (string, error)
	// ChatReply answers a chat turn given the fixed system prompt.
	ChatReply(ctx context.Context, system string, parts []ChatPart) (string, error)
}

type openAIClient struct {
	client *openai.Client
	model  string
}

// NewCompletionClient builds the OpenAI-backed implementation.
func NewCompletionClient(cfg config.OpenAIConfig) (CompletionClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing OpenAI API key")
	}
	return &openAIClient{
		client: openai.NewClient(cfg.APIKey),
		model:  cfg.CompletionModel,
	}, nil
}

// extractionSchema constrains the completion output to the ticket field set.
var extractionSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "residentName": {"type": "string"},
    "problemDescription": {"type": "string"},
    "preferredServiceTime": {"type": "string"},
    "community": {"type": "string"},
    "unitNumber": {"type": "string"},
    "category": {"type": "string"},
    "priority": {"type": "string"},
    "summary": {"type": "string"}
  },
  "required": ["residentName", "problemDescription", "preferredServiceTime"]
}`)

func (c *openAIClient) StructuredCompletion(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "resident_details_extraction",
				Schema: extractionSchema,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("structured completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("structured completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *openAIClient) ChatReply(ctx context.Context, system string, parts []ChatPart) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}
	for _, part := range parts {
		switch {
		case part.Image != "":
			messages = append(messages, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: "This is a picture of the problem:"},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: "data:image/png;base64," + part.Image,
						},
					},
				},
			})
		case part.Text != "":
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: part.Text,
			})
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
