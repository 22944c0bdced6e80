package ai

import (
	"context"
	"fmt"

	"discord-archive-bot/internal/domain"
	"discord-archive-bot/internal/infra/openai"
)

// Completer отвечает на вопросы через Chat Completions.
type Completer struct {
	client *openai.Client
	model  string
}

var _ domain.Completer = (*Completer)(nil)

// NewCompleter создаёт адаптер над клиентом OpenAI.
func NewCompleter(client *openai.Client, model string) *Completer {
	return &Completer{client: client, model: model}
}

// Complete выполняет один запрос дополнения.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("пустой ответ модели")
	}
	return resp.Choices[0].Message.Content, nil
}
