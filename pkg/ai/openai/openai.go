package openai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/speechbot/speechbot/pkg/ai"
	"github.com/speechbot/speechbot/pkg/types"
)

const (
	NAME = "openai"

	// Upstream requests that produce no first token within this window
	// are treated as failed.
	requestTimeout = time.Second * 30
)

type Driver struct {
	client *openai.Client
	model  ai.ModelName
	lang   string
}

func New(token, proxy string, model ai.ModelName) *Driver {
	cfg := openai.DefaultConfig(token)
	if proxy != "" {
		cfg.BaseURL = proxy
	}

	if model.ChatModel == "" {
		model.ChatModel = openai.GPT4oMini
	}

	return &Driver{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		lang:   ai.MODEL_BASE_LANGUAGE_EN,
	}
}

func (s *Driver) Lang() string {
	return s.lang
}

func (s *Driver) NewQuery(ctx context.Context, query []*types.MessageContext) *ai.QueryOptions {
	return ai.NewQueryOptions(ctx, s, query)
}

func (s *Driver) Query(ctx context.Context, query []*types.MessageContext) (ai.GenerateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:    s.model.ChatModel,
		Messages: ai.BuildChatMessages(query),
	}

	var result ai.GenerateResponse
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return result, fmt.Errorf("Completion error: %w", err)
	}

	slog.Debug("Query", slog.String("driver", NAME), slog.String("model", s.model.ChatModel))

	for _, choice := range resp.Choices {
		result.Received = append(result.Received, choice.Message.Content)
	}
	result.Usage = &resp.Usage
	result.Model = resp.Model

	return result, nil
}

func (s *Driver) QueryStream(ctx context.Context, query []*types.MessageContext) (*openai.ChatCompletionStream, error) {
	req := openai.ChatCompletionRequest{
		Model:    s.model.ChatModel,
		Stream:   true,
		Messages: ai.BuildChatMessages(query),
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}

	resp, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("CreateChatCompletionStream error: %w", err)
	}

	return resp, nil
}
