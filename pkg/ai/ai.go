package ai

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"

	"github.com/speechbot/speechbot/pkg/safe"
	"github.com/speechbot/speechbot/pkg/types"
)

const (
	MODEL_BASE_LANGUAGE_CN = "zh"
	MODEL_BASE_LANGUAGE_EN = "en"
)

type ModelName struct {
	ChatModel string `toml:"chat_model"`
}

// Query is the generation driver contract. Drivers translate chat
// history into a completion request and leave stream consumption to
// HandleAIStream.
type Query interface {
	Query(ctx context.Context, query []*types.MessageContext) (GenerateResponse, error)
	QueryStream(ctx context.Context, query []*types.MessageContext) (*openai.ChatCompletionStream, error)
	Lang
}

type Lang interface {
	Lang() string
}

type GenerateResponse struct {
	Received []string      `json:"received"`
	Usage    *openai.Usage `json:"usage"`
	Model    string        `json:"model"`
}

func (r GenerateResponse) Message() string {
	return strings.Join(r.Received, "")
}

func NewQueryOptions(ctx context.Context, driver Query, query []*types.MessageContext) *QueryOptions {
	return &QueryOptions{
		ctx:     ctx,
		_driver: driver,
		query:   query,
	}
}

type OptionFunc func(opts *QueryOptions)

type QueryOptions struct {
	ctx     context.Context
	_driver Query
	query   []*types.MessageContext
	prompt  string
	vars    map[string]string
}

func (s *QueryOptions) WithPrompt(prompt string) *QueryOptions {
	s.prompt = prompt
	return s
}

func (s *QueryOptions) WithVar(key, value string) *QueryOptions {
	if s.vars == nil {
		s.vars = make(map[string]string)
	}
	s.vars[key] = value
	return s
}

func (s *QueryOptions) prepare() {
	if s.prompt == "" {
		switch s._driver.Lang() {
		case MODEL_BASE_LANGUAGE_CN:
			s.prompt = ASSISTANT_PROMPT_CN
		default:
			s.prompt = ASSISTANT_PROMPT_EN
		}
	}

	for k, v := range s.vars {
		s.prompt = strings.ReplaceAll(s.prompt, k, v)
	}

	if len(s.query) > 0 && s.query[0].Role != types.USER_ROLE_SYSTEM {
		s.query = append([]*types.MessageContext{
			{
				Role:    types.USER_ROLE_SYSTEM,
				Content: s.prompt,
			},
		}, s.query...)
	} else if len(s.query) == 0 {
		s.query = []*types.MessageContext{
			{
				Role:    types.USER_ROLE_SYSTEM,
				Content: s.prompt,
			},
		}
	}
}

func (s *QueryOptions) Query() (GenerateResponse, error) {
	s.prepare()
	return s._driver.Query(s.ctx, s.query)
}

func (s *QueryOptions) QueryStream() (*openai.ChatCompletionStream, error) {
	s.prepare()
	return s._driver.QueryStream(s.ctx, s.query)
}

// BuildChatMessages maps stored history onto the wire roles the
// completion API understands.
func BuildChatMessages(query []*types.MessageContext) []openai.ChatCompletionMessage {
	return lo.Map(query, func(item *types.MessageContext, _ int) openai.ChatCompletionMessage {
		return openai.ChatCompletionMessage{
			Role:    item.Role.OpenAIRole(),
			Content: item.Content,
		}
	})
}

type ResponseChoice struct {
	ID           string
	Message      string
	FinishReason string
	Error        error
	Usage        *openai.Usage
	Model        string
}

// HandleAIStream drains a completion stream into coarse chunks.
// Tokens are batched on a short ticker so downstream fan-out pushes
// a few larger frames instead of one frame per token.
func HandleAIStream(ctx context.Context, resp *openai.ChatCompletionStream) (chan ResponseChoice, error) {
	respChan := make(chan ResponseChoice, 10)
	ticker := time.NewTicker(time.Millisecond * 500)
	go safe.Run(func() {
		ctx, cancel := context.WithCancel(ctx)
		defer func() {
			close(respChan)
			resp.Close()
			ticker.Stop()
			cancel()
		}()

		var (
			strs      = strings.Builder{}
			messageID string
			mu        sync.Mutex
		)

		flushResponse := func() {
			mu.Lock()
			defer mu.Unlock()
			if strs.Len() > 0 {
				respChan <- ResponseChoice{
					ID:      messageID,
					Message: strs.String(),
				}
				strs.Reset()
			}
		}

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					flushResponse()
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				respChan <- ResponseChoice{
					Error: ctx.Err(),
				}
				return
			default:
			}

			msg, err := resp.Recv()
			if err != nil && err != io.EOF {
				respChan <- ResponseChoice{
					Error: err,
				}
				return
			}

			if err == io.EOF {
				flushResponse()
				return
			}

			if msg.Usage != nil {
				respChan <- ResponseChoice{
					Usage: msg.Usage,
					Model: msg.Model,
				}
			}

			for _, choice := range msg.Choices {
				if messageID == "" {
					messageID = msg.ID
				}
				mu.Lock()
				strs.WriteString(choice.Delta.Content)
				mu.Unlock()

				if choice.FinishReason != "" {
					flushResponse()
					respChan <- ResponseChoice{
						ID:           messageID,
						FinishReason: string(choice.FinishReason),
					}
				}
			}
		}
	})

	return respChan, nil
}
